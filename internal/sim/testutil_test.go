package sim

import (
	"testing"
	"time"

	"github.com/jakecoffman/cp"
	"go.uber.org/zap"

	"github.com/riftarena/server/internal/core/event"
	"github.com/riftarena/server/internal/data"
	"github.com/riftarena/server/internal/physics"
)

// fakePhys is a scripted stand-in for the rigid-body engine. Tests enqueue
// raw collision events directly and read back recorded mutations.
type fakePhys struct {
	steps     []time.Duration
	queue     []physics.CollisionEvent
	positions map[*cp.Body]cp.Vector
	vels      map[*cp.Body]cp.Vector
	removed   []*cp.Body
}

func newFakePhys() *fakePhys {
	return &fakePhys{
		positions: make(map[*cp.Body]cp.Vector),
		vels:      make(map[*cp.Body]cp.Vector),
	}
}

func (f *fakePhys) Step(dt time.Duration) {
	f.steps = append(f.steps, dt)
}

func (f *fakePhys) DrainEvents() []physics.CollisionEvent {
	out := f.queue
	f.queue = nil
	return out
}

func (f *fakePhys) AddBody(_ physics.BodyKind, _ physics.ShapeDef, pos cp.Vector) *cp.Body {
	body := cp.NewBody(1, 1)
	f.positions[body] = pos
	return body
}

func (f *fakePhys) RemoveBody(body *cp.Body) {
	delete(f.positions, body)
	delete(f.vels, body)
	f.removed = append(f.removed, body)
}

func (f *fakePhys) Contains(body *cp.Body) bool {
	_, ok := f.positions[body]
	return ok
}

func (f *fakePhys) Position(body *cp.Body) cp.Vector {
	return f.positions[body]
}

func (f *fakePhys) SetVelocity(body *cp.Body, v cp.Vector) {
	f.vels[body] = v
	body.SetVelocityVector(v)
}

func (f *fakePhys) moveTo(body *cp.Body, pos cp.Vector) {
	f.positions[body] = pos
}

func (f *fakePhys) pushBegin(a, b *cp.Body) {
	f.queue = append(f.queue, physics.CollisionEvent{A: a, B: b, Kind: physics.EventBegin})
}

func (f *fakePhys) pushEnd(a, b *cp.Body) {
	f.queue = append(f.queue, physics.CollisionEvent{A: a, B: b, Kind: physics.EventEnd})
}

const testSkillYAML = `
skills:
  - skill_id: 1
    name: dash
    kind: dash
    cooldown_ms: 2000
    magnitude: 300
  - skill_id: 2
    name: mend
    kind: heal
    cooldown_ms: 5000
    magnitude: 25
    buff_type: 1
    buff_ms: 3000
  - skill_id: 3
    name: shockwave
    kind: area_damage
    cooldown_ms: 4000
    magnitude: 10
    radius: 50
`

const testBuffYAML = `
buffs:
  - buff_type: 1
    name: regen
    kind: regen
    magnitude: 25
  - buff_type: 2
    name: haste
    kind: cooldown_reduction
    magnitude: 0.5
  - buff_type: 3
    name: tar_slow
    kind: aura_slow
    magnitude: 0.5
  - buff_type: 4
    name: charge
    kind: stacking
    magnitude: 1
`

const testRuleYAML = `
rules:
  - source_tag: hazard
    target_tag: player
    damage_every: 5
    damage_amount: 1
    damage_skill: 9
    max_hits: 30
  - source_tag: tarpit
    target_tag: player
    start_buff: 3
    buff_magnitude: 0.5
    remove_on_end: true
  - source_tag: shrine
    target_tag: player
    start_buff: 4
    buff_magnitude: 1
    buff_ms: 10000
`

// world bundles a fully wired in-memory pipeline without the coordinator.
type world struct {
	phys    *fakePhys
	reg     *Registry
	tracker *Tracker
	buffs   *BuffEngine
	skills  *SkillEngine
	handler *EventHandler
	spawner *Spawner
	bus     *event.Bus
}

func newWorld(t *testing.T) *world {
	t.Helper()
	log := zap.NewNop()

	skillTable, err := data.ParseSkillTable([]byte(testSkillYAML))
	if err != nil {
		t.Fatalf("parse skills: %v", err)
	}
	buffTable, err := data.ParseBuffTable([]byte(testBuffYAML))
	if err != nil {
		t.Fatalf("parse buffs: %v", err)
	}
	ruleTable, err := data.ParseRuleTable([]byte(testRuleYAML))
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}

	buffs, err := NewBuffEngine(buffTable)
	if err != nil {
		t.Fatalf("buff engine: %v", err)
	}
	skills, err := NewSkillEngine(skillTable)
	if err != nil {
		t.Fatalf("skill engine: %v", err)
	}

	w := &world{
		phys:    newFakePhys(),
		reg:     NewRegistry(),
		tracker: NewTracker(log),
		buffs:   buffs,
		skills:  skills,
		spawner: NewSpawner(log),
		bus:     event.NewBus(),
	}
	w.handler = NewEventHandler(ruleTable, w.tracker, skills, w.bus, log)
	w.reg.AttachStore(w.tracker)
	w.reg.AttachStore(w.buffs)
	w.reg.AttachStore(w.skills)
	return w
}

// ctx builds a fresh tick-scoped effect context.
func (w *world) ctx(now time.Time, tick uint64) *EffectContext {
	return &EffectContext{
		Now:   now,
		Tick:  tick,
		Batch: NewTickBatch(tick, now),
		Reg:   w.reg,
		Buffs: w.buffs,
		Phys:  w.phys,
		Log:   zap.NewNop(),
	}
}

// spawn adds an entity through the spawner, failing the test on error.
func (w *world) spawn(t *testing.T, ctx *EffectContext, tag string, pos cp.Vector, health int32) *Entity {
	t.Helper()
	ent, err := w.spawner.Spawn(ctx, tag, physics.KindDynamic, physics.ShapeDef{
		Kind:   physics.ShapeCircle,
		Radius: 10,
		Mass:   1,
	}, pos, health)
	if err != nil {
		t.Fatalf("spawn %s: %v", tag, err)
	}
	return ent
}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// atTick maps a tick number to a wall time on a 50ms cadence.
func atTick(tick uint64) time.Time {
	return testEpoch.Add(time.Duration(tick) * 50 * time.Millisecond)
}
