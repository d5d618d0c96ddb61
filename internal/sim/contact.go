package sim

import (
	"time"

	"go.uber.org/zap"

	"github.com/riftarena/server/internal/core/ids"
	"github.com/riftarena/server/internal/physics"
)

// ContactKind tags a normalized contact transition.
type ContactKind uint8

const (
	ContactStart ContactKind = iota
	ContactContinue
	ContactEnd
)

func (k ContactKind) String() string {
	switch k {
	case ContactStart:
		return "start"
	case ContactContinue:
		return "continue"
	case ContactEnd:
		return "end"
	}
	return "unknown"
}

// ContactEvent is a normalized gameplay-level contact transition, distinct
// from the engine's raw per-frame touch events. A and B are ordered so that
// A < B; the pair is unordered at the gameplay level.
type ContactEvent struct {
	Kind      ContactKind
	A, B      ids.EntityID
	StartedAt time.Time
	TickCount uint32        // Continue only: ticks the contact has persisted
	Duration  time.Duration // End only
	AuraBuff  uint64        // End only: buff instance recorded at Start, 0 = none
}

type pairKey struct {
	a, b ids.EntityID // a < b
}

func makePair(x, y ids.EntityID) pairKey {
	if x < y {
		return pairKey{a: x, b: y}
	}
	return pairKey{a: y, b: x}
}

type contactState struct {
	startedAt    time.Time
	startedTick  uint64
	lastSeenTick uint64
	tickCount    uint32
	hitCount     int
	auraBuff     uint64
}

// Tracker consumes raw per-tick collision begin/end events and maintains the
// active-contact map. At most one active contact exists per unordered pair.
type Tracker struct {
	active map[pairKey]*contactState
	log    *zap.Logger
}

func NewTracker(log *zap.Logger) *Tracker {
	return &Tracker{
		active: make(map[pairKey]*contactState, 64),
		log:    log,
	}
}

// Track normalizes one tick's worth of raw events against the active map.
// Raw events are processed in index order, so a begin immediately followed
// by an end in the same tick yields Start then End with duration ≈ 0 — the
// gameplay layer always sees both edges. Untranslatable handles (body
// removed the same tick it produced a trailing event) are dropped and
// logged, never fatal.
func (t *Tracker) Track(raw []physics.CollisionEvent, reg *Registry, now time.Time, tick uint64) []ContactEvent {
	var out []ContactEvent

	for _, ev := range raw {
		idA, okA := reg.LookupByBody(ev.A)
		idB, okB := reg.LookupByBody(ev.B)
		if !okA || !okB {
			t.log.Warn("dropping collision event with unregistered handle",
				zap.Bool("a_known", okA),
				zap.Bool("b_known", okB),
				zap.Uint64("tick", tick))
			continue
		}
		key := makePair(idA, idB)

		switch ev.Kind {
		case physics.EventBegin:
			if _, dup := t.active[key]; dup {
				// Duplicate begin is an engine artifact; keep the
				// original start time.
				t.log.Debug("duplicate begin ignored",
					zap.Uint64("a", uint64(key.a)),
					zap.Uint64("b", uint64(key.b)))
				continue
			}
			t.active[key] = &contactState{
				startedAt:    now,
				startedTick:  tick,
				lastSeenTick: tick,
			}
			out = append(out, ContactEvent{
				Kind:      ContactStart,
				A:         key.a,
				B:         key.b,
				StartedAt: now,
			})

		case physics.EventEnd:
			st, ok := t.active[key]
			if !ok {
				// Engines may emit spurious end events.
				t.log.Debug("spurious end ignored",
					zap.Uint64("a", uint64(key.a)),
					zap.Uint64("b", uint64(key.b)))
				continue
			}
			delete(t.active, key)
			out = append(out, ContactEvent{
				Kind:      ContactEnd,
				A:         key.a,
				B:         key.b,
				StartedAt: st.startedAt,
				Duration:  now.Sub(st.startedAt),
				AuraBuff:  st.auraBuff,
			})
		}
	}

	// Pairs still active that were already active before this tick emit
	// Continue, so sustained effects are driven without re-querying the
	// physics world.
	for key, st := range t.active {
		if st.startedTick == tick {
			st.lastSeenTick = tick
			continue
		}
		st.tickCount++
		st.lastSeenTick = tick
		out = append(out, ContactEvent{
			Kind:      ContactContinue,
			A:         key.a,
			B:         key.b,
			StartedAt: st.startedAt,
			TickCount: st.tickCount,
		})
	}

	return out
}

// SetAuraBuff records the buff instance applied when this contact started so
// the End transition can remove exactly that instance.
func (t *Tracker) SetAuraBuff(a, b ids.EntityID, buffID uint64) {
	if st, ok := t.active[makePair(a, b)]; ok {
		st.auraBuff = buffID
	}
}

// IncHits bumps and returns the contact's hit counter.
func (t *Tracker) IncHits(a, b ids.EntityID) int {
	st, ok := t.active[makePair(a, b)]
	if !ok {
		return 0
	}
	st.hitCount++
	return st.hitCount
}

// Drop force-expires a contact without emitting End (a damage source that
// reached its hit cap). A trailing engine end event for the pair is later
// ignored as spurious.
func (t *Tracker) Drop(a, b ids.EntityID) {
	delete(t.active, makePair(a, b))
}

// RemoveEntity purges every contact involving the entity. Called on
// despawn; the engine's trailing separate events translate to nothing and
// are dropped.
func (t *Tracker) RemoveEntity(id ids.EntityID) {
	for key := range t.active {
		if key.a == id || key.b == id {
			delete(t.active, key)
		}
	}
}

// ActiveCount returns the number of currently active contacts.
func (t *Tracker) ActiveCount() int {
	return len(t.active)
}

// EachActive visits every active contact pair with its start time.
func (t *Tracker) EachActive(fn func(a, b ids.EntityID, startedAt time.Time)) {
	for key, st := range t.active {
		fn(key.a, key.b, st.startedAt)
	}
}
