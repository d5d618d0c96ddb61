package sim

import (
	"time"

	"go.uber.org/zap"

	"github.com/riftarena/server/internal/core/event"
	"github.com/riftarena/server/internal/core/ids"
	"github.com/riftarena/server/internal/data"
)

// EventHandler turns normalized contact events and gameplay commands into
// tick-scoped buffer mutations. It is pure bookkeeping over the batch and
// the in-memory engines; persistence happens later, at flush.
type EventHandler struct {
	rules   *data.RuleTable
	tracker *Tracker
	skills  *SkillEngine
	bus     *event.Bus
	log     *zap.Logger
}

func NewEventHandler(rules *data.RuleTable, tracker *Tracker, skills *SkillEngine, bus *event.Bus, log *zap.Logger) *EventHandler {
	return &EventHandler{
		rules:   rules,
		tracker: tracker,
		skills:  skills,
		bus:     bus,
		log:     log,
	}
}

// resolveRule finds the interaction rule for an unordered contact pair.
// Rules are directional (source acts on target); both orientations are
// tried. Returns the rule plus source and target in rule orientation.
func (h *EventHandler) resolveRule(ctx *EffectContext, a, b ids.EntityID) (*data.RuleInfo, *Entity, *Entity) {
	entA, errA := ctx.Reg.Lookup(a)
	entB, errB := ctx.Reg.Lookup(b)
	if errA != nil || errB != nil {
		return nil, nil, nil
	}
	if rule := h.rules.Get(entA.Tag, entB.Tag); rule != nil {
		return rule, entA, entB
	}
	if rule := h.rules.Get(entB.Tag, entA.Tag); rule != nil {
		return rule, entB, entA
	}
	return nil, nil, nil
}

// HandleContacts applies gameplay consequences for one tick's normalized
// contact events.
func (h *EventHandler) HandleContacts(ctx *EffectContext, events []ContactEvent) {
	for i := range events {
		ev := &events[i]
		switch ev.Kind {
		case ContactStart:
			h.onStart(ctx, ev)
		case ContactContinue:
			h.onContinue(ctx, ev)
		case ContactEnd:
			h.onEnd(ctx, ev)
		}
	}
}

func (h *EventHandler) onStart(ctx *EffectContext, ev *ContactEvent) {
	ctx.Batch.ContactOpens = append(ctx.Batch.ContactOpens, ContactRow{
		A: ev.A, B: ev.B, StartedAt: ev.StartedAt,
	})
	event.Emit(h.bus, event.ContactStarted{A: ev.A, B: ev.B, Tick: ctx.Tick})

	rule, _, target := h.resolveRule(ctx, ev.A, ev.B)
	if rule == nil || rule.StartBuff == 0 {
		return
	}
	var expiresAt time.Time // zero = held until contact end
	if rule.BuffMs > 0 {
		expiresAt = ctx.Now.Add(time.Duration(rule.BuffMs) * time.Millisecond)
	}
	buffID := ctx.Buffs.Apply(ctx, target.ID, rule.StartBuff, rule.BuffMagnitude, expiresAt)
	if rule.RemoveOnEnd {
		h.tracker.SetAuraBuff(ev.A, ev.B, buffID)
	}
}

func (h *EventHandler) onContinue(ctx *EffectContext, ev *ContactEvent) {
	rule, source, target := h.resolveRule(ctx, ev.A, ev.B)
	if rule == nil || rule.DamageEvery <= 0 {
		return
	}
	if int(ev.TickCount)%rule.DamageEvery != 0 {
		return
	}
	queueDamage(ctx, source.ID, target.ID, rule.DamageSkill, rule.DamageAmount)

	if rule.MaxHits > 0 {
		if hits := h.tracker.IncHits(ev.A, ev.B); hits >= rule.MaxHits {
			h.tracker.Drop(ev.A, ev.B)
			h.log.Debug("contact reached hit cap",
				zap.Uint64("a", uint64(ev.A)),
				zap.Uint64("b", uint64(ev.B)),
				zap.Int("hits", hits))
		}
	}
}

func (h *EventHandler) onEnd(ctx *EffectContext, ev *ContactEvent) {
	ctx.Batch.ContactCloses = append(ctx.Batch.ContactCloses, ContactCloseRow{
		A: ev.A, B: ev.B, StartedAt: ev.StartedAt, Duration: ev.Duration,
	})
	event.Emit(h.bus, event.ContactEnded{A: ev.A, B: ev.B, Tick: ctx.Tick, Duration: ev.Duration})

	if ev.AuraBuff == 0 {
		return
	}
	if err := ctx.Buffs.Remove(ctx, ev.AuraBuff); err != nil {
		// The buff may have expired or its target despawned this tick.
		h.log.Debug("aura buff already gone at contact end",
			zap.Uint64("buff_id", ev.AuraBuff))
	}
}

// HandleCommand processes one externally submitted command and returns the
// structured result for the submitter. Command-level failures (cooldown,
// missing target) are results, not pipeline errors.
func (h *EventHandler) HandleCommand(ctx *EffectContext, spawner *Spawner, cmd Command) CommandResult {
	res := CommandResult{ID: cmd.ID}
	switch cmd.Kind {
	case CmdUseSkill:
		actor, err := ctx.Reg.Lookup(cmd.Actor)
		if err != nil {
			res.Err = err
			return res
		}
		skillID := cmd.SkillID
		if skillID == 0 {
			if skillID, err = h.skills.ResolveName(cmd.SkillName); err != nil {
				res.Err = err
				return res
			}
		}
		res.Err = h.skills.Activate(ctx, actor, skillID, cmd.Aim)

	case CmdMove:
		actor, err := ctx.Reg.Lookup(cmd.Actor)
		if err != nil {
			res.Err = err
			return res
		}
		ctx.Phys.SetVelocity(actor.Body, cmd.Velocity)

	case CmdSpawn:
		ent, err := spawner.Spawn(ctx, cmd.Tag, cmd.BodyKind, cmd.Shape, cmd.Pos, cmd.Health)
		if err != nil {
			res.Err = err
			return res
		}
		res.Entity = ent.ID

	case CmdDespawn:
		res.Err = spawner.Despawn(ctx, cmd.Actor)
	}
	return res
}
