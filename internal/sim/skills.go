package sim

import (
	"fmt"
	"time"

	"github.com/jakecoffman/cp"

	"github.com/riftarena/server/internal/core/ids"
	"github.com/riftarena/server/internal/data"
)

// SkillBehavior defines one skill kind. The behavior table is closed and
// built at startup; dispatch is by skill-id lookup, never runtime type
// inspection.
type SkillBehavior interface {
	Cooldown() time.Duration
	Activate(ctx *EffectContext, actor *Entity, aim cp.Vector) error
}

// dashSkill shoves the actor along the aim direction.
type dashSkill struct {
	cooldown time.Duration
	impulse  float64
}

func (s *dashSkill) Cooldown() time.Duration { return s.cooldown }

func (s *dashSkill) Activate(ctx *EffectContext, actor *Entity, aim cp.Vector) error {
	dir := aim
	if dir.Length() == 0 {
		dir = cp.Vector{X: 1}
	}
	ctx.Phys.SetVelocity(actor.Body, dir.Normalize().Mult(s.impulse))
	return nil
}

// healSkill restores health and optionally grants a regen buff.
type healSkill struct {
	cooldown time.Duration
	amount   int32
	buffType int32
	buffDur  time.Duration
}

func (s *healSkill) Cooldown() time.Duration { return s.cooldown }

func (s *healSkill) Activate(ctx *EffectContext, actor *Entity, _ cp.Vector) error {
	ctx.Batch.AddHeal(actor.ID, s.amount)
	if s.buffType != 0 {
		ctx.Buffs.Apply(ctx, actor.ID, s.buffType, float64(s.amount), ctx.Now.Add(s.buffDur))
	}
	return nil
}

// areaDamageSkill damages every entity within the radius of the aim point,
// excluding the actor.
type areaDamageSkill struct {
	skillID  int32
	cooldown time.Duration
	amount   int32
	radius   float64
}

func (s *areaDamageSkill) Cooldown() time.Duration { return s.cooldown }

func (s *areaDamageSkill) Activate(ctx *EffectContext, actor *Entity, aim cp.Vector) error {
	ctx.Reg.Each(func(ent *Entity) {
		if ent.ID == actor.ID {
			return
		}
		pos := ctx.Phys.Position(ent.Body)
		if pos.Distance(aim) > s.radius {
			return
		}
		queueDamage(ctx, actor.ID, ent.ID, s.skillID, s.amount)
	})
	return nil
}

// queueDamage accumulates pending damage and emits the timed damage_event
// row clients render from. The expiry is the tick time plus one second.
func queueDamage(ctx *EffectContext, source, target ids.EntityID, skillID, amount int32) {
	ctx.Batch.AddDamage(target, amount)
	ctx.Batch.DamageEvents = append(ctx.Batch.DamageEvents, DamageRow{
		SourceID: source,
		TargetID: target,
		SkillID:  skillID,
		Amount:   amount,
		ExpireAt: ctx.Now.Add(time.Second),
	})
}

type cooldownKey struct {
	entity ids.EntityID
	skill  int32
}

// CooldownEntry tracks one (entity, skill) pair. Never removed while the
// entity exists; "expired" is a computed predicate, not a deletion.
type CooldownEntry struct {
	LastUsedAt time.Time
	Base       time.Duration
}

// SkillEngine owns the skill behavior table and all cooldown state.
type SkillEngine struct {
	table     *data.SkillTable
	behaviors map[int32]SkillBehavior
	cooldowns map[cooldownKey]*CooldownEntry
}

// NewSkillEngine builds the behavior table from the skill data table.
// Unknown kinds fail at startup.
func NewSkillEngine(table *data.SkillTable) (*SkillEngine, error) {
	e := &SkillEngine{
		table:     table,
		behaviors: make(map[int32]SkillBehavior, table.Count()),
		cooldowns: make(map[cooldownKey]*CooldownEntry, 64),
	}
	for _, info := range table.All() {
		cd := time.Duration(info.CooldownMs) * time.Millisecond
		var b SkillBehavior
		switch info.Kind {
		case "dash":
			b = &dashSkill{cooldown: cd, impulse: info.Magnitude}
		case "heal":
			b = &healSkill{
				cooldown: cd,
				amount:   int32(info.Magnitude),
				buffType: info.BuffType,
				buffDur:  time.Duration(info.BuffMs) * time.Millisecond,
			}
		case "area_damage":
			b = &areaDamageSkill{
				skillID:  info.SkillID,
				cooldown: cd,
				amount:   int32(info.Magnitude),
				radius:   info.Radius,
			}
		default:
			return nil, fmt.Errorf("skill %q: unknown kind %q", info.Name, info.Kind)
		}
		e.behaviors[info.SkillID] = b
	}
	return e, nil
}

// ResolveName maps a skill name to its id for name-addressed casts.
func (e *SkillEngine) ResolveName(name string) (int32, error) {
	info := e.table.GetByName(name)
	if info == nil {
		return 0, fmt.Errorf("skill %q: %w", name, ErrUnknownSkill)
	}
	return info.SkillID, nil
}

// RestoreCooldown re-registers a cooldown row loaded from the store at boot.
func (e *SkillEngine) RestoreCooldown(entity ids.EntityID, skillID int32, lastUsedAt time.Time, base time.Duration) {
	e.cooldowns[cooldownKey{entity: entity, skill: skillID}] = &CooldownEntry{
		LastUsedAt: lastUsedAt,
		Base:       base,
	}
}

// Activate runs the full skill activation sequence: behavior lookup,
// buff-modified cooldown check, cooldown write-back, effect application.
// Strictly inside the cooldown window fails with ErrOnCooldown; exactly at
// or past the boundary succeeds.
func (e *SkillEngine) Activate(ctx *EffectContext, actor *Entity, skillID int32, aim cp.Vector) error {
	behavior, ok := e.behaviors[skillID]
	if !ok {
		return fmt.Errorf("skill %d: %w", skillID, ErrUnknownSkill)
	}

	// Cooldown modifiers are baked in at cast time.
	effective := ctx.Buffs.ModifyCooldown(actor.ID, behavior.Cooldown(), ctx.Now)

	key := cooldownKey{entity: actor.ID, skill: skillID}
	entry, exists := e.cooldowns[key]
	if exists && ctx.Now.Sub(entry.LastUsedAt) < effective {
		return ErrOnCooldown
	}

	if !exists {
		entry = &CooldownEntry{Base: behavior.Cooldown()}
		e.cooldowns[key] = entry
	}
	entry.LastUsedAt = ctx.Now

	ctx.Batch.Cooldowns = append(ctx.Batch.Cooldowns, CooldownRow{
		EntityID:   actor.ID,
		SkillID:    skillID,
		LastUsedAt: ctx.Now,
		BaseMs:     behavior.Cooldown().Milliseconds(),
	})

	return behavior.Activate(ctx, actor, aim)
}

// RemoveEntity implements Removable: despawn clears the entity's cooldown
// entries.
func (e *SkillEngine) RemoveEntity(id ids.EntityID) {
	for key := range e.cooldowns {
		if key.entity == id {
			delete(e.cooldowns, key)
		}
	}
}

// CooldownFor returns the entry for diagnostics, or nil.
func (e *SkillEngine) CooldownFor(entity ids.EntityID, skillID int32) *CooldownEntry {
	return e.cooldowns[cooldownKey{entity: entity, skill: skillID}]
}
