package sim

import (
	"fmt"
	"time"

	"github.com/riftarena/server/internal/core/ids"
	"github.com/riftarena/server/internal/data"
)

// BuffInstance is one active, uniquely identified, time-bounded effect on a
// target entity. Instances with the same buff type can coexist on one
// target; removal is always id-targeted.
type BuffInstance struct {
	ID        uint64
	Target    ids.EntityID
	BuffType  int32
	Stacks    int32
	Magnitude float64
	ExpiresAt time.Time // zero = held until removed (contact auras)
}

func (b *BuffInstance) expired(now time.Time) bool {
	return !b.ExpiresAt.IsZero() && !b.ExpiresAt.After(now)
}

// BuffBehavior defines one buff kind's effects. Effects are one-shot
// adjustments baked in at apply/cast time, never recomputed per tick.
type BuffBehavior interface {
	// Stacking buffs merge a re-application into the existing instance,
	// bumping its stack count and refreshing the expiry.
	Stacking() bool
	OnApply(ctx *EffectContext, b *BuffInstance)
	OnExpire(ctx *EffectContext, b *BuffInstance)
	// ModifyCooldown adjusts a skill's base cooldown at cast time.
	ModifyCooldown(base time.Duration, magnitude float64) time.Duration
}

// noopBuff provides the identity behavior; concrete kinds embed it and
// override what they need.
type noopBuff struct{}

func (noopBuff) Stacking() bool                            { return false }
func (noopBuff) OnApply(*EffectContext, *BuffInstance)     {}
func (noopBuff) OnExpire(*EffectContext, *BuffInstance)    {}
func (noopBuff) ModifyCooldown(base time.Duration, _ float64) time.Duration {
	return base
}

// regenBuff heals the target once on apply and once more when it expires.
type regenBuff struct{ noopBuff }

func (regenBuff) OnApply(ctx *EffectContext, b *BuffInstance) {
	healTarget(ctx, b)
}

func (regenBuff) OnExpire(ctx *EffectContext, b *BuffInstance) {
	healTarget(ctx, b)
}

func healTarget(ctx *EffectContext, b *BuffInstance) {
	if _, err := ctx.Reg.Lookup(b.Target); err != nil {
		return // target despawned; nothing to heal
	}
	ctx.Batch.AddHeal(b.Target, int32(b.Magnitude))
}

// cdReductionBuff scales cooldowns down at cast time; magnitude 0.2 means a
// 20% reduction.
type cdReductionBuff struct{ noopBuff }

func (cdReductionBuff) ModifyCooldown(base time.Duration, magnitude float64) time.Duration {
	if magnitude < 0 {
		magnitude = 0
	}
	if magnitude > 1 {
		magnitude = 1
	}
	return time.Duration(float64(base) * (1 - magnitude))
}

// auraSlowBuff halves the target's velocity once when applied. The aura's
// removal does not restore speed; normal movement input overwrites it.
type auraSlowBuff struct{ noopBuff }

func (auraSlowBuff) OnApply(ctx *EffectContext, b *BuffInstance) {
	ent, err := ctx.Reg.Lookup(b.Target)
	if err != nil {
		return
	}
	v := ent.Body.Velocity()
	ctx.Phys.SetVelocity(ent.Body, v.Mult(1 - b.Magnitude))
}

// stackingBuff carries no direct effect; its stack count is read by
// whatever grants the payoff (damage rules, future skill scaling).
type stackingBuff struct{ noopBuff }

func (stackingBuff) Stacking() bool { return true }

// BuffEngine owns active buff state and the process-wide buff id counter.
// Ids are monotonically increasing and never reused; allocation happens
// inside the single-threaded tick boundary, so no atomic is needed.
type BuffEngine struct {
	nextID    uint64
	byID      map[uint64]*BuffInstance
	byTarget  map[ids.EntityID]map[uint64]*BuffInstance
	behaviors map[int32]BuffBehavior
}

// NewBuffEngine builds the closed behavior table from the buff data table.
// Unknown kinds fail at startup, not at first use.
func NewBuffEngine(table *data.BuffTable) (*BuffEngine, error) {
	e := &BuffEngine{
		nextID:    1,
		byID:      make(map[uint64]*BuffInstance, 64),
		byTarget:  make(map[ids.EntityID]map[uint64]*BuffInstance, 32),
		behaviors: make(map[int32]BuffBehavior, table.Count()),
	}
	for _, info := range table.All() {
		var b BuffBehavior
		switch info.Kind {
		case "regen":
			b = regenBuff{}
		case "cooldown_reduction":
			b = cdReductionBuff{}
		case "aura_slow":
			b = auraSlowBuff{}
		case "stacking":
			b = stackingBuff{}
		default:
			return nil, fmt.Errorf("buff %q: unknown kind %q", info.Name, info.Kind)
		}
		e.behaviors[info.BuffType] = b
	}
	return e, nil
}

// SeedNextID restores the counter after boot so restarted servers never
// reissue a persisted id.
func (e *BuffEngine) SeedNextID(maxExisting uint64) {
	if maxExisting >= e.nextID {
		e.nextID = maxExisting + 1
	}
}

// Restore re-registers a buff instance loaded from the store at boot.
func (e *BuffEngine) Restore(b BuffInstance) {
	inst := b
	e.byID[inst.ID] = &inst
	e.targetSet(inst.Target)[inst.ID] = &inst
}

func (e *BuffEngine) targetSet(id ids.EntityID) map[uint64]*BuffInstance {
	set, ok := e.byTarget[id]
	if !ok {
		set = make(map[uint64]*BuffInstance, 4)
		e.byTarget[id] = set
	}
	return set
}

// Apply inserts a buff instance (or merges into an existing one for
// stacking kinds) and returns its id so the caller can later target removal
// precisely. The durable insert/update rides on the tick batch.
func (e *BuffEngine) Apply(ctx *EffectContext, target ids.EntityID, buffType int32, magnitude float64, expiresAt time.Time) uint64 {
	id := e.nextID
	e.nextID++

	behavior, known := e.behaviors[buffType]
	if !known {
		behavior = noopBuff{}
	}

	if behavior.Stacking() {
		for _, existing := range e.byTarget[target] {
			if existing.BuffType == buffType {
				existing.Stacks++
				existing.ExpiresAt = expiresAt
				ctx.Batch.BuffUpdates = append(ctx.Batch.BuffUpdates, e.row(existing))
				return existing.ID
			}
		}
	}

	inst := &BuffInstance{
		ID:        id,
		Target:    target,
		BuffType:  buffType,
		Stacks:    1,
		Magnitude: magnitude,
		ExpiresAt: expiresAt,
	}
	e.byID[id] = inst
	e.targetSet(target)[id] = inst
	ctx.Batch.BuffAdds = append(ctx.Batch.BuffAdds, e.row(inst))
	behavior.OnApply(ctx, inst)
	return id
}

// Remove deletes exactly the given instance. Explicit removal does not run
// OnExpire; that hook belongs to natural expiry only.
func (e *BuffEngine) Remove(ctx *EffectContext, buffID uint64) error {
	inst, ok := e.byID[buffID]
	if !ok {
		return ErrNotFound
	}
	e.drop(inst)
	ctx.Batch.BuffRemoves = append(ctx.Batch.BuffRemoves, buffID)
	return nil
}

// Sweep expires buffs whose time is up, running each one's OnExpire and
// queueing the removal. Runs once per tick, before flush.
func (e *BuffEngine) Sweep(ctx *EffectContext) {
	for id, inst := range e.byID {
		if !inst.expired(ctx.Now) {
			continue
		}
		if behavior, ok := e.behaviors[inst.BuffType]; ok {
			behavior.OnExpire(ctx, inst)
		}
		e.drop(inst)
		ctx.Batch.BuffRemoves = append(ctx.Batch.BuffRemoves, id)
	}
}

// RemoveEntity implements Removable: a despawn clears the target's buffs
// from memory. The despawning tick's batch deletes the rows by target id,
// so no per-buff removal rows are queued here.
func (e *BuffEngine) RemoveEntity(id ids.EntityID) {
	for buffID := range e.byTarget[id] {
		delete(e.byID, buffID)
	}
	delete(e.byTarget, id)
}

func (e *BuffEngine) drop(inst *BuffInstance) {
	delete(e.byID, inst.ID)
	if set, ok := e.byTarget[inst.Target]; ok {
		delete(set, inst.ID)
		if len(set) == 0 {
			delete(e.byTarget, inst.Target)
		}
	}
}

func (e *BuffEngine) row(inst *BuffInstance) BuffRow {
	return BuffRow{
		BuffID:    inst.ID,
		TargetID:  inst.Target,
		BuffType:  inst.BuffType,
		Stacks:    inst.Stacks,
		Magnitude: inst.Magnitude,
		ExpiresAt: inst.ExpiresAt,
	}
}

// ModifyCooldown folds the target's active cooldown-modifier buffs into a
// base cooldown, applying each buff type once at its maximum magnitude
// (mirrors the cast-time "bake in" rule: no per-tick recomputation).
func (e *BuffEngine) ModifyCooldown(target ids.EntityID, base time.Duration, now time.Time) time.Duration {
	maxPerType := make(map[int32]float64, 2)
	for _, inst := range e.byTarget[target] {
		if inst.expired(now) {
			continue
		}
		if m, ok := maxPerType[inst.BuffType]; !ok || inst.Magnitude > m {
			maxPerType[inst.BuffType] = inst.Magnitude
		}
	}
	out := base
	for buffType, magnitude := range maxPerType {
		if behavior, ok := e.behaviors[buffType]; ok {
			out = behavior.ModifyCooldown(out, magnitude)
		}
	}
	return out
}

// ActiveOn returns the target's active buff instances (diagnostics only).
func (e *BuffEngine) ActiveOn(target ids.EntityID) []*BuffInstance {
	set := e.byTarget[target]
	out := make([]*BuffInstance, 0, len(set))
	for _, inst := range set {
		out = append(out, inst)
	}
	return out
}

// ActiveCount returns the total number of active buff instances.
func (e *BuffEngine) ActiveCount() int {
	return len(e.byID)
}
