package sim

import (
	"time"

	"github.com/jakecoffman/cp"

	"github.com/riftarena/server/internal/core/ids"
	"github.com/riftarena/server/internal/physics"
)

// EntityRow is the durable form of an entity, buffered on spawn.
type EntityRow struct {
	ID     ids.EntityID
	Tag    string
	Kind   physics.BodyKind
	Shape  physics.ShapeDef
	X, Y   float64
	Health int32
}

// BuffRow is the durable form of a buff instance.
type BuffRow struct {
	BuffID    uint64
	TargetID  ids.EntityID
	BuffType  int32
	Stacks    int32
	Magnitude float64
	ExpiresAt time.Time // zero = held until removed
}

// CooldownRow is one (entity, skill) cooldown upsert.
type CooldownRow struct {
	EntityID   ids.EntityID
	SkillID    int32
	LastUsedAt time.Time
	BaseMs     int64
}

// DamageRow is one timed damage_event row, short-lived for UI/log purposes.
type DamageRow struct {
	SourceID ids.EntityID
	TargetID ids.EntityID
	SkillID  int32
	Amount   int32
	ExpireAt time.Time
}

// ContactRow mirrors an active contact into the store while it persists.
type ContactRow struct {
	A, B      ids.EntityID
	StartedAt time.Time
}

// ContactCloseRow closes a contact row and records its total duration.
type ContactCloseRow struct {
	A, B      ids.EntityID
	StartedAt time.Time
	Duration  time.Duration
}

// TickBatch accumulates every mutation decided during one tick. It is built
// by the pipeline stages and consumed exactly once at flush; everything in
// it is committed in a single store transaction or not at all.
type TickBatch struct {
	Tick uint64
	Now  time.Time

	Spawns   []EntityRow
	Despawns []ids.EntityID

	// Absolute positions of bodies that moved this tick.
	Positions map[ids.EntityID]cp.Vector

	// Signed pending health delta per target (damage negative, heals
	// positive). Every health mutation rides this map; nothing writes
	// Entity.Health directly.
	Health       map[ids.EntityID]int32
	DamageEvents []DamageRow

	BuffAdds    []BuffRow
	BuffUpdates []BuffRow // stacking refresh
	BuffRemoves []uint64

	Cooldowns []CooldownRow

	ContactOpens  []ContactRow
	ContactCloses []ContactCloseRow

	consumed bool
}

func NewTickBatch(tick uint64, now time.Time) *TickBatch {
	return &TickBatch{
		Tick:      tick,
		Now:       now,
		Positions: make(map[ids.EntityID]cp.Vector, 64),
		Health:    make(map[ids.EntityID]int32, 16),
	}
}

// AddDamage accumulates pending damage for a target this tick.
func (b *TickBatch) AddDamage(target ids.EntityID, amount int32) {
	b.Health[target] -= amount
}

// AddHeal accumulates pending healing for a target this tick.
func (b *TickBatch) AddHeal(target ids.EntityID, amount int32) {
	b.Health[target] += amount
}

// Empty reports whether the batch carries no mutations at all, letting the
// coordinator skip the store round-trip on quiet ticks.
func (b *TickBatch) Empty() bool {
	return len(b.Spawns) == 0 &&
		len(b.Despawns) == 0 &&
		len(b.Positions) == 0 &&
		len(b.Health) == 0 &&
		len(b.DamageEvents) == 0 &&
		len(b.BuffAdds) == 0 &&
		len(b.BuffUpdates) == 0 &&
		len(b.BuffRemoves) == 0 &&
		len(b.Cooldowns) == 0 &&
		len(b.ContactOpens) == 0 &&
		len(b.ContactCloses) == 0
}

// MarkConsumed enforces the consumed-exactly-once contract. The second call
// panics: two flushes of one tick's buffer is a correctness bug, not a
// recoverable condition.
func (b *TickBatch) MarkConsumed() {
	if b.consumed {
		panic("tick batch consumed twice")
	}
	b.consumed = true
}

// Consumed reports whether the batch has been handed to the flusher.
func (b *TickBatch) Consumed() bool {
	return b.consumed
}
