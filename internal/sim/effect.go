package sim

import (
	"time"

	"github.com/jakecoffman/cp"
	"go.uber.org/zap"

	"github.com/riftarena/server/internal/physics"
)

// PhysicsEngine is the surface the pipeline consumes from the rigid-body
// engine. *physics.Engine satisfies it; tests substitute a scripted fake.
type PhysicsEngine interface {
	Step(dt time.Duration)
	DrainEvents() []physics.CollisionEvent
	AddBody(kind physics.BodyKind, def physics.ShapeDef, pos cp.Vector) *cp.Body
	RemoveBody(body *cp.Body)
	Contains(body *cp.Body) bool
	Position(body *cp.Body) cp.Vector
	SetVelocity(body *cp.Body, v cp.Vector)
}

// EffectContext carries the tick-scoped state every skill, buff, and rule
// effect mutates. Effects only ever write to the batch and in-memory
// engines; nothing touches the durable store before flush.
type EffectContext struct {
	Now   time.Time
	Tick  uint64
	Batch *TickBatch
	Reg   *Registry
	Buffs *BuffEngine
	Phys  PhysicsEngine
	Log   *zap.Logger
}
