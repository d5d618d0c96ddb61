package physics

import (
	"time"

	"github.com/jakecoffman/cp"
	"go.uber.org/zap"
)

// BodyKind selects the rigid-body behavior of a spawned entity.
type BodyKind uint8

const (
	KindStatic BodyKind = iota
	KindDynamic
	KindKinematic
)

func (k BodyKind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindDynamic:
		return "dynamic"
	case KindKinematic:
		return "kinematic"
	}
	return "unknown"
}

// ShapeKind selects the collider geometry.
type ShapeKind uint8

const (
	ShapeCircle ShapeKind = iota
	ShapeBox
)

// ShapeDef describes the collider attached to a body. Sensor shapes generate
// collision events without producing a physical response (damage zones,
// auras).
type ShapeDef struct {
	Kind   ShapeKind
	Radius float64 // circle
	Width  float64 // box
	Height float64 // box
	Mass   float64 // dynamic bodies only
	Sensor bool
}

// EventKind tags a raw collision event.
type EventKind uint8

const (
	EventBegin EventKind = iota
	EventEnd
)

// CollisionEvent is one raw begin/end touch event referencing engine-native
// body handles. The simulation layer translates handles back to entity ids.
type CollisionEvent struct {
	A, B *cp.Body
	Kind EventKind
}

// All entity shapes share one collision type so a single handler pair
// observes every begin/separate in the space.
const ctEntity cp.CollisionType = 1

// Engine wraps a Chipmunk2D space. It buffers raw collision events during
// Step and hands them out once per tick via DrainEvents. Single-goroutine
// access only (the tick pipeline owns it).
type Engine struct {
	space  *cp.Space
	shapes map[*cp.Body][]*cp.Shape

	queue     []CollisionEvent
	maxEvents int
	dropped   int

	log *zap.Logger
}

func NewEngine(gravity cp.Vector, iterations, maxEvents int, log *zap.Logger) *Engine {
	space := cp.NewSpace()
	space.Iterations = uint(iterations)
	space.SetGravity(gravity)

	e := &Engine{
		space:     space,
		shapes:    make(map[*cp.Body][]*cp.Shape),
		queue:     make([]CollisionEvent, 0, 64),
		maxEvents: maxEvents,
		log:       log,
	}

	handler := space.NewCollisionHandler(ctEntity, ctEntity)
	handler.UserData = e
	handler.BeginFunc = func(arb *cp.Arbiter, _ *cp.Space, userData interface{}) bool {
		eng, ok := userData.(*Engine)
		if !ok {
			return true
		}
		sa, sb := arb.Shapes()
		eng.push(CollisionEvent{A: sa.Body(), B: sb.Body(), Kind: EventBegin})
		return true
	}
	handler.SeparateFunc = func(arb *cp.Arbiter, _ *cp.Space, userData interface{}) {
		eng, ok := userData.(*Engine)
		if !ok {
			return
		}
		sa, sb := arb.Shapes()
		eng.push(CollisionEvent{A: sa.Body(), B: sb.Body(), Kind: EventEnd})
	}

	return e
}

func (e *Engine) push(ev CollisionEvent) {
	if e.maxEvents > 0 && len(e.queue) >= e.maxEvents {
		e.dropped++
		return
	}
	e.queue = append(e.queue, ev)
}

// AddBody creates a body plus its collider and inserts both into the space.
// The returned *cp.Body is the opaque handle the registry maps to an entity
// id.
func (e *Engine) AddBody(kind BodyKind, def ShapeDef, pos cp.Vector) *cp.Body {
	var body *cp.Body
	switch kind {
	case KindStatic:
		body = cp.NewStaticBody()
	case KindKinematic:
		body = cp.NewKinematicBody()
	default:
		mass := def.Mass
		if mass <= 0 {
			mass = 1
		}
		var moment float64
		if def.Kind == ShapeCircle {
			moment = cp.MomentForCircle(mass, 0, def.Radius, cp.Vector{})
		} else {
			moment = cp.MomentForBox(mass, def.Width, def.Height)
		}
		body = cp.NewBody(mass, moment)
	}
	body.SetPosition(pos)
	e.space.AddBody(body)

	var shape *cp.Shape
	if def.Kind == ShapeCircle {
		shape = cp.NewCircle(body, def.Radius, cp.Vector{})
	} else {
		shape = cp.NewBox(body, def.Width, def.Height, 0)
	}
	shape.SetCollisionType(ctEntity)
	shape.SetSensor(def.Sensor)
	shape.SetFriction(0.7)
	e.space.AddShape(shape)
	e.shapes[body] = append(e.shapes[body], shape)

	return body
}

// RemoveBody removes the body and all its shapes from the space. A body that
// was never added is a no-op; the caller's registry is the authority on
// whether the handle was live.
func (e *Engine) RemoveBody(body *cp.Body) {
	shapes, ok := e.shapes[body]
	if !ok {
		return
	}
	for _, s := range shapes {
		e.space.RemoveShape(s)
	}
	delete(e.shapes, body)
	e.space.RemoveBody(body)
}

// Contains reports whether the engine still owns the handle. Used by the
// desync check when registry and space views are reconciled.
func (e *Engine) Contains(body *cp.Body) bool {
	_, ok := e.shapes[body]
	return ok
}

func (e *Engine) Step(dt time.Duration) {
	e.space.Step(dt.Seconds())
}

// DrainEvents returns one tick's worth of raw collision events and resets
// the buffer. Not restartable: a second call in the same tick returns nil.
func (e *Engine) DrainEvents() []CollisionEvent {
	if e.dropped > 0 {
		e.log.Warn("collision event buffer full, events dropped",
			zap.Int("dropped", e.dropped),
			zap.Int("capacity", e.maxEvents))
		e.dropped = 0
	}
	out := e.queue
	e.queue = make([]CollisionEvent, 0, cap(out))
	return out
}

func (e *Engine) Position(body *cp.Body) cp.Vector {
	return body.Position()
}

// SetVelocity drives movement requests for dynamic and kinematic bodies.
func (e *Engine) SetVelocity(body *cp.Body, v cp.Vector) {
	body.SetVelocityVector(v)
}

// BodyCount reports how many bodies the engine currently owns.
func (e *Engine) BodyCount() int {
	return len(e.shapes)
}
