package sim

import (
	"github.com/jakecoffman/cp"

	"github.com/riftarena/server/internal/core/ids"
	"github.com/riftarena/server/internal/physics"
)

// Entity is a simulated game object. All fields are owned by the tick
// pipeline; nothing outside it mutates an Entity directly.
type Entity struct {
	ID     ids.EntityID
	Tag    string // rule-lookup tag: "player", "hazard", "shrine", "wall", ...
	Kind   physics.BodyKind
	Shape  physics.ShapeDef
	Body   *cp.Body
	Health int32

	// Last position flushed to the store, used to diff per tick so
	// unmoved bodies produce no row updates.
	lastPos cp.Vector
}
