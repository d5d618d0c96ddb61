package sim

import (
	"sort"
	"time"

	"github.com/jakecoffman/cp"

	"github.com/riftarena/server/internal/core/ids"
)

// BodySummary is a read-only snapshot of one registered entity.
type BodySummary struct {
	ID       ids.EntityID
	Tag      string
	Kind     string
	Position cp.Vector
	Health   int32
}

// ContactSummary is a read-only snapshot of one active contact.
type ContactSummary struct {
	A, B      ids.EntityID
	StartedAt time.Time
}

// ListBodies returns a snapshot of every registered entity, sorted by id.
// Diagnostics only; must run on the pipeline goroutine (call between ticks
// or from a command handler).
func (c *Coordinator) ListBodies() []BodySummary {
	out := make([]BodySummary, 0, c.reg.Count())
	c.reg.Each(func(ent *Entity) {
		out = append(out, BodySummary{
			ID:       ent.ID,
			Tag:      ent.Tag,
			Kind:     ent.Kind.String(),
			Position: c.phys.Position(ent.Body),
			Health:   ent.Health,
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListContacts returns a snapshot of every active contact. Diagnostics
// only; same threading rule as ListBodies.
func (c *Coordinator) ListContacts() []ContactSummary {
	out := make([]ContactSummary, 0, c.tracker.ActiveCount())
	c.tracker.EachActive(func(a, b ids.EntityID, startedAt time.Time) {
		out = append(out, ContactSummary{A: a, B: b, StartedAt: startedAt})
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// QueryNearby returns the ids of entities within radius of pos, sorted.
// Linear scan over the registry; fine at diagnostic call rates.
func (c *Coordinator) QueryNearby(pos cp.Vector, radius float64) []ids.EntityID {
	var out []ids.EntityID
	c.reg.Each(func(ent *Entity) {
		if c.phys.Position(ent.Body).Distance(pos) <= radius {
			out = append(out, ent.ID)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
