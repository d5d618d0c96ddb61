package sim

import (
	"github.com/jakecoffman/cp"

	"github.com/riftarena/server/internal/core/ids"
)

// Removable is implemented by every per-entity state store (cooldowns,
// buffs, contacts) so a despawn clears the entity everywhere in one pass.
type Removable interface {
	RemoveEntity(id ids.EntityID)
}

// Registry owns the mapping from stable entity ids to physics-engine body
// handles. The registry and the physics space are two views of one entity
// set: every Register/Unregister is paired, same tick, with the engine-side
// body add/remove by the spawn and despawn paths.
type Registry struct {
	pool   *ids.Pool
	byID   map[ids.EntityID]*Entity
	byBody map[*cp.Body]ids.EntityID
	stores []Removable
}

func NewRegistry() *Registry {
	return &Registry{
		pool:   ids.NewPool(),
		byID:   make(map[ids.EntityID]*Entity, 256),
		byBody: make(map[*cp.Body]ids.EntityID, 256),
	}
}

// AttachStore registers a per-entity state store for despawn cleanup.
func (r *Registry) AttachStore(s Removable) {
	r.stores = append(r.stores, s)
}

// AllocateID hands out a fresh entity id for a spawn.
func (r *Registry) AllocateID() ids.EntityID {
	return r.pool.Allocate()
}

// RestoreID reserves an id loaded from the store at boot so later spawns
// never collide with it.
func (r *Registry) RestoreID(id ids.EntityID) {
	r.pool.Reserve(id)
}

// Register binds an entity to its body handle.
func (r *Registry) Register(ent *Entity) error {
	if _, dup := r.byID[ent.ID]; dup {
		return ErrRegistered
	}
	r.byID[ent.ID] = ent
	r.byBody[ent.Body] = ent.ID
	return nil
}

// Unregister removes the binding and returns the entity so the caller can
// remove its body from the physics space in the same tick.
func (r *Registry) Unregister(id ids.EntityID) (*Entity, error) {
	ent, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byBody, ent.Body)
	return ent, nil
}

// Lookup resolves an entity id. O(1).
func (r *Registry) Lookup(id ids.EntityID) (*Entity, error) {
	ent, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ent, nil
}

// LookupByBody resolves an engine-native handle back to its entity id.
// O(1). Used when translating raw collision events.
func (r *Registry) LookupByBody(body *cp.Body) (ids.EntityID, bool) {
	id, ok := r.byBody[body]
	return id, ok
}

// PurgeEntity clears the entity from every attached store and releases its
// id slot. Called at end of tick for each despawn.
func (r *Registry) PurgeEntity(id ids.EntityID) {
	for _, s := range r.stores {
		s.RemoveEntity(id)
	}
	r.pool.Release(id)
}

// Each visits every registered entity. Iteration order is unspecified.
func (r *Registry) Each(fn func(*Entity)) {
	for _, ent := range r.byID {
		fn(ent)
	}
}

// Count returns the number of registered entities.
func (r *Registry) Count() int {
	return len(r.byID)
}
