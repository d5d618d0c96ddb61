package sim

import (
	"github.com/jakecoffman/cp"
	"go.uber.org/zap"

	"github.com/riftarena/server/internal/core/ids"
	"github.com/riftarena/server/internal/physics"
)

// Spawner pairs every registry mutation with the matching physics-engine
// body mutation in the same tick. The registry and the space are two views
// of one entity set; Spawner is the only code allowed to touch both.
type Spawner struct {
	log *zap.Logger

	// Entities despawned this tick; their id slots and per-entity state
	// are purged at end of tick by the cleanup stage.
	purgeQueue []ids.EntityID
}

func NewSpawner(log *zap.Logger) *Spawner {
	return &Spawner{log: log}
}

// Spawn creates the physics body, registers the entity, and buffers the
// durable row, atomically from the tick's point of view.
func (s *Spawner) Spawn(ctx *EffectContext, tag string, kind physics.BodyKind, shape physics.ShapeDef, pos cp.Vector, health int32) (*Entity, error) {
	ent := &Entity{
		ID:      ctx.Reg.AllocateID(),
		Tag:     tag,
		Kind:    kind,
		Shape:   shape,
		Health:  health,
		lastPos: pos,
	}
	ent.Body = ctx.Phys.AddBody(kind, shape, pos)
	if err := ctx.Reg.Register(ent); err != nil {
		// Cannot happen with a fresh id; treat as desync and back out
		// the body so the two views stay aligned.
		ctx.Phys.RemoveBody(ent.Body)
		s.log.Error("spawn desync: fresh id already registered",
			zap.Uint64("entity", uint64(ent.ID)), zap.Error(err))
		return nil, ErrDesync
	}
	ctx.Batch.Spawns = append(ctx.Batch.Spawns, EntityRow{
		ID:     ent.ID,
		Tag:    tag,
		Kind:   kind,
		Shape:  shape,
		X:      pos.X,
		Y:      pos.Y,
		Health: health,
	})
	return ent, nil
}

// Restore re-creates an entity loaded from the store at boot: body added,
// id reserved, no spawn row buffered.
func (s *Spawner) Restore(ctx *EffectContext, row EntityRow) (*Entity, error) {
	ent := &Entity{
		ID:      row.ID,
		Tag:     row.Tag,
		Kind:    row.Kind,
		Shape:   row.Shape,
		Health:  row.Health,
		lastPos: cp.Vector{X: row.X, Y: row.Y},
	}
	ctx.Reg.RestoreID(row.ID)
	ent.Body = ctx.Phys.AddBody(row.Kind, row.Shape, cp.Vector{X: row.X, Y: row.Y})
	if err := ctx.Reg.Register(ent); err != nil {
		ctx.Phys.RemoveBody(ent.Body)
		return nil, err
	}
	return ent, nil
}

// Despawn removes the entity from the registry and the physics space in one
// step and buffers the durable delete. The id slot is released at end of
// tick so trailing events this tick still resolve to "recently removed"
// rather than aliasing a new entity.
func (s *Spawner) Despawn(ctx *EffectContext, id ids.EntityID) error {
	ent, err := ctx.Reg.Unregister(id)
	if err != nil {
		return err
	}
	ctx.Phys.RemoveBody(ent.Body)
	ctx.Batch.Despawns = append(ctx.Batch.Despawns, id)
	s.purgeQueue = append(s.purgeQueue, id)
	return nil
}

// ForceRemove handles a desync: the entity is ripped out of whichever side
// still holds it, logged at error level, and never silently ignored.
func (s *Spawner) ForceRemove(ctx *EffectContext, id ids.EntityID) {
	s.log.Error("desync: force-removing entity from both views",
		zap.Uint64("entity", uint64(id)))
	if ent, err := ctx.Reg.Unregister(id); err == nil {
		ctx.Phys.RemoveBody(ent.Body)
	}
	ctx.Batch.Despawns = append(ctx.Batch.Despawns, id)
	s.purgeQueue = append(s.purgeQueue, id)
}

// FlushPurgeQueue clears per-entity state and releases id slots for every
// entity despawned this tick. Runs in the cleanup stage.
func (s *Spawner) FlushPurgeQueue(reg *Registry) {
	for _, id := range s.purgeQueue {
		reg.PurgeEntity(id)
	}
	s.purgeQueue = s.purgeQueue[:0]
}
