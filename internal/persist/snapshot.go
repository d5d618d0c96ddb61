package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/riftarena/server/internal/core/ids"
	"github.com/riftarena/server/internal/physics"
	"github.com/riftarena/server/internal/sim"
)

// WorldSnapshot is the durable state loaded at boot: the entity set, its
// active buffs and cooldowns, and the highest buff id ever issued.
type WorldSnapshot struct {
	Entities  []sim.EntityRow
	Buffs     []sim.BuffInstance
	Cooldowns []sim.CooldownRow
	MaxBuffID uint64
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// LoadWorld reads the whole restorable state in one pass.
func (r *SnapshotRepo) LoadWorld(ctx context.Context) (*WorldSnapshot, error) {
	snap := &WorldSnapshot{}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, tag, kind, shape_kind, radius, width, height, mass, x, y, health
		 FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			row       sim.EntityRow
			id        int64
			kind      int16
			shapeKind int16
		)
		if err := rows.Scan(&id, &row.Tag, &kind, &shapeKind,
			&row.Shape.Radius, &row.Shape.Width, &row.Shape.Height, &row.Shape.Mass,
			&row.X, &row.Y, &row.Health,
		); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		row.ID = ids.EntityID(id)
		row.Kind = physics.BodyKind(kind)
		row.Shape.Kind = physics.ShapeKind(shapeKind)
		snap.Entities = append(snap.Entities, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	rows.Close()

	buffRows, err := r.db.Pool.Query(ctx,
		`SELECT buff_id, target_id, buff_type, stacks, magnitude, expires_at
		 FROM player_buffs ORDER BY buff_id`)
	if err != nil {
		return nil, fmt.Errorf("load buffs: %w", err)
	}
	defer buffRows.Close()
	for buffRows.Next() {
		var (
			inst      sim.BuffInstance
			target    int64
			expiresAt *time.Time
		)
		if err := buffRows.Scan(&inst.ID, &target, &inst.BuffType,
			&inst.Stacks, &inst.Magnitude, &expiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan buff: %w", err)
		}
		inst.Target = ids.EntityID(target)
		if expiresAt != nil {
			inst.ExpiresAt = *expiresAt
		}
		if inst.ID > snap.MaxBuffID {
			snap.MaxBuffID = inst.ID
		}
		snap.Buffs = append(snap.Buffs, inst)
	}
	if err := buffRows.Err(); err != nil {
		return nil, fmt.Errorf("load buffs: %w", err)
	}
	buffRows.Close()

	cdRows, err := r.db.Pool.Query(ctx,
		`SELECT entity_id, skill_id, last_used_at, base_ms FROM skill_cooldown`)
	if err != nil {
		return nil, fmt.Errorf("load cooldowns: %w", err)
	}
	defer cdRows.Close()
	for cdRows.Next() {
		var (
			row    sim.CooldownRow
			entity int64
		)
		if err := cdRows.Scan(&entity, &row.SkillID, &row.LastUsedAt, &row.BaseMs); err != nil {
			return nil, fmt.Errorf("scan cooldown: %w", err)
		}
		row.EntityID = ids.EntityID(entity)
		snap.Cooldowns = append(snap.Cooldowns, row)
	}
	if err := cdRows.Err(); err != nil {
		return nil, fmt.Errorf("load cooldowns: %w", err)
	}

	return snap, nil
}

// PruneAtBoot clears rows that do not survive a restart: active-contact
// mirrors (the physics space is rebuilt empty) and already-expired damage
// events.
func (r *SnapshotRepo) PruneAtBoot(ctx context.Context, now time.Time) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM contact_event`); err != nil {
		return fmt.Errorf("prune contacts: %w", err)
	}
	if _, err := r.db.Pool.Exec(ctx,
		`DELETE FROM damage_event WHERE expire_at <= $1`, now); err != nil {
		return fmt.Errorf("prune damage events: %w", err)
	}
	return nil
}
