package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/riftarena/server/internal/sim"
)

// TickWriter commits one tick's batch in a single transaction. The
// coordinator is the only caller; a failed commit leaves the store exactly
// as the previous tick left it.
type TickWriter struct {
	db *DB
}

func NewTickWriter(db *DB) *TickWriter {
	return &TickWriter{db: db}
}

func (w *TickWriter) Flush(ctx context.Context, batch *sim.TickBatch) error {
	tx, err := w.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flush begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Insert-or-update keeps a replayed batch idempotent after a retry
	// that raced its own commit.
	for _, row := range batch.Spawns {
		if _, err := tx.Exec(ctx,
			`INSERT INTO entities (id, tag, kind, shape_kind, radius, width, height, mass, x, y, health)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			 ON CONFLICT (id) DO UPDATE SET
			   tag = EXCLUDED.tag, kind = EXCLUDED.kind, shape_kind = EXCLUDED.shape_kind,
			   radius = EXCLUDED.radius, width = EXCLUDED.width, height = EXCLUDED.height,
			   mass = EXCLUDED.mass, x = EXCLUDED.x, y = EXCLUDED.y, health = EXCLUDED.health`,
			int64(row.ID), row.Tag, int16(row.Kind), int16(row.Shape.Kind),
			row.Shape.Radius, row.Shape.Width, row.Shape.Height, row.Shape.Mass,
			row.X, row.Y, row.Health,
		); err != nil {
			return fmt.Errorf("flush spawn: %w", err)
		}
	}

	for id, pos := range batch.Positions {
		if _, err := tx.Exec(ctx,
			`UPDATE entities SET x = $2, y = $3 WHERE id = $1`,
			int64(id), pos.X, pos.Y,
		); err != nil {
			return fmt.Errorf("flush position: %w", err)
		}
	}

	// Signed deltas: damage and heals alike ride the batch.
	for id, delta := range batch.Health {
		if _, err := tx.Exec(ctx,
			`UPDATE entities SET health = GREATEST(health + $2, 0) WHERE id = $1`,
			int64(id), delta,
		); err != nil {
			return fmt.Errorf("flush health: %w", err)
		}
	}

	for _, row := range batch.DamageEvents {
		if _, err := tx.Exec(ctx,
			`INSERT INTO damage_event (source_id, target_id, skill_id, amount, expire_at)
			 VALUES ($1,$2,$3,$4,$5)`,
			int64(row.SourceID), int64(row.TargetID), row.SkillID, row.Amount, row.ExpireAt,
		); err != nil {
			return fmt.Errorf("flush damage event: %w", err)
		}
	}

	// Short-lived rows expire against tick time, not wall time at commit.
	if _, err := tx.Exec(ctx,
		`DELETE FROM damage_event WHERE expire_at <= $1`, batch.Now,
	); err != nil {
		return fmt.Errorf("flush damage expiry: %w", err)
	}

	for _, row := range batch.BuffAdds {
		if _, err := tx.Exec(ctx,
			`INSERT INTO player_buffs (buff_id, target_id, buff_type, stacks, magnitude, expires_at)
			 VALUES ($1,$2,$3,$4,$5,$6)
			 ON CONFLICT (buff_id) DO UPDATE SET
			   stacks = EXCLUDED.stacks, magnitude = EXCLUDED.magnitude, expires_at = EXCLUDED.expires_at`,
			row.BuffID, int64(row.TargetID), row.BuffType, row.Stacks, row.Magnitude,
			nullableTime(row.ExpiresAt),
		); err != nil {
			return fmt.Errorf("flush buff add: %w", err)
		}
	}

	for _, row := range batch.BuffUpdates {
		if _, err := tx.Exec(ctx,
			`UPDATE player_buffs SET stacks = $2, expires_at = $3 WHERE buff_id = $1`,
			row.BuffID, row.Stacks, nullableTime(row.ExpiresAt),
		); err != nil {
			return fmt.Errorf("flush buff update: %w", err)
		}
	}

	for _, buffID := range batch.BuffRemoves {
		if _, err := tx.Exec(ctx,
			`DELETE FROM player_buffs WHERE buff_id = $1`, buffID,
		); err != nil {
			return fmt.Errorf("flush buff remove: %w", err)
		}
	}

	for _, row := range batch.Cooldowns {
		if _, err := tx.Exec(ctx,
			`INSERT INTO skill_cooldown (entity_id, skill_id, last_used_at, base_ms)
			 VALUES ($1,$2,$3,$4)
			 ON CONFLICT (entity_id, skill_id) DO UPDATE SET
			   last_used_at = EXCLUDED.last_used_at, base_ms = EXCLUDED.base_ms`,
			int64(row.EntityID), row.SkillID, row.LastUsedAt, row.BaseMs,
		); err != nil {
			return fmt.Errorf("flush cooldown: %w", err)
		}
	}

	// Closes run before opens: a pair that separated and re-collided
	// within the same tick must end with its fresh row present, not
	// deleted by the stale close.
	for _, row := range batch.ContactCloses {
		if _, err := tx.Exec(ctx,
			`DELETE FROM contact_event WHERE a = $1 AND b = $2`,
			int64(row.A), int64(row.B),
		); err != nil {
			return fmt.Errorf("flush contact close: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO contact_duration (a, b, started_at, ended_at, duration_ms)
			 VALUES ($1,$2,$3,$4,$5)`,
			int64(row.A), int64(row.B), row.StartedAt,
			row.StartedAt.Add(row.Duration), row.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("flush contact duration: %w", err)
		}
	}

	for _, row := range batch.ContactOpens {
		if _, err := tx.Exec(ctx,
			`INSERT INTO contact_event (a, b, started_at) VALUES ($1,$2,$3)
			 ON CONFLICT (a, b) DO UPDATE SET started_at = EXCLUDED.started_at`,
			int64(row.A), int64(row.B), row.StartedAt,
		); err != nil {
			return fmt.Errorf("flush contact open: %w", err)
		}
	}

	for _, id := range batch.Despawns {
		eid := int64(id)
		if _, err := tx.Exec(ctx, `DELETE FROM entities WHERE id = $1`, eid); err != nil {
			return fmt.Errorf("flush despawn: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM player_buffs WHERE target_id = $1`, eid); err != nil {
			return fmt.Errorf("flush despawn buffs: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM skill_cooldown WHERE entity_id = $1`, eid); err != nil {
			return fmt.Errorf("flush despawn cooldowns: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM contact_event WHERE a = $1 OR b = $1`, eid); err != nil {
			return fmt.Errorf("flush despawn contacts: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// nullableTime maps the zero time (held-until-removed buffs) to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
