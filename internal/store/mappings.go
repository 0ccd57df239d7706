package store

import (
	"context"
	"fmt"
	"log/slog"

	"sitepulse/pkg/contracts/domain"
)

// ActiveMappings returns the active trade mappings keyed by room then
// component, ordered for stable display.
func (s *Store) ActiveMappings(ctx context.Context) ([]domain.TradeMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room, component, trade, created_by, is_active
		FROM trade_mappings WHERE is_active = 1
		ORDER BY room, component`)
	if err != nil {
		return nil, fmt.Errorf("list trade mappings: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeMapping
	for rows.Next() {
		var m domain.TradeMapping
		if err := rows.Scan(&m.ID, &m.Room, &m.Component, &m.Trade, &m.CreatedBy, &m.IsActive); err != nil {
			return nil, fmt.Errorf("scan trade mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ReplaceMappings atomically swaps the active mapping set: the current
// rows are deactivated (kept for history) and the new set inserted as
// active. A failed upload never leaves the table half-replaced.
func (s *Store) ReplaceMappings(ctx context.Context, mappings []domain.TradeMapping, createdBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mapping replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE trade_mappings SET is_active = 0 WHERE is_active = 1"); err != nil {
		return fmt.Errorf("deactivate mappings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trade_mappings (room, component, trade, created_by, is_active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)`)
	if err != nil {
		return fmt.Errorf("prepare mapping insert: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for _, m := range mappings {
		if _, err := stmt.ExecContext(ctx, m.Room, m.Component, m.Trade, createdBy, ts); err != nil {
			return fmt.Errorf("insert mapping %s/%s: %w", m.Room, m.Component, translateErr(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mapping replace: %w", err)
	}

	s.logger.InfoContext(ctx, "trade mappings replaced",
		slog.Int("count", len(mappings)),
		slog.String("created_by", createdBy))
	return nil
}

// UpsertMapping adds or updates a single active mapping.
func (s *Store) UpsertMapping(ctx context.Context, m domain.TradeMapping, createdBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mapping upsert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE trade_mappings SET is_active = 0
		WHERE room = ? AND component = ? AND is_active = 1`, m.Room, m.Component); err != nil {
		return fmt.Errorf("deactivate mapping %s/%s: %w", m.Room, m.Component, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trade_mappings (room, component, trade, created_by, is_active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)`,
		m.Room, m.Component, m.Trade, createdBy, now()); err != nil {
		return fmt.Errorf("insert mapping %s/%s: %w", m.Room, m.Component, translateErr(err))
	}

	return tx.Commit()
}

// DeleteMapping deactivates the active mapping for a (room, component).
func (s *Store) DeleteMapping(ctx context.Context, room, component string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trade_mappings SET is_active = 0
		WHERE room = ? AND component = ? AND is_active = 1`, room, component)
	if err != nil {
		return fmt.Errorf("delete mapping %s/%s: %w", room, component, err)
	}
	return requireRowsAffected(res, fmt.Sprintf("mapping %s/%s", room, component))
}
