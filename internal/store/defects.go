package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sitepulse/pkg/contracts/domain"
)

const defectColumns = `id, inspection_id, unit_number, unit_type, room, component, trade,
	urgency, planned_completion, status, assigned_to, created_at, updated_at`

func scanDefect(row interface{ Scan(...interface{}) error }) (domain.Defect, error) {
	var d domain.Defect
	err := row.Scan(&d.ID, &d.InspectionID, &d.Unit, &d.UnitType, &d.Room, &d.Component,
		&d.Trade, &d.Urgency, &d.PlannedCompletion, &d.Status, &d.AssignedTo,
		&d.CreatedAt, &d.UpdatedAt)
	return d, translateErr(err)
}

// GetDefect fetches a defect by id.
func (s *Store) GetDefect(ctx context.Context, id int64) (domain.Defect, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+defectColumns+" FROM inspection_defects WHERE id = ?", id)
	d, err := scanDefect(row)
	if err != nil {
		return domain.Defect{}, fmt.Errorf("get defect %d: %w", id, err)
	}
	return d, nil
}

// DefectFilter narrows ListDefects. Zero values mean no filter.
type DefectFilter struct {
	InspectionID string
	Status       domain.DefectStatus
	AssignedTo   string
	Trade        string
	Unit         string
}

// ListDefects returns defects matching the filter, urgent first then oldest.
func (s *Store) ListDefects(ctx context.Context, f DefectFilter) ([]domain.Defect, error) {
	var conds []string
	var args []interface{}
	if f.InspectionID != "" {
		conds = append(conds, "inspection_id = ?")
		args = append(args, f.InspectionID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.AssignedTo != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.Trade != "" {
		conds = append(conds, "trade = ?")
		args = append(args, f.Trade)
	}
	if f.Unit != "" {
		conds = append(conds, "unit_number = ?")
		args = append(args, f.Unit)
	}

	query := "SELECT " + defectColumns + " FROM inspection_defects"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY CASE urgency
			WHEN 'Urgent' THEN 0
			WHEN 'High Priority' THEN 1
			ELSE 2
		END, created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list defects: %w", err)
	}
	defer rows.Close()

	var out []domain.Defect
	for rows.Next() {
		d, err := scanDefect(rows)
		if err != nil {
			return nil, fmt.Errorf("scan defect: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDefectStatus moves a defect to a new workflow status and records
// the transition in defect_history. Transition legality is checked by
// the service layer; the store only enforces atomicity.
func (s *Store) UpdateDefectStatus(ctx context.Context, id int64, newStatus domain.DefectStatus, changedBy, notes string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin defect update: %w", err)
	}
	defer tx.Rollback()

	var oldStatus string
	if err := tx.QueryRowContext(ctx,
		"SELECT status FROM inspection_defects WHERE id = ?", id).Scan(&oldStatus); err != nil {
		return fmt.Errorf("defect %d: %w", id, translateErr(err))
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE inspection_defects SET status = ?, updated_at = ? WHERE id = ?",
		string(newStatus), now(), id); err != nil {
		return fmt.Errorf("update defect %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO defect_history (defect_id, old_status, new_status, changed_by, notes, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, oldStatus, string(newStatus), changedBy, notes, now()); err != nil {
		return fmt.Errorf("record defect history %d: %w", id, err)
	}

	return tx.Commit()
}

// AssignDefect sets the assignee and moves the defect to assigned when
// it is still open.
func (s *Store) AssignDefect(ctx context.Context, id int64, assignee, changedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin defect assign: %w", err)
	}
	defer tx.Rollback()

	var oldStatus string
	if err := tx.QueryRowContext(ctx,
		"SELECT status FROM inspection_defects WHERE id = ?", id).Scan(&oldStatus); err != nil {
		return fmt.Errorf("defect %d: %w", id, translateErr(err))
	}

	newStatus := oldStatus
	if oldStatus == string(domain.DefectOpen) {
		newStatus = string(domain.DefectAssigned)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE inspection_defects SET assigned_to = ?, status = ?, updated_at = ? WHERE id = ?",
		assignee, newStatus, now(), id); err != nil {
		return fmt.Errorf("assign defect %d: %w", id, err)
	}

	if newStatus != oldStatus {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO defect_history (defect_id, old_status, new_status, changed_by, notes, changed_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, oldStatus, newStatus, changedBy, "assigned to "+assignee, now()); err != nil {
			return fmt.Errorf("record defect history %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// DefectHistoryEntry is one recorded workflow transition.
type DefectHistoryEntry struct {
	ID        int64               `json:"id"`
	DefectID  int64               `json:"defect_id"`
	OldStatus domain.DefectStatus `json:"old_status"`
	NewStatus domain.DefectStatus `json:"new_status"`
	ChangedBy string              `json:"changed_by"`
	Notes     string              `json:"notes,omitempty"`
	ChangedAt time.Time           `json:"changed_at"`
}

// ListDefectHistory returns a defect's transitions oldest first.
func (s *Store) ListDefectHistory(ctx context.Context, defectID int64) ([]DefectHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, defect_id, old_status, new_status, changed_by, notes, changed_at
		FROM defect_history WHERE defect_id = ? ORDER BY changed_at, id`, defectID)
	if err != nil {
		return nil, fmt.Errorf("list defect history %d: %w", defectID, err)
	}
	defer rows.Close()

	var out []DefectHistoryEntry
	for rows.Next() {
		var e DefectHistoryEntry
		if err := rows.Scan(&e.ID, &e.DefectID, &e.OldStatus, &e.NewStatus,
			&e.ChangedBy, &e.Notes, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan defect history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
