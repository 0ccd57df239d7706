package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"sitepulse/pkg/contracts/domain"
)

// SaveInspection persists a processed upload in one transaction: any
// previously active inspection for the same building is deactivated,
// the inspection row is inserted with its metrics snapshot, and the
// melted items plus their defect rows are batch inserted. Either the
// whole upload lands or none of it does.
func (s *Store) SaveInspection(ctx context.Context, insp domain.Inspection, items []domain.InspectionItem) error {
	metricsJSON := []byte("{}")
	if insp.Metrics != nil {
		var err error
		metricsJSON, err = json.Marshal(insp.Metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save inspection: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE processed_inspections SET is_active = 0
		WHERE building_name = ? AND is_active = 1`, insp.BuildingName); err != nil {
		return fmt.Errorf("deactivate previous inspections: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO processed_inspections
			(id, building_id, building_name, address, inspection_date,
			 uploaded_by, processed_at, is_active, source_file, metrics_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		insp.ID, nullString(insp.BuildingID), insp.BuildingName, insp.Address,
		insp.InspectionDate, insp.UploadedBy, insp.ProcessedAt.UTC(),
		insp.SourceFile, string(metricsJSON)); err != nil {
		return fmt.Errorf("insert inspection %q: %w", insp.ID, translateErr(err))
	}

	itemStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inspection_items
			(inspection_id, unit_number, unit_type, room, component, trade,
			 status_class, urgency, planned_completion)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare item insert: %w", err)
	}
	defer itemStmt.Close()

	defectStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inspection_defects
			(inspection_id, unit_number, unit_type, room, component, trade,
			 urgency, planned_completion, status, assigned_to, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'open', '', ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare defect insert: %w", err)
	}
	defer defectStmt.Close()

	ts := now()
	defects := 0
	for _, item := range items {
		if _, err := itemStmt.ExecContext(ctx,
			insp.ID, item.Unit, item.UnitType, item.Room, item.Component, item.Trade,
			string(item.StatusClass), string(item.Urgency), nullTime(item.PlannedCompletion)); err != nil {
			return fmt.Errorf("insert item %s/%s/%s: %w", item.Unit, item.Room, item.Component, err)
		}
		if item.IsDefect() {
			if _, err := defectStmt.ExecContext(ctx,
				insp.ID, item.Unit, item.UnitType, item.Room, item.Component, item.Trade,
				string(item.Urgency), nullTime(item.PlannedCompletion), ts, ts); err != nil {
				return fmt.Errorf("insert defect %s/%s/%s: %w", item.Unit, item.Room, item.Component, err)
			}
			defects++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit inspection %q: %w", insp.ID, err)
	}

	s.logger.InfoContext(ctx, "inspection saved",
		slog.String("inspection_id", insp.ID),
		slog.String("building", insp.BuildingName),
		slog.Int("items", len(items)),
		slog.Int("defects", defects))
	return nil
}

const inspectionColumns = `id, COALESCE(building_id, ''), building_name, address,
	inspection_date, uploaded_by, processed_at, is_active, source_file, metrics_json`

func scanInspection(row interface{ Scan(...interface{}) error }) (domain.Inspection, error) {
	var insp domain.Inspection
	var metricsJSON string
	err := row.Scan(&insp.ID, &insp.BuildingID, &insp.BuildingName, &insp.Address,
		&insp.InspectionDate, &insp.UploadedBy, &insp.ProcessedAt, &insp.IsActive,
		&insp.SourceFile, &metricsJSON)
	if err != nil {
		return domain.Inspection{}, translateErr(err)
	}
	if metricsJSON != "" && metricsJSON != "{}" {
		var m domain.Metrics
		if err := json.Unmarshal([]byte(metricsJSON), &m); err != nil {
			return domain.Inspection{}, fmt.Errorf("unmarshal metrics for %q: %w", insp.ID, err)
		}
		insp.Metrics = &m
	}
	return insp, nil
}

// GetInspection fetches an inspection with its metrics snapshot.
func (s *Store) GetInspection(ctx context.Context, id string) (domain.Inspection, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+inspectionColumns+" FROM processed_inspections WHERE id = ?", id)
	insp, err := scanInspection(row)
	if err != nil {
		return domain.Inspection{}, fmt.Errorf("get inspection %q: %w", id, err)
	}
	return insp, nil
}

// GetActiveInspection fetches the active inspection for a building name.
func (s *Store) GetActiveInspection(ctx context.Context, buildingName string) (domain.Inspection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+inspectionColumns+` FROM processed_inspections
		WHERE building_name = ? AND is_active = 1
		ORDER BY processed_at DESC LIMIT 1`, buildingName)
	insp, err := scanInspection(row)
	if err != nil {
		return domain.Inspection{}, fmt.Errorf("get active inspection for %q: %w", buildingName, err)
	}
	return insp, nil
}

// ListInspections returns inspections newest first. When activeOnly is
// set, superseded uploads are excluded. buildingNames narrows the list
// for users with assigned-only visibility; empty means no filter.
func (s *Store) ListInspections(ctx context.Context, activeOnly bool, buildingNames []string) ([]domain.Inspection, error) {
	query := "SELECT " + inspectionColumns + " FROM processed_inspections"
	var conds []string
	var args []interface{}
	if activeOnly {
		conds = append(conds, "is_active = 1")
	}
	if len(buildingNames) > 0 {
		placeholders := ""
		for i, name := range buildingNames {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, name)
		}
		conds = append(conds, "building_name IN ("+placeholders+")")
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY processed_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inspections: %w", err)
	}
	defer rows.Close()

	var out []domain.Inspection
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inspection: %w", err)
		}
		out = append(out, insp)
	}
	return out, rows.Err()
}

// ListItems returns the melted items of an inspection.
func (s *Store) ListItems(ctx context.Context, inspectionID string) ([]domain.InspectionItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inspection_id, unit_number, unit_type, room, component, trade,
		       status_class, urgency, planned_completion
		FROM inspection_items
		WHERE inspection_id = ?
		ORDER BY unit_number, room, component`, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("list items for %q: %w", inspectionID, err)
	}
	defer rows.Close()

	var out []domain.InspectionItem
	for rows.Next() {
		var item domain.InspectionItem
		if err := rows.Scan(&item.ID, &item.InspectionID, &item.Unit, &item.UnitType,
			&item.Room, &item.Component, &item.Trade,
			&item.StatusClass, &item.Urgency, &item.PlannedCompletion); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteInspection removes an inspection; items and defects cascade.
func (s *Store) DeleteInspection(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM processed_inspections WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete inspection %q: %w", id, err)
	}
	return requireRowsAffected(res, "inspection "+id)
}
