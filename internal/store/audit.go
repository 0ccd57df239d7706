package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sitepulse/pkg/contracts/domain"
)

// AppendAudit records a security-relevant action. Audit writes are
// best-effort from the caller's perspective but failures are surfaced
// so the service layer can log them.
func (s *Store) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (username, action, resource, success, ip_address, user_agent, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Username, e.Action, e.Resource, e.Success, e.IP, e.UserAgent, e.Details, ts.UTC())
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// AuditFilter narrows ListAudit. Zero values mean no filter.
type AuditFilter struct {
	Username string
	Action   string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// ListAudit returns audit entries newest first.
func (s *Store) ListAudit(ctx context.Context, f AuditFilter) ([]domain.AuditEntry, error) {
	var conds []string
	var args []interface{}
	if f.Username != "" {
		conds = append(conds, "username = ?")
		args = append(args, f.Username)
	}
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, f.Action)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "timestamp < ?")
		args = append(args, f.Until.UTC())
	}

	query := `SELECT id, username, action, resource, success, ip_address, user_agent, details, timestamp
		FROM audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.Resource, &e.Success,
			&e.IP, &e.UserAgent, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
