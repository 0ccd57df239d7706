package store

import (
	"context"
	"fmt"
	"time"

	"sitepulse/pkg/contracts/domain"
)

// AccessGrant is an explicit per-resource permission for a user.
type AccessGrant struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Level        string    `json:"permission_level"`
	GrantedBy    string    `json:"granted_by,omitempty"`
	GrantedAt    time.Time `json:"granted_at"`
}

// GrantAccess records (or replaces) a user's permission on a resource.
func (s *Store) GrantAccess(ctx context.Context, g AccessGrant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_permissions (username, resource_type, resource_id, permission_level, granted_by, granted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username, resource_type, resource_id)
		DO UPDATE SET permission_level = excluded.permission_level,
		              granted_by = excluded.granted_by,
		              granted_at = excluded.granted_at`,
		g.Username, g.ResourceType, g.ResourceID, g.Level, g.GrantedBy, now())
	if err != nil {
		return fmt.Errorf("grant %s access on %s/%s to %q: %w",
			g.Level, g.ResourceType, g.ResourceID, g.Username, translateErr(err))
	}
	return nil
}

// RevokeAccess removes a user's permission on a resource.
func (s *Store) RevokeAccess(ctx context.Context, username, resourceType, resourceID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_permissions
		WHERE username = ? AND resource_type = ? AND resource_id = ?`,
		username, resourceType, resourceID)
	if err != nil {
		return fmt.Errorf("revoke access on %s/%s from %q: %w", resourceType, resourceID, username, err)
	}
	return requireRowsAffected(res, "access grant")
}

// ListGrants returns a user's explicit grants.
func (s *Store) ListGrants(ctx context.Context, username string) ([]AccessGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, resource_type, resource_id, permission_level, granted_by, granted_at
		FROM user_permissions WHERE username = ?
		ORDER BY resource_type, resource_id`, username)
	if err != nil {
		return nil, fmt.Errorf("list grants for %q: %w", username, err)
	}
	defer rows.Close()

	var out []AccessGrant
	for rows.Next() {
		var g AccessGrant
		if err := rows.Scan(&g.ID, &g.Username, &g.ResourceType, &g.ResourceID,
			&g.Level, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AccessibleBuildings resolves the set of building names a user can see
// through explicit grants: direct building grants plus every building
// under granted projects and portfolios.
func (s *Store) AccessibleBuildings(ctx context.Context, username string) ([]domain.Building, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT b.id, b.project_id, b.name, b.address, b.total_units, b.building_type, b.created_at
		FROM buildings b
		LEFT JOIN projects p ON p.id = b.project_id
		WHERE b.id IN (
			SELECT resource_id FROM user_permissions
			WHERE username = ? AND resource_type = 'building')
		   OR b.project_id IN (
			SELECT resource_id FROM user_permissions
			WHERE username = ? AND resource_type = 'project')
		   OR p.portfolio_id IN (
			SELECT resource_id FROM user_permissions
			WHERE username = ? AND resource_type = 'portfolio')
		ORDER BY b.name`,
		username, username, username)
	if err != nil {
		return nil, fmt.Errorf("accessible buildings for %q: %w", username, err)
	}
	defer rows.Close()

	var out []domain.Building
	for rows.Next() {
		var b domain.Building
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.Address,
			&b.TotalUnits, &b.BuildingType, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
