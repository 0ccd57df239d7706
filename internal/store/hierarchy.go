package store

import (
	"context"
	"fmt"

	"sitepulse/pkg/contracts/domain"
)

// CreatePortfolio inserts a portfolio.
func (s *Store) CreatePortfolio(ctx context.Context, p domain.Portfolio) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolios (id, name, description, owner_username, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, nullString(p.Owner), now())
	if err != nil {
		return fmt.Errorf("create portfolio %q: %w", p.ID, translateErr(err))
	}
	return nil
}

// GetPortfolio fetches a portfolio by id.
func (s *Store) GetPortfolio(ctx context.Context, id string) (domain.Portfolio, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, COALESCE(owner_username, ''), created_at
		FROM portfolios WHERE id = ?`, id)

	var p domain.Portfolio
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Owner, &p.CreatedAt); err != nil {
		return domain.Portfolio{}, fmt.Errorf("get portfolio %q: %w", id, translateErr(err))
	}
	return p, nil
}

// ListPortfolios returns all portfolios ordered by name.
func (s *Store) ListPortfolios(ctx context.Context) ([]domain.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, COALESCE(owner_username, ''), created_at
		FROM portfolios ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	defer rows.Close()

	var out []domain.Portfolio
	for rows.Next() {
		var p domain.Portfolio
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Owner, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePortfolio removes a portfolio; projects and buildings cascade.
func (s *Store) DeletePortfolio(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM portfolios WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete portfolio %q: %w", id, err)
	}
	return requireRowsAffected(res, "portfolio "+id)
}

// CreateProject inserts a project under a portfolio.
func (s *Store) CreateProject(ctx context.Context, p domain.Project) error {
	status := p.Status
	if status == "" {
		status = "active"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, portfolio_id, name, description, status, manager_username, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PortfolioID, p.Name, p.Description, status, nullString(p.Manager), now())
	if err != nil {
		return fmt.Errorf("create project %q: %w", p.ID, translateErr(err))
	}
	return nil
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, portfolio_id, name, description, status, COALESCE(manager_username, ''), created_at
		FROM projects WHERE id = ?`, id)

	var p domain.Project
	if err := row.Scan(&p.ID, &p.PortfolioID, &p.Name, &p.Description, &p.Status, &p.Manager, &p.CreatedAt); err != nil {
		return domain.Project{}, fmt.Errorf("get project %q: %w", id, translateErr(err))
	}
	return p, nil
}

// ListProjects returns projects, optionally filtered by portfolio.
func (s *Store) ListProjects(ctx context.Context, portfolioID string) ([]domain.Project, error) {
	query := `
		SELECT id, portfolio_id, name, description, status, COALESCE(manager_username, ''), created_at
		FROM projects`
	var args []interface{}
	if portfolioID != "" {
		query += " WHERE portfolio_id = ?"
		args = append(args, portfolioID)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.PortfolioID, &p.Name, &p.Description, &p.Status, &p.Manager, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project; its buildings cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project %q: %w", id, err)
	}
	return requireRowsAffected(res, "project "+id)
}

// CreateBuilding inserts a building under a project.
func (s *Store) CreateBuilding(ctx context.Context, b domain.Building) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO buildings (id, project_id, name, address, total_units, building_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ProjectID, b.Name, b.Address, b.TotalUnits, b.BuildingType, now())
	if err != nil {
		return fmt.Errorf("create building %q: %w", b.ID, translateErr(err))
	}
	return nil
}

// GetBuilding fetches a building by id.
func (s *Store) GetBuilding(ctx context.Context, id string) (domain.Building, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, address, total_units, building_type, created_at
		FROM buildings WHERE id = ?`, id)

	var b domain.Building
	if err := row.Scan(&b.ID, &b.ProjectID, &b.Name, &b.Address, &b.TotalUnits, &b.BuildingType, &b.CreatedAt); err != nil {
		return domain.Building{}, fmt.Errorf("get building %q: %w", id, translateErr(err))
	}
	return b, nil
}

// GetBuildingByName fetches a building by its display name. Inspection
// uploads identify buildings by name, not id.
func (s *Store) GetBuildingByName(ctx context.Context, name string) (domain.Building, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, address, total_units, building_type, created_at
		FROM buildings WHERE name = ?`, name)

	var b domain.Building
	if err := row.Scan(&b.ID, &b.ProjectID, &b.Name, &b.Address, &b.TotalUnits, &b.BuildingType, &b.CreatedAt); err != nil {
		return domain.Building{}, fmt.Errorf("get building %q: %w", name, translateErr(err))
	}
	return b, nil
}

// ListBuildings returns buildings, optionally filtered by project.
func (s *Store) ListBuildings(ctx context.Context, projectID string) ([]domain.Building, error) {
	query := `
		SELECT id, project_id, name, address, total_units, building_type, created_at
		FROM buildings`
	var args []interface{}
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	defer rows.Close()

	var out []domain.Building
	for rows.Next() {
		var b domain.Building
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.Address, &b.TotalUnits, &b.BuildingType, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBuilding removes a building.
func (s *Store) DeleteBuilding(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM buildings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete building %q: %w", id, err)
	}
	return requireRowsAffected(res, "building "+id)
}

func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
