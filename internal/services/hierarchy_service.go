package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/domain"
)

// HierarchyService manages the portfolio, project and building tree.
type HierarchyService struct {
	store  *store.Store
	logger *slog.Logger
}

func NewHierarchyService(s *store.Store, logger *slog.Logger) *HierarchyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HierarchyService{store: s, logger: logger.With(slog.String("service", "hierarchy"))}
}

// CreatePortfolio adds a portfolio and returns it with its new ID.
func (s *HierarchyService) CreatePortfolio(ctx context.Context, actor domain.User, p domain.Portfolio) (domain.Portfolio, error) {
	p.ID = uuid.New().String()
	if err := s.store.CreatePortfolio(ctx, p); err != nil {
		return domain.Portfolio{}, err
	}
	s.audit(ctx, actor.Username, "create_portfolio", p.Name)
	return s.store.GetPortfolio(ctx, p.ID)
}

func (s *HierarchyService) ListPortfolios(ctx context.Context) ([]domain.Portfolio, error) {
	return s.store.ListPortfolios(ctx)
}

func (s *HierarchyService) GetPortfolio(ctx context.Context, id string) (domain.Portfolio, error) {
	return s.store.GetPortfolio(ctx, id)
}

// DeletePortfolio removes a portfolio and, through the schema's
// cascades, its projects, buildings and their inspections.
func (s *HierarchyService) DeletePortfolio(ctx context.Context, actor domain.User, id string) error {
	if err := s.store.DeletePortfolio(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor.Username, "delete_portfolio", id)
	return nil
}

// CreateProject adds a project under an existing portfolio.
func (s *HierarchyService) CreateProject(ctx context.Context, actor domain.User, p domain.Project) (domain.Project, error) {
	if _, err := s.store.GetPortfolio(ctx, p.PortfolioID); err != nil {
		return domain.Project{}, err
	}
	p.ID = uuid.New().String()
	if p.Status == "" {
		p.Status = "active"
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	s.audit(ctx, actor.Username, "create_project", p.Name)
	return s.store.GetProject(ctx, p.ID)
}

func (s *HierarchyService) ListProjects(ctx context.Context, portfolioID string) ([]domain.Project, error) {
	return s.store.ListProjects(ctx, portfolioID)
}

func (s *HierarchyService) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return s.store.GetProject(ctx, id)
}

func (s *HierarchyService) DeleteProject(ctx context.Context, actor domain.User, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor.Username, "delete_project", id)
	return nil
}

// CreateBuilding adds a building under an existing project.
func (s *HierarchyService) CreateBuilding(ctx context.Context, actor domain.User, b domain.Building) (domain.Building, error) {
	if _, err := s.store.GetProject(ctx, b.ProjectID); err != nil {
		return domain.Building{}, err
	}
	b.ID = uuid.New().String()
	if err := s.store.CreateBuilding(ctx, b); err != nil {
		return domain.Building{}, err
	}
	s.audit(ctx, actor.Username, "create_building", b.Name)
	return s.store.GetBuilding(ctx, b.ID)
}

// ListBuildings returns buildings under a project, or the user's
// visible buildings across all projects when projectID is empty.
func (s *HierarchyService) ListBuildings(ctx context.Context, user domain.User, projectID string) ([]domain.Building, error) {
	names, err := visibleBuildings(ctx, s.store, user)
	if err != nil {
		return nil, err
	}
	buildings, err := s.store.ListBuildings(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if names == nil {
		return buildings, nil
	}
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	out := buildings[:0]
	for _, b := range buildings {
		if allowed[b.Name] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *HierarchyService) GetBuilding(ctx context.Context, id string) (domain.Building, error) {
	return s.store.GetBuilding(ctx, id)
}

func (s *HierarchyService) DeleteBuilding(ctx context.Context, actor domain.User, id string) error {
	if err := s.store.DeleteBuilding(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor.Username, "delete_building", id)
	return nil
}

func (s *HierarchyService) audit(ctx context.Context, username, action, resource string) {
	if err := s.store.AppendAudit(ctx, domain.AuditEntry{
		Username: username,
		Action:   action,
		Resource: resource,
		Success:  true,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", slog.String("error", err.Error()))
	}
}
