package services

import (
	"context"
	"log/slog"

	"sitepulse/internal/auth"
	"sitepulse/internal/store"
	"sitepulse/internal/websocket"
	"sitepulse/pkg/contracts/domain"
	"sitepulse/pkg/contracts/events"
)

// DefectService drives the defect rectification workflow.
type DefectService struct {
	store  *store.Store
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewDefectService(s *store.Store, hub *websocket.Hub, logger *slog.Logger) *DefectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefectService{store: s, hub: hub, logger: logger.With(slog.String("service", "defect"))}
}

// List returns defects matching the filter, restricted to buildings the
// user may see. Builders additionally only see defects assigned to them.
func (s *DefectService) List(ctx context.Context, user domain.User, filter store.DefectFilter) ([]domain.Defect, error) {
	if user.Role == domain.RoleBuilder {
		filter.AssignedTo = user.Username
	}

	defects, err := s.store.ListDefects(ctx, filter)
	if err != nil {
		return nil, err
	}

	names, err := visibleBuildings(ctx, s.store, user)
	if err != nil {
		return nil, err
	}
	if names == nil {
		return defects, nil
	}

	// Defects carry no building name directly; resolve through their
	// inspection and filter.
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	visibleByInspection := map[string]bool{}
	out := defects[:0]
	for _, d := range defects {
		visible, cached := visibleByInspection[d.InspectionID]
		if !cached {
			insp, err := s.store.GetInspection(ctx, d.InspectionID)
			if err != nil {
				return nil, err
			}
			visible = allowed[insp.BuildingName]
			visibleByInspection[d.InspectionID] = visible
		}
		if visible {
			out = append(out, d)
		}
	}
	return out, nil
}

// Get returns one defect if its building is visible to the user.
func (s *DefectService) Get(ctx context.Context, user domain.User, id int64) (domain.Defect, error) {
	defect, err := s.store.GetDefect(ctx, id)
	if err != nil {
		return domain.Defect{}, err
	}
	insp, err := s.store.GetInspection(ctx, defect.InspectionID)
	if err != nil {
		return domain.Defect{}, err
	}
	visible, err := canSeeBuilding(ctx, s.store, user, insp.BuildingName)
	if err != nil {
		return domain.Defect{}, err
	}
	if !visible {
		return domain.Defect{}, ErrForbidden
	}
	if user.Role == domain.RoleBuilder && defect.AssignedTo != user.Username {
		return domain.Defect{}, ErrForbidden
	}
	return defect, nil
}

// approvalTransitions need the approve permission, not just update.
var approvalTransitions = map[domain.DefectStatus]bool{
	domain.DefectApproved: true,
	domain.DefectRejected: true,
}

// UpdateStatus moves a defect along the workflow, enforcing both the
// transition graph and the caller's permissions.
func (s *DefectService) UpdateStatus(ctx context.Context, user domain.User, id int64, newStatus domain.DefectStatus, note string) (domain.Defect, error) {
	defect, err := s.Get(ctx, user, id)
	if err != nil {
		return domain.Defect{}, err
	}

	required := auth.PermDefectsUpdateStatus
	if approvalTransitions[newStatus] {
		required = auth.PermDefectsApprove
	}
	if !auth.Can(user.Role, required) {
		return domain.Defect{}, ErrForbidden
	}
	if !defect.CanTransition(newStatus) {
		return domain.Defect{}, ErrInvalidTransition
	}

	if err := s.store.UpdateDefectStatus(ctx, id, newStatus, user.Username, note); err != nil {
		return domain.Defect{}, err
	}

	updated, err := s.store.GetDefect(ctx, id)
	if err != nil {
		return domain.Defect{}, err
	}

	s.logger.InfoContext(ctx, "defect status updated",
		slog.Int64("defect_id", id),
		slog.String("from", string(defect.Status)),
		slog.String("to", string(newStatus)),
		slog.String("by", user.Username))
	s.audit(ctx, user.Username, "update_defect_status", string(defect.Status)+" -> "+string(newStatus))

	if s.hub != nil {
		s.hub.PublishDefectUpdate(events.DefectUpdate{
			DefectID:     id,
			InspectionID: updated.InspectionID,
			Status:       string(updated.Status),
			AssignedTo:   updated.AssignedTo,
			ChangedBy:    user.Username,
		})
	}
	return updated, nil
}

// Assign hands a defect to a builder. Open defects move to assigned.
func (s *DefectService) Assign(ctx context.Context, user domain.User, id int64, assignee string) (domain.Defect, error) {
	if !auth.Can(user.Role, auth.PermDefectsUpdateStatus) {
		return domain.Defect{}, ErrForbidden
	}
	if _, err := s.Get(ctx, user, id); err != nil {
		return domain.Defect{}, err
	}
	if _, err := s.store.GetUser(ctx, assignee); err != nil {
		return domain.Defect{}, err
	}

	if err := s.store.AssignDefect(ctx, id, assignee, user.Username); err != nil {
		return domain.Defect{}, err
	}

	updated, err := s.store.GetDefect(ctx, id)
	if err != nil {
		return domain.Defect{}, err
	}

	s.audit(ctx, user.Username, "assign_defect", "assigned to "+assignee)
	if s.hub != nil {
		s.hub.PublishDefectUpdate(events.DefectUpdate{
			DefectID:     id,
			InspectionID: updated.InspectionID,
			Status:       string(updated.Status),
			AssignedTo:   assignee,
			ChangedBy:    user.Username,
		})
	}
	return updated, nil
}

// History returns the recorded workflow transitions of a defect.
func (s *DefectService) History(ctx context.Context, user domain.User, id int64) ([]store.DefectHistoryEntry, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	return s.store.ListDefectHistory(ctx, id)
}

func (s *DefectService) audit(ctx context.Context, username, action, details string) {
	if err := s.store.AppendAudit(ctx, domain.AuditEntry{
		Username: username,
		Action:   action,
		Success:  true,
		Details:  details,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", slog.String("error", err.Error()))
	}
}
