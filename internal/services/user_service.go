package services

import (
	"context"
	"log/slog"

	"sitepulse/internal/auth"
	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/domain"
)

// UserService handles account administration and access grants.
type UserService struct {
	store  *store.Store
	logger *slog.Logger
}

func NewUserService(s *store.Store, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{store: s, logger: logger.With(slog.String("service", "user"))}
}

// Create registers a new account.
func (s *UserService) Create(ctx context.Context, actor domain.User, u domain.User, password string) error {
	if err := auth.ValidatePasswordPolicy(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u.IsActive = true
	if err := s.store.CreateUser(ctx, u, hash); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user created",
		slog.String("username", u.Username),
		slog.String("role", string(u.Role)),
		slog.String("by", actor.Username))
	s.audit(ctx, actor.Username, "create_user", u.Username, "role "+string(u.Role))
	return nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, username string) (domain.User, error) {
	return s.store.GetUser(ctx, username)
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}

// Update changes profile fields, role or active flag. Demoting or
// deactivating the last active admin is refused.
func (s *UserService) Update(ctx context.Context, actor domain.User, u domain.User) error {
	current, err := s.store.GetUser(ctx, u.Username)
	if err != nil {
		return err
	}
	if current.Role == domain.RoleAdmin && (u.Role != domain.RoleAdmin || !u.IsActive) {
		last, err := s.isLastActiveAdmin(ctx, u.Username)
		if err != nil {
			return err
		}
		if last {
			return ErrLastAdmin
		}
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return err
	}
	if current.IsActive && !u.IsActive {
		// Deactivation also revokes live sessions.
		if err := s.store.DeactivateUser(ctx, u.Username); err != nil {
			return err
		}
	}

	s.audit(ctx, actor.Username, "update_user", u.Username, "")
	return nil
}

// ChangePassword sets a new password. Non-admin actors must present the
// current password; admins may reset any account.
func (s *UserService) ChangePassword(ctx context.Context, actor domain.User, username, currentPassword, newPassword string) error {
	if actor.Username != username && actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	if actor.Role != domain.RoleAdmin {
		hash, _, err := s.store.GetCredentials(ctx, username)
		if err != nil {
			return err
		}
		if !auth.VerifyPassword(hash, currentPassword) {
			return auth.ErrInvalidCredentials
		}
	}
	if err := auth.ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, username, hash); err != nil {
		return err
	}

	s.audit(ctx, actor.Username, "change_password", username, "")
	return nil
}

// Deactivate disables an account and revokes its sessions.
func (s *UserService) Deactivate(ctx context.Context, actor domain.User, username string) error {
	target, err := s.store.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleAdmin {
		last, err := s.isLastActiveAdmin(ctx, username)
		if err != nil {
			return err
		}
		if last {
			return ErrLastAdmin
		}
	}
	if err := s.store.DeactivateUser(ctx, username); err != nil {
		return err
	}
	s.audit(ctx, actor.Username, "deactivate_user", username, "")
	return nil
}

// Grant gives a user access to a portfolio, project or building.
func (s *UserService) Grant(ctx context.Context, actor domain.User, g store.AccessGrant) error {
	if _, err := s.store.GetUser(ctx, g.Username); err != nil {
		return err
	}
	g.GrantedBy = actor.Username
	if err := s.store.GrantAccess(ctx, g); err != nil {
		return err
	}
	s.audit(ctx, actor.Username, "grant_access", g.Username,
		g.ResourceType+" "+g.ResourceID+" ("+g.Level+")")
	return nil
}

// Revoke removes an access grant.
func (s *UserService) Revoke(ctx context.Context, actor domain.User, username, resourceType, resourceID string) error {
	if err := s.store.RevokeAccess(ctx, username, resourceType, resourceID); err != nil {
		return err
	}
	s.audit(ctx, actor.Username, "revoke_access", username, resourceType+" "+resourceID)
	return nil
}

// Grants lists a user's access grants.
func (s *UserService) Grants(ctx context.Context, username string) ([]store.AccessGrant, error) {
	return s.store.ListGrants(ctx, username)
}

// Audit lists audit entries. Admin only.
func (s *UserService) Audit(ctx context.Context, actor domain.User, filter store.AuditFilter) ([]domain.AuditEntry, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.store.ListAudit(ctx, filter)
}

func (s *UserService) isLastActiveAdmin(ctx context.Context, username string) (bool, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Role == domain.RoleAdmin && u.IsActive && u.Username != username {
			return false, nil
		}
	}
	return true, nil
}

func (s *UserService) audit(ctx context.Context, username, action, resource, details string) {
	if err := s.store.AppendAudit(ctx, domain.AuditEntry{
		Username: username,
		Action:   action,
		Resource: resource,
		Success:  true,
		Details:  details,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", slog.String("error", err.Error()))
	}
}
