package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sitepulse/internal/config"
	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/domain"
)

// Sentinel errors returned by login and validation.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrSessionInvalid     = errors.New("session invalid or expired")
)

// Manager issues and validates sessions backed by the store.
type Manager struct {
	store   *store.Store
	logger  *slog.Logger
	lockout *lockoutTracker
	ttl     time.Duration
}

// NewManager creates a session manager.
func NewManager(s *store.Store, logger *slog.Logger, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = config.SessionTimeout
	}
	return &Manager{
		store:   s,
		logger:  logger.With(slog.String("component", "auth")),
		lockout: newLockoutTracker(),
		ttl:     ttl,
	}
}

// ClientInfo carries request attribution for sessions and audit entries.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Login verifies credentials and issues a session. Every attempt is
// audited, success or not.
func (m *Manager) Login(ctx context.Context, username, password string, client ClientInfo) (domain.Session, domain.User, error) {
	if blocked, remaining := m.lockout.Blocked(username, client.IP); blocked {
		m.audit(ctx, username, "login", false, client,
			fmt.Sprintf("account locked, %s remaining", remaining.Round(time.Second)))
		return domain.Session{}, domain.User{}, ErrAccountLocked
	}

	hash, active, err := m.store.GetCredentials(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a bcrypt comparison so missing users cost the same
			// as wrong passwords.
			VerifyPassword("$2a$12$0000000000000000000000000000000000000000000000000000", password)
			m.recordFailure(ctx, username, client, "unknown user")
			return domain.Session{}, domain.User{}, ErrInvalidCredentials
		}
		return domain.Session{}, domain.User{}, fmt.Errorf("load credentials: %w", err)
	}

	if !VerifyPassword(hash, password) {
		m.recordFailure(ctx, username, client, "wrong password")
		return domain.Session{}, domain.User{}, ErrInvalidCredentials
	}
	if !active {
		m.audit(ctx, username, "login", false, client, "account disabled")
		return domain.Session{}, domain.User{}, ErrAccountDisabled
	}

	m.lockout.Reset(username)

	user, err := m.store.GetUser(ctx, username)
	if err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("load user: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return domain.Session{}, domain.User{}, err
	}

	now := time.Now().UTC()
	sess := domain.Session{
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		IP:        client.IP,
		UserAgent: client.UserAgent,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("persist session: %w", err)
	}
	if err := m.store.TouchLastLogin(ctx, username); err != nil {
		m.logger.WarnContext(ctx, "failed to record last login",
			slog.String("username", username), slog.String("error", err.Error()))
	}

	m.audit(ctx, username, "login", true, client, "")
	m.logger.InfoContext(ctx, "login successful",
		slog.String("username", username), slog.String("role", string(user.Role)))
	return sess, user, nil
}

// Validate resolves a session token to its user and slides the expiry
// window forward.
func (m *Manager) Validate(ctx context.Context, token string) (domain.User, domain.Session, error) {
	if token == "" {
		return domain.User{}, domain.Session{}, ErrSessionInvalid
	}

	sess, err := m.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.Session{}, ErrSessionInvalid
		}
		return domain.User{}, domain.Session{}, fmt.Errorf("load session: %w", err)
	}

	now := time.Now().UTC()
	if sess.Expired(now) {
		if err := m.store.DeleteSession(ctx, token); err != nil {
			m.logger.WarnContext(ctx, "failed to delete expired session", slog.String("error", err.Error()))
		}
		return domain.User{}, domain.Session{}, ErrSessionInvalid
	}

	user, err := m.store.GetUser(ctx, sess.Username)
	if err != nil || !user.IsActive {
		return domain.User{}, domain.Session{}, ErrSessionInvalid
	}

	newExpiry := now.Add(m.ttl)
	if newExpiry.Sub(sess.ExpiresAt) > time.Minute {
		if err := m.store.ExtendSession(ctx, token, newExpiry); err != nil {
			m.logger.WarnContext(ctx, "failed to extend session", slog.String("error", err.Error()))
		} else {
			sess.ExpiresAt = newExpiry
		}
	}
	return user, sess, nil
}

// Logout deletes the session and audits the action.
func (m *Manager) Logout(ctx context.Context, token string, client ClientInfo) error {
	sess, err := m.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}
	if err := m.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.audit(ctx, sess.Username, "logout", true, client, "")
	return nil
}

// PurgeExpired removes stale sessions, called periodically from the app.
func (m *Manager) PurgeExpired(ctx context.Context) {
	n, err := m.store.DeleteExpiredSessions(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "session purge failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		m.logger.DebugContext(ctx, "expired sessions purged", slog.Int64("count", n))
	}
}

func (m *Manager) recordFailure(ctx context.Context, username string, client ClientInfo, reason string) {
	locked := m.lockout.RecordFailure(username, client.IP)
	m.audit(ctx, username, "login", false, client, reason)
	if locked {
		m.audit(ctx, username, "account_locked", true, client,
			fmt.Sprintf("locked for %s after %d failures", config.LoginBlockDuration, config.MaxLoginAttempts))
		m.logger.WarnContext(ctx, "account locked",
			slog.String("username", username), slog.String("ip", client.IP))
	}
}

func (m *Manager) audit(ctx context.Context, username, action string, success bool, client ClientInfo, details string) {
	err := m.store.AppendAudit(ctx, domain.AuditEntry{
		Username:  username,
		Action:    action,
		Success:   success,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Details:   details,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "audit write failed",
			slog.String("action", action), slog.String("error", err.Error()))
	}
}

func generateToken() (string, error) {
	buf := make([]byte, config.SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
