package store

import (
	"context"
	"fmt"
	"time"

	"sitepulse/pkg/contracts/domain"
)

// CreateSession persists a new login session.
func (s *Store) CreateSession(ctx context.Context, sess domain.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, username, created_at, expires_at, ip, user_agent)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.Token, sess.Username, sess.CreatedAt.UTC(), sess.ExpiresAt.UTC(), sess.IP, sess.UserAgent)
	if err != nil {
		return fmt.Errorf("create session: %w", translateErr(err))
	}
	return nil
}

// GetSession fetches a session by token. Expired sessions are still
// returned; the caller decides whether to reject and delete them.
func (s *Store) GetSession(ctx context.Context, token string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, username, created_at, expires_at, ip, user_agent
		FROM sessions WHERE token = ?`, token)

	var sess domain.Session
	err := row.Scan(&sess.Token, &sess.Username, &sess.CreatedAt, &sess.ExpiresAt, &sess.IP, &sess.UserAgent)
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", translateErr(err))
	}
	return sess, nil
}

// ExtendSession pushes a session's expiry forward (sliding window).
func (s *Store) ExtendSession(ctx context.Context, token string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET expires_at = ? WHERE token = ?", expiresAt.UTC(), token)
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	return requireRowsAffected(res, "session")
}

// DeleteSession removes a session (logout).
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session past its expiry and
// returns how many were purged.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?", now())
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return res.RowsAffected()
}
