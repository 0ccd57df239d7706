package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sitepulse/pkg/contracts/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint is violated.
var ErrDuplicate = errors.New("already exists")

func translateErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

const userColumns = "username, full_name, email, role, is_active, created_at, last_login"

func scanUser(row interface{ Scan(...interface{}) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.Username, &u.FullName, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt, &u.LastLogin)
	return u, translateErr(err)
}

// CreateUser inserts a new account with an already-hashed password.
func (s *Store) CreateUser(ctx context.Context, u domain.User, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, full_name, email, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, passwordHash, u.FullName, u.Email, string(u.Role), u.IsActive, now())
	if err != nil {
		return fmt.Errorf("create user %q: %w", u.Username, translateErr(err))
	}
	return nil
}

// GetUser fetches an account by username.
func (s *Store) GetUser(ctx context.Context, username string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

// GetCredentials returns the stored password hash and active flag for
// login verification. The hash never travels further than the auth layer.
func (s *Store) GetCredentials(ctx context.Context, username string) (hash string, active bool, err error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT password_hash, is_active FROM users WHERE username = ?", username)
	if err := row.Scan(&hash, &active); err != nil {
		return "", false, fmt.Errorf("get credentials %q: %w", username, translateErr(err))
	}
	return hash, active, nil
}

// ListUsers returns every account ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser updates the mutable profile fields of an account.
func (s *Store) UpdateUser(ctx context.Context, u domain.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET full_name = ?, email = ?, role = ?, is_active = ?
		WHERE username = ?`,
		u.FullName, u.Email, string(u.Role), u.IsActive, u.Username)
	if err != nil {
		return fmt.Errorf("update user %q: %w", u.Username, err)
	}
	return requireRowsAffected(res, "user "+u.Username)
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ? WHERE username = ?", passwordHash, username)
	if err != nil {
		return fmt.Errorf("update password %q: %w", username, err)
	}
	return requireRowsAffected(res, "user "+username)
}

// TouchLastLogin records a successful login time.
func (s *Store) TouchLastLogin(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login = ? WHERE username = ?", now(), username)
	if err != nil {
		return fmt.Errorf("touch last login %q: %w", username, err)
	}
	return nil
}

// DeactivateUser disables an account and revokes its sessions.
func (s *Store) DeactivateUser(ctx context.Context, username string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deactivate: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE users SET is_active = 0 WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("deactivate user %q: %w", username, err)
	}
	if err := requireRowsAffected(res, "user "+username); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM sessions WHERE username = ?", username); err != nil {
		return fmt.Errorf("revoke sessions for %q: %w", username, err)
	}
	return tx.Commit()
}

// DeleteUser removes an account. Sessions and grants cascade.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("delete user %q: %w", username, err)
	}
	return requireRowsAffected(res, "user "+username)
}

// CountUsers returns the number of accounts, used to decide whether the
// bootstrap admin seed is required.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func requireRowsAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
