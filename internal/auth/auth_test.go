package auth

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/domain"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "auth_test.db"), 0, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewManager(s, slog.Default(), time.Hour), s
}

func createUser(t *testing.T, s *store.Store, username, password string, role domain.Role, active bool) {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, s.CreateUser(context.Background(), domain.User{
		Username: username,
		FullName: "Test " + username,
		Email:    username + "@example.com",
		Role:     role,
		IsActive: active,
	}, hash))
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse 1")
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "correct horse 1"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}

func TestValidatePasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "building42", false},
		{"too short", "abc1", true},
		{"no digit", "buildingsite", true},
		{"no letter", "1234567890", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordPolicy(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrWeakPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoginSuccessIssuesSession(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createUser(t, s, "alice", "building42", domain.RoleInspector, true)

	sess, user, err := m.Login(ctx, "alice", "building42", ClientInfo{IP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.Len(t, sess.Token, 64, "32 random bytes hex encoded")
	assert.Equal(t, domain.RoleInspector, user.Role)

	// Login is audited and last_login recorded.
	entries, err := s.ListAudit(ctx, store.AuditFilter{Username: "alice", Action: "login"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)

	u, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, u.LastLogin)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createUser(t, s, "alice", "building42", domain.RoleInspector, true)

	_, _, err := m.Login(ctx, "alice", "nope", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown users get the same error as wrong passwords.
	_, _, err = m.Login(ctx, "ghost", "whatever", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	m, s := newTestManager(t)
	createUser(t, s, "old", "building42", domain.RoleBuilder, false)

	_, _, err := m.Login(context.Background(), "old", "building42", ClientInfo{})
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createUser(t, s, "alice", "building42", domain.RoleInspector, true)

	for i := 0; i < 5; i++ {
		_, _, err := m.Login(ctx, "alice", "wrong", ClientInfo{})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Correct password no longer helps while locked.
	_, _, err := m.Login(ctx, "alice", "building42", ClientInfo{})
	assert.ErrorIs(t, err, ErrAccountLocked)

	entries, err := s.ListAudit(ctx, store.AuditFilter{Username: "alice", Action: "account_locked"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLockoutExpiresAfterWindow(t *testing.T) {
	tracker := newLockoutTracker()
	current := time.Now()
	tracker.clock = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		tracker.RecordFailure("alice", "10.0.0.1")
	}
	blocked, _ := tracker.Blocked("alice", "10.0.0.1")
	assert.True(t, blocked)

	current = current.Add(16 * time.Minute)
	blocked, _ = tracker.Blocked("alice", "10.0.0.1")
	assert.False(t, blocked)
}

func TestLockoutScopedToSourceAddress(t *testing.T) {
	tracker := newLockoutTracker()

	for i := 0; i < 5; i++ {
		tracker.RecordFailure("alice", "10.0.0.1")
	}

	// One address hammering the account must not lock out another.
	blocked, _ := tracker.Blocked("alice", "10.0.0.1")
	assert.True(t, blocked)
	blocked, _ = tracker.Blocked("alice", "192.168.1.9")
	assert.False(t, blocked)

	// Success clears the failure state for every address.
	tracker.Reset("alice")
	blocked, _ = tracker.Blocked("alice", "10.0.0.1")
	assert.False(t, blocked)
}

func TestValidateSessionAndLogout(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createUser(t, s, "alice", "building42", domain.RoleAdmin, true)

	sess, _, err := m.Login(ctx, "alice", "building42", ClientInfo{})
	require.NoError(t, err)

	user, got, err := m.Validate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, sess.Token, got.Token)

	require.NoError(t, m.Logout(ctx, sess.Token, ClientInfo{}))
	_, _, err = m.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, _, err = m.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, _, err = m.Validate(ctx, "bogus-token")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestValidateRejectsDeactivatedUser(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createUser(t, s, "alice", "building42", domain.RoleInspector, true)

	sess, _, err := m.Login(ctx, "alice", "building42", ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, s.DeactivateUser(ctx, "alice"))
	_, _, err = m.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestPermissionMatrix(t *testing.T) {
	tests := []struct {
		role domain.Role
		perm string
		want bool
	}{
		{domain.RoleAdmin, PermSystemAdmin, true},
		{domain.RoleAdmin, PermDataUpload, true},
		{domain.RolePropertyDeveloper, PermDataViewAll, false},
		{domain.RolePropertyDeveloper, PermDataViewAssigned, true},
		{domain.RolePropertyDeveloper, PermDataUpload, false},
		{domain.RolePropertyDeveloper, PermReportsPortfolio, true},
		{domain.RolePropertyDeveloper, PermDefectsApprove, true},
		{domain.RoleProjectManager, PermDefectsApprove, true},
		{domain.RoleProjectManager, PermUsersCreate, false},
		{domain.RoleInspector, PermDataUpload, true},
		{domain.RoleInspector, PermReportsWord, true},
		{domain.RoleInspector, PermDefectsApprove, false},
		{domain.RoleBuilder, PermDefectsUpdateStatus, true},
		{domain.RoleBuilder, PermReportsGenerate, true},
		{domain.RoleBuilder, PermReportsExcel, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+tt.perm, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.perm))
		})
	}
}

func TestPermissionsListIsSorted(t *testing.T) {
	perms := Permissions(domain.RoleProjectManager)
	require.NotEmpty(t, perms)
	for i := 1; i < len(perms); i++ {
		assert.LessOrEqual(t, perms[i-1], perms[i])
	}
	assert.Contains(t, Permissions(domain.RoleAdmin), PermSystemAdmin)
}

func TestConcurrentValidateAndLogout(t *testing.T) {
	m, s := newTestManager(t)
	createUser(t, s, "inspector1", "building42", domain.RoleInspector, true)
	ctx := context.Background()

	session, _, err := m.Login(ctx, "inspector1", "building42", ClientInfo{IP: "10.0.0.1"})
	require.NoError(t, err)

	// Hammer the same token from many goroutines. Validation must not
	// race with itself or with a concurrent logout.
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for j := 0; j < 25; j++ {
				if _, _, err := m.Validate(ctx, session.Token); err != nil && !errors.Is(err, ErrSessionInvalid) {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		return m.Logout(ctx, session.Token, ClientInfo{IP: "10.0.0.1"})
	})
	require.NoError(t, g.Wait())

	_, _, err = m.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
