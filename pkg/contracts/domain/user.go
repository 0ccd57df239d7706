package domain

import "time"

// Role is an access level within the platform.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleInspector         Role = "inspector"
	RoleProjectManager    Role = "project_manager"
	RoleBuilder           Role = "builder"
	RolePropertyDeveloper Role = "property_developer"
)

// AllRoles lists every valid role.
var AllRoles = []Role{
	RoleAdmin, RoleInspector, RoleProjectManager, RoleBuilder, RolePropertyDeveloper,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// User is a platform account. PasswordHash never leaves the store layer.
type User struct {
	Username  string     `json:"username" db:"username" validate:"required,min=3,max=32"`
	FullName  string     `json:"full_name" db:"full_name" validate:"required"`
	Email     string     `json:"email" db:"email" validate:"required,email"`
	Role      Role       `json:"role" db:"role" validate:"required"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`
}

// Session is an authenticated login session.
type Session struct {
	Token     string    `json:"-" db:"token"`
	Username  string    `json:"username" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	IP        string    `json:"ip,omitempty" db:"ip"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
}

// Expired reports whether the session is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AuditEntry records a security-relevant action.
type AuditEntry struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Action    string    `json:"action" db:"action"`
	Resource  string    `json:"resource,omitempty" db:"resource"`
	Success   bool      `json:"success" db:"success"`
	IP        string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	Details   string    `json:"details,omitempty" db:"details"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
