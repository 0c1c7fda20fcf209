package domain

import "time"

// Role is an application role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

// ParseRole returns the role named by s, defaulting to viewer.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleManager:
		return Role(s)
	default:
		return RoleViewer
	}
}

// AuthSource records how an identity was established.
type AuthSource string

const (
	AuthEntra    AuthSource = "entra"
	AuthLocalDB  AuthSource = "local-db"
	AuthLocalEnv AuthSource = "local-env"
)

// AppUser is an account allowed to sign in.
type AppUser struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	DisplayName       *string   `json:"display_name"`
	Email             *string   `json:"email"`
	Role              Role      `json:"role"`
	Enabled           bool      `json:"enabled"`
	LocalPasswordHash *string   `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasLocalPassword reports whether the user can sign in with credentials.
func (u *AppUser) HasLocalPassword() bool {
	return u.LocalPasswordHash != nil && *u.LocalPasswordHash != ""
}

// Identity is the resolved session identity handed to authenticated handlers.
type Identity struct {
	AppUserID  string     `json:"app_user_id"`
	Username   string     `json:"username"`
	Role       Role       `json:"role"`
	AuthSource AuthSource `json:"auth_source"`
}

// IsAdmin reports whether the identity may perform administrative operations.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
