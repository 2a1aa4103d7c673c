package auth

import "time"

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// User is the domain representation of an authenticated marketplace user.
// It mirrors the users table and carries no JSON annotations so it can be
// reused by different presentation layers.
type User struct {
	ID             string
	Email          string
	FullName       string
	PasswordHash   string
	Role           Role
	OrganizationID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identity is the authenticated actor attached to engine operations.
type Identity struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor may exercise admin overrides.
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
