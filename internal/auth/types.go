package auth

import (
	"errors"
	"time"
)

// Role is an authorisation tier.
type Role string

const (
	// RoleViewer can read automations and history.
	RoleViewer Role = "viewer"

	// RoleOperator can also retry runs and inject events.
	RoleOperator Role = "operator"

	// RoleAdmin can also change automations.
	RoleAdmin Role = "admin"
)

// ValidRoles lists every role in ascending privilege.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// APIToken is the stored record of an issued token. The signed token
// itself is never stored.
type APIToken struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the token is neither revoked nor expired at now.
func (t APIToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid  = errors.New("invalid token")
	ErrTokenRevoked  = errors.New("token has been revoked")
	ErrTokenNotFound = errors.New("token not found")
	ErrInvalidRole   = errors.New("invalid role")
	ErrForbidden     = errors.New("insufficient permissions")
)
