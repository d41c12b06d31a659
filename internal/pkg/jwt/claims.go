// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
)

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
	RoleUser       = "user"

	// TokenUseAccess marks tokens accepted by the API
	TokenUseAccess = "access"
)

// Claims carried by billing access tokens
type Claims struct {
	IdentityID int64    `json:"identity_id"`
	Roles      []string `json:"roles,omitempty"`
	TokenUse   string   `json:"token_use"`
	jwt.RegisteredClaims
}

func (c *Claims) HasRole(role string) bool {
	return lo.Contains(c.Roles, role)
}

// IsAdmin is true for admins and super admins
func (c *Claims) IsAdmin() bool {
	return lo.Some(c.Roles, []string{RoleAdmin, RoleSuperAdmin})
}
