package helpers

import (
	"strings"

	"github.com/joshua-takyi/tourbook/internal/models"
)

// EnhancedClaims is the verified token identity joined with the stored
// profile. Roles always come from the profile, never from the token.
type EnhancedClaims struct {
	*CustomClaims
	Email  string            `json:"email"`
	Name   string            `json:"name,omitempty"`
	Role   models.Role       `json:"role"`
	Status models.UserStatus `json:"status"`
}

func (ec *EnhancedClaims) IsAdmin() bool {
	return ec.Role == models.RoleAdmin
}

func (ec *EnhancedClaims) HasRole(roles ...models.Role) bool {
	for _, r := range roles {
		if ec.Role == r {
			return true
		}
	}
	return false
}

// CanAccess reports whether the caller may act on resources owned by email.
func (ec *EnhancedClaims) CanAccess(email string) bool {
	email = strings.TrimSpace(email)
	return ec.IsAdmin() || (email != "" && strings.EqualFold(ec.Email, email))
}

func (ec *EnhancedClaims) GetSafeRole() models.Role {
	if ec.Role == "" {
		return models.RoleCustomer
	}
	return ec.Role
}
