package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ShopperClaims is the payload of the bearer token the storefront backend issues.
type ShopperClaims struct {
	UserID  string `json:"userId,omitempty"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
	jwt.RegisteredClaims
}

// Expired reports whether the token carries an exp at or before now. Tokens
// without exp never expire client-side.
func (c *ShopperClaims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Time)
}
