package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// InspectShopperToken decodes the token claims without verifying the
// signature. The backend owns the signing key; the storefront only reads exp
// to drop sessions that can no longer authenticate.
func InspectShopperToken(tokenString string) (*ShopperClaims, error) {
	trimmed := strings.TrimSpace(tokenString)
	if trimmed == "" {
		return nil, fmt.Errorf("token is empty")
	}
	claims := &ShopperClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(trimmed, claims); err != nil {
		return nil, fmt.Errorf("decoding shopper token: %w", err)
	}
	return claims, nil
}
