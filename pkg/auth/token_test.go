package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// mintShopperToken signs claims the way the backend does.
func mintShopperToken(t *testing.T, secret string, now time.Time, ttl time.Duration, claims ShopperClaims) string {
	t.Helper()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign shopper token: %v", err)
	}
	return signed
}

func TestInspectShopperToken(t *testing.T) {
	now := time.Now().UTC()
	token := mintShopperToken(t, "secret", now, 30*time.Minute, ShopperClaims{UserID: "u-1", Email: "ana@example.com"})

	claims, err := InspectShopperToken(token)
	if err != nil {
		t.Fatalf("inspect shopper token: %v", err)
	}
	if claims.UserID != "u-1" || claims.Email != "ana@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Expired(now) {
		t.Fatal("fresh token should not be expired")
	}
	if !claims.Expired(now.Add(time.Hour)) {
		t.Fatal("token should be expired an hour later")
	}
}

func TestInspectIgnoresSignature(t *testing.T) {
	token := mintShopperToken(t, "other-secret", time.Now(), -time.Minute, ShopperClaims{UserID: "u-2"})
	claims, err := InspectShopperToken(token)
	if err != nil {
		t.Fatalf("expired tokens must still decode: %v", err)
	}
	if !claims.Expired(time.Now()) {
		t.Fatal("expected expired claims")
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-jwt", "a.b"} {
		if _, err := InspectShopperToken(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestClaimsWithoutExpiryNeverExpire(t *testing.T) {
	token := mintShopperToken(t, "secret", time.Now(), 0, ShopperClaims{UserID: "u-3"})
	claims, err := InspectShopperToken(token)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if claims.Expired(time.Now().Add(24 * time.Hour)) {
		t.Fatal("token without exp should not expire")
	}
}
