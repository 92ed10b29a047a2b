package backend

import (
	"context"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	return c.authenticate(ctx, "auth.login", "/auth/login", creds)
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	return c.authenticate(ctx, "auth.register", "/auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, op, path string, body any) (*AuthResult, error) {
	var result AuthResult
	if _, err := c.do(ctx, call{op: op, method: http.MethodPost, path: path, body: body}, &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "authentication response missing token")
	}
	return &result, nil
}

// Profile returns the user the bearer token belongs to.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var user User
	if _, err := c.do(ctx, call{op: "auth.profile", method: http.MethodGet, path: "/auth/profile"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
