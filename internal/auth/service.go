package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/internal/backend"
	"github.com/angelmondragon/storefront/internal/notice"
	pkgauth "github.com/angelmondragon/storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/kvstore"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/validation"
)

const (
	TokenKey = "token"
	UserKey  = "auth_user"

	MsgLoggedIn       = "Login realizado com sucesso!"
	MsgRegistered     = "Conta criada com sucesso!"
	MsgLoggedOut      = "Logout realizado com sucesso"
	MsgSessionExpired = "Sua sessão expirou. Faça login novamente"
)

// Accounts is the backend surface used to authenticate shoppers.
type Accounts interface {
	Login(ctx context.Context, creds backend.Credentials) (*backend.AuthResult, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.AuthResult, error)
}

type blobStore interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	Del(ctx context.Context, names ...string) error
}

// Identity is the authenticated shopper of a session.
type Identity struct {
	User  backend.User
	Token string
}

type ServiceParams struct {
	Blobs    blobStore
	Accounts Accounts
	Notifier notice.Notifier
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service keeps the shopper's bearer token and profile in session storage.
type Service struct {
	blobs    blobStore
	accounts Accounts
	notify   notice.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Blobs == nil {
		return nil, fmt.Errorf("auth persistence is required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("accounts client is required")
	}
	s := &Service{
		blobs:    params.Blobs,
		accounts: params.Accounts,
		notify:   params.Notifier,
		logg:     params.Logger,
		now:      params.Now,
	}
	if s.notify == nil {
		s.notify = notice.Discard{}
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *Service) Login(ctx context.Context, creds backend.Credentials) (*Identity, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validation.Struct(creds); err != nil {
		return nil, err
	}
	result, err := s.accounts.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	identity, err := s.persist(ctx, result)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, notice.LevelSuccess, MsgLoggedIn)
	return identity, nil
}

func (s *Service) Register(ctx context.Context, req backend.RegisterRequest) (*Identity, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	result, err := s.accounts.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	identity, err := s.persist(ctx, result)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, notice.LevelSuccess, MsgRegistered)
	return identity, nil
}

func (s *Service) persist(ctx context.Context, result *backend.AuthResult) (*Identity, error) {
	payload, err := json.Marshal(result.User)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode user")
	}
	if err := s.blobs.Set(ctx, TokenKey, result.Token); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist token")
	}
	if err := s.blobs.Set(ctx, UserKey, string(payload)); err != nil {
		_ = s.blobs.Del(ctx, TokenKey)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist user")
	}
	s.logg.Info(s.logg.WithUserID(ctx, result.User.ID), "auth.session.started")
	return &Identity{User: result.User, Token: result.Token}, nil
}

// Logout clears the stored token and user.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.clear(ctx); err != nil {
		return err
	}
	s.notify.Notify(ctx, notice.LevelInfo, MsgLoggedOut)
	return nil
}

// ForceLogout drops a session the backend no longer accepts.
func (s *Service) ForceLogout(ctx context.Context, reason string) {
	if err := s.clear(ctx); err != nil {
		s.logg.Error(ctx, "auth.force_logout.failed", err)
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "auth.session.revoked")
	s.notify.Notify(ctx, notice.LevelWarning, MsgSessionExpired)
}

func (s *Service) clear(ctx context.Context) error {
	if err := s.blobs.Del(ctx, TokenKey, UserKey); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear auth session")
	}
	return nil
}

// Current returns the session's shopper, or nil when anonymous. An expired
// token or an unreadable stored user ends the session.
func (s *Service) Current(ctx context.Context) (*Identity, error) {
	token, err := s.blobs.Get(ctx, TokenKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		s.ForceLogout(ctx, "empty token")
		return nil, nil
	}

	if claims, inspectErr := pkgauth.InspectShopperToken(token); inspectErr != nil {
		s.logg.Debug(s.logg.WithField(ctx, "reason", inspectErr.Error()), "auth.token.opaque")
	} else if claims.Expired(s.now()) {
		s.ForceLogout(ctx, "token expired")
		return nil, nil
	}

	raw, err := s.blobs.Get(ctx, UserKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		s.ForceLogout(ctx, "missing user")
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	var user backend.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == "" {
		s.logg.Warn(ctx, "auth.user.discarded")
		if clearErr := s.clear(ctx); clearErr != nil {
			s.logg.Error(ctx, "auth.user.discard_failed", clearErr)
		}
		return nil, nil
	}
	return &Identity{User: user, Token: token}, nil
}
