package storefront

import (
	"context"

	"github.com/angelmondragon/storefront/internal/auth"
	"github.com/angelmondragon/storefront/internal/backend"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

func (s *Service) Login(ctx context.Context, sessionID string, creds backend.Credentials) (*backend.User, error) {
	var out *backend.User
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		identity, err := sess.auth.Login(ctx, creds)
		if err != nil {
			return err
		}
		if err := s.afterSignIn(ctx, sess, identity); err != nil {
			return err
		}
		out = &identity.User
		return nil
	})
	return out, err
}

func (s *Service) Register(ctx context.Context, sessionID string, req backend.RegisterRequest) (*backend.User, error) {
	var out *backend.User
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		identity, err := sess.auth.Register(ctx, req)
		if err != nil {
			return err
		}
		if err := s.afterSignIn(ctx, sess, identity); err != nil {
			return err
		}
		out = &identity.User
		return nil
	})
	return out, err
}

// afterSignIn pushes the anonymous cart to the shopper's backend cart when
// sync is enabled. Failures are logged; the local cart stays authoritative.
// Only a token the backend rejects is returned.
func (s *Service) afterSignIn(ctx context.Context, sess *session, identity *auth.Identity) error {
	sess.identity = identity
	if !s.syncEnabled || len(sess.cart.Items()) == 0 {
		return nil
	}
	ctx = backend.WithToken(s.logg.WithUserID(ctx, identity.User.ID), identity.Token)
	_, err := s.reconciler.Push(ctx, sess.cart.Items())
	if err == nil {
		return nil
	}
	s.logg.Error(ctx, "storefront.sync.push_failed", err)
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		return err
	}
	return nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		return sess.auth.Logout(ctx)
	})
}

// Me returns the logged-in shopper, or nil for an anonymous session.
func (s *Service) Me(ctx context.Context, sessionID string) (*backend.User, error) {
	var out *backend.User
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		if sess.identity != nil {
			user := sess.identity.User
			out = &user
		}
		return nil
	})
	return out, err
}

func (s *Service) Orders(ctx context.Context, sessionID string) ([]backend.Order, error) {
	var out []backend.Order
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		if !sess.authenticated() {
			return errLoginRequired()
		}
		var err error
		out, err = s.backend.ListOrders(ctx)
		return err
	})
	return out, err
}

func (s *Service) Order(ctx context.Context, sessionID, orderID string) (*backend.Order, error) {
	var out *backend.Order
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		if !sess.authenticated() {
			return errLoginRequired()
		}
		var err error
		out, err = s.backend.GetOrder(ctx, orderID)
		return err
	})
	return out, err
}

// TrackOrder forwards the shopper's token when there is one; anonymous lookups
// are left to the backend to accept or refuse.
func (s *Service) TrackOrder(ctx context.Context, sessionID, orderID string) (*backend.TrackingInfo, error) {
	var out *backend.TrackingInfo
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		var err error
		out, err = s.backend.TrackOrder(ctx, orderID)
		return err
	})
	return out, err
}

func errLoginRequired() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
}
