// Package storefront assembles one shopper session (cart, coupon, checkout and
// auth) over shared storage and exposes the operations the HTTP layer serves.
package storefront

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/internal/auth"
	"github.com/angelmondragon/storefront/internal/backend"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/coupon"
	"github.com/angelmondragon/storefront/internal/notice"
	"github.com/angelmondragon/storefront/internal/pricing"
	"github.com/angelmondragon/storefront/internal/reconcile"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/events"
	"github.com/angelmondragon/storefront/pkg/kvstore"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/money"
)

const (
	sessionNamespace  = "sf:session"
	defaultSessionTTL = 30 * 24 * time.Hour
)

// Backend is the REST surface a session drives.
type Backend interface {
	reconcile.RemoteCart
	checkout.OrderCreator
	checkout.PaymentConfirmer
	auth.Accounts
	ListOrders(ctx context.Context) ([]backend.Order, error)
	GetOrder(ctx context.Context, orderID string) (*backend.Order, error)
	TrackOrder(ctx context.Context, orderID string) (*backend.TrackingInfo, error)
}

// ProductLookup resolves the catalog view of a product before it enters the cart.
type ProductLookup interface {
	Product(ctx context.Context, productID string) (cart.Product, error)
}

// RateLimiter bounds coupon attempts per session.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type Params struct {
	Store          kvstore.Store
	Backend        Backend
	Products       ProductLookup
	Coupons        *coupon.Resolver
	Pricing        pricing.Config
	Formatter      money.Formatter
	Publisher      events.Publisher
	Limiter        RateLimiter
	CouponAttempts int
	CouponWindow   time.Duration
	SyncEnabled    bool
	SessionTTL     time.Duration
	Metrics        *metrics.Storefront
	Logger         *logger.Logger
	Now            func() time.Time
}

// Service is safe for concurrent use; requests for the same session run one at a time.
type Service struct {
	store          kvstore.Store
	backend        Backend
	products       ProductLookup
	coupons        *coupon.Resolver
	pricing        pricing.Config
	formatter      money.Formatter
	publisher      events.Publisher
	limiter        RateLimiter
	couponAttempts int64
	couponWindow   time.Duration
	ttl            time.Duration
	mirror         *reconcile.Mirror
	reconciler     *reconcile.Reconciler
	syncEnabled    bool
	metrics        *metrics.Storefront
	logg           *logger.Logger
	now            func() time.Time
	locks          *sessionLocks
}

func NewService(p Params) (*Service, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if p.Backend == nil {
		return nil, fmt.Errorf("backend client is required")
	}
	if p.Products == nil {
		return nil, fmt.Errorf("product lookup is required")
	}
	if p.Coupons == nil {
		return nil, fmt.Errorf("coupon resolver is required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	reconciler, err := reconcile.NewReconciler(p.Backend, logg)
	if err != nil {
		return nil, err
	}
	s := &Service{
		store:          p.Store,
		backend:        p.Backend,
		products:       p.Products,
		coupons:        p.Coupons,
		pricing:        p.Pricing,
		formatter:      p.Formatter,
		publisher:      p.Publisher,
		limiter:        p.Limiter,
		couponAttempts: int64(p.CouponAttempts),
		couponWindow:   p.CouponWindow,
		ttl:            p.SessionTTL,
		mirror:         reconcile.NewMirror(p.Backend, p.SyncEnabled, logg, p.Metrics),
		reconciler:     reconciler,
		syncEnabled:    p.SyncEnabled,
		metrics:        p.Metrics,
		logg:           logg,
		now:            p.Now,
		locks:          newSessionLocks(),
	}
	if s.pricing == (pricing.Config{}) {
		s.pricing = pricing.DefaultConfig()
	}
	if s.formatter.Symbol == "" {
		s.formatter = money.BRL
	}
	if s.publisher == nil {
		s.publisher = events.Noop{}
	}
	if s.ttl <= 0 {
		s.ttl = defaultSessionTTL
	}
	if s.couponWindow <= 0 {
		s.couponWindow = 10 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// SessionPrefix is the key namespace holding one shopper's documents.
func SessionPrefix(sessionID string) string {
	return sessionNamespace + ":" + sessionID
}

// session is one shopper's state loaded for the duration of a request.
type session struct {
	id       string
	blobs    *kvstore.Scoped
	cart     *cart.Store
	checkout *checkout.Sequencer
	auth     *auth.Service
	identity *auth.Identity
	notify   notice.Notifier
}

func (s *session) authenticated() bool {
	return s.identity != nil
}

func (s *session) userID() string {
	if s.identity == nil {
		return ""
	}
	return s.identity.User.ID
}

// withSession locks sessionID, loads its state and runs fn. The ctx passed to
// fn carries the session log fields and, when logged in, the bearer token.
func (s *Service) withSession(ctx context.Context, sessionID string, fn func(ctx context.Context, sess *session) error) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	ctx = s.logg.WithSessionID(ctx, sessionID)
	sess, ctx, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	err = fn(ctx, sess)
	s.endIfRejected(ctx, sess, err)
	return err
}

// endIfRejected force-logs-out a signed-in session when the backend answered
// err with UNAUTHORIZED.
func (s *Service) endIfRejected(ctx context.Context, sess *session, err error) {
	if err == nil || !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) || !sess.authenticated() {
		return
	}
	sess.auth.ForceLogout(ctx, "backend rejected token")
	sess.identity = nil
}

func (s *Service) load(ctx context.Context, sessionID string) (*session, context.Context, error) {
	notify := notice.FromContext(ctx)
	blobs := kvstore.NewScoped(s.store, SessionPrefix(sessionID), s.ttl)
	sess := &session{id: sessionID, blobs: blobs, notify: notify}

	authSvc, err := auth.NewService(auth.ServiceParams{
		Blobs:    blobs,
		Accounts: s.backend,
		Notifier: notify,
		Logger:   s.logg,
		Now:      s.now,
	})
	if err != nil {
		return nil, ctx, err
	}
	sess.auth = authSvc
	identity, err := authSvc.Current(ctx)
	if err != nil {
		return nil, ctx, err
	}
	if identity != nil {
		sess.identity = identity
		ctx = backend.WithToken(ctx, identity.Token)
		ctx = s.logg.WithUserID(ctx, identity.User.ID)
	}

	store, err := cart.NewStore(blobs,
		cart.WithNotifier(notify),
		cart.WithLogger(s.logg),
		cart.WithClock(s.now),
	)
	if err != nil {
		return nil, ctx, err
	}
	if err := store.Hydrate(ctx); err != nil {
		return nil, ctx, err
	}
	sess.cart = store

	seq, err := checkout.NewSequencer(checkout.Deps{
		Blobs:    blobs,
		Orders:   s.backend,
		Payments: s.backend,
		Cart:     orderCartClearer{svc: s, sess: sess},
		Notifier: notify,
		Logger:   s.logg,
		Metrics:  s.metrics,
		Now:      s.now,
	})
	if err != nil {
		return nil, ctx, err
	}
	if err := seq.Hydrate(ctx); err != nil {
		return nil, ctx, err
	}
	sess.checkout = seq
	return sess, ctx, nil
}

func (s *Service) publish(ctx context.Context, sess *session, eventType events.Type, data any) {
	env, err := events.NewEnvelope(eventType, sess.id, sess.userID(), data, s.now())
	if err == nil {
		err = s.publisher.Publish(ctx, env)
	}
	s.metrics.EventPublished(string(eventType), err)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "event_type", string(eventType)), "storefront.event.publish_failed", err)
	}
}

// Ping checks the session store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
