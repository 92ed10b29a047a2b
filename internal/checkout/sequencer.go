package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/internal/notice"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/kvstore"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/validation"
)

const (
	RouteLogin = "/login"
	RouteHome  = "/"

	MsgLoginRequired    = "Você precisa estar logado para finalizar a compra"
	MsgEmptyCart        = "Seu carrinho está vazio"
	MsgOrderCreated     = "Pedido criado com sucesso!"
	MsgOrderFailed      = "Erro ao criar pedido"
	MsgPaymentConfirmed = "Pagamento confirmado com sucesso!"
	MsgPaymentFailed    = "Erro ao confirmar pagamento"

	// DefaultInFlightTTL bounds how long a submission marker blocks a retry
	// when the process that set it never cleared it.
	DefaultInFlightTTL = 30 * time.Second
)

// OrderCreator places the order with the backend.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// PaymentConfirmer acknowledges a pix payment for an existing order.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID string) error
}

// CartClearer is the part of the cart the sequencer touches after an order is placed.
type CartClearer interface {
	Clear(ctx context.Context) error
}

type blobStore interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	Del(ctx context.Context, names ...string) error
}

type transitionRecorder interface {
	CheckoutTransition(action string, err error)
}

type nopRecorder struct{}

func (nopRecorder) CheckoutTransition(string, error) {}

type Deps struct {
	Blobs    blobStore
	Orders   OrderCreator
	Payments PaymentConfirmer
	Cart     CartClearer
	Notifier notice.Notifier
	Logger   *logger.Logger
	Metrics  transitionRecorder
	Now      func() time.Time
	NewKey   func() string
	InFlight time.Duration
}

// Sequencer drives one shopper's session through cart -> details -> confirmation.
type Sequencer struct {
	mu       sync.Mutex
	state    Session
	blobs    blobStore
	orders   OrderCreator
	payments PaymentConfirmer
	cart     CartClearer
	notify   notice.Notifier
	logg     *logger.Logger
	metrics  transitionRecorder
	now      func() time.Time
	newKey   func() string
	inFlight time.Duration
}

func NewSequencer(deps Deps) (*Sequencer, error) {
	if deps.Blobs == nil {
		return nil, fmt.Errorf("checkout persistence required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if deps.Payments == nil {
		return nil, fmt.Errorf("payment confirmer required")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart required")
	}
	s := &Sequencer{
		blobs:    deps.Blobs,
		orders:   deps.Orders,
		payments: deps.Payments,
		cart:     deps.Cart,
		notify:   deps.Notifier,
		logg:     deps.Logger,
		metrics:  deps.Metrics,
		now:      deps.Now,
		newKey:   deps.NewKey,
		inFlight: deps.InFlight,
	}
	if s.notify == nil {
		s.notify = notice.Discard{}
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newKey == nil {
		s.newKey = uuid.NewString
	}
	if s.inFlight <= 0 {
		s.inFlight = DefaultInFlightTTL
	}
	return s, nil
}

// Hydrate loads the persisted session. A missing or unreadable blob yields a
// fresh session at the cart step.
func (s *Sequencer) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.blobs.Get(ctx, StorageKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		s.state = Session{}
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	var decoded Session
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "checkout.hydrate.discarded")
		if delErr := s.blobs.Del(ctx, StorageKey); delErr != nil {
			s.logg.Error(ctx, "checkout.hydrate.discard_failed", delErr)
		}
		s.state = Session{}
		return nil
	}
	s.state = decoded
	return nil
}

// Session returns a copy of the current state.
func (s *Sequencer) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Begin moves the session from the cart to the details step. An anonymous
// shopper is sent to the login page first, an empty cart back home.
func (s *Sequencer) Begin(ctx context.Context, itemCount int, authenticated bool) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.beginLocked(ctx, itemCount, authenticated)
	s.metrics.CheckoutTransition("begin", err)
	return session, err
}

func (s *Sequencer) beginLocked(ctx context.Context, itemCount int, authenticated bool) (Session, error) {
	if s.state.Step == StepConfirmation {
		return s.state.clone(), pkgerrors.New(pkgerrors.CodeStateConflict, "order already placed; reset checkout to start again").
			WithDetails(map[string]any{"step": s.state.Step.String()})
	}
	if !authenticated {
		s.notify.Notify(ctx, notice.LevelWarning, MsgLoginRequired)
		return s.state.clone(), Redirect(RouteLogin, MsgLoginRequired)
	}
	if itemCount <= 0 {
		s.notify.Notify(ctx, notice.LevelWarning, MsgEmptyCart)
		return s.state.clone(), Redirect(RouteHome, MsgEmptyCart)
	}

	next := s.state.clone()
	next.Step = StepDetails
	if next.IdempotencyKey == "" {
		next.IdempotencyKey = s.newKey()
	}
	if err := s.commit(ctx, next); err != nil {
		return s.state.clone(), err
	}
	return s.state.clone(), nil
}

// Submit validates the form, places the order and, on success, clears the
// cart and advances to confirmation. Failures leave the session in details.
func (s *Sequencer) Submit(ctx context.Context, form Form) (*OrderResult, error) {
	result, err := s.submit(ctx, form)
	s.metrics.CheckoutTransition("submit", err)
	return result, err
}

func (s *Sequencer) submit(ctx context.Context, form Form) (*OrderResult, error) {
	form.ShippingAddress = form.ShippingAddress.Trimmed()
	form.Notes = strings.TrimSpace(form.Notes)
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	address := form.ShippingAddress.Normalized()
	notes := form.Notes

	s.mu.Lock()
	if s.state.Step != StepDetails {
		step := s.state.Step
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not at the details step").
			WithDetails(map[string]any{"step": step.String()})
	}
	if s.submittingLocked() {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "submission already in progress")
	}

	pending := s.state.clone()
	since := s.now()
	pending.SubmittingSince = &since
	pending.ShippingAddress = address
	pending.PaymentMethod = form.PaymentMethod
	pending.Notes = notes
	if pending.IdempotencyKey == "" {
		pending.IdempotencyKey = s.newKey()
	}
	if err := s.commit(ctx, pending); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	req := OrderRequest{
		PaymentMethod:   form.PaymentMethod,
		ShippingAddress: address,
		Notes:           notes,
		IdempotencyKey:  pending.IdempotencyKey,
	}
	s.mu.Unlock()

	result, orderErr := s.orders.CreateOrder(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if orderErr == nil && result == nil {
		orderErr = pkgerrors.New(pkgerrors.CodeDependency, "order creation returned no result")
	}
	if orderErr != nil {
		failed := s.state.clone()
		failed.SubmittingSince = nil
		failed.OrderResult = nil
		if err := s.commit(ctx, failed); err != nil {
			s.logg.Error(ctx, "checkout.submit.release_failed", err)
		}
		s.notify.Notify(ctx, notice.LevelError, MsgOrderFailed)
		s.logg.Warn(s.logg.WithField(ctx, "reason", orderErr.Error()), "checkout.submit.failed")
		return nil, orderErr
	}

	if err := s.cart.Clear(ctx); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, result.OrderID), "checkout.submit.clear_cart_failed", err)
	}

	done := s.state.clone()
	done.SubmittingSince = nil
	done.Step = StepConfirmation
	stored := *result
	done.OrderResult = &stored
	done.PixPending = form.PaymentMethod == enums.PaymentMethodPix
	if err := s.commit(ctx, done); err != nil {
		// the order exists; a retry replays the same idempotency key
		s.logg.Error(s.logg.WithOrderID(ctx, result.OrderID), "checkout.submit.persist_failed", err)
		s.state = done
	}
	s.notify.Notify(ctx, notice.LevelSuccess, MsgOrderCreated)
	s.logg.Info(s.logg.WithOrderID(ctx, result.OrderID), "checkout.submit.succeeded")

	out := stored
	return &out, nil
}

// ConfirmPayment acknowledges the pix payment of the placed order and returns
// the order detail route.
func (s *Sequencer) ConfirmPayment(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	route, err := s.confirmLocked(ctx)
	s.metrics.CheckoutTransition("confirm_payment", err)
	return route, err
}

func (s *Sequencer) confirmLocked(ctx context.Context) (string, error) {
	if s.state.Step != StepConfirmation || s.state.OrderResult == nil {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "no placed order to confirm").
			WithDetails(map[string]any{"step": s.state.Step.String()})
	}
	if s.state.PaymentMethod != enums.PaymentMethodPix || !s.state.PixPending {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order has no pending pix payment")
	}

	orderID := s.state.OrderResult.OrderID
	if err := s.payments.ConfirmPayment(ctx, orderID); err != nil {
		s.notify.Notify(ctx, notice.LevelError, MsgPaymentFailed)
		return "", err
	}

	next := s.state.clone()
	next.PixPending = false
	next.PaymentConfirmed = true
	if err := s.commit(ctx, next); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, orderID), "checkout.confirm.persist_failed", err)
		s.state = next
	}
	s.notify.Notify(ctx, notice.LevelSuccess, MsgPaymentConfirmed)
	return OrderRoute(orderID), nil
}

// Reset discards the session so the next checkout starts at the cart step
// with a fresh idempotency key.
func (s *Sequencer) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submittingLocked() {
		err := pkgerrors.New(pkgerrors.CodeConflict, "submission already in progress")
		s.metrics.CheckoutTransition("reset", err)
		return err
	}
	if err := s.blobs.Del(ctx, StorageKey); err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset checkout session")
		s.metrics.CheckoutTransition("reset", wrapped)
		return wrapped
	}
	s.state = Session{}
	s.metrics.CheckoutTransition("reset", nil)
	return nil
}

func (s *Sequencer) submittingLocked() bool {
	since := s.state.SubmittingSince
	return since != nil && s.now().Sub(*since) < s.inFlight
}

func (s *Sequencer) commit(ctx context.Context, next Session) error {
	next.UpdatedAt = s.now()
	payload, err := json.Marshal(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout session")
	}
	if err := s.blobs.Set(ctx, StorageKey, string(payload)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist checkout session")
	}
	s.state = next
	return nil
}

// OrderRoute is the shopper-facing order detail path.
func OrderRoute(orderID string) string {
	return "/orders/" + orderID
}

// Redirect builds the error returned when a guard sends the shopper elsewhere.
func Redirect(route, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"redirect": route})
}

// RedirectTarget extracts the recovery route from a Redirect error.
func RedirectTarget(err error) (string, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		return "", false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return "", false
	}
	route, ok := details["redirect"].(string)
	return route, ok && route != ""
}
