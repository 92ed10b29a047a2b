package storefront

import (
	"context"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/events"
	"github.com/angelmondragon/storefront/pkg/types"
)

// CheckoutView is the checkout page payload. The idempotency key stays server side.
type CheckoutView struct {
	Step             checkout.Step          `json:"step"`
	ShippingAddress  *types.ShippingAddress `json:"shipping_address,omitempty"`
	PaymentMethod    enums.PaymentMethod    `json:"payment_method,omitempty"`
	Notes            string                 `json:"notes,omitempty"`
	Order            *checkout.OrderResult  `json:"order,omitempty"`
	PixPending       bool                   `json:"pix_pending"`
	PaymentConfirmed bool                   `json:"payment_confirmed"`
	Submitting       bool                   `json:"submitting"`
	Authenticated    bool                   `json:"authenticated"`
	Cart             CartView               `json:"cart"`
}

func (s *Service) checkoutView(ctx context.Context, sess *session) (CheckoutView, error) {
	state := sess.checkout.Session()
	cartView, err := s.view(ctx, sess)
	if err != nil {
		return CheckoutView{}, err
	}
	out := CheckoutView{
		Step:             state.Step,
		PaymentMethod:    state.PaymentMethod,
		Notes:            state.Notes,
		Order:            state.OrderResult,
		PixPending:       state.PixPending,
		PaymentConfirmed: state.PaymentConfirmed,
		Submitting:       state.SubmittingSince != nil,
		Authenticated:    sess.authenticated(),
		Cart:             cartView,
	}
	if state.ShippingAddress != (types.ShippingAddress{}) {
		address := state.ShippingAddress
		out.ShippingAddress = &address
	}
	return out, nil
}

func (s *Service) Checkout(ctx context.Context, sessionID string) (CheckoutView, error) {
	var out CheckoutView
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		var err error
		out, err = s.checkoutView(ctx, sess)
		return err
	})
	return out, err
}

// BeginCheckout moves from the cart to the details step. Guard failures carry
// the route the shopper should be sent to (see checkout.RedirectTarget).
func (s *Service) BeginCheckout(ctx context.Context, sessionID string) (CheckoutView, error) {
	var out CheckoutView
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		if _, err := sess.checkout.Begin(ctx, sess.cart.ItemCount(), sess.authenticated()); err != nil {
			return err
		}
		var err error
		out, err = s.checkoutView(ctx, sess)
		return err
	})
	return out, err
}

// SubmitCheckout places the order. On success the cart and coupon are cleared
// and an order.created event is published.
func (s *Service) SubmitCheckout(ctx context.Context, sessionID string, form checkout.Form) (*checkout.OrderResult, error) {
	var out *checkout.OrderResult
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		items := sess.cart.Items()
		applied, err := s.loadCoupon(ctx, sess)
		if err != nil {
			return err
		}
		result, err := sess.checkout.Submit(ctx, form)
		if err != nil {
			return err
		}
		created := events.OrderCreated{
			OrderID:       result.OrderID,
			OrderNumber:   result.OrderNumber,
			Total:         result.Total,
			PaymentMethod: form.PaymentMethod,
			ItemCount:     cart.ItemCount(items),
		}
		if applied != nil {
			created.CouponCode = applied.Code
		}
		s.publish(s.logg.WithOrderID(ctx, result.OrderID), sess, events.TypeOrderCreated, created)
		out = result
		return nil
	})
	return out, err
}

// ConfirmPayment acknowledges the pix payment and returns the order route.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID string) (string, error) {
	var route string
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		var err error
		route, err = sess.checkout.ConfirmPayment(ctx)
		if err != nil {
			return err
		}
		if order := sess.checkout.Session().OrderResult; order != nil {
			s.publish(s.logg.WithOrderID(ctx, order.OrderID), sess, events.TypePaymentConfirmed,
				events.PaymentConfirmed{OrderID: order.OrderID})
		}
		return nil
	})
	return route, err
}

func (s *Service) ResetCheckout(ctx context.Context, sessionID string) (CheckoutView, error) {
	var out CheckoutView
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		if err := sess.checkout.Reset(ctx); err != nil {
			return err
		}
		var err error
		out, err = s.checkoutView(ctx, sess)
		return err
	})
	return out, err
}
