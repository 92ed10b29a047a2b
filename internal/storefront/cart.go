package storefront

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/coupon"
	"github.com/angelmondragon/storefront/internal/notice"
	"github.com/angelmondragon/storefront/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/events"
	"github.com/angelmondragon/storefront/pkg/kvstore"
)

const (
	CouponKey = "coupon"

	MsgCouponApplied = "Cupom aplicado com sucesso!"
	MsgCouponInvalid = "Cupom inválido"
	MsgCouponRemoved = "Cupom removido"
)

// CartView is the cart page payload.
type CartView struct {
	Items   []cart.LineItem    `json:"items"`
	Coupon  *coupon.Descriptor `json:"coupon,omitempty"`
	Quote   pricing.Quote      `json:"quote"`
	Display pricing.Display    `json:"display"`
}

func (s *Service) view(ctx context.Context, sess *session) (CartView, error) {
	applied, err := s.loadCoupon(ctx, sess)
	if err != nil {
		return CartView{}, err
	}
	items := sess.cart.Items()
	quote := pricing.Calculate(items, applied, s.pricing)
	return CartView{
		Items:   items,
		Coupon:  applied,
		Quote:   quote,
		Display: quote.Formatted(s.formatter),
	}, nil
}

func (s *Service) Cart(ctx context.Context, sessionID string) (CartView, error) {
	var out CartView
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		var err error
		out, err = s.view(ctx, sess)
		return err
	})
	return out, err
}

// AddItem looks the product up in the catalog and merges it into the cart.
func (s *Service) AddItem(ctx context.Context, sessionID, productID string, quantity int) (CartView, error) {
	var out CartView
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		err := s.addItem(ctx, sess, productID, quantity)
		s.metrics.CartMutation("add", err)
		if err != nil {
			return err
		}
		out, err = s.view(ctx, sess)
		return err
	})
	return out, err
}

func (s *Service) addItem(ctx context.Context, sess *session, productID string, quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": quantity})
	}
	product, err := s.products.Product(ctx, productID)
	if err != nil {
		return err
	}
	if _, err := sess.cart.AddItem(ctx, product, quantity); err != nil {
		return err
	}
	s.endIfRejected(ctx, sess, s.mirror.Added(ctx, product.ID, quantity))
	return nil
}

// UpdateItem sets a line's quantity; zero or less removes it.
func (s *Service) UpdateItem(ctx context.Context, sessionID, productID string, quantity int) (CartView, error) {
	var out CartView
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		_, err := sess.cart.UpdateQuantity(ctx, productID, quantity)
		s.metrics.CartMutation("update", err)
		if err != nil {
			return err
		}
		s.endIfRejected(ctx, sess, s.mirror.Updated(ctx, productID, quantity))
		if err := s.dropCouponIfEmpty(ctx, sess); err != nil {
			return err
		}
		out, err = s.view(ctx, sess)
		return err
	})
	return out, err
}

func (s *Service) RemoveItem(ctx context.Context, sessionID, productID string) (CartView, error) {
	var out CartView
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		_, present := sess.cart.Line(productID)
		err := sess.cart.RemoveItem(ctx, productID)
		s.metrics.CartMutation("remove", err)
		if err != nil {
			return err
		}
		if present {
			s.endIfRejected(ctx, sess, s.mirror.Removed(ctx, productID))
		}
		if err := s.dropCouponIfEmpty(ctx, sess); err != nil {
			return err
		}
		out, err = s.view(ctx, sess)
		return err
	})
	return out, err
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) (CartView, error) {
	var out CartView
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		if err := s.clearCart(ctx, sess, "shopper"); err != nil {
			return err
		}
		var err error
		out, err = s.view(ctx, sess)
		return err
	})
	return out, err
}

func (s *Service) clearCart(ctx context.Context, sess *session, reason string) error {
	err := sess.cart.Clear(ctx)
	s.metrics.CartMutation("clear", err)
	if err != nil {
		return err
	}
	s.endIfRejected(ctx, sess, s.mirror.Cleared(ctx))
	if err := s.dropCouponIfEmpty(ctx, sess); err != nil {
		return err
	}
	s.publish(ctx, sess, events.TypeCartCleared, events.CartCleared{Reason: reason})
	return nil
}

// orderCartClearer empties the cart once checkout has placed the order.
type orderCartClearer struct {
	svc  *Service
	sess *session
}

func (c orderCartClearer) Clear(ctx context.Context) error {
	return c.svc.clearCart(ctx, c.sess, "order_placed")
}

// SyncCart pushes the local cart to the backend cart of a logged-in shopper.
func (s *Service) SyncCart(ctx context.Context, sessionID string) error {
	return s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		if !sess.authenticated() {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
		}
		_, err := s.reconciler.Push(ctx, sess.cart.Items())
		return err
	})
}

// ApplyCoupon resolves code and stores it on the session. A rejected code
// leaves the previously applied coupon in place.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID, code string) (CartView, error) {
	var out CartView
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		if err := s.allowCouponAttempt(ctx, sess); err != nil {
			return err
		}
		resolved, err := s.coupons.Resolve(ctx, code)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				sess.notify.Notify(ctx, notice.LevelError, MsgCouponInvalid)
			}
			return err
		}
		payload, err := json.Marshal(resolved)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode coupon")
		}
		if err := sess.blobs.Set(ctx, CouponKey, string(payload)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist coupon")
		}
		s.logg.Info(s.logg.WithField(ctx, "coupon", resolved.Code), "storefront.coupon.applied")
		sess.notify.Notify(ctx, notice.LevelSuccess, MsgCouponApplied)
		out, err = s.view(ctx, sess)
		return err
	})
	return out, err
}

func (s *Service) RemoveCoupon(ctx context.Context, sessionID string) (CartView, error) {
	var out CartView
	err := s.withSession(ctx, sessionID, func(ctx context.Context, sess *session) error {
		if err := sess.blobs.Del(ctx, CouponKey); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove coupon")
		}
		sess.notify.Notify(ctx, notice.LevelInfo, MsgCouponRemoved)
		var err error
		out, err = s.view(ctx, sess)
		return err
	})
	return out, err
}

func (s *Service) allowCouponAttempt(ctx context.Context, sess *session) error {
	if s.limiter == nil || s.couponAttempts <= 0 {
		return nil
	}
	allowed, count, err := s.limiter.FixedWindowAllow(ctx, "coupon:"+sess.id, s.couponAttempts, s.couponWindow)
	if err != nil {
		s.logg.Error(ctx, "storefront.coupon.rate_limit_unavailable", err)
		return nil
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "muitas tentativas de cupom; tente novamente mais tarde").
			WithDetails(map[string]any{"attempts": count, "retry_after_seconds": int(s.couponWindow.Seconds())})
	}
	return nil
}

func (s *Service) loadCoupon(ctx context.Context, sess *session) (*coupon.Descriptor, error) {
	raw, err := sess.blobs.Get(ctx, CouponKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	var stored coupon.Descriptor
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.Validate() != nil {
		s.logg.Warn(ctx, "storefront.coupon.discarded")
		if delErr := sess.blobs.Del(ctx, CouponKey); delErr != nil {
			s.logg.Error(ctx, "storefront.coupon.discard_failed", delErr)
		}
		return nil, nil
	}
	return &stored, nil
}

// dropCouponIfEmpty removes the applied coupon once the subtotal reaches zero.
func (s *Service) dropCouponIfEmpty(ctx context.Context, sess *session) error {
	if cart.Subtotal(sess.cart.Items()).IsPositive() {
		return nil
	}
	if err := sess.blobs.Del(ctx, CouponKey); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear coupon")
	}
	return nil
}
