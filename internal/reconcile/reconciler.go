// Package reconcile keeps the backend's server-side cart in line with the
// locally persisted cart.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/internal/backend"
	"github.com/angelmondragon/storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// RemoteCart is the backend cart surface reconciliation drives.
type RemoteCart interface {
	ListCart(ctx context.Context) ([]backend.CartItem, error)
	AddToCart(ctx context.Context, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, productID string) error
	ClearCart(ctx context.Context) error
}

type failureRecorder interface {
	MirrorFailure(op string)
}

type nopRecorder struct{}

func (nopRecorder) MirrorFailure(string) {}

// Summary counts the calls a Push issued.
type Summary struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Reconciler pushes the local cart to the backend. The local cart is the
// source of truth and is never modified.
type Reconciler struct {
	remote RemoteCart
	logg   *logger.Logger
}

func NewReconciler(remote RemoteCart, logg *logger.Logger) (*Reconciler, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote cart required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Reconciler{remote: remote, logg: logg}, nil
}

// Push issues the minimal set of add/update/remove calls that make the
// backend cart match local. Per-line failures are combined into one error.
func (r *Reconciler) Push(ctx context.Context, local []cart.LineItem) (Summary, error) {
	var summary Summary
	remote, err := r.remote.ListCart(ctx)
	if err != nil {
		return summary, err
	}

	remoteQty := make(map[string]int, len(remote))
	for _, item := range remote {
		remoteQty[item.ProductID] += item.Quantity
	}

	var errs error
	wanted := make(map[string]struct{}, len(local))
	for _, line := range local {
		wanted[line.ProductID] = struct{}{}
		have, exists := remoteQty[line.ProductID]
		switch {
		case !exists:
			if err := r.remote.AddToCart(ctx, line.ProductID, line.Quantity); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("add %s: %w", line.ProductID, err))
				summary.Failed++
				continue
			}
			summary.Added++
		case have != line.Quantity:
			if err := r.remote.UpdateCartItem(ctx, line.ProductID, line.Quantity); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("update %s: %w", line.ProductID, err))
				summary.Failed++
				continue
			}
			summary.Updated++
		}
	}

	for _, item := range remote {
		if _, keep := wanted[item.ProductID]; keep {
			continue
		}
		wanted[item.ProductID] = struct{}{}
		if err := r.remote.RemoveFromCart(ctx, item.ProductID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", item.ProductID, err))
			summary.Failed++
			continue
		}
		summary.Removed++
	}

	logCtx := r.logg.WithFields(ctx, map[string]any{
		"added":   summary.Added,
		"updated": summary.Updated,
		"removed": summary.Removed,
		"failed":  summary.Failed,
	})
	if errs != nil {
		r.logg.Warn(logCtx, "cart.reconcile.partial")
		if rejected(errs) {
			return summary, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, errs, "backend rejected token")
		}
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "cart reconciliation incomplete")
	}
	r.logg.Info(logCtx, "cart.reconcile.complete")
	return summary, nil
}

// rejected reports whether any combined failure was an UNAUTHORIZED response.
func rejected(errs error) bool {
	for _, err := range multierr.Errors(errs) {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			return true
		}
	}
	return false
}

// Mirror forwards single cart mutations to the backend on a best-effort
// basis. Failures are logged and counted; only an UNAUTHORIZED failure is
// returned so the caller can end the shopper session.
type Mirror struct {
	remote  RemoteCart
	enabled bool
	logg    *logger.Logger
	metrics failureRecorder
}

func NewMirror(remote RemoteCart, enabled bool, logg *logger.Logger, metrics failureRecorder) *Mirror {
	if logg == nil {
		logg = logger.Nop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Mirror{remote: remote, enabled: enabled && remote != nil, logg: logg, metrics: metrics}
}

// active reports whether ctx carries a shopper token and sync is on.
func (m *Mirror) active(ctx context.Context) bool {
	return m != nil && m.enabled && backend.TokenFromContext(ctx) != ""
}

func (m *Mirror) Added(ctx context.Context, productID string, quantity int) error {
	if !m.active(ctx) {
		return nil
	}
	return m.report(ctx, "add", productID, m.remote.AddToCart(ctx, productID, quantity))
}

func (m *Mirror) Updated(ctx context.Context, productID string, quantity int) error {
	if !m.active(ctx) {
		return nil
	}
	if quantity <= 0 {
		return m.report(ctx, "remove", productID, m.remote.RemoveFromCart(ctx, productID))
	}
	return m.report(ctx, "update", productID, m.remote.UpdateCartItem(ctx, productID, quantity))
}

func (m *Mirror) Removed(ctx context.Context, productID string) error {
	if !m.active(ctx) {
		return nil
	}
	return m.report(ctx, "remove", productID, m.remote.RemoveFromCart(ctx, productID))
}

func (m *Mirror) Cleared(ctx context.Context) error {
	if !m.active(ctx) {
		return nil
	}
	return m.report(ctx, "clear", "", m.remote.ClearCart(ctx))
}

func (m *Mirror) report(ctx context.Context, op, productID string, err error) error {
	if err == nil {
		return nil
	}
	m.metrics.MirrorFailure(op)
	logCtx := m.logg.WithFields(ctx, map[string]any{
		"op":         op,
		"product_id": productID,
		"error":      err.Error(),
	})
	m.logg.Warn(logCtx, "cart.mirror.failed")
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		return err
	}
	return nil
}
