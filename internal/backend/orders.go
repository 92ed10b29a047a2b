package backend

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// CreateOrder places an order from the shopper's server-side cart. The
// request's idempotency key is forwarded so retries map to one order.
func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest) (*checkout.OrderResult, error) {
	var created orderCreated
	_, err := c.do(ctx, call{
		op:             "orders.create",
		method:         http.MethodPost,
		path:           "/orders",
		body:           req,
		idempotencyKey: req.IdempotencyKey,
	}, &created)
	if err != nil {
		return nil, err
	}
	if created.OrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order created without an id")
	}
	result := &checkout.OrderResult{
		OrderID:     created.OrderID,
		OrderNumber: created.OrderNumber,
		Total:       created.Total,
	}
	if created.PixData != nil {
		result.Pix = &checkout.PixData{QRCode: created.PixData.QRCode, Code: created.PixData.Code}
	}
	return result, nil
}

// ConfirmPayment marks a pix order as paid.
func (c *Client) ConfirmPayment(ctx context.Context, orderID string) error {
	id, err := requireID("order id", orderID)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, call{
		op:     "orders.confirm_payment",
		method: http.MethodPost,
		path:   "/orders/" + id + "/confirm-payment",
	}, nil)
	return err
}

func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if _, err := c.do(ctx, call{op: "orders.list", method: http.MethodGet, path: "/orders"}, &orders); err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].decorate()
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	id, err := requireID("order id", orderID)
	if err != nil {
		return nil, err
	}
	var order Order
	if _, err := c.do(ctx, call{op: "orders.get", method: http.MethodGet, path: "/orders/" + id}, &order); err != nil {
		return nil, err
	}
	order.decorate()
	return &order, nil
}

// Track looks up shipment progress by tracking code.
func (c *Client) Track(ctx context.Context, code string) (*TrackingInfo, error) {
	escaped, err := requireID("tracking code", code)
	if err != nil {
		return nil, err
	}
	var info TrackingInfo
	if _, err := c.do(ctx, call{op: "tracking.code", method: http.MethodGet, path: "/tracking/" + escaped}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) TrackOrder(ctx context.Context, orderID string) (*TrackingInfo, error) {
	id, err := requireID("order id", orderID)
	if err != nil {
		return nil, err
	}
	var info TrackingInfo
	if _, err := c.do(ctx, call{op: "tracking.order", method: http.MethodGet, path: "/tracking/order/" + id}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
