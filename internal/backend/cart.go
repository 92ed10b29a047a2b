package backend

import (
	"context"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

type cartLineRequest struct {
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// ListCart returns the authenticated shopper's server-side cart.
func (c *Client) ListCart(ctx context.Context) ([]CartItem, error) {
	var items []CartItem
	if _, err := c.do(ctx, call{op: "cart.list", method: http.MethodGet, path: "/cart"}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) error {
	if _, err := requireID("product id", productID); err != nil {
		return err
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	_, err := c.do(ctx, call{
		op:     "cart.add",
		method: http.MethodPost,
		path:   "/cart",
		body:   cartLineRequest{ProductID: productID, Quantity: quantity},
	}, nil)
	return err
}

func (c *Client) UpdateCartItem(ctx context.Context, productID string, quantity int) error {
	id, err := requireID("product id", productID)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, call{
		op:     "cart.update",
		method: http.MethodPut,
		path:   "/cart/" + id,
		body:   cartLineRequest{Quantity: quantity},
	}, nil)
	return err
}

func (c *Client) RemoveFromCart(ctx context.Context, productID string) error {
	id, err := requireID("product id", productID)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, call{op: "cart.remove", method: http.MethodDelete, path: "/cart/" + id}, nil)
	return err
}

func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.do(ctx, call{op: "cart.clear", method: http.MethodDelete, path: "/cart"}, nil)
	return err
}
