package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/backend"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/storefront"
	"github.com/angelmondragon/storefront/pkg/types"
)

// CartService is the cart half of the session facade.
type CartService interface {
	Cart(ctx context.Context, sessionID string) (storefront.CartView, error)
	AddItem(ctx context.Context, sessionID, productID string, quantity int) (storefront.CartView, error)
	UpdateItem(ctx context.Context, sessionID, productID string, quantity int) (storefront.CartView, error)
	RemoveItem(ctx context.Context, sessionID, productID string) (storefront.CartView, error)
	ClearCart(ctx context.Context, sessionID string) (storefront.CartView, error)
	SyncCart(ctx context.Context, sessionID string) error
	ApplyCoupon(ctx context.Context, sessionID, code string) (storefront.CartView, error)
	RemoveCoupon(ctx context.Context, sessionID string) (storefront.CartView, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, sessionID string) (storefront.CheckoutView, error)
	BeginCheckout(ctx context.Context, sessionID string) (storefront.CheckoutView, error)
	SubmitCheckout(ctx context.Context, sessionID string, form checkout.Form) (*checkout.OrderResult, error)
	ConfirmPayment(ctx context.Context, sessionID string) (string, error)
	ResetCheckout(ctx context.Context, sessionID string) (storefront.CheckoutView, error)
}

type AccountService interface {
	Login(ctx context.Context, sessionID string, creds backend.Credentials) (*backend.User, error)
	Register(ctx context.Context, sessionID string, req backend.RegisterRequest) (*backend.User, error)
	Logout(ctx context.Context, sessionID string) error
	Me(ctx context.Context, sessionID string) (*backend.User, error)
	Orders(ctx context.Context, sessionID string) ([]backend.Order, error)
	Order(ctx context.Context, sessionID, orderID string) (*backend.Order, error)
	TrackOrder(ctx context.Context, sessionID, orderID string) (*backend.TrackingInfo, error)
}

// Catalog is the read-only product surface, served straight from the backend.
type Catalog interface {
	ListProducts(ctx context.Context, query backend.ProductQuery) (types.Page[backend.Product], error)
	GetProduct(ctx context.Context, productID string) (*backend.Product, error)
	FeaturedProducts(ctx context.Context, limit int) ([]backend.Product, error)
	Categories(ctx context.Context) ([]backend.Category, error)
	Track(ctx context.Context, code string) (*backend.TrackingInfo, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func sessionID(r *http.Request) string {
	return middleware.SessionIDFromContext(r.Context())
}
