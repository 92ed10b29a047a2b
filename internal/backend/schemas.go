package backend

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/types"
)

type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Slug         string    `json:"slug"`
	IsActive     bool      `json:"is_active"`
	ProductCount int       `json:"product_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProductImage struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	ImageURL  string `json:"image_url"`
	AltText   string `json:"alt_text"`
	IsPrimary bool   `json:"is_primary"`
	SortOrder int    `json:"sort_order"`
}

// Product is the catalog entry. Price arrives as a decimal string.
type Product struct {
	ID            string          `json:"id"`
	CategoryID    string          `json:"category_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	SKU           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	Weight        string          `json:"weight,omitempty"`
	GoldPurity    string          `json:"gold_purity,omitempty"`
	StockQuantity int             `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
	Featured      bool            `json:"featured"`
	Category      *Category       `json:"category,omitempty"`
	Images        []ProductImage  `json:"images,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CartProduct projects the catalog entry onto what the cart snapshots.
func (p Product) CartProduct() cart.Product {
	return cart.Product{
		ID:            p.ID,
		Name:          p.Name,
		SKU:           p.SKU,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
	}
}

// PrimaryImage returns the image flagged primary, else the first one.
func (p Product) PrimaryImage() (ProductImage, bool) {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img, true
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0], true
	}
	return ProductImage{}, false
}

// ProductQuery filters the catalog listing.
type ProductQuery struct {
	Page     int    `json:"page,omitempty" validate:"omitempty,min=1"`
	Limit    int    `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
	Category string `json:"category,omitempty"`
	Featured *bool  `json:"featured,omitempty"`
	Search   string `json:"search,omitempty" validate:"max=120"`
}

// CartItem is a server-side cart line with the product denormalized.
type CartItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   Product   `json:"product"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"required,max=80"`
	LastName  string `json:"last_name" validate:"required,max=80"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=20"`
}

type OrderItem struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Product    *Product        `json:"product,omitempty"`
}

type Order struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	OrderNumber     string                `json:"order_number"`
	Status          enums.OrderStatus     `json:"status"`
	PaymentMethod   enums.PaymentMethod   `json:"payment_method"`
	PaymentStatus   enums.PaymentStatus   `json:"payment_status"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	ShippingCost    decimal.Decimal       `json:"shipping_cost"`
	Total           decimal.Decimal       `json:"total"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	TrackingCode    string                `json:"tracking_code,omitempty"`
	Notes           string                `json:"notes,omitempty"`
	Items           []OrderItem           `json:"items,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`

	// Filled by the client for display.
	StatusLabel        string `json:"status_label"`
	PaymentMethodLabel string `json:"payment_method_label"`
	AwaitingPayment    bool   `json:"awaiting_payment"`
}

func (o *Order) decorate() {
	o.StatusLabel = o.Status.Label()
	o.PaymentMethodLabel = o.PaymentMethod.Label()
	o.AwaitingPayment = o.Status != enums.OrderStatusCancelled && !o.PaymentStatus.IsFinal()
}

type pixPayload struct {
	QRCode string `json:"qrCode"`
	Code   string `json:"code"`
}

// orderCreated is the create-order response body.
type orderCreated struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	Total       decimal.Decimal `json:"total"`
	PixData     *pixPayload     `json:"pixData,omitempty"`
}

type TrackingEvent struct {
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type TrackingInfo struct {
	TrackingCode string          `json:"tracking_code"`
	OrderID      string          `json:"order_id,omitempty"`
	OrderNumber  string          `json:"order_number,omitempty"`
	Status       string          `json:"status"`
	Carrier      string          `json:"carrier,omitempty"`
	Events       []TrackingEvent `json:"events,omitempty"`
}
