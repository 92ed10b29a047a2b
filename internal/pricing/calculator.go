// Package pricing turns a cart snapshot and an optional coupon into a quote.
// Every function here is pure.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/coupon"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/money"
)

var (
	DefaultFreeShippingThreshold = decimal.RequireFromString("500.00")
	DefaultFlatShippingCost      = decimal.RequireFromString("29.90")
)

type Config struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingCost      decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		FlatShippingCost:      DefaultFlatShippingCost,
	}
}

// ConfigFrom reads the shipping rule from application configuration.
func ConfigFrom(cfg config.PricingConfig) (Config, error) {
	threshold, err := cfg.FreeShippingThreshold()
	if err != nil {
		return Config{}, err
	}
	flat, err := cfg.FlatShipping()
	if err != nil {
		return Config{}, err
	}
	return Config{FreeShippingThreshold: threshold, FlatShippingCost: flat}, nil
}

// Quote is the price breakdown shown on the cart and checkout views.
type Quote struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	ItemCount    int             `json:"item_count"`
	FreeShipping bool            `json:"free_shipping"`
	CouponCode   string          `json:"coupon_code,omitempty"`
}

// Calculate prices items:
//
//	subtotal = Σ unit price snapshot × quantity
//	shipping = 0 when subtotal > threshold, flat cost otherwise
//	discount = subtotal × value (percentage) or value clamped to subtotal (fixed), in cents
//	total    = max(0, subtotal + shipping − discount)
func Calculate(items []cart.LineItem, c *coupon.Descriptor, cfg Config) Quote {
	subtotal := cart.Subtotal(items)

	shipping := cfg.FlatShippingCost
	free := subtotal.GreaterThan(cfg.FreeShippingThreshold)
	if free {
		shipping = decimal.Zero
	}

	discount := money.Round(Discount(subtotal, c))

	total := subtotal.Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	q := Quote{
		Subtotal:     money.Round(subtotal),
		ShippingCost: money.Round(shipping),
		Discount:     discount,
		Total:        money.Round(total),
		ItemCount:    cart.ItemCount(items),
		FreeShipping: free,
	}
	if c != nil {
		q.CouponCode = c.Code
	}
	return q
}

// Discount returns the amount a coupon takes off subtotal, never more than subtotal.
func Discount(subtotal decimal.Decimal, c *coupon.Descriptor) decimal.Decimal {
	if c == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch c.Kind {
	case enums.DiscountKindPercentage:
		amount = subtotal.Mul(c.Value)
	case enums.DiscountKindFixed:
		amount = c.Value
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// Display is a Quote rendered with a money formatter.
type Display struct {
	Subtotal     string `json:"subtotal"`
	ShippingCost string `json:"shipping_cost"`
	Discount     string `json:"discount"`
	Total        string `json:"total"`
}

func (q Quote) Formatted(f money.Formatter) Display {
	return Display{
		Subtotal:     f.Format(q.Subtotal),
		ShippingCost: f.Format(q.ShippingCost),
		Discount:     f.Format(q.Discount),
		Total:        f.Format(q.Total),
	}
}

func (q Quote) String() string {
	return fmt.Sprintf("subtotal=%s shipping=%s discount=%s total=%s",
		q.Subtotal.StringFixed(2), q.ShippingCost.StringFixed(2), q.Discount.StringFixed(2), q.Total.StringFixed(2))
}
