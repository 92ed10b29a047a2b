package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/coupon"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/money"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func line(id, price string, qty int) cart.LineItem {
	return cart.LineItem{ID: "temp_" + id, ProductID: id, Quantity: qty, UnitPriceSnapshot: d(price)}
}

var (
	gold10 = &coupon.Descriptor{Code: "GOLD10", Kind: enums.DiscountKindPercentage, Value: d("0.10")}
	save50 = &coupon.Descriptor{Code: "SAVE50", Kind: enums.DiscountKindFixed, Value: d("50")}
)

func TestCalculate(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		items    []cart.LineItem
		coupon   *coupon.Descriptor
		subtotal string
		shipping string
		discount string
		total    string
	}{
		{
			name:     "below threshold pays flat shipping",
			items:    []cart.LineItem{line("p1", "100", 2)},
			subtotal: "200", shipping: "29.90", discount: "0", total: "229.90",
		},
		{
			name:     "exactly at threshold still pays shipping",
			items:    []cart.LineItem{line("p1", "250", 2)},
			subtotal: "500", shipping: "29.90", discount: "0", total: "529.90",
		},
		{
			name:     "above threshold ships free",
			items:    []cart.LineItem{line("p1", "250", 2), line("p2", "0.01", 1)},
			subtotal: "500.01", shipping: "0", discount: "0", total: "500.01",
		},
		{
			name:     "percentage coupon",
			items:    []cart.LineItem{line("p1", "600", 1)},
			coupon:   gold10,
			subtotal: "600", shipping: "0", discount: "60", total: "540",
		},
		{
			name:     "fixed coupon",
			items:    []cart.LineItem{line("p1", "120", 1)},
			coupon:   save50,
			subtotal: "120", shipping: "29.90", discount: "50", total: "99.90",
		},
		{
			name:     "fixed coupon clamped to subtotal",
			items:    []cart.LineItem{line("p1", "30", 1)},
			coupon:   save50,
			subtotal: "30", shipping: "29.90", discount: "30", total: "29.90",
		},
		{
			name:     "empty cart applies the flat rule as-is",
			items:    nil,
			coupon:   save50,
			subtotal: "0", shipping: "29.90", discount: "0", total: "29.90",
		},
		{
			name:     "percentage rounds half up to cents",
			items:    []cart.LineItem{line("p1", "33.35", 1)},
			coupon:   gold10,
			subtotal: "33.35", shipping: "29.90", discount: "3.34", total: "59.91",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := Calculate(tt.items, tt.coupon, cfg)
			assert.True(t, q.Subtotal.Equal(d(tt.subtotal)), "subtotal %s", q.Subtotal)
			assert.True(t, q.ShippingCost.Equal(d(tt.shipping)), "shipping %s", q.ShippingCost)
			assert.True(t, q.Discount.Equal(d(tt.discount)), "discount %s", q.Discount)
			assert.True(t, q.Total.Equal(d(tt.total)), "total %s", q.Total)
		})
	}
}

func TestCalculateTotalNeverNegative(t *testing.T) {
	t.Parallel()
	cfg := Config{FreeShippingThreshold: d("0"), FlatShippingCost: d("0")}
	huge := &coupon.Descriptor{Code: "ALL", Kind: enums.DiscountKindFixed, Value: d("1000")}
	q := Calculate([]cart.LineItem{line("p1", "10", 1)}, huge, cfg)
	assert.True(t, q.Total.IsZero(), "total %s", q.Total)
	assert.False(t, q.Total.IsNegative())
}

func TestCalculateIsDeterministic(t *testing.T) {
	t.Parallel()
	items := []cart.LineItem{line("p1", "19.99", 3), line("p2", "7.45", 2)}
	first := Calculate(items, gold10, DefaultConfig())
	second := Calculate(items, gold10, DefaultConfig())
	assert.Equal(t, first.String(), second.String())
	assert.True(t, first.Subtotal.Equal(cart.Subtotal(items)))
	assert.Equal(t, 5, first.ItemCount)
	assert.Equal(t, "GOLD10", first.CouponCode)
}

func TestFormatted(t *testing.T) {
	t.Parallel()
	q := Calculate([]cart.LineItem{line("p1", "1234.5", 1)}, nil, DefaultConfig())
	out := q.Formatted(money.BRL)
	assert.Equal(t, "R$ 1.234,50", out.Subtotal)
	assert.Equal(t, "R$ 0,00", out.ShippingCost)
	assert.Equal(t, "R$ 1.234,50", out.Total)
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()
	cfg, err := ConfigFrom(config.PricingConfig{FreeShippingThresholdRaw: "300", FlatShippingRaw: "19.90"})
	require.NoError(t, err)
	assert.True(t, cfg.FreeShippingThreshold.Equal(d("300")))

	_, err = ConfigFrom(config.PricingConfig{FreeShippingThresholdRaw: "x", FlatShippingRaw: "1"})
	assert.Error(t, err)
}
