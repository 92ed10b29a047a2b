package enums

import (
	"fmt"
	"strings"
)

// DiscountKind selects how a coupon value is applied to the subtotal.
type DiscountKind string

const (
	DiscountKindPercentage DiscountKind = "percentage"
	DiscountKindFixed      DiscountKind = "fixed"
)

// String implements fmt.Stringer.
func (d DiscountKind) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountKind.
func (d DiscountKind) IsValid() bool {
	return d == DiscountKindPercentage || d == DiscountKindFixed
}

// ParseDiscountKind converts raw input into a DiscountKind, ignoring case.
func ParseDiscountKind(value string) (DiscountKind, error) {
	kind := DiscountKind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid discount kind %q", value)
	}
	return kind, nil
}
