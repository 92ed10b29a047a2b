package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// ErrNotFound is returned when a code matches no rule.
var ErrNotFound = errors.New("coupon not found")

// Descriptor is a resolved coupon. Value is a fraction in [0,1] for percentage
// coupons and a currency amount for fixed ones.
type Descriptor struct {
	Code        string             `json:"code"`
	Kind        enums.DiscountKind `json:"kind"`
	Value       decimal.Decimal    `json:"value"`
	Description string             `json:"description,omitempty"`
}

// Validate checks the value range for the descriptor's kind.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Code) == "" {
		return fmt.Errorf("coupon code is required")
	}
	switch d.Kind {
	case enums.DiscountKindPercentage:
		if d.Value.IsNegative() || d.Value.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("coupon %s: percentage must be within [0,1], got %s", d.Code, d.Value)
		}
	case enums.DiscountKindFixed:
		if d.Value.IsNegative() {
			return fmt.Errorf("coupon %s: fixed value must not be negative", d.Code)
		}
	default:
		return fmt.Errorf("coupon %s: invalid kind %q", d.Code, d.Kind)
	}
	return nil
}

// Repository provides lookup of coupon rules by normalized code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Descriptor, error)
}

// Resolver maps user-typed codes to descriptors.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) (*Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &Resolver{repo: repo}, nil
}

// Resolve matches code case-insensitively and exactly. Unknown codes return a
// VALIDATION_ERROR wrapping ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, code string) (*Descriptor, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "informe um cupom")
	}
	found, err := r.repo.FindByCode(ctx, normalized)
	if errors.Is(err, ErrNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cupom inválido").
			WithDetails(map[string]any{"code": normalized})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve coupon")
	}
	out := *found
	return &out, nil
}

// Normalize trims and upper-cases a code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
