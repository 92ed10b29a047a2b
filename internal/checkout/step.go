package checkout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/types"
)

// StorageKey is the session-scoped name the checkout state is saved under.
const StorageKey = "checkout"

// Step is the position of a session in the forward-only checkout flow.
type Step int

const (
	StepCart Step = iota
	StepDetails
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepDetails:
		return "details"
	case StepConfirmation:
		return "confirmation"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "cart":
		*s = StepCart
	case "details":
		*s = StepDetails
	case "confirmation":
		*s = StepConfirmation
	default:
		return fmt.Errorf("unknown checkout step %q", raw)
	}
	return nil
}

type PixData struct {
	QRCode string `json:"qr_code"`
	Code   string `json:"code"`
}

// OrderResult is what the backend returns once an order exists.
type OrderResult struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
	Pix         *PixData        `json:"pix,omitempty"`
}

// Form is the details-step submission: where to ship and how to pay.
type Form struct {
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	PaymentMethod   enums.PaymentMethod   `json:"payment_method" validate:"required,oneof=pix credit_card"`
	Notes           string                `json:"notes,omitempty" validate:"max=500"`
}

// OrderRequest is the body sent to the order-creation endpoint.
type OrderRequest struct {
	PaymentMethod   enums.PaymentMethod   `json:"payment_method"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	Notes           string                `json:"notes,omitempty"`
	IdempotencyKey  string                `json:"-"`
}

// Session is the persisted checkout state for one shopper.
type Session struct {
	Step             Step                  `json:"step"`
	ShippingAddress  types.ShippingAddress `json:"shipping_address"`
	PaymentMethod    enums.PaymentMethod   `json:"payment_method,omitempty"`
	Notes            string                `json:"notes,omitempty"`
	OrderResult      *OrderResult          `json:"order_result,omitempty"`
	IdempotencyKey   string                `json:"idempotency_key,omitempty"`
	PixPending       bool                  `json:"pix_pending"`
	PaymentConfirmed bool                  `json:"payment_confirmed"`
	SubmittingSince  *time.Time            `json:"submitting_since,omitempty"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func (s Session) clone() Session {
	out := s
	if s.OrderResult != nil {
		result := *s.OrderResult
		if s.OrderResult.Pix != nil {
			pix := *s.OrderResult.Pix
			result.Pix = &pix
		}
		out.OrderResult = &result
	}
	if s.SubmittingSince != nil {
		since := *s.SubmittingSince
		out.SubmittingSince = &since
	}
	return out
}
