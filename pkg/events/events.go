// Package events publishes checkout lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/pkg/enums"
)

type Type string

const (
	TypeOrderCreated     Type = "order.created"
	TypePaymentConfirmed Type = "order.payment_confirmed"
	TypeCartCleared      Type = "cart.cleared"

	envelopeVersion = 1
)

// Envelope is the stable JSON shape written to the broker.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	Type       Type            `json:"type"`
	SessionID  string          `json:"sessionId"`
	UserID     string          `json:"userId,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

type OrderCreated struct {
	OrderID       string              `json:"orderId"`
	OrderNumber   string              `json:"orderNumber"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	ItemCount     int                 `json:"itemCount"`
	CouponCode    string              `json:"couponCode,omitempty"`
}

type PaymentConfirmed struct {
	OrderID string `json:"orderId"`
}

type CartCleared struct {
	Reason string `json:"reason"`
}

// NewEnvelope stamps data with an id and timestamp.
func NewEnvelope(eventType Type, sessionID, userID string, data any, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		Type:       eventType,
		SessionID:  sessionID,
		UserID:     userID,
		OccurredAt: now.UTC(),
		Data:       payload,
	}, nil
}

// Publisher hands envelopes to a broker.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Envelope) error { return nil }

func (Noop) Close() error { return nil }
