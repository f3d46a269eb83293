// Package events publishes payment state-change notifications to the
// collaborator message bus. Delivery is best-effort: a publish failure is
// logged and never affects the outcome of the triggering operation.
package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

const (
	TypePaymentCreated   = "PAYMENT_CREATED"
	TypePaymentCompleted = "PAYMENT_COMPLETED"
	TypePaymentCancelled = "PAYMENT_CANCELLED"
	TypePaymentRefunded  = "PAYMENT_REFUNDED"
	TypePaymentFailed    = "PAYMENT_FAILED"
)

type Event struct {
	Type      string            `json:"eventType"`
	PaymentID string            `json:"paymentId"`
	OrderID   string            `json:"orderId"`
	UserID    string            `json:"userId"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Publisher is the outbound port to the message bus. Implementations must
// never block the caller on delivery.
type Publisher interface {
	Publish(event Event)
}

func baseEvent(p *domain.Payment, eventType string) Event {
	return Event{
		Type:      eventType,
		PaymentID: p.ID.String(),
		OrderID:   p.OrderID,
		UserID:    p.UserID,
		Amount:    p.Amount.String(),
		Currency:  string(p.Currency),
		Status:    string(p.Status),
		Timestamp: time.Now().UTC(),
	}
}

func PaymentCreated(p *domain.Payment) Event {
	return baseEvent(p, TypePaymentCreated)
}

func PaymentCompleted(p *domain.Payment) Event {
	e := baseEvent(p, TypePaymentCompleted)
	e.Fields = map[string]string{
		"externalTransactionId": p.ExternalTransactionID,
	}
	if p.CompletedAt != nil {
		e.Fields["completedAt"] = p.CompletedAt.Format(time.RFC3339)
	}
	return e
}

func PaymentCancelled(p *domain.Payment) Event {
	return baseEvent(p, TypePaymentCancelled)
}

// PaymentRefunded carries both the refund delta and the cumulative total.
func PaymentRefunded(p *domain.Payment, refundAmount decimal.Decimal) Event {
	e := baseEvent(p, TypePaymentRefunded)
	e.Fields = map[string]string{
		"refundAmount":  refundAmount.String(),
		"totalRefunded": p.RefundedAmount.String(),
	}
	return e
}

func PaymentFailed(p *domain.Payment) Event {
	e := baseEvent(p, TypePaymentFailed)
	e.Fields = map[string]string{
		"errorCode":    p.ErrorCode,
		"errorMessage": p.ErrorMessage,
	}
	return e
}
