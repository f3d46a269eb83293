package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPending           PaymentStatus = "PENDING"
	StatusProcessing        PaymentStatus = "PROCESSING"
	StatusCompleted         PaymentStatus = "COMPLETED"
	StatusDeclined          PaymentStatus = "DECLINED"
	StatusCancelled         PaymentStatus = "CANCELLED"
	StatusRefunded          PaymentStatus = "REFUNDED"
	StatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	StatusFailed            PaymentStatus = "FAILED"
	StatusExpired           PaymentStatus = "EXPIRED"
)

// IsTerminal reports whether no workflow transition may leave the status.
// COMPLETED is not terminal here: it can still move to a refunded status.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusDeclined, StatusRefunded, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Payment is the central business entity: one monetary record created per
// idempotency key and per order, mutated only through workflow transitions.
type Payment struct {
	ID                    uuid.UUID
	IdempotencyKey        string
	OrderID               string
	UserID                string
	MerchantID            string
	Amount                decimal.Decimal
	Currency              Currency
	PaymentMethod         PaymentMethod
	Status                PaymentStatus
	Description           string
	ExternalTransactionID string
	ErrorCode             string
	ErrorMessage          string
	RefundedAmount        decimal.Decimal
	Metadata              string
	Revision              int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
	ExpiresAt             time.Time
}

func (p *Payment) IsCancellable() bool {
	return p.Status == StatusPending || p.Status == StatusProcessing
}

func (p *Payment) IsConfirmable() bool {
	return p.Status == StatusPending || p.Status == StatusProcessing
}

func (p *Payment) IsRefundable() bool {
	return p.Status == StatusCompleted || p.Status == StatusPartiallyRefunded
}

// RefundableAmount is what remains available to refund.
func (p *Payment) RefundableAmount() decimal.Decimal {
	if !p.IsRefundable() {
		return decimal.Zero
	}
	return p.Amount.Sub(p.RefundedAmount)
}

type TransactionType string

const (
	TxPayment       TransactionType = "PAYMENT"
	TxRefund        TransactionType = "REFUND"
	TxPartialRefund TransactionType = "PARTIAL_REFUND"
	TxAuthorization TransactionType = "AUTHORIZATION"
	TxCapture       TransactionType = "CAPTURE"
	TxVoid          TransactionType = "VOID"
)

// Transaction is an append-only audit entry tied to a Payment. Immutable
// once written, except the original PAYMENT entry which is stamped with the
// outcome when the payment completes.
type Transaction struct {
	ID          uuid.UUID
	PaymentID   uuid.UUID
	Type        TransactionType
	Amount      decimal.Decimal
	Currency    Currency
	Status      PaymentStatus
	ExternalID  string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// SyntheticExternalID builds the external-system transaction id we stamp on
// simulated gateway responses, e.g. "TXN-1A2B3C4D".
func SyntheticExternalID(prefix string) string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "-" + strings.ToUpper(raw[:8])
}
