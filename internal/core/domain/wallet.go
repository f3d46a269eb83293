package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a user's funds in a single currency. BlockedAmount is the
// portion of Balance reserved by an in-flight transfer; it is never larger
// than Balance and never negative.
type Wallet struct {
	ID            uuid.UUID
	UserID        string
	Currency      Currency
	Balance       decimal.Decimal
	BlockedAmount decimal.Decimal
	Active        bool
	Revision      int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewWallet(userID string, currency Currency, initialBalance decimal.Decimal) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:            uuid.New(),
		UserID:        userID,
		Currency:      currency,
		Balance:       initialBalance,
		BlockedAmount: decimal.Zero,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Available is the balance minus the held amount.
func (w *Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.BlockedAmount)
}

func (w *Wallet) HasSufficientFunds(amount decimal.Decimal) bool {
	return w.Available().GreaterThanOrEqual(amount)
}

func (w *Wallet) Credit(amount decimal.Decimal) {
	w.Balance = w.Balance.Add(amount)
}

func (w *Wallet) Debit(amount decimal.Decimal) error {
	if !w.HasSufficientFunds(amount) {
		return NewInsufficientFunds("wallet.debit", w.Available().String())
	}
	w.Balance = w.Balance.Sub(amount)
	return nil
}

func (w *Wallet) Block(amount decimal.Decimal) error {
	if !w.HasSufficientFunds(amount) {
		return NewInsufficientFunds("wallet.block", w.Available().String())
	}
	w.BlockedAmount = w.BlockedAmount.Add(amount)
	return nil
}

func (w *Wallet) Unblock(amount decimal.Decimal) error {
	if w.BlockedAmount.LessThan(amount) {
		return NewInvalidHoldState("wallet.unblock", "cannot unblock more than is held")
	}
	w.BlockedAmount = w.BlockedAmount.Sub(amount)
	return nil
}

// DebitBlocked releases a hold and removes the same amount from the balance
// in one step. The only operation that touches both fields.
func (w *Wallet) DebitBlocked(amount decimal.Decimal) error {
	if w.BlockedAmount.LessThan(amount) {
		return NewInvalidHoldState("wallet.debitBlocked", "held amount is smaller than requested")
	}
	w.BlockedAmount = w.BlockedAmount.Sub(amount)
	w.Balance = w.Balance.Sub(amount)
	return nil
}
