package domain_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

func TestPayment_RefundableAmount(t *testing.T) {
	p := &domain.Payment{
		ID:             uuid.New(),
		Amount:         dec("250.00"),
		RefundedAmount: decimal.Zero,
		Status:         domain.StatusCompleted,
	}
	assert.True(t, p.RefundableAmount().Equal(dec("250.00")))

	p.RefundedAmount = dec("50.00")
	p.Status = domain.StatusPartiallyRefunded
	assert.True(t, p.RefundableAmount().Equal(dec("200.00")))

	p.RefundedAmount = dec("250.00")
	p.Status = domain.StatusRefunded
	assert.True(t, p.RefundableAmount().IsZero())
}

func TestPayment_RefundableOnlyWhenCompleted(t *testing.T) {
	p := &domain.Payment{Amount: dec("10"), RefundedAmount: decimal.Zero}

	for _, status := range []domain.PaymentStatus{
		domain.StatusPending, domain.StatusProcessing, domain.StatusCancelled,
		domain.StatusDeclined, domain.StatusFailed, domain.StatusExpired,
	} {
		p.Status = status
		assert.False(t, p.IsRefundable(), "status %s", status)
		assert.True(t, p.RefundableAmount().IsZero(), "status %s", status)
	}
}

func TestPayment_CancellableAndConfirmable(t *testing.T) {
	p := &domain.Payment{}

	p.Status = domain.StatusPending
	assert.True(t, p.IsCancellable())
	assert.True(t, p.IsConfirmable())

	p.Status = domain.StatusProcessing
	assert.True(t, p.IsCancellable())
	assert.True(t, p.IsConfirmable())

	p.Status = domain.StatusCompleted
	assert.False(t, p.IsCancellable())
	assert.False(t, p.IsConfirmable())
}

func TestPaymentStatus_IsTerminal(t *testing.T) {
	terminal := []domain.PaymentStatus{
		domain.StatusCancelled, domain.StatusDeclined, domain.StatusRefunded,
		domain.StatusFailed, domain.StatusExpired,
	}
	for _, status := range terminal {
		assert.True(t, status.IsTerminal(), "status %s", status)
	}
	for _, status := range []domain.PaymentStatus{
		domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted, domain.StatusPartiallyRefunded,
	} {
		assert.False(t, status.IsTerminal(), "status %s", status)
	}
}

func TestSyntheticExternalID(t *testing.T) {
	id := domain.SyntheticExternalID("TXN")
	assert.True(t, strings.HasPrefix(id, "TXN-"))
	assert.Len(t, id, 12)
	assert.Equal(t, strings.ToUpper(id), id)
}
