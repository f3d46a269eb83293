package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NiMv1/payment-service/internal/adapter/memory"
	"github.com/NiMv1/payment-service/internal/core/domain"
	"github.com/NiMv1/payment-service/internal/core/events"
	"github.com/NiMv1/payment-service/internal/core/service"
	"github.com/NiMv1/payment-service/internal/core/worker"
)

func TestReaper_ExpireOnce(t *testing.T) {
	ctx := context.Background()
	payments := memory.NewPaymentRepository()
	transactions := memory.NewTransactionRepository()
	idempotency := service.NewIdempotencyService(memory.NewIdempotencyRepository(), time.Hour)
	svc := service.NewPaymentService(payments, transactions, idempotency, events.NopPublisher{})

	created, err := svc.Create(ctx, "REAP-1", service.CreatePaymentSpec{
		OrderID:       "ORD-reap",
		UserID:        "u1",
		Amount:        decimal.NewFromInt(100),
		Currency:      domain.RUB,
		PaymentMethod: domain.MethodCard,
		TTLMinutes:    1,
	})
	require.NoError(t, err)

	// Push the deadline into the past; the next pass must pick it up.
	created.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, payments.Update(ctx, created))

	reaper := worker.NewReaper(svc, idempotency, time.Hour, time.Hour)
	reaper.ExpireOnce(ctx)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)
}

func TestReaper_SweepOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	idempotency := service.NewIdempotencyService(repo, time.Hour)

	now := time.Now().UTC()
	require.NoError(t, repo.Put(ctx, &domain.IdempotencyRecord{
		Key:        "stale",
		ResourceID: uuid.New(),
		ExpiresAt:  now.Add(-time.Minute),
	}))
	_, err := idempotency.Store(ctx, "live", uuid.New(), 201, nil)
	require.NoError(t, err)

	reaper := worker.NewReaper(nil, idempotency, time.Hour, time.Hour)
	reaper.SweepOnce(ctx)

	_, ok, err := idempotency.Lookup(ctx, "live")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.Get(ctx, "stale")
	assert.True(t, domain.IsNotFound(err))
}
