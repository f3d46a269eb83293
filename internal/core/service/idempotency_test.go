package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NiMv1/payment-service/internal/adapter/memory"
	"github.com/NiMv1/payment-service/internal/core/domain"
	"github.com/NiMv1/payment-service/internal/core/service"
)

func TestIdempotency_StoreAndLookup(t *testing.T) {
	ctx := context.Background()
	svc := service.NewIdempotencyService(memory.NewIdempotencyRepository(), time.Hour)

	resourceID := uuid.New()
	_, err := svc.Store(ctx, "K1", resourceID, 201, []byte(`{"paymentId":"x"}`))
	require.NoError(t, err)

	record, ok, err := svc.Lookup(ctx, "K1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resourceID, record.ResourceID)
	assert.Equal(t, 201, record.ResponseStatus)
}

func TestIdempotency_UnknownKey(t *testing.T) {
	svc := service.NewIdempotencyService(memory.NewIdempotencyRepository(), time.Hour)

	_, ok, err := svc.Lookup(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotency_KeyConflictOnDivergentResource(t *testing.T) {
	ctx := context.Background()
	svc := service.NewIdempotencyService(memory.NewIdempotencyRepository(), time.Hour)

	_, err := svc.Store(ctx, "K1", uuid.New(), 201, nil)
	require.NoError(t, err)

	_, err = svc.Store(ctx, "K1", uuid.New(), 201, nil)
	assert.True(t, domain.IsType(err, domain.ErrKeyConflict))
}

func TestIdempotency_StoreSameResourceIsNoop(t *testing.T) {
	ctx := context.Background()
	svc := service.NewIdempotencyService(memory.NewIdempotencyRepository(), time.Hour)

	resourceID := uuid.New()
	first, err := svc.Store(ctx, "K1", resourceID, 201, []byte("a"))
	require.NoError(t, err)

	second, err := svc.Store(ctx, "K1", resourceID, 201, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, first.ResponseBody, second.ResponseBody)
}

// Expiry is honored at read time, before any sweep runs.
func TestIdempotency_ExpiredRecordIsAbsent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	svc := service.NewIdempotencyService(repo, time.Hour)

	now := time.Now().UTC()
	require.NoError(t, repo.Put(ctx, &domain.IdempotencyRecord{
		Key:        "stale",
		ResourceID: uuid.New(),
		CreatedAt:  now.Add(-2 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	}))

	_, ok, err := svc.Lookup(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)

	// A new Store for the expired key succeeds: the operation re-runs as new.
	_, err = svc.Store(ctx, "stale", uuid.New(), 201, nil)
	assert.NoError(t, err)
}

func TestIdempotency_SweepExpired(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	svc := service.NewIdempotencyService(repo, time.Hour)

	now := time.Now().UTC()
	require.NoError(t, repo.Put(ctx, &domain.IdempotencyRecord{Key: "old1", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.Put(ctx, &domain.IdempotencyRecord{Key: "old2", ExpiresAt: now.Add(-time.Second)}))
	require.NoError(t, repo.Put(ctx, &domain.IdempotencyRecord{Key: "live", ExpiresAt: now.Add(time.Hour)}))

	deleted, err := svc.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, ok, err := svc.Lookup(ctx, "live")
	require.NoError(t, err)
	assert.True(t, ok)
}
