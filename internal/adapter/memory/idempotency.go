package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

type IdempotencyRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.IdempotencyRecord
}

func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{records: make(map[string]*domain.IdempotencyRecord)}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	const op = "memory.idempotency.get"
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return nil, domain.NewNotFound(op, "idempotency record")
	}
	cp := *record
	return &cp, nil
}

func (r *IdempotencyRepository) Put(ctx context.Context, record *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *record
	r.records[record.Key] = &cp
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for key, record := range r.records {
		if record.IsExpired(now) {
			delete(r.records, key)
			deleted++
		}
	}
	return deleted, nil
}
