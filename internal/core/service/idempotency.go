package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

// IdempotencyRepository is the storage port for idempotency records.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	Put(ctx context.Context, record *domain.IdempotencyRecord) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// DefaultIdempotencyTTL is how long a stored result keeps deduplicating
// retries of the same key.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyService deduplicates client retries: the first processing of a
// key stores its result, later lookups return it unchanged until the record
// expires.
type IdempotencyService struct {
	repo IdempotencyRepository
	ttl  time.Duration
}

func NewIdempotencyService(repo IdempotencyRepository, ttl time.Duration) *IdempotencyService {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyService{repo: repo, ttl: ttl}
}

// Lookup returns the stored result for key, or ok=false when the key is
// unknown or its record has expired. Expiry is checked at read time, not
// just at sweep time, so a stale record is treated as absent even before the
// sweeper removes it.
func (s *IdempotencyService) Lookup(ctx context.Context, key string) (*domain.IdempotencyRecord, bool, error) {
	record, err := s.repo.Get(ctx, key)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if record.IsExpired(time.Now().UTC()) {
		return nil, false, nil
	}
	return record, true, nil
}

// Store saves the result produced for key. If the key already holds a
// non-expired record pointing at a different resource, the call fails with
// KeyConflict: same key, divergent payload (or a hash collision).
func (s *IdempotencyService) Store(ctx context.Context, key string, resourceID uuid.UUID, status int, body []byte) (*domain.IdempotencyRecord, error) {
	const op = "idempotency.store"

	existing, ok, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		if existing.ResourceID != resourceID {
			return nil, domain.NewKeyConflict(op, "key already bound to a different resource")
		}
		return existing, nil
	}

	now := time.Now().UTC()
	record := &domain.IdempotencyRecord{
		Key:            key,
		ResourceID:     resourceID,
		ResponseStatus: status,
		ResponseBody:   body,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.repo.Put(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// SweepExpired removes records whose TTL has lapsed. Safe to run while
// readers are active: readers already treat expired-but-present records as
// absent.
func (s *IdempotencyService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	deleted, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		slog.Info("Swept expired idempotency records", "count", deleted)
	}
	return deleted, nil
}
