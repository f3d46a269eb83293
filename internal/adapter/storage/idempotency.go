package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

type IdempotencyRepository struct {
	db *pgxpool.Pool
}

func NewIdempotencyRepository(db *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	const op = "storage.idempotency.get"
	query := `
		SELECT key_id, resource_id, response_status, response_body, created_at, expires_at
		FROM idempotency_keys WHERE key_id = $1
	`
	var record domain.IdempotencyRecord
	err := r.db.QueryRow(ctx, query, key).Scan(
		&record.Key, &record.ResourceID, &record.ResponseStatus, &record.ResponseBody,
		&record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound(op, "idempotency record")
		}
		return nil, domain.NewInternal(op, err)
	}
	return &record, nil
}

func (r *IdempotencyRepository) Put(ctx context.Context, record *domain.IdempotencyRecord) error {
	const op = "storage.idempotency.put"
	query := `
		INSERT INTO idempotency_keys (key_id, resource_id, response_status, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		record.Key, record.ResourceID, record.ResponseStatus, record.ResponseBody,
		record.CreatedAt, record.ExpiresAt)
	if err != nil {
		return domain.NewInternal(op, err)
	}
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.idempotency.deleteExpired"
	tag, err := r.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < $1`, now)
	if err != nil {
		return 0, domain.NewInternal(op, err)
	}
	return int(tag.RowsAffected()), nil
}
