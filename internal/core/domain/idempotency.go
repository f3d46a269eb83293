package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord maps a client-supplied key to the result produced the
// first time the key was processed. Read-only after creation; removed by the
// periodic sweep once expired.
type IdempotencyRecord struct {
	Key            string
	ResourceID     uuid.UUID
	ResponseStatus int
	ResponseBody   []byte
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
