// Package saga implements the compensating transaction that moves money
// between two wallets as a sequence of independently committed steps.
package saga

import (
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"
)

type Step string

const (
	StepBlocked  Step = "BLOCKED"
	StepCredited Step = "CREDITED"
	StepDebited  Step = "DEBITED"
)

// JournalEntry is the durable record of a transfer's committed steps. It
// outlives a process crash so compensation can be driven on restart; a
// flagged entry marks an inconsistency for manual reconciliation.
type JournalEntry struct {
	TransferID uuid.UUID `json:"transferId"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Steps      []Step    `json:"steps"`
	Flagged    bool      `json:"flagged"`
	FlagReason string    `json:"flagReason,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Journal records saga progress between step commits.
type Journal interface {
	Begin(entry *JournalEntry) error
	MarkStep(transferID uuid.UUID, step Step) error
	// Flag marks the transfer for manual reconciliation after a failed
	// compensation. Flagged entries are never removed automatically.
	Flag(transferID uuid.UUID, reason string) error
	// Complete removes the entry once the saga terminated consistently
	// (either fully committed or fully compensated).
	Complete(transferID uuid.UUID) error
	// Incomplete lists entries left behind by a crash or a failed
	// compensation.
	Incomplete() ([]JournalEntry, error)
}

const journalBucket = "transfer_journal"

// BoltJournal persists journal entries in a single-file embedded store. No
// external database process is needed for the journal to survive a restart.
type BoltJournal struct {
	db *bolt.DB
}

func NewBoltJournal(path string) (*BoltJournal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(journalBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltJournal{db: db}, nil
}

func (j *BoltJournal) Close() error {
	return j.db.Close()
}

func (j *BoltJournal) Begin(entry *JournalEntry) error {
	entry.StartedAt = time.Now().UTC()
	entry.UpdatedAt = entry.StartedAt
	return j.put(entry)
}

func (j *BoltJournal) MarkStep(transferID uuid.UUID, step Step) error {
	return j.mutate(transferID, func(e *JournalEntry) {
		e.Steps = append(e.Steps, step)
	})
}

func (j *BoltJournal) Flag(transferID uuid.UUID, reason string) error {
	return j.mutate(transferID, func(e *JournalEntry) {
		e.Flagged = true
		e.FlagReason = reason
	})
}

func (j *BoltJournal) Complete(transferID uuid.UUID) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(journalBucket)).Delete([]byte(transferID.String()))
	})
}

func (j *BoltJournal) Incomplete() ([]JournalEntry, error) {
	var entries []JournalEntry
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(journalBucket)).ForEach(func(k, v []byte) error {
			var e JournalEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (j *BoltJournal) put(entry *JournalEntry) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(journalBucket)).Put([]byte(entry.TransferID.String()), data)
	})
}

func (j *BoltJournal) mutate(transferID uuid.UUID, fn func(*JournalEntry)) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(journalBucket))
		key := []byte(transferID.String())
		v := b.Get(key)
		if v == nil {
			return nil
		}
		var e JournalEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		fn(&e)
		e.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(&e)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}
