package saga_test

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NiMv1/payment-service/internal/core/saga"
)

func newJournal(t *testing.T) *saga.BoltJournal {
	t.Helper()
	journal, err := saga.NewBoltJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	return journal
}

func TestBoltJournal_Lifecycle(t *testing.T) {
	journal := newJournal(t)

	transferID := uuid.New()
	require.NoError(t, journal.Begin(&saga.JournalEntry{
		TransferID: transferID,
		FromUserID: "u1",
		ToUserID:   "u2",
		Amount:     "100",
		Currency:   "RUB",
	}))
	require.NoError(t, journal.MarkStep(transferID, saga.StepBlocked))
	require.NoError(t, journal.MarkStep(transferID, saga.StepCredited))

	entries, err := journal.Incomplete()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []saga.Step{saga.StepBlocked, saga.StepCredited}, entries[0].Steps)
	assert.False(t, entries[0].Flagged)

	require.NoError(t, journal.Complete(transferID))

	entries, err = journal.Incomplete()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBoltJournal_Flag(t *testing.T) {
	journal := newJournal(t)

	transferID := uuid.New()
	require.NoError(t, journal.Begin(&saga.JournalEntry{TransferID: transferID}))
	require.NoError(t, journal.Flag(transferID, "unblock sender failed"))

	entries, err := journal.Incomplete()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Flagged)
	assert.Equal(t, "unblock sender failed", entries[0].FlagReason)
}

// A journal survives reopening: entries written before a crash are still
// there to drive reconciliation.
func TestBoltJournal_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	journal, err := saga.NewBoltJournal(path)
	require.NoError(t, err)
	transferID := uuid.New()
	require.NoError(t, journal.Begin(&saga.JournalEntry{TransferID: transferID, FromUserID: "u1"}))
	require.NoError(t, journal.MarkStep(transferID, saga.StepBlocked))
	require.NoError(t, journal.Close())

	reopened, err := saga.NewBoltJournal(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Incomplete()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, transferID, entries[0].TransferID)
	assert.Equal(t, []saga.Step{saga.StepBlocked}, entries[0].Steps)
}
