package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/notify"
)

// isIntegrationTestEnvironment returns true if the environment is
// configured for running integration tests with a database connection
func isIntegrationTestEnvironment() bool {
	return os.Getenv("DATABASE_URL") != ""
}

func completedRecord() domain.NotificationRecord {
	return domain.NotificationRecord{
		TaskID: uuid.New().String(),
		Status: domain.NotificationStatusCompleted,
		Result: json.RawMessage(`{"summary":"done"}`),
	}
}

// Integration tests for NotificationStore
func TestNotificationStore_Integration(t *testing.T) {
	if !isIntegrationTestEnvironment() {
		t.Skip("Skipping integration test - DATABASE_URL environment variable required")
	}

	db, err := sql.Open("pgx", os.Getenv("DATABASE_URL"))
	require.NoError(t, err, "Failed to open database connection")
	defer func() {
		if err := db.Close(); err != nil {
			t.Logf("Error closing database connection: %v", err)
		}
	}()

	// Run test with transaction-based isolation
	tx, err := db.Begin()
	require.NoError(t, err, "Failed to begin transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			t.Logf("Error rolling back transaction: %v", err)
		}
	}()

	ctx := context.Background()
	store := NewNotificationStore(tx)

	t.Run("AppendAssignsStrictlyIncreasingSequence", func(t *testing.T) {
		first, err := store.Append(ctx, "acme", completedRecord())
		require.NoError(t, err)
		second, err := store.Append(ctx, "acme", completedRecord())
		require.NoError(t, err)
		assert.Equal(t, first+1, second)
	})

	t.Run("TenantsSequenceIndependently", func(t *testing.T) {
		seq, err := store.Append(ctx, "beta", completedRecord())
		require.NoError(t, err)
		assert.Equal(t, int64(1), seq, "a fresh tenant starts at sequence 1")
	})

	t.Run("SinceReturnsOnlyNewerRecords", func(t *testing.T) {
		rec := completedRecord()
		seq, err := store.Append(ctx, "gamma", rec)
		require.NoError(t, err)

		records, err := store.Since(ctx, "gamma", seq-1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, rec.TaskID, records[0].TaskID)
		assert.JSONEq(t, string(rec.Result), string(records[0].Result))

		records, err = store.Since(ctx, "gamma", seq)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("AppendRejectsInvalidRecord", func(t *testing.T) {
		_, err := store.Append(ctx, "acme", domain.NotificationRecord{
			TaskID: "",
			Status: domain.NotificationStatusCompleted,
		})
		assert.ErrorIs(t, err, notify.ErrInvalidRecord)
	})

	t.Run("PurgeKeepsSequenceHighWater", func(t *testing.T) {
		old := completedRecord()
		old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
		_, err := store.Append(ctx, "delta", old)
		require.NoError(t, err)
		latest, err := store.Append(ctx, "delta", completedRecord())
		require.NoError(t, err)

		_, err = store.Purge(ctx, time.Now().UTC().Add(-24*time.Hour))
		require.NoError(t, err)

		// The newest record survives so the next append continues the
		// sequence instead of restarting it.
		next, err := store.Append(ctx, "delta", completedRecord())
		require.NoError(t, err)
		assert.Equal(t, latest+1, next)
	})
}

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, MapError(nil))
	assert.ErrorIs(t, MapError(sql.ErrNoRows), ErrNotFound)

	opaque := assert.AnError
	assert.Equal(t, opaque, MapError(opaque))
}
