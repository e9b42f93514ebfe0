package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uebliche/dockbridge/internal/db"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestAppendAndGetByPass(t *testing.T) {
	l := openLedger(t)

	require.NoError(t, l.Append(EventRegistered, "pass-1", "lobby", map[string]any{"host": "mc-lobby", "port": 25565}))
	require.NoError(t, l.Append(EventUnregistered, "pass-1", "hub", nil))
	require.NoError(t, l.Append(EventRegistered, "pass-2", "survival", nil))

	entries, err := l.GetByPass("pass-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, EventRegistered, entries[0].EventType)
	assert.Equal(t, "lobby", entries[0].ServerName)
	assert.Equal(t, "mc-lobby", entries[0].Payload["host"])
	assert.EqualValues(t, 25565, entries[0].Payload["port"])

	assert.Equal(t, EventUnregistered, entries[1].EventType)
	assert.Nil(t, entries[1].Payload)
}

func TestGetByType(t *testing.T) {
	l := openLedger(t)

	require.NoError(t, l.Append(EventDiscoveryFailed, "p1", "", map[string]any{"error": "refused"}))
	require.NoError(t, l.Append(EventRegistered, "p2", "lobby", nil))
	require.NoError(t, l.Append(EventDiscoveryFailed, "p3", "", nil))

	entries, err := l.GetByType(EventDiscoveryFailed, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "p3", entries[0].PassID, "newest first")
	assert.Equal(t, "p1", entries[1].PassID)
}

func TestDeleteOlderThan(t *testing.T) {
	l := openLedger(t)

	require.NoError(t, l.Append(EventRegistered, "p1", "lobby", nil))
	_, err := l.db.Exec(`UPDATE event_ledger SET timestamp = ?`, time.Now().Add(-48*time.Hour).Unix())
	require.NoError(t, err)
	require.NoError(t, l.Append(EventRegistered, "p2", "hub", nil))

	deleted, err := l.DeleteOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	entries, err := l.GetByType(EventRegistered, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hub", entries[0].ServerName)
}

func TestRecent(t *testing.T) {
	l := openLedger(t)

	require.NoError(t, l.Append(EventRegistered, "p1", "lobby", nil))
	require.NoError(t, l.Append(EventDiscoveryFailed, "p2", "", nil))
	require.NoError(t, l.Append(EventUnregistered, "p3", "lobby", nil))

	entries, err := l.Recent(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EventUnregistered, entries[0].EventType)
	assert.Equal(t, EventDiscoveryFailed, entries[1].EventType)
}

func TestEventTypeKnown(t *testing.T) {
	assert.True(t, EventPassApplied.Known())
	assert.True(t, EventApplyFailed.Known())
	assert.False(t, EventType("restarted").Known())
}
