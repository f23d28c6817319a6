package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_AppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")

	j, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, j.Append(Entry{Time: 0, Event: EventAdmitted, TaskID: 1}))
	require.NoError(t, j.Append(Entry{Time: 0.4, Event: EventDispatched, TaskID: 1, WorkerID: 2}))
	require.NoError(t, j.Append(Entry{Time: 1.9, Event: EventCompleted, TaskID: 1, WorkerID: 2}))
	require.NoError(t, j.Close())

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for i, e := range entries {
		assert.Equal(t, int64(i), e.Seq, "sequence numbers are assigned in write order")
	}
	assert.Equal(t, EventAdmitted, entries[0].Event)
	assert.Equal(t, EventDispatched, entries[1].Event)
	assert.Equal(t, 2, entries[1].WorkerID)
	assert.Equal(t, EventCompleted, entries[2].Event)
	assert.InDelta(t, 1.9, entries[2].Time, 1e-9)
}

func TestJournal_ReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}
