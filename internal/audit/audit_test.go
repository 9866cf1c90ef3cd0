package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRead(t *testing.T) {
	dir := t.TempDir()

	first := Entry{
		Timestamp: time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC),
		Actor:     "alice",
		Command:   "post",
		Details:   "Cash sale, 100.00",
		ResultID:  "2026-03-001",
	}
	require.NoError(t, Append(dir, []Entry{first}))

	second := Entry{
		Timestamp: time.Date(2026, 3, 15, 9, 31, 0, 0, time.UTC),
		Actor:     "alice",
		Command:   "stock move",
		Details:   "item 1 outbound -7",
		ResultID:  "mv-1",
	}
	require.NoError(t, Append(dir, []Entry{second}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0])
	assert.Equal(t, second, entries[1])
}

func TestRead_MissingLog(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMarshalRoundTrip(t *testing.T) {
	e := Entry{
		Timestamp: time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC),
		Actor:     "bob",
		Command:   "reverse",
		Details:   "2026-03-001",
		ResultID:  "2026-03-002",
	}
	got, err := UnmarshalEntry(MarshalEntry(e))
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = UnmarshalEntry([]string{"too", "short"})
	assert.Error(t, err)
}
