package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryLog_EmptyDefaults(t *testing.T) {
	l := newMemoryLog()

	require.Equal(t, 0, l.Len())
	require.Equal(t, -1, l.LastIndex())
	require.Equal(t, uint64(0), l.LastTerm())
	require.Nil(t, l.Slice(0))
}

func TestMemoryLog_AppendAndEntry(t *testing.T) {
	l := newMemoryLog()

	l.Append(LogEntry{Key: "a", Value: "1", Term: 1})
	l.Append(LogEntry{Key: "b", Value: "2", Term: 2})

	require.Equal(t, 2, l.Len())
	require.Equal(t, 1, l.LastIndex())
	require.Equal(t, uint64(2), l.LastTerm())
	require.Equal(t, LogEntry{Key: "a", Value: "1", Term: 1}, l.Entry(0))
	require.Equal(t, LogEntry{Key: "b", Value: "2", Term: 2}, l.Entry(1))
}

func TestMemoryLog_Slice(t *testing.T) {
	l := newMemoryLog()
	l.Append(
		LogEntry{Key: "a", Term: 1},
		LogEntry{Key: "b", Term: 1},
		LogEntry{Key: "c", Term: 2},
	)

	require.Equal(t, []LogEntry{{Key: "a", Term: 1}, {Key: "b", Term: 1}, {Key: "c", Term: 2}}, l.Slice(0))
	require.Equal(t, []LogEntry{{Key: "c", Term: 2}}, l.Slice(2))
	require.Nil(t, l.Slice(3))

	// Slice returns a copy: mutating it must not affect the log.
	s := l.Slice(0)
	s[0].Value = "mutated"
	require.NotEqual(t, "mutated", l.Entry(0).Value)
}

func TestMemoryLog_Truncate(t *testing.T) {
	l := newMemoryLog()
	l.Append(
		LogEntry{Key: "a", Term: 1},
		LogEntry{Key: "b", Term: 1},
		LogEntry{Key: "c", Term: 2},
	)

	l.Truncate(1)

	require.Equal(t, 1, l.Len())
	require.Equal(t, LogEntry{Key: "a", Term: 1}, l.Entry(0))
}

func TestMemoryLog_TruncateBeyondLength(t *testing.T) {
	l := newMemoryLog()
	l.Append(LogEntry{Key: "a", Term: 1})

	l.Truncate(5)

	require.Equal(t, 1, l.Len())
}
