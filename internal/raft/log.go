package raft

// LogStorage is the ordered, 0-indexed sequence of replicated log entries.
// This interface is kept from the teacher's storage.LogStorage shape, but
// implemented purely in memory: Section 1's Non-goals explicitly exclude
// durable persistence across restarts, so no implementation here touches
// disk (see DESIGN.md).
type LogStorage interface {
	// Len returns the number of entries currently in the log.
	Len() int
	// Entry returns the entry at index i. Callers must ensure 0 <= i < Len().
	Entry(i int) LogEntry
	// Slice returns entries[from:] (a copy, safe to retain).
	Slice(from int) []LogEntry
	// Append appends entries to the tail of the log.
	Append(entries ...LogEntry)
	// Truncate drops every entry at index >= i.
	Truncate(i int)
	// LastIndex returns len(log)-1, or -1 if the log is empty.
	LastIndex() int
	// LastTerm returns the term of the last entry, or 0 if the log is empty.
	LastTerm() uint64
}

// memoryLog is the only LogStorage implementation: an in-memory slice
// guarded by nothing, because Section 5 guarantees the single-threaded event
// loop is the sole owner of a replica's state.
type memoryLog struct {
	entries []LogEntry
}

func newMemoryLog() *memoryLog {
	return &memoryLog{entries: make([]LogEntry, 0)}
}

func (l *memoryLog) Len() int { return len(l.entries) }

func (l *memoryLog) Entry(i int) LogEntry { return l.entries[i] }

func (l *memoryLog) Slice(from int) []LogEntry {
	if from < 0 {
		from = 0
	}
	if from >= len(l.entries) {
		return nil
	}
	out := make([]LogEntry, len(l.entries)-from)
	copy(out, l.entries[from:])
	return out
}

// Append appends new entries to the log. Invariant I3: a leader never
// overwrites or deletes entries in its own log via this call; only
// Truncate (used by followers reconciling, I4) removes entries.
func (l *memoryLog) Append(entries ...LogEntry) {
	l.entries = append(l.entries, entries...)
}

func (l *memoryLog) Truncate(i int) {
	if i < 0 {
		i = 0
	}
	if i >= len(l.entries) {
		return
	}
	l.entries = l.entries[:i]
}

func (l *memoryLog) LastIndex() int {
	return len(l.entries) - 1
}

func (l *memoryLog) LastTerm() uint64 {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Term
}
