package raft

import (
	"math/rand"
	"time"
)

// electionTimeoutMin/Max bound the randomized election timeout drawn once
// per replica at startup (Section 4.2).
const (
	electionTimeoutMin = 500 * time.Millisecond
	electionTimeoutMax = 750 * time.Millisecond
)

// heartbeatInterval is the fixed cadence at which a leader emits an empty
// AppendEntries to Broadcast (Section 4.3).
const heartbeatInterval = 485 * time.Millisecond

// randomElectionTimeout draws a value uniformly from
// [electionTimeoutMin, electionTimeoutMax], grounded on the teacher's
// getElectionTimeoutMs (there rand.Intn(151)+150 for 150-300ms; here scaled
// to this spec's 500-750ms window).
func randomElectionTimeout() time.Duration {
	span := electionTimeoutMax - electionTimeoutMin
	return electionTimeoutMin + time.Duration(rand.Int63n(int64(span)+1))
}

// deadline is a monotonic absolute point in time, re-armed by assignment
// rather than by recomputing an interval from now() (Section 9's timer
// design note).
type deadline struct {
	at time.Time
}

func newDeadline(from time.Time, d time.Duration) deadline {
	return deadline{at: from.Add(d)}
}

func (d deadline) expired(now time.Time) bool {
	return !now.Before(d.at)
}
