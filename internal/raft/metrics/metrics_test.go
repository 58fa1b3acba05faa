package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()

	require.NotNil(t, m)
	require.False(t, m.startTime.IsZero())
}

func TestMetrics_CountersIncrement(t *testing.T) {
	m := New()

	m.RecordAppendEntries()
	m.RecordAppendEntries()
	m.RecordHeartbeat()
	m.RecordRequestVote()
	m.RecordElection()
	m.RecordCommandCommitted()
	m.RecordCommandCommitted()
	m.RecordCommandCommitted()

	report := m.Snapshot()
	require.Equal(t, uint64(2), report.AppendEntriesCount)
	require.Equal(t, uint64(1), report.HeartbeatCount)
	require.Equal(t, uint64(1), report.RequestVoteCount)
	require.Equal(t, uint64(1), report.ElectionCount)
	require.Equal(t, uint64(3), report.CommandsCommitted)
}

func TestMetrics_SnapshotWithNoLatenciesIsZero(t *testing.T) {
	m := New()

	report := m.Snapshot()
	require.Equal(t, 0.0, report.LatencyP50Ms)
	require.Equal(t, 0.0, report.LatencyP99Ms)
}

func TestMetrics_LatencyPercentiles(t *testing.T) {
	m := New()

	for i := 1; i <= 100; i++ {
		m.RecordCommandLatency(time.Duration(i) * time.Millisecond)
	}

	report := m.Snapshot()
	require.InDelta(t, 50.0, report.LatencyP50Ms, 5.0)
	require.InDelta(t, 99.0, report.LatencyP99Ms, 5.0)
}

func TestMetrics_UptimeAdvances(t *testing.T) {
	m := New()
	m.startTime = time.Now().Add(-time.Second)

	report := m.Snapshot()
	require.GreaterOrEqual(t, report.UptimeSeconds, 1.0)
}
