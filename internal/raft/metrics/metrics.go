// Package metrics collects lightweight performance counters for a replica,
// supplementing the ambient observability the distilled spec's Non-goals
// leave unaddressed. Adapted from the teacher's metrics.Metrics: trimmed to
// the counters this spec's operations actually produce (no snapshotting or
// membership-change counters, since those are Non-goals here).
package metrics

import (
	"math"
	"sort"
	"sync/atomic"
	"time"
)

// Metrics accumulates counters and latency samples for one replica. The
// counters are atomic and may be read from any goroutine. Latency samples
// are moved into a slice that has no lock, by both RecordCommandLatency and
// Snapshot, so concurrent calls to those two race with each other.
type Metrics struct {
	appendEntriesCount atomic.Uint64
	requestVoteCount   atomic.Uint64
	heartbeatCount     atomic.Uint64
	commandsCommitted  atomic.Uint64
	electionCount      atomic.Uint64

	startTime time.Time

	latenciesCh chan time.Duration
	latencies   []time.Duration
}

// New creates a Metrics collector.
func New() *Metrics {
	return &Metrics{
		startTime:   time.Now(),
		latenciesCh: make(chan time.Duration, 1024),
	}
}

func (m *Metrics) RecordAppendEntries()  { m.appendEntriesCount.Add(1) }
func (m *Metrics) RecordHeartbeat()      { m.heartbeatCount.Add(1) }
func (m *Metrics) RecordRequestVote()    { m.requestVoteCount.Add(1) }
func (m *Metrics) RecordElection()       { m.electionCount.Add(1) }
func (m *Metrics) RecordCommandCommitted() {
	m.commandsCommitted.Add(1)
}

// RecordCommandLatency records the time from a put's acceptance to its
// commit. Buffered non-blocking: a full channel drops the sample rather than
// stalling the single-threaded event loop that calls this.
func (m *Metrics) RecordCommandLatency(latency time.Duration) {
	select {
	case m.latenciesCh <- latency:
	default:
	}
	m.drainLatencies()
}

func (m *Metrics) drainLatencies() {
	for {
		select {
		case l := <-m.latenciesCh:
			m.latencies = append(m.latencies, l)
		default:
			return
		}
	}
}

// Report is a point-in-time snapshot of a replica's metrics.
type Report struct {
	UptimeSeconds      float64
	CommandsCommitted  uint64
	AppendEntriesCount uint64
	RequestVoteCount   uint64
	HeartbeatCount     uint64
	ElectionCount      uint64
	LatencyP50Ms       float64
	LatencyP99Ms       float64
}

// Snapshot returns the current Report.
func (m *Metrics) Snapshot() Report {
	m.drainLatencies()

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return Report{
		UptimeSeconds:      time.Since(m.startTime).Seconds(),
		CommandsCommitted:  m.commandsCommitted.Load(),
		AppendEntriesCount: m.appendEntriesCount.Load(),
		RequestVoteCount:   m.requestVoteCount.Load(),
		HeartbeatCount:     m.heartbeatCount.Load(),
		ElectionCount:      m.electionCount.Load(),
		LatencyP50Ms:       percentileMs(sorted, 50),
		LatencyP99Ms:       percentileMs(sorted, 99),
	}
}

func percentileMs(sorted []time.Duration, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return float64(sorted[lower].Microseconds()) / 1000.0
	}
	weight := idx - float64(lower)
	lo := float64(sorted[lower].Microseconds()) / 1000.0
	hi := float64(sorted[upper].Microseconds()) / 1000.0
	return lo*(1-weight) + hi*weight
}
