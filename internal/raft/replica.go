package raft

import (
	"log"
	"time"

	"github.com/kkorolev/raftkv/internal/raft/metrics"
	"github.com/kkorolev/raftkv/internal/raft/state_machine"
)

// receiveTimeout bounds how long Run blocks on Bus.Recv before checking its
// timers, per Section 5's recommendation that a single-threaded loop poll
// with a short timeout rather than dedicate a goroutine to timekeeping.
const receiveTimeout = 100 * time.Millisecond

// Replica is one member of the cluster: the single-threaded, lock-free event
// loop Section 5 describes, wired to a Bus, a LogStorage, and a
// state_machine.StateMachine. Grounded on the teacher's Server, with its
// mutex-guarded serverState and background job goroutines removed — Section
// 5 makes concurrent access impossible by construction instead of by locking.
type Replica struct {
	id    ServerID
	peers []ServerID

	bus Bus
	log LogStorage
	sm  state_machine.StateMachine

	roleState
	leader *leaderState

	electionDeadline  deadline
	heartbeatDeadline deadline

	grantedVotes     int
	grantedVoters    map[ServerID]bool
	electionsStarted int

	// inElection and the missed-message buffers implement Section 4.7's
	// election-window buffering exactly as specified, latent bug (Q4)
	// included: entries are appended here but never replayed.
	inElection bool
	missedPuts []*Message
	missedGets []*Message

	commandStarted map[int]time.Time

	metrics *metrics.Metrics
}

// NewReplica constructs a Replica for id, aware of peers (every other member
// of the cluster), communicating over bus. A replica whose id equals the
// distinguished bootstrap id boots directly into the Leader role at term 1
// (Section 3 / Q6), rather than running an election.
func NewReplica(id ServerID, peers []ServerID, bus Bus) *Replica {
	r := &Replica{
		id:             id,
		peers:          peers,
		bus:            bus,
		log:            newMemoryLog(),
		sm:             state_machine.NewKVStateMachine(string(id)),
		roleState:      newRoleState(),
		commandStarted: make(map[int]time.Time),
		metrics:        metrics.New(),
	}

	now := time.Now()
	r.electionDeadline = newDeadline(now, randomElectionTimeout())
	r.heartbeatDeadline = newDeadline(now, heartbeatInterval)

	if id == bootstrapLeaderID {
		r.currentTerm = 1
		r.becomeLeader()
	}

	return r
}

// MetricsReport exposes the current metrics snapshot for this replica.
func (r *Replica) MetricsReport() metrics.Report {
	return r.metrics.Snapshot()
}

// Run is the single-threaded event loop: block on the bus for up to
// receiveTimeout, dispatch whatever arrived, then check timers. Every branch
// of this loop runs to completion before the next Recv, so no two messages
// are ever handled concurrently (Section 5's "no locks needed").
func (r *Replica) Run() {
	log.Printf("[%s] starting as %s (term %d)", r.id, r.state, r.currentTerm)
	r.sendHello()

	for {
		msg, err := r.bus.Recv(receiveTimeout)
		if err != nil {
			log.Printf("[%s] transport error: %v", r.id, err)
			continue
		}
		if msg != nil {
			r.handleMessage(msg)
		}
		r.tick(time.Now())
	}
}

// handleMessage is the entry point the Router narrows by Type. Messages not
// addressed to this replica are dropped (Section 7): the UDP bus already
// filters by socket, but Broadcast fan-out combined with a shared loopback
// range in tests can still deliver a stray message.
func (r *Replica) handleMessage(msg *Message) {
	if msg.Dst != r.id && msg.Dst != Broadcast {
		return
	}
	r.route(msg)
}

// tick checks the role-appropriate timer and fires the corresponding action.
// Called after every Recv, whether or not it returned a message, so a
// prolonged silence on the bus still produces elections and heartbeats on
// schedule.
func (r *Replica) tick(now time.Time) {
	switch r.state {
	case Leader:
		if r.heartbeatDeadline.expired(now) {
			r.sendHeartbeat()
		}
	default:
		if r.electionDeadline.expired(now) {
			r.startElection()
		}
	}
}

func (r *Replica) resetElectionDeadline() {
	r.electionDeadline = newDeadline(time.Now(), randomElectionTimeout())
}

func (r *Replica) resetHeartbeatDeadline() {
	r.heartbeatDeadline = newDeadline(time.Now(), heartbeatInterval)
}

// quorumSize returns the smallest strict majority of the cluster
// (floor(N/2)+1), so an even-sized cluster still requires more than half.
func (r *Replica) quorumSize() int {
	n := len(r.peers) + 1
	return n/2 + 1
}

// observeTerm implements the per-replica state table's "any higher-term
// msg" rule (Section 3): currentTerm only ever moves forward, and votedFor
// is cleared whenever it does, regardless of which message type carried the
// higher term.
func (r *Replica) observeTerm(term uint64) {
	if term <= r.currentTerm {
		return
	}
	r.currentTerm = term
	r.votedFor = nil
	if r.state != Follower {
		r.transitionToFollower()
	}
}

// transitionToFollower demotes this replica out of Candidate or Leader,
// discarding leader-only state so follower code can never read it (Section
// 9's role-as-sum-variant suggestion, enforced here rather than in the type
// system).
func (r *Replica) transitionToFollower() {
	r.state = Follower
	r.leader = nil
	r.grantedVotes = 0
	r.grantedVoters = nil
}

func (r *Replica) sendHello() {
	_ = r.bus.Send(&Message{Src: r.id, Dst: Broadcast, Leader: r.knownLeader, Type: MsgHello})
}

func (r *Replica) reply(msg *Message) {
	if err := r.bus.Send(msg); err != nil {
		log.Printf("[%s] send failed: %v", r.id, err)
	}
}
