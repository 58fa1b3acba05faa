package raft

// roleState holds the per-replica fields from Section 3's state table. It is
// modeled after the teacher's serverState, but drops the mutex and the
// getX/setX indirection to plain fields: Section 5 guarantees a single
// goroutine (the event loop) ever touches a Replica, so the accessor pairs
// that exist purely to guard concurrent access would be dead weight here.
type roleState struct {
	state       State
	currentTerm uint64
	votedFor    *ServerID
	knownLeader ServerID

	commitIndex int
	lastApplied int
}

func newRoleState() roleState {
	return roleState{
		state:       Follower,
		knownLeader: unknownLeader,
		commitIndex: -1,
		lastApplied: -1,
	}
}

// leaderState is the leader-only bookkeeping from Section 3. Section 9
// suggests expressing this as a sum variant of role so follower code cannot
// accidentally read it; Replica enforces that by nilling this out on every
// transition away from Leader (see replica.go transitionToFollower).
type leaderState struct {
	nextIndex  map[ServerID]int
	matchIndex map[ServerID]int

	pendingWrites []pendingWrite
	quorumCount   map[string]int
	quorumKeyIdx  map[string]int // index of the log entry currently tracked for this key
}

type pendingWrite struct {
	msg *Message
	key string
}

func newLeaderState(peers []ServerID, lastIndex int) *leaderState {
	ls := &leaderState{
		nextIndex:     make(map[ServerID]int, len(peers)),
		matchIndex:    make(map[ServerID]int, len(peers)),
		pendingWrites: nil,
		quorumCount:   make(map[string]int),
		quorumKeyIdx:  make(map[string]int),
	}
	for _, p := range peers {
		ls.nextIndex[p] = lastIndex + 1
		// -1, not 0: a peer that has never sent an appendReply must not be
		// indistinguishable from one that has actually matched index 0.
		ls.matchIndex[p] = -1
	}
	return ls
}
