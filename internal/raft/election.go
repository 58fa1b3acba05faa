package raft

import "log"

// startElection begins a new candidacy (Section 4.2): the term is
// incremented, the replica votes for itself, and a requestVote is broadcast
// carrying enough of the local log to let peers run the up-to-date test.
// Grounded on the teacher's Server.BeginElection, which was an empty stub;
// filled in here per the spec's vote-grant rules, cross-checked against the
// classic labrpc raft labs' RequestVote logic for the log-comparison rule.
func (r *Replica) startElection() {
	r.currentTerm++
	r.state = Candidate
	r.leader = nil
	self := r.id
	r.votedFor = &self
	r.grantedVotes = 1
	r.grantedVoters = map[ServerID]bool{r.id: true}
	r.electionsStarted++
	r.resetElectionDeadline()

	lastIdx := r.log.LastIndex()
	lastTerm := r.log.LastTerm()

	log.Printf("[%s] [TERM-%d] election timeout, starting election (trace=%s)", r.id, r.currentTerm, newTraceID())

	r.reply(&Message{
		Src: r.id, Dst: Broadcast, Leader: r.knownLeader, Type: MsgRequestVote,
		Term: r.currentTerm, CandidateID: r.id, LastLogIndex: lastIdx, LastLogTerm: lastTerm,
	})

	// A single-node cluster (no peers) reaches quorum immediately on its own
	// vote; nothing else will ever reply.
	if r.grantedVotes >= r.quorumSize() {
		r.becomeLeader()
	}
}

// candidateIsUpToDate implements Section 4.2's up-to-date test: an empty
// local log is trivially up to date with any candidate; otherwise the
// candidate must have a strictly newer last-log term, or an equal term with
// an index at least as large.
func (r *Replica) candidateIsUpToDate(msg *Message) bool {
	if r.log.Len() == 0 {
		return true
	}
	ownLastTerm := r.log.LastTerm()
	ownLastIdx := r.log.LastIndex()
	if ownLastTerm < msg.LastLogTerm {
		return true
	}
	return ownLastTerm == msg.LastLogTerm && ownLastIdx <= msg.LastLogIndex
}

// handleRequestVote implements the receiver side of Section 4.2's grant
// rules: votedFor must be unset, the candidate's term must be at least
// currentTerm, and the candidate's log must be at least as up to date as
// ours. observeTerm runs first so a higher term bumps currentTerm and clears
// a stale votedFor before the grant condition is evaluated — otherwise a
// replica holding a vote from an older term would wrongly deny a legitimate
// higher-term candidate. Granting itself additionally resets the election
// timer.
func (r *Replica) handleRequestVote(msg *Message) {
	r.inElection = true
	r.observeTerm(msg.Term)

	granted := false
	if r.votedFor == nil && msg.Term >= r.currentTerm && r.candidateIsUpToDate(msg) {
		v := msg.CandidateID
		r.votedFor = &v
		r.knownLeader = msg.CandidateID
		r.resetElectionDeadline()
		granted = true
	}

	log.Printf("[%s] [TERM-%d] vote request from %s: granted=%v", r.id, r.currentTerm, msg.CandidateID, granted)

	r.reply(&Message{
		Src: r.id, Dst: msg.CandidateID, Leader: r.knownLeader, Type: MsgVote,
		Term: r.currentTerm, VoteGranted: granted,
	})
}

// handleVote implements the candidate side of tallying: stale replies (from
// a term we've since moved past, or received while no longer a candidate)
// are dropped, a higher term steps this replica down, and a majority of
// grants ascends it to Leader.
func (r *Replica) handleVote(msg *Message) {
	if r.state != Candidate {
		// Stale-candidate handling (Section 4.2): a vote reply arriving
		// after we've already stepped down or ascended is a no-op.
		return
	}

	r.inElection = true

	if msg.Term > r.currentTerm {
		r.observeTerm(msg.Term)
		return
	}
	if msg.Term < r.currentTerm || !msg.VoteGranted {
		return
	}
	if r.grantedVoters[msg.Src] {
		return
	}

	r.grantedVoters[msg.Src] = true
	r.grantedVotes++

	if r.grantedVotes >= r.quorumSize() {
		r.becomeLeader()
	}
}

// becomeLeader ascends this replica to Leader: leader-only bookkeeping is
// initialized against the current log length, and an immediate heartbeat
// asserts leadership to the rest of the cluster before anyone else's
// election timer can fire.
func (r *Replica) becomeLeader() {
	r.state = Leader
	r.knownLeader = r.id
	r.leader = newLeaderState(r.peers, r.log.LastIndex())
	r.inElection = false
	r.metrics.RecordElection()

	log.Printf("[%s] [TERM-%d] became leader", r.id, r.currentTerm)

	r.sendHeartbeat()
}
