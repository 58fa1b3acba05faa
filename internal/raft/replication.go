package raft

import (
	"log"
	"time"
)

// buildReplicationMessage builds the AppendEntries a leader sends right
// after accepting a put, carrying just enough tail of the log for a
// follower already caught up to extend it (Section 4.3's AE payload shape).
func (r *Replica) buildReplicationMessage(dst ServerID) *Message {
	n := r.log.Len()

	var prevIdx int
	var prevTerm uint64
	var entries []LogEntry

	switch {
	case n == 0:
		prevIdx = -1
		prevTerm = 1
	case n == 1:
		prevIdx = 0
		prevTerm = r.log.Entry(0).Term
		entries = r.log.Slice(0)
	default:
		prevIdx = n - 2
		prevTerm = r.log.Entry(prevIdx).Term
		entries = r.log.Slice(prevIdx)
	}

	return &Message{
		Src: r.id, Dst: dst, Leader: r.id, Type: MsgAppendEntries,
		Term: r.currentTerm, PrevLogIndex: prevIdx, PrevLogTerm: prevTerm,
		Entries: entries, LeaderCommit: r.commitIndex,
	}
}

// buildHeartbeatMessage builds the empty-entries AppendEntries a leader
// emits on every heartbeatInterval tick (Section 4.3).
func (r *Replica) buildHeartbeatMessage(dst ServerID) *Message {
	n := r.log.Len()

	var prevIdx int
	var prevTerm uint64
	if n == 0 {
		prevIdx = -1
		prevTerm = 1
	} else {
		prevIdx = n - 1
		prevTerm = r.log.Entry(prevIdx).Term
	}

	return &Message{
		Src: r.id, Dst: dst, Leader: r.id, Type: MsgAppendEntries,
		Term: r.currentTerm, PrevLogIndex: prevIdx, PrevLogTerm: prevTerm,
		LeaderCommit: r.commitIndex,
	}
}

func (r *Replica) sendHeartbeat() {
	r.reply(r.buildHeartbeatMessage(Broadcast))
	r.metrics.RecordHeartbeat()
	r.resetHeartbeatDeadline()
}

// handleLeaderPut implements Section 4.3's put-acceptance path: the entry is
// appended to the leader's own log, queued for acknowledgment, and the
// per-key quorum counter is reset to 1 (self). Resetting on every put for
// the same key — rather than accumulating across overlapping puts — is Q1's
// latent bug, reproduced here rather than fixed (see DESIGN.md).
func (r *Replica) handleLeaderPut(msg *Message) {
	entry := LogEntry{Key: msg.Key, Value: msg.Value, Term: r.currentTerm}
	r.log.Append(entry)
	idx := r.log.LastIndex()

	r.leader.pendingWrites = append(r.leader.pendingWrites, pendingWrite{msg: msg, key: msg.Key})
	r.leader.quorumCount[msg.Key] = 1
	r.leader.quorumKeyIdx[msg.Key] = idx
	r.commandStarted[idx] = time.Now()

	r.reply(r.buildReplicationMessage(Broadcast))
}

// handleAppendReply implements Section 4.3's reply handling: a successful
// reply advances matchIndex and re-evaluates commit; a failed one triggers a
// backfill of the follower's entire suffix from its reported matchIndex.
func (r *Replica) handleAppendReply(msg *Message) {
	if msg.Term > r.currentTerm {
		r.observeTerm(msg.Term)
		return
	}
	if r.state != Leader || r.leader == nil {
		// Role violation: a reply arriving after we've stepped down.
		return
	}

	if msg.Success {
		r.leader.matchIndex[msg.Src] = msg.MatchIndex
		r.advanceCommit()
	} else {
		r.sendBackfill(msg.Src, msg.MatchIndex)
	}
}

// advanceCommit implements Section 4.3's commit-advance rule, including Q1:
// a key overwritten by a newer put before the older one reaches quorum has
// its progress silently discarded by the reset in handleLeaderPut rather
// than being tracked per log index. Rather than incrementing a running
// counter once per observed appendReply, this recomputes each tracked key's
// count from scratch on every call by rescanning matchIndex — an equivalent,
// call-order-independent reformulation once matchIndex distinguishes "never
// replied" from "matched index 0" (see newLeaderState).
//
// Committing must advance by the index actually verified at each step of the
// scan (i), never by jumping ahead to quorumKeyIdx[entry.Key]: once a key is
// overwritten, quorumKeyIdx points past i to a later, not-yet-replicated
// index, and a majority replicated only up to i says nothing about that
// later index. An entry only counts toward commit when it is still the
// index currently tracked for its key — otherwise it has been superseded
// and Q1 already discarded its progress, so it must be skipped rather than
// used to justify committing something else.
func (r *Replica) advanceCommit() {
	quorum := r.quorumSize()

	maxMatch := -1
	for _, m := range r.leader.matchIndex {
		if m > maxMatch {
			maxMatch = m
		}
	}

	for i := r.lastApplied + 1; i <= maxMatch && i <= r.log.LastIndex(); i++ {
		entry := r.log.Entry(i)
		trackedIdx, tracked := r.leader.quorumKeyIdx[entry.Key]
		if !tracked || trackedIdx != i {
			continue
		}

		count := 1 // the leader itself
		for _, m := range r.leader.matchIndex {
			if m >= i {
				count++
			}
		}
		r.leader.quorumCount[entry.Key] = count

		if count >= quorum && i > r.commitIndex {
			r.commitIndex = i
		}
	}

	r.applyLeaderCommitted()
}

// applyLeaderCommitted applies every newly committed entry to the state
// machine and, per Section 4.3, dequeues and acknowledges every pending
// write whose key matches — Q2's latent bug, since a single commit acks all
// queued writes for that key rather than just the one that committed.
func (r *Replica) applyLeaderCommitted() {
	for r.lastApplied < r.commitIndex {
		r.lastApplied++
		entry := r.log.Entry(r.lastApplied)
		r.sm.Apply(entry.Key, entry.Value)
		r.metrics.RecordCommandCommitted()

		if started, ok := r.commandStarted[r.lastApplied]; ok {
			r.metrics.RecordCommandLatency(time.Since(started))
			delete(r.commandStarted, r.lastApplied)
		}

		r.ackPendingWrites(entry.Key)
	}
}

// ackPendingWrites acks every queued write for key, not only the one whose
// commit triggered this call (Q2, reproduced as specified rather than
// fixed).
func (r *Replica) ackPendingWrites(key string) {
	remaining := r.leader.pendingWrites[:0]
	for _, pw := range r.leader.pendingWrites {
		if pw.key == key {
			r.reply(&Message{Src: r.id, Dst: pw.msg.Src, Leader: r.id, Type: MsgOk, MID: pw.msg.MID})
		} else {
			remaining = append(remaining, pw)
		}
	}
	r.leader.pendingWrites = remaining
}

// sendBackfill implements Section 4.3's failure path: the follower's
// reported matchIndex marks the last index it is known to hold, so the
// leader resends its log from there with entireLog set. A follower whose
// log is empty adopts that payload wholesale; a follower with a non-empty
// log still checks the term at prevLogIndex before accepting it.
func (r *Replica) sendBackfill(dst ServerID, matchIndex int) {
	idx := matchIndex
	if idx < 0 {
		idx = 0
	}

	var prevTerm uint64
	if idx < r.log.Len() {
		prevTerm = r.log.Entry(idx).Term
	}

	r.reply(&Message{
		Src: r.id, Dst: dst, Leader: r.id, Type: MsgAppendEntries,
		Term: r.currentTerm, PrevLogIndex: idx, PrevLogTerm: prevTerm,
		Entries: r.log.Slice(idx), LeaderCommit: r.commitIndex, EntireLog: true,
	})
}

// handleAppendEntries implements the follower side of Sections 4.3/4.4: a
// stale leader's AE (term below ours) is rejected outright without touching
// any state, per the teacher's own AppendEntries handler
// (internal/raft/server/server.go:66-72 in the pack) — otherwise a leader
// delayed on the wire or resuming from a partition could overwrite a current
// leader's own log via reconcile. Only once the term check passes does the
// election timer reset, the role/leader bookkeeping update, and (for a
// non-empty payload) the reconciliation state machine run.
func (r *Replica) handleAppendEntries(msg *Message) {
	r.observeTerm(msg.Term)

	if msg.Term < r.currentTerm {
		r.reply(&Message{
			Src: r.id, Dst: msg.Src, Leader: r.knownLeader, Type: MsgAppendReply,
			Term: r.currentTerm, Success: false, MatchIndex: r.log.LastIndex(),
		})
		return
	}

	r.resetElectionDeadline()
	if r.state != Follower {
		r.transitionToFollower()
	}
	r.knownLeader = msg.Leader

	if len(msg.Entries) == 0 {
		return
	}

	success, matchIndex := r.reconcile(msg)

	if msg.LeaderCommit > r.commitIndex {
		newCommit := msg.LeaderCommit
		if lastIdx := r.log.LastIndex(); newCommit > lastIdx {
			newCommit = lastIdx
		}
		if newCommit > r.commitIndex {
			r.commitIndex = newCommit
			r.applyFollowerCommitted()
		}
	}

	r.reply(&Message{
		Src: r.id, Dst: msg.Src, Leader: r.knownLeader, Type: MsgAppendReply,
		Term: r.currentTerm, Success: success, MatchIndex: matchIndex,
	})
}

// applyFollowerCommitted applies newly committed entries on a follower.
// Unlike the leader's applyLeaderCommitted, there is no pendingWrites queue
// to drain here — a follower never accepted the client's put directly.
func (r *Replica) applyFollowerCommitted() {
	for r.lastApplied < r.commitIndex {
		r.lastApplied++
		entry := r.log.Entry(r.lastApplied)
		r.sm.Apply(entry.Key, entry.Value)
		r.metrics.RecordCommandCommitted()
	}
}

// reconcile runs Section 4.4's four-way decision on an AppendEntries with a
// non-empty entries payload, returning whether the follower's log now
// matches the leader's claim and the follower's resulting last index.
// Ordering the length check before any log[prevIndex] read is Q3's fix: an
// out-of-bounds prevIndex is rejected cleanly instead of panicking.
func (r *Replica) reconcile(msg *Message) (success bool, matchIndex int) {
	switch {
	case r.log.Len() == 0:
		if msg.EntireLog || msg.PrevLogIndex < 0 {
			r.log.Truncate(0)
			r.log.Append(msg.Entries...)
			success = true
		}
	case msg.PrevLogIndex < 0:
		// A non-empty local log can never match a leader claiming an empty
		// history; reject cleanly rather than index the log at -1.
		success = false
	case r.log.LastIndex() < msg.PrevLogIndex:
		success = false
	case r.log.Entry(msg.PrevLogIndex).Term == msg.PrevLogTerm:
		// Entries begin at PrevLogIndex itself (see buildReplicationMessage
		// and sendBackfill), so the matched entry is replaced along with
		// everything after it.
		r.log.Truncate(msg.PrevLogIndex)
		r.log.Append(msg.Entries...)
		success = true
	default:
		success = false
	}

	matchIndex = r.log.LastIndex()

	if !success {
		log.Printf("[%s] [TERM-%d] rejected AE from %s: prevIndex=%d prevTerm=%d ownLast=%d",
			r.id, r.currentTerm, msg.Src, msg.PrevLogIndex, msg.PrevLogTerm, r.log.LastIndex())
	}

	return success, matchIndex
}
