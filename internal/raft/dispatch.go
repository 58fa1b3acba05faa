package raft

// handleClientRequest implements Section 4.5's client dispatch: while an
// election is in progress and this isn't the replica's first ever election,
// a client message that doesn't yet know the leader is buffered rather than
// answered (Section 4.7 / Q4 — buffered messages are never replayed, a
// latent bug reproduced here rather than fixed). Otherwise a non-leader
// redirects, and a leader serves the request directly.
func (r *Replica) handleClientRequest(msg *Message) {
	if r.inElection && r.electionsStarted > 1 && msg.Leader == unknownLeader {
		r.bufferMissed(msg)
		return
	}

	if r.state != Leader {
		r.reply(&Message{
			Src: r.id, Dst: msg.Src, Leader: r.knownLeader, Type: MsgRedirect,
			MID: msg.MID, RedirectMessage: msg,
		})
		return
	}

	switch msg.Type {
	case MsgGet:
		r.handleLeaderGet(msg)
	case MsgPut:
		r.handleLeaderPut(msg)
	}
}

func (r *Replica) bufferMissed(msg *Message) {
	switch msg.Type {
	case MsgPut:
		r.missedPuts = append(r.missedPuts, msg)
	case MsgGet:
		r.missedGets = append(r.missedGets, msg)
	}
}

// handleLeaderGet answers a get directly from applied state; a missing key
// resolves to the empty string rather than an error (Section 4.5).
func (r *Replica) handleLeaderGet(msg *Message) {
	value, _ := r.sm.Get(msg.Key)
	r.reply(&Message{Src: r.id, Dst: msg.Src, Leader: r.id, Type: MsgOk, MID: msg.MID, Value: value})
}

// handleRedirect implements Section 4.5's redirect-forwarding: a replica
// that receives a redirect re-dispatches the embedded original message
// locally, using its preserved Src as the client id, rather than replying
// to whichever replica forwarded it.
func (r *Replica) handleRedirect(msg *Message) {
	if msg.RedirectMessage == nil {
		return
	}
	r.handleClientRequest(msg.RedirectMessage)
}
