package raft

import "log"

// route classifies an inbound message by its Type tag and dispatches to the
// matching handler (Section 4.1). Grounded on the teacher's per-RPC methods
// on Server, collapsed into a single switch since the wire envelope carries
// an explicit type tag rather than being dispatched by RPC method name.
func (r *Replica) route(msg *Message) {
	switch msg.Type {
	case MsgHello:
		// Advisory only; nothing to do beyond having received it.
	case MsgPut, MsgGet:
		r.handleClientRequest(msg)
	case MsgRedirect:
		r.handleRedirect(msg)
	case MsgRequestVote:
		r.metrics.RecordRequestVote()
		r.handleRequestVote(msg)
	case MsgVote:
		r.handleVote(msg)
	case MsgAppendEntries:
		r.metrics.RecordAppendEntries()
		r.handleAppendEntries(msg)
	case MsgAppendReply:
		r.handleAppendReply(msg)
	default:
		// Unknown type: log and drop (Section 7).
		log.Printf("[%s] dropping message with unknown type %q from %s", r.id, msg.Type, msg.Src)
	}
}
