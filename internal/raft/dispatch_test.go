package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleClientRequest_NonLeaderRedirects(t *testing.T) {
	r, bus := newTestReplica("0001", []ServerID{"0002"})
	r.knownLeader = "0002"

	req := &Message{Src: "client-1", Type: MsgGet, Key: "k", MID: "m1", Leader: "0002"}
	r.handleClientRequest(req)

	reply := bus.last()
	require.Equal(t, MsgRedirect, reply.Type)
	require.Equal(t, ServerID("0002"), reply.Leader)
	require.Equal(t, req, reply.RedirectMessage)
}

func TestHandleClientRequest_LeaderServesGet(t *testing.T) {
	r, bus := makeLeader("0001", []ServerID{"0002"})
	r.sm.Apply("k", "v")

	r.handleClientRequest(&Message{Src: "client-1", Type: MsgGet, Key: "k", MID: "m1"})

	reply := bus.last()
	require.Equal(t, MsgOk, reply.Type)
	require.Equal(t, "v", reply.Value)
}

func TestHandleClientRequest_LeaderGetMissingKeyReturnsEmpty(t *testing.T) {
	r, bus := makeLeader("0001", []ServerID{"0002"})

	r.handleClientRequest(&Message{Src: "client-1", Type: MsgGet, Key: "missing", MID: "m1"})

	reply := bus.last()
	require.Equal(t, MsgOk, reply.Type)
	require.Equal(t, "", reply.Value)
}

func TestHandleClientRequest_LeaderPutDelegatesToReplication(t *testing.T) {
	r, bus := makeLeader("0001", []ServerID{"0002"})

	r.handleClientRequest(&Message{Src: "client-1", Type: MsgPut, Key: "k", Value: "v", MID: "m1"})

	require.Equal(t, 1, r.log.Len())
	reply := bus.last()
	require.Equal(t, MsgAppendEntries, reply.Type)
}

func TestHandleRedirect_ForwardsEmbeddedMessageUsingOriginalClientID(t *testing.T) {
	r, bus := makeLeader("0001", []ServerID{"0002"})

	inner := &Message{Src: "client-1", Type: MsgGet, Key: "k", MID: "m1"}
	r.handleRedirect(&Message{Src: "0003", Dst: "0001", Type: MsgRedirect, RedirectMessage: inner})

	reply := bus.last()
	require.Equal(t, MsgOk, reply.Type)
	require.Equal(t, ServerID("client-1"), reply.Dst)
}

func TestHandleClientRequest_BuffersDuringNonFirstElectionWithUnknownLeader(t *testing.T) {
	r, bus := newTestReplica("0001", []ServerID{"0002", "0003"})
	r.electionsStarted = 2
	r.inElection = true

	putMsg := &Message{Src: "client-1", Type: MsgPut, Key: "k", Value: "v", MID: "m1", Leader: unknownLeader}
	r.handleClientRequest(putMsg)

	require.Nil(t, bus.last())
	require.Len(t, r.missedPuts, 1)
	require.Equal(t, putMsg, r.missedPuts[0])
}

func TestHandleClientRequest_DoesNotBufferOnFirstElection(t *testing.T) {
	r, bus := newTestReplica("0001", []ServerID{"0002", "0003"})
	r.electionsStarted = 1
	r.inElection = true
	r.knownLeader = "0002"

	r.handleClientRequest(&Message{Src: "client-1", Type: MsgGet, Key: "k", MID: "m1", Leader: unknownLeader})

	require.NotNil(t, bus.last())
	require.Empty(t, r.missedGets)
}
