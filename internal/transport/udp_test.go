package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kkorolev/raftkv/internal/raft"
)

func listenLoopback(t *testing.T) (int, *net.UDPConn) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	return conn.LocalAddr().(*net.UDPAddr).Port, conn
}

func newBusPair(t *testing.T) (*UDPBus, *UDPBus) {
	t.Helper()

	portA, connA := listenLoopback(t)
	require.NoError(t, connA.Close())
	portB, connB := listenLoopback(t)
	require.NoError(t, connB.Close())

	peers := map[raft.ServerID]*net.UDPAddr{
		"0001": {IP: net.IPv4(127, 0, 0, 1), Port: portA},
		"0002": {IP: net.IPv4(127, 0, 0, 1), Port: portB},
	}

	busA, err := NewUDPBus("0001", portA, peers)
	require.NoError(t, err)
	t.Cleanup(func() { busA.Close() })

	busB, err := NewUDPBus("0002", portB, peers)
	require.NoError(t, err)
	t.Cleanup(func() { busB.Close() })

	return busA, busB
}

func TestUDPBus_SendAndRecvRoundTrip(t *testing.T) {
	busA, busB := newBusPair(t)

	msg := &raft.Message{Src: "0001", Dst: "0002", Type: raft.MsgHello}
	require.NoError(t, busA.Send(msg))

	got, err := busB.Recv(time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, raft.ServerID("0001"), got.Src)
	require.Equal(t, raft.MsgHello, got.Type)
}

func TestUDPBus_RecvTimesOutWithoutError(t *testing.T) {
	_, busB := newBusPair(t)

	got, err := busB.Recv(50 * time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestUDPBus_SendRejectsOversizedPayload(t *testing.T) {
	busA, _ := newBusPair(t)

	huge := make([]byte, MaxDatagramSize+1)
	for i := range huge {
		huge[i] = 'x'
	}
	msg := &raft.Message{Src: "0001", Dst: "0002", Type: raft.MsgPut, Value: string(huge)}

	err := busA.Send(msg)
	require.Error(t, err)
}

func TestUDPBus_BroadcastSkipsSelf(t *testing.T) {
	busA, busB := newBusPair(t)

	require.NoError(t, busA.Send(&raft.Message{Src: "0001", Dst: raft.Broadcast, Type: raft.MsgHello}))

	got, err := busB.Recv(time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)

	got2, err := busA.Recv(50 * time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, got2)
}
