// Package transport implements the datagram bus a raft.Replica runs on:
// a best-effort, possibly-lossy, unordered, unauthenticated message bus
// carrying UTF-8 JSON records (Section 6). This is the concrete realization
// of the external collaborator the core specification assumes rather than
// implements; grounded on the teacher's Transport (a pooled-connection
// wrapper around a wire client), simplified to a single socket since UDP
// has no per-peer connection state to pool.
package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/kkorolev/raftkv/internal/raft"
)

// MaxDatagramSize is the largest payload this transport will read or write
// in a single packet (Section 6).
const MaxDatagramSize = 65535

// UDPBus is a raft.Bus backed by a single UDP socket, resolving peer ids to
// addresses via a static id->address table.
type UDPBus struct {
	conn *net.UDPConn

	self  raft.ServerID
	peers map[raft.ServerID]*net.UDPAddr
}

// NewUDPBus binds a UDP socket on port and returns a Bus that can reach the
// given peer address table. peers must contain an entry for every id this
// replica will ever address. An entry for this replica's own id is skipped
// when broadcasting, so a replica never receives its own broadcasts.
func NewUDPBus(self raft.ServerID, port int, peers map[raft.ServerID]*net.UDPAddr) (*UDPBus, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to bind udp port %d: %w", port, err)
	}

	return &UDPBus{
		conn:  conn,
		self:  self,
		peers: peers,
	}, nil
}

// Send implements raft.Bus. A dst of raft.Broadcast fans the message out to
// every known peer except self; individual send failures are logged by the
// caller's discretion and otherwise ignored, matching the "best-effort"
// contract of the bus.
func (b *UDPBus) Send(msg *raft.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: failed to marshal message: %w", err)
	}
	if len(data) > MaxDatagramSize {
		return fmt.Errorf("transport: message exceeds max datagram size (%d > %d)", len(data), MaxDatagramSize)
	}

	if msg.Dst == raft.Broadcast {
		var firstErr error
		for id, addr := range b.peers {
			if id == b.self {
				continue
			}
			if _, err := b.conn.WriteToUDP(data, addr); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	addr, ok := b.peers[msg.Dst]
	if !ok {
		return fmt.Errorf("transport: unknown destination %q", msg.Dst)
	}
	_, err = b.conn.WriteToUDP(data, addr)
	return err
}

// Recv implements raft.Bus.
func (b *UDPBus) Recv(timeout time.Duration) (*raft.Message, error) {
	if err := b.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("transport: failed to set read deadline: %w", err)
	}

	buf := make([]byte, MaxDatagramSize)
	n, _, err := b.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}

	var msg raft.Message
	dec := json.NewDecoder(bytes.NewReader(buf[:n]))
	if err := dec.Decode(&msg); err != nil {
		// Malformed message: the spec allows dropping these silently
		// (Section 7); returning (nil, nil) lets the caller treat it like
		// a benign timeout rather than a fatal transport error.
		return nil, nil
	}

	return &msg, nil
}

// Close implements raft.Bus.
func (b *UDPBus) Close() error {
	return b.conn.Close()
}
