package raft

import "time"

// Bus is the datagram transport a Replica runs on: a best-effort, possibly
// lossy, unordered, unauthenticated message bus delivering JSON-like
// records (Section 1/6). The core treats it as an external collaborator —
// this interface is the seam; internal/transport provides the concrete UDP
// implementation.
type Bus interface {
	// Send enqueues msg for delivery. Delivery is not guaranteed.
	Send(msg *Message) error
	// Recv blocks for up to timeout waiting for the next inbound message.
	// It returns (nil, nil) on timeout, so callers can run their timer
	// checks even during prolonged silence (Section 5's bounded-receive
	// recommendation).
	Recv(timeout time.Duration) (*Message, error)
	// Close releases the underlying socket.
	Close() error
}
