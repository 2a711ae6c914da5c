// Package transport implements C3 (unreliable datagram transport) and C5
// (reliable framed byte-stream transport), and defines the common
// Transport surface the channel (C6) and the retransmit layer (C4, in
// the transport/retransmit subpackage) drive.
//
// Concrete backends are selected by a single constructor per transport
// kind rather than a generic factory; the per-connection contract in
// conn.go is trimmed to what a byte-oriented STUN stream needs.
package transport

import (
	"net"

	"github.com/halcyon-systems/gostun"
)

// Inbound is one message (or decode failure) received from a peer.
// Exactly one of Message or Broken is non-nil.
type Inbound struct {
	Peer    net.Addr
	Message *stun.Message
	Broken  *stun.BrokenMessage
}

// Transport is the common surface the channel drives: send a message to
// a peer, retrieve already-received messages, and step the transport's
// I/O. Implementations are C3 (UDPTransport), C4
// (transport/retransmit.Transport, wrapping a C3), and C5
// (ReliableTransport).
type Transport interface {
	// Send enqueues msg for transmission to peer. For indications and
	// responses this is fire-and-forget; for requests on a retrying
	// transport, Send begins (or queues) the retransmission schedule.
	Send(peer net.Addr, msg *stun.Message) error

	// Recv returns the next already-received message or decode
	// failure, if any. ok is false if nothing is pending.
	Recv() (Inbound, bool)

	// RunOnce performs one pass of I/O: filling the send path, firing
	// any due timers, draining the receive path, and reports whether
	// the underlying transport has terminated.
	RunOnce() (terminated bool, err error)

	// FinishTransaction tells the transport that (peer, txID) is over:
	// a response arrived, the channel's request_timeout fired, or the
	// caller canceled. It is the authoritative signal a retrying
	// transport uses to stop resending; it is a no-op on C3 and C5.
	FinishTransaction(peer net.Addr, txID stun.TransactionID)

	// Close releases the underlying socket/connection.
	Close() error
}
