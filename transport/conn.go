package transport

import (
	"io"
	"net"
	"time"
)

// Conn is the byte-oriented connection contract the reliable transport
// (C5) frames messages over: io.ReadWriteCloser plus the local/remote
// address and deadline accessors a STUN TCP stream needs, nothing more.
type Conn interface {
	io.ReadWriteCloser

	// LocalAddr returns the local endpoint's address.
	LocalAddr() net.Addr
	// RemoteAddr returns the peer's address.
	RemoteAddr() net.Addr

	// SetDeadline arranges for Read/Write to time out. ReliableTransport
	// itself never calls it: its read loop blocks on its own goroutine.
	SetDeadline(t time.Time) error
}

// netConn adapts a *net.TCPConn (or any net.Conn) to Conn; the method
// sets already match.
type netConn struct {
	net.Conn
}

// WrapNetConn adapts a standard net.Conn (e.g. the result of
// net.Dial("tcp", ...) or a net.Listener's Accept) to Conn.
func WrapNetConn(c net.Conn) Conn {
	return netConn{c}
}
