package transport

import (
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/halcyon-systems/gostun"
	"github.com/halcyon-systems/gostun/codec"
)

// UDPTransport is C3: a send/recv adapter over *net.UDPConn with no
// reliability of its own. A background goroutine drives the blocking
// ReadFromUDP loop; Recv only ever drains what that goroutine has
// already queued, keeping the engine task itself non-blocking.
type UDPTransport struct {
	conn    *net.UDPConn
	codec   *codec.Codec
	maxSize int
	log     stun.Logger

	recvCh chan Inbound
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewUDPTransport binds a UDP socket at laddr (":3478" style address) and
// returns a running C3 transport. Socket-level tuning (send and receive
// buffer sizes only; no address or port reuse option is set) is applied
// by the platform-specific tuneSocket hook in udp_unix.go / udp_other.go.
func NewUDPTransport(laddr string, c *codec.Codec, maxSize int, log stun.Logger) (*UDPTransport, error) {
	if log == nil {
		log = stun.NopLogger()
	}
	addr, err := net.ResolveUDPAddr("udp", laddr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %q", laddr)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen udp %q", laddr)
	}
	if err := tuneSocket(conn); err != nil {
		log.Debugf("udp socket tuning skipped: %v", err)
	}

	t := &UDPTransport{
		conn:    conn,
		codec:   c,
		maxSize: maxSize,
		log:     log,
		recvCh:  make(chan Inbound, 64),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *UDPTransport) readLoop() {
	buf := make([]byte, 65536)
	for {
		n, peer, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			t.closeOnce.Do(func() {
				t.closeErr = err
				close(t.done)
			})
			return
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])

		msg, broken, err := t.codec.Decode(raw)
		var inbound Inbound
		switch {
		case err != nil:
			// Not STUN at all, or a partial/malformed frame: surface it
			// rather than silently dropping it, per spec §4.3.
			inbound = Inbound{Peer: peer, Broken: &stun.BrokenMessage{Err: err}}
		case broken != nil:
			inbound = Inbound{Peer: peer, Broken: broken}
		default:
			inbound = Inbound{Peer: peer, Message: msg}
		}

		select {
		case t.recvCh <- inbound:
		case <-t.done:
			return
		}
	}
}

// Send encodes msg and writes it as a single datagram to peer. It fails
// locally with stun.ErrTooLarge without touching the network if the
// encoded message exceeds the configured maximum size.
func (t *UDPTransport) Send(peer net.Addr, msg *stun.Message) error {
	wire, err := t.codec.Encode(msg)
	if err != nil {
		return err
	}
	if len(wire) > t.maxSize {
		return stun.ErrTooLarge
	}
	udpAddr, ok := peer.(*net.UDPAddr)
	if !ok {
		resolved, err := net.ResolveUDPAddr("udp", peer.String())
		if err != nil {
			return errors.Wrapf(err, "resolve peer %v", peer)
		}
		udpAddr = resolved
	}
	_, err = t.conn.WriteToUDP(wire, udpAddr)
	return err
}

// Recv returns the next already-decoded (or broken) inbound message, if
// any is queued.
func (t *UDPTransport) Recv() (Inbound, bool) {
	select {
	case in := <-t.recvCh:
		return in, true
	default:
		return Inbound{}, false
	}
}

// RunOnce reports whether the socket has been closed (by us or by a
// fatal read error). UDPTransport has no timers or send buffer of its
// own, so there is nothing else for RunOnce to do.
func (t *UDPTransport) RunOnce() (terminated bool, err error) {
	select {
	case <-t.done:
		return true, t.closeErr
	default:
		return false, nil
	}
}

// FinishTransaction is a no-op: C3 has no retransmission state to clear.
func (t *UDPTransport) FinishTransaction(net.Addr, stun.TransactionID) {}

// Close shuts down the socket and stops the read loop.
func (t *UDPTransport) Close() error {
	err := t.conn.Close()
	t.closeOnce.Do(func() { close(t.done) })
	return err
}

// LocalAddr returns the bound local address.
func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }
