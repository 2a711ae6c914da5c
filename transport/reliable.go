package transport

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/halcyon-systems/gostun"
	"github.com/halcyon-systems/gostun/codec"
)

// ReliableTransport is C5: a byte-stream framing adapter over a single
// Conn. Frames are exactly the STUN wire format: the 20-byte header
// starts a frame, and bytes 2..4 give the attribute-section length, so
// the frame is 20+length bytes. There is no retransmission or pacing,
// since the underlying stream is already reliable, so FinishTransaction
// is a no-op.
//
// The read loop reads the fixed header first, then dispatches on the
// length field it carries to pull in the rest of the frame.
type ReliableTransport struct {
	conn  Conn
	codec *codec.Codec
	log   stun.Logger

	recvCh chan Inbound
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewReliableTransport frames messages over conn, an already-established
// byte-stream connection (e.g. a dialed or accepted TCP socket wrapped
// with WrapNetConn).
func NewReliableTransport(conn Conn, c *codec.Codec, log stun.Logger) *ReliableTransport {
	if log == nil {
		log = stun.NopLogger()
	}
	t := &ReliableTransport{
		conn:   conn,
		codec:  c,
		log:    log,
		recvCh: make(chan Inbound, 16),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *ReliableTransport) readLoop() {
	header := make([]byte, stun.MessageHeaderSize)
	for {
		if _, err := io.ReadFull(t.conn, header); err != nil {
			t.fail(err)
			return
		}
		length := int(binary.BigEndian.Uint16(header[2:4]))
		frame := make([]byte, stun.MessageHeaderSize+length)
		copy(frame, header)
		if length > 0 {
			if _, err := io.ReadFull(t.conn, frame[stun.MessageHeaderSize:]); err != nil {
				t.fail(err)
				return
			}
		}

		msg, broken, err := t.codec.Decode(frame)
		var inbound Inbound
		peer := t.conn.RemoteAddr()
		switch {
		case err != nil:
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

func (t *ReliableTransport) fail(err error) {
	t.closeOnce.Do(func() {
		t.closeErr = err
		close(t.done)
	})
}

// Send encodes msg and writes the full frame. peer is informational only
// (a ReliableTransport has exactly one peer: the other end of conn);
// callers on a reliable transport should pass conn.RemoteAddr().
func (t *ReliableTransport) Send(peer net.Addr, msg *stun.Message) error {
	wire, err := t.codec.Encode(msg)
	if err != nil {
		return err
	}
	_, err = t.conn.Write(wire)
	return errors.Wrap(err, "reliable transport write")
}

// Recv returns the next already-decoded (or broken) inbound message, if
// any is queued.
func (t *ReliableTransport) Recv() (Inbound, bool) {
	select {
	case in := <-t.recvCh:
		return in, true
	default:
		return Inbound{}, false
	}
}

// RunOnce reports whether the connection has terminated (EOF or a read
// error). There is no pacing or retransmission schedule to advance.
func (t *ReliableTransport) RunOnce() (terminated bool, err error) {
	select {
	case <-t.done:
		if errors.Is(t.closeErr, io.EOF) {
			return true, nil
		}
		return true, t.closeErr
	default:
		return false, nil
	}
}

// FinishTransaction is a no-op: a reliable stream never retransmits.
func (t *ReliableTransport) FinishTransaction(net.Addr, stun.TransactionID) {}

// Close closes the underlying connection.
func (t *ReliableTransport) Close() error {
	err := t.conn.Close()
	t.closeOnce.Do(func() { close(t.done) })
	return err
}
