package agent

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-systems/gostun"
	"github.com/halcyon-systems/gostun/attrs"
	"github.com/halcyon-systems/gostun/channel"
	"github.com/halcyon-systems/gostun/transport"
)

type fakeTransport struct {
	sent    []*stun.Message
	inbound []transport.Inbound
}

func (f *fakeTransport) Send(_ net.Addr, msg *stun.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeTransport) Recv() (transport.Inbound, bool) {
	if len(f.inbound) == 0 {
		return transport.Inbound{}, false
	}
	in := f.inbound[0]
	f.inbound = f.inbound[1:]
	return in, true
}
func (f *fakeTransport) RunOnce() (bool, error)                         { return false, nil }
func (f *fakeTransport) FinishTransaction(net.Addr, stun.TransactionID) {}
func (f *fakeTransport) Close() error                                   { return nil }
func (f *fakeTransport) deliver(in transport.Inbound)                   { f.inbound = append(f.inbound, in) }

var peerA = &net.UDPAddr{IP: net.IPv4(198, 51, 100, 7), Port: 55000}

type echoingHandler struct {
	requests []*stun.Message
}

func (h *echoingHandler) HandleRequest(peer net.Addr, req *stun.Message) (*stun.Message, error) {
	h.requests = append(h.requests, req)
	resp := stun.NewMessage(stun.ClassSuccessResponse, req.Method, req.TransactionID)
	udp := peer.(*net.UDPAddr)
	resp.Add(attrs.XORMappedAddress{IP: udp.IP, Port: udp.Port})
	return resp, nil
}
func (h *echoingHandler) HandleIndication(net.Addr, *stun.Message) {}
func (h *echoingHandler) HandleBroken(net.Addr, *stun.BrokenMessage) (*stun.Message, error) {
	return nil, nil
}

func TestServerRespondsToBindingRequest(t *testing.T) {
	ft := &fakeTransport{}
	ch := channel.New(ft, stun.DefaultConfig(), nil)
	h := &echoingHandler{}
	srv := NewServer(ch, h, nil)

	req := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, stun.TransactionID{1})
	ft.deliver(transport.Inbound{Peer: peerA, Message: req})

	stop := make(chan struct{})
	close(stop) // Serve returns as soon as it sees stop closed
	_ = srv.Serve(stop)

	// Serve exits immediately on `stop` before polling in this setup, so
	// drive one poll cycle directly instead.
	ev, ok := ch.Poll()
	require.True(t, ok)
	assert.Equal(t, channel.EventRequest, ev.Kind)
	srv.dispatch(ev)

	require.Len(t, ft.sent, 1)
	assert.Equal(t, stun.ClassSuccessResponse, ft.sent[0].Class)
	assert.Equal(t, req.TransactionID, ft.sent[0].TransactionID)
	require.Len(t, h.requests, 1)
}

func TestServerSynthesizes420ForUnsupportedAttribute(t *testing.T) {
	ft := &fakeTransport{}
	ch := channel.New(ft, stun.DefaultConfig(), nil)
	h := &echoingHandler{}
	srv := NewServer(ch, h, nil)

	txID := stun.TransactionID{2}
	broken := &stun.BrokenMessage{
		Class:         stun.ClassRequest,
		Method:        stun.MethodBinding,
		TransactionID: txID,
		Err: stun.NewError(stun.KindUnsupported,
			&stun.UnsupportedAttributesError{Types: []stun.AttrType{0x0007, 0x0009}},
			"decode",
		),
	}
	ft.deliver(transport.Inbound{Peer: peerA, Broken: broken})

	ev, ok := ch.Poll()
	require.True(t, ok)
	assert.Equal(t, channel.EventInvalid, ev.Kind)
	srv.dispatch(ev)

	require.Len(t, ft.sent, 1)
	resp := ft.sent[0]
	assert.Equal(t, stun.ClassErrorResponse, resp.Class)
	assert.Equal(t, txID, resp.TransactionID)

	errAttr, ok, err := resp.Get(attrs.ErrorCodeDecoder{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(420), errAttr.(attrs.ErrorCode).Code)

	uaAttr, ok, err := resp.Get(attrs.UnknownAttributesDecoder{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []stun.AttrType{0x0007, 0x0009}, uaAttr.(attrs.UnknownAttributes).Types)

	assert.Empty(t, h.requests, "the handler never sees a request the server auto-answered")
}

func TestServerDropsNonRequestInvalidEvents(t *testing.T) {
	ft := &fakeTransport{}
	ch := channel.New(ft, stun.DefaultConfig(), nil)
	h := &echoingHandler{}
	srv := NewServer(ch, h, nil)

	ft.deliver(transport.Inbound{Peer: peerA, Broken: &stun.BrokenMessage{Class: stun.ClassIndication, Err: stun.ErrNotStun}})

	ev, ok := ch.Poll()
	require.True(t, ok)
	srv.dispatch(ev)

	assert.Empty(t, ft.sent)
}
