package agent

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-systems/gostun"
	"github.com/halcyon-systems/gostun/attrs"
	"github.com/halcyon-systems/gostun/channel"
	"github.com/halcyon-systems/gostun/transport"
)

// loopbackTransport answers every outgoing request with a canned success
// response carrying a XOR-MAPPED-ADDRESS, so Client's background engine
// task exercises a full round trip without a real socket.
type loopbackTransport struct {
	inbound chan transport.Inbound
}

func newLoopbackTransport() *loopbackTransport {
	return &loopbackTransport{inbound: make(chan transport.Inbound, 4)}
}

func (l *loopbackTransport) Send(peer net.Addr, msg *stun.Message) error {
	if msg.Class != stun.ClassRequest {
		return nil
	}
	udp := peer.(*net.UDPAddr)
	resp := stun.NewMessage(stun.ClassSuccessResponse, msg.Method, msg.TransactionID)
	resp.Add(attrs.XORMappedAddress{IP: udp.IP, Port: udp.Port})
	l.inbound <- transport.Inbound{Peer: peer, Message: resp}
	return nil
}
func (l *loopbackTransport) Recv() (transport.Inbound, bool) {
	select {
	case in := <-l.inbound:
		return in, true
	default:
		return transport.Inbound{}, false
	}
}
func (l *loopbackTransport) RunOnce() (bool, error)                         { return false, nil }
func (l *loopbackTransport) FinishTransaction(net.Addr, stun.TransactionID) {}
func (l *loopbackTransport) Close() error                                   { return nil }

func TestClientCallRoundTrip(t *testing.T) {
	ch := channel.New(newLoopbackTransport(), stun.DefaultConfig(), nil)
	c := NewClient(ch, nil)
	defer c.Close()

	peer := &net.UDPAddr{IP: net.IPv4(198, 51, 100, 9), Port: 3478}
	req := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, stun.TransactionID{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := c.Call(ctx, peer, req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, stun.ClassSuccessResponse, resp.Class)

	mapped, ok, err := resp.Get(attrs.XORMappedAddressDecoder{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, peer.Port, mapped.(attrs.XORMappedAddress).Port)
	assert.True(t, mapped.(attrs.XORMappedAddress).IP.Equal(peer.IP))
}

func TestClientCallContextCancellation(t *testing.T) {
	// A transport that never answers leaves the call pending until ctx
	// cancellation resolves it.
	ch := channel.New(&neverRespondingTransport{}, stun.DefaultConfig(), nil)
	c := NewClient(ch, nil)
	defer c.Close()

	peer := &net.UDPAddr{IP: net.IPv4(198, 51, 100, 9), Port: 3478}
	req := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, stun.TransactionID{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	resp, err := c.Call(ctx, peer, req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)
}

// neverRespondingTransport accepts sends but never produces an inbound
// response, used to exercise ctx-cancellation of a pending call.
type neverRespondingTransport struct{}

func (neverRespondingTransport) Send(net.Addr, *stun.Message) error             { return nil }
func (neverRespondingTransport) Recv() (transport.Inbound, bool)                { return transport.Inbound{}, false }
func (neverRespondingTransport) RunOnce() (bool, error)                         { return false, nil }
func (neverRespondingTransport) FinishTransaction(net.Addr, stun.TransactionID) {}
func (neverRespondingTransport) Close() error                                  { return nil }

func TestClientCastFireAndForget(t *testing.T) {
	ch := channel.New(newLoopbackTransport(), stun.DefaultConfig(), nil)
	c := NewClient(ch, nil)
	defer c.Close()

	peer := &net.UDPAddr{IP: net.IPv4(198, 51, 100, 9), Port: 3478}
	ind := stun.NewMessage(stun.ClassIndication, stun.MethodBinding, stun.TransactionID{})
	err := c.Cast(peer, ind)
	assert.NoError(t, err)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	ch := channel.New(newLoopbackTransport(), stun.DefaultConfig(), nil)
	c := NewClient(ch, nil)
	c.Close()
	c.Close()
}
