// Package agent implements C7: thin client and server dispatchers atop
// a channel.Channel. Client is a cheap, goroutine-safe handle backed by
// a background engine task spawned in NewClient, so callers can invoke
// blocking request methods from any goroutine while a single goroutine
// owns the wire.
package agent

import (
	"context"
	"net"
	"time"

	"github.com/halcyon-systems/gostun"
	"github.com/halcyon-systems/gostun/channel"
)

// command is one operation the engine task executes on its own
// goroutine; Client.Call/Cast build one and push it onto cmdCh, a
// multi-producer/single-consumer queue feeding the one goroutine that
// owns the channel.
type command func(ch *channel.Channel)

// Client is a handle around a channel run by a background engine task.
// It is safe to share across goroutines; all of them funnel through the
// same cmdCh into the one task that actually touches the channel.
type Client struct {
	cmdCh chan command
	done  chan struct{}
	log   stun.Logger

	pollInterval time.Duration
}

// NewClient starts the engine task driving ch and returns a handle to
// it. The task runs until ch's transport terminates or Close is called.
func NewClient(ch *channel.Channel, log stun.Logger) *Client {
	if log == nil {
		log = stun.NopLogger()
	}
	c := &Client{
		cmdCh:        make(chan command),
		done:         make(chan struct{}),
		log:          log,
		pollInterval: 2 * time.Millisecond,
	}
	go c.run(ch)
	return c
}

func (c *Client) run(ch *channel.Channel) {
	defer close(c.done)
	for {
		select {
		case cmd, ok := <-c.cmdCh:
			if !ok {
				return
			}
			cmd(ch)
		default:
		}

		if _, hasEvent := ch.Poll(); hasEvent {
			// A client ignores unsolicited Request/Indication/Invalid
			// events; it only cares about resolving its own calls.
			continue
		}

		if terminated, err := ch.Terminated(); terminated {
			c.log.Debugf("engine task stopping: %v", err)
			return
		}

		select {
		case cmd, ok := <-c.cmdCh:
			if !ok {
				return
			}
			cmd(ch)
		case <-time.After(c.pollInterval):
		}
	}
}

// Call issues a BINDING (or other method) request to peer and blocks
// until it resolves, the context is done, or the engine has terminated.
func (c *Client) Call(ctx context.Context, peer net.Addr, req *stun.Message) (*stun.Message, error) {
	type outcome struct {
		ch  <-chan channel.Result
		err error
	}
	replyCh := make(chan outcome, 1)

	select {
	case c.cmdCh <- func(ch *channel.Channel) {
		resultCh, err := ch.Call(ctx, peer, req)
		replyCh <- outcome{ch: resultCh, err: err}
	}:
	case <-c.done:
		return nil, stun.ErrTerminated
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := <-replyCh
	if out.err != nil {
		return nil, out.err
	}

	select {
	case res := <-out.ch:
		return res.Response, res.Err
	case <-c.done:
		return nil, stun.ErrTerminated
	}
}

// Cast sends an indication and does not wait for any acknowledgement.
func (c *Client) Cast(peer net.Addr, ind *stun.Message) error {
	errCh := make(chan error, 1)
	select {
	case c.cmdCh <- func(ch *channel.Channel) {
		errCh <- ch.Cast(peer, ind)
	}:
	case <-c.done:
		return stun.ErrTerminated
	}
	return <-errCh
}

// Close stops the engine task. Outstanding calls observe
// ErrTerminated.
func (c *Client) Close() {
	select {
	case <-c.done:
	default:
		close(c.cmdCh)
	}
	<-c.done
}
