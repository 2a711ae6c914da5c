// Package channel implements C6: a transaction table that correlates
// outgoing requests to incoming responses by (peer, transaction id),
// enforces per-call request timeouts, classifies inbound messages, and
// surfaces them as a pollable event stream.
//
// A call parks its response on a channel and a reply slot wakes the
// caller when it arrives, addressed explicitly by (peer, transaction id)
// since many transactions can be outstanding at once.
package channel

import (
	"context"
	"crypto/rand"
	"net"
	"time"

	"github.com/halcyon-systems/gostun"
	"github.com/halcyon-systems/gostun/timeoutqueue"
	"github.com/halcyon-systems/gostun/transport"
)

// Result is what a Call eventually resolves with: exactly one of a
// response message (success or error class: ErrorResponse is a
// successful transaction outcome, not a channel failure) or an Err
// describing why no response will ever come.
type Result struct {
	Response *stun.Message
	Err      error
}

// EventKind classifies a poll() event.
type EventKind int

const (
	EventRequest EventKind = iota
	EventIndication
	EventInvalid
)

func (k EventKind) String() string {
	switch k {
	case EventRequest:
		return "request"
	case EventIndication:
		return "indication"
	case EventInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Event is one item from Channel.Poll. Message is set for Request and
// Indication; for Invalid it is nil and Class/Method/TransactionID/Err
// carry whatever could be salvaged from the failed decode.
type Event struct {
	Peer          net.Addr
	Kind          EventKind
	Message       *stun.Message
	Class         stun.Class
	Method        stun.Method
	TransactionID stun.TransactionID
	Err           error
}

type txKey struct {
	peer string
	txID stun.TransactionID
}

type callSlot struct {
	peer     net.Addr
	method   stun.Method
	resultCh chan Result
	ctx      context.Context
	resolved bool
}

type requestTimeoutEntry struct {
	key txKey
}

// Channel owns a transport and the transaction table built atop it. It
// is driven by a single engine task, per the single-threaded cooperative
// model: Call/Cast/Reply/Poll are not safe for concurrent use.
type Channel struct {
	transport transport.Transport
	config    *stun.Config
	log       stun.Logger

	queue *timeoutqueue.Queue
	slots map[txKey]*callSlot
	now   func() time.Time

	termErr error // non-nil once the transport has terminated
}

// New builds a channel driving t, configured by cfg.
func New(t transport.Transport, cfg *stun.Config, log stun.Logger) *Channel {
	if cfg == nil {
		cfg = stun.DefaultConfig()
	}
	if log == nil {
		log = stun.NopLogger()
	}
	return &Channel{
		transport: t,
		config:    cfg,
		log:       log,
		queue:     timeoutqueue.New(),
		slots:     make(map[txKey]*callSlot),
		now:       time.Now,
	}
}

func randomTransactionID() (stun.TransactionID, error) {
	var id stun.TransactionID
	_, err := rand.Read(id[:])
	return id, err
}

// Call assigns req a transaction id if it doesn't already have a
// non-zero one, registers a reply slot, and forwards req to the
// transport. The returned channel receives exactly one Result once the
// transaction resolves (response, timeout, or cancellation via ctx).
func (c *Channel) Call(ctx context.Context, peer net.Addr, req *stun.Message) (<-chan Result, error) {
	if c.termErr != nil {
		return nil, c.termErr
	}
	if req.TransactionID == (stun.TransactionID{}) {
		id, err := randomTransactionID()
		if err != nil {
			return nil, stun.NewError(stun.KindInvalidInput, err, "generate transaction id")
		}
		req.TransactionID = id
	}

	key := txKey{peer: peer.String(), txID: req.TransactionID}
	if _, exists := c.slots[key]; exists {
		return nil, stun.NewError(stun.KindInvalidInput, nil, "transaction %s already pending for %v", req.TransactionID, peer)
	}

	slot := &callSlot{
		peer:     peer,
		method:   req.Method,
		resultCh: make(chan Result, 1),
		ctx:      ctx,
	}
	c.slots[key] = slot
	c.queue.Push(c.now(), requestTimeoutEntry{key: key}, c.config.RequestTimeout)

	if err := c.transport.Send(peer, req); err != nil {
		delete(c.slots, key)
		return nil, err
	}
	return slot.resultCh, nil
}

// Cast forwards an indication immediately; there is no transaction
// tracking and no local failure is reported for it beyond a transport
// error from the send itself.
func (c *Channel) Cast(peer net.Addr, ind *stun.Message) error {
	return c.transport.Send(peer, ind)
}

// Reply forwards a response immediately.
func (c *Channel) Reply(peer net.Addr, resp *stun.Message) error {
	return c.transport.Send(peer, resp)
}

func (c *Channel) resolve(key txKey, result Result) {
	slot, ok := c.slots[key]
	if !ok || slot.resolved {
		return
	}
	slot.resolved = true
	delete(c.slots, key)
	c.transport.FinishTransaction(slot.peer, key.txID)
	slot.resultCh <- result
	close(slot.resultCh)
}

// terminate fails every outstanding call with KindTerminated and caches
// the error so subsequent Calls fail fast without touching the dead
// transport.
func (c *Channel) terminate(cause error) {
	c.termErr = stun.NewError(stun.KindTerminated, cause, "transport terminated")
	for key := range c.slots {
		c.resolve(key, Result{Err: c.termErr})
	}
}

// Terminated reports whether the underlying transport has closed, and
// the cached error every subsequent Call will fail with.
func (c *Channel) Terminated() (bool, error) {
	return c.termErr != nil, c.termErr
}

// Poll performs one step of the channel: it finalizes due timeouts and
// canceled calls, then tries to classify and return the next already
// received inbound message. If none is ready it advances the transport
// one step and returns ok=false. Callers drive the engine by calling
// Poll in a loop.
func (c *Channel) Poll() (Event, bool) {
	if c.termErr != nil {
		return Event{}, false
	}

	c.drainTimeouts()
	c.drainCanceled()

	for {
		in, ok := c.transport.Recv()
		if !ok {
			terminated, err := c.transport.RunOnce()
			if terminated {
				c.terminate(err)
			} else if err != nil {
				c.log.Debugf("transport run_once: %v", err)
			}
			return Event{}, false
		}
		if ev, emit := c.classify(in); emit {
			return ev, true
		}
	}
}

func (c *Channel) drainTimeouts() {
	now := c.now()
	for {
		entry, ok := c.queue.PopExpired(now, c.timeoutStillValid)
		if !ok {
			return
		}
		e := entry.(requestTimeoutEntry)
		c.resolve(e.key, Result{Err: stun.NewError(stun.KindTimeout, nil, "request timeout for %s", e.key.txID)})
	}
}

func (c *Channel) timeoutStillValid(e timeoutqueue.Entry) bool {
	v, ok := e.(requestTimeoutEntry)
	if !ok {
		return false
	}
	_, present := c.slots[v.key]
	return present
}

// drainCanceled finalizes any slot whose caller dropped its Call future
// (ctx canceled) without waiting for a response or timeout.
func (c *Channel) drainCanceled() {
	for key, slot := range c.slots {
		if slot.ctx == nil {
			continue
		}
		select {
		case <-slot.ctx.Done():
			c.resolve(key, Result{Err: slot.ctx.Err()})
		default:
		}
	}
}

// classify turns one inbound item into an Event, reporting via emit
// whether the caller should see it. Responses that resolve a pending
// call are handled entirely internally and never emitted.
func (c *Channel) classify(in transport.Inbound) (ev Event, emit bool) {
	if in.Broken != nil {
		return Event{
			Peer:          in.Peer,
			Kind:          EventInvalid,
			Class:         in.Broken.Class,
			Method:        in.Broken.Method,
			TransactionID: in.Broken.TransactionID,
			Err:           in.Broken.Err,
		}, true
	}

	msg := in.Message
	switch msg.Class {
	case stun.ClassRequest:
		return Event{Peer: in.Peer, Kind: EventRequest, Message: msg}, true
	case stun.ClassIndication:
		return Event{Peer: in.Peer, Kind: EventIndication, Message: msg}, true
	case stun.ClassSuccessResponse, stun.ClassErrorResponse:
		return c.classifyResponse(in.Peer, msg)
	default:
		return Event{
			Peer:   in.Peer,
			Kind:   EventInvalid,
			Class:  msg.Class,
			Method: msg.Method,
			Err:    stun.NewError(stun.KindMalformed, nil, "unrecognized class %v", msg.Class),
		}, true
	}
}

func (c *Channel) classifyResponse(peer net.Addr, msg *stun.Message) (Event, bool) {
	key := txKey{peer: peer.String(), txID: msg.TransactionID}
	slot, ok := c.slots[key]
	if !ok {
		return Event{
			Peer:          peer,
			Kind:          EventInvalid,
			Class:         msg.Class,
			Method:        msg.Method,
			TransactionID: msg.TransactionID,
			Err:           stun.NewError(stun.KindUnknownTransaction, nil, "no pending transaction %s for %v", msg.TransactionID, peer),
		}, true
	}

	if msg.Method != slot.method {
		c.resolve(key, Result{Err: stun.NewError(stun.KindInvalidInput, nil, "response method %v does not match request method %v", msg.Method, slot.method)})
		return Event{}, false
	}

	c.resolve(key, Result{Response: msg})
	return Event{}, false
}
