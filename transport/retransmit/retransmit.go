// Package retransmit implements C4: an RFC 5389 §7.2.1 retransmission
// adapter over an unreliable datagram transport (transport.UDPTransport).
// It owns one peerState per remote address (current/cached RTO, the
// outstanding-transaction set, a FIFO of requests waiting on pacing or
// the concurrency cap) and drives its own timers through a
// timeoutqueue.Queue, independent of the channel's request-timeout queue.
//
// Transport assumes a single engine task calls
// Send/RunOnce/FinishTransaction; it is not safe for concurrent use by
// more than one goroutine.
package retransmit

import (
	"net"
	"time"

	"github.com/halcyon-systems/gostun"
	"github.com/halcyon-systems/gostun/timeoutqueue"
	"github.com/halcyon-systems/gostun/transport"
)

// pendingRequest is one caller-issued request waiting for its turn:
// either sitting in a peer's pending FIFO, or already sent and
// outstanding (in which case it also lives in peerState.outstanding).
type pendingRequest struct {
	peer net.Addr
	msg  *stun.Message
}

// peerState is C4's per-peer retransmission record. It is created on the
// first request to a peer and torn down once it goes idle.
type peerState struct {
	currentRTO    time.Duration
	cachedRTO     time.Duration
	cacheExpiry   time.Time
	lastStartTime time.Time
	pacingWaiting bool

	outstanding map[stun.TransactionID]*pendingRequest
	pending     []*pendingRequest
}

func newPeerState(initialRTO time.Duration) *peerState {
	return &peerState{
		currentRTO:  initialRTO,
		cachedRTO:   initialRTO,
		outstanding: make(map[stun.TransactionID]*pendingRequest),
	}
}

// canReap reports whether the peer has no active bookkeeping left to
// remember. A live, unexpired RTO cache keeps the state around even
// with no outstanding or pending requests, so the next call to this
// peer still benefits from it; the state is only dropped once
// ExpireRtoCache has actually fired (or never had anything cached).
func (p *peerState) canReap() bool {
	return len(p.outstanding) == 0 && len(p.pending) == 0 && !p.pacingWaiting && p.cacheExpiry.IsZero()
}

// Timeout queue entries. Validity is re-checked at pop time against the
// live peerState rather than at push time, per the lazy-cancellation
// design of timeoutqueue.Queue.
type retransmitEntry struct {
	peerKey string
	peer    net.Addr
	txID    stun.TransactionID
	msg     *stun.Message
	rto     time.Duration
}

type expireRTOCacheEntry struct {
	peerKey     string
	cachedRTO   time.Duration
	cacheExpiry time.Time
}

type allowNextRequestEntry struct {
	peerKey string
}

// Transport wraps an unreliable transport.Transport and implements
// transport.Transport itself, so it is a drop-in the channel can drive
// exactly like a bare C3 transport.
type Transport struct {
	under  transport.Transport
	config *stun.Config
	log    stun.Logger

	queue *timeoutqueue.Queue
	peers map[string]*peerState
	now   func() time.Time
}

// New wraps under with RFC 5389 §7.2.1 retransmission behavior configured
// by cfg.
func New(under transport.Transport, cfg *stun.Config, log stun.Logger) *Transport {
	if cfg == nil {
		cfg = stun.DefaultConfig()
	}
	if log == nil {
		log = stun.NopLogger()
	}
	return &Transport{
		under:  under,
		config: cfg,
		log:    log,
		queue:  timeoutqueue.New(),
		peers:  make(map[string]*peerState),
		now:    time.Now,
	}
}

func (t *Transport) peerState(key string) *peerState {
	ps, ok := t.peers[key]
	if !ok {
		ps = newPeerState(t.config.InitialRTO)
		t.peers[key] = ps
	}
	return ps
}

// Send implements the per-peer send algorithm of §4.4 for requests;
// indications and responses bypass retransmission entirely and go
// straight to the underlying transport, fire-and-forget.
func (t *Transport) Send(peer net.Addr, msg *stun.Message) error {
	if msg.Class != stun.ClassRequest {
		return t.under.Send(peer, msg)
	}

	key := peer.String()
	ps := t.peerState(key)
	now := t.now()
	req := &pendingRequest{peer: peer, msg: msg}

	if ps.cachedRTO > 0 && !ps.cacheExpiry.IsZero() && now.After(ps.cacheExpiry) {
		ps.cachedRTO = t.config.InitialRTO
		ps.cacheExpiry = time.Time{}
	}

	switch {
	case ps.pacingWaiting:
		ps.pending = append(ps.pending, req)
	case !ps.lastStartTime.IsZero() && now.Sub(ps.lastStartTime) < t.config.MinTransactionInterval:
		ps.pacingWaiting = true
		ps.pending = append(ps.pending, req)
		t.queue.Push(now, allowNextRequestEntry{peerKey: key}, t.config.MinTransactionInterval-now.Sub(ps.lastStartTime))
	case len(ps.outstanding) >= t.config.MaxOutstandingTransactions:
		ps.pending = append(ps.pending, req)
	default:
		return t.startTransaction(key, ps, req, now)
	}
	return nil
}

// startTransaction performs step 5 of §4.4: it forwards the request to
// the wire and schedules its first retransmit.
func (t *Transport) startTransaction(key string, ps *peerState, req *pendingRequest, now time.Time) error {
	txID := req.msg.TransactionID
	ps.outstanding[txID] = req
	ps.lastStartTime = now
	rto := ps.cachedRTO
	if rto <= 0 {
		rto = t.config.InitialRTO
	}

	if err := t.under.Send(req.peer, req.msg); err != nil {
		delete(ps.outstanding, txID)
		return err
	}

	t.queue.Push(now, retransmitEntry{
		peerKey: key,
		peer:    req.peer,
		txID:    txID,
		msg:     req.msg,
		rto:     rto * 2,
	}, rto)
	return nil
}

// Recv delegates straight to the underlying transport; C4 adds no
// receive-side behavior.
func (t *Transport) Recv() (transport.Inbound, bool) {
	return t.under.Recv()
}

// RunOnce steps the underlying transport and then fires any due
// retransmission, RTO-cache-expiry, or pacing timers.
func (t *Transport) RunOnce() (terminated bool, err error) {
	terminated, err = t.under.RunOnce()
	now := t.now()
	for {
		entry, ok := t.queue.PopExpired(now, t.validEntry)
		if !ok {
			break
		}
		t.fire(entry, now)
	}
	return terminated, err
}

func (t *Transport) validEntry(e timeoutqueue.Entry) bool {
	switch v := e.(type) {
	case retransmitEntry:
		ps, ok := t.peers[v.peerKey]
		if !ok {
			return false
		}
		_, stillOutstanding := ps.outstanding[v.txID]
		return stillOutstanding
	case expireRTOCacheEntry:
		ps, ok := t.peers[v.peerKey]
		return ok && ps.cachedRTO == v.cachedRTO && ps.cacheExpiry.Equal(v.cacheExpiry)
	case allowNextRequestEntry:
		ps, ok := t.peers[v.peerKey]
		return ok && ps.pacingWaiting
	default:
		return false
	}
}

func (t *Transport) fire(e timeoutqueue.Entry, now time.Time) {
	switch v := e.(type) {
	case retransmitEntry:
		t.fireRetransmit(v, now)
	case expireRTOCacheEntry:
		t.fireExpireRTOCache(v)
	case allowNextRequestEntry:
		t.fireAllowNextRequest(v, now)
	}
}

func (t *Transport) fireRetransmit(v retransmitEntry, now time.Time) {
	ps, ok := t.peers[v.peerKey]
	if !ok {
		return
	}
	if err := t.under.Send(v.peer, v.msg); err != nil {
		t.log.Errorf("retransmit to %v: %v", v.peer, err)
	}
	ps.currentRTO = v.rto / 2
	if v.rto/2 > ps.cachedRTO {
		ps.cachedRTO = v.rto / 2
		ps.cacheExpiry = now.Add(t.config.RTOCacheDuration)
		t.queue.Push(now, expireRTOCacheEntry{
			peerKey:     v.peerKey,
			cachedRTO:   ps.cachedRTO,
			cacheExpiry: ps.cacheExpiry,
		}, t.config.RTOCacheDuration)
	}
	t.queue.Push(now, retransmitEntry{
		peerKey: v.peerKey,
		peer:    v.peer,
		txID:    v.txID,
		msg:     v.msg,
		rto:     v.rto * 2,
	}, v.rto)
}

func (t *Transport) fireExpireRTOCache(v expireRTOCacheEntry) {
	ps, ok := t.peers[v.peerKey]
	if !ok {
		return
	}
	ps.cachedRTO = t.config.InitialRTO
	ps.cacheExpiry = time.Time{}
	t.reapIfIdle(v.peerKey, ps)
}

func (t *Transport) fireAllowNextRequest(v allowNextRequestEntry, now time.Time) {
	ps, ok := t.peers[v.peerKey]
	if !ok {
		return
	}
	ps.pacingWaiting = false
	t.drainOne(v.peerKey, ps, now)
}

// drainOne attempts to start exactly one pending request, per §4.4's
// "attempting to drain one pending request via the normal send
// algorithm" description of AllowNextRequest.
func (t *Transport) drainOne(key string, ps *peerState, now time.Time) {
	if len(ps.pending) == 0 {
		t.reapIfIdle(key, ps)
		return
	}
	req := ps.pending[0]
	ps.pending = ps.pending[1:]

	switch {
	case !ps.lastStartTime.IsZero() && now.Sub(ps.lastStartTime) < t.config.MinTransactionInterval:
		ps.pacingWaiting = true
		ps.pending = append([]*pendingRequest{req}, ps.pending...)
		t.queue.Push(now, allowNextRequestEntry{peerKey: key}, t.config.MinTransactionInterval-now.Sub(ps.lastStartTime))
	case len(ps.outstanding) >= t.config.MaxOutstandingTransactions:
		ps.pending = append([]*pendingRequest{req}, ps.pending...)
	default:
		if err := t.startTransaction(key, ps, req, now); err != nil {
			t.log.Errorf("draining pending request to %v: %v", req.peer, err)
		}
	}
}

// FinishTransaction ends (peer, txID): it stops retransmission (the next
// Retransmit pop will find it no longer outstanding and discard itself)
// and starts the first pending request, if any, when the concurrency cap
// and the pacing interval both allow it.
func (t *Transport) FinishTransaction(peer net.Addr, txID stun.TransactionID) {
	key := peer.String()
	ps, ok := t.peers[key]
	if !ok {
		return
	}
	delete(ps.outstanding, txID)
	t.under.FinishTransaction(peer, txID)

	if len(ps.pending) > 0 && len(ps.outstanding) < t.config.MaxOutstandingTransactions && !ps.pacingWaiting {
		now := t.now()
		if ps.lastStartTime.IsZero() || now.Sub(ps.lastStartTime) >= t.config.MinTransactionInterval {
			req := ps.pending[0]
			ps.pending = ps.pending[1:]
			if err := t.startTransaction(key, ps, req, now); err != nil {
				t.log.Errorf("promoting pending request to %v: %v", req.peer, err)
			}
			return
		}
	}
	t.reapIfIdle(key, ps)
}

func (t *Transport) reapIfIdle(key string, ps *peerState) {
	if ps.canReap() {
		delete(t.peers, key)
	}
}

// Close closes the underlying transport.
func (t *Transport) Close() error {
	return t.under.Close()
}
