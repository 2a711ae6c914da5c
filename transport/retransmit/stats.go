package retransmit

import (
	"net"
	"time"
)

// PeerStats is a point-in-time snapshot of one peer's retransmission
// state, exposed for tests and operational introspection (scenarios
// that assert on RTO caching and concurrency-cap behavior need to see
// this without reaching into unexported fields).
type PeerStats struct {
	Outstanding   int
	Pending       int
	CurrentRTO    time.Duration
	CachedRTO     time.Duration
	PacingWaiting bool
}

// Stats returns a snapshot of peer's retransmission state. The zero
// value is returned, with ok false, if the peer has no live state (it
// has never sent a request, or its state has since been reaped as
// idle).
func (t *Transport) Stats(peer net.Addr) (stats PeerStats, ok bool) {
	ps, found := t.peers[peer.String()]
	if !found {
		return PeerStats{}, false
	}
	return PeerStats{
		Outstanding:   len(ps.outstanding),
		Pending:       len(ps.pending),
		CurrentRTO:    ps.currentRTO,
		CachedRTO:     ps.cachedRTO,
		PacingWaiting: ps.pacingWaiting,
	}, true
}

// ActivePeers returns the string keys (peer.String()) of every peer
// currently holding retransmission state.
func (t *Transport) ActivePeers() []string {
	keys := make([]string, 0, len(t.peers))
	for k := range t.peers {
		keys = append(keys, k)
	}
	return keys
}
