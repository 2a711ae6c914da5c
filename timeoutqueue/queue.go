// Package timeoutqueue implements C2: a monotonic min-heap of (deadline,
// entry) pairs with lazy cancellation. It backs both the retransmit
// transport's per-peer timers (Retransmit, ExpireRtoCache,
// AllowNextRequest) and the channel's request-timeout entries.
//
// Entries are opaque values; the queue never inspects them beyond
// ordering by deadline. Validity ("is this timer still meaningful") is
// the caller's concern, decided by the predicate passed to PopExpired,
// so a canceled or superseded entry is discarded at pop time instead of
// requiring eager removal from the heap. Implemented with
// container/heap: a small, self-contained algorithmic primitive, exactly
// the kind of thing the standard library is meant for.
package timeoutqueue

import (
	"container/heap"
	"time"
)

// Entry is any value a caller wants to schedule. The queue does not
// interpret it.
type Entry interface{}

type item struct {
	entry    Entry
	deadline time.Time
	index    int
}

type itemHeap []*item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *itemHeap) Push(x interface{}) { it := x.(*item); it.index = len(*h); *h = append(*h, it) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is a priority queue of timeout entries keyed by earliest
// deadline. It is not safe for concurrent use; every engine component
// that owns one drives it from its single cooperative task.
type Queue struct {
	h itemHeap
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Len reports the number of entries currently scheduled.
func (q *Queue) Len() int { return len(q.h) }

// Push schedules entry to fire after d has elapsed from now.
func (q *Queue) Push(now time.Time, entry Entry, d time.Duration) {
	heap.Push(&q.h, &item{entry: entry, deadline: now.Add(d)})
}

// PopExpired returns the earliest entry whose deadline is <= now and
// which valid reports as still meaningful, removing it from the queue.
// Entries the predicate rejects are discarded (not re-queued) as it
// scans toward the front of the heap. If the earliest remaining
// deadline is still in the future, or the queue is empty, PopExpired
// returns (nil, false) without modifying anything further.
func (q *Queue) PopExpired(now time.Time, valid func(Entry) bool) (Entry, bool) {
	for q.h.Len() > 0 {
		top := q.h[0]
		if top.deadline.After(now) {
			return nil, false
		}
		heap.Pop(&q.h)
		if valid == nil || valid(top.entry) {
			return top.entry, true
		}
		// obsolete: discard and keep scanning toward the next entry.
	}
	return nil, false
}

// NextWakeup returns the deadline of the earliest scheduled entry, so a
// caller blocking on I/O can size its timeout. ok is false if the queue
// is empty.
func (q *Queue) NextWakeup() (deadline time.Time, ok bool) {
	if q.h.Len() == 0 {
		return time.Time{}, false
	}
	return q.h[0].deadline, true
}
