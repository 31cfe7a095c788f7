package engine

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/roach88/senselogic/internal/ir"
)

// queueEntry is one scheduled unit of work.
//
// An entry is in exactly one of three places: the heap (queued), the parked
// set (parked), or a worker's hands (inFlight). The entries map holds every
// active entry regardless of place; removal from the map is what
// unregistration means.
type queueEntry[T any] struct {
	key      string
	item     T
	due      int64
	seq      uint64
	index    int // heap position, -1 when not in the heap
	parked   bool
	inFlight bool
	dirty    bool // promoted while in flight
}

// deadlineQueue orders work by due time, FIFO among equal deadlines.
//
// All mutation happens under mu. Workers take due entries with next, run
// them outside the lock, and hand them back with complete. The signal
// channel (buffered, size 1) wakes idle workers when work is added or
// promoted; it is closed by close.
type deadlineQueue[T any] struct {
	name    string
	mu      sync.Mutex
	heap    entryHeap[T]
	entries map[string]*queueEntry[T]
	seq     uint64
	closed  bool
	signal  chan struct{}
}

func newDeadlineQueue[T any](name string) *deadlineQueue[T] {
	return &deadlineQueue[T]{
		name:    name,
		entries: make(map[string]*queueEntry[T]),
		signal:  make(chan struct{}, 1),
	}
}

// notifyLocked wakes one idle worker. Non-blocking: the buffer coalesces.
func (q *deadlineQueue[T]) notifyLocked() {
	if q.closed {
		return
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *deadlineQueue[T]) pushLocked(e *queueEntry[T], due int64) {
	q.seq++
	e.due = due
	e.seq = q.seq
	e.parked = false
	heap.Push(&q.heap, e)
	q.notifyLocked()
}

// add schedules a new entry. It returns false if key is already active or the
// queue is closed.
func (q *deadlineQueue[T]) add(key string, item T, due int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if _, exists := q.entries[key]; exists {
		return false
	}
	e := &queueEntry[T]{key: key, item: item, index: -1}
	q.entries[key] = e
	q.pushLocked(e, due)
	return true
}

// remove deactivates key wherever it is. An in-flight entry is left with its
// worker, whose complete call will then drop it.
func (q *deadlineQueue[T]) remove(key string) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	q.removeLocked(e)
	return e.item, true
}

func (q *deadlineQueue[T]) removeLocked(e *queueEntry[T]) {
	delete(q.entries, e.key)
	if e.index >= 0 {
		heap.Remove(&q.heap, e.index)
	}
	e.parked = false
}

// removeEntry deactivates e only if it is still the active entry for its
// key. It reports whether it did.
func (q *deadlineQueue[T]) removeEntry(e *queueEntry[T]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.entries[e.key] != e {
		return false
	}
	q.removeLocked(e)
	return true
}

// active reports whether e is still the registered entry for its key.
func (q *deadlineQueue[T]) active(e *queueEntry[T]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries[e.key] == e
}

func (q *deadlineQueue[T]) has(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[key]
	return ok
}

// next takes the earliest entry due at or before now. Otherwise it returns
// the earliest pending deadline, or ir.Forever when nothing is queued.
func (q *deadlineQueue[T]) next(now int64) (e *queueEntry[T], wakeAt int64, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, 0, true
	}
	if len(q.heap) == 0 {
		return nil, ir.Forever, false
	}
	top := q.heap[0]
	if top.due > now {
		return nil, top.due, false
	}
	heap.Pop(&q.heap)
	top.inFlight = true
	return top, 0, false
}

// peek returns the earliest queued deadline, or ir.Forever.
func (q *deadlineQueue[T]) peek() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.heap) == 0 {
		return ir.Forever
	}
	return q.heap[0].due
}

// complete hands e back after processing. If e was removed meanwhile it is
// dropped. If it was promoted meanwhile it is queued at now. Otherwise it is
// parked or queued at due.
func (q *deadlineQueue[T]) complete(e *queueEntry[T], now, due int64, park bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e.inFlight = false
	if q.closed || q.entries[e.key] != e {
		return
	}
	switch {
	case e.dirty:
		e.dirty = false
		q.pushLocked(e, now)
	case park:
		e.parked = true
	default:
		// never re-run within the same millisecond
		q.pushLocked(e, max(due, now+1))
	}
}

// promote makes key due at now. Parked entries rejoin the heap; in-flight
// entries are marked so complete requeues them. Unknown keys are ignored.
func (q *deadlineQueue[T]) promote(key string, now int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[key]
	if !ok || q.closed {
		return false
	}
	switch {
	case e.inFlight:
		e.dirty = true
	case e.parked:
		q.pushLocked(e, now)
	case e.due > now:
		q.seq++
		e.due = now
		e.seq = q.seq
		heap.Fix(&q.heap, e.index)
		q.notifyLocked()
	}
	return true
}

// wait returns the wake-up channel. It is closed when the queue closes.
func (q *deadlineQueue[T]) wait() <-chan struct{} {
	return q.signal
}

// queueState is a point-in-time view of one entry.
type queueState[T any] struct {
	Key      string
	Item     T
	Due      int64
	Parked   bool
	InFlight bool
}

// snapshot lists active entries sorted by key.
func (q *deadlineQueue[T]) snapshot() []queueState[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queueState[T], 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, queueState[T]{Key: e.key, Item: e.item, Due: e.due, Parked: e.parked, InFlight: e.inFlight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// depth returns the number of queued and parked entries.
func (q *deadlineQueue[T]) depth() (queued, parked int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.parked {
			parked++
		} else {
			queued++
		}
	}
	return queued, parked
}

// close deactivates every entry and wakes all waiters. It returns the items
// that were active.
func (q *deadlineQueue[T]) close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	keys := make([]string, 0, len(q.entries))
	for k := range q.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]T, 0, len(keys))
	for _, k := range keys {
		items = append(items, q.entries[k].item)
	}
	q.entries = make(map[string]*queueEntry[T])
	q.heap = nil
	q.closed = true
	close(q.signal)
	return items
}

// entryHeap implements heap.Interface ordered by (due, seq).
type entryHeap[T any] []*queueEntry[T]

func (h entryHeap[T]) Len() int { return len(h) }

func (h entryHeap[T]) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap[T]) Push(x any) {
	e := x.(*queueEntry[T])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
