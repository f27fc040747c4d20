// Package blocking implements the parking/wakeup coordinator shared by
// BLPOP and XREAD BLOCK: clients register a waiter for one or more keys,
// the coordinator wakes the globally-oldest qualifying waiter per key in
// FIFO order, and cancels cleanly on deadline or disconnect.
package blocking

import (
	"sync"
	"sync/atomic"
	"time"
)

// ListPopper is the subset of the list store the coordinator needs to
// attempt a delivery once a waiter is chosen.
type ListPopper interface {
	TryLPopOne(key string) ([]byte, bool)
}

// StreamReader is the subset of the stream store XREAD BLOCK needs.
type StreamReader interface {
	XReadAfter(key string, after StreamReadID) []StreamEntry
}

// StreamReadID and StreamEntry mirror internal/store's StreamID/
// StreamEntry shapes without importing that package, keeping the
// coordinator decoupled from the concrete store types (it is wired via
// small local interfaces at construction time instead).
type StreamReadID struct {
	MS  uint64
	Seq uint64
}

type StreamEntry struct {
	ID     StreamReadID
	Fields []FieldPair
}

type FieldPair struct {
	Name  string
	Value string
}

// BLPopResult is delivered to a waiting BLPOP caller.
type BLPopResult struct {
	Key   string
	Value []byte
	TimedOut bool
}

// XReadResult is delivered to a waiting XREAD BLOCK caller, grouped by
// stream key. Streams is a map and carries no order; callers order the
// reply by their own request key list.
type XReadResult struct {
	Streams map[string][]StreamEntry
	TimedOut bool
}

type blpopWaiter struct {
	seq     uint64
	keys    []string
	ch      chan BLPopResult
	done    bool
	mu      sync.Mutex
	timer   *time.Timer
}

type xreadWaiter struct {
	seq      uint64
	streams  map[string]StreamReadID // key -> last_seen
	order    []string
	ch       chan XReadResult
	done     bool
	mu       sync.Mutex
	timer    *time.Timer
}

// Coordinator owns per-key FIFO waiter lists for both BLPOP and XREAD
// BLOCK. A single monotonic sequence counter orders waiters globally so
// "oldest waiter first" holds even across the two operation kinds
// sharing no state but the counter.
type Coordinator struct {
	mu        sync.Mutex
	blWaiters map[string][]*blpopWaiter
	xrWaiters map[string][]*xreadWaiter
	seq       uint64

	pop  ListPopper
	read StreamReader
}

func New(pop ListPopper, read StreamReader) *Coordinator {
	return &Coordinator{
		blWaiters: make(map[string][]*blpopWaiter),
		xrWaiters: make(map[string][]*xreadWaiter),
		pop:       pop,
		read:      read,
	}
}

func (c *Coordinator) nextSeq() uint64 {
	return atomic.AddUint64(&c.seq, 1)
}

// TryBLPop attempts an immediate pop across keys in argument order. It
// is called before registering a waiter, per the BLPOP protocol.
func (c *Coordinator) TryBLPop(keys []string) (string, []byte, bool) {
	for _, k := range keys {
		if v, ok := c.pop.TryLPopOne(k); ok {
			return k, v, true
		}
	}
	return "", nil, false
}

// WaitBLPop registers a waiter for keys and returns at once with a
// handle: its Result blocks until delivery or deadline, and its Cancel
// withdraws the waiter. timeout == 0 means no deadline.
func (c *Coordinator) WaitBLPop(keys []string, timeout time.Duration) (w *blpopWaiterHandle) {
	waiter := &blpopWaiter{
		seq:  c.nextSeq(),
		keys: append([]string(nil), keys...),
		ch:   make(chan BLPopResult, 1),
	}
	c.mu.Lock()
	for _, k := range keys {
		c.blWaiters[k] = append(c.blWaiters[k], waiter)
	}
	c.mu.Unlock()

	if timeout > 0 {
		waiter.timer = time.AfterFunc(timeout, func() {
			c.expireBLPop(waiter)
		})
	}
	return &blpopWaiterHandle{c: c, w: waiter}
}

type blpopWaiterHandle struct {
	c *Coordinator
	w *blpopWaiter
}

// Result blocks until the waiter is delivered to, expires, or Cancel is
// called from another goroutine (disconnect path).
func (h *blpopWaiterHandle) Result() BLPopResult {
	return <-h.w.ch
}

// Cancel removes the waiter from every key's list without delivering a
// result; used on client disconnect.
func (h *blpopWaiterHandle) Cancel() {
	h.c.removeBLPopWaiter(h.w)
	h.w.mu.Lock()
	already := h.w.done
	h.w.done = true
	h.w.mu.Unlock()
	if h.w.timer != nil {
		h.w.timer.Stop()
	}
	if !already {
		// Unblock a concurrent Result() call with a TimedOut result,
		// discarded by callers that used Cancel because they no
		// longer read the channel; safe to attempt a non-blocking send.
		select {
		case h.w.ch <- BLPopResult{TimedOut: true}:
		default:
		}
	}
}

func (c *Coordinator) removeBLPopWaiter(w *blpopWaiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range w.keys {
		list := c.blWaiters[k]
		for i, cand := range list {
			if cand == w {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(c.blWaiters, k)
		} else {
			c.blWaiters[k] = list
		}
	}
}

func (c *Coordinator) expireBLPop(w *blpopWaiter) {
	c.removeBLPopWaiter(w)
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.done = true
	w.mu.Unlock()
	w.ch <- BLPopResult{TimedOut: true}
}

// NotifyList is called by the list store after a successful push. It
// tries waiters registered on key in FIFO (lowest sequence_no first)
// order, delivering to the first one for whom a pop still succeeds. A
// waiter that loses the race to another key's notification is left
// registered and tried again on the next notification; if no waiter
// qualifies the notification is silently dropped.
func (c *Coordinator) NotifyList(key string) {
	c.mu.Lock()
	snapshot := append([]*blpopWaiter(nil), c.blWaiters[key]...)
	c.mu.Unlock()

	sortBySeq(snapshot)

	for _, w := range snapshot {
		w.mu.Lock()
		if w.done {
			w.mu.Unlock()
			continue
		}
		// Held across the pop attempt so a concurrent expiry/cancel
		// (which also takes w.mu before sending) can never race a
		// popped element past this waiter: it will see w.done already
		// true once we release the lock and send nothing itself.
		v, ok := c.pop.TryLPopOne(key)
		if !ok {
			w.mu.Unlock()
			continue
		}
		w.done = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		c.removeBLPopWaiter(w)
		w.ch <- BLPopResult{Key: key, Value: v}
		return
	}
}

func sortBySeq(ws []*blpopWaiter) {
	for i := 1; i < len(ws); i++ {
		for j := i; j > 0 && ws[j].seq < ws[j-1].seq; j-- {
			ws[j], ws[j-1] = ws[j-1], ws[j]
		}
	}
}

// WaitXRead registers a waiter across streams (key -> last_seen id) and
// blocks until new entries exist on any of them, the deadline elapses,
// or Cancel is called.
func (c *Coordinator) WaitXRead(streams map[string]StreamReadID, order []string, timeout time.Duration) *xreadWaiterHandle {
	waiter := &xreadWaiter{
		seq:     c.nextSeq(),
		streams: streams,
		order:   append([]string(nil), order...),
		ch:      make(chan XReadResult, 1),
	}
	c.mu.Lock()
	for k := range streams {
		c.xrWaiters[k] = append(c.xrWaiters[k], waiter)
	}
	c.mu.Unlock()

	if timeout > 0 {
		waiter.timer = time.AfterFunc(timeout, func() {
			c.expireXRead(waiter)
		})
	}
	return &xreadWaiterHandle{c: c, w: waiter}
}

type xreadWaiterHandle struct {
	c *Coordinator
	w *xreadWaiter
}

func (h *xreadWaiterHandle) Result() XReadResult {
	return <-h.w.ch
}

func (h *xreadWaiterHandle) Cancel() {
	h.c.removeXReadWaiter(h.w)
	h.w.mu.Lock()
	already := h.w.done
	h.w.done = true
	h.w.mu.Unlock()
	if h.w.timer != nil {
		h.w.timer.Stop()
	}
	if !already {
		select {
		case h.w.ch <- XReadResult{TimedOut: true}:
		default:
		}
	}
}

func (c *Coordinator) removeXReadWaiter(w *xreadWaiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range w.streams {
		list := c.xrWaiters[k]
		for i, cand := range list {
			if cand == w {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(c.xrWaiters, k)
		} else {
			c.xrWaiters[k] = list
		}
	}
}

func (c *Coordinator) expireXRead(w *xreadWaiter) {
	c.removeXReadWaiter(w)
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.done = true
	w.mu.Unlock()
	w.ch <- XReadResult{TimedOut: true}
}

// NotifyStream is called after a successful XADD. Every waiter parked on
// key is re-checked (a single append can satisfy several waiters with
// distinct last_seen cursors, unlike BLPOP's single-consumer element).
func (c *Coordinator) NotifyStream(key string) {
	c.mu.Lock()
	list := append([]*xreadWaiter(nil), c.xrWaiters[key]...)
	c.mu.Unlock()

	for _, w := range list {
		w.mu.Lock()
		if w.done {
			w.mu.Unlock()
			continue
		}
		result := make(map[string][]StreamEntry)
		for _, k := range w.order {
			entries := c.read.XReadAfter(k, w.streams[k])
			if len(entries) > 0 {
				result[k] = entries
			}
		}
		if len(result) == 0 {
			w.mu.Unlock()
			continue
		}
		w.done = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		c.removeXReadWaiter(w)
		w.ch <- XReadResult{Streams: result}
	}
}
