package wanagent

import (
	"container/list"
	"sync"
)

// bufferNode is one enqueued, not-yet-universally-sent payload. It owns its
// bytes from the moment Enqueue copies them in until the send loop pops it.
type bufferNode struct {
	payload []byte
}

// sendBuffer is the single ordered queue shared by one producer (Enqueue)
// and one consumer (the send loop). Grounded on spec.md §3/§4.2 and on the
// original's buffer_list/size/last_all_sent_seqno triple
// (wan_agent_impl.hpp), translated from an intrusive linked list + raw
// mutex into container/list + sync.Mutex/sync.Cond — the same locking
// discipline (lock held only around mutation of the list or size) the
// spec's §5 requires.
type sendBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond
	list *list.List // of *bufferNode
	size uint64

	// lastAllSent is the highest seqno sent to every peer so far. NoSeq
	// until the first message clears all peers.
	lastAllSent SeqNo

	enqueued uint64 // total messages ever enqueued, for the size invariant
}

func newSendBuffer() *sendBuffer {
	b := &sendBuffer{
		list:        list.New(),
		lastAllSent: NoSeq,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// enqueue copies payload into a fresh node and appends it to the tail,
// waking any goroutine blocked in waitNotEmpty.
func (b *sendBuffer) enqueue(payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	b.mu.Lock()
	b.list.PushBack(&bufferNode{payload: cp})
	b.size++
	b.enqueued++
	b.mu.Unlock()

	b.cond.Signal()
}

// waitNotEmpty blocks until size > 0 or shutdown becomes true (checked via
// isShutdown, polled under the same lock each wakeup — the predicate loop's
// forced-wakeup trick in spec.md §4.2 relies on the same pattern).
func (b *sendBuffer) waitNotEmpty(isShutdown func() bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.size == 0 && !isShutdown() {
		b.cond.Wait()
	}
}

// broadcastShutdown wakes every goroutine blocked in waitNotEmpty so they
// can observe the shutdown flag and exit.
func (b *sendBuffer) broadcastShutdown() {
	b.cond.Broadcast()
}

// front returns the payload at the head of the buffer (the oldest
// not-yet-universally-sent message) and whether the buffer is non-empty.
func (b *sendBuffer) front() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.list.Front()
	if e == nil {
		return nil, false
	}
	return e.Value.(*bufferNode).payload, true
}

// sizeNow returns the current buffer size.
func (b *sendBuffer) sizeNow() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// popFrontIfFrontierAdvanced advances lastAllSent to newFrontier iff
// newFrontier sorts after the current lastAllSent (including the bootstrap
// transition from NoSeq to 0), popping the head node if there is one.
// Returns whether the frontier advanced, which is true even when the buffer
// was empty and nothing was popped.
func (b *sendBuffer) popFrontIfFrontierAdvanced(newFrontier SeqNo) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	// lastAllSent.Less(newFrontier) alone covers both the steady-state
	// "min_sent > last_all_sent_seqno" case and the bootstrap
	// "last_all_sent_seqno == NoSeq && min_sent == 0" case, because Less
	// already orders NoSeq below every real sequence number.
	if !b.lastAllSent.Less(newFrontier) {
		return false
	}

	// Invariant (spec.md §4.2): exactly one message crosses the frontier
	// per send-loop iteration, since each iteration advances a peer's
	// last_sent_seqno by at most one slot.
	e := b.list.Front()
	if e != nil {
		b.list.Remove(e)
		b.size--
	}
	b.lastAllSent = newFrontier
	return true
}

// lastAllSentSeqno returns the current global frontier.
func (b *sendBuffer) lastAllSentSeqno() SeqNo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAllSent
}
