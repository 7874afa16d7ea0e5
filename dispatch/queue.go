package dispatch

import (
	"sync"

	"github.com/pinstack/backbox/protocol"
)

// queue is a bounded FIFO of inbound messages shared between the
// transport reader and the consumer tick. Once full it stays full:
// push refuses new messages until pop makes room.
type queue struct {
	mu      sync.Mutex
	entries []*protocol.Message
	head    int
	count   int
}

func newQueue(capacity int) *queue {
	return &queue{entries: make([]*protocol.Message, capacity)}
}

// push appends m, reporting false when the queue is full.
func (q *queue) push(m *protocol.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.entries) {
		return false
	}
	q.entries[(q.head+q.count)%len(q.entries)] = m
	q.count++
	return true
}

// pop removes and returns the oldest message, or nil when empty.
func (q *queue) pop() *protocol.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}
	m := q.entries[q.head]
	q.entries[q.head] = nil
	q.head = (q.head + 1) % len(q.entries)
	q.count--
	return m
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
