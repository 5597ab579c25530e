// Package spsc implements the fixed-capacity byte FIFO that carries key
// events from the scan core to the USB core.
//
// The queue has exactly one writer and one reader. New hands out one Producer
// and one Consumer; each must stay with a single goroutine for its lifetime.
// Adding a second producer or consumer breaks the queue: that would need a
// lock or a multi-producer design.
package spsc

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// DefaultCapacity is the number of events the key pipeline can buffer.
const DefaultCapacity = 128

// ErrFull is returned by Push when every slot holds an unconsumed byte.
var ErrFull = errors.New("spsc: queue full")

type queue struct {
	buf  []byte
	mask uint32

	// head and tail are free-running counters. Only the consumer stores
	// head, only the producer stores tail.
	head atomic.Uint32
	tail atomic.Uint32
}

// Producer is the write half of the queue.
type Producer struct {
	q *queue
}

// Consumer is the read half of the queue.
type Consumer struct {
	q *queue
}

// New builds a queue holding up to capacity bytes and splits it into its two
// halves. capacity must be a power of two no larger than 1<<16, so slots stay
// in order when the counters wrap.
func New(capacity int) (*Producer, *Consumer) {
	if capacity <= 0 || capacity > 1<<16 || capacity&(capacity-1) != 0 {
		panic(fmt.Sprintf("spsc: invalid capacity %d", capacity))
	}
	q := &queue{buf: make([]byte, capacity), mask: uint32(capacity - 1)}
	return &Producer{q: q}, &Consumer{q: q}
}

func (q *queue) slot(n uint32) int {
	return int(n & q.mask)
}

// Push appends b. It never overwrites: a full queue returns ErrFull and is
// left untouched.
func (p *Producer) Push(b byte) error {
	q := p.q
	tail := q.tail.Load()
	if tail-q.head.Load() == uint32(len(q.buf)) {
		return ErrFull
	}
	q.buf[q.slot(tail)] = b
	q.tail.Store(tail + 1)
	return nil
}

// Len returns the number of queued bytes as seen by the producer.
func (p *Producer) Len() int {
	return int(p.q.tail.Load() - p.q.head.Load())
}

// Cap returns the queue capacity.
func (p *Producer) Cap() int {
	return len(p.q.buf)
}

// Peek returns the oldest byte without removing it.
func (c *Consumer) Peek() (byte, bool) {
	q := c.q
	head := q.head.Load()
	if head == q.tail.Load() {
		return 0, false
	}
	return q.buf[q.slot(head)], true
}

// Pop removes the byte last returned by Peek. Popping an empty queue is a
// no-op.
func (c *Consumer) Pop() {
	q := c.q
	head := q.head.Load()
	if head == q.tail.Load() {
		return
	}
	q.head.Store(head + 1)
}

// Len returns the number of queued bytes as seen by the consumer.
func (c *Consumer) Len() int {
	return int(c.q.tail.Load() - c.q.head.Load())
}
