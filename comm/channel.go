// Package comm implements the CommChannel shared between an Executor's
// worker goroutine and its controller: a bounded Message queue plus an
// atomic termination flag.
package comm

import (
	"sync/atomic"

	"github.com/taskolib/taskolib/message"
	"github.com/taskolib/taskolib/queue"
)

// DefaultCapacity is the queue capacity used when none is specified.
const DefaultCapacity = 32

// Channel is shared by reference between a worker goroutine and its
// controller; its lifetime extends until both release it. The worker never
// touches the controller's Sequence directly — only this Channel.
type Channel struct {
	queue       *queue.BoundedQueue[message.Message]
	terminating atomic.Bool
}

// New constructs a Channel with the given queue capacity.
func New(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{queue: queue.New[message.Message](capacity)}
}

// Push enqueues m, blocking if the channel is full. This is the path a
// ScriptHost's print binding uses, and is the designed backpressure point.
func (c *Channel) Push(m message.Message) {
	c.queue.Push(m)
}

// TryPush enqueues m without blocking, returning false if the channel is
// currently full.
func (c *Channel) TryPush(m message.Message) bool {
	return c.queue.TryPush(m)
}

// DrainAll removes and returns every currently queued Message without
// blocking, in FIFO order.
func (c *Channel) DrainAll() []message.Message {
	return c.queue.DrainAll()
}

// Size reports how many Messages are currently queued.
func (c *Channel) Size() int {
	return c.queue.Size()
}

// RequestTermination sets the termination flag. The worker observes this at
// its next interrupt-hook check and unwinds; a producer blocked in Push is
// unblocked once the controller subsequently drains the queue.
func (c *Channel) RequestTermination() {
	c.terminating.Store(true)
}

// TerminationRequested reports whether RequestTermination has been called.
func (c *Channel) TerminationRequested() bool {
	return c.terminating.Load()
}

// Reset clears the termination flag and drops any queued messages, readying
// the Channel for reuse by a subsequent run. Only the controller, with no
// worker attached, may call this.
func (c *Channel) Reset(capacity int) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c.queue = queue.New[message.Message](capacity)
	c.terminating.Store(false)
}
