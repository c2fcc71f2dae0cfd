package engine

import (
	"sync"
	"sync/atomic"

	"github.com/shurlinet/gossipnode/internal/wire"
)

// SnapshotCell is a single-value holder with change notification: writes
// overwrite, readers always observe the latest value and never block a
// writer. A slow reader coalesces intermediate writes rather than queuing
// them (spec §5, "snapshot cell vs. event log").
type SnapshotCell struct {
	mu  sync.Mutex
	val wire.NetworkState
	ch  chan struct{}
}

// NewSnapshotCell returns an empty cell (self_id absent).
func NewSnapshotCell() *SnapshotCell {
	return &SnapshotCell{ch: make(chan struct{})}
}

// Set overwrites the held value and wakes any readers blocked in Get.
func (c *SnapshotCell) Set(v wire.NetworkState) {
	c.mu.Lock()
	c.val = v
	old := c.ch
	c.ch = make(chan struct{})
	c.mu.Unlock()
	close(old)
}

// Get returns the current value and a channel that closes the moment a
// newer value is Set. A reader that wants the next change should re-call
// Get after the channel closes.
func (c *SnapshotCell) Get() (wire.NetworkState, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val, c.ch
}

// animBufferSize bounds the per-subscriber animation channel. Overrun
// drops the oldest buffered event rather than blocking the publisher.
const animBufferSize = 32

type animSubscriber struct {
	ch      chan wire.NodeId
	dropped atomic.Int64
}

// AnimationBus is a multi-consumer, lossy-on-overrun broadcast of NodeIds:
// the engine publishes the node a gossip message just arrived via, the
// observation feed forwards it as an AnimateEdge update. A full subscriber
// buffer drops its oldest entry rather than blocking the engine (spec §5,
// "per-subscriber FIFO with a bounded buffer; on overrun the subscriber is
// notified and the overrun window is dropped").
type AnimationBus struct {
	mu     sync.Mutex
	subs   map[*animSubscriber]struct{}
	closed bool
}

// NewAnimationBus returns an empty bus.
func NewAnimationBus() *AnimationBus {
	return &AnimationBus{subs: make(map[*animSubscriber]struct{})}
}

// Subscribe registers a new subscriber and returns its receive channel plus
// a function reporting (and resetting) how many events it has dropped
// since the last call, along with an unsubscribe function.
func (b *AnimationBus) Subscribe() (ch <-chan wire.NodeId, dropped func() int64, unsubscribe func()) {
	sub := &animSubscriber{ch: make(chan wire.NodeId, animBufferSize)}

	b.mu.Lock()
	if b.closed {
		close(sub.ch)
	} else {
		b.subs[sub] = struct{}{}
	}
	b.mu.Unlock()

	return sub.ch, func() int64 { return sub.dropped.Swap(0) }, func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}
}

// Publish broadcasts id to every current subscriber, best-effort: a
// subscriber whose buffer is full has its oldest entry evicted to make
// room, and its drop counter is incremented. Silently a no-op with zero
// subscribers.
func (b *AnimationBus) Publish(id wire.NodeId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- id:
			continue
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- id:
		default:
		}
		sub.dropped.Add(1)
	}
}

// Close terminates the bus: all current and future subscriber channels are
// closed, signaling subscribers to stop.
func (b *AnimationBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*animSubscriber]struct{})
}
