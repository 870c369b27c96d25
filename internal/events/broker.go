// Package events carries snapshots and state transitions from the governor
// core to its observers over one typed fan-out primitive.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/okkern/thermactl/internal/logger"
)

// DefaultBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind than this starts losing the oldest unread values.
const DefaultBuffer = 16

// Broker fans published values out to any number of subscribers. Each
// subscriber sees values in publish order; nothing is guaranteed across
// subscribers. Publishing never blocks: a full subscriber simply misses
// the value, counted in Dropped.
type Broker[T any] struct {
	mu      sync.RWMutex
	subs    map[int]chan T
	nextID  int
	closed  bool
	dropped atomic.Uint64
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[int]chan T)}
}

// Subscription is one subscriber's handle: a receive channel plus its
// cancellation. Close is idempotent.
type Subscription[T any] struct {
	ch   chan T
	once sync.Once
	stop func()
}

// C returns the channel values are delivered on. It is closed when the
// subscription or the broker shuts down.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

func (s *Subscription[T]) Close() {
	s.once.Do(s.stop)
}

// Subscribe registers a new subscriber with the given channel depth; a
// non-positive depth gets DefaultBuffer. Subscribing to a closed broker
// yields an already-closed channel.
func (b *Broker[T]) Subscribe(buffer int) *Subscription[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan T, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return &Subscription[T]{ch: ch, stop: func() {}}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return &Subscription[T]{
		ch: ch,
		stop: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		},
	}
}

// Publish delivers v to every subscriber that has room for it
func (b *Broker[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			b.dropped.Add(1)
			logger.Debug().Uint64("dropped_total", b.dropped.Load()).Msg("Subscriber buffer full; value dropped")
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full
func (b *Broker[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts the broker down and closes every subscriber channel. Safe to
// call more than once.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
