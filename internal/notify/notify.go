// Package notify provides a latest-value broadcaster: every watcher sees the
// current value on subscribe and then the newest value after each change.
// Slow watchers skip intermediate values instead of blocking the publisher.
package notify

import (
	"context"
	"sync"
)

// Broadcaster fans a value out to any number of watchers.
type Broadcaster[T any] struct {
	mu       sync.Mutex
	current  T
	watchers map[chan T]struct{}
}

// New creates a Broadcaster holding initial.
func New[T any](initial T) *Broadcaster[T] {
	return &Broadcaster[T]{
		current:  initial,
		watchers: make(map[chan T]struct{}),
	}
}

// Current returns the last published value.
func (b *Broadcaster[T]) Current() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Publish stores v and delivers it to every watcher.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = v
	for ch := range b.watchers {
		deliver(ch, v)
	}
}

// Watch returns a channel carrying the current value followed by every later
// one. The channel is closed once ctx is done.
func (b *Broadcaster[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	b.mu.Lock()
	b.watchers[ch] = struct{}{}
	deliver(ch, b.current)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.watchers, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// deliver replaces any unread value in ch with v. Only the publisher sends,
// always under the broadcaster lock, so the send after draining never blocks.
func deliver[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
