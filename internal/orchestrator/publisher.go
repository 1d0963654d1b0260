package orchestrator

import (
	"sync"

	"github.com/google/uuid"
)

// Publisher holds the latest value of one observable stream. Only the
// orchestrator publishes; any number of observers read the snapshot or
// subscribe to changes.
type Publisher[T any] struct {
	mu    sync.RWMutex
	value T
	subs  map[string]chan T
}

// NewPublisher creates a publisher holding initial.
func NewPublisher[T any](initial T) *Publisher[T] {
	return &Publisher[T]{
		value: initial,
		subs:  make(map[string]chan T),
	}
}

// Get returns the current snapshot.
func (p *Publisher[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Subscribe returns a channel that first yields the current snapshot and then
// every change. Slow subscribers only ever see the latest value. Call cancel to
// stop receiving; the channel is closed.
func (p *Publisher[T]) Subscribe() (updates <-chan T, cancel func()) {
	id := uuid.NewString()
	ch := make(chan T, 1)

	p.mu.Lock()
	ch <- p.value
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if c, ok := p.subs[id]; ok {
				close(c)
				delete(p.subs, id)
			}
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (p *Publisher[T]) Subscribers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

func (p *Publisher[T]) publish(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.value = v
	for _, ch := range p.subs {
		// Conflate: replace an unread value with the newer one.
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
