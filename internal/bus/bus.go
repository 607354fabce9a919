package bus

import (
	"sync"
	"sync/atomic"
)

const DefaultBuffer = 64

// Subscriber owns a buffered delivery channel. A full buffer drops the
// notification for this subscriber only.
type Subscriber struct {
	id      string
	ch      chan Notification
	dropped atomic.Uint64
}

// NewSubscriber creates a subscriber with the given identity and buffer size.
func NewSubscriber(id string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Subscriber{
		id: id,
		ch: make(chan Notification, buffer),
	}
}

func (s *Subscriber) ID() string {
	return s.id
}

// C returns the delivery channel. It is never closed by the bus.
func (s *Subscriber) C() <-chan Notification {
	return s.ch
}

// Dropped returns how many notifications were discarded on a full buffer.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// DropHook observes notifications discarded for a slow subscriber.
type DropHook func(subscriberID string, n Notification)

type Option func(*Bus)

// WithDropHook installs a callback for dropped deliveries.
func WithDropHook(hook DropHook) Option {
	return func(b *Bus) {
		b.onDrop = hook
	}
}

// Bus is an in-process publish/subscribe router. It holds routing state
// only and is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	routes map[*Subscriber]map[Filter]struct{}
	onDrop DropHook
}

func New(opts ...Option) *Bus {
	b := &Bus{
		routes: make(map[*Subscriber]map[Filter]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Register adds filter for sub. Repeating a subscriber+filter pair has no effect.
func (b *Bus) Register(sub *Subscriber, filter Filter) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	filters, ok := b.routes[sub]
	if !ok {
		filters = make(map[Filter]struct{}, 1)
		b.routes[sub] = filters
	}
	filters[filter] = struct{}{}
}

// Unregister removes every filter of sub. Unknown subscribers are ignored.
func (b *Bus) Unregister(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.routes, sub)
}

// Publish hands n to every matching subscriber without waiting on any of
// them. Notifications nobody matches are dropped silently.
func (b *Bus) Publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, filters := range b.routes {
		if !anyMatch(filters, n, sub.id) {
			continue
		}

		select {
		case sub.ch <- n:
		default:
			sub.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop(sub.id, n)
			}
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.routes)
}

func anyMatch(filters map[Filter]struct{}, n Notification, id string) bool {
	for f := range filters {
		if f.matches(n, id) {
			return true
		}
	}

	return false
}
