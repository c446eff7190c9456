// Package bus implements the in-process notification fan-out used by the
// local simulated store. A mutation publishes the name of the touched
// collection; every listener treats delivery as "a full collection re-read
// is now warranted". The protocol is invalidate-and-refetch, so duplicate
// pending notifications for the same collection may be coalesced, but a
// distinct invalidation is never dropped and a publisher never blocks.
package bus

import (
	"sort"
	"sync"
)

// Handler receives the name of an invalidated collection. Handlers for one
// subscriber are invoked sequentially from a dedicated goroutine.
type Handler func(collection string)

type subscriber struct {
	mu      sync.Mutex
	pending map[string]struct{}
	signal  chan struct{}
	done    chan struct{}
	fn      Handler
}

// Bus is a process-wide invalidation broadcaster. The zero value is not
// usable; construct with New.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers fn and returns a cancel function. Cancel is safe to
// call multiple times; after it returns no further deliveries happen.
func (b *Bus) Subscribe(fn Handler) (cancel func()) {
	s := &subscriber{
		pending: make(map[string]struct{}),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		fn:      fn,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.done)
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.done)
		})
	}
}

// Publish broadcasts an invalidation for collection to every subscriber,
// including the caller's own. It never blocks.
func (b *Bus) Publish(collection string) {
	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		s.mu.Lock()
		s.pending[collection] = struct{}{}
		s.mu.Unlock()

		select {
		case s.signal <- struct{}{}:
		default:
		}
	}
}

// Close stops all subscriber workers. Further Subscribe calls return inert
// cancels and further Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		close(s.done)
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		s.mu.Lock()
		batch := make([]string, 0, len(s.pending))
		for c := range s.pending {
			batch = append(batch, c)
		}
		s.pending = make(map[string]struct{})
		s.mu.Unlock()

		// deterministic delivery order within a drained batch
		sort.Strings(batch)

		for _, c := range batch {
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(c)
		}
	}
}
