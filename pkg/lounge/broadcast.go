package lounge

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSubscriptionClosed is returned by Recv after the subscription or its
// broadcaster has been closed and every buffered event has been read.
var ErrSubscriptionClosed = errors.New("lounge: subscription closed")

// LaggedError is returned by Recv when the subscriber fell behind and the
// oldest Missed events were dropped. The next Recv continues with the oldest
// event still buffered.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("lounge: subscriber lagged, missed %d events", e.Missed)
}

// broadcaster fans events out to subscribers. Publish never blocks: each
// subscriber has a bounded queue that drops its oldest entry on overflow.
type broadcaster struct {
	capacity int
	metrics  *Metrics

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newBroadcaster(capacity int, metrics *Metrics) *broadcaster {
	if capacity < 1 {
		capacity = 1
	}
	return &broadcaster{
		capacity: capacity,
		metrics:  metrics,
		subs:     make(map[*Subscription]struct{}),
	}
}

func (b *broadcaster) subscribe() *Subscription {
	s := &Subscription{
		b:      b,
		notify: make(chan struct{}, 1),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if s.push(e, b.capacity) {
			b.metrics.subscriberLag()
		}
	}
}

func (b *broadcaster) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

func (b *broadcaster) close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for s := range subs {
		s.markClosed()
	}
}

// Subscription receives events published after it was created.
type Subscription struct {
	b      *broadcaster
	notify chan struct{}

	mu     sync.Mutex
	queue  []Event
	missed uint64
	closed bool
}

// push enqueues e, dropping the oldest entry when full. It reports whether an
// entry was dropped.
func (s *Subscription) push(e Event, capacity int) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	dropped := false
	if len(s.queue) >= capacity {
		copy(s.queue, s.queue[1:])
		s.queue[len(s.queue)-1] = nil
		s.queue = s.queue[:len(s.queue)-1]
		s.missed++
		dropped = true
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	s.wake()
	return dropped
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

// Recv blocks until an event is available, the subscription lagged, the
// subscription closed or ctx is done.
func (s *Subscription) Recv(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if s.missed > 0 {
			n := s.missed
			s.missed = 0
			s.mu.Unlock()
			return nil, &LaggedError{Missed: n}
		}
		if len(s.queue) > 0 {
			e := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return e, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, ErrSubscriptionClosed
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close detaches the subscription. Buffered events can still be read.
func (s *Subscription) Close() {
	s.b.remove(s)
	s.markClosed()
}
