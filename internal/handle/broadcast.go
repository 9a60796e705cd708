// Package handle implements the named output handles nodes publish events on.
//
// A Broadcast fans every sent event out to all current subscribers. Each
// subscriber owns a bounded ring; a subscriber that falls behind loses its
// oldest events and is told how many it missed on its next receive.
package handle

import (
	"context"
	"fmt"
	"sync"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// DefaultCapacity is the per-subscriber buffer used when none is given.
const DefaultCapacity = 100

// ErrClosed is returned by Recv once the broadcast is closed and drained.
var ErrClosed = errors.New(errors.ErrCodeChannelClosed, "broadcast channel closed")

// LaggedError reports events a subscriber missed because its buffer overflowed.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("[%s] subscriber lagged, missed %d events", errors.ErrCodeLagged, e.Missed)
}

// ErrorCode returns ErrCodeLagged.
func (e *LaggedError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodeLagged
}

// IsLagged reports whether err is a LaggedError.
func IsLagged(err error) bool {
	var lagged *LaggedError

	return errors.As(err, &lagged)
}

// IsClosed reports whether err signals a closed channel.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// Broadcast is a fixed-capacity one-to-many channel.
type Broadcast[E any] struct {
	mu       sync.Mutex
	capacity int
	subs     []*Subscription[E]
	closed   bool
}

// NewBroadcast creates a Broadcast whose subscribers buffer up to capacity events.
func NewBroadcast[E any](capacity int) *Broadcast[E] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Broadcast[E]{
		mu:       sync.Mutex{},
		capacity: capacity,
		subs:     nil,
		closed:   false,
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed broadcast
// returns a subscription that reports ErrClosed immediately.
func (b *Broadcast[E]) Subscribe(subscriberID string) *Subscription[E] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription[E]{
		id:     subscriberID,
		parent: b,
		mu:     sync.Mutex{},
		buf:    make([]E, b.capacity),
		head:   0,
		size:   0,
		lagged: 0,
		closed: b.closed,
		notify: make(chan struct{}, 1),
	}

	if !b.closed {
		b.subs = append(b.subs, sub)
	}

	return sub
}

// Send delivers e to every subscriber without blocking and returns how many
// subscribers received it.
func (b *Broadcast[E]) Send(e E) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}

	for _, sub := range b.subs {
		sub.push(e)
	}

	return len(b.subs)
}

// SubscriberCount returns the number of live subscribers.
func (b *Broadcast[E]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// Close marks the broadcast closed. Subscribers drain what they already hold
// and then receive ErrClosed. Close is idempotent.
func (b *Broadcast[E]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subs {
		sub.close()
	}

	b.subs = nil
}

func (b *Broadcast[E]) remove(target *Subscription[E]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == target {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)

			return
		}
	}
}

// Subscription is one subscriber's view of a Broadcast.
type Subscription[E any] struct {
	id     string
	parent *Broadcast[E]

	mu     sync.Mutex
	buf    []E
	head   int
	size   int
	lagged uint64
	closed bool
	notify chan struct{}
}

// ID returns the subscriber id given at subscribe time.
func (s *Subscription[E]) ID() string {
	return s.id
}

func (s *Subscription[E]) push(e E) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return
	}

	if s.size == len(s.buf) {
		s.head = (s.head + 1) % len(s.buf)
		s.size--
		s.lagged++
	}

	s.buf[(s.head+s.size)%len(s.buf)] = e
	s.size++
	s.mu.Unlock()

	s.wake()
}

func (s *Subscription[E]) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wake()
}

func (s *Subscription[E]) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv waits for the next event. It returns a *LaggedError once after any
// overflow, ErrClosed after the broadcast closed and the buffer drained, and
// ctx.Err() when ctx ends. Cancellation is checked first.
func (s *Subscription[E]) Recv(ctx context.Context) (E, error) {
	var zero E

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		s.mu.Lock()

		if s.lagged > 0 {
			missed := s.lagged
			s.lagged = 0
			s.mu.Unlock()

			return zero, &LaggedError{Missed: missed}
		}

		if s.size > 0 {
			e := s.buf[s.head]
			s.buf[s.head] = zero
			s.head = (s.head + 1) % len(s.buf)
			s.size--
			s.mu.Unlock()

			return e, nil
		}

		if s.closed {
			s.mu.Unlock()

			return zero, ErrClosed
		}

		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-s.notify:
		}
	}
}

// TryRecv returns the next buffered event without waiting.
func (s *Subscription[E]) TryRecv() (E, bool) {
	var zero E

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == 0 {
		return zero, false
	}

	e := s.buf[s.head]
	s.buf[s.head] = zero
	s.head = (s.head + 1) % len(s.buf)
	s.size--

	return e, true
}

// Len returns the number of buffered events.
func (s *Subscription[E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.size
}

// Unsubscribe detaches the subscriber. Later receives report ErrClosed.
func (s *Subscription[E]) Unsubscribe() {
	s.parent.remove(s)
	s.close()
}
