package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// Key is a strongly typed cache key.
type Key interface {
	comparable
	fmt.Stringer
}

// KlineStore caches kline series.
type KlineStore = Store[types.KlineKey, types.Kline]

// IndicatorStore caches indicator series.
type IndicatorStore = Store[types.IndicatorKey, types.IndicatorValue]

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// WithMaxSize bounds every entry of the store. The oldest points are evicted first.
func WithMaxSize(maxSize int) StoreOption {
	return func(o *storeOptions) {
		o.maxSize = maxSize
	}
}

// WithTTL sets the time to live of idle entries, see Store.Prune.
func WithTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		o.ttl = ttl
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		o.now = now
	}
}

// Store is a keyed set of ordered series, safe for concurrent use.
type Store[K Key, T Point] struct {
	entries map[K]*Entry[T]
	opts    storeOptions
	mu      sync.RWMutex
}

// NewStore creates an empty store.
func NewStore[K Key, T Point](opts ...StoreOption) *Store[K, T] {
	o := storeOptions{maxSize: 0, ttl: 0, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store[K, T]{
		entries: make(map[K]*Entry[T]),
		opts:    o,
		mu:      sync.RWMutex{},
	}
}

// NewKlineStore creates an empty kline store.
func NewKlineStore(opts ...StoreOption) *KlineStore {
	return NewStore[types.KlineKey, types.Kline](opts...)
}

// NewIndicatorStore creates an empty indicator store.
func NewIndicatorStore(opts ...StoreOption) *IndicatorStore {
	return NewStore[types.IndicatorKey, types.IndicatorValue](opts...)
}

// AddKey registers a key with an empty series. Existing keys are left untouched.
func (s *Store[K, T]) AddKey(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entryLocked(key)
}

// Init replaces the series stored under key.
func (s *Store[K, T]) Init(key K, points []T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entryLocked(key).Initialize(points, s.opts.now())
}

// Append merges points into the series stored under key, creating it if needed.
func (s *Store[K, T]) Append(key K, points []T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entryLocked(key).Append(points, s.opts.now())
}

// Update applies a single point to the series stored under key, creating it if needed.
func (s *Store[K, T]) Update(key K, point T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entryLocked(key).Update(point, s.opts.now())
}

// Slice returns part of the series stored under key. See Entry.Slice.
func (s *Store[K, T]) Slice(key K, idx optional.Option[int], limit optional.Option[int]) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, notFound(key)
	}

	return entry.Slice(idx, limit)
}

// SliceByTime slices up to limit points ending at the point stamped exactly t.
func (s *Store[K, T]) SliceByTime(key K, t time.Time, limit optional.Option[int]) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, notFound(key)
	}

	idx, found := entry.IndexOf(t)
	if !found {
		return nil, errors.Newf(errors.ErrCodeCacheTimeNotFound, "%s: no point at %s", key, t.UTC().Format(time.RFC3339))
	}

	return entry.Slice(optional.Some(idx), limit)
}

// SliceAtOrBefore slices up to limit points ending at the latest point
// stamped at or before t. Coarser series use it to follow a finer play clock.
func (s *Store[K, T]) SliceAtOrBefore(key K, t time.Time, limit optional.Option[int]) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, notFound(key)
	}

	idx, found := entry.IndexAtOrBefore(t)
	if !found {
		return nil, errors.Newf(errors.ErrCodeCacheTimeNotFound, "%s: no point at or before %s", key, t.UTC().Format(time.RFC3339))
	}

	return entry.Slice(optional.Some(idx), limit)
}

// Last returns the most recent point of the series.
func (s *Store[K, T]) Last(key K) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T

	entry, ok := s.entries[key]
	if !ok {
		return zero, notFound(key)
	}

	last, ok := entry.Last()
	if !ok {
		return zero, errors.Newf(errors.ErrCodeCacheIndexOutOfRange, "%s: series is empty", key)
	}

	return last, nil
}

// Len returns the length of the series stored under key.
func (s *Store[K, T]) Len(key K) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return 0, notFound(key)
	}

	return entry.Len(), nil
}

// Lengths returns the length of every series.
func (s *Store[K, T]) Lengths() map[K]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[K]int, len(s.entries))
	for k, e := range s.entries {
		out[k] = e.Len()
	}

	return out
}

// Has reports whether key is registered.
func (s *Store[K, T]) Has(key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[key]

	return ok
}

// Keys returns every registered key.
func (s *Store[K, T]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]K, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}

	return keys
}

// ClearWhere empties the series of every key for which match returns true. Keys stay registered.
func (s *Store[K, T]) ClearWhere(match func(K) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	for k, e := range s.entries {
		if match(k) {
			e.Clear(now)
		}
	}
}

// Remove drops the key and its series.
func (s *Store[K, T]) Remove(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// Prune removes every entry whose ttl elapsed and returns how many were removed.
func (s *Store[K, T]) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	removed := 0

	for k, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, k)
			removed++
		}
	}

	return removed
}

// Reset drops every key.
func (s *Store[K, T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[K]*Entry[T])
}

func (s *Store[K, T]) entryLocked(key K) *Entry[T] {
	entry, ok := s.entries[key]
	if !ok {
		entry = NewEntry[T](key.String(), s.opts.maxSize, s.opts.ttl, s.opts.now())
		s.entries[key] = entry
	}

	return entry
}

func notFound(key fmt.Stringer) error {
	return errors.Newf(errors.ErrCodeCacheKeyNotFound, "cache key not found: %s", key)
}
