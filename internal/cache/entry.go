package cache

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// Point is a time-stamped sample stored in a cache entry.
type Point interface {
	Timestamp() time.Time
}

// Entry holds one ordered series. Data is always sorted ascending by timestamp
// and never contains two points with the same timestamp.
// Entry is not safe for concurrent use; Store guards it.
type Entry[T Point] struct {
	key       string
	data      []T
	createdAt time.Time
	updatedAt time.Time
	// maxSize bounds the series length, 0 means unbounded.
	maxSize int
	// ttl of zero never expires.
	ttl time.Duration
}

// NewEntry creates an empty entry.
func NewEntry[T Point](key string, maxSize int, ttl time.Duration, now time.Time) *Entry[T] {
	return &Entry[T]{
		key:       key,
		data:      make([]T, 0),
		createdAt: now,
		updatedAt: now,
		maxSize:   maxSize,
		ttl:       ttl,
	}
}

// Initialize replaces the series with points, normalized.
func (e *Entry[T]) Initialize(points []T, now time.Time) {
	e.data = normalize(append([]T(nil), points...))
	e.evict()
	e.updatedAt = now
}

// Append merges points into the series. Points with a timestamp already
// present replace the stored value, and among the new points the last one
// for a timestamp wins.
func (e *Entry[T]) Append(points []T, now time.Time) {
	if len(points) == 0 {
		return
	}

	// Fast path: strictly ascending points that all come after the last stored point.
	if e.appendable(points) {
		e.data = append(e.data, points...)
	} else {
		merged := make([]T, 0, len(e.data)+len(points))
		merged = append(merged, e.data...)
		merged = append(merged, points...)
		e.data = normalize(merged)
	}

	e.evict()
	e.updatedAt = now
}

// Update applies a single live-bar update: a point with the same timestamp as
// the last stored point replaces it, anything else is appended.
func (e *Entry[T]) Update(point T, now time.Time) {
	n := len(e.data)

	switch {
	case n > 0 && e.data[n-1].Timestamp().Equal(point.Timestamp()):
		e.data[n-1] = point
	case n == 0 || point.Timestamp().After(e.data[n-1].Timestamp()):
		e.data = append(e.data, point)
		e.evict()
	default:
		// Older than the last bar: merge so the ordering still holds.
		e.data = normalize(append(e.data, point))
		e.evict()
	}

	e.updatedAt = now
}

// Slice returns a copy of part of the series.
//
//   - idx and limit: up to limit points ending at and including idx
//   - idx only: every point from the start through idx
//   - limit only: the last limit points
//   - neither: the whole series
//
// An idx outside [0, len) is an error, also on an empty series.
func (e *Entry[T]) Slice(idx optional.Option[int], limit optional.Option[int]) ([]T, error) {
	n := len(e.data)

	if limit.IsSome() && limit.Unwrap() < 0 {
		return nil, errors.Newf(errors.ErrCodeCacheInvalidLimit, "%s: limit must not be negative, got %d", e.key, limit.Unwrap())
	}

	start, end := 0, n

	if idx.IsSome() {
		i := idx.Unwrap()
		if i < 0 || i >= n {
			return nil, errors.Newf(errors.ErrCodeCacheIndexOutOfRange, "%s: index %d out of range for length %d", e.key, i, n)
		}

		end = i + 1
	}

	if limit.IsSome() {
		if l := limit.Unwrap(); l < end {
			start = end - l
		}
	}

	out := make([]T, end-start)
	copy(out, e.data[start:end])

	return out, nil
}

// IndexOf returns the index of the point stamped exactly t.
func (e *Entry[T]) IndexOf(t time.Time) (int, bool) {
	i := sort.Search(len(e.data), func(i int) bool {
		return !e.data[i].Timestamp().Before(t)
	})

	if i < len(e.data) && e.data[i].Timestamp().Equal(t) {
		return i, true
	}

	return -1, false
}

// IndexAtOrBefore returns the index of the latest point stamped at or before t.
func (e *Entry[T]) IndexAtOrBefore(t time.Time) (int, bool) {
	i := sort.Search(len(e.data), func(i int) bool {
		return e.data[i].Timestamp().After(t)
	})

	return i - 1, i > 0
}

// Last returns the most recent point.
func (e *Entry[T]) Last() (T, bool) {
	if len(e.data) == 0 {
		var zero T

		return zero, false
	}

	return e.data[len(e.data)-1], true
}

// Len returns the number of points.
func (e *Entry[T]) Len() int {
	return len(e.data)
}

// Clear drops all points but keeps the entry.
func (e *Entry[T]) Clear(now time.Time) {
	e.data = make([]T, 0)
	e.updatedAt = now
}

// Expired reports whether the entry has outlived its ttl.
func (e *Entry[T]) Expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.updatedAt) > e.ttl
}

// CreatedAt returns when the entry was created.
func (e *Entry[T]) CreatedAt() time.Time {
	return e.createdAt
}

// UpdatedAt returns when the entry was last written.
func (e *Entry[T]) UpdatedAt() time.Time {
	return e.updatedAt
}

// MaxSize returns the configured bound, 0 when unbounded.
func (e *Entry[T]) MaxSize() int {
	return e.maxSize
}

func (e *Entry[T]) appendable(points []T) bool {
	var prev time.Time
	if n := len(e.data); n > 0 {
		prev = e.data[n-1].Timestamp()
	} else {
		prev = points[0].Timestamp().Add(-time.Nanosecond)
	}

	for _, p := range points {
		if !p.Timestamp().After(prev) {
			return false
		}

		prev = p.Timestamp()
	}

	return true
}

func (e *Entry[T]) evict() {
	if e.maxSize > 0 && len(e.data) > e.maxSize {
		e.data = append([]T(nil), e.data[len(e.data)-e.maxSize:]...)
	}
}

// normalize sorts ascending by timestamp and drops duplicate timestamps,
// keeping the point that appeared last in the input.
func normalize[T Point](points []T) []T {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp().Before(points[j].Timestamp())
	})

	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Timestamp().Equal(p.Timestamp()) {
			out[n-1] = p

			continue
		}

		out = append(out, p)
	}

	return out
}
