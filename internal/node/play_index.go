package node

import (
	"context"
	"sync"
)

// PlayIndexWatch broadcasts the current play index. Watchers observe the
// latest value; intermediate values set between two reads are coalesced.
type PlayIndexWatch struct {
	mu      sync.RWMutex
	value   int
	version uint64
	changed chan struct{}
}

// NewPlayIndexWatch starts at -1, meaning "not started".
func NewPlayIndexWatch() *PlayIndexWatch {
	return &PlayIndexWatch{
		mu:      sync.RWMutex{},
		value:   -1,
		version: 0,
		changed: make(chan struct{}),
	}
}

// Set publishes a new play index.
func (w *PlayIndexWatch) Set(idx int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.value = idx
	w.version++
	close(w.changed)
	w.changed = make(chan struct{})
}

// Get returns the current play index.
func (w *PlayIndexWatch) Get() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.value
}

// Watch returns a receiver that reports changes made after this call.
func (w *PlayIndexWatch) Watch() *PlayIndexReceiver {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return &PlayIndexReceiver{watch: w, seen: w.version}
}

// PlayIndexReceiver is one watcher of a PlayIndexWatch.
type PlayIndexReceiver struct {
	watch *PlayIndexWatch
	seen  uint64
}

// Changed waits for a value newer than the last one observed.
func (r *PlayIndexReceiver) Changed(ctx context.Context) (int, error) {
	for {
		r.watch.mu.RLock()
		if r.watch.version != r.seen {
			r.seen = r.watch.version
			value := r.watch.value
			r.watch.mu.RUnlock()

			return value, nil
		}

		ch := r.watch.changed
		r.watch.mu.RUnlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ch:
		}
	}
}
