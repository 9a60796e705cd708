package handle

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// ErrNoListeners is returned by Output.Send when nobody subscribed.
var ErrNoListeners = errors.New(errors.ErrCodeNoListeners, "output handle has no listeners")

// Output is a named broadcast handle with a connection ledger.
type Output[E any] struct {
	id           string
	broadcast    *Broadcast[E]
	connectCount atomic.Int32
}

// NewOutput creates an output handle.
func NewOutput[E any](id string, capacity int) *Output[E] {
	//nolint:exhaustruct // connectCount starts at zero
	return &Output[E]{
		id:        id,
		broadcast: NewBroadcast[E](capacity),
	}
}

// ID returns the handle id.
func (o *Output[E]) ID() string {
	return o.id
}

// ConnectCount returns how many times a downstream subscribed.
func (o *Output[E]) ConnectCount() int {
	return int(o.connectCount.Load())
}

// Subscribe attaches a downstream consumer and bumps the connect count.
func (o *Output[E]) Subscribe(subscriberID string) *Subscription[E] {
	o.connectCount.Add(1)

	return o.broadcast.Subscribe(subscriberID)
}

// Send publishes e. It skips the work and returns ErrNoListeners when the
// handle was never subscribed.
func (o *Output[E]) Send(e E) error {
	if o.ConnectCount() == 0 {
		return ErrNoListeners
	}

	o.broadcast.Send(e)

	return nil
}

// Close closes the underlying broadcast.
func (o *Output[E]) Close() {
	o.broadcast.Close()
}

// DefaultHandleID returns the id of a node's default output handle.
func DefaultHandleID(owner string) string {
	return owner + "_default_output"
}

// StrategyHandleID returns the id of the handle the strategy listens on.
func StrategyHandleID(owner string) string {
	return owner + "_strategy_output"
}

// ConfigHandleID returns the id of the handle publishing one configured item
// of a node, such as a symbol, an indicator or an if-else case.
func ConfigHandleID(owner string, configID int) string {
	return owner + "_output_" + strconv.Itoa(configID)
}

// ElseHandleID returns the id of an if-else node's else branch.
func ElseHandleID(owner string) string {
	return owner + "_else_output"
}

// Registry is the set of output handles owned by one node.
type Registry[E any] struct {
	owner    string
	capacity int

	mu      sync.RWMutex
	outputs map[string]*Output[E]
	order   []string
}

// NewRegistry creates a registry holding the owner's default and strategy handles.
func NewRegistry[E any](owner string, capacity int) *Registry[E] {
	r := &Registry[E]{
		owner:    owner,
		capacity: capacity,
		mu:       sync.RWMutex{},
		outputs:  make(map[string]*Output[E]),
		order:    nil,
	}

	r.Add(DefaultHandleID(owner))
	r.Add(StrategyHandleID(owner))

	return r
}

// Add registers a handle. Adding an existing id returns the existing handle.
func (r *Registry[E]) Add(id string) *Output[E] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if out, ok := r.outputs[id]; ok {
		return out
	}

	out := NewOutput[E](id, r.capacity)
	r.outputs[id] = out
	r.order = append(r.order, id)

	return out
}

// Get returns the handle with the given id.
func (r *Registry[E]) Get(id string) (*Output[E], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out, ok := r.outputs[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeHandleNotFound, "node %s has no output handle %s", r.owner, id)
	}

	return out, nil
}

// Has reports whether id is registered.
func (r *Registry[E]) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.outputs[id]

	return ok
}

// IDs returns handle ids in registration order.
func (r *Registry[E]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)

	return ids
}

// Subscribe attaches subscriberID to the handle with the given id.
func (r *Registry[E]) Subscribe(handleID, subscriberID string) (*Subscription[E], error) {
	out, err := r.Get(handleID)
	if err != nil {
		return nil, err
	}

	return out.Subscribe(subscriberID), nil
}

// Default returns the owner's default output handle.
func (r *Registry[E]) Default() *Output[E] {
	out, _ := r.Get(DefaultHandleID(r.owner))

	return out
}

// Strategy returns the handle the strategy subscribes to.
func (r *Registry[E]) Strategy() *Output[E] {
	out, _ := r.Get(StrategyHandleID(r.owner))

	return out
}

// SendAll publishes e on every handle that has listeners, except the strategy
// handle, and returns how many handles carried it.
func (r *Registry[E]) SendAll(e E) int {
	strategyID := StrategyHandleID(r.owner)
	sent := 0

	for _, id := range r.IDs() {
		if id == strategyID {
			continue
		}

		out, err := r.Get(id)
		if err != nil {
			continue
		}

		if out.Send(e) == nil {
			sent++
		}
	}

	return sent
}

// CloseAll closes every handle.
func (r *Registry[E]) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, out := range r.outputs {
		out.Close()
	}
}
