package nodes

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/node"
)

// Firing is one cycle an output node closed.
type Firing struct {
	PlayIndex int
	Fired     bool
	// Events are the non false-branch events that reached the node.
	Events []node.Event
}

// OutputNode is a terminal sink. It records which cycles reached it through a
// true branch.
type OutputNode struct {
	*node.Base
	gate *gate

	mu      sync.RWMutex
	pending []node.Event
	firings []Firing
}

func NewOutputNode(cfg config.NodeConfig, deps Deps) *OutputNode {
	lc := node.Lifecycle{
		OnStartInit: append([]node.ActionKind{}, listeners...),
		LoadBearing: nil,
	}

	n := &OutputNode{
		Base:    newBase(cfg, node.KindOutput, lc, nil, deps),
		gate:    newGate(nil),
		mu:      sync.RWMutex{},
		pending: nil,
		firings: nil,
	}
	n.Bind(n)

	return n
}

func (n *OutputNode) Setup(context.Context) error {
	n.gate = newGate(n.Inputs())

	return nil
}

func (n *OutputNode) ExecuteAction(_ context.Context, action node.Action) error {
	return unsupportedAction(n.Base, action)
}

func (n *OutputNode) Reset(context.Context) error {
	n.gate.reset()

	n.mu.Lock()
	n.pending = nil
	n.firings = nil
	n.mu.Unlock()

	return nil
}

func (n *OutputNode) HandlePlayIndex(context.Context, int) error { return nil }

func (n *OutputNode) HandleEvent(ctx context.Context, event node.Event) error {
	started := time.Now()

	n.mu.Lock()
	if len(n.pending) > 0 && n.pending[0].PlayIndex != event.PlayIndex {
		n.pending = nil
	}

	if !event.Kind.IsFalseBranch() {
		n.pending = append(n.pending, event)
	}
	n.mu.Unlock()

	complete, fired := n.gate.offer(event)
	if !complete {
		return nil
	}

	n.mu.Lock()
	n.firings = append(n.firings, Firing{PlayIndex: event.PlayIndex, Fired: fired, Events: n.pending})
	n.pending = nil
	n.mu.Unlock()

	finishCycle(ctx, n.Base, event.PlayIndex, started)

	return nil
}

// Firings returns every closed cycle in play order.
func (n *OutputNode) Firings() []Firing {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Firing, len(n.firings))
	copy(out, n.firings)

	return out
}

// FiredCount returns how many cycles reached the node through a true branch.
func (n *OutputNode) FiredCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	count := 0

	for _, f := range n.firings {
		if f.Fired {
			count++
		}
	}

	return count
}
