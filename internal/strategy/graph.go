package strategy

import (
	"sort"
	"strings"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/nodes"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// Edge connects an output handle of Source to Target.
type Edge struct {
	Source   types.NodeID
	HandleID string
	Target   types.NodeID
}

// Graph is the built strategy graph. Nodes keep the document order.
type Graph struct {
	nodes  []node.Node
	index  map[types.NodeID]int
	params map[types.NodeID]config.Params
	edges  []Edge
	wired  bool

	// ordered and orderErr are set once by Build and only read afterwards.
	ordered  []node.Node
	orderErr error
}

// Build validates the document's nodes and edges, then creates every node.
// Configuration errors are returned before any node exists.
func Build(cfg *config.StrategyConfig, deps nodes.Deps) (*Graph, error) {
	g := &Graph{
		nodes:    make([]node.Node, 0, len(cfg.Nodes)),
		index:    make(map[types.NodeID]int, len(cfg.Nodes)),
		params:   make(map[types.NodeID]config.Params, len(cfg.Nodes)),
		edges:    make([]Edge, 0, len(cfg.Edges)),
		wired:    false,
		ordered:  nil,
		orderErr: nil,
	}

	handles := make(map[types.NodeID]map[string]bool, len(cfg.Nodes))

	for i, nc := range cfg.Nodes {
		if _, ok := g.index[nc.ID]; ok {
			return nil, errors.Newf(errors.ErrCodeGraphDuplicateNode, "duplicate node id %s", nc.ID)
		}

		params, err := nc.DecodeParams()
		if err != nil {
			return nil, err
		}

		g.index[nc.ID] = i
		g.params[nc.ID] = params

		ids := map[string]bool{handle.DefaultHandleID(string(nc.ID)): true}
		for _, id := range params.Handles(nc.ID) {
			ids[id] = true
		}

		handles[nc.ID] = ids
	}

	seen := make(map[Edge]bool, len(cfg.Edges))

	for _, ec := range cfg.Edges {
		if _, ok := g.index[ec.Source]; !ok {
			return nil, errors.Newf(errors.ErrCodeGraphDanglingEdge, "edge %s -> %s: unknown source node", ec.Source, ec.Target)
		}

		if _, ok := g.index[ec.Target]; !ok {
			return nil, errors.Newf(errors.ErrCodeGraphDanglingEdge, "edge %s -> %s: unknown target node", ec.Source, ec.Target)
		}

		edge := Edge{Source: ec.Source, HandleID: ec.SourceHandle, Target: ec.Target}
		if edge.HandleID == "" {
			edge.HandleID = handle.DefaultHandleID(string(ec.Source))
		}

		if !handles[ec.Source][edge.HandleID] {
			return nil, errors.Newf(errors.ErrCodeGraphDanglingEdge,
				"edge %s -> %s: node %s has no output handle %s", ec.Source, ec.Target, ec.Source, edge.HandleID)
		}

		if seen[edge] {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
				"duplicate edge %s(%s) -> %s", edge.Source, edge.HandleID, edge.Target)
		}

		seen[edge] = true
		g.edges = append(g.edges, edge)
	}

	for _, nc := range cfg.Nodes {
		n, err := nodes.New(nc, deps)
		if err != nil {
			return nil, err
		}

		g.nodes = append(g.nodes, n)
	}

	g.ordered, g.orderErr = g.sort()

	return g, nil
}

// Nodes returns the nodes in document order.
func (g *Graph) Nodes() []node.Node {
	out := make([]node.Node, len(g.nodes))
	copy(out, g.nodes)

	return out
}

// Node returns the node with the given id.
func (g *Graph) Node(id types.NodeID) (node.Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}

	return g.nodes[i], true
}

// Params returns the decoded params of a node.
func (g *Graph) Params(id types.NodeID) (config.Params, bool) {
	p, ok := g.params[id]

	return p, ok
}

// Edges returns the validated edges in document order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)

	return out
}

// Upstream returns the ids of the nodes with an edge into id.
func (g *Graph) Upstream(id types.NodeID) []types.NodeID {
	var out []types.NodeID

	for _, e := range g.edges {
		if e.Target == id && !containsID(out, e.Source) {
			out = append(out, e.Source)
		}
	}

	return out
}

// Leaves returns the nodes without outgoing edges, in document order.
func (g *Graph) Leaves() []node.Node {
	hasOut := make(map[types.NodeID]bool, len(g.nodes))
	for _, e := range g.edges {
		hasOut[e.Source] = true
	}

	var out []node.Node

	for _, n := range g.nodes {
		if !hasOut[n.ID()] {
			out = append(out, n)
		}
	}

	return out
}

// TopologicalOrder orders the nodes so that every node comes after all of
// its upstreams. Ties are broken by document order. A cycle is an error
// naming the nodes on or behind it.
func (g *Graph) TopologicalOrder() ([]node.Node, error) {
	if g.orderErr != nil {
		return nil, g.orderErr
	}

	out := make([]node.Node, len(g.ordered))
	copy(out, g.ordered)

	return out, nil
}

func (g *Graph) sort() ([]node.Node, error) {
	indegree := make([]int, len(g.nodes))
	downstream := make([][]int, len(g.nodes))

	for _, e := range g.edges {
		from, to := g.index[e.Source], g.index[e.Target]
		downstream[from] = append(downstream[from], to)
		indegree[to]++
	}

	var ready []int

	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]node.Node, 0, len(g.nodes))

	for len(ready) > 0 {
		sort.Ints(ready)
		next := ready[0]
		ready = ready[1:]

		order = append(order, g.nodes[next])

		for _, to := range downstream[next] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(order) < len(g.nodes) {
		var stuck []string

		for i, d := range indegree {
			if d > 0 {
				stuck = append(stuck, string(g.nodes[i].ID()))
			}
		}

		return nil, errors.Newf(errors.ErrCodeGraphCycle, "graph has a cycle through nodes [%s]", strings.Join(stuck, ", "))
	}

	return order, nil
}

// Wire subscribes every edge target to its source handle and marks leaves.
// It must run before any node initializes; calling it again is a no-op.
func (g *Graph) Wire() error {
	if g.wired {
		return nil
	}

	for _, e := range g.edges {
		source, _ := g.Node(e.Source)
		target, _ := g.Node(e.Target)

		sub, err := source.Runtime().Handles().Subscribe(e.HandleID, string(e.Target))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeGraphDanglingEdge, err, "edge %s -> %s", e.Source, e.Target)
		}

		target.Runtime().AddInput(node.Input{FromNodeID: e.Source, HandleID: e.HandleID, Sub: sub})
	}

	for _, n := range g.Leaves() {
		n.Runtime().SetLeaf(true)
	}

	g.wired = true

	return nil
}

func containsID(ids []types.NodeID, id types.NodeID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}

	return false
}
