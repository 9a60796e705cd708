// Package nodes implements the node kinds a strategy graph is built from.
//
// Every kind embeds node.Base for its lifecycle and binds itself as the
// Behavior. Kinds talk to the strategy only through protocol commands and to
// each other only through output handles.
package nodes

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/command"
	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/datasource"
	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/indicator"
	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/protocol"
	"github.com/rxtech-lab/argo-graph/internal/trading"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// Deps are the collaborators shared by every node of one strategy.
type Deps struct {
	StrategyID types.StrategyID
	Sender     *command.Sender
	PlayIndex  *node.PlayIndexWatch
	Signals    *handle.Broadcast[node.Event]

	Source     datasource.KlineSource
	Calculator indicator.Calculator
	Trading    trading.TradingSystem
	Variables  []types.CustomVariable
	// Now ends kline windows configured without an end time.
	Now func() time.Time

	HandleCapacity int
	StopGrace      time.Duration
	Logger         *logger.Logger
}

// New creates the node declared by cfg.
func New(cfg config.NodeConfig, deps Deps) (node.Node, error) {
	params, err := cfg.DecodeParams()
	if err != nil {
		return nil, err
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}

	switch p := params.(type) {
	case *config.StartParams:
		return NewStartNode(cfg, p, deps), nil
	case *config.KlineParams:
		return NewKlineNode(cfg, p, deps), nil
	case *config.IndicatorParams:
		return NewIndicatorNode(cfg, p, deps), nil
	case *config.IfElseParams:
		return NewIfElseNode(cfg, p, deps), nil
	case *config.VariableParams:
		return NewVariableNode(cfg, p, deps), nil
	case *config.FuturesOrderParams:
		return NewFuturesOrderNode(cfg, p, deps), nil
	case *config.PositionParams:
		return NewPositionNode(cfg, p, deps), nil
	case *config.OutputParams:
		return NewOutputNode(cfg, deps), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedNodeType, "node %s: unsupported node type %s", cfg.ID, cfg.Type)
	}
}

// listeners every node kind starts while initializing.
var listeners = []node.ActionKind{
	node.ActionListenAndHandleStrategyCommand,
	node.ActionListenAndHandleNodeEvents,
}

func newBase(cfg config.NodeConfig, kind node.Kind, lc node.Lifecycle, params config.Params, deps Deps) *node.Base {
	base := node.NewBase(node.Config{
		StrategyID:     deps.StrategyID,
		ID:             cfg.ID,
		Name:           cfg.DisplayName(),
		Kind:           kind,
		Table:          node.NewTable(kind, lc),
		Sender:         deps.Sender,
		PlayIndex:      deps.PlayIndex,
		Signals:        deps.Signals,
		HandleCapacity: deps.HandleCapacity,
		StopGrace:      deps.StopGrace,
		Logger:         deps.Logger,
	})

	if params != nil {
		for _, id := range params.Handles(cfg.ID) {
			base.Handles().Add(id)
		}
	}

	return base
}

func unsupportedAction(b *node.Base, action node.Action) error {
	return errors.Newf(errors.ErrCodeInternal, "node %s (%s) does not handle action %s", b.ID(), b.Kind(), action.Kind)
}

// emit publishes one event answering playIndex.
func emit(b *node.Base, handleID string, kind node.EventKind, configID, playIndex int, payload any) error {
	event := b.NewEvent(kind, handleID, payload)
	event.ConfigID = configID
	event.PlayIndex = playIndex

	return b.Emit(handleID, event)
}

// emitItem publishes on the item's own handle and on the default handle.
func emitItem(b *node.Base, configID int, kind node.EventKind, playIndex int, payload any) error {
	if err := emit(b, handle.ConfigHandleID(string(b.ID()), configID), kind, configID, playIndex, payload); err != nil {
		return err
	}

	return emit(b, handle.DefaultHandleID(string(b.ID())), kind, configID, playIndex, payload)
}

// skipCycle forwards a false branch on every output handle so that
// downstream nodes still close the cycle, then finishes it.
func skipCycle(b *node.Base, kind node.EventKind, playIndex int) {
	if !kind.IsFalseBranch() {
		kind = node.EventCaseFalse
	}

	strategyHandle := handle.StrategyHandleID(string(b.ID()))

	for _, id := range b.Handles().IDs() {
		if id == strategyHandle {
			continue
		}

		if err := emit(b, id, kind, 0, playIndex, nil); err != nil {
			b.Logger().Warn("failed to forward false branch", zap.String("handle", id), zap.Error(err))
		}
	}

	b.FinishCycle(playIndex)
}

// skipItems forwards a false branch on the handle of every failed item so
// that downstream nodes still close the cycle. The default handle gets one
// too when no item was published on it.
func skipItems(b *node.Base, failed []int, published int, playIndex int) {
	for _, configID := range failed {
		id := handle.ConfigHandleID(string(b.ID()), configID)
		if err := emit(b, id, node.EventCaseFalse, configID, playIndex, nil); err != nil {
			b.Logger().Warn("failed to forward false branch", zap.String("handle", id), zap.Error(err))
		}
	}

	if published > 0 || len(failed) == 0 {
		return
	}

	id := handle.DefaultHandleID(string(b.ID()))
	if err := emit(b, id, node.EventCaseFalse, 0, playIndex, nil); err != nil {
		b.Logger().Warn("failed to forward false branch", zap.String("handle", id), zap.Error(err))
	}
}

// finishCycle reports how long the node spent on playIndex, then tells the
// strategy a leaf is done with it.
func finishCycle(ctx context.Context, b *node.Base, playIndex int, started time.Time) {
	if b.Sender() != nil {
		err := protocol.AddNodeCycleTracker(ctx, b.Sender(), protocol.CycleTracker{
			NodeID:    b.ID(),
			PlayIndex: playIndex,
			Phase:     string(b.Kind()),
			Duration:  time.Since(started),
		})
		if err != nil {
			b.Logger().Debug("cycle tracker not recorded", zap.Int("play_index", playIndex), zap.Error(err))
		}
	}

	b.FinishCycle(playIndex)
}

type inputKey struct {
	nodeID   types.NodeID
	handleID string
}

// gate closes a cycle once every upstream input delivered an event for the
// current play index. The cycle fires if any of them was not a false branch.
type gate struct {
	expected map[inputKey]bool
	arrived  map[inputKey]bool
	current  int
	fired    bool
	done     bool
}

func newGate(inputs []node.Input) *gate {
	expected := make(map[inputKey]bool, len(inputs))
	for _, in := range inputs {
		expected[inputKey{nodeID: in.FromNodeID, handleID: in.HandleID}] = true
	}

	return &gate{
		expected: expected,
		arrived:  make(map[inputKey]bool, len(expected)),
		current:  -1,
		fired:    false,
		done:     false,
	}
}

// offer records e and reports whether it completed the cycle and whether the
// cycle fired. Events for older play indices are dropped.
func (g *gate) offer(e node.Event) (complete bool, fired bool) {
	if e.PlayIndex < g.current {
		return false, false
	}

	if e.PlayIndex > g.current {
		g.current = e.PlayIndex
		g.arrived = make(map[inputKey]bool, len(g.expected))
		g.fired = false
		g.done = false
	}

	if g.done {
		return false, false
	}

	key := inputKey{nodeID: e.NodeID, handleID: e.HandleID}
	if !g.expected[key] {
		return false, false
	}

	g.arrived[key] = true

	if !e.Kind.IsFalseBranch() {
		g.fired = true
	}

	if len(g.arrived) < len(g.expected) {
		return false, false
	}

	g.done = true

	return true, g.fired
}

func (g *gate) reset() {
	g.current = -1
	g.arrived = make(map[inputKey]bool, len(g.expected))
	g.fired = false
	g.done = false
}
