package nodes

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/node"
)

// IfElseNode waits for every value its conditions read, then evaluates the
// cases in order. The first true case and only that one gets CaseTrue; the
// else branch is true when no case matched.
type IfElseNode struct {
	*node.Base
	params config.IfElseParams
	wanted map[config.Ref]bool

	current  int
	received map[config.Ref]float64
	done     bool
}

func NewIfElseNode(cfg config.NodeConfig, params *config.IfElseParams, deps Deps) *IfElseNode {
	lc := node.Lifecycle{
		OnStartInit: append(append([]node.ActionKind{}, listeners...), node.ActionInitReceivedData),
		LoadBearing: nil,
	}

	wanted := make(map[config.Ref]bool)
	for _, ref := range params.Inputs() {
		wanted[ref] = true
	}

	n := &IfElseNode{
		Base:     newBase(cfg, node.KindIfElse, lc, params, deps),
		params:   *params,
		wanted:   wanted,
		current:  -1,
		received: make(map[config.Ref]float64),
		done:     false,
	}
	n.Bind(n)

	return n
}

func (n *IfElseNode) Setup(context.Context) error { return nil }

func (n *IfElseNode) ExecuteAction(_ context.Context, action node.Action) error {
	switch action.Kind {
	case node.ActionInitReceivedData:
		n.resetReceived(-1)

		return nil
	default:
		return unsupportedAction(n.Base, action)
	}
}

func (n *IfElseNode) Reset(context.Context) error {
	n.resetReceived(-1)

	return nil
}

func (n *IfElseNode) resetReceived(playIndex int) {
	n.current = playIndex
	n.received = make(map[config.Ref]float64, len(n.wanted))
	n.done = false
}

func (n *IfElseNode) HandleEvent(ctx context.Context, event node.Event) error {
	if event.PlayIndex < n.current {
		return nil
	}

	if event.PlayIndex > n.current {
		n.resetReceived(event.PlayIndex)
	}

	if n.done {
		return nil
	}

	if event.Kind.IsFalseBranch() {
		n.done = true
		n.emitAllFalse(event.PlayIndex)

		return nil
	}

	value, ok := event.Value()
	ref := config.Ref{NodeID: event.NodeID, ConfigID: event.ConfigID}

	if !ok || !n.wanted[ref] {
		return nil
	}

	n.received[ref] = value

	if len(n.received) < len(n.wanted) {
		return nil
	}

	n.done = true
	started := time.Now()

	if err := n.evaluate(event.PlayIndex); err != nil {
		return err
	}

	finishCycle(ctx, n.Base, event.PlayIndex, started)

	return nil
}

func (n *IfElseNode) HandlePlayIndex(context.Context, int) error { return nil }

func (n *IfElseNode) evaluate(playIndex int) error {
	matched := 0

	for _, c := range n.params.Cases {
		kind := node.EventCaseFalse
		if matched == 0 && n.caseHolds(c) {
			matched = c.CaseID
			kind = node.EventCaseTrue
		}

		if err := n.emitCase(c.CaseID, kind, playIndex); err != nil {
			return err
		}
	}

	elseKind := node.EventElseFalse
	if matched == 0 {
		elseKind = node.EventElseTrue
	}

	n.Logger().Debug("cases evaluated", zap.Int("play_index", playIndex), zap.Int("matched_case", matched))

	return emit(n.Base, handle.ElseHandleID(string(n.ID())), elseKind, 0, playIndex, node.CasePayload{CaseID: 0})
}

func (n *IfElseNode) emitCase(caseID int, kind node.EventKind, playIndex int) error {
	return emit(n.Base, handle.ConfigHandleID(string(n.ID()), caseID), kind, caseID, playIndex, node.CasePayload{CaseID: caseID})
}

func (n *IfElseNode) emitAllFalse(playIndex int) {
	for _, c := range n.params.Cases {
		if err := n.emitCase(c.CaseID, node.EventCaseFalse, playIndex); err != nil {
			n.Logger().Warn("failed to forward false branch", zap.Int("case_id", c.CaseID), zap.Error(err))
		}
	}

	if err := emit(n.Base, handle.ElseHandleID(string(n.ID())), node.EventElseFalse, 0, playIndex, nil); err != nil {
		n.Logger().Warn("failed to forward false branch", zap.Error(err))
	}

	n.FinishCycle(playIndex)
}

func (n *IfElseNode) caseHolds(c config.CaseConfig) bool {
	for _, cond := range c.Conditions {
		holds := n.conditionHolds(cond)

		if c.Logical == config.LogicalOr && holds {
			return true
		}

		if c.Logical != config.LogicalOr && !holds {
			return false
		}
	}

	return c.Logical != config.LogicalOr
}

// conditionHolds compares the operands. Any NaN operand, such as an indicator
// still inside its lookback, makes the condition false.
func (n *IfElseNode) conditionHolds(cond config.ConditionConfig) bool {
	left := n.operand(cond.Left)
	right := n.operand(cond.Right)

	if math.IsNaN(left) || math.IsNaN(right) {
		return false
	}

	return cond.Op.Compare(left, right)
}

func (n *IfElseNode) operand(o config.Operand) float64 {
	if o.Type == config.OperandConstant {
		return o.Value
	}

	v, ok := n.received[o.Ref()]
	if !ok {
		return math.NaN()
	}

	return v
}
