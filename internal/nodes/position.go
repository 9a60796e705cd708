package nodes

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/trading"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// PositionNode publishes the open position of each configured symbol when its
// branch fires.
type PositionNode struct {
	*node.Base
	params  config.PositionParams
	trading trading.TradingSystem
	gate    *gate
}

func NewPositionNode(cfg config.NodeConfig, params *config.PositionParams, deps Deps) *PositionNode {
	lc := node.Lifecycle{
		OnStartInit: append([]node.ActionKind{}, listeners...),
		LoadBearing: nil,
	}

	n := &PositionNode{
		Base:    newBase(cfg, node.KindPosition, lc, params, deps),
		params:  *params,
		trading: deps.Trading,
		gate:    newGate(nil),
	}
	n.Bind(n)

	return n
}

func (n *PositionNode) Setup(context.Context) error {
	if n.trading == nil {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "node %s: no trading system", n.ID())
	}

	n.gate = newGate(n.Inputs())

	return nil
}

func (n *PositionNode) ExecuteAction(_ context.Context, action node.Action) error {
	return unsupportedAction(n.Base, action)
}

func (n *PositionNode) Reset(context.Context) error {
	n.gate.reset()

	return nil
}

func (n *PositionNode) HandlePlayIndex(context.Context, int) error { return nil }

func (n *PositionNode) HandleEvent(ctx context.Context, event node.Event) error {
	complete, fired := n.gate.offer(event)
	if !complete {
		return nil
	}

	if !fired {
		skipCycle(n.Base, event.Kind, event.PlayIndex)

		return nil
	}

	started := time.Now()

	for _, item := range n.params.Items {
		position, found := n.trading.Position(item.Symbol)

		payload := node.PositionPayload{Position: position, Found: found}
		if err := emitItem(n.Base, item.ConfigID, node.EventPositionUpdated, event.PlayIndex, payload); err != nil {
			return err
		}
	}

	finishCycle(ctx, n.Base, event.PlayIndex, started)

	return nil
}
