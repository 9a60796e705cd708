package nodes

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/protocol"
	"github.com/rxtech-lab/argo-graph/internal/trading"
	"github.com/rxtech-lab/argo-graph/internal/types"
)

// StartNode drives the graph: it turns every play index into a Trigger on its
// default handle. It also prepares the virtual account and custom variables.
type StartNode struct {
	*node.Base
	params    config.StartParams
	trading   trading.TradingSystem
	variables []types.CustomVariable
}

func NewStartNode(cfg config.NodeConfig, params *config.StartParams, deps Deps) *StartNode {
	lc := node.Lifecycle{
		OnStartInit: []node.ActionKind{
			node.ActionListenAndHandleStrategyCommand,
			node.ActionListenAndHandlePlayIndex,
			node.ActionInitVirtualTradingSystem,
			node.ActionInitCustomVariables,
		},
		LoadBearing: []node.ActionKind{
			node.ActionInitVirtualTradingSystem,
			node.ActionInitCustomVariables,
		},
	}

	n := &StartNode{
		Base:      newBase(cfg, node.KindStart, lc, params, deps),
		params:    *params,
		trading:   deps.Trading,
		variables: deps.Variables,
	}
	n.Bind(n)

	return n
}

// Params returns the decoded start settings.
func (n *StartNode) Params() config.StartParams {
	return n.params
}

// Account returns the virtual account the start node configures.
func (n *StartNode) Account() trading.Account {
	return trading.Account{
		InitialBalance: decimal.NewFromFloat(n.params.InitialBalance),
		Leverage:       n.params.Leverage,
		FeeRate:        decimal.NewFromFloat(n.params.FeeRate),
	}
}

func (n *StartNode) Setup(context.Context) error { return nil }

func (n *StartNode) ExecuteAction(ctx context.Context, action node.Action) error {
	switch action.Kind {
	case node.ActionInitVirtualTradingSystem:
		if n.trading == nil {
			return nil
		}

		return n.trading.Configure(n.Account())
	case node.ActionInitCustomVariables:
		if len(n.variables) == 0 {
			return nil
		}

		return protocol.InitCustomVariableValue(ctx, n.Sender(), n.variables)
	default:
		return unsupportedAction(n.Base, action)
	}
}

// HandleEvent ignores events; the start node has no inputs.
func (n *StartNode) HandleEvent(context.Context, node.Event) error { return nil }

func (n *StartNode) HandlePlayIndex(ctx context.Context, playIndex int) error {
	if playIndex < 0 {
		return nil
	}

	started := time.Now()

	n.Logger().Debug("trigger", zap.Int("play_index", playIndex))

	event := n.NewEvent(node.EventTrigger, "", nil)
	event.PlayIndex = playIndex

	if err := n.EmitDefault(event); err != nil {
		return err
	}

	finishCycle(ctx, n.Base, playIndex, started)

	return nil
}
