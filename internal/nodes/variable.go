package nodes

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/protocol"
	"github.com/rxtech-lab/argo-graph/internal/trading"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// VariableNode reads or changes strategy variables when its branch fires.
type VariableNode struct {
	*node.Base
	params  config.VariableParams
	trading trading.TradingSystem
	gate    *gate
}

func NewVariableNode(cfg config.NodeConfig, params *config.VariableParams, deps Deps) *VariableNode {
	lc := node.Lifecycle{
		OnStartInit: append([]node.ActionKind{}, listeners...),
		LoadBearing: nil,
	}

	n := &VariableNode{
		Base:    newBase(cfg, node.KindVariable, lc, params, deps),
		params:  *params,
		trading: deps.Trading,
		gate:    newGate(nil),
	}
	n.Bind(n)

	return n
}

func (n *VariableNode) Setup(context.Context) error {
	n.gate = newGate(n.Inputs())

	return nil
}

func (n *VariableNode) ExecuteAction(_ context.Context, action node.Action) error {
	return unsupportedAction(n.Base, action)
}

func (n *VariableNode) Reset(context.Context) error {
	n.gate.reset()

	return nil
}

func (n *VariableNode) HandlePlayIndex(context.Context, int) error { return nil }

func (n *VariableNode) HandleEvent(ctx context.Context, event node.Event) error {
	complete, fired := n.gate.offer(event)
	if !complete {
		return nil
	}

	if !fired {
		skipCycle(n.Base, event.Kind, event.PlayIndex)

		return nil
	}

	started := time.Now()

	var (
		errs   error
		failed []int
	)

	for _, item := range n.params.Items {
		var err error
		if item.Kind == config.VariableSystem {
			err = n.publishSystem(ctx, item, event.PlayIndex)
		} else {
			err = n.applyCustom(ctx, item, event.PlayIndex)
		}

		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(errors.ErrCodeNodeEventRejected, err,
				"node %s: variable %s", n.ID(), item.Name))
			failed = append(failed, item.ConfigID)
		}
	}

	skipItems(n.Base, failed, len(n.params.Items)-len(failed), event.PlayIndex)
	finishCycle(ctx, n.Base, event.PlayIndex, started)

	return errs
}

func (n *VariableNode) applyCustom(ctx context.Context, item config.VariableItem, playIndex int) error {
	var (
		v   types.CustomVariable
		err error
	)

	switch item.Op {
	case config.VariableGet:
		v, err = protocol.GetCustomVariableValue(ctx, n.Sender(), item.Name)
	case config.VariableReset:
		v, err = protocol.ResetCustomVariableValue(ctx, n.Sender(), item.Name)
	default:
		v, err = protocol.UpdateCustomVariableValue(ctx, n.Sender(), protocol.VariableUpdate{
			Name:  item.Name,
			Op:    protocol.VariableOp(item.Op),
			Value: item.Value,
		})
	}

	if err != nil {
		return err
	}

	return emitItem(n.Base, item.ConfigID, node.EventCustomVarUpdate, playIndex, node.VariablePayload{
		Name:   v.Name,
		Symbol: "",
		Value:  numericValue(v),
	})
}

func (n *VariableNode) publishSystem(ctx context.Context, item config.VariableItem, playIndex int) error {
	now, err := protocol.GetCurrentTime(ctx, n.Sender())
	if err != nil {
		return err
	}

	name := types.SysVariableName(item.Name)

	value, err := n.systemValue(name, item.Symbol, playIndex, now)
	if err != nil {
		return err
	}

	err = protocol.UpdateSysVariableValue(ctx, n.Sender(), types.SysVariable{
		Name:      name,
		Symbol:    item.Symbol,
		Value:     value.String(),
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}

	return emitItem(n.Base, item.ConfigID, node.EventSysVarUpdate, playIndex, node.VariablePayload{
		Name:   item.Name,
		Symbol: item.Symbol,
		Value:  value.InexactFloat64(),
	})
}

func (n *VariableNode) systemValue(name types.SysVariableName, symbol string, playIndex int, now time.Time) (decimal.Decimal, error) {
	switch name {
	case types.SysVariableCurrentTime:
		return decimal.NewFromInt(now.Unix()), nil
	case types.SysVariableCumulativeSignals:
		return decimal.NewFromInt(int64(playIndex + 1)), nil
	}

	if n.trading == nil {
		return decimal.Zero, errors.Newf(errors.ErrCodeVariableNotFound, "system variable %s needs a trading system", name)
	}

	switch name {
	case types.SysVariablePositionCount:
		count := 0

		for _, p := range n.trading.Positions() {
			if symbol == "" || p.Symbol == symbol {
				count++
			}
		}

		return decimal.NewFromInt(int64(count)), nil
	case types.SysVariableTotalOrders, types.SysVariableFilledOrders:
		count := 0

		for _, o := range n.trading.Orders() {
			if symbol != "" && o.Symbol != symbol {
				continue
			}

			if name == types.SysVariableFilledOrders && o.Status != types.OrderStatusFilled {
				continue
			}

			count++
		}

		return decimal.NewFromInt(int64(count)), nil
	case types.SysVariableAvailableBalance:
		return n.trading.AvailableBalance(), nil
	default:
		return decimal.Zero, errors.Newf(errors.ErrCodeVariableNotFound, "unknown system variable %s", name)
	}
}

// numericValue maps a custom variable onto the number conditions compare.
// Booleans are 1 or 0; strings that do not parse are NaN.
func numericValue(v types.CustomVariable) float64 {
	if v.ValueType == types.VariableValueTypeBoolean {
		b, err := strconv.ParseBool(v.Value)
		if err != nil || !b {
			return 0
		}

		return 1
	}

	d, err := v.Number()
	if err != nil {
		return math.NaN()
	}

	return d.InexactFloat64()
}
