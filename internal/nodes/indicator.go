package nodes

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/indicator"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/protocol"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// IndicatorNode computes its indicators over the whole source series during
// init and publishes the value aligned with every kline update.
type IndicatorNode struct {
	*node.Base
	params     config.IndicatorParams
	calculator indicator.Calculator
	// series holds the computed values per config id, aligned with the source klines.
	series map[int][]types.IndicatorValue
}

func NewIndicatorNode(cfg config.NodeConfig, params *config.IndicatorParams, deps Deps) *IndicatorNode {
	lc := node.Lifecycle{
		OnStartInit: append(append([]node.ActionKind{}, listeners...), node.ActionCalculateIndicator),
		LoadBearing: []node.ActionKind{node.ActionCalculateIndicator},
	}

	calculator := deps.Calculator
	if calculator == nil {
		calculator = indicator.NewDefaultRegistry()
	}

	n := &IndicatorNode{
		Base:       newBase(cfg, node.KindIndicator, lc, params, deps),
		params:     *params,
		calculator: calculator,
		series:     make(map[int][]types.IndicatorValue, len(params.Indicators)),
	}
	n.Bind(n)

	return n
}

func (n *IndicatorNode) Setup(context.Context) error { return nil }

func (n *IndicatorNode) ExecuteAction(ctx context.Context, action node.Action) error {
	switch action.Kind {
	case node.ActionCalculateIndicator:
		return n.calculate(ctx)
	default:
		return unsupportedAction(n.Base, action)
	}
}

func (n *IndicatorNode) calculate(ctx context.Context) error {
	klines, err := protocol.GetKlineData(ctx, n.Sender(), protocol.KlineQuery{
		Key:       n.params.Source,
		PlayIndex: optional.None[int](),
		Limit:     optional.None[int](),
	})
	if err != nil {
		return err
	}

	data := indicator.NewOHLC(klines)

	for _, item := range n.params.Indicators {
		key := n.params.Key(item)

		lookback, err := n.calculator.Lookback(item.Config.Type, item.Config)
		if err != nil {
			return err
		}

		if len(klines) <= lookback {
			return errors.NewInsufficientDataErrorf(lookback+1, len(klines), key.String(),
				"%s needs %d bars, source has %d", key, lookback+1, len(klines))
		}

		series, err := n.calculator.Calculate(item.Config.Type, data, item.Config)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeIndicatorCalculation, err, "failed to calculate %s", key)
		}

		values := make([]types.IndicatorValue, len(klines))
		for i, k := range klines {
			v := math.NaN()
			if i < len(series) {
				v = series[i]
			}

			values[i] = types.IndicatorValue{Time: k.Time, Value: v}
		}

		if err := protocol.InitIndicatorData(ctx, n.Sender(), key, values); err != nil {
			return err
		}

		n.series[item.ConfigID] = values

		n.Logger().Info("indicator calculated",
			zap.String("key", key.String()),
			zap.Int("values", len(values)),
			zap.Int("lookback", lookback),
		)
	}

	return nil
}

func (n *IndicatorNode) HandleEvent(ctx context.Context, event node.Event) error {
	if event.Kind.IsFalseBranch() {
		skipCycle(n.Base, event.Kind, event.PlayIndex)

		return nil
	}

	payload, ok := event.Payload.(node.KlinePayload)
	if event.Kind != node.EventKlineUpdate || !ok || payload.Key != n.params.Source {
		return nil
	}

	started := time.Now()

	for _, item := range n.params.Indicators {
		value := valueAt(n.series[item.ConfigID], payload.Kline.Time)

		out := node.IndicatorPayload{Key: n.params.Key(item), Value: value}
		if err := emitItem(n.Base, item.ConfigID, node.EventIndicatorUpdate, event.PlayIndex, out); err != nil {
			return err
		}
	}

	finishCycle(ctx, n.Base, event.PlayIndex, started)

	return nil
}

func (n *IndicatorNode) HandlePlayIndex(context.Context, int) error { return nil }

// valueAt returns the value stamped t, or NaN when the series has none.
func valueAt(values []types.IndicatorValue, t time.Time) types.IndicatorValue {
	i := sort.Search(len(values), func(i int) bool {
		return !values[i].Time.Before(t)
	})

	if i < len(values) && values[i].Time.Equal(t) {
		return values[i]
	}

	return types.IndicatorValue{Time: t, Value: math.NaN()}
}
