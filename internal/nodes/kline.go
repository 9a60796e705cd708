package nodes

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/cache"
	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/datasource"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/protocol"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// KlineNode loads the history of its symbols into the strategy cache and
// publishes the bar of every play index.
type KlineNode struct {
	*node.Base
	params config.KlineParams
	source datasource.KlineSource
	now    func() time.Time
}

func NewKlineNode(cfg config.NodeConfig, params *config.KlineParams, deps Deps) *KlineNode {
	lc := node.Lifecycle{
		OnStartInit: append(append([]node.ActionKind{}, listeners...),
			node.ActionRegisterExchange,
			node.ActionLoadHistoryFromExchange,
		),
		LoadBearing: []node.ActionKind{
			node.ActionRegisterExchange,
			node.ActionLoadHistoryFromExchange,
		},
	}

	n := &KlineNode{
		Base:   newBase(cfg, node.KindKline, lc, params, deps),
		params: *params,
		source: deps.Source,
		now:    deps.Now,
	}
	n.Bind(n)

	return n
}

// Params returns the decoded kline settings.
func (n *KlineNode) Params() config.KlineParams {
	return n.params
}

func (n *KlineNode) Setup(context.Context) error { return nil }

func (n *KlineNode) ExecuteAction(ctx context.Context, action node.Action) error {
	switch action.Kind {
	case node.ActionRegisterExchange:
		if n.source == nil {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "no market data source for exchange %s", n.params.Exchange)
		}

		n.Logger().Info("exchange registered", zap.String("exchange", string(n.params.Exchange)))

		return nil
	case node.ActionLoadHistoryFromExchange:
		return n.loadHistory(ctx)
	default:
		return unsupportedAction(n.Base, action)
	}
}

// loadHistory backfills every symbol into a staging store and hands the
// complete series to the strategy.
func (n *KlineNode) loadHistory(ctx context.Context) error {
	staging := cache.NewKlineStore()
	backfiller := cache.NewBackfiller(n.source, staging, n.Logger())
	window := n.params.Range(n.now())

	for _, s := range n.params.Symbols {
		key := n.params.Key(s)

		history := types.BacktestKlineKey{KlineKey: key, Range: window}
		if _, err := backfiller.Backfill(ctx, history); err != nil {
			return errors.Wrapf(errors.ErrCodeBackfillFailed, err, "failed to load %s", history)
		}

		klines, err := staging.Slice(key, optional.None[int](), optional.None[int]())
		if err != nil {
			return err
		}

		if len(klines) == 0 {
			return errors.Newf(errors.ErrCodeMarketDataFetchFailed, "no klines for %s in %s", key, window)
		}

		if err := protocol.InitKlineData(ctx, n.Sender(), key, klines); err != nil {
			return err
		}

		n.Logger().Info("history loaded",
			zap.String("key", key.String()),
			zap.Int("bars", len(klines)),
		)
	}

	return nil
}

func (n *KlineNode) HandleEvent(ctx context.Context, event node.Event) error {
	if event.Kind.IsFalseBranch() {
		skipCycle(n.Base, event.Kind, event.PlayIndex)

		return nil
	}

	if event.Kind != node.EventTrigger {
		return nil
	}

	started := time.Now()
	playIndex := event.PlayIndex

	for _, s := range n.params.Symbols {
		key := n.params.Key(s)

		bars, err := protocol.GetKlineData(ctx, n.Sender(), protocol.KlineQuery{
			Key:       key,
			PlayIndex: optional.Some(playIndex),
			Limit:     optional.Some(1),
		})
		if err != nil || len(bars) == 0 {
			skipCycle(n.Base, node.EventCaseFalse, playIndex)

			if err == nil {
				err = errors.Newf(errors.ErrCodeCacheIndexOutOfRange, "%s: no bar at play index %d", key, playIndex)
			}

			return errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "node %s: failed to read %s", n.ID(), key)
		}

		payload := node.KlinePayload{Key: key, Kline: bars[len(bars)-1]}
		if err := emitItem(n.Base, s.ConfigID, node.EventKlineUpdate, playIndex, payload); err != nil {
			return err
		}
	}

	finishCycle(ctx, n.Base, playIndex, started)

	return nil
}

func (n *KlineNode) HandlePlayIndex(context.Context, int) error { return nil }
