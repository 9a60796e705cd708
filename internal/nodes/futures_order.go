package nodes

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/trading"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// FuturesOrderNode places its configured orders when its branch fires.
type FuturesOrderNode struct {
	*node.Base
	params  config.FuturesOrderParams
	trading trading.TradingSystem
	gate    *gate

	mu sync.Mutex
	// pending maps resting limit order ids to their config id.
	pending map[string]int
}

func NewFuturesOrderNode(cfg config.NodeConfig, params *config.FuturesOrderParams, deps Deps) *FuturesOrderNode {
	lc := node.Lifecycle{
		OnStartInit: append(append([]node.ActionKind{}, listeners...),
			node.ActionListenAndHandleVirtualTradingSystemEvent,
		),
		LoadBearing: []node.ActionKind{node.ActionListenAndHandleVirtualTradingSystemEvent},
	}

	n := &FuturesOrderNode{
		Base:    newBase(cfg, node.KindFuturesOrder, lc, params, deps),
		params:  *params,
		trading: deps.Trading,
		gate:    newGate(nil),
		mu:      sync.Mutex{},
		pending: make(map[string]int),
	}
	n.Bind(n)

	return n
}

func (n *FuturesOrderNode) Setup(context.Context) error {
	n.gate = newGate(n.Inputs())

	return nil
}

func (n *FuturesOrderNode) ExecuteAction(_ context.Context, action node.Action) error {
	switch action.Kind {
	case node.ActionListenAndHandleVirtualTradingSystemEvent:
		if n.trading == nil {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "node %s: no trading system", n.ID())
		}

		sub := n.trading.Subscribe(string(n.ID()))
		n.Go("listen:trading", func(ctx context.Context) {
			n.listenTrading(ctx, sub)
		})

		return nil
	default:
		return unsupportedAction(n.Base, action)
	}
}

func (n *FuturesOrderNode) Reset(context.Context) error {
	n.gate.reset()

	n.mu.Lock()
	n.pending = make(map[string]int)
	n.mu.Unlock()

	return nil
}

func (n *FuturesOrderNode) HandlePlayIndex(context.Context, int) error { return nil }

func (n *FuturesOrderNode) HandleEvent(ctx context.Context, event node.Event) error {
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

	for _, item := range n.params.Orders {
		if err := n.place(ctx, item, event.PlayIndex); err != nil {
			errs = multierr.Append(errs, err)
			failed = append(failed, item.ConfigID)
		}
	}

	skipItems(n.Base, failed, len(n.params.Orders)-len(failed), event.PlayIndex)
	finishCycle(ctx, n.Base, event.PlayIndex, started)

	return errs
}

func (n *FuturesOrderNode) place(ctx context.Context, item config.OrderItem, playIndex int) error {
	order, err := n.trading.PlaceOrder(ctx, item.Request(n.ID()))
	if err != nil {
		return errors.Wrapf(errors.ErrCodeOrderFailed, err, "node %s: order %d on %s", n.ID(), item.ConfigID, item.Symbol)
	}

	n.Logger().Info("order placed",
		zap.String("order_id", order.OrderID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("status", string(order.Status)),
		zap.Int("play_index", playIndex),
	)

	kind := node.EventOrderFilled
	if order.Status == types.OrderStatusCreated {
		kind = node.EventOrderCreated

		n.mu.Lock()
		n.pending[order.OrderID] = item.ConfigID
		n.mu.Unlock()
	}

	return emitItem(n.Base, item.ConfigID, kind, playIndex, node.OrderPayload{Order: order})
}

// listenTrading reports fills of orders that rested on the book.
func (n *FuturesOrderNode) listenTrading(ctx context.Context, sub *handle.Subscription[trading.Event]) {
	defer sub.Unsubscribe()

	for {
		event, err := sub.Recv(ctx)

		switch {
		case err == nil:
		case ctx.Err() != nil, handle.IsClosed(err):
			return
		case handle.IsLagged(err):
			n.ReportError(errors.Wrapf(errors.ErrCodeLagged, err, "node %s: trading events", n.ID()))

			continue
		default:
			n.ReportError(err)

			return
		}

		if event.Kind != trading.EventOrderFilled || event.Order.NodeID != n.ID() {
			continue
		}

		n.mu.Lock()
		configID, ok := n.pending[event.Order.OrderID]
		delete(n.pending, event.Order.OrderID)
		n.mu.Unlock()

		if !ok {
			continue
		}

		n.Log("limit order " + event.Order.OrderID + " filled")

		payload := node.OrderPayload{Order: event.Order}
		if err := emitItem(n.Base, configID, node.EventOrderFilled, n.PlayIndex(), payload); err != nil {
			n.ReportError(err)
		}
	}
}
