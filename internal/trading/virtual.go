package trading

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

type quote struct {
	price decimal.Decimal
	at    time.Time
}

// position keeps a signed quantity: long is positive, short is negative.
type position struct {
	qty       decimal.Decimal
	entry     decimal.Decimal
	mark      decimal.Decimal
	updatedAt time.Time
}

func (p *position) view(symbol string) types.Position {
	side := types.PositionSideLong
	if p.qty.IsNegative() {
		side = types.PositionSideShort
	}

	return types.Position{
		Symbol:        symbol,
		Side:          side,
		Quantity:      p.qty.Abs(),
		EntryPrice:    p.entry,
		MarkPrice:     p.mark,
		UnrealizedPnL: p.qty.Mul(p.mark.Sub(p.entry)),
		UpdatedAt:     p.updatedAt,
	}
}

// VirtualTradingSystem simulates a futures account. Market orders fill at the
// last price. Limit orders fill immediately when they cross the last price and
// otherwise wait for UpdatePrice. Positions are netted per symbol.
type VirtualTradingSystem struct {
	mu         sync.RWMutex
	account    Account
	commission CommissionFee
	balance    decimal.Decimal
	positions  map[string]*position
	orders     []types.Order
	pending    []types.Order
	prices     map[string]quote
	events     *handle.Broadcast[Event]
	logger     *logger.Logger
}

// NewVirtualTradingSystem creates an account with DefaultAccount terms.
func NewVirtualTradingSystem(log *logger.Logger) *VirtualTradingSystem {
	account := DefaultAccount()

	return &VirtualTradingSystem{
		mu:         sync.RWMutex{},
		account:    account,
		commission: NewRateCommission(account.FeeRate),
		balance:    account.InitialBalance,
		positions:  make(map[string]*position),
		orders:     nil,
		pending:    nil,
		prices:     make(map[string]quote),
		events:     handle.NewBroadcast[Event](handle.DefaultCapacity),
		logger:     log.Named("virtual_trading"),
	}
}

func (v *VirtualTradingSystem) Configure(account Account) error {
	if !account.InitialBalance.IsPositive() {
		return errors.Newf(errors.ErrCodeInvalidParameter, "initial balance must be positive, got %s", account.InitialBalance)
	}

	if account.Leverage < 1 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "leverage must be at least 1, got %d", account.Leverage)
	}

	if account.FeeRate.IsNegative() {
		return errors.Newf(errors.ErrCodeInvalidParameter, "fee rate must not be negative, got %s", account.FeeRate)
	}

	v.mu.Lock()
	v.account = account
	v.commission = NewRateCommission(account.FeeRate)
	v.resetLocked()
	v.mu.Unlock()

	v.logger.Info("Virtual trading system configured",
		zap.String("initial_balance", account.InitialBalance.String()),
		zap.Int("leverage", account.Leverage),
		zap.String("fee_rate", account.FeeRate.String()),
	)

	return nil
}

func (v *VirtualTradingSystem) Reset() {
	v.mu.Lock()
	v.resetLocked()
	v.mu.Unlock()
}

func (v *VirtualTradingSystem) resetLocked() {
	v.balance = v.account.InitialBalance
	v.positions = make(map[string]*position)
	v.orders = nil
	v.pending = nil
	v.prices = make(map[string]quote)
}

func (v *VirtualTradingSystem) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	if err := ctx.Err(); err != nil {
		return types.Order{}, err
	}

	if err := req.Validate(); err != nil {
		return types.Order{}, err
	}

	v.mu.Lock()

	q, ok := v.prices[req.Symbol]
	if !ok {
		v.mu.Unlock()

		return types.Order{}, errors.Newf(errors.ErrCodePriceMissing, "no price for %s", req.Symbol)
	}

	order := types.Order{
		OrderID:   uuid.New().String(),
		NodeID:    req.NodeID,
		ConfigID:  req.ConfigID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		OrderType: req.OrderType,
		Quantity:  req.Quantity,
		Price:     req.Price,
		Fee:       decimal.Zero,
		Status:    types.OrderStatusCreated,
		CreatedAt: q.at,
		FilledAt:  time.Time{},
	}

	events := []Event{{Kind: EventOrderCreated, Order: order, Position: types.Position{}, Timestamp: q.at}}

	fillPrice, crosses := crossing(order, q.price)
	if !crosses {
		v.orders = append(v.orders, order)
		v.pending = append(v.pending, order)
		v.mu.Unlock()
		v.publish(events)

		return order, nil
	}

	filled, fillEvents, err := v.fillLocked(order, fillPrice, q.at)
	v.orders = append(v.orders, filled)
	v.mu.Unlock()

	if err != nil {
		v.publish(events)

		return filled, errors.Wrapf(errors.ErrCodeOrderFailed, err, "order %s rejected", filled.OrderID)
	}

	v.publish(append(events, fillEvents...))

	return filled, nil
}

// crossing reports whether order executes at the last price and at which price.
func crossing(order types.Order, last decimal.Decimal) (decimal.Decimal, bool) {
	if order.OrderType == types.OrderTypeMarket {
		return last, true
	}

	switch order.Side {
	case types.OrderSideBuy:
		return last, last.LessThanOrEqual(order.Price)
	case types.OrderSideSell:
		return last, last.GreaterThanOrEqual(order.Price)
	default:
		return decimal.Zero, false
	}
}

// fillLocked applies order at price. On error the account is unchanged and the
// returned order is marked rejected.
func (v *VirtualTradingSystem) fillLocked(order types.Order, price decimal.Decimal, at time.Time) (types.Order, []Event, error) {
	delta := order.Quantity
	if order.Side == types.OrderSideSell {
		delta = delta.Neg()
	}

	current, exists := v.positions[order.Symbol]
	if !exists {
		current = &position{qty: decimal.Zero, entry: decimal.Zero, mark: price, updatedAt: at}
	}

	newQty := current.qty.Add(delta)
	entry := current.entry
	realized := decimal.Zero

	if current.qty.IsZero() || current.qty.Sign() == delta.Sign() {
		entry = current.qty.Abs().Mul(current.entry).Add(delta.Abs().Mul(price)).Div(newQty.Abs())
	} else {
		closed := decimal.Min(current.qty.Abs(), delta.Abs())
		realized = closed.Mul(price.Sub(current.entry)).Mul(decimal.NewFromInt(int64(current.qty.Sign())))

		if !newQty.IsZero() && newQty.Sign() != current.qty.Sign() {
			entry = price
		}
	}

	fee := v.commission.Calculate(order.Quantity, price)
	balance := v.balance.Add(realized).Sub(fee)

	if newQty.Abs().GreaterThan(current.qty.Abs()) {
		required := v.marginLocked(order.Symbol).Add(v.margin(newQty, entry))
		if required.GreaterThan(balance) {
			order.Status = types.OrderStatusRejected

			return order, nil, errors.Newf(errors.ErrCodeOrderFailed,
				"insufficient balance: margin %s exceeds balance %s", required.StringFixed(2), balance.StringFixed(2))
		}
	}

	v.balance = balance
	order.Status = types.OrderStatusFilled
	order.Price = price
	order.Fee = fee
	order.FilledAt = at

	mark := price
	if q, ok := v.prices[order.Symbol]; ok {
		mark = q.price
	}

	next := &position{qty: newQty, entry: entry, mark: mark, updatedAt: at}
	events := []Event{{Kind: EventOrderFilled, Order: order, Position: types.Position{}, Timestamp: at}}

	if newQty.IsZero() {
		delete(v.positions, order.Symbol)
		events = append(events, Event{Kind: EventPositionClosed, Order: order, Position: next.view(order.Symbol), Timestamp: at})
	} else {
		v.positions[order.Symbol] = next
		events = append(events, Event{Kind: EventPositionUpdated, Order: order, Position: next.view(order.Symbol), Timestamp: at})
	}

	v.logger.Debug("Order filled",
		zap.String("order_id", order.OrderID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("quantity", order.Quantity.String()),
		zap.String("price", price.String()),
		zap.String("realized_pnl", realized.String()),
	)

	return order, events, nil
}

func (v *VirtualTradingSystem) margin(qty, entry decimal.Decimal) decimal.Decimal {
	return qty.Abs().Mul(entry).Div(decimal.NewFromInt(int64(v.account.Leverage)))
}

// marginLocked sums the margin of every position except the one on skip.
func (v *VirtualTradingSystem) marginLocked(skip string) decimal.Decimal {
	total := decimal.Zero

	for symbol, p := range v.positions {
		if symbol == skip {
			continue
		}

		total = total.Add(v.margin(p.qty, p.entry))
	}

	return total
}

func (v *VirtualTradingSystem) CancelOrder(orderID string) error {
	v.mu.Lock()

	idx := slices.IndexFunc(v.pending, func(o types.Order) bool { return o.OrderID == orderID })
	if idx < 0 {
		v.mu.Unlock()

		return errors.Newf(errors.ErrCodeInvalidOrder, "order %s is not pending", orderID)
	}

	order := v.pending[idx]
	order.Status = types.OrderStatusCanceled
	v.pending = slices.Delete(v.pending, idx, idx+1)
	v.setOrderLocked(order)
	v.mu.Unlock()

	v.publish([]Event{{Kind: EventOrderCanceled, Order: order, Position: types.Position{}, Timestamp: order.CreatedAt}})

	return nil
}

func (v *VirtualTradingSystem) setOrderLocked(order types.Order) {
	for i := range v.orders {
		if v.orders[i].OrderID == order.OrderID {
			v.orders[i] = order

			return
		}
	}
}

func (v *VirtualTradingSystem) UpdatePrice(symbol string, price decimal.Decimal, at time.Time) {
	v.mu.Lock()

	v.prices[symbol] = quote{price: price, at: at}

	if p, ok := v.positions[symbol]; ok {
		p.mark = price
		p.updatedAt = at
	}

	var events []Event

	remaining := v.pending[:0]

	for _, order := range v.pending {
		if order.Symbol != symbol {
			remaining = append(remaining, order)

			continue
		}

		if _, crosses := crossing(order, price); !crosses {
			remaining = append(remaining, order)

			continue
		}

		filled, fillEvents, err := v.fillLocked(order, order.Price, at)
		if err != nil {
			v.logger.Warn("Pending order rejected", zap.String("order_id", order.OrderID), zap.Error(err))
		}

		v.setOrderLocked(filled)
		events = append(events, fillEvents...)
	}

	v.pending = remaining
	v.mu.Unlock()

	v.publish(events)
}

func (v *VirtualTradingSystem) Positions() []types.Position {
	v.mu.RLock()
	defer v.mu.RUnlock()

	positions := make([]types.Position, 0, len(v.positions))
	for symbol, p := range v.positions {
		positions = append(positions, p.view(symbol))
	}

	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	return positions
}

func (v *VirtualTradingSystem) Position(symbol string) (types.Position, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	p, ok := v.positions[symbol]
	if !ok {
		return types.Position{}, false
	}

	return p.view(symbol), true
}

func (v *VirtualTradingSystem) Orders() []types.Order {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return slices.Clone(v.orders)
}

func (v *VirtualTradingSystem) Balance() decimal.Decimal {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.balance
}

func (v *VirtualTradingSystem) AvailableBalance() decimal.Decimal {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.balance.Sub(v.marginLocked(""))
}

func (v *VirtualTradingSystem) Subscribe(subscriberID string) *handle.Subscription[Event] {
	return v.events.Subscribe(subscriberID)
}

// Close ends every subscription.
func (v *VirtualTradingSystem) Close() {
	v.events.Close()
}

func (v *VirtualTradingSystem) publish(events []Event) {
	for _, e := range events {
		v.events.Send(e)
	}
}

var _ TradingSystem = (*VirtualTradingSystem)(nil)
