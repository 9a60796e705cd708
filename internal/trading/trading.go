package trading

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/types"
)

// TradingSystem is the account a strategy trades against during a backtest.
type TradingSystem interface {
	// Configure resets the account to the given starting balance and terms
	Configure(account Account) error
	// PlaceOrder places a single order
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.Order, error)
	// CancelOrder cancels a pending order
	CancelOrder(orderID string) error
	// Positions returns the current open positions sorted by symbol
	Positions() []types.Position
	// Position returns the open position for a symbol
	Position(symbol string) (types.Position, bool)
	// Orders returns every order placed since the last reset
	Orders() []types.Order
	// Balance returns the wallet balance including realized PnL and fees
	Balance() decimal.Decimal
	// AvailableBalance returns the balance not tied up as position margin
	AvailableBalance() decimal.Decimal
	// UpdatePrice marks a symbol at a new price and fills crossing limit orders
	UpdatePrice(symbol string, price decimal.Decimal, at time.Time)
	// Reset restores the last configured account
	Reset()
	// Subscribe returns a subscription to order and position events
	Subscribe(subscriberID string) *handle.Subscription[Event]
}

// Account holds the starting terms of a virtual account.
type Account struct {
	InitialBalance decimal.Decimal
	Leverage       int
	FeeRate        decimal.Decimal
}

// DefaultAccount is used until the start node configures the account.
func DefaultAccount() Account {
	return Account{
		InitialBalance: decimal.NewFromInt(10000),
		Leverage:       1,
		FeeRate:        decimal.Zero,
	}
}

// EventKind identifies a trading event.
type EventKind string

const (
	EventOrderCreated    EventKind = "order_created"
	EventOrderFilled     EventKind = "order_filled"
	EventOrderCanceled   EventKind = "order_canceled"
	EventPositionUpdated EventKind = "position_updated"
	EventPositionClosed  EventKind = "position_closed"
)

// Event is published by the trading system whenever an order or position changes.
type Event struct {
	Kind      EventKind
	Order     types.Order
	Position  types.Position
	Timestamp time.Time
}
