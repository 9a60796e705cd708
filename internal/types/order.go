package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

type OrderSide string

type OrderType string

type OrderStatus string

type PositionSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	OrderStatusCreated  OrderStatus = "CREATED"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// OrderRequest is what a futures order node asks the trading system to execute.
type OrderRequest struct {
	NodeID    NodeID          `json:"node_id" yaml:"node_id" validate:"required"`
	ConfigID  int             `json:"config_id" yaml:"config_id"`
	Exchange  Exchange        `json:"exchange" yaml:"exchange" validate:"required"`
	Symbol    string          `json:"symbol" yaml:"symbol" validate:"required"`
	Side      OrderSide       `json:"side" yaml:"side" validate:"required,oneof=BUY SELL"`
	OrderType OrderType       `json:"order_type" yaml:"order_type" validate:"required,oneof=MARKET LIMIT"`
	Quantity  decimal.Decimal `json:"quantity" yaml:"quantity"`
	Price     decimal.Decimal `json:"price" yaml:"price"`
}

// Validate validates the request.
func (r *OrderRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order request", err)
	}

	if !r.Quantity.IsPositive() {
		return errors.Newf(errors.ErrCodeInvalidOrder, "quantity must be positive, got %s", r.Quantity)
	}

	if r.OrderType == OrderTypeLimit && !r.Price.IsPositive() {
		return errors.Newf(errors.ErrCodeInvalidOrder, "limit price must be positive, got %s", r.Price)
	}

	return nil
}

// Order is an order known to the virtual trading system.
type Order struct {
	OrderID   string          `json:"order_id" yaml:"order_id"`
	NodeID    NodeID          `json:"node_id" yaml:"node_id"`
	ConfigID  int             `json:"config_id" yaml:"config_id"`
	Symbol    string          `json:"symbol" yaml:"symbol"`
	Side      OrderSide       `json:"side" yaml:"side"`
	OrderType OrderType       `json:"order_type" yaml:"order_type"`
	Quantity  decimal.Decimal `json:"quantity" yaml:"quantity"`
	Price     decimal.Decimal `json:"price" yaml:"price"`
	Fee       decimal.Decimal `json:"fee" yaml:"fee"`
	Status    OrderStatus     `json:"status" yaml:"status"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	FilledAt  time.Time       `json:"filled_at" yaml:"filled_at"`
}

// Position is the netted exposure on one symbol.
type Position struct {
	Symbol        string          `json:"symbol" yaml:"symbol"`
	Side          PositionSide    `json:"side" yaml:"side"`
	Quantity      decimal.Decimal `json:"quantity" yaml:"quantity"`
	EntryPrice    decimal.Decimal `json:"entry_price" yaml:"entry_price"`
	MarkPrice     decimal.Decimal `json:"mark_price" yaml:"mark_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	UpdatedAt     time.Time       `json:"updated_at" yaml:"updated_at"`
}
