package trading

import "github.com/shopspring/decimal"

// CommissionFee calculates the fee charged for a fill.
type CommissionFee interface {
	// Calculate returns the fee for a fill of quantity at price
	Calculate(quantity, price decimal.Decimal) decimal.Decimal
}

// RateCommission charges a fixed share of the notional.
type RateCommission struct {
	rate decimal.Decimal
}

// NewRateCommission creates a commission charging rate * quantity * price.
func NewRateCommission(rate decimal.Decimal) CommissionFee {
	if rate.IsZero() {
		return NewZeroCommission()
	}

	return &RateCommission{rate: rate}
}

func (c *RateCommission) Calculate(quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Abs().Mul(price).Mul(c.rate)
}

// ZeroCommission implements CommissionFee with zero commission.
type ZeroCommission struct{}

// NewZeroCommission creates a new zero commission fee.
func NewZeroCommission() CommissionFee {
	return &ZeroCommission{}
}

// Calculate returns 0 for any fill.
func (c *ZeroCommission) Calculate(_, _ decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}
