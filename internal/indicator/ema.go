package indicator

import (
	"github.com/rxtech-lab/argo-graph/internal/types"
)

// EMA indicator implements Exponential Moving Average calculation.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator with default configuration.
func NewEMA() Indicator {
	return &EMA{
		period: 20, // Default period
	}
}

// Name returns the name of the indicator.
func (e *EMA) Name() types.IndicatorType {
	return types.IndicatorTypeEMA
}

func (e *EMA) periodOf(params types.IndicatorConfig) (int, error) {
	period := params.Period
	if period == 0 {
		period = e.period
	}

	return period, requirePositive("period", period)
}

func (e *EMA) Lookback(params types.IndicatorConfig) (int, error) {
	period, err := e.periodOf(params)
	if err != nil {
		return 0, err
	}

	return period - 1, nil
}

func (e *EMA) Calculate(data OHLC, params types.IndicatorConfig) (Series, error) {
	period, err := e.periodOf(params)
	if err != nil {
		return nil, err
	}

	return exponentialMovingAverage(data.Close, period), nil
}

// exponentialMovingAverage seeds with the SMA of the first period values and
// then applies EMA = price * alpha + EMA_prev * (1 - alpha), alpha = 2/(period+1).
// This matches pandas ewm(span=period, adjust=False) after the seed.
func exponentialMovingAverage(values []float64, period int) Series {
	out := nanSeries(len(values))
	if len(values) < period {
		return out
	}

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += values[i]
	}

	ema := sma / float64(period)
	out[period-1] = ema

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i] * alpha) + (ema * (1 - alpha))
		out[i] = ema
	}

	return out
}
