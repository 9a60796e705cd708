package indicator

import (
	"github.com/rxtech-lab/argo-graph/internal/types"
)

// MA indicator implements Simple Moving Average calculation.
type MA struct {
	period int
}

// NewMA creates a new MA indicator with default configuration.
func NewMA() Indicator {
	return &MA{
		period: 20, // Default period
	}
}

// Name returns the name of the indicator.
func (m *MA) Name() types.IndicatorType {
	return types.IndicatorTypeMA
}

func (m *MA) periodOf(params types.IndicatorConfig) (int, error) {
	period := params.Period
	if period == 0 {
		period = m.period
	}

	return period, requirePositive("period", period)
}

// Lookback is period-1.
func (m *MA) Lookback(params types.IndicatorConfig) (int, error) {
	period, err := m.periodOf(params)
	if err != nil {
		return 0, err
	}

	return period - 1, nil
}

// Calculate computes the rolling mean of the close prices.
func (m *MA) Calculate(data OHLC, params types.IndicatorConfig) (Series, error) {
	period, err := m.periodOf(params)
	if err != nil {
		return nil, err
	}

	return simpleMovingAverage(data.Close, period), nil
}

// simpleMovingAverage keeps a running window sum.
func simpleMovingAverage(values []float64, period int) Series {
	out := nanSeries(len(values))
	sum := 0.0

	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}

		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}

	return out
}
