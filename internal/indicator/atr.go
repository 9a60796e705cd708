package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-graph/internal/types"
)

// ATR implements the Average True Range with Wilder's smoothing.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator with default configuration.
func NewATR() Indicator {
	return &ATR{
		period: 14, // Default period
	}
}

// Name returns the name of the indicator.
func (a *ATR) Name() types.IndicatorType {
	return types.IndicatorTypeATR
}

func (a *ATR) periodOf(params types.IndicatorConfig) (int, error) {
	period := params.Period
	if period == 0 {
		period = a.period
	}

	return period, requirePositive("period", period)
}

func (a *ATR) Lookback(params types.IndicatorConfig) (int, error) {
	return a.periodOf(params)
}

func (a *ATR) Calculate(data OHLC, params types.IndicatorConfig) (Series, error) {
	period, err := a.periodOf(params)
	if err != nil {
		return nil, err
	}

	out := nanSeries(data.Len())
	if data.Len() <= period {
		return out, nil
	}

	atr := 0.0

	for i := 1; i < data.Len(); i++ {
		tr := trueRange(data.High[i], data.Low[i], data.Close[i-1])

		switch {
		case i < period:
			atr += tr

			continue
		case i == period:
			atr = (atr + tr) / float64(period)
		default:
			atr = (atr*float64(period-1) + tr) / float64(period)
		}

		out[i] = atr
	}

	return out, nil
}

func trueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}
