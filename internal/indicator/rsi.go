package indicator

import (
	"github.com/rxtech-lab/argo-graph/internal/types"
)

// RSI implements the Relative Strength Index with Wilder's smoothing.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator with default configuration.
func NewRSI() Indicator {
	return &RSI{
		period: 14, // Default period
	}
}

// Name returns the name of the indicator.
func (r *RSI) Name() types.IndicatorType {
	return types.IndicatorTypeRSI
}

func (r *RSI) periodOf(params types.IndicatorConfig) (int, error) {
	period := params.Period
	if period == 0 {
		period = r.period
	}

	return period, requirePositive("period", period)
}

// Lookback is period: the first value needs period price changes.
func (r *RSI) Lookback(params types.IndicatorConfig) (int, error) {
	return r.periodOf(params)
}

func (r *RSI) Calculate(data OHLC, params types.IndicatorConfig) (Series, error) {
	period, err := r.periodOf(params)
	if err != nil {
		return nil, err
	}

	closes := data.Close
	out := nanSeries(len(closes))

	if len(closes) <= period {
		return out, nil
	}

	avgGain, avgLoss := 0.0, 0.0

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0

		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		switch {
		case i < period:
			avgGain += gain
			avgLoss += loss

			continue
		case i == period:
			avgGain = (avgGain + gain) / float64(period)
			avgLoss = (avgLoss + loss) / float64(period)
		default:
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}

		out[i] = rsiValue(avgGain, avgLoss)
	}

	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100 // Perfect uptrend
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}
