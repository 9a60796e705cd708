package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-graph/internal/types"
)

// BollingerBands computes the bands around a simple moving average. As a
// Calculator it yields the middle band; Bands exposes all three.
type BollingerBands struct {
	period int
	stdDev float64
}

// NewBollingerBands creates a new Bollinger Bands indicator with default configuration.
func NewBollingerBands() Indicator {
	return &BollingerBands{
		period: 20,  // Default period
		stdDev: 2.0, // Default standard deviation
	}
}

// Name returns the name of the indicator.
func (bb *BollingerBands) Name() types.IndicatorType {
	return types.IndicatorTypeBollingerBands
}

func (bb *BollingerBands) config(params types.IndicatorConfig) (int, float64, error) {
	period := params.Period
	if period == 0 {
		period = bb.period
	}

	multiplier := params.Multiplier
	if multiplier == 0 {
		multiplier = bb.stdDev
	}

	return period, multiplier, requirePositive("period", period)
}

func (bb *BollingerBands) Lookback(params types.IndicatorConfig) (int, error) {
	period, _, err := bb.config(params)
	if err != nil {
		return 0, err
	}

	return period - 1, nil
}

func (bb *BollingerBands) Calculate(data OHLC, params types.IndicatorConfig) (Series, error) {
	_, middle, _, err := bb.Bands(data, params)

	return middle, err
}

// Bands returns the upper, middle and lower bands.
func (bb *BollingerBands) Bands(data OHLC, params types.IndicatorConfig) (upper, middle, lower Series, err error) {
	period, multiplier, err := bb.config(params)
	if err != nil {
		return nil, nil, nil, err
	}

	middle = simpleMovingAverage(data.Close, period)
	upper = nanSeries(len(middle))
	lower = nanSeries(len(middle))

	for i := period - 1; i < len(middle); i++ {
		variance := 0.0
		for _, v := range data.Close[i-period+1 : i+1] {
			d := v - middle[i]
			variance += d * d
		}

		sd := math.Sqrt(variance / float64(period))
		upper[i] = middle[i] + multiplier*sd
		lower[i] = middle[i] - multiplier*sd
	}

	return upper, middle, lower, nil
}
