package indicator

import (
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// MACD is the difference between a fast and a slow EMA. As a Calculator it
// yields the MACD line; Lines also returns the signal line and histogram.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator with default configuration.
func NewMACD() Indicator {
	return &MACD{
		fastPeriod:   12, // Default fast period
		slowPeriod:   26, // Default slow period
		signalPeriod: 9,  // Default signal period
	}
}

// Name returns the name of the indicator.
func (m *MACD) Name() types.IndicatorType {
	return types.IndicatorTypeMACD
}

func (m *MACD) config(params types.IndicatorConfig) (fast, slow, signal int, err error) {
	fast, slow, signal = params.FastPeriod, params.SlowPeriod, params.SignalPeriod
	if fast == 0 {
		fast = m.fastPeriod
	}

	if slow == 0 {
		slow = m.slowPeriod
	}

	if signal == 0 {
		signal = m.signalPeriod
	}

	for name, v := range map[string]int{"fast_period": fast, "slow_period": slow, "signal_period": signal} {
		if err := requirePositive(name, v); err != nil {
			return 0, 0, 0, err
		}
	}

	if fast >= slow {
		return 0, 0, 0, errors.Newf(errors.ErrCodeInvalidParameter,
			"fast period (%d) must be less than slow period (%d)", fast, slow)
	}

	return fast, slow, signal, nil
}

func (m *MACD) Lookback(params types.IndicatorConfig) (int, error) {
	_, slow, _, err := m.config(params)
	if err != nil {
		return 0, err
	}

	return slow - 1, nil
}

func (m *MACD) Calculate(data OHLC, params types.IndicatorConfig) (Series, error) {
	line, _, _, err := m.Lines(data, params)

	return line, err
}

// Lines returns the MACD line, its signal line and the histogram.
func (m *MACD) Lines(data OHLC, params types.IndicatorConfig) (line, signal, histogram Series, err error) {
	fast, slow, signalPeriod, err := m.config(params)
	if err != nil {
		return nil, nil, nil, err
	}

	fastEMA := exponentialMovingAverage(data.Close, fast)
	slowEMA := exponentialMovingAverage(data.Close, slow)

	line = nanSeries(data.Len())
	for i := slow - 1; i < data.Len(); i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	signal = nanSeries(data.Len())
	histogram = nanSeries(data.Len())

	if data.Len() >= slow-1+signalPeriod {
		tail := exponentialMovingAverage(line[slow-1:], signalPeriod)
		for i, v := range tail {
			signal[slow-1+i] = v
			if line.Valid(slow-1+i) && tail.Valid(i) {
				histogram[slow-1+i] = line[slow-1+i] - v
			}
		}
	}

	return line, signal, histogram, nil
}
