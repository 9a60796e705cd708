package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-graph/internal/types"
)

// OHLC is the column view of a kline series handed to indicator functions.
type OHLC struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// NewOHLC splits klines into columns.
func NewOHLC(klines []types.Kline) OHLC {
	o := OHLC{
		Open:   make([]float64, len(klines)),
		High:   make([]float64, len(klines)),
		Low:    make([]float64, len(klines)),
		Close:  make([]float64, len(klines)),
		Volume: make([]float64, len(klines)),
	}

	for i, k := range klines {
		o.Open[i] = k.Open
		o.High[i] = k.High
		o.Low[i] = k.Low
		o.Close[i] = k.Close
		o.Volume[i] = k.Volume
	}

	return o
}

// Len returns the number of bars.
func (o OHLC) Len() int {
	return len(o.Close)
}

// Series is an indicator output aligned with its input bars. Positions before
// the lookback are NaN.
type Series []float64

// Valid reports whether position i holds a computed value.
func (s Series) Valid(i int) bool {
	return i >= 0 && i < len(s) && !math.IsNaN(s[i])
}

// Indicator is one indicator function known to a Registry.
type Indicator interface {
	// Name returns the name of the indicator
	Name() types.IndicatorType
	// Lookback returns how many bars precede the first valid value.
	Lookback(params types.IndicatorConfig) (int, error)
	// Calculate computes the full series.
	Calculate(data OHLC, params types.IndicatorConfig) (Series, error)
}

// Calculator is the boundary nodes use to compute indicators.
type Calculator interface {
	Calculate(name types.IndicatorType, data OHLC, params types.IndicatorConfig) (Series, error)
	Lookback(name types.IndicatorType, params types.IndicatorConfig) (int, error)
}

func nanSeries(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}

	return s
}
