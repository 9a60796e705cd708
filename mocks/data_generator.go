package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-graph/internal/types"
)

// KlineGenerator generates synthetic kline series for tests and demos.
type KlineGenerator struct {
	rng *rand.Rand
}

// NewKlineGenerator creates a new KlineGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewKlineGenerator(seed int64) *KlineGenerator {
	return &KlineGenerator{
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test data
	}
}

// GeneratorConfig configures how klines are generated.
type GeneratorConfig struct {
	// StartTime is the open time of the first bar
	StartTime time.Time
	// Interval is the duration between bars
	Interval time.Duration
	// Count is the number of bars to generate
	Count int
	// InitialPrice is the first open
	InitialPrice float64
	// Volatility controls price movement per bar (0.01 = 1%)
	Volatility float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		StartTime:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:     time.Minute,
		Count:        1000,
		InitialPrice: 100.0,
		Volatility:   0.002,
		VolumeBase:   10000,
	}
}

// Generate creates a kline series following a geometric Brownian motion.
func (g *KlineGenerator) Generate(config GeneratorConfig) []types.Kline {
	data := make([]types.Kline, config.Count)
	price := config.InitialPrice
	current := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := price

		// Box-Muller
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		closePrice := open * (1 + config.Volatility*z)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		high := math.Max(open, closePrice) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		low := math.Min(open, closePrice) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)

		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		data[i] = types.Kline{
			Time:   current,
			Open:   roundToDecimals(open, 4),
			High:   roundToDecimals(high, 4),
			Low:    roundToDecimals(low, 4),
			Close:  roundToDecimals(closePrice, 4),
			Volume: roundToDecimals(config.VolumeBase*(0.7+g.rng.Float64()*0.6), 2),
		}

		price = closePrice
		current = current.Add(config.Interval)
	}

	return data
}

// Linear creates count bars starting at start whose close is first, first+step, ...
// Open, high and low sit around the close.
func Linear(start time.Time, interval time.Duration, count int, first, step float64) []types.Kline {
	out := make([]types.Kline, count)
	for i := range out {
		c := first + float64(i)*step
		out[i] = types.Kline{
			Time:   start.Add(time.Duration(i) * interval),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100,
		}
	}

	return out
}

func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
