package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// NodeID identifies a node inside one strategy graph.
type NodeID string

// StrategyID identifies a strategy instance.
type StrategyID string

// KlineKey identifies a kline series.
type KlineKey struct {
	Exchange Exchange `json:"exchange" yaml:"exchange" validate:"required"`
	Symbol   string   `json:"symbol" yaml:"symbol" validate:"required"`
	Interval Interval `json:"interval" yaml:"interval" validate:"required"`
}

func (k KlineKey) String() string {
	return fmt.Sprintf("kline|%s|%s|%s", k.Exchange, k.Symbol, k.Interval)
}

// ParseKlineKey parses the form produced by KlineKey.String.
func ParseKlineKey(s string) (KlineKey, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 4 || parts[0] != "kline" {
		return KlineKey{}, errors.Newf(errors.ErrCodeInvalidParameter, "invalid kline key format: %q", s)
	}

	key := KlineKey{Exchange: Exchange(parts[1]), Symbol: parts[2], Interval: Interval(parts[3])}
	if _, err := key.Interval.Duration(); err != nil {
		return KlineKey{}, err
	}

	return key, nil
}

// IndicatorConfig identifies one indicator computation. The zero value of an
// unused parameter is ignored by the calculator.
type IndicatorConfig struct {
	Type         IndicatorType `json:"type" yaml:"type" validate:"required"`
	Period       int           `json:"period,omitempty" yaml:"period,omitempty" validate:"gte=0"`
	FastPeriod   int           `json:"fast_period,omitempty" yaml:"fast_period,omitempty" validate:"gte=0"`
	SlowPeriod   int           `json:"slow_period,omitempty" yaml:"slow_period,omitempty" validate:"gte=0"`
	SignalPeriod int           `json:"signal_period,omitempty" yaml:"signal_period,omitempty" validate:"gte=0"`
	Multiplier   float64       `json:"multiplier,omitempty" yaml:"multiplier,omitempty" validate:"gte=0"`
}

func (c IndicatorConfig) String() string {
	switch c.Type {
	case IndicatorTypeMACD:
		return fmt.Sprintf("%s(fast=%d,slow=%d,signal=%d)", c.Type, c.FastPeriod, c.SlowPeriod, c.SignalPeriod)
	case IndicatorTypeBollingerBands:
		return fmt.Sprintf("%s(period=%d,multiplier=%g)", c.Type, c.Period, c.Multiplier)
	default:
		return fmt.Sprintf("%s(period=%d)", c.Type, c.Period)
	}
}

// IndicatorKey identifies an indicator series computed over a kline series.
type IndicatorKey struct {
	KlineKey
	Config IndicatorConfig `json:"config" yaml:"config"`
}

func (k IndicatorKey) String() string {
	return fmt.Sprintf("indicator|%s|%s|%s|%s", k.Exchange, k.Symbol, k.Interval, k.Config)
}

// BacktestKlineKey identifies a kline series restricted to a backtest window.
type BacktestKlineKey struct {
	KlineKey
	Range TimeRange `json:"range" yaml:"range"`
}

func (k BacktestKlineKey) String() string {
	return fmt.Sprintf("history|%s|%s|%s|%s|%s", k.Exchange, k.Symbol, k.Interval,
		k.Range.Start.UTC().Format(time.RFC3339), k.Range.End.UTC().Format(time.RFC3339))
}

// WithRange returns a copy of the key restricted to r.
func (k BacktestKlineKey) WithRange(r TimeRange) BacktestKlineKey {
	k.Range = r

	return k
}
