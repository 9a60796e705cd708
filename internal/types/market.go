package types

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// Exchange identifies the venue a series comes from.
type Exchange string

const (
	ExchangeBinance     Exchange = "binance"
	ExchangeMetaTrader5 Exchange = "metatrader5"
	ExchangeLocal       Exchange = "local"
)

// Interval is the bar width of a kline series.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

// Duration returns the width of one bar.
func (i Interval) Duration() (time.Duration, error) {
	switch i {
	case Interval1m:
		return time.Minute, nil
	case Interval5m:
		return 5 * time.Minute, nil
	case Interval15m:
		return 15 * time.Minute, nil
	case Interval30m:
		return 30 * time.Minute, nil
	case Interval1h:
		return time.Hour, nil
	case Interval4h:
		return 4 * time.Hour, nil
	case Interval6h:
		return 6 * time.Hour, nil
	case Interval8h:
		return 8 * time.Hour, nil
	case Interval12h:
		return 12 * time.Hour, nil
	case Interval1d:
		return 24 * time.Hour, nil
	case Interval1w:
		return 168 * time.Hour, nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", i)
	}
}

// Minutes returns the bar width in minutes.
func (i Interval) Minutes() (int, error) {
	d, err := i.Duration()
	if err != nil {
		return 0, err
	}

	return int(d / time.Minute), nil
}

// Less reports whether i is a finer interval than other. Unknown intervals sort last.
func (i Interval) Less(other Interval) bool {
	a, errA := i.Duration()
	b, errB := other.Duration()

	switch {
	case errA != nil:
		return false
	case errB != nil:
		return true
	default:
		return a < b
	}
}

// Kline is one OHLCV bar.
type Kline struct {
	Time   time.Time `json:"time" yaml:"time"`
	Open   float64   `json:"open" yaml:"open"`
	High   float64   `json:"high" yaml:"high"`
	Low    float64   `json:"low" yaml:"low"`
	Close  float64   `json:"close" yaml:"close"`
	Volume float64   `json:"volume" yaml:"volume"`
}

// Timestamp implements cache.Point.
func (k Kline) Timestamp() time.Time {
	return k.Time
}

// IndicatorValue is one computed indicator sample aligned to a kline timestamp.
type IndicatorValue struct {
	Time  time.Time `json:"time" yaml:"time"`
	Value float64   `json:"value" yaml:"value"`
}

// Timestamp implements cache.Point.
func (v IndicatorValue) Timestamp() time.Time {
	return v.Time
}

// TimeRange is a half-open [Start, End) window.
type TimeRange struct {
	Start time.Time `json:"start" yaml:"start" validate:"required"`
	End   time.Time `json:"end" yaml:"end" validate:"required,gtfield=Start"`
}

// Duration returns the length of the window.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%s~%s", r.Start.UTC().Format(time.RFC3339), r.End.UTC().Format(time.RFC3339))
}
