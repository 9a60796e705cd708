package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func (suite *MarketTestSuite) TestIntervalMinutes() {
	tests := []struct {
		interval Interval
		want     int
	}{
		{Interval1m, 1},
		{Interval15m, 15},
		{Interval4h, 240},
		{Interval1d, 1440},
		{Interval1w, 10080},
	}

	for _, tt := range tests {
		got, err := tt.interval.Minutes()
		suite.Require().NoError(err, "interval %s", tt.interval)
		suite.Equal(tt.want, got, "interval %s", tt.interval)
	}

	_, err := Interval("2m").Minutes()
	suite.Error(err)
}

func (suite *MarketTestSuite) TestPointsExposeTheirTime() {
	at := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)

	suite.Equal(at, Kline{Time: at, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}.Timestamp())
	suite.Equal(at, IndicatorValue{Time: at, Value: 42}.Timestamp())
}

func (suite *MarketTestSuite) TestTimeRange() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))
	r := TimeRange{Start: start, End: start.Add(90 * time.Minute)}

	suite.Equal(90*time.Minute, r.Duration())
	suite.Equal("2023-12-31T16:00:00Z~2023-12-31T17:30:00Z", r.String())
}

func (suite *MarketTestSuite) TestIndicatorTypeNames() {
	for typ, name := range map[IndicatorType]string{
		IndicatorTypeMA:             "ma",
		IndicatorTypeEMA:            "ema",
		IndicatorTypeRSI:            "rsi",
		IndicatorTypeMACD:           "macd",
		IndicatorTypeBollingerBands: "bollinger_bands",
		IndicatorTypeATR:            "atr",
	} {
		suite.Equal(name, string(typ))
	}
}
