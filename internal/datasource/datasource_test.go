package datasource_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-graph/internal/datasource"
	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/mocks"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type DataSourceTestSuite struct {
	suite.Suite
	ctx context.Context
	key types.KlineKey
}

func (suite *DataSourceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.key = types.KlineKey{Exchange: types.ExchangeBinance, Symbol: "BTCUSDT", Interval: types.Interval1m}
}

func (suite *DataSourceTestSuite) TestMemorySourceHalfOpenRange() {
	source := datasource.NewMemorySource()
	source.Put(suite.key, mocks.Linear(epoch, time.Minute, 10, 100, 1))

	klines, err := source.Fetch(suite.ctx, suite.key, types.TimeRange{
		Start: epoch.Add(2 * time.Minute),
		End:   epoch.Add(5 * time.Minute),
	})
	suite.Require().NoError(err)
	suite.Require().Len(klines, 3)
	suite.Equal(epoch.Add(2*time.Minute), klines[0].Time)
	suite.Equal(104.0, klines[2].Close)
}

func (suite *DataSourceTestSuite) TestMemorySourceSortsOnPut() {
	bars := mocks.Linear(epoch, time.Minute, 3, 100, 1)
	bars[0], bars[2] = bars[2], bars[0]

	source := datasource.NewMemorySource()
	source.Put(suite.key, bars)

	klines, err := source.Fetch(suite.ctx, suite.key, types.TimeRange{Start: epoch, End: epoch.Add(time.Hour)})
	suite.Require().NoError(err)
	suite.Require().Len(klines, 3)
	suite.True(klines[0].Time.Before(klines[1].Time))
	suite.True(klines[1].Time.Before(klines[2].Time))
}

func (suite *DataSourceTestSuite) TestMemorySourceUnknownKey() {
	source := datasource.NewMemorySource()

	klines, err := source.Fetch(suite.ctx, suite.key, types.TimeRange{Start: epoch, End: epoch.Add(time.Hour)})
	suite.NoError(err)
	suite.Empty(klines)
}

func (suite *DataSourceTestSuite) TestMemorySourceCancelledContext() {
	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	_, err := datasource.NewMemorySource().Fetch(ctx, suite.key, types.TimeRange{Start: epoch, End: epoch.Add(time.Hour)})
	suite.ErrorIs(err, context.Canceled)
}

func (suite *DataSourceTestSuite) newDuckDB() *datasource.DuckDBSource {
	source, err := datasource.NewDuckDBSource("", logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.T().Cleanup(func() { _ = source.Close() })

	suite.Require().NoError(source.Write(suite.ctx, "BTCUSDT", mocks.Linear(epoch, time.Minute, 10, 100, 1)))

	return source
}

func (suite *DataSourceTestSuite) TestDuckDBFetchMinuteBars() {
	source := suite.newDuckDB()

	klines, err := source.Fetch(suite.ctx, suite.key, types.TimeRange{Start: epoch, End: epoch.Add(4 * time.Minute)})
	suite.Require().NoError(err)
	suite.Require().Len(klines, 4)
	suite.Equal(epoch, klines[0].Time)
	suite.Equal(103.0, klines[3].Close)
}

func (suite *DataSourceTestSuite) TestDuckDBAggregatesIntervals() {
	source := suite.newDuckDB()

	key := suite.key
	key.Interval = types.Interval5m

	klines, err := source.Fetch(suite.ctx, key, types.TimeRange{Start: epoch, End: epoch.Add(10 * time.Minute)})
	suite.Require().NoError(err)
	suite.Require().Len(klines, 2)

	first := klines[0]
	suite.Equal(epoch, first.Time)
	suite.Equal(100.0, first.Open)
	suite.Equal(104.0, first.Close)
	suite.Equal(105.0, first.High)
	suite.Equal(99.0, first.Low)
	suite.Equal(500.0, first.Volume)
	suite.Equal(epoch.Add(5*time.Minute), klines[1].Time)
}

func (suite *DataSourceTestSuite) TestDuckDBCount() {
	source := suite.newDuckDB()

	count, err := source.Count(suite.ctx, "BTCUSDT", types.TimeRange{Start: epoch, End: epoch.Add(time.Hour)})
	suite.Require().NoError(err)
	suite.Equal(10, count)

	count, err = source.Count(suite.ctx, "ETHUSDT", types.TimeRange{Start: epoch, End: epoch.Add(time.Hour)})
	suite.Require().NoError(err)
	suite.Equal(0, count)
}

func (suite *DataSourceTestSuite) TestDuckDBInvalidInterval() {
	source := suite.newDuckDB()

	key := suite.key
	key.Interval = types.Interval("7x")

	_, err := source.Fetch(suite.ctx, key, types.TimeRange{Start: epoch, End: epoch.Add(time.Hour)})
	suite.Error(err)
}

func TestDataSourceSuite(t *testing.T) {
	suite.Run(t, new(DataSourceTestSuite))
}
