package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/mocks"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

type StoreTestSuite struct {
	suite.Suite
	key   types.KlineKey
	clock time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	suite.key = types.KlineKey{Exchange: types.ExchangeBinance, Symbol: "BTCUSDT", Interval: types.Interval1m}
	suite.clock = epoch
}

func (suite *StoreTestSuite) newStore(opts ...StoreOption) *KlineStore {
	opts = append(opts, WithClock(func() time.Time { return suite.clock }))

	return NewKlineStore(opts...)
}

func (suite *StoreTestSuite) TestMissingKey() {
	store := suite.newStore()

	_, err := store.Slice(suite.key, optional.None[int](), optional.None[int]())
	suite.True(errors.HasCode(err, errors.ErrCodeCacheKeyNotFound))

	_, err = store.Len(suite.key)
	suite.True(errors.HasCode(err, errors.ErrCodeCacheKeyNotFound))

	_, err = store.Last(suite.key)
	suite.True(errors.HasCode(err, errors.ErrCodeCacheKeyNotFound))
}

func (suite *StoreTestSuite) TestAddKeyCreatesEmptySeries() {
	store := suite.newStore()
	store.AddKey(suite.key)

	n, err := store.Len(suite.key)
	suite.NoError(err)
	suite.Equal(0, n)

	_, err = store.Slice(suite.key, optional.Some(0), optional.None[int]())
	suite.True(errors.HasCode(err, errors.ErrCodeCacheIndexOutOfRange))

	_, err = store.Last(suite.key)
	suite.True(errors.HasCode(err, errors.ErrCodeCacheIndexOutOfRange))
}

func (suite *StoreTestSuite) TestInitAppendUpdate() {
	store := suite.newStore()
	bars := mocks.Linear(epoch, time.Minute, 5, 100, 1)

	store.Init(suite.key, bars[:3])
	store.Append(suite.key, bars[2:])

	n, _ := store.Len(suite.key)
	suite.Equal(5, n)

	replaced := bars[4]
	replaced.Close = 1
	store.Update(suite.key, replaced)

	last, err := store.Last(suite.key)
	suite.NoError(err)
	suite.Equal(1.0, last.Close)

	store.Init(suite.key, bars[:1])
	n, _ = store.Len(suite.key)
	suite.Equal(1, n)
}

func (suite *StoreTestSuite) TestSliceByTime() {
	store := suite.newStore()
	store.Append(suite.key, mocks.Linear(epoch, time.Minute, 6, 0, 1))

	got, err := store.SliceByTime(suite.key, epoch.Add(4*time.Minute), optional.Some(2))
	suite.NoError(err)
	suite.Len(got, 2)
	suite.Equal(3.0, got[0].Close)
	suite.Equal(4.0, got[1].Close)

	_, err = store.SliceByTime(suite.key, epoch.Add(90*time.Second), optional.None[int]())
	suite.True(errors.HasCode(err, errors.ErrCodeCacheTimeNotFound))
}

func (suite *StoreTestSuite) TestSliceAtOrBefore() {
	store := suite.newStore()
	store.Append(suite.key, mocks.Linear(epoch, time.Minute, 6, 0, 1))

	got, err := store.SliceAtOrBefore(suite.key, epoch.Add(150*time.Second), optional.Some(1))
	suite.NoError(err)
	suite.Require().Len(got, 1)
	suite.Equal(2.0, got[0].Close)

	got, err = store.SliceAtOrBefore(suite.key, epoch.Add(time.Hour), optional.Some(1))
	suite.NoError(err)
	suite.Equal(5.0, got[0].Close)

	_, err = store.SliceAtOrBefore(suite.key, epoch.Add(-time.Second), optional.None[int]())
	suite.True(errors.HasCode(err, errors.ErrCodeCacheTimeNotFound))
}

func (suite *StoreTestSuite) TestMaxSizeOption() {
	store := suite.newStore(WithMaxSize(2))
	store.Append(suite.key, mocks.Linear(epoch, time.Minute, 5, 0, 1))

	got, err := store.Slice(suite.key, optional.None[int](), optional.None[int]())
	suite.NoError(err)
	suite.Len(got, 2)
	suite.Equal(3.0, got[0].Close)
}

func (suite *StoreTestSuite) TestClearWhereKeepsKeys() {
	store := suite.newStore()
	other := suite.key
	other.Interval = types.Interval1h

	store.Append(suite.key, mocks.Linear(epoch, time.Minute, 3, 0, 1))
	store.Append(other, mocks.Linear(epoch, time.Hour, 3, 0, 1))

	store.ClearWhere(func(k types.KlineKey) bool { return k.Interval != types.Interval1m })

	suite.Equal(map[types.KlineKey]int{suite.key: 3, other: 0}, store.Lengths())
	suite.True(store.Has(other))
	suite.ElementsMatch([]types.KlineKey{suite.key, other}, store.Keys())
}

func (suite *StoreTestSuite) TestPruneAndRemove() {
	store := suite.newStore(WithTTL(time.Minute))
	other := suite.key
	other.Symbol = "ETHUSDT"

	store.AddKey(suite.key)
	suite.clock = epoch.Add(30 * time.Second)
	store.AddKey(other)

	suite.clock = epoch.Add(80 * time.Second)
	suite.Equal(1, store.Prune())
	suite.False(store.Has(suite.key))
	suite.True(store.Has(other))

	store.Remove(other)
	suite.False(store.Has(other))

	store.AddKey(suite.key)
	store.Reset()
	suite.Empty(store.Keys())
}

func (suite *StoreTestSuite) TestConcurrentWritersKeepInvariant() {
	store := suite.newStore()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			for i := 0; i < 50; i++ {
				bar := types.Kline{Time: epoch.Add(time.Duration((i*7+w)%100) * time.Minute), Close: float64(w)}
				if i%2 == 0 {
					store.Update(suite.key, bar)
				} else {
					store.Append(suite.key, []types.Kline{bar})
				}
			}
		}(w)
	}

	wg.Wait()

	all, err := store.Slice(suite.key, optional.None[int](), optional.None[int]())
	suite.NoError(err)

	for i := 1; i < len(all); i++ {
		suite.True(all[i].Time.After(all[i-1].Time))
	}
}

func (suite *StoreTestSuite) TestIndicatorStore() {
	store := NewIndicatorStore()
	key := types.IndicatorKey{KlineKey: suite.key, Config: types.IndicatorConfig{Type: types.IndicatorTypeMA, Period: 3}}

	store.Append(key, []types.IndicatorValue{{Time: epoch, Value: 1}, {Time: epoch, Value: 2}})

	last, err := store.Last(key)
	suite.NoError(err)
	suite.Equal(2.0, last.Value)
}
