package cache

import (
	"math/rand"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

type sample struct {
	t time.Time
	v float64
}

func (s sample) Timestamp() time.Time { return s.t }

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int, v float64) sample {
	return sample{t: epoch.Add(time.Duration(sec) * time.Second), v: v}
}

type EntryTestSuite struct {
	suite.Suite
	now time.Time
}

func TestEntrySuite(t *testing.T) {
	suite.Run(t, new(EntryTestSuite))
}

func (suite *EntryTestSuite) SetupTest() {
	suite.now = epoch
}

func (suite *EntryTestSuite) newEntry(maxSize int) *Entry[sample] {
	return NewEntry[sample]("test", maxSize, 0, suite.now)
}

func (suite *EntryTestSuite) pairs(e *Entry[sample]) [][2]float64 {
	all, err := e.Slice(optional.None[int](), optional.None[int]())
	suite.Require().NoError(err)

	out := make([][2]float64, len(all))
	for i, p := range all {
		out[i] = [2]float64{float64(p.t.Sub(epoch) / time.Second), p.v}
	}

	return out
}

func (suite *EntryTestSuite) assertOrdered(e *Entry[sample]) {
	for i := 1; i < len(e.data); i++ {
		suite.True(e.data[i].t.After(e.data[i-1].t), "index %d not strictly ascending", i)
	}
}

func (suite *EntryTestSuite) TestAppendMergesAndDeduplicates() {
	e := suite.newEntry(0)
	e.Append([]sample{at(100, 1), at(200, 2)}, suite.now)
	e.Append([]sample{at(150, 9), at(200, 5)}, suite.now)

	suite.Equal([][2]float64{{100, 1}, {150, 9}, {200, 5}}, suite.pairs(e))
}

func (suite *EntryTestSuite) TestAppendLastWriteWinsWithinBatch() {
	e := suite.newEntry(0)
	e.Append([]sample{at(10, 1), at(5, 2), at(10, 3), at(5, 4)}, suite.now)

	suite.Equal([][2]float64{{5, 4}, {10, 3}}, suite.pairs(e))
}

func (suite *EntryTestSuite) TestAppendFastPath() {
	e := suite.newEntry(0)
	e.Append([]sample{at(1, 1), at(2, 2)}, suite.now)
	e.Append([]sample{at(3, 3), at(4, 4)}, suite.now)

	suite.Equal([][2]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}}, suite.pairs(e))
}

func (suite *EntryTestSuite) TestUpdateReplacesLastOnEqualTimestamp() {
	e := suite.newEntry(0)
	e.Append([]sample{at(1, 1), at(2, 2)}, suite.now)

	e.Update(at(2, 7), suite.now)
	suite.Equal([][2]float64{{1, 1}, {2, 7}}, suite.pairs(e))

	e.Update(at(3, 3), suite.now)
	suite.Equal([][2]float64{{1, 1}, {2, 7}, {3, 3}}, suite.pairs(e))
}

func (suite *EntryTestSuite) TestUpdateOlderPointKeepsOrder() {
	e := suite.newEntry(0)
	e.Append([]sample{at(1, 1), at(3, 3)}, suite.now)

	e.Update(at(2, 2), suite.now)
	e.Update(at(1, 9), suite.now)
	suite.Equal([][2]float64{{1, 9}, {2, 2}, {3, 3}}, suite.pairs(e))
}

func (suite *EntryTestSuite) TestUpdateOnEmptyEntry() {
	e := suite.newEntry(0)
	e.Update(at(5, 5), suite.now)

	last, ok := e.Last()
	suite.True(ok)
	suite.Equal(5.0, last.v)
}

func (suite *EntryTestSuite) TestMaxSizeEvictsOldest() {
	e := suite.newEntry(3)
	for i := 0; i < 5; i++ {
		e.Update(at(i, float64(i)), suite.now)
	}

	suite.Equal([][2]float64{{2, 2}, {3, 3}, {4, 4}}, suite.pairs(e))

	e.Append([]sample{at(10, 10), at(0, 0)}, suite.now)
	suite.Equal([][2]float64{{3, 3}, {4, 4}, {10, 10}}, suite.pairs(e))
}

func (suite *EntryTestSuite) TestRandomSequencesStayOrdered() {
	rng := rand.New(rand.NewSource(1))
	e := suite.newEntry(0)
	latest := map[int]float64{}

	for round := 0; round < 200; round++ {
		if rng.Intn(2) == 0 {
			batch := make([]sample, rng.Intn(5)+1)
			for i := range batch {
				sec := rng.Intn(50)
				batch[i] = at(sec, float64(round*10+i))
				latest[sec] = batch[i].v
			}

			e.Append(batch, suite.now)
		} else {
			sec := rng.Intn(50)
			e.Update(at(sec, float64(round)), suite.now)
			latest[sec] = float64(round)
		}

		suite.assertOrdered(e)
	}

	suite.Equal(len(latest), e.Len())
	for _, p := range e.data {
		suite.Equal(latest[int(p.t.Sub(epoch)/time.Second)], p.v)
	}
}

func (suite *EntryTestSuite) sixElements() *Entry[sample] {
	e := suite.newEntry(0)
	for i := 0; i < 6; i++ {
		e.Update(at(i, float64(i)), suite.now)
	}

	return e
}

func (suite *EntryTestSuite) values(points []sample) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.v
	}

	return out
}

func (suite *EntryTestSuite) TestSliceIndexAndLimit() {
	e := suite.sixElements()

	got, err := e.Slice(optional.Some(4), optional.Some(2))
	suite.NoError(err)
	suite.Equal([]float64{3, 4}, suite.values(got))

	got, err = e.Slice(optional.Some(1), optional.Some(10))
	suite.NoError(err)
	suite.Equal([]float64{0, 1}, suite.values(got))

	got, err = e.Slice(optional.Some(2), optional.Some(0))
	suite.NoError(err)
	suite.Empty(got)
}

func (suite *EntryTestSuite) TestSliceIndexOnly() {
	got, err := suite.sixElements().Slice(optional.Some(2), optional.None[int]())
	suite.NoError(err)
	suite.Equal([]float64{0, 1, 2}, suite.values(got))
}

func (suite *EntryTestSuite) TestSliceLimitOnly() {
	e := suite.sixElements()

	got, err := e.Slice(optional.None[int](), optional.Some(2))
	suite.NoError(err)
	suite.Equal([]float64{4, 5}, suite.values(got))

	for _, limit := range []int{6, 7, 100} {
		got, err = e.Slice(optional.None[int](), optional.Some(limit))
		suite.NoError(err)
		suite.Equal([]float64{0, 1, 2, 3, 4, 5}, suite.values(got))
	}
}

func (suite *EntryTestSuite) TestSliceAll() {
	got, err := suite.sixElements().Slice(optional.None[int](), optional.None[int]())
	suite.NoError(err)
	suite.Len(got, 6)
}

func (suite *EntryTestSuite) TestSliceOutOfRange() {
	for _, e := range []*Entry[sample]{suite.newEntry(0), suite.sixElements()} {
		for _, idx := range []int{e.Len(), e.Len() + 1, -1} {
			for _, limit := range []optional.Option[int]{optional.None[int](), optional.Some(1)} {
				_, err := e.Slice(optional.Some(idx), limit)
				suite.True(errors.HasCode(err, errors.ErrCodeCacheIndexOutOfRange), "idx=%d len=%d", idx, e.Len())
			}
		}
	}
}

func (suite *EntryTestSuite) TestSliceNegativeLimit() {
	_, err := suite.sixElements().Slice(optional.None[int](), optional.Some(-1))
	suite.True(errors.HasCode(err, errors.ErrCodeCacheInvalidLimit))
}

func (suite *EntryTestSuite) TestSliceReturnsCopy() {
	e := suite.sixElements()
	got, err := e.Slice(optional.None[int](), optional.None[int]())
	suite.NoError(err)

	got[0] = at(0, 99)
	again, _ := e.Slice(optional.Some(0), optional.None[int]())
	suite.Equal(0.0, again[0].v)
}

func (suite *EntryTestSuite) TestIndexOf() {
	e := suite.sixElements()

	idx, ok := e.IndexOf(epoch.Add(3 * time.Second))
	suite.True(ok)
	suite.Equal(3, idx)

	_, ok = e.IndexOf(epoch.Add(1500 * time.Millisecond))
	suite.False(ok)
}

func (suite *EntryTestSuite) TestExpired() {
	e := NewEntry[sample]("ttl", 0, time.Minute, epoch)
	suite.False(e.Expired(epoch.Add(30 * time.Second)))
	suite.True(e.Expired(epoch.Add(2 * time.Minute)))

	e.Update(at(1, 1), epoch.Add(2*time.Minute))
	suite.False(e.Expired(epoch.Add(2 * time.Minute)))

	suite.False(NewEntry[sample]("no-ttl", 0, 0, epoch).Expired(epoch.Add(time.Hour)))
}
