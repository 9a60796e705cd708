package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/protocol"
	"github.com/rxtech-lab/argo-graph/internal/stats"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/mocks"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

var (
	btcMinute = types.KlineKey{Exchange: types.ExchangeBinance, Symbol: "BTCUSDT", Interval: types.Interval1m}
	btcFive   = types.KlineKey{Exchange: types.ExchangeBinance, Symbol: "BTCUSDT", Interval: types.Interval5m}
	ethMinute = types.KlineKey{Exchange: types.ExchangeBinance, Symbol: "ETHUSDT", Interval: types.Interval1m}
)

type ContextTestSuite struct {
	suite.Suite
	ctx   context.Context
	watch *node.PlayIndexWatch
	c     *strategyContext
}

func TestContextSuite(t *testing.T) {
	suite.Run(t, new(ContextTestSuite))
}

func (suite *ContextTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.watch = node.NewPlayIndexWatch()
	suite.c = newStrategyContext(suite.watch, stats.NewTracker(logger.NewNopLogger()), logger.NewNopLogger())
	suite.c.setKeys([]types.KlineKey{btcFive, btcMinute}, nil)

	_, err := suite.c.InitKlineData(suite.ctx, protocol.KlineData{Key: btcMinute, Klines: mocks.Linear(epoch, time.Minute, 10, 100, 1)})
	suite.Require().NoError(err)

	_, err = suite.c.InitKlineData(suite.ctx, protocol.KlineData{Key: btcFive, Klines: mocks.Linear(epoch, 5*time.Minute, 2, 200, 10)})
	suite.Require().NoError(err)
}

func (suite *ContextTestSuite) TestKeysAndMinInterval() {
	keys, err := suite.c.GetStrategyKeys(suite.ctx, protocol.Empty{})
	suite.Require().NoError(err)
	suite.Equal([]types.KlineKey{btcMinute, btcFive}, keys.Klines)

	interval, err := suite.c.GetMinInterval(suite.ctx, protocol.Empty{})
	suite.Require().NoError(err)
	suite.Equal(types.Interval1m, interval)
	suite.Equal([]types.KlineKey{btcMinute}, suite.c.minIntervalKeys())
}

func (suite *ContextTestSuite) TestCurrentTimeFollowsPlayIndex() {
	_, err := suite.c.GetCurrentTime(suite.ctx, protocol.Empty{})
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyNotReady))

	suite.watch.Set(7)

	now, err := suite.c.GetCurrentTime(suite.ctx, protocol.Empty{})
	suite.Require().NoError(err)
	suite.Equal(epoch.Add(7*time.Minute), now)
}

func (suite *ContextTestSuite) TestMinIntervalSlicesByIndex() {
	bars, err := suite.c.GetKlineData(suite.ctx, protocol.KlineQuery{
		Key:       btcMinute,
		PlayIndex: optional.Some(7),
		Limit:     optional.Some(2),
	})
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal(106.0, bars[0].Close)
	suite.Equal(107.0, bars[1].Close)

	_, err = suite.c.GetKlineData(suite.ctx, protocol.KlineQuery{Key: btcMinute, PlayIndex: optional.Some(10), Limit: optional.None[int]()})
	suite.True(errors.HasCode(err, errors.ErrCodeCacheIndexOutOfRange))
}

func (suite *ContextTestSuite) TestCoarserIntervalSlicesByTime() {
	query := func(idx int) float64 {
		bars, err := suite.c.GetKlineData(suite.ctx, protocol.KlineQuery{
			Key:       btcFive,
			PlayIndex: optional.Some(idx),
			Limit:     optional.Some(1),
		})
		suite.Require().NoError(err)
		suite.Require().Len(bars, 1)

		return bars[0].Close
	}

	suite.Equal(200.0, query(3))
	suite.Equal(210.0, query(5))
	suite.Equal(210.0, query(9))

	all, err := suite.c.GetKlineData(suite.ctx, protocol.KlineQuery{Key: btcFive, PlayIndex: optional.None[int](), Limit: optional.None[int]()})
	suite.Require().NoError(err)
	suite.Len(all, 2)
}

func (suite *ContextTestSuite) TestSignalCount() {
	count, err := suite.c.signalCount()
	suite.Require().NoError(err)
	suite.Equal(10, count)

	suite.c.setKeys([]types.KlineKey{btcMinute, ethMinute}, nil)
	_, err = suite.c.InitKlineData(suite.ctx, protocol.KlineData{Key: ethMinute, Klines: mocks.Linear(epoch, time.Minute, 9, 10, 1)})
	suite.Require().NoError(err)

	_, err = suite.c.signalCount()
	suite.True(errors.HasCode(err, errors.ErrCodeKlineLengthMismatch))
}

func (suite *ContextTestSuite) TestCustomVariables() {
	_, err := suite.c.InitCustomVariableValue(suite.ctx, []types.CustomVariable{
		{Name: "n", ValueType: types.VariableValueTypeNumber, InitialValue: "10", Value: ""},
		{Name: "flag", ValueType: types.VariableValueTypeBoolean, InitialValue: "false", Value: ""},
	})
	suite.Require().NoError(err)

	update := func(name string, op protocol.VariableOp, value string) (string, error) {
		v, err := suite.c.UpdateCustomVariableValue(suite.ctx, protocol.VariableUpdate{Name: name, Op: op, Value: value})

		return v.Value, err
	}

	steps := []struct {
		op    protocol.VariableOp
		value string
		want  string
	}{
		{protocol.VariableOpAdd, "5", "15"},
		{protocol.VariableOpMultiply, "2", "30"},
		{protocol.VariableOpDivide, "4", "7.5"},
		{protocol.VariableOpSubtract, "0.5", "7"},
		{protocol.VariableOpSet, "42", "42"},
	}

	for _, step := range steps {
		got, err := update("n", step.op, step.value)
		suite.Require().NoError(err, "%s %s", step.op, step.value)
		suite.Equal(step.want, got)
	}

	_, err = update("n", protocol.VariableOpDivide, "0")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = update("n", protocol.VariableOpSet, "abc")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	got, err := update("flag", protocol.VariableOpSet, "true")
	suite.Require().NoError(err)
	suite.Equal("true", got)

	_, err = update("flag", protocol.VariableOpAdd, "1")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = update("missing", protocol.VariableOpSet, "1")
	suite.True(errors.HasCode(err, errors.ErrCodeVariableNotFound))

	reset, err := suite.c.ResetCustomVariableValue(suite.ctx, "n")
	suite.Require().NoError(err)
	suite.Equal("10", reset.Value)

	suite.c.reset()

	flag, err := suite.c.GetCustomVariableValue(suite.ctx, "flag")
	suite.Require().NoError(err)
	suite.Equal("false", flag.Value)
}

func (suite *ContextTestSuite) TestSysVariables() {
	_, err := suite.c.UpdateSysVariableValue(suite.ctx, types.SysVariable{Name: types.SysVariableTotalOrders, Symbol: "", Value: "3", UpdatedAt: epoch})
	suite.Require().NoError(err)

	_, err = suite.c.UpdateSysVariableValue(suite.ctx, types.SysVariable{Name: types.SysVariableTotalOrders, Symbol: "", Value: "4", UpdatedAt: epoch})
	suite.Require().NoError(err)

	vars := suite.c.SysVariables()
	suite.Require().Len(vars, 1)
	suite.Equal("4", vars[0].Value)

	suite.c.reset()
	suite.Empty(suite.c.SysVariables())
}
