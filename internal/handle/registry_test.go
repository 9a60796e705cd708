package handle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

type RegistryTestSuite struct {
	suite.Suite
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (suite *RegistryTestSuite) TestDefaultHandles() {
	r := NewRegistry[string]("kline_1", 4)

	suite.Equal("kline_1_default_output", r.Default().ID())
	suite.Equal("kline_1_strategy_output", r.Strategy().ID())
	suite.Equal([]string{"kline_1_default_output", "kline_1_strategy_output"}, r.IDs())
}

func (suite *RegistryTestSuite) TestSendWithoutListeners() {
	r := NewRegistry[string]("n", 4)

	suite.ErrorIs(r.Default().Send("x"), ErrNoListeners)
	suite.True(errors.HasCode(r.Default().Send("x"), errors.ErrCodeNoListeners))
}

func (suite *RegistryTestSuite) TestSubscribeCountsConnections() {
	r := NewRegistry[string]("n", 4)
	r.Add("n_case_1")

	_, err := r.Subscribe("n_case_1", "a")
	suite.NoError(err)
	_, err = r.Subscribe("n_case_1", "b")
	suite.NoError(err)

	out, err := r.Get("n_case_1")
	suite.NoError(err)
	suite.Equal(2, out.ConnectCount())
	suite.Same(out, r.Add("n_case_1"))

	_, err = r.Subscribe("missing", "a")
	suite.True(errors.HasCode(err, errors.ErrCodeHandleNotFound))
}

func (suite *RegistryTestSuite) TestSendAllSkipsStrategyHandle() {
	r := NewRegistry[string]("n", 4)
	r.Add("n_case_1")

	def, _ := r.Subscribe(DefaultHandleID("n"), "down")
	caseSub, _ := r.Subscribe("n_case_1", "down")
	strategySub, _ := r.Subscribe(StrategyHandleID("n"), "strategy")

	suite.Equal(2, r.SendAll("tick"))
	suite.Equal(1, def.Len())
	suite.Equal(1, caseSub.Len())
	suite.Equal(0, strategySub.Len())
}

func (suite *RegistryTestSuite) TestCloseAll() {
	r := NewRegistry[string]("n", 4)
	sub, _ := r.Subscribe(DefaultHandleID("n"), "down")

	r.CloseAll()

	_, err := sub.Recv(context.Background())
	suite.True(IsClosed(err))
}
