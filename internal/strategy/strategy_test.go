package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/datasource"
	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/indicator"
	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/nodes"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/mocks"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type StrategyTestSuite struct {
	suite.Suite
	ctx        context.Context
	cancel     context.CancelFunc
	source     *datasource.MemorySource
	strategies []*Strategy
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (suite *StrategyTestSuite) SetupTest() {
	suite.ctx, suite.cancel = context.WithTimeout(context.Background(), 10*time.Second)
	suite.source = datasource.NewMemorySource()
	suite.source.Put(btcMinute, mocks.Linear(epoch, time.Minute, 10, 100, 1))
	suite.strategies = nil
}

func (suite *StrategyTestSuite) TearDownTest() {
	for _, s := range suite.strategies {
		_ = s.Stop(context.Background())
	}

	suite.cancel()
}

func (suite *StrategyTestSuite) newStrategy(cfg *config.StrategyConfig) *Strategy {
	s, err := New(cfg, Deps{
		Source:          suite.source,
		Calculator:      indicator.NewDefaultRegistry(),
		Trading:         nil,
		Now:             func() time.Time { return epoch.Add(time.Hour) },
		HandleCapacity:  256,
		CommandCapacity: 32,
		StopGrace:       time.Second,
		StopTimeout:     2 * time.Second,
		Logger:          logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	suite.strategies = append(suite.strategies, s)

	return s
}

func (suite *StrategyTestSuite) ready(cfg *config.StrategyConfig) *Strategy {
	s := suite.newStrategy(cfg)
	suite.Require().NoError(s.Check(suite.ctx))
	suite.Require().NoError(s.Init(suite.ctx))

	return s
}

func (suite *StrategyTestSuite) output(s *Strategy, id types.NodeID) *nodes.OutputNode {
	n, ok := s.Graph().Node(id)
	suite.Require().True(ok)

	out, ok := n.(*nodes.OutputNode)
	suite.Require().True(ok)

	return out
}

func startNode(speed int) config.NodeConfig {
	return config.NodeConfig{
		ID:     "start",
		Name:   "Start",
		Type:   config.NodeTypeStart,
		Params: map[string]any{"initial_balance": 1000, "play_speed": speed},
	}
}

func klineNode(symbols ...string) config.NodeConfig {
	configs := make([]any, len(symbols))
	for i, s := range symbols {
		configs[i] = map[string]any{"config_id": i, "symbol": s, "interval": "1m"}
	}

	return config.NodeConfig{
		ID:   "kline",
		Name: "Klines",
		Type: config.NodeTypeKline,
		Params: map[string]any{
			"exchange":   "binance",
			"symbols":    configs,
			"start_time": "2024-01-01T00:00:00Z",
			"end_time":   "2024-01-01T00:10:00Z",
		},
	}
}

func indicatorNode(symbol string) config.NodeConfig {
	return config.NodeConfig{
		ID:   "ind",
		Name: "SMA 3",
		Type: config.NodeTypeIndicator,
		Params: map[string]any{
			"source":     map[string]any{"exchange": "binance", "symbol": symbol, "interval": "1m"},
			"indicators": []any{map[string]any{"config_id": 1, "config": map[string]any{"type": "ma", "period": 3}}},
		},
	}
}

// conditionNode takes case 1 when the SMA is above threshold.
func conditionNode(threshold float64) config.NodeConfig {
	return config.NodeConfig{
		ID:   "cond",
		Name: "SMA above",
		Type: config.NodeTypeIfElse,
		Params: map[string]any{
			"cases": []any{
				map[string]any{"case_id": 1, "conditions": []any{
					map[string]any{"left": map[string]any{"node_id": "ind", "config_id": 1}, "op": "gt", "right": map[string]any{"value": threshold}},
				}},
			},
		},
	}
}

// scenario is Start -> Kline -> Indicator -> IfElse -> {case_out, else_out}.
// The SMA of the linear series crosses 104.5 at index 6.
func scenario() *config.StrategyConfig {
	return &config.StrategyConfig{
		ID:            "scenario",
		Name:          "SMA branch",
		EngineVersion: "main",
		Nodes: []config.NodeConfig{
			startNode(0),
			klineNode("BTCUSDT"),
			indicatorNode("BTCUSDT"),
			conditionNode(104.5),
			outputNode("case_out"),
			outputNode("else_out"),
		},
		Edges: []config.EdgeConfig{
			edge("start", "kline"),
			edge("kline", "ind"),
			edge("ind", "cond"),
			{Source: "cond", SourceHandle: handle.ConfigHandleID("cond", 1), Target: "case_out"},
			{Source: "cond", SourceHandle: handle.ElseHandleID("cond"), Target: "else_out"},
		},
		Variables: nil,
	}
}

func (suite *StrategyTestSuite) TestInitLoadsHistoryAndStartsNodes() {
	s := suite.newStrategy(scenario())
	suite.Equal(StateCreated, s.State())

	suite.Require().NoError(s.Check(suite.ctx))
	suite.Equal(StateCheckPassed, s.State())

	suite.Require().NoError(s.Init(suite.ctx))
	suite.Equal(StateReady, s.State())
	suite.Equal(10, s.SignalCount())
	suite.Equal(10, s.Stats().SignalCount())
	suite.Equal(-1, s.PlayIndex())
	suite.True(decimal.NewFromInt(1000).Equal(s.Trading().Balance()))

	for id, state := range s.NodeStates() {
		suite.Equal(node.StateRunning, state, "node %s", id)
	}
}

func (suite *StrategyTestSuite) TestExactlyOneBranchFiresEveryIndex() {
	s := suite.ready(scenario())
	suite.Require().NoError(s.Play(suite.ctx))
	suite.Equal(StatePlayComplete, s.State())
	suite.Equal(9, s.PlayIndex())

	caseFirings := suite.output(s, "case_out").Firings()
	elseFirings := suite.output(s, "else_out").Firings()
	suite.Require().Len(caseFirings, 10)
	suite.Require().Len(elseFirings, 10)

	for i := range caseFirings {
		suite.Equal(i, caseFirings[i].PlayIndex)
		suite.Equal(i, elseFirings[i].PlayIndex)
		suite.NotEqual(caseFirings[i].Fired, elseFirings[i].Fired, "play index %d", i)
	}

	suite.Equal(4, suite.output(s, "case_out").FiredCount())
	suite.Equal(6, suite.output(s, "else_out").FiredCount())
	suite.Len(s.Stats().Snapshots(), 10)
}

func (suite *StrategyTestSuite) TestPlayOneStepsAndPauses() {
	s := suite.ready(scenario())

	suite.Require().NoError(s.PlayOne(suite.ctx))
	suite.Equal(StatePausing, s.State())
	suite.Equal(0, s.PlayIndex())
	suite.Len(suite.output(s, "else_out").Firings(), 1)

	suite.Require().NoError(s.PlayOne(suite.ctx))
	suite.Equal(1, s.PlayIndex())

	suite.Require().NoError(s.Play(suite.ctx))
	suite.Equal(StatePlayComplete, s.State())
	suite.Len(suite.output(s, "case_out").Firings(), 10)
}

func (suite *StrategyTestSuite) TestPlayOneNeedsAnInitializedStrategy() {
	s := suite.newStrategy(scenario())

	err := s.PlayOne(suite.ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyNotReady))
	suite.Equal(StateCreated, s.State())
}

func (suite *StrategyTestSuite) TestPauseStopsThePlayLoop() {
	cfg := scenario()
	cfg.Nodes[0] = startNode(50)

	s := suite.ready(cfg)
	suite.Equal(50, s.PlaySpeed())

	done := make(chan error, 1)

	go func() { done <- s.Play(suite.ctx) }()

	suite.Eventually(func() bool { return s.PlayIndex() >= 1 }, 2*time.Second, 5*time.Millisecond)
	suite.Require().NoError(s.Pause(suite.ctx))

	select {
	case err := <-done:
		suite.Require().NoError(err)
	case <-suite.ctx.Done():
		suite.FailNow("play loop did not return after pause")
	}

	suite.Equal(StatePausing, s.State())
	suite.Less(s.PlayIndex(), 9)

	s.SetPlaySpeed(0)
	suite.Require().NoError(s.Play(suite.ctx))
	suite.Equal(StatePlayComplete, s.State())
	suite.Len(suite.output(s, "case_out").Firings(), 10)
}

func (suite *StrategyTestSuite) TestResetReplaysFromTheStart() {
	s := suite.ready(scenario())
	suite.Require().NoError(s.Play(suite.ctx))

	suite.Require().NoError(s.Reset(suite.ctx))
	suite.Equal(StateReady, s.State())
	suite.Equal(-1, s.PlayIndex())
	suite.Empty(suite.output(s, "case_out").Firings())
	suite.Empty(s.Stats().Snapshots())
	suite.Equal(10, s.SignalCount(), "history survives a reset")

	suite.Require().NoError(s.Play(suite.ctx))
	suite.Equal(4, suite.output(s, "case_out").FiredCount())
	suite.Equal(6, suite.output(s, "else_out").FiredCount())
}

func (suite *StrategyTestSuite) TestOrdersFlowIntoStats() {
	cfg := scenario()
	cfg.Nodes = append(cfg.Nodes, config.NodeConfig{
		ID:   "buy",
		Name: "Buy",
		Type: config.NodeTypeFuturesOrder,
		Params: map[string]any{
			"orders": []any{
				map[string]any{"config_id": 0, "exchange": "binance", "symbol": "BTCUSDT", "side": "BUY", "quantity": 1},
			},
		},
	})
	cfg.Edges = append(cfg.Edges, config.EdgeConfig{Source: "cond", SourceHandle: handle.ConfigHandleID("cond", 1), Target: "buy"})

	s := suite.ready(cfg)
	suite.Require().NoError(s.Play(suite.ctx))

	position, ok := s.Trading().Position("BTCUSDT")
	suite.Require().True(ok)
	suite.True(decimal.NewFromInt(4).Equal(position.Quantity))
	suite.Len(s.Trading().Orders(), 4)

	suite.Eventually(func() bool {
		return s.Stats().Summary().FilledOrders == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func (suite *StrategyTestSuite) TestRejectedOrderStillClosesTheCycle() {
	cfg := scenario()
	cfg.Nodes = append(cfg.Nodes,
		config.NodeConfig{
			ID:   "buy",
			Name: "Buy",
			Type: config.NodeTypeFuturesOrder,
			Params: map[string]any{
				"orders": []any{
					map[string]any{"config_id": 0, "exchange": "binance", "symbol": "BTCUSDT", "side": "BUY", "quantity": 1000},
				},
			},
		},
		outputNode("after_buy"),
	)
	cfg.Edges = append(cfg.Edges,
		config.EdgeConfig{Source: "cond", SourceHandle: handle.ConfigHandleID("cond", 1), Target: "buy"},
		edge("buy", "after_buy"),
	)

	s := suite.ready(cfg)
	events := s.Events("test")

	ctx, cancel := context.WithTimeout(suite.ctx, 3*time.Second)
	defer cancel()

	suite.Require().NoError(s.Play(ctx))
	suite.Equal(StatePlayComplete, s.State())
	suite.Equal(9, s.PlayIndex())

	firings := suite.output(s, "after_buy").Firings()
	suite.Require().Len(firings, 10)
	suite.Equal(0, suite.output(s, "after_buy").FiredCount())

	_, ok := s.Trading().Position("BTCUSDT")
	suite.False(ok)

	rejected := 0

	suite.Eventually(func() bool {
		for {
			event, ok := events.TryRecv()
			if !ok {
				return rejected == 4
			}

			payload, isLog := event.Payload.(node.LogPayload)
			if isLog && event.Kind == node.EventRunningError && payload.Code == errors.ErrCodeOrderFailed {
				rejected++
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func (suite *StrategyTestSuite) TestEventsCarryPlayFinished() {
	s := suite.newStrategy(scenario())
	events := s.Events("test")

	suite.Require().NoError(s.Check(suite.ctx))
	suite.Require().NoError(s.Init(suite.ctx))
	suite.Require().NoError(s.Play(suite.ctx))

	var kinds []node.EventKind

	for {
		event, ok := events.TryRecv()
		if !ok {
			break
		}

		kinds = append(kinds, event.Kind)
	}

	suite.Contains(kinds, node.EventStateChanged)
	suite.Contains(kinds, node.EventPlayFinished)
}

func (suite *StrategyTestSuite) TestStopStopsEveryNode() {
	s := suite.ready(scenario())
	suite.Require().NoError(s.PlayOne(suite.ctx))

	events := s.Events("test")

	suite.Require().NoError(s.Stop(suite.ctx))
	suite.Equal(StateStopped, s.State())

	for id, state := range s.NodeStates() {
		suite.Equal(node.StateStopped, state, "node %s", id)
	}

	stopped := false

	for {
		event, err := events.Recv(suite.ctx)
		if err != nil {
			suite.True(handle.IsClosed(err))

			break
		}

		if payload, ok := event.Payload.(StatePayload); ok && payload.To == StateStopped {
			stopped = true
		}
	}

	suite.True(stopped)
	suite.NoError(s.Stop(suite.ctx), "stop is idempotent")
}

func (suite *StrategyTestSuite) TestCycleStartsNoNodes() {
	cfg := document(
		[]config.NodeConfig{outputNode("a"), outputNode("b"), outputNode("c")},
		[]config.EdgeConfig{edge("a", "b"), edge("b", "c"), edge("c", "a")},
	)

	s := suite.newStrategy(cfg)

	err := s.Check(suite.ctx)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeGraphCycle))
	suite.Equal(StateFailed, s.State())
	suite.True(errors.HasCode(s.LastError(), errors.ErrCodeGraphCycle))

	suite.Error(s.Init(suite.ctx))

	for id, state := range s.NodeStates() {
		suite.Equal(node.StateCreated, state, "node %s", id)
	}

	suite.NoError(s.Stop(suite.ctx))
	suite.Equal(StateFailed, s.State())
}

func (suite *StrategyTestSuite) TestCheckRejectsUnconnectedSources() {
	cfg := scenario()
	cfg.Nodes[2] = indicatorNode("ETHUSDT")

	err := suite.newStrategy(cfg).Check(suite.ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	cfg = scenario()
	cfg.Edges = cfg.Edges[:2]
	cfg.Edges = append(cfg.Edges, edge("kline", "cond"))

	err = suite.newStrategy(cfg).Check(suite.ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *StrategyTestSuite) TestCheckRejectsOtherEngineVersions() {
	cfg := scenario()
	cfg.EngineVersion = "v9.0.0"

	s := suite.newStrategy(cfg)
	suite.True(errors.HasCode(s.Check(suite.ctx), errors.ErrCodeVersionMismatch))
	suite.Equal(StateFailed, s.State())
}

func (suite *StrategyTestSuite) TestSeriesOfDifferentLengthsFailInit() {
	suite.source.Put(ethMinute, mocks.Linear(epoch, time.Minute, 9, 10, 1))

	cfg := scenario()
	cfg.Nodes[1] = klineNode("BTCUSDT", "ETHUSDT")

	s := suite.newStrategy(cfg)
	suite.Require().NoError(s.Check(suite.ctx))

	err := s.Init(suite.ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeKlineLengthMismatch))
	suite.Equal(StateFailed, s.State())
}

func (suite *StrategyTestSuite) TestMissingHistoryFailsInit() {
	cfg := scenario()
	cfg.Nodes[1] = klineNode("DOGEUSDT")
	cfg.Nodes[2] = indicatorNode("DOGEUSDT")

	s := suite.newStrategy(cfg)
	suite.Require().NoError(s.Check(suite.ctx))

	err := s.Init(suite.ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeNodeInitFailed))
	suite.Equal(StateFailed, s.State())
	suite.Equal(node.StateFailed, s.NodeStates()["kline"])
	suite.Equal(node.StateReady, s.NodeStates()["start"], "init stops before any node starts")

	suite.Require().NoError(s.Stop(suite.ctx))
	suite.Equal(node.StateStopped, s.NodeStates()["start"])
	suite.Equal(node.StateFailed, s.NodeStates()["kline"])
}

func (suite *StrategyTestSuite) TestInvalidTriggerFailsTheStrategy() {
	s := suite.ready(scenario())
	suite.Require().NoError(s.Play(suite.ctx))

	suite.Error(s.Pause(suite.ctx))
	suite.Equal(StateFailed, s.State())
	suite.True(errors.IsInvalidStateTransition(s.LastError()))
}
