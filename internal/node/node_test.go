package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// recorder is a Behavior that records what the runtime asks of it.
type recorder struct {
	mu        sync.Mutex
	actions   []ActionKind
	events    []Event
	indices   []int
	failOn    map[ActionKind]error
	setupErr  error
	resets    int
	eventSeen chan Event
}

func newRecorder() *recorder {
	return &recorder{failOn: map[ActionKind]error{}, eventSeen: make(chan Event, 16)}
}

func (r *recorder) Setup(context.Context) error { return r.setupErr }

func (r *recorder) ExecuteAction(_ context.Context, action Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions = append(r.actions, action.Kind)

	return r.failOn[action.Kind]
}

func (r *recorder) HandleEvent(_ context.Context, event Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()

	r.eventSeen <- event

	return nil
}

func (r *recorder) HandlePlayIndex(_ context.Context, idx int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.indices = append(r.indices, idx)

	return nil
}

func (r *recorder) Reset(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resets++

	return nil
}

func (r *recorder) recordedActions() []ActionKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]ActionKind(nil), r.actions...)
}

type NodeTestSuite struct {
	suite.Suite
	ctx context.Context
}

func TestNodeSuite(t *testing.T) {
	suite.Run(t, new(NodeTestSuite))
}

func (suite *NodeTestSuite) SetupTest() {
	suite.ctx = context.Background()
}

func (suite *NodeTestSuite) newNode(lc Lifecycle, grace time.Duration) (*Base, *recorder) {
	base := NewBase(Config{
		StrategyID:     "s1",
		ID:             "n1",
		Name:           "test node",
		Kind:           KindIndicator,
		Table:          NewTable(KindIndicator, lc),
		Sender:         nil,
		PlayIndex:      NewPlayIndexWatch(),
		Signals:        handle.NewBroadcast[Event](8),
		HandleCapacity: 8,
		StopGrace:      grace,
		Logger:         logger.NewNopLogger(),
	})
	rec := newRecorder()
	base.Bind(rec)

	return base, rec
}

func (suite *NodeTestSuite) TestTableDefinedPairs() {
	table := NewTable(KindIndicator, Lifecycle{OnStartInit: []ActionKind{ActionCalculateIndicator}})

	for _, entry := range table.Transitions() {
		result, err := table.Transition(entry.From, Trigger{Kind: entry.Trigger, Reason: "r"})
		suite.Require().NoError(err, "%s + %s", entry.From, entry.Trigger)
		suite.Equal(entry.To, result.NewState)

		kinds := make([]ActionKind, len(result.Actions))
		for i, a := range result.Actions {
			kinds[i] = a.Kind
		}

		suite.Equal(entry.Actions, kinds, "%s + %s", entry.From, entry.Trigger)
	}
}

func (suite *NodeTestSuite) TestTableUndefinedPairsAreErrors() {
	table := NewTable(KindIndicator, Lifecycle{})
	defined := map[[2]string]bool{}

	for _, entry := range table.Transitions() {
		defined[[2]string{string(entry.From), string(entry.Trigger)}] = true
	}

	undefined := 0

	for _, state := range AllStates {
		for _, trigger := range AllTriggers {
			if defined[[2]string{string(state), string(trigger)}] {
				continue
			}

			undefined++

			_, err := table.Transition(state, Trigger{Kind: trigger})
			suite.True(errors.IsInvalidStateTransition(err), "%s + %s", state, trigger)
		}
	}

	suite.Positive(undefined)
}

func (suite *NodeTestSuite) TestFailFromEveryState() {
	table := NewTable(KindStart, Lifecycle{})

	for _, state := range AllStates {
		result, err := table.Transition(state, Fail("boom"))
		suite.NoError(err)
		suite.Equal(StateFailed, result.NewState)
		suite.Equal(Action{Kind: ActionLogError, Reason: "boom"}, result.Actions[len(result.Actions)-1])
	}
}

func (suite *NodeTestSuite) TestInitRunsActionsInOrder() {
	base, rec := suite.newNode(Lifecycle{
		OnStartInit: []ActionKind{ActionInitReceivedData, ActionCalculateIndicator},
	}, 0)

	suite.NoError(base.Init(suite.ctx))
	suite.Equal(StateReady, base.State())
	suite.True(base.Settled())
	suite.Equal([]ActionKind{ActionInitReceivedData, ActionCalculateIndicator}, rec.recordedActions())

	suite.NoError(base.Start(suite.ctx))
	suite.Equal(StateRunning, base.State())
	suite.NoError(base.Stop(suite.ctx))
}

func (suite *NodeTestSuite) TestLoadBearingFailureAbortsAndFails() {
	calcErr := errors.New(errors.ErrCodeIndicatorCalculation, "not enough bars")
	base, rec := suite.newNode(Lifecycle{
		OnStartInit: []ActionKind{ActionCalculateIndicator, ActionInitReceivedData},
		LoadBearing: []ActionKind{ActionCalculateIndicator},
	}, 0)
	rec.failOn[ActionCalculateIndicator] = calcErr

	err := base.Init(suite.ctx)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNodeInitFailed))
	suite.True(errors.HasCode(err, errors.ErrCodeNodeActionFailed))
	suite.Equal(errors.ErrCodeIndicatorCalculation, errors.RootCode(err))

	suite.Equal([]ActionKind{ActionCalculateIndicator}, rec.recordedActions())
	suite.Equal(StateFailed, base.State())
	suite.Error(base.LastError())
}

func (suite *NodeTestSuite) TestUnsettledStateIsObservable() {
	base, rec := suite.newNode(Lifecycle{
		OnStartInit: []ActionKind{ActionCalculateIndicator},
		LoadBearing: []ActionKind{ActionCalculateIndicator},
	}, 0)
	rec.failOn[ActionCalculateIndicator] = errors.New(errors.ErrCodeIndicatorCalculation, "x")

	err := base.UpdateState(suite.ctx, StartInit())
	suite.Error(err)
	suite.Equal(StateInitializing, base.State())
	suite.False(base.Settled())
	suite.ErrorIs(base.LastError(), err)
}

func (suite *NodeTestSuite) TestNonLoadBearingFailureContinues() {
	base, rec := suite.newNode(Lifecycle{
		OnStartInit: []ActionKind{ActionRegisterExchange, ActionInitReceivedData},
	}, 0)
	rec.failOn[ActionRegisterExchange] = errors.New(errors.ErrCodeMarketDataFetchFailed, "offline")

	suite.NoError(base.Init(suite.ctx))
	suite.Equal([]ActionKind{ActionRegisterExchange, ActionInitReceivedData}, rec.recordedActions())
	suite.Equal(StateReady, base.State())
}

func (suite *NodeTestSuite) TestSetupFailureEndsInFailed() {
	base, rec := suite.newNode(Lifecycle{}, 0)
	rec.setupErr = errors.New(errors.ErrCodeBackfillFailed, "no data")

	err := base.Init(suite.ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeBackfillFailed))
	suite.Equal(StateFailed, base.State())

	// failed nodes cannot be restarted
	suite.Error(base.Init(suite.ctx))
	suite.Equal(StateFailed, base.State())
	suite.NoError(base.Stop(suite.ctx))
	suite.Equal(StateFailed, base.State())
}

func (suite *NodeTestSuite) TestInvalidTransitionForcesFailed() {
	base, _ := suite.newNode(Lifecycle{}, 0)

	err := base.UpdateState(suite.ctx, FinishStop())
	suite.True(errors.IsInvalidStateTransition(err))
	suite.Equal(StateFailed, base.State())
	suite.True(errors.IsInvalidStateTransition(base.LastError()))
}

func (suite *NodeTestSuite) TestEventsReachBehaviorAndStopWithinGrace() {
	base, rec := suite.newNode(Lifecycle{
		OnStartInit: []ActionKind{ActionListenAndHandleNodeEvents, ActionListenAndHandleStrategyCommand},
	}, 500*time.Millisecond)

	upstream := handle.NewRegistry[Event]("up", 8)
	sub, err := upstream.Subscribe(handle.DefaultHandleID("up"), "n1")
	suite.Require().NoError(err)
	base.AddInput(Input{FromNodeID: "up", HandleID: handle.DefaultHandleID("up"), Sub: sub})

	suite.Require().NoError(base.Init(suite.ctx))
	suite.Equal(3, base.RunningTasks())

	suite.NoError(upstream.Default().Send(Event{Kind: EventTrigger, NodeID: "up", PlayIndex: 0}))

	select {
	case ev := <-rec.eventSeen:
		suite.Equal(EventTrigger, ev.Kind)
	case <-time.After(time.Second):
		suite.FailNow("event not delivered")
	}

	// listeners are now blocked on empty channels; cancellation must win
	started := time.Now()
	suite.NoError(base.Stop(suite.ctx))
	suite.Less(time.Since(started), 500*time.Millisecond)
	suite.Equal(StateStopped, base.State())
	suite.Equal(0, base.RunningTasks())

	suite.NoError(base.Stop(suite.ctx))
}

func (suite *NodeTestSuite) TestStopIsBoundedWhenTaskIgnoresCancellation() {
	base, _ := suite.newNode(Lifecycle{}, 50*time.Millisecond)
	suite.Require().NoError(base.Init(suite.ctx))

	release := make(chan struct{})
	defer close(release)

	base.Go("stubborn", func(context.Context) {
		<-release
	})

	started := time.Now()
	err := base.Stop(suite.ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeNodeStopTimeout))
	suite.Less(time.Since(started), time.Second)
	suite.Equal(StateStopped, base.State())
}

func (suite *NodeTestSuite) TestPlayIndexAndResetSignals() {
	signals := handle.NewBroadcast[Event](8)
	watch := NewPlayIndexWatch()
	rec := newRecorder()

	base := NewBase(Config{
		StrategyID: "s1",
		ID:         "start",
		Name:       "start",
		Kind:       KindStart,
		Table: NewTable(KindStart, Lifecycle{
			OnStartInit: []ActionKind{ActionListenAndHandlePlayIndex, ActionListenAndHandleStrategyCommand},
		}),
		PlayIndex: watch,
		Signals:   signals,
		Logger:    logger.NewNopLogger(),
	})
	base.Bind(rec)
	suite.Require().NoError(base.Init(suite.ctx))

	watch.Set(0)
	suite.Eventually(func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		return len(rec.indices) == 1 && rec.indices[0] == 0
	}, time.Second, 5*time.Millisecond)

	signals.Send(Event{Kind: EventReset})
	suite.Eventually(func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		return rec.resets == 1
	}, time.Second, 5*time.Millisecond)

	suite.NoError(base.Stop(suite.ctx))
}

func (suite *NodeTestSuite) TestLeafFinishCycleReachesStrategy() {
	base, _ := suite.newNode(Lifecycle{}, 0)
	strategySub, err := base.Handles().Subscribe(handle.StrategyHandleID("n1"), "strategy")
	suite.Require().NoError(err)

	base.FinishCycle(3)
	suite.Equal(0, strategySub.Len())

	base.SetLeaf(true)
	base.FinishCycle(3)

	ev, ok := strategySub.TryRecv()
	suite.True(ok)
	suite.Equal(EventExecuteOver, ev.Kind)
	suite.Equal(3, ev.PlayIndex)
}

func (suite *NodeTestSuite) TestPlayIndexWatchCoalesces() {
	watch := NewPlayIndexWatch()
	suite.Equal(-1, watch.Get())

	receiver := watch.Watch()
	watch.Set(1)
	watch.Set(2)

	idx, err := receiver.Changed(suite.ctx)
	suite.NoError(err)
	suite.Equal(2, idx)

	ctx, cancel := context.WithTimeout(suite.ctx, 10*time.Millisecond)
	defer cancel()

	_, err = receiver.Changed(ctx)
	suite.ErrorIs(err, context.DeadlineExceeded)
}
