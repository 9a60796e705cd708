// Package strategy builds a node graph from a strategy document and drives it
// through a backtest: check, init, play, reset and stop.
package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rxtech-lab/argo-graph/internal/command"
	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/datasource"
	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/indicator"
	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/nodes"
	"github.com/rxtech-lab/argo-graph/internal/protocol"
	"github.com/rxtech-lab/argo-graph/internal/statemachine"
	"github.com/rxtech-lab/argo-graph/internal/stats"
	"github.com/rxtech-lab/argo-graph/internal/trading"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// DefaultStopTimeout bounds how long Stop waits for every node to stop.
const DefaultStopTimeout = 20 * time.Second

const subscriberID = "strategy"

// Deps are the collaborators of a strategy. Only Source is required for
// graphs with kline nodes; everything else has a default.
type Deps struct {
	Source     datasource.KlineSource
	Calculator indicator.Calculator
	// Trading defaults to a fresh virtual trading system owned by the strategy.
	Trading trading.TradingSystem
	Now     func() time.Time

	HandleCapacity  int
	CommandCapacity int
	StopGrace       time.Duration
	StopTimeout     time.Duration
	Logger          *logger.Logger
}

// StatePayload accompanies strategy level state change events.
type StatePayload struct {
	From State
	To   State
}

// cycle tracks the leaves that still owe an ExecuteOver for one play index.
type cycle struct {
	playIndex int
	waiting   map[types.NodeID]bool
	done      chan struct{}
	aborted   bool
}

// Strategy owns a graph of nodes and the context they share.
type Strategy struct {
	cfg   *config.StrategyConfig
	graph *Graph

	shared    *strategyContext
	trading   trading.TradingSystem
	virtual   *trading.VirtualTradingSystem
	stats     *stats.Tracker
	sender    *command.Sender
	receiver  *command.Receiver
	router    *command.Router
	playIndex *node.PlayIndexWatch
	signals   *handle.Broadcast[node.Event]
	events    *handle.Broadcast[node.Event]
	nodeSubs  map[types.NodeID]*handle.Subscription[node.Event]

	mu            sync.RWMutex
	machine       *statemachine.Machine[State, Trigger, Action]
	lastError     error
	playSpeed     int
	speedOverride int
	limiter       *rate.Limiter
	signalCount   int
	current       *cycle

	playMu      sync.Mutex
	loopCtx     context.Context
	loopCancel  context.CancelFunc
	loops       sync.WaitGroup
	stopTimeout time.Duration
	now         func() time.Time

	logger *logger.Logger
}

// New builds and wires the graph of cfg. It returns a configuration error
// before any node exists when the document is malformed.
func New(cfg *config.StrategyConfig, deps Deps) (*Strategy, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "strategy document is nil")
	}

	log := deps.Logger.Named("strategy",
		zap.String("strategy_id", string(cfg.ID)),
		zap.String("strategy_name", cfg.Name),
	)

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	capacity := deps.HandleCapacity
	if capacity <= 0 {
		capacity = handle.DefaultCapacity
	}

	stopTimeout := deps.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	playIndex := node.NewPlayIndexWatch()
	tracker := stats.NewTracker(log)
	sctx := newStrategyContext(playIndex, tracker, log)

	sender, receiver := command.NewChannel(deps.CommandCapacity, log)
	router := command.NewRouter()
	protocol.Register(router, sctx)

	tradingSystem := deps.Trading

	var virtual *trading.VirtualTradingSystem
	if tradingSystem == nil {
		virtual = trading.NewVirtualTradingSystem(log)
		tradingSystem = virtual
	}

	signals := handle.NewBroadcast[node.Event](capacity)

	graph, err := Build(cfg, nodes.Deps{
		StrategyID:     cfg.ID,
		Sender:         sender,
		PlayIndex:      playIndex,
		Signals:        signals,
		Source:         deps.Source,
		Calculator:     deps.Calculator,
		Trading:        tradingSystem,
		Variables:      cfg.Variables,
		Now:            now,
		HandleCapacity: capacity,
		StopGrace:      deps.StopGrace,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}

	if err := graph.Wire(); err != nil {
		return nil, err
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())

	//nolint:exhaustruct // locks, wait group and cycle are ready at zero value
	s := &Strategy{
		cfg:           cfg,
		graph:         graph,
		shared:        sctx,
		trading:       tradingSystem,
		virtual:       virtual,
		stats:         tracker,
		sender:        sender,
		receiver:      receiver,
		router:        router,
		playIndex:     playIndex,
		signals:       signals,
		events:        handle.NewBroadcast[node.Event](capacity),
		nodeSubs:      make(map[types.NodeID]*handle.Subscription[node.Event], len(cfg.Nodes)),
		speedOverride: -1,
		loopCtx:       loopCtx,
		loopCancel:    loopCancel,
		stopTimeout:   stopTimeout,
		now:           now,
		logger:        log,
	}

	s.machine = statemachine.New(machineName, StateCreated, Transition)

	for _, n := range graph.Nodes() {
		s.nodeSubs[n.ID()] = n.Runtime().Handles().Strategy().Subscribe(subscriberID)
	}

	klineKeys, indicatorKeys := s.collectKeys()
	sctx.setKeys(klineKeys, indicatorKeys)

	return s, nil
}

// collectKeys gathers every series the graph's nodes serve.
func (s *Strategy) collectKeys() ([]types.KlineKey, []types.IndicatorKey) {
	var (
		klines     []types.KlineKey
		indicators []types.IndicatorKey
	)

	seenKlines := make(map[types.KlineKey]bool)
	seenIndicators := make(map[string]bool)

	for _, n := range s.graph.Nodes() {
		params, _ := s.graph.Params(n.ID())

		switch p := params.(type) {
		case *config.KlineParams:
			for _, sym := range p.Symbols {
				key := p.Key(sym)
				if !seenKlines[key] {
					seenKlines[key] = true
					klines = append(klines, key)
				}
			}
		case *config.IndicatorParams:
			for _, item := range p.Indicators {
				key := p.Key(item)
				if !seenIndicators[key.String()] {
					seenIndicators[key.String()] = true
					indicators = append(indicators, key)
				}
			}
		}
	}

	return klines, indicators
}

// ID returns the strategy id.
func (s *Strategy) ID() types.StrategyID { return s.cfg.ID }

// Name returns the strategy name.
func (s *Strategy) Name() string { return s.cfg.Name }

// Graph returns the built graph.
func (s *Strategy) Graph() *Graph { return s.graph }

// Stats returns the run statistics.
func (s *Strategy) Stats() *stats.Tracker { return s.stats }

// Trading returns the trading system the graph trades against.
func (s *Strategy) Trading() trading.TradingSystem { return s.trading }

// State returns the current strategy state.
func (s *Strategy) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.machine.Current()
}

// LastError returns the error that failed the strategy, if any.
func (s *Strategy) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastError
}

// NodeStates returns the lifecycle state of every node.
func (s *Strategy) NodeStates() map[types.NodeID]node.RunState {
	out := make(map[types.NodeID]node.RunState, len(s.graph.nodes))
	for _, n := range s.graph.Nodes() {
		out[n.ID()] = n.State()
	}

	return out
}

// PlayIndex returns the last published play index, -1 before the first one.
func (s *Strategy) PlayIndex() int {
	return s.playIndex.Get()
}

// SignalCount returns the number of play indices of the run.
func (s *Strategy) SignalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.signalCount
}

// PlaySpeed returns the bars played per second. Zero plays unthrottled.
func (s *Strategy) PlaySpeed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.playSpeed
}

// SetPlaySpeed overrides the play speed of the start node.
func (s *Strategy) SetPlaySpeed(speed int) {
	if speed < 0 {
		speed = 0
	}

	s.mu.Lock()
	s.speedOverride = speed
	s.playSpeed = speed
	s.mu.Unlock()
}

// Variable returns the current value of a custom variable.
func (s *Strategy) Variable(ctx context.Context, name string) (types.CustomVariable, error) {
	return s.shared.GetCustomVariableValue(ctx, name)
}

// SysVariables returns the system variables published by variable nodes.
func (s *Strategy) SysVariables() []types.SysVariable {
	return s.shared.SysVariables()
}

// Events subscribes to the strategy's running logs, errors and state changes.
func (s *Strategy) Events(subscriberID string) *handle.Subscription[node.Event] {
	return s.events.Subscribe(subscriberID)
}

// Check validates the graph: it must be acyclic, target this engine and
// reference only series its upstream nodes provide.
func (s *Strategy) Check(ctx context.Context) error {
	if err := s.updateState(ctx, trigger(TriggerCheck)); err != nil {
		return s.failWith(ctx, err)
	}

	if err := s.updateState(ctx, trigger(TriggerCheckComplete)); err != nil {
		return s.failWith(ctx, err)
	}

	return nil
}

// Init starts the command and event loops, then initializes and starts every
// node in topological order.
func (s *Strategy) Init(ctx context.Context) error {
	if err := s.updateState(ctx, trigger(TriggerInit)); err != nil {
		return s.failWith(ctx, err)
	}

	if err := s.updateState(ctx, trigger(TriggerInitComplete)); err != nil {
		return s.failWith(ctx, err)
	}

	return nil
}

// Play advances the play index until every index is played, the strategy is
// paused or stopped, or ctx ends.
func (s *Strategy) Play(ctx context.Context) error {
	if !s.playMu.TryLock() {
		return errors.New(errors.ErrCodeStrategyNotReady, "strategy is already playing")
	}
	defer s.playMu.Unlock()

	if err := s.updateState(ctx, trigger(TriggerPlay)); err != nil {
		return s.failWith(ctx, err)
	}

	for {
		if s.State() != StatePlaying {
			return s.interrupted()
		}

		more, err := s.step(ctx)
		if err != nil {
			return err
		}

		if !more {
			if state := s.State(); state != StatePlaying && state != StatePausing {
				return s.interrupted()
			}

			return s.complete(ctx)
		}

		if err := s.throttle(ctx); err != nil {
			return err
		}
	}
}

// PlayOne plays a single index and leaves the strategy paused.
func (s *Strategy) PlayOne(ctx context.Context) error {
	if !s.playMu.TryLock() {
		return errors.New(errors.ErrCodeStrategyNotReady, "strategy is already playing")
	}
	defer s.playMu.Unlock()

	switch state := s.State(); state {
	case StateReady:
		if err := s.updateState(ctx, trigger(TriggerPause)); err != nil {
			return s.failWith(ctx, err)
		}
	case StatePausing:
	default:
		return errors.Newf(errors.ErrCodeStrategyNotReady, "cannot play one index in state %s", state)
	}

	more, err := s.step(ctx)
	if err != nil {
		return err
	}

	if s.State() != StatePausing {
		return s.interrupted()
	}

	if !more {
		return s.complete(ctx)
	}

	return nil
}

// Pause stops the play loop after the index in flight.
func (s *Strategy) Pause(ctx context.Context) error {
	if err := s.updateState(ctx, trigger(TriggerPause)); err != nil {
		return s.failWith(ctx, err)
	}

	return nil
}

// Reset rewinds the run to before the first index. Loaded history is kept.
func (s *Strategy) Reset(ctx context.Context) error {
	if err := s.updateState(ctx, trigger(TriggerReset)); err != nil {
		return s.failWith(ctx, err)
	}

	return nil
}

// Stop stops every node, consumers before producers, and shuts the strategy's
// loops down. A failed strategy keeps its state; its nodes are still stopped.
func (s *Strategy) Stop(ctx context.Context) error {
	switch s.State() {
	case StateStopped:
		return nil
	case StateFailed:
		err := s.stopNodes(ctx)
		s.shutdown()

		return err
	default:
	}

	stopErr := s.updateState(ctx, trigger(TriggerStop))
	if s.State() == StateFailed {
		stopErr = multierr.Append(stopErr, s.stopNodes(ctx))
		s.shutdown()

		return stopErr
	}

	s.shutdown()

	if err := s.updateState(ctx, trigger(TriggerStopComplete)); err != nil {
		stopErr = multierr.Append(stopErr, err)
	}

	s.events.Close()

	return stopErr
}

// updateState applies t and runs the resulting actions in order. An invalid
// transition fails the strategy. A load-bearing action failure aborts the
// remaining actions.
func (s *Strategy) updateState(ctx context.Context, t Trigger) error {
	s.mu.Lock()
	from := s.machine.Current()

	result, err := s.machine.Transition(t)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("invalid strategy state transition",
			zap.String("state", string(from)),
			zap.String("trigger", t.String()),
			zap.Error(err),
		)

		if t.Kind != TriggerFail {
			_ = s.failWith(ctx, err)
		}

		return err
	}
	s.mu.Unlock()

	for _, action := range result.Actions {
		if err := s.execute(ctx, from, result.NewState, action); err != nil {
			if IsLoadBearing(action.Kind) {
				return errors.Wrapf(errors.ErrCodeStrategyFailed, err, "strategy %s: action %s", s.cfg.ID, action.Kind)
			}

			s.logger.Warn("strategy action failed", zap.String("action", action.String()), zap.Error(err))
		}
	}

	return nil
}

// failWith records err and drives the strategy to Failed. It returns err.
func (s *Strategy) failWith(ctx context.Context, err error) error {
	s.mu.Lock()
	s.lastError = err
	alreadyFailed := s.machine.Current() == StateFailed
	s.mu.Unlock()

	s.abortCycle()

	if !alreadyFailed {
		_ = s.updateState(ctx, Fail(err.Error()))
	}

	return err
}

func (s *Strategy) execute(ctx context.Context, from, to State, action Action) error {
	switch action.Kind {
	case ActionLogTransition:
		s.logger.Debug("strategy state transition",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	case ActionLogStrategyState:
		s.logger.Info("strategy state", zap.String("state", string(to)))
		s.publish(node.EventStateChanged, StatePayload{From: from, To: to})
	case ActionCheckNode:
		return s.checkGraph()
	case ActionListenAndHandleStrategyCommand:
		s.listenCommands()
	case ActionListenAndHandleNodeEvent:
		s.listenNodeEvents()
	case ActionInitNode:
		return s.initNodes(ctx)
	case ActionInitVirtualTradingSystem:
		s.listenTrading()
		s.stats.SetInitialBalance(s.trading.Balance())
	case ActionInitStrategyStats:
		s.stats.Initialize(uuid.NewString(), string(s.cfg.ID), s.cfg.Name, s.trading.Balance(), s.now())
	case ActionInitSignalCount:
		return s.initSignalCount()
	case ActionInitInitialPlaySpeed:
		s.initPlaySpeed()
	case ActionResetPlay:
		return s.resetPlay(ctx)
	case ActionStopNode:
		return s.stopNodes(ctx)
	case ActionLogError:
		last := s.LastError()
		s.logger.Error("strategy failed", zap.String("reason", action.Reason), zap.Any("codes", errors.CodeChain(last)))
		s.publish(node.EventRunningError, node.LogPayload{
			Message: action.Reason,
			Code:    errors.ErrCodeStrategyFailed,
			Codes:   errors.CodeChain(last),
		})
	default:
		return errors.Newf(errors.ErrCodeInternal, "strategy does not handle action %s", action.Kind)
	}

	return nil
}

// checkGraph runs the static checks of Check.
func (s *Strategy) checkGraph() error {
	if _, err := s.graph.TopologicalOrder(); err != nil {
		return err
	}

	if err := s.cfg.CheckEngineVersion(); err != nil {
		return err
	}

	for _, n := range s.graph.Nodes() {
		params, _ := s.graph.Params(n.ID())

		switch p := params.(type) {
		case *config.IndicatorParams:
			if !s.upstreamProvides(n.ID(), p.Source) {
				return errors.Newf(errors.ErrCodeInvalidConfiguration,
					"indicator node %s: source %s is not provided by an upstream kline node", n.ID(), p.Source)
			}
		case *config.IfElseParams:
			upstream := s.graph.Upstream(n.ID())
			for _, ref := range p.Inputs() {
				if !containsID(upstream, ref.NodeID) {
					return errors.Newf(errors.ErrCodeInvalidConfiguration,
						"if-else node %s: operand reads node %s which is not connected upstream", n.ID(), ref.NodeID)
				}
			}
		}
	}

	return nil
}

func (s *Strategy) upstreamProvides(id types.NodeID, key types.KlineKey) bool {
	for _, up := range s.graph.Upstream(id) {
		params, _ := s.graph.Params(up)

		p, ok := params.(*config.KlineParams)
		if !ok {
			continue
		}

		for _, sym := range p.Symbols {
			if p.Key(sym) == key {
				return true
			}
		}
	}

	return false
}

// initNodes initializes every node after all of its upstreams, then starts
// them in the same order.
func (s *Strategy) initNodes(ctx context.Context) error {
	order, err := s.graph.TopologicalOrder()
	if err != nil {
		return err
	}

	for _, n := range order {
		if err := n.Init(ctx); err != nil {
			return errors.Wrapf(errors.ErrCodeNodeInitFailed, err, "failed to init node %s", n.ID())
		}
	}

	for _, n := range order {
		if err := n.Start(ctx); err != nil {
			return errors.Wrapf(errors.ErrCodeNodeInitFailed, err, "failed to start node %s", n.ID())
		}
	}

	s.logger.Info("nodes initialized", zap.Int("nodes", len(order)))

	return nil
}

func (s *Strategy) initSignalCount() error {
	count, err := s.shared.signalCount()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.signalCount = count
	s.mu.Unlock()

	s.stats.SetSignalCount(count)

	s.logger.Info("signal count", zap.Int("signal_count", count), zap.String("min_interval", string(s.shared.interval())))

	return nil
}

func (s *Strategy) initPlaySpeed() {
	speed := 0

	for _, n := range s.graph.Nodes() {
		params, _ := s.graph.Params(n.ID())
		if p, ok := params.(*config.StartParams); ok {
			speed = p.PlaySpeed

			break
		}
	}

	s.mu.Lock()
	if s.speedOverride >= 0 {
		speed = s.speedOverride
	}

	s.playSpeed = speed
	s.mu.Unlock()
}

// resetPlay rewinds the play index and clears every piece of per-run state.
func (s *Strategy) resetPlay(ctx context.Context) error {
	s.playIndex.Set(-1)

	order, err := s.graph.TopologicalOrder()
	if err != nil {
		return err
	}

	var errs error

	for _, n := range order {
		if err := n.Runtime().Reset(ctx); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(errors.ErrCodeStrategyRuntimeError, err, "failed to reset node %s", n.ID()))
		}
	}

	s.shared.reset()
	s.trading.Reset()
	s.stats.Reset()

	s.publish(node.EventReset, nil)

	return errs
}

// stopNodes stops the nodes in reverse topological order and waits for all
// of them to settle.
func (s *Strategy) stopNodes(ctx context.Context) error {
	s.abortCycle()

	order, err := s.graph.TopologicalOrder()
	if err != nil {
		order = s.graph.Nodes()
	}

	var errs error

	for i := len(order) - 1; i >= 0; i-- {
		if err := order[i].Stop(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if err := s.waitForAllNodesStopped(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

func (s *Strategy) waitForAllNodesStopped(ctx context.Context) error {
	deadline := time.NewTimer(s.stopTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		pending := s.pendingNodes()
		if len(pending) == 0 {
			return nil
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return errors.Newf(errors.ErrCodeNodesStopTimeout, "nodes %v did not stop within %s", pending, s.stopTimeout)
		case <-ctx.Done():
			return errors.Wrapf(errors.ErrCodeNodesStopTimeout, ctx.Err(), "nodes %v did not stop", pending)
		}
	}
}

// pendingNodes returns the nodes still between init and stopped.
func (s *Strategy) pendingNodes() []types.NodeID {
	var out []types.NodeID

	for _, n := range s.graph.Nodes() {
		switch n.State() {
		case node.StateInitializing, node.StateReady, node.StateRunning, node.StateStopping:
			out = append(out, n.ID())
		case node.StateCreated, node.StateStopped, node.StateFailed:
		}
	}

	return out
}

// shutdown cancels the command, event and trading loops.
func (s *Strategy) shutdown() {
	s.loopCancel()
	s.signals.Close()

	done := make(chan struct{})

	go func() {
		s.loops.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		s.logger.Warn("strategy loops did not exit in time")
	}

	if s.virtual != nil {
		s.virtual.Close()
	}
}

// goLoop runs fn as a strategy loop bound to the strategy's lifetime.
func (s *Strategy) goLoop(name string, fn func(ctx context.Context)) {
	s.loops.Add(1)

	go func() {
		defer s.loops.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("strategy loop panicked", zap.String("loop", name), zap.Any("panic", rec))
			}
		}()

		fn(s.loopCtx)
	}()
}

func (s *Strategy) listenCommands() {
	s.goLoop("commands", func(ctx context.Context) {
		s.receiver.Serve(ctx, s.router.Serve)
	})
}

// listenNodeEvents fans every node's strategy handle into one loop.
func (s *Strategy) listenNodeEvents() {
	merged := make(chan node.Event, handle.DefaultCapacity)

	for id, sub := range s.nodeSubs {
		id, sub := id, sub

		s.goLoop(fmt.Sprintf("events:%s", id), func(ctx context.Context) {
			for {
				event, err := sub.Recv(ctx)

				switch {
				case err == nil:
				case ctx.Err() != nil, handle.IsClosed(err):
					return
				case handle.IsLagged(err):
					s.logger.Warn("node events lagged", zap.String("node_id", string(id)), zap.Error(err))

					continue
				default:
					s.logger.Error("node events failed", zap.String("node_id", string(id)), zap.Error(err))

					return
				}

				select {
				case merged <- event:
				case <-ctx.Done():
					return
				}
			}
		})
	}

	s.goLoop("events", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-merged:
				s.handleNodeEvent(ctx, event)
			}
		}
	})
}

func (s *Strategy) handleNodeEvent(ctx context.Context, event node.Event) {
	switch event.Kind {
	case node.EventExecuteOver:
		s.completeLeaf(event.NodeID, event.PlayIndex)

		return
	case node.EventRunningError:
		payload, _ := event.Payload.(node.LogPayload)
		if payload.Code == errors.ErrCodeNodeFailed && s.running() {
			_ = s.failWith(ctx, errors.Newf(errors.ErrCodeNodeFailed, "node %s failed: %s", event.NodeID, payload.Message))
		}
	default:
	}

	s.events.Send(event)
}

// running reports whether the nodes are expected to be alive.
func (s *Strategy) running() bool {
	switch s.State() {
	case StateReady, StatePlaying, StatePausing, StatePlayComplete:
		return true
	default:
		return false
	}
}

// listenTrading records every order the trading system reports.
func (s *Strategy) listenTrading() {
	sub := s.trading.Subscribe(subscriberID)

	s.goLoop("trading", func(ctx context.Context) {
		for {
			event, err := sub.Recv(ctx)

			switch {
			case err == nil:
			case ctx.Err() != nil, handle.IsClosed(err):
				return
			case handle.IsLagged(err):
				s.logger.Warn("trading events lagged", zap.Error(err))

				continue
			default:
				return
			}

			switch event.Kind {
			case trading.EventOrderCreated, trading.EventOrderFilled, trading.EventOrderCanceled:
				s.stats.RecordOrder(event.Order)
			case trading.EventPositionUpdated, trading.EventPositionClosed:
			}
		}
	})
}

// publish sends a strategy level event to subscribers of Events.
func (s *Strategy) publish(kind node.EventKind, payload any) {
	s.events.Send(node.Event{
		Kind:       kind,
		StrategyID: s.cfg.ID,
		NodeID:     "",
		NodeName:   s.cfg.Name,
		HandleID:   "",
		ConfigID:   0,
		PlayIndex:  s.playIndex.Get(),
		Timestamp:  time.Now(),
		Payload:    payload,
	})
}

// step plays the next index and waits for every leaf to finish it. It
// reports whether indices remain.
func (s *Strategy) step(ctx context.Context) (bool, error) {
	count := s.SignalCount()

	idx := s.playIndex.Get() + 1
	if idx >= count {
		return false, nil
	}

	if err := s.markPrices(idx); err != nil {
		return false, s.failWith(ctx, err)
	}

	c := s.beginCycle(idx)
	s.playIndex.Set(idx)

	select {
	case <-c.done:
	case <-ctx.Done():
		s.abortCycle()

		return false, ctx.Err()
	}

	if c.aborted {
		return false, nil
	}

	s.recordSnapshot(idx)

	return idx+1 < count, nil
}

// markPrices moves the trading system to the close of every min-interval bar
// at idx before nodes see the index.
func (s *Strategy) markPrices(idx int) error {
	for _, key := range s.shared.minIntervalKeys() {
		bar, err := s.shared.barAt(key, idx)
		if err != nil {
			return err
		}

		s.trading.UpdatePrice(key.Symbol, decimal.NewFromFloat(bar.Close), bar.Time)
	}

	return nil
}

func (s *Strategy) beginCycle(idx int) *cycle {
	waiting := make(map[types.NodeID]bool)

	for _, n := range s.graph.Leaves() {
		if n.State() == node.StateRunning {
			waiting[n.ID()] = true
		}
	}

	c := &cycle{playIndex: idx, waiting: waiting, done: make(chan struct{}), aborted: false}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(waiting) == 0 {
		close(c.done)

		return c
	}

	s.current = c

	return c
}

func (s *Strategy) completeLeaf(id types.NodeID, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.current
	if c == nil || c.playIndex != idx || !c.waiting[id] {
		return
	}

	delete(c.waiting, id)

	if len(c.waiting) == 0 {
		close(c.done)
		s.current = nil
	}
}

func (s *Strategy) abortCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}

	s.current.aborted = true
	close(s.current.done)
	s.current = nil
}

func (s *Strategy) recordSnapshot(idx int) {
	at, err := s.shared.timeAt(idx)
	if err != nil {
		at = s.now()
	}

	positions := s.trading.Positions()
	balance := s.trading.Balance()
	equity := balance

	for _, p := range positions {
		equity = equity.Add(p.UnrealizedPnL)
	}

	s.stats.RecordSnapshot(stats.Snapshot{
		PlayIndex: idx,
		Time:      at,
		Balance:   balance,
		Equity:    equity,
		Positions: len(positions),
	})
}

// throttle paces the play loop at PlaySpeed bars per second.
func (s *Strategy) throttle(ctx context.Context) error {
	s.mu.Lock()
	speed := s.playSpeed

	if speed <= 0 {
		s.mu.Unlock()

		return nil
	}

	if s.limiter == nil || s.limiter.Limit() != rate.Limit(speed) {
		s.limiter = rate.NewLimiter(rate.Limit(speed), 1)
	}

	limiter := s.limiter
	s.mu.Unlock()

	return limiter.Wait(ctx)
}

// complete ends the run and tells every node and subscriber.
func (s *Strategy) complete(ctx context.Context) error {
	if err := s.updateState(ctx, trigger(TriggerPlayComplete)); err != nil {
		return s.failWith(ctx, err)
	}

	s.signals.Send(node.Event{
		Kind:       node.EventPlayFinished,
		StrategyID: s.cfg.ID,
		NodeID:     "",
		NodeName:   s.cfg.Name,
		HandleID:   "",
		ConfigID:   0,
		PlayIndex:  s.playIndex.Get(),
		Timestamp:  time.Now(),
		Payload:    nil,
	})
	s.publish(node.EventPlayFinished, nil)

	s.logger.Info("play complete", zap.Int("played", s.playIndex.Get()+1))

	return nil
}

// interrupted is the result of a play loop left because the state changed.
func (s *Strategy) interrupted() error {
	if s.State() == StateFailed {
		return s.LastError()
	}

	return nil
}
