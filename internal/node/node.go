// Package node is the lifecycle runtime shared by every node kind.
//
// A node owns a state machine, a set of output handles and the listener tasks
// spawned by its transition actions. Kind-specific work is delegated to a
// Behavior; the runtime takes care of ordering, cancellation and failure.
package node

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/command"
	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/statemachine"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// DefaultStopGrace bounds how long Stop waits for listener tasks.
const DefaultStopGrace = 2 * time.Second

// Kind names a node type.
type Kind string

const (
	KindStart        Kind = "start"
	KindKline        Kind = "kline"
	KindIndicator    Kind = "indicator"
	KindIfElse       Kind = "if_else"
	KindVariable     Kind = "variable"
	KindFuturesOrder Kind = "futures_order"
	KindPosition     Kind = "position"
	KindOutput       Kind = "output"
)

// Behavior is the kind-specific half of a node.
// All methods except Setup are called from the node's single dispatch loop,
// so implementations see them one at a time.
type Behavior interface {
	// Setup runs between StartInit and FinishInit.
	Setup(ctx context.Context) error
	// ExecuteAction runs actions the runtime does not handle itself.
	ExecuteAction(ctx context.Context, action Action) error
	HandleEvent(ctx context.Context, event Event) error
	HandlePlayIndex(ctx context.Context, playIndex int) error
}

// Resetter is implemented by behaviors holding per-run state.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Node is what the strategy sees of every node kind.
type Node interface {
	ID() types.NodeID
	Name() string
	Kind() Kind
	Runtime() *Base
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	State() RunState
}

// Input is one upstream subscription.
type Input struct {
	FromNodeID types.NodeID
	HandleID   string
	Sub        *handle.Subscription[Event]
}

// Config carries everything Base needs from its owner.
type Config struct {
	StrategyID types.StrategyID
	ID         types.NodeID
	Name       string
	Kind       Kind
	Table      *Table
	Sender     *command.Sender
	PlayIndex  *PlayIndexWatch
	// Signals is the strategy-wide broadcast nodes listen to for Reset and
	// PlayFinished.
	Signals        *handle.Broadcast[Event]
	HandleCapacity int
	StopGrace      time.Duration
	Logger         *logger.Logger
}

// Base is the shared node runtime. Node kinds embed it and bind a Behavior.
type Base struct {
	strategyID types.StrategyID
	id         types.NodeID
	name       string
	kind       Kind
	table      *Table

	mu        sync.RWMutex
	machine   *statemachine.Machine[RunState, Trigger, Action]
	settled   bool
	lastError error
	inputs    []Input
	sources   []types.NodeID
	leaf      bool

	handles   *handle.Registry[Event]
	sender    *command.Sender
	playIndex *PlayIndexWatch
	signals   *handle.Broadcast[Event]
	behavior  Behavior

	ctx       context.Context
	cancel    context.CancelFunc
	tasks     sync.WaitGroup
	running   atomic.Int32
	stopGrace time.Duration

	dispatchOnce sync.Once
	dispatching  atomic.Bool
	events       chan Event
	indices      chan int
	control      chan Event
	resets       chan chan error

	logger *logger.Logger
}

// NewBase creates the runtime for one node. Bind must be called before Init.
func NewBase(cfg Config) *Base {
	ctx, cancel := context.WithCancel(context.Background())

	grace := cfg.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}

	capacity := cfg.HandleCapacity
	if capacity <= 0 {
		capacity = handle.DefaultCapacity
	}

	//nolint:exhaustruct // locks, task group and counters are ready at zero value
	b := &Base{
		strategyID: cfg.StrategyID,
		id:         cfg.ID,
		name:       cfg.Name,
		kind:       cfg.Kind,
		table:      cfg.Table,
		settled:    true,
		handles:    handle.NewRegistry[Event](string(cfg.ID), capacity),
		sender:     cfg.Sender,
		playIndex:  cfg.PlayIndex,
		signals:    cfg.Signals,
		ctx:        ctx,
		cancel:     cancel,
		stopGrace:  grace,
		events:     make(chan Event, capacity),
		indices:    make(chan int, 1),
		control:    make(chan Event, 8),
		resets:     make(chan chan error),
		logger: cfg.Logger.Named("node",
			zap.String("node_id", string(cfg.ID)),
			zap.String("node_kind", string(cfg.Kind)),
		),
	}

	b.machine = statemachine.New(string(cfg.ID), StateCreated, cfg.Table.Transition)

	return b
}

// Bind attaches the kind-specific behavior.
func (b *Base) Bind(behavior Behavior) {
	b.behavior = behavior
}

func (b *Base) ID() types.NodeID { return b.id }
func (b *Base) Name() string { return b.name }
func (b *Base) Kind() Kind { return b.kind }
func (b *Base) Runtime() *Base { return b }
func (b *Base) StrategyID() types.StrategyID { return b.strategyID }
func (b *Base) Handles() *handle.Registry[Event] { return b.handles }
func (b *Base) Sender() *command.Sender { return b.sender }
func (b *Base) Logger() *logger.Logger { return b.logger }
func (b *Base) Table() *Table { return b.table }

// Context is the node's own context, canceled by Stop.
func (b *Base) Context() context.Context {
	return b.ctx
}

// PlayIndex returns the current strategy play index, or -1.
func (b *Base) PlayIndex() int {
	if b.playIndex == nil {
		return -1
	}

	return b.playIndex.Get()
}

// State returns the current run state.
func (b *Base) State() RunState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.machine.Current()
}

// Settled reports whether every action of the last transition succeeded.
func (b *Base) Settled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.settled
}

// LastError returns the error that last failed an action or the node.
func (b *Base) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.lastError
}

// SetLeaf marks the node as having no downstream consumers.
func (b *Base) SetLeaf(leaf bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.leaf = leaf
}

// IsLeaf reports whether the node ends a branch of the graph.
func (b *Base) IsLeaf() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.leaf
}

// AddInput records an upstream subscription. Must be called before Init.
func (b *Base) AddInput(input Input) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inputs = append(b.inputs, input)

	for _, id := range b.sources {
		if id == input.FromNodeID {
			return
		}
	}

	b.sources = append(b.sources, input.FromNodeID)
}

// Inputs returns the upstream subscriptions.
func (b *Base) Inputs() []Input {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Input, len(b.inputs))
	copy(out, b.inputs)

	return out
}

// Sources returns the upstream node ids in wiring order.
func (b *Base) Sources() []types.NodeID {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.NodeID, len(b.sources))
	copy(out, b.sources)

	return out
}

// RunningTasks returns the number of live listener tasks.
func (b *Base) RunningTasks() int {
	return int(b.running.Load())
}

// Init drives StartInit, the behavior's Setup and FinishInit. Any failure
// moves the node to Failed.
func (b *Base) Init(ctx context.Context) error {
	if err := b.UpdateState(ctx, StartInit()); err != nil {
		return b.failWith(ctx, errors.Wrapf(errors.ErrCodeNodeInitFailed, err, "node %s: start init", b.id))
	}

	if err := b.behavior.Setup(ctx); err != nil {
		return b.failWith(ctx, errors.Wrapf(errors.ErrCodeNodeInitFailed, err, "node %s: setup", b.id))
	}

	if err := b.UpdateState(ctx, FinishInit()); err != nil {
		return b.failWith(ctx, errors.Wrapf(errors.ErrCodeNodeInitFailed, err, "node %s: finish init", b.id))
	}

	return nil
}

// Start moves a ready node to Running.
func (b *Base) Start(ctx context.Context) error {
	if err := b.UpdateState(ctx, Start()); err != nil {
		return b.failWith(ctx, err)
	}

	return nil
}

// Stop cancels the node's tasks, waits for them within the grace bound and
// closes the output handles. It never blocks past the grace bound and is
// idempotent. A node that never initialised or already failed keeps its state.
func (b *Base) Stop(ctx context.Context) error {
	state := b.State()
	if state == StateStopped {
		return nil
	}

	stoppable := state == StateReady || state == StateRunning
	if stoppable {
		if err := b.UpdateState(ctx, StartStop()); err != nil {
			b.logger.Warn("start stop failed", zap.Error(err))
		}
	}

	b.cancel()

	waitErr := b.waitTasks(ctx)

	if stoppable {
		if err := b.UpdateState(ctx, FinishStop()); err != nil {
			b.logger.Warn("finish stop failed", zap.Error(err))
		}
	}

	b.handles.CloseAll()

	return waitErr
}

func (b *Base) waitTasks(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		b.tasks.Wait()
		close(done)
	}()

	timer := time.NewTimer(b.stopGrace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	b.logger.Warn("listener tasks did not stop within grace period",
		zap.Duration("grace", b.stopGrace),
		zap.Int("running", b.RunningTasks()),
	)

	return errors.Newf(errors.ErrCodeNodeStopTimeout,
		"node %s: %d tasks still running after %s", b.id, b.RunningTasks(), b.stopGrace)
}

// UpdateState applies trigger and runs the resulting actions in order. The
// lock is only held for the transition itself. An invalid transition drives
// the node to Failed. A load-bearing action failure aborts the remaining
// actions and leaves the node unsettled in the target state.
func (b *Base) UpdateState(ctx context.Context, trigger Trigger) error {
	b.mu.Lock()
	from := b.machine.Current()

	result, err := b.machine.Transition(trigger)
	if err != nil {
		b.mu.Unlock()
		b.logger.Error("invalid state transition",
			zap.String("state", string(from)),
			zap.String("trigger", trigger.String()),
			zap.Error(err),
		)

		if trigger.Kind != TriggerFail {
			_ = b.failWith(ctx, err)
		}

		return err
	}

	b.settled = false
	b.mu.Unlock()

	for _, action := range result.Actions {
		if err := b.execute(ctx, from, result.NewState, action); err != nil {
			if b.table.IsLoadBearing(action.Kind) {
				wrapped := errors.Wrapf(errors.ErrCodeNodeActionFailed, err, "node %s: action %s", b.id, action.Kind)

				b.mu.Lock()
				b.lastError = wrapped
				b.mu.Unlock()

				b.logger.Error("load-bearing action failed, aborting transition",
					zap.String("action", action.String()),
					zap.String("state", string(result.NewState)),
					zap.Error(err),
				)

				return wrapped
			}

			b.ReportError(errors.Wrapf(errors.ErrCodeNodeActionFailed, err, "action %s", action.Kind))
		}
	}

	b.mu.Lock()
	b.settled = true
	b.mu.Unlock()

	return nil
}

// failWith records err and drives the node to Failed. It returns err.
func (b *Base) failWith(ctx context.Context, err error) error {
	b.mu.Lock()
	b.lastError = err
	alreadyFailed := b.machine.Current() == StateFailed
	b.mu.Unlock()

	if !alreadyFailed {
		_ = b.UpdateState(ctx, Fail(err.Error()))
	}

	return err
}

func (b *Base) execute(ctx context.Context, from, to RunState, action Action) error {
	switch action.Kind {
	case ActionLogTransition:
		b.logger.Debug("state transition",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	case ActionLogNodeState:
		b.logger.Info("node state", zap.String("state", string(to)))
		b.emitStrategy(EventStateChanged, StatePayload{From: from, To: to})
	case ActionLogError:
		b.logger.Error("node failed", zap.String("reason", action.Reason))
		b.emitStrategy(EventRunningError, LogPayload{
			Message: action.Reason,
			Code:    errors.ErrCodeNodeFailed,
			Codes:   errors.CodeChain(b.LastError()),
		})
	case ActionListenAndHandleNodeEvents:
		b.listenNodeEvents()
	case ActionListenAndHandlePlayIndex:
		b.listenPlayIndex()
	case ActionListenAndHandleStrategyCommand:
		b.listenSignals()
	case ActionRegisterTask:
		b.logger.Debug("tasks registered", zap.Int("running", b.RunningTasks()))
	case ActionCancelAsyncTask:
		b.cancel()
	default:
		if b.behavior == nil {
			return errors.Newf(errors.ErrCodeInternal, "node %s has no behavior bound", b.id)
		}

		return b.behavior.ExecuteAction(ctx, action)
	}

	return nil
}

// Go runs fn as a tracked task bound to the node's context. Stop waits for it.
func (b *Base) Go(name string, fn func(ctx context.Context)) {
	b.tasks.Add(1)
	b.running.Add(1)

	go func() {
		defer b.tasks.Done()
		defer b.running.Add(-1)
		defer func() {
			if rec := recover(); rec != nil {
				b.ReportError(errors.Newf(errors.ErrCodeInternal, "task %s panicked: %v", name, rec))
			}
		}()

		fn(b.ctx)
	}()
}

func (b *Base) startDispatch() {
	b.dispatchOnce.Do(func() {
		b.dispatching.Store(true)
		b.Go("dispatch", b.dispatch)
	})
}

// dispatch is the node's mailbox loop. Every Behavior callback after init runs here.
func (b *Base) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.events:
			if err := b.behavior.HandleEvent(ctx, event); err != nil {
				b.ReportError(err)
			}
		case idx := <-b.indices:
			if err := b.behavior.HandlePlayIndex(ctx, idx); err != nil {
				b.ReportError(err)
			}
		case signal := <-b.control:
			b.handleSignal(ctx, signal)
		case done := <-b.resets:
			done <- b.resetBehavior(ctx)
		}
	}
}

func (b *Base) handleSignal(ctx context.Context, signal Event) {
	if signal.Kind != EventReset {
		return
	}

	if err := b.resetBehavior(ctx); err != nil {
		b.ReportError(err)
	}
}

func (b *Base) resetBehavior(ctx context.Context) error {
	resetter, ok := b.behavior.(Resetter)
	if !ok {
		return nil
	}

	return resetter.Reset(ctx)
}

// Reset clears the behavior's per-run state and returns once it is done.
// It runs on the dispatch loop when one is running, so it is ordered with
// event handling.
func (b *Base) Reset(ctx context.Context) error {
	if !b.dispatching.Load() {
		return b.resetBehavior(ctx)
	}

	done := make(chan error, 1)

	select {
	case b.resets <- done:
	case <-b.ctx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Base) listenNodeEvents() {
	for _, input := range b.Inputs() {
		input := input
		b.Go(fmt.Sprintf("listen:%s", input.HandleID), func(ctx context.Context) {
			forward(ctx, b, input.Sub, b.events)
		})
	}

	b.startDispatch()
}

func (b *Base) listenSignals() {
	if b.signals == nil {
		return
	}

	sub := b.signals.Subscribe(string(b.id))
	b.Go("listen:signals", func(ctx context.Context) {
		forward(ctx, b, sub, b.control)
	})

	b.startDispatch()
}

func (b *Base) listenPlayIndex() {
	if b.playIndex == nil {
		return
	}

	receiver := b.playIndex.Watch()
	b.Go("listen:play_index", func(ctx context.Context) {
		for {
			idx, err := receiver.Changed(ctx)
			if err != nil {
				return
			}

			select {
			case b.indices <- idx:
			case <-ctx.Done():
				return
			}
		}
	})

	b.startDispatch()
}

// forward pumps a subscription into the node's mailbox until cancellation or close.
func forward(ctx context.Context, b *Base, sub *handle.Subscription[Event], out chan<- Event) {
	for {
		event, err := sub.Recv(ctx)

		switch {
		case err == nil:
		case ctx.Err() != nil, handle.IsClosed(err):
			return
		case handle.IsLagged(err):
			b.ReportError(errors.Wrapf(errors.ErrCodeLagged, err, "subscription %s", sub.ID()))

			continue
		default:
			b.ReportError(err)

			return
		}

		select {
		case out <- event:
		case <-ctx.Done():
			return
		}
	}
}

// NewEvent stamps an event with the node's identity and play index.
func (b *Base) NewEvent(kind EventKind, handleID string, payload any) Event {
	return Event{
		Kind:       kind,
		StrategyID: b.strategyID,
		NodeID:     b.id,
		NodeName:   b.name,
		HandleID:   handleID,
		ConfigID:   0,
		PlayIndex:  b.PlayIndex(),
		Timestamp:  time.Now(),
		Payload:    payload,
	}
}

// Emit sends an event on the named handle. Having no listeners is not an error.
func (b *Base) Emit(handleID string, event Event) error {
	out, err := b.handles.Get(handleID)
	if err != nil {
		return err
	}

	event.HandleID = handleID
	if err := out.Send(event); err != nil && !errors.Is(err, handle.ErrNoListeners) {
		return err
	}

	return nil
}

// EmitDefault sends on the default output handle.
func (b *Base) EmitDefault(event Event) error {
	return b.Emit(handle.DefaultHandleID(string(b.id)), event)
}

func (b *Base) emitStrategy(kind EventKind, payload any) {
	_ = b.Emit(handle.StrategyHandleID(string(b.id)), b.NewEvent(kind, "", payload))
}

// EmitStrategy sends an event to the owning strategy.
func (b *Base) EmitStrategy(event Event) {
	_ = b.Emit(handle.StrategyHandleID(string(b.id)), event)
}

// FinishCycle tells the strategy a leaf node is done with playIndex.
func (b *Base) FinishCycle(playIndex int) {
	if !b.IsLeaf() {
		return
	}

	event := b.NewEvent(EventExecuteOver, "", nil)
	event.PlayIndex = playIndex
	b.EmitStrategy(event)
}

// ReportError logs err and publishes it as a running-error event. The node
// keeps running.
func (b *Base) ReportError(err error) {
	b.logger.Error("node running error", zap.Error(err), zap.Any("codes", errors.CodeChain(err)))
	b.emitStrategy(EventRunningError, LogPayload{
		Message: err.Error(),
		Code:    errors.GetCode(err),
		Codes:   errors.CodeChain(err),
	})
}

// Log publishes a running-log event.
func (b *Base) Log(message string) {
	b.logger.Debug(message)
	b.emitStrategy(EventRunningLog, LogPayload{Message: message, Code: 0, Codes: nil})
}
