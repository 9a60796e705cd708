package strategy

import (
	"fmt"

	"github.com/rxtech-lab/argo-graph/internal/statemachine"
)

// State is a strategy lifecycle state.
type State string

const (
	StateCreated      State = "Created"
	StateChecking     State = "Checking"
	StateCheckPassed  State = "CheckPassed"
	StateInitializing State = "Initializing"
	StateReady        State = "Ready"
	StatePlaying      State = "Playing"
	StatePausing      State = "Pausing"
	StatePlayComplete State = "PlayComplete"
	StateStopping     State = "Stopping"
	StateStopped      State = "Stopped"
	StateFailed       State = "Failed"
)

// AllStates lists every strategy state.
var AllStates = []State{
	StateCreated, StateChecking, StateCheckPassed, StateInitializing, StateReady,
	StatePlaying, StatePausing, StatePlayComplete, StateStopping, StateStopped, StateFailed,
}

// TriggerKind discriminates strategy triggers.
type TriggerKind string

const (
	TriggerCheck         TriggerKind = "Check"
	TriggerCheckComplete TriggerKind = "CheckComplete"
	TriggerInit          TriggerKind = "Init"
	TriggerInitComplete  TriggerKind = "InitComplete"
	TriggerPlay          TriggerKind = "Play"
	TriggerPause         TriggerKind = "Pause"
	TriggerPlayComplete  TriggerKind = "PlayComplete"
	TriggerReset         TriggerKind = "Reset"
	TriggerStop          TriggerKind = "Stop"
	TriggerStopComplete  TriggerKind = "StopComplete"
	TriggerFail          TriggerKind = "Fail"
)

// Trigger requests a strategy transition. Reason is only set for Fail.
type Trigger struct {
	Kind   TriggerKind
	Reason string
}

func (t Trigger) String() string {
	if t.Reason != "" {
		return fmt.Sprintf("%s(%s)", t.Kind, t.Reason)
	}

	return string(t.Kind)
}

func trigger(kind TriggerKind) Trigger { return Trigger{Kind: kind, Reason: ""} }

// Fail builds the failure trigger, accepted from every state.
func Fail(reason string) Trigger { return Trigger{Kind: TriggerFail, Reason: reason} }

// ActionKind discriminates strategy actions.
type ActionKind string

const (
	ActionLogTransition                  ActionKind = "LogTransition"
	ActionLogStrategyState               ActionKind = "LogStrategyState"
	ActionCheckNode                      ActionKind = "CheckNode"
	ActionInitNode                       ActionKind = "InitNode"
	ActionStopNode                       ActionKind = "StopNode"
	ActionListenAndHandleNodeEvent       ActionKind = "ListenAndHandleNodeEvent"
	ActionListenAndHandleStrategyCommand ActionKind = "ListenAndHandleStrategyCommand"
	ActionInitVirtualTradingSystem       ActionKind = "InitVirtualTradingSystem"
	ActionInitStrategyStats              ActionKind = "InitStrategyStats"
	ActionInitSignalCount                ActionKind = "InitSignalCount"
	ActionInitInitialPlaySpeed           ActionKind = "InitInitialPlaySpeed"
	ActionResetPlay                      ActionKind = "ResetPlay"
	ActionLogError                       ActionKind = "LogError"
)

// Action is one unit of work run after a strategy transition.
type Action struct {
	Kind   ActionKind
	Reason string
}

func (a Action) String() string {
	if a.Reason != "" {
		return fmt.Sprintf("%s(%s)", a.Kind, a.Reason)
	}

	return string(a.Kind)
}

// Result is the outcome of a strategy transition.
type Result = statemachine.Result[State, Action]

// Entry is one defined (state, trigger) pair of the strategy table.
type Entry struct {
	From    State
	Trigger TriggerKind
	To      State
	Actions []ActionKind
}

var stopActions = []ActionKind{ActionLogTransition, ActionStopNode}

var entries = []Entry{
	{From: StateCreated, Trigger: TriggerCheck, To: StateChecking,
		Actions: []ActionKind{ActionLogTransition, ActionCheckNode}},
	{From: StateChecking, Trigger: TriggerCheckComplete, To: StateCheckPassed,
		Actions: []ActionKind{ActionLogTransition, ActionLogStrategyState}},
	{From: StateCheckPassed, Trigger: TriggerInit, To: StateInitializing,
		Actions: []ActionKind{
			ActionLogTransition,
			ActionListenAndHandleStrategyCommand,
			ActionListenAndHandleNodeEvent,
			ActionInitNode,
		}},
	{From: StateInitializing, Trigger: TriggerInitComplete, To: StateReady,
		Actions: []ActionKind{
			ActionLogTransition,
			ActionInitVirtualTradingSystem,
			ActionInitStrategyStats,
			ActionInitSignalCount,
			ActionInitInitialPlaySpeed,
			ActionLogStrategyState,
		}},
	{From: StateReady, Trigger: TriggerPlay, To: StatePlaying,
		Actions: []ActionKind{ActionLogTransition, ActionLogStrategyState}},
	{From: StatePausing, Trigger: TriggerPlay, To: StatePlaying,
		Actions: []ActionKind{ActionLogTransition, ActionLogStrategyState}},
	{From: StatePlaying, Trigger: TriggerPause, To: StatePausing,
		Actions: []ActionKind{ActionLogTransition, ActionLogStrategyState}},
	{From: StateReady, Trigger: TriggerPause, To: StatePausing,
		Actions: []ActionKind{ActionLogTransition}},
	{From: StatePlaying, Trigger: TriggerPlayComplete, To: StatePlayComplete,
		Actions: []ActionKind{ActionLogTransition, ActionLogStrategyState}},
	{From: StatePausing, Trigger: TriggerPlayComplete, To: StatePlayComplete,
		Actions: []ActionKind{ActionLogTransition, ActionLogStrategyState}},
	{From: StateReady, Trigger: TriggerReset, To: StateReady,
		Actions: []ActionKind{ActionLogTransition, ActionResetPlay}},
	{From: StatePausing, Trigger: TriggerReset, To: StateReady,
		Actions: []ActionKind{ActionLogTransition, ActionResetPlay, ActionLogStrategyState}},
	{From: StatePlayComplete, Trigger: TriggerReset, To: StateReady,
		Actions: []ActionKind{ActionLogTransition, ActionResetPlay, ActionLogStrategyState}},
	{From: StateCreated, Trigger: TriggerStop, To: StateStopping, Actions: stopActions},
	{From: StateCheckPassed, Trigger: TriggerStop, To: StateStopping, Actions: stopActions},
	{From: StateReady, Trigger: TriggerStop, To: StateStopping, Actions: stopActions},
	{From: StatePlaying, Trigger: TriggerStop, To: StateStopping, Actions: stopActions},
	{From: StatePausing, Trigger: TriggerStop, To: StateStopping, Actions: stopActions},
	{From: StatePlayComplete, Trigger: TriggerStop, To: StateStopping, Actions: stopActions},
	{From: StateStopping, Trigger: TriggerStopComplete, To: StateStopped,
		Actions: []ActionKind{ActionLogTransition, ActionLogStrategyState}},
}

var loadBearing = map[ActionKind]bool{
	ActionCheckNode:                      true,
	ActionInitNode:                       true,
	ActionStopNode:                       true,
	ActionListenAndHandleNodeEvent:       true,
	ActionListenAndHandleStrategyCommand: true,
	ActionInitSignalCount:                true,
}

const machineName = "strategy"

// Transition is the strategy's pure transition function.
func Transition(state State, t Trigger) (Result, error) {
	if t.Kind == TriggerFail {
		return Result{
			NewState: StateFailed,
			Actions:  []Action{{Kind: ActionLogTransition, Reason: ""}, {Kind: ActionLogError, Reason: t.Reason}},
		}, nil
	}

	for _, e := range entries {
		if e.From == state && e.Trigger == t.Kind {
			actions := make([]Action, len(e.Actions))
			for i, kind := range e.Actions {
				actions[i] = Action{Kind: kind, Reason: ""}
			}

			return Result{NewState: e.To, Actions: actions}, nil
		}
	}

	return Result{}, statemachine.Invalid(machineName, state, t)
}

// Transitions lists every defined pair, including Fail from each state.
func Transitions() []Entry {
	out := make([]Entry, 0, len(entries)+len(AllStates))
	out = append(out, entries...)

	for _, s := range AllStates {
		out = append(out, Entry{
			From:    s,
			Trigger: TriggerFail,
			To:      StateFailed,
			Actions: []ActionKind{ActionLogTransition, ActionLogError},
		})
	}

	return out
}

// IsLoadBearing reports whether a failure of kind aborts the transition.
func IsLoadBearing(kind ActionKind) bool {
	return loadBearing[kind]
}
