package node

import (
	"fmt"

	"github.com/rxtech-lab/argo-graph/internal/statemachine"
)

// RunState is a node lifecycle state.
type RunState string

const (
	StateCreated      RunState = "Created"
	StateInitializing RunState = "Initializing"
	StateReady        RunState = "Ready"
	StateRunning      RunState = "Running"
	StateStopping     RunState = "Stopping"
	StateStopped      RunState = "Stopped"
	StateFailed       RunState = "Failed"
)

// AllStates lists every node state.
var AllStates = []RunState{
	StateCreated, StateInitializing, StateReady, StateRunning, StateStopping, StateStopped, StateFailed,
}

// TriggerKind discriminates node triggers.
type TriggerKind string

const (
	TriggerStartInit  TriggerKind = "StartInit"
	TriggerFinishInit TriggerKind = "FinishInit"
	TriggerStart      TriggerKind = "Start"
	TriggerStartStop  TriggerKind = "StartStop"
	TriggerFinishStop TriggerKind = "FinishStop"
	TriggerFail       TriggerKind = "Fail"
)

// AllTriggers lists every trigger kind.
var AllTriggers = []TriggerKind{
	TriggerStartInit, TriggerFinishInit, TriggerStart, TriggerStartStop, TriggerFinishStop, TriggerFail,
}

// Trigger requests a transition. Reason is only set for Fail.
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

func StartInit() Trigger  { return Trigger{Kind: TriggerStartInit} }
func FinishInit() Trigger { return Trigger{Kind: TriggerFinishInit} }
func Start() Trigger      { return Trigger{Kind: TriggerStart} }
func StartStop() Trigger  { return Trigger{Kind: TriggerStartStop} }
func FinishStop() Trigger { return Trigger{Kind: TriggerFinishStop} }

// Fail builds the failure trigger, accepted from every state.
func Fail(reason string) Trigger { return Trigger{Kind: TriggerFail, Reason: reason} }

// ActionKind discriminates node actions.
type ActionKind string

// Actions executed by the runtime itself.
const (
	ActionLogTransition                  ActionKind = "LogTransition"
	ActionLogNodeState                   ActionKind = "LogNodeState"
	ActionListenAndHandleStrategyCommand ActionKind = "ListenAndHandleStrategyCommand"
	ActionListenAndHandleNodeEvents      ActionKind = "ListenAndHandleNodeEvents"
	ActionListenAndHandlePlayIndex       ActionKind = "ListenAndHandlePlayIndex"
	ActionRegisterTask                   ActionKind = "RegisterTask"
	ActionCancelAsyncTask                ActionKind = "CancelAsyncTask"
	ActionLogError                       ActionKind = "LogError"
)

// Actions delegated to the node kind's Behavior.
const (
	ActionInitVirtualTradingSystem                 ActionKind = "InitVirtualTradingSystem"
	ActionInitCustomVariables                      ActionKind = "InitCustomVariables"
	ActionRegisterExchange                         ActionKind = "RegisterExchange"
	ActionLoadHistoryFromExchange                  ActionKind = "LoadHistoryFromExchange"
	ActionCalculateIndicator                       ActionKind = "CalculateIndicator"
	ActionInitReceivedData                         ActionKind = "InitReceivedData"
	ActionListenAndHandleVirtualTradingSystemEvent ActionKind = "ListenAndHandleVirtualTradingSystemEvent"
)

// Action is one unit of work run after a transition. Reason is only set for LogError.
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

// Result is the outcome of a node transition.
type Result = statemachine.Result[RunState, Action]

// Entry is one defined (state, trigger) pair of a Table.
type Entry struct {
	From    RunState
	Trigger TriggerKind
	To      RunState
	Actions []ActionKind
}

// Table is the transition table of one node kind.
type Table struct {
	name        string
	entries     []Entry
	loadBearing map[ActionKind]bool
}

// Lifecycle holds the kind-specific parts of a table. Every node kind shares
// the same state graph and differs only in the actions it runs.
type Lifecycle struct {
	// OnStartInit runs after LogTransition when entering Initializing.
	OnStartInit []ActionKind
	// LoadBearing actions abort the transition's action list when they fail.
	LoadBearing []ActionKind
}

// NewTable builds the standard node table for kind.
func NewTable(kind Kind, lc Lifecycle) *Table {
	initActions := append([]ActionKind{ActionLogTransition}, lc.OnStartInit...)

	t := &Table{
		name: string(kind),
		entries: []Entry{
			{From: StateCreated, Trigger: TriggerStartInit, To: StateInitializing, Actions: initActions},
			{From: StateInitializing, Trigger: TriggerFinishInit, To: StateReady,
				Actions: []ActionKind{ActionLogTransition, ActionLogNodeState, ActionRegisterTask}},
			{From: StateReady, Trigger: TriggerStart, To: StateRunning,
				Actions: []ActionKind{ActionLogTransition, ActionLogNodeState}},
			{From: StateReady, Trigger: TriggerStartStop, To: StateStopping,
				Actions: []ActionKind{ActionLogTransition, ActionCancelAsyncTask}},
			{From: StateRunning, Trigger: TriggerStartStop, To: StateStopping,
				Actions: []ActionKind{ActionLogTransition, ActionCancelAsyncTask}},
			{From: StateStopping, Trigger: TriggerFinishStop, To: StateStopped,
				Actions: []ActionKind{ActionLogTransition, ActionLogNodeState}},
		},
		loadBearing: make(map[ActionKind]bool, len(lc.LoadBearing)),
	}

	for _, a := range lc.LoadBearing {
		t.loadBearing[a] = true
	}

	return t
}

// Name returns the node kind the table belongs to.
func (t *Table) Name() string {
	return t.name
}

// Transition is the table's pure transition function.
func (t *Table) Transition(state RunState, trigger Trigger) (Result, error) {
	if trigger.Kind == TriggerFail {
		return Result{
			NewState: StateFailed,
			Actions:  []Action{{Kind: ActionLogTransition}, {Kind: ActionLogError, Reason: trigger.Reason}},
		}, nil
	}

	for _, e := range t.entries {
		if e.From == state && e.Trigger == trigger.Kind {
			actions := make([]Action, len(e.Actions))
			for i, kind := range e.Actions {
				actions[i] = Action{Kind: kind}
			}

			return Result{NewState: e.To, Actions: actions}, nil
		}
	}

	return Result{}, statemachine.Invalid(t.name, state, trigger)
}

// Transitions lists every defined pair, including Fail from each state.
func (t *Table) Transitions() []Entry {
	out := make([]Entry, 0, len(t.entries)+len(AllStates))
	for _, e := range t.entries {
		actions := make([]ActionKind, len(e.Actions))
		copy(actions, e.Actions)
		out = append(out, Entry{From: e.From, Trigger: e.Trigger, To: e.To, Actions: actions})
	}

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

// IsLoadBearing reports whether a failure of kind aborts the action list.
func (t *Table) IsLoadBearing(kind ActionKind) bool {
	return t.loadBearing[kind]
}

// ActionAlphabet returns every action kind the table can emit.
func (t *Table) ActionAlphabet() []ActionKind {
	seen := map[ActionKind]bool{}

	var out []ActionKind

	for _, e := range t.Transitions() {
		for _, a := range e.Actions {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}

	return out
}
