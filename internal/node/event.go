package node

import (
	"time"

	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// EventKind discriminates events flowing through output handles.
type EventKind string

const (
	EventKlineUpdate     EventKind = "KlineUpdate"
	EventIndicatorUpdate EventKind = "IndicatorUpdate"
	EventCaseTrue        EventKind = "CaseTrue"
	EventCaseFalse       EventKind = "CaseFalse"
	EventElseTrue        EventKind = "ElseTrue"
	EventElseFalse       EventKind = "ElseFalse"
	EventCustomVarUpdate EventKind = "CustomVarUpdate"
	EventSysVarUpdate    EventKind = "SysVarUpdate"
	EventOrderCreated    EventKind = "OrderCreated"
	EventOrderFilled     EventKind = "OrderFilled"
	EventPositionUpdated EventKind = "PositionUpdated"
	EventTrigger         EventKind = "Trigger"
	EventExecuteOver     EventKind = "ExecuteOver"
	EventRunningLog      EventKind = "RunningLog"
	EventRunningError    EventKind = "RunningError"
	EventStateChanged    EventKind = "StateChanged"

	// Strategy-level signals delivered to every node.
	EventReset        EventKind = "Reset"
	EventPlayFinished EventKind = "PlayFinished"
)

// IsFalseBranch reports whether the event carries a "condition not met"
// signal that downstream nodes must forward without doing work.
func (k EventKind) IsFalseBranch() bool {
	return k == EventCaseFalse || k == EventElseFalse
}

// Event is the unit published on output handles.
type Event struct {
	Kind       EventKind
	StrategyID types.StrategyID
	NodeID     types.NodeID
	NodeName   string
	HandleID   string
	// ConfigID identifies which configured output of the source produced the
	// event, e.g. the symbol index of a kline node.
	ConfigID  int
	PlayIndex int
	Timestamp time.Time
	Payload   any
}

// KlinePayload accompanies EventKlineUpdate.
type KlinePayload struct {
	Key   types.KlineKey
	Kline types.Kline
}

// IndicatorPayload accompanies EventIndicatorUpdate.
type IndicatorPayload struct {
	Key   types.IndicatorKey
	Value types.IndicatorValue
}

// CasePayload accompanies the branch events of an if-else node.
type CasePayload struct {
	CaseID int
}

// VariablePayload accompanies variable update events.
type VariablePayload struct {
	Name   string
	Symbol string
	Value  float64
}

// OrderPayload accompanies order events.
type OrderPayload struct {
	Order types.Order
}

// PositionPayload accompanies EventPositionUpdated.
type PositionPayload struct {
	Position types.Position
	Found    bool
}

// StatePayload accompanies EventStateChanged.
type StatePayload struct {
	From RunState
	To   RunState
}

// LogPayload accompanies running log and error events.
type LogPayload struct {
	Message string
	Code    errors.ErrorCode
	Codes   []errors.ErrorCode
}

// Value extracts the numeric value an event carries, used by condition
// evaluation.
func (e Event) Value() (float64, bool) {
	switch p := e.Payload.(type) {
	case KlinePayload:
		return p.Kline.Close, true
	case IndicatorPayload:
		return p.Value.Value, true
	case VariablePayload:
		return p.Value, true
	default:
		return 0, false
	}
}
