package config

import (
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/types"
)

// Params is the decoded params of one node type.
type Params interface {
	// Handles returns the ids of the node-specific output handles, in order.
	Handles(owner types.NodeID) []string

	applyDefaults()
	check() error
}

// StartParams configures the virtual account and the play loop.
type StartParams struct {
	InitialBalance float64 `yaml:"initial_balance" json:"initial_balance" jsonschema:"title=Initial Balance,description=Starting balance in quote currency,minimum=0,default=10000" validate:"gt=0"`
	Leverage       int     `yaml:"leverage" json:"leverage" jsonschema:"title=Leverage,minimum=1,maximum=125,default=1" validate:"gte=1,lte=125"`
	FeeRate        float64 `yaml:"fee_rate" json:"fee_rate" jsonschema:"title=Fee Rate,description=Commission as a fraction of notional,minimum=0,default=0" validate:"gte=0,lt=1"`
	PlaySpeed      int     `yaml:"play_speed" json:"play_speed" jsonschema:"title=Play Speed,description=Bars per second; 0 plays as fast as possible,minimum=0,default=0" validate:"gte=0"`
}

func (p *StartParams) Handles(types.NodeID) []string { return nil }

func (p *StartParams) applyDefaults() {
	if p.InitialBalance == 0 {
		p.InitialBalance = 10000
	}

	if p.Leverage == 0 {
		p.Leverage = 1
	}
}

func (p *StartParams) check() error { return nil }

// SymbolConfig selects one kline series of a kline node.
type SymbolConfig struct {
	ConfigID int            `yaml:"config_id" json:"config_id" jsonschema:"title=Config ID,minimum=0" validate:"gte=0"`
	Symbol   string         `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,required" validate:"required"`
	Interval types.Interval `yaml:"interval" json:"interval" jsonschema:"title=Interval,required,enum=1m,enum=5m,enum=15m,enum=30m,enum=1h,enum=4h,enum=6h,enum=8h,enum=12h,enum=1d,enum=1w" validate:"required"`
}

// KlineParams configures a kline node. A missing end time means "until now".
type KlineParams struct {
	Exchange types.Exchange             `yaml:"exchange" json:"exchange" jsonschema:"title=Exchange,required" validate:"required"`
	Symbols  []SymbolConfig             `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,required,minItems=1" validate:"required,min=1,dive"`
	Start    time.Time                  `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,required" validate:"required"`
	End      optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the backtest window"`
}

// UnmarshalYAML implements custom unmarshaling for KlineParams
func (p *KlineParams) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type params struct {
		Exchange types.Exchange `yaml:"exchange"`
		Symbols  []SymbolConfig `yaml:"symbols"`
		Start    string         `yaml:"start_time"`
		End      string         `yaml:"end_time"`
	}

	var raw params
	if err := unmarshal(&raw); err != nil {
		return err
	}

	p.Exchange = raw.Exchange
	p.Symbols = raw.Symbols
	p.End = optional.None[time.Time]()

	if raw.Start != "" {
		start, err := time.Parse(time.RFC3339, raw.Start)
		if err != nil {
			return fmt.Errorf("invalid start_time format, expected RFC3339: %w", err)
		}

		p.Start = start
	}

	if raw.End != "" {
		end, err := time.Parse(time.RFC3339, raw.End)
		if err != nil {
			return fmt.Errorf("invalid end_time format, expected RFC3339: %w", err)
		}

		p.End = optional.Some(end)
	}

	return nil
}

func (p *KlineParams) Handles(owner types.NodeID) []string {
	ids := make([]string, len(p.Symbols))
	for i, s := range p.Symbols {
		ids[i] = handle.ConfigHandleID(string(owner), s.ConfigID)
	}

	return ids
}

func (p *KlineParams) applyDefaults() {}

func (p *KlineParams) check() error {
	seen := make(map[int]bool, len(p.Symbols))

	for _, s := range p.Symbols {
		if seen[s.ConfigID] {
			return fmt.Errorf("duplicate symbol config_id %d", s.ConfigID)
		}

		seen[s.ConfigID] = true

		if _, err := s.Interval.Duration(); err != nil {
			return err
		}
	}

	if end, err := p.End.Take(); err == nil && !end.After(p.Start) {
		return fmt.Errorf("end_time %s must be after start_time %s", end.Format(time.RFC3339), p.Start.Format(time.RFC3339))
	}

	return nil
}

// Key returns the kline key of a symbol config.
func (p *KlineParams) Key(s SymbolConfig) types.KlineKey {
	return types.KlineKey{Exchange: p.Exchange, Symbol: s.Symbol, Interval: s.Interval}
}

// Range returns the backtest window, ending at now when no end is configured.
func (p *KlineParams) Range(now time.Time) types.TimeRange {
	return types.TimeRange{Start: p.Start, End: p.End.TakeOr(now)}
}

// IndicatorItem is one indicator computed by an indicator node.
type IndicatorItem struct {
	ConfigID int                   `yaml:"config_id" json:"config_id" jsonschema:"title=Config ID,minimum=0" validate:"gte=0"`
	Config   types.IndicatorConfig `yaml:"config" json:"config" jsonschema:"title=Indicator,required"`
}

// IndicatorParams configures an indicator node over one kline series.
type IndicatorParams struct {
	Source     types.KlineKey  `yaml:"source" json:"source" jsonschema:"title=Source Kline,required"`
	Indicators []IndicatorItem `yaml:"indicators" json:"indicators" jsonschema:"title=Indicators,required,minItems=1" validate:"required,min=1,dive"`
}

func (p *IndicatorParams) Handles(owner types.NodeID) []string {
	ids := make([]string, len(p.Indicators))
	for i, ind := range p.Indicators {
		ids[i] = handle.ConfigHandleID(string(owner), ind.ConfigID)
	}

	return ids
}

func (p *IndicatorParams) applyDefaults() {}

func (p *IndicatorParams) check() error {
	if _, err := p.Source.Interval.Duration(); err != nil {
		return err
	}

	seen := make(map[int]bool, len(p.Indicators))

	for _, ind := range p.Indicators {
		if seen[ind.ConfigID] {
			return fmt.Errorf("duplicate indicator config_id %d", ind.ConfigID)
		}

		seen[ind.ConfigID] = true
	}

	return nil
}

// Key returns the indicator key of an item.
func (p *IndicatorParams) Key(item IndicatorItem) types.IndicatorKey {
	return types.IndicatorKey{KlineKey: p.Source, Config: item.Config}
}

// ComparisonOp compares two operands of a condition.
type ComparisonOp string

const (
	OpGreater      ComparisonOp = "gt"
	OpGreaterEqual ComparisonOp = "gte"
	OpLess         ComparisonOp = "lt"
	OpLessEqual    ComparisonOp = "lte"
	OpEqual        ComparisonOp = "eq"
	OpNotEqual     ComparisonOp = "ne"
)

// Compare applies the operator.
func (op ComparisonOp) Compare(left, right float64) bool {
	switch op {
	case OpGreater:
		return left > right
	case OpGreaterEqual:
		return left >= right
	case OpLess:
		return left < right
	case OpLessEqual:
		return left <= right
	case OpEqual:
		return left == right
	case OpNotEqual:
		return left != right
	default:
		return false
	}
}

// LogicalOp joins the conditions of a case.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
)

// OperandType says where an operand's value comes from.
type OperandType string

const (
	OperandVariable OperandType = "variable"
	OperandConstant OperandType = "constant"
)

// Operand is one side of a condition: the value published by an upstream
// node's config item, or a constant.
type Operand struct {
	Type     OperandType  `yaml:"type" json:"type" jsonschema:"title=Type,enum=variable,enum=constant" validate:"omitempty,oneof=variable constant"`
	NodeID   types.NodeID `yaml:"node_id,omitempty" json:"node_id,omitempty" jsonschema:"title=Node ID"`
	ConfigID int          `yaml:"config_id,omitempty" json:"config_id,omitempty" jsonschema:"title=Config ID"`
	Value    float64      `yaml:"value,omitempty" json:"value,omitempty" jsonschema:"title=Constant Value"`
}

// Ref identifies the upstream value a variable operand reads.
type Ref struct {
	NodeID   types.NodeID
	ConfigID int
}

func (o Operand) Ref() Ref {
	return Ref{NodeID: o.NodeID, ConfigID: o.ConfigID}
}

// ConditionConfig compares two operands.
type ConditionConfig struct {
	Left  Operand      `yaml:"left" json:"left" jsonschema:"title=Left,required"`
	Op    ComparisonOp `yaml:"op" json:"op" jsonschema:"title=Operator,required,enum=gt,enum=gte,enum=lt,enum=lte,enum=eq,enum=ne" validate:"required,oneof=gt gte lt lte eq ne"`
	Right Operand      `yaml:"right" json:"right" jsonschema:"title=Right,required"`
}

// CaseConfig is one branch of an if-else node.
type CaseConfig struct {
	CaseID     int               `yaml:"case_id" json:"case_id" jsonschema:"title=Case ID,minimum=1" validate:"gte=1"`
	Logical    LogicalOp         `yaml:"logical,omitempty" json:"logical,omitempty" jsonschema:"title=Logical Operator,enum=and,enum=or,default=and" validate:"omitempty,oneof=and or"`
	Conditions []ConditionConfig `yaml:"conditions" json:"conditions" jsonschema:"title=Conditions,required,minItems=1" validate:"required,min=1,dive"`
}

// IfElseParams configures an if-else node. Cases are evaluated in order.
type IfElseParams struct {
	Cases []CaseConfig `yaml:"cases" json:"cases" jsonschema:"title=Cases,required,minItems=1" validate:"required,min=1,dive"`
}

func (p *IfElseParams) Handles(owner types.NodeID) []string {
	ids := make([]string, 0, len(p.Cases)+1)
	for _, c := range p.Cases {
		ids = append(ids, handle.ConfigHandleID(string(owner), c.CaseID))
	}

	return append(ids, handle.ElseHandleID(string(owner)))
}

func (p *IfElseParams) applyDefaults() {
	for i := range p.Cases {
		if p.Cases[i].Logical == "" {
			p.Cases[i].Logical = LogicalAnd
		}

		for j := range p.Cases[i].Conditions {
			c := &p.Cases[i].Conditions[j]
			c.Left.Type = defaultOperandType(c.Left)
			c.Right.Type = defaultOperandType(c.Right)
		}
	}
}

func defaultOperandType(o Operand) OperandType {
	if o.Type != "" {
		return o.Type
	}

	if o.NodeID != "" {
		return OperandVariable
	}

	return OperandConstant
}

func (p *IfElseParams) check() error {
	seen := make(map[int]bool, len(p.Cases))

	for _, c := range p.Cases {
		if seen[c.CaseID] {
			return fmt.Errorf("duplicate case_id %d", c.CaseID)
		}

		seen[c.CaseID] = true

		for _, cond := range c.Conditions {
			if cond.Left.Type != OperandVariable {
				return fmt.Errorf("case %d: left operand must be a variable", c.CaseID)
			}

			for _, o := range []Operand{cond.Left, cond.Right} {
				if o.Type == OperandVariable && o.NodeID == "" {
					return fmt.Errorf("case %d: variable operand needs a node_id", c.CaseID)
				}
			}
		}
	}

	return nil
}

// Inputs returns every upstream value the cases read, in first-use order.
func (p *IfElseParams) Inputs() []Ref {
	var refs []Ref

	seen := make(map[Ref]bool)

	for _, c := range p.Cases {
		for _, cond := range c.Conditions {
			for _, o := range []Operand{cond.Left, cond.Right} {
				if o.Type != OperandVariable || seen[o.Ref()] {
					continue
				}

				seen[o.Ref()] = true
				refs = append(refs, o.Ref())
			}
		}
	}

	return refs
}

// VariableKind selects custom or system variables.
type VariableKind string

const (
	VariableCustom VariableKind = "custom"
	VariableSystem VariableKind = "system"
)

// VariableOp is what a variable item does when triggered.
type VariableOp string

const (
	VariableGet      VariableOp = "get"
	VariableSet      VariableOp = "set"
	VariableAdd      VariableOp = "add"
	VariableSubtract VariableOp = "subtract"
	VariableMultiply VariableOp = "multiply"
	VariableDivide   VariableOp = "divide"
	VariableReset    VariableOp = "reset"
)

// VariableItem is one variable operation of a variable node.
type VariableItem struct {
	ConfigID int          `yaml:"config_id" json:"config_id" jsonschema:"title=Config ID,minimum=0" validate:"gte=0"`
	Kind     VariableKind `yaml:"kind" json:"kind" jsonschema:"title=Kind,enum=custom,enum=system,default=custom" validate:"required,oneof=custom system"`
	Name     string       `yaml:"name" json:"name" jsonschema:"title=Name,required" validate:"required"`
	Op       VariableOp   `yaml:"op" json:"op" jsonschema:"title=Operation,enum=get,enum=set,enum=add,enum=subtract,enum=multiply,enum=divide,enum=reset,default=get" validate:"required,oneof=get set add subtract multiply divide reset"`
	Value    string       `yaml:"value,omitempty" json:"value,omitempty" jsonschema:"title=Operand Value"`
	Symbol   string       `yaml:"symbol,omitempty" json:"symbol,omitempty" jsonschema:"title=Symbol,description=Symbol filter for system variables"`
}

// VariableParams configures a variable node.
type VariableParams struct {
	Items []VariableItem `yaml:"items" json:"items" jsonschema:"title=Items,required,minItems=1" validate:"required,min=1,dive"`
}

func (p *VariableParams) Handles(owner types.NodeID) []string {
	ids := make([]string, len(p.Items))
	for i, item := range p.Items {
		ids[i] = handle.ConfigHandleID(string(owner), item.ConfigID)
	}

	return ids
}

func (p *VariableParams) applyDefaults() {
	for i := range p.Items {
		if p.Items[i].Kind == "" {
			p.Items[i].Kind = VariableCustom
		}

		if p.Items[i].Op == "" {
			p.Items[i].Op = VariableGet
		}
	}
}

var systemVariables = map[types.SysVariableName]bool{
	types.SysVariablePositionCount:     true,
	types.SysVariableTotalOrders:       true,
	types.SysVariableFilledOrders:      true,
	types.SysVariableCurrentTime:       true,
	types.SysVariableAvailableBalance:  true,
	types.SysVariableCumulativeSignals: true,
}

func (p *VariableParams) check() error {
	seen := make(map[int]bool, len(p.Items))

	for _, item := range p.Items {
		if seen[item.ConfigID] {
			return fmt.Errorf("duplicate variable config_id %d", item.ConfigID)
		}

		seen[item.ConfigID] = true

		if item.Kind == VariableSystem {
			if !systemVariables[types.SysVariableName(item.Name)] {
				return fmt.Errorf("unknown system variable %q", item.Name)
			}

			if item.Op != VariableGet {
				return fmt.Errorf("system variable %q is read only", item.Name)
			}

			continue
		}

		switch item.Op {
		case VariableAdd, VariableSubtract, VariableMultiply, VariableDivide:
			v, err := decimal.NewFromString(item.Value)
			if err != nil {
				return fmt.Errorf("variable %q: %s needs a numeric value: %w", item.Name, item.Op, err)
			}

			if item.Op == VariableDivide && v.IsZero() {
				return fmt.Errorf("variable %q: division by zero", item.Name)
			}
		case VariableGet, VariableSet, VariableReset:
		}
	}

	return nil
}

// OrderItem is one order a futures order node places when triggered.
type OrderItem struct {
	ConfigID  int             `yaml:"config_id" json:"config_id" jsonschema:"title=Config ID,minimum=0" validate:"gte=0"`
	Exchange  types.Exchange  `yaml:"exchange" json:"exchange" jsonschema:"title=Exchange,required" validate:"required"`
	Symbol    string          `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,required" validate:"required"`
	Side      types.OrderSide `yaml:"side" json:"side" jsonschema:"title=Side,enum=BUY,enum=SELL,required" validate:"required,oneof=BUY SELL"`
	OrderType types.OrderType `yaml:"order_type" json:"order_type" jsonschema:"title=Order Type,enum=MARKET,enum=LIMIT,default=MARKET" validate:"required,oneof=MARKET LIMIT"`
	Quantity  float64         `yaml:"quantity" json:"quantity" jsonschema:"title=Quantity,exclusiveMinimum=0,required" validate:"gt=0"`
	Price     float64         `yaml:"price,omitempty" json:"price,omitempty" jsonschema:"title=Limit Price,minimum=0" validate:"gte=0"`
}

// FuturesOrderParams configures a futures order node.
type FuturesOrderParams struct {
	Orders []OrderItem `yaml:"orders" json:"orders" jsonschema:"title=Orders,required,minItems=1" validate:"required,min=1,dive"`
}

func (p *FuturesOrderParams) Handles(owner types.NodeID) []string {
	ids := make([]string, len(p.Orders))
	for i, o := range p.Orders {
		ids[i] = handle.ConfigHandleID(string(owner), o.ConfigID)
	}

	return ids
}

func (p *FuturesOrderParams) applyDefaults() {
	for i := range p.Orders {
		if p.Orders[i].OrderType == "" {
			p.Orders[i].OrderType = types.OrderTypeMarket
		}
	}
}

func (p *FuturesOrderParams) check() error {
	seen := make(map[int]bool, len(p.Orders))

	for _, o := range p.Orders {
		if seen[o.ConfigID] {
			return fmt.Errorf("duplicate order config_id %d", o.ConfigID)
		}

		seen[o.ConfigID] = true

		if o.OrderType == types.OrderTypeLimit && o.Price <= 0 {
			return fmt.Errorf("order %d: limit orders need a positive price", o.ConfigID)
		}
	}

	return nil
}

// Request builds the trading request of an order item.
func (o OrderItem) Request(nodeID types.NodeID) types.OrderRequest {
	return types.OrderRequest{
		NodeID:    nodeID,
		ConfigID:  o.ConfigID,
		Exchange:  o.Exchange,
		Symbol:    o.Symbol,
		Side:      o.Side,
		OrderType: o.OrderType,
		Quantity:  decimal.NewFromFloat(o.Quantity),
		Price:     decimal.NewFromFloat(o.Price),
	}
}

// PositionItem selects the position a position node reports.
type PositionItem struct {
	ConfigID int    `yaml:"config_id" json:"config_id" jsonschema:"title=Config ID,minimum=0" validate:"gte=0"`
	Symbol   string `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,required" validate:"required"`
}

// PositionParams configures a position node.
type PositionParams struct {
	Items []PositionItem `yaml:"items" json:"items" jsonschema:"title=Items,required,minItems=1" validate:"required,min=1,dive"`
}

func (p *PositionParams) Handles(owner types.NodeID) []string {
	ids := make([]string, len(p.Items))
	for i, item := range p.Items {
		ids[i] = handle.ConfigHandleID(string(owner), item.ConfigID)
	}

	return ids
}

func (p *PositionParams) applyDefaults() {}

func (p *PositionParams) check() error {
	seen := make(map[int]bool, len(p.Items))

	for _, item := range p.Items {
		if seen[item.ConfigID] {
			return fmt.Errorf("duplicate position config_id %d", item.ConfigID)
		}

		seen[item.ConfigID] = true
	}

	return nil
}

// OutputParams configures an output node. It has no settings.
type OutputParams struct{}

func (p *OutputParams) Handles(types.NodeID) []string { return nil }

func (p *OutputParams) applyDefaults() {}

func (p *OutputParams) check() error { return nil }
