package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// VariableValueType is the declared type of a custom variable.
type VariableValueType string

const (
	VariableValueTypeNumber  VariableValueType = "number"
	VariableValueTypeBoolean VariableValueType = "boolean"
	VariableValueTypeString  VariableValueType = "string"
)

// CustomVariable is a user-declared strategy variable.
type CustomVariable struct {
	Name         string            `json:"name" yaml:"name" validate:"required"`
	ValueType    VariableValueType `json:"value_type" yaml:"value_type" validate:"required,oneof=number boolean string"`
	InitialValue string            `json:"initial_value" yaml:"initial_value"`
	Value        string            `json:"value" yaml:"value"`
}

// Number returns the value as a decimal when the variable is numeric.
func (v CustomVariable) Number() (decimal.Decimal, error) {
	return decimal.NewFromString(v.Value)
}

// SysVariableName names a built-in strategy variable.
type SysVariableName string

const (
	SysVariablePositionCount     SysVariableName = "position_count"
	SysVariableTotalOrders       SysVariableName = "total_orders"
	SysVariableFilledOrders      SysVariableName = "filled_orders"
	SysVariableCurrentTime       SysVariableName = "current_time"
	SysVariableAvailableBalance  SysVariableName = "available_balance"
	SysVariableCumulativeSignals SysVariableName = "cumulative_signals"
)

// SysVariable is a built-in variable value published by a variable node.
type SysVariable struct {
	Name      SysVariableName `json:"name" yaml:"name"`
	Symbol    string          `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Value     string          `json:"value" yaml:"value"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
}
