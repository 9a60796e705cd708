// Package protocol is the catalogue of commands nodes send to their strategy.
// Nodes use the typed request helpers; the strategy implements Handlers and
// registers them on its command router.
package protocol

import (
	"context"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-graph/internal/command"
	"github.com/rxtech-lab/argo-graph/internal/types"
)

const (
	KindGetStrategyKeys           = "GetStrategyKeys"
	KindGetMinInterval            = "GetMinInterval"
	KindGetCurrentTime            = "GetCurrentTime"
	KindInitKlineData             = "InitKlineData"
	KindAppendKlineData           = "AppendKlineData"
	KindGetKlineData              = "GetKlineData"
	KindUpdateKlineData           = "UpdateKlineData"
	KindInitIndicatorData         = "InitIndicatorData"
	KindGetIndicatorData          = "GetIndicatorData"
	KindUpdateIndicatorData       = "UpdateIndicatorData"
	KindInitCustomVariableValue   = "InitCustomVariableValue"
	KindGetCustomVariableValue    = "GetCustomVariableValue"
	KindUpdateCustomVariableValue = "UpdateCustomVariableValue"
	KindResetCustomVariableValue  = "ResetCustomVariableValue"
	KindUpdateSysVariableValue    = "UpdateSysVariableValue"
	KindAddNodeCycleTracker       = "AddNodeCycleTracker"
)

// Empty is the payload of requests and replies that carry nothing.
type Empty struct{}

// StrategyKeys lists the series a strategy serves.
type StrategyKeys struct {
	Klines     []types.KlineKey
	Indicators []types.IndicatorKey
}

type KlineData struct {
	Key    types.KlineKey
	Klines []types.Kline
}

// KlineQuery selects a window of a kline series. See cache.Entry.Slice for
// the index and limit semantics.
type KlineQuery struct {
	Key       types.KlineKey
	PlayIndex optional.Option[int]
	Limit     optional.Option[int]
}

type KlineUpdate struct {
	Key   types.KlineKey
	Kline types.Kline
}

type IndicatorData struct {
	Key    types.IndicatorKey
	Values []types.IndicatorValue
}

type IndicatorQuery struct {
	Key       types.IndicatorKey
	PlayIndex optional.Option[int]
	Limit     optional.Option[int]
}

type IndicatorUpdate struct {
	Key   types.IndicatorKey
	Value types.IndicatorValue
}

// VariableOp is an operation applied to a numeric custom variable.
type VariableOp string

const (
	VariableOpSet      VariableOp = "set"
	VariableOpAdd      VariableOp = "add"
	VariableOpSubtract VariableOp = "subtract"
	VariableOpMultiply VariableOp = "multiply"
	VariableOpDivide   VariableOp = "divide"
)

type VariableUpdate struct {
	Name  string
	Op    VariableOp
	Value string
}

// CycleTracker records how long a node spent on one play index.
type CycleTracker struct {
	NodeID    types.NodeID
	PlayIndex int
	Phase     string
	Duration  time.Duration
}

// Handlers is implemented by the strategy context.
type Handlers interface {
	GetStrategyKeys(ctx context.Context, req Empty) (StrategyKeys, error)
	GetMinInterval(ctx context.Context, req Empty) (types.Interval, error)
	GetCurrentTime(ctx context.Context, req Empty) (time.Time, error)
	InitKlineData(ctx context.Context, req KlineData) (Empty, error)
	AppendKlineData(ctx context.Context, req KlineData) (int, error)
	GetKlineData(ctx context.Context, req KlineQuery) ([]types.Kline, error)
	UpdateKlineData(ctx context.Context, req KlineUpdate) (types.Kline, error)
	InitIndicatorData(ctx context.Context, req IndicatorData) (Empty, error)
	GetIndicatorData(ctx context.Context, req IndicatorQuery) ([]types.IndicatorValue, error)
	UpdateIndicatorData(ctx context.Context, req IndicatorUpdate) (types.IndicatorValue, error)
	InitCustomVariableValue(ctx context.Context, req []types.CustomVariable) (Empty, error)
	GetCustomVariableValue(ctx context.Context, name string) (types.CustomVariable, error)
	UpdateCustomVariableValue(ctx context.Context, req VariableUpdate) (types.CustomVariable, error)
	ResetCustomVariableValue(ctx context.Context, name string) (types.CustomVariable, error)
	UpdateSysVariableValue(ctx context.Context, req types.SysVariable) (Empty, error)
	AddNodeCycleTracker(ctx context.Context, req CycleTracker) (Empty, error)
}

// Register binds every command of the catalogue to h.
func Register(router *command.Router, h Handlers) {
	command.Handle(router, KindGetStrategyKeys, h.GetStrategyKeys)
	command.Handle(router, KindGetMinInterval, h.GetMinInterval)
	command.Handle(router, KindGetCurrentTime, h.GetCurrentTime)
	command.Handle(router, KindInitKlineData, h.InitKlineData)
	command.Handle(router, KindAppendKlineData, h.AppendKlineData)
	command.Handle(router, KindGetKlineData, h.GetKlineData)
	command.Handle(router, KindUpdateKlineData, h.UpdateKlineData)
	command.Handle(router, KindInitIndicatorData, h.InitIndicatorData)
	command.Handle(router, KindGetIndicatorData, h.GetIndicatorData)
	command.Handle(router, KindUpdateIndicatorData, h.UpdateIndicatorData)
	command.Handle(router, KindInitCustomVariableValue, h.InitCustomVariableValue)
	command.Handle(router, KindGetCustomVariableValue, h.GetCustomVariableValue)
	command.Handle(router, KindUpdateCustomVariableValue, h.UpdateCustomVariableValue)
	command.Handle(router, KindResetCustomVariableValue, h.ResetCustomVariableValue)
	command.Handle(router, KindUpdateSysVariableValue, h.UpdateSysVariableValue)
	command.Handle(router, KindAddNodeCycleTracker, h.AddNodeCycleTracker)
}

func GetStrategyKeys(ctx context.Context, s *command.Sender) (StrategyKeys, error) {
	return command.Request[Empty, StrategyKeys](ctx, s, KindGetStrategyKeys, Empty{})
}

func GetMinInterval(ctx context.Context, s *command.Sender) (types.Interval, error) {
	return command.Request[Empty, types.Interval](ctx, s, KindGetMinInterval, Empty{})
}

// GetCurrentTime returns the timestamp of the min-interval bar at the current play index.
func GetCurrentTime(ctx context.Context, s *command.Sender) (time.Time, error) {
	return command.Request[Empty, time.Time](ctx, s, KindGetCurrentTime, Empty{})
}

func InitKlineData(ctx context.Context, s *command.Sender, key types.KlineKey, klines []types.Kline) error {
	_, err := command.Request[KlineData, Empty](ctx, s, KindInitKlineData, KlineData{Key: key, Klines: klines})

	return err
}

// AppendKlineData merges klines into the series and returns its new length.
func AppendKlineData(ctx context.Context, s *command.Sender, key types.KlineKey, klines []types.Kline) (int, error) {
	return command.Request[KlineData, int](ctx, s, KindAppendKlineData, KlineData{Key: key, Klines: klines})
}

func GetKlineData(ctx context.Context, s *command.Sender, q KlineQuery) ([]types.Kline, error) {
	return command.Request[KlineQuery, []types.Kline](ctx, s, KindGetKlineData, q)
}

func UpdateKlineData(ctx context.Context, s *command.Sender, key types.KlineKey, kline types.Kline) (types.Kline, error) {
	return command.Request[KlineUpdate, types.Kline](ctx, s, KindUpdateKlineData, KlineUpdate{Key: key, Kline: kline})
}

func InitIndicatorData(ctx context.Context, s *command.Sender, key types.IndicatorKey, values []types.IndicatorValue) error {
	_, err := command.Request[IndicatorData, Empty](ctx, s, KindInitIndicatorData, IndicatorData{Key: key, Values: values})

	return err
}

func GetIndicatorData(ctx context.Context, s *command.Sender, q IndicatorQuery) ([]types.IndicatorValue, error) {
	return command.Request[IndicatorQuery, []types.IndicatorValue](ctx, s, KindGetIndicatorData, q)
}

func UpdateIndicatorData(
	ctx context.Context, s *command.Sender, key types.IndicatorKey, value types.IndicatorValue,
) (types.IndicatorValue, error) {
	return command.Request[IndicatorUpdate, types.IndicatorValue](ctx, s, KindUpdateIndicatorData,
		IndicatorUpdate{Key: key, Value: value})
}

func InitCustomVariableValue(ctx context.Context, s *command.Sender, vars []types.CustomVariable) error {
	_, err := command.Request[[]types.CustomVariable, Empty](ctx, s, KindInitCustomVariableValue, vars)

	return err
}

func GetCustomVariableValue(ctx context.Context, s *command.Sender, name string) (types.CustomVariable, error) {
	return command.Request[string, types.CustomVariable](ctx, s, KindGetCustomVariableValue, name)
}

func UpdateCustomVariableValue(ctx context.Context, s *command.Sender, u VariableUpdate) (types.CustomVariable, error) {
	return command.Request[VariableUpdate, types.CustomVariable](ctx, s, KindUpdateCustomVariableValue, u)
}

func ResetCustomVariableValue(ctx context.Context, s *command.Sender, name string) (types.CustomVariable, error) {
	return command.Request[string, types.CustomVariable](ctx, s, KindResetCustomVariableValue, name)
}

func UpdateSysVariableValue(ctx context.Context, s *command.Sender, v types.SysVariable) error {
	_, err := command.Request[types.SysVariable, Empty](ctx, s, KindUpdateSysVariableValue, v)

	return err
}

func AddNodeCycleTracker(ctx context.Context, s *command.Sender, t CycleTracker) error {
	_, err := command.Request[CycleTracker, Empty](ctx, s, KindAddNodeCycleTracker, t)

	return err
}
