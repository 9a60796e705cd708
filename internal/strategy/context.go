package strategy

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/cache"
	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/node"
	"github.com/rxtech-lab/argo-graph/internal/protocol"
	"github.com/rxtech-lab/argo-graph/internal/stats"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// strategyContext is the state nodes reach through commands. It implements
// protocol.Handlers.
type strategyContext struct {
	klines     *cache.KlineStore
	indicators *cache.IndicatorStore
	playIndex  *node.PlayIndexWatch
	stats      *stats.Tracker

	mu            sync.RWMutex
	klineKeys     []types.KlineKey
	indicatorKeys []types.IndicatorKey
	minInterval   types.Interval
	variables     map[string]types.CustomVariable
	sysVariables  map[string]types.SysVariable

	logger *logger.Logger
}

var _ protocol.Handlers = (*strategyContext)(nil)

func newStrategyContext(playIndex *node.PlayIndexWatch, tracker *stats.Tracker, log *logger.Logger) *strategyContext {
	return &strategyContext{
		klines:        cache.NewKlineStore(),
		indicators:    cache.NewIndicatorStore(),
		playIndex:     playIndex,
		stats:         tracker,
		mu:            sync.RWMutex{},
		klineKeys:     nil,
		indicatorKeys: nil,
		minInterval:   "",
		variables:     make(map[string]types.CustomVariable),
		sysVariables:  make(map[string]types.SysVariable),
		logger:        log,
	}
}

// setKeys records the series the strategy serves and derives the min interval.
func (c *strategyContext) setKeys(klines []types.KlineKey, indicators []types.IndicatorKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.Slice(klines, func(i, j int) bool { return klines[i].String() < klines[j].String() })
	sort.Slice(indicators, func(i, j int) bool { return indicators[i].String() < indicators[j].String() })

	c.klineKeys = klines
	c.indicatorKeys = indicators
	c.minInterval = ""

	for _, k := range klines {
		if c.minInterval == "" || k.Interval.Less(c.minInterval) {
			c.minInterval = k.Interval
		}
	}

	for _, k := range klines {
		c.klines.AddKey(k)
	}
}

// minIntervalKeys returns the kline keys at the finest interval.
func (c *strategyContext) minIntervalKeys() []types.KlineKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []types.KlineKey

	for _, k := range c.klineKeys {
		if k.Interval == c.minInterval {
			out = append(out, k)
		}
	}

	return out
}

func (c *strategyContext) interval() types.Interval {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.minInterval
}

// barAt returns the min-interval bar of key at play index idx.
func (c *strategyContext) barAt(key types.KlineKey, idx int) (types.Kline, error) {
	bars, err := c.klines.Slice(key, optional.Some(idx), optional.Some(1))
	if err != nil {
		return types.Kline{}, err
	}

	return bars[0], nil
}

// timeAt returns the timestamp of the min-interval bar at idx.
func (c *strategyContext) timeAt(idx int) (time.Time, error) {
	if idx < 0 {
		return time.Time{}, errors.New(errors.ErrCodeStrategyNotReady, "play has not started")
	}

	keys := c.minIntervalKeys()
	if len(keys) == 0 {
		return time.Time{}, errors.New(errors.ErrCodeStrategyKeyNotFound, "strategy has no kline series")
	}

	bar, err := c.barAt(keys[0], idx)
	if err != nil {
		return time.Time{}, err
	}

	return bar.Time, nil
}

// signalCount checks that every min-interval series has the same length and
// returns it.
func (c *strategyContext) signalCount() (int, error) {
	count := -1

	for _, key := range c.minIntervalKeys() {
		n, err := c.klines.Len(key)
		if err != nil {
			return 0, err
		}

		if count >= 0 && n != count {
			return 0, errors.Newf(errors.ErrCodeKlineLengthMismatch,
				"min interval series have different lengths: %s has %d bars, expected %d", key, n, count)
		}

		count = n
	}

	if count < 0 {
		return 0, nil
	}

	return count, nil
}

// reset restores the variables and forgets the system variables.
func (c *strategyContext) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, v := range c.variables {
		v.Value = v.InitialValue
		c.variables[name] = v
	}

	c.sysVariables = make(map[string]types.SysVariable)
}

// SysVariables returns the system variables published so far, sorted by name.
func (c *strategyContext) SysVariables() []types.SysVariable {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.SysVariable, 0, len(c.sysVariables))
	for _, v := range c.sysVariables {
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}

		return out[i].Symbol < out[j].Symbol
	})

	return out
}

func (c *strategyContext) GetStrategyKeys(context.Context, protocol.Empty) (protocol.StrategyKeys, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := protocol.StrategyKeys{
		Klines:     make([]types.KlineKey, len(c.klineKeys)),
		Indicators: make([]types.IndicatorKey, len(c.indicatorKeys)),
	}
	copy(keys.Klines, c.klineKeys)
	copy(keys.Indicators, c.indicatorKeys)

	return keys, nil
}

func (c *strategyContext) GetMinInterval(context.Context, protocol.Empty) (types.Interval, error) {
	interval := c.interval()
	if interval == "" {
		return "", errors.New(errors.ErrCodeStrategyKeyNotFound, "strategy has no kline series")
	}

	return interval, nil
}

func (c *strategyContext) GetCurrentTime(context.Context, protocol.Empty) (time.Time, error) {
	return c.timeAt(c.playIndex.Get())
}

func (c *strategyContext) InitKlineData(_ context.Context, req protocol.KlineData) (protocol.Empty, error) {
	c.klines.Init(req.Key, req.Klines)

	c.logger.Debug("Kline data initialized", zap.String("key", req.Key.String()), zap.Int("bars", len(req.Klines)))

	return protocol.Empty{}, nil
}

func (c *strategyContext) AppendKlineData(_ context.Context, req protocol.KlineData) (int, error) {
	c.klines.Append(req.Key, req.Klines)

	return c.klines.Len(req.Key)
}

// GetKlineData slices min-interval series by play index. Coarser series are
// sliced at the bar open at or before the current min-interval bar.
func (c *strategyContext) GetKlineData(_ context.Context, q protocol.KlineQuery) ([]types.Kline, error) {
	if q.PlayIndex.IsNone() || q.Key.Interval == c.interval() {
		return c.klines.Slice(q.Key, q.PlayIndex, q.Limit)
	}

	t, err := c.timeAt(q.PlayIndex.Unwrap())
	if err != nil {
		return nil, err
	}

	return c.klines.SliceAtOrBefore(q.Key, t, q.Limit)
}

func (c *strategyContext) UpdateKlineData(_ context.Context, req protocol.KlineUpdate) (types.Kline, error) {
	c.klines.Update(req.Key, req.Kline)

	return req.Kline, nil
}

func (c *strategyContext) InitIndicatorData(_ context.Context, req protocol.IndicatorData) (protocol.Empty, error) {
	c.indicators.Init(req.Key, req.Values)

	c.logger.Debug("Indicator data initialized", zap.String("key", req.Key.String()), zap.Int("values", len(req.Values)))

	return protocol.Empty{}, nil
}

func (c *strategyContext) GetIndicatorData(_ context.Context, q protocol.IndicatorQuery) ([]types.IndicatorValue, error) {
	if q.PlayIndex.IsNone() || q.Key.Interval == c.interval() {
		return c.indicators.Slice(q.Key, q.PlayIndex, q.Limit)
	}

	t, err := c.timeAt(q.PlayIndex.Unwrap())
	if err != nil {
		return nil, err
	}

	return c.indicators.SliceAtOrBefore(q.Key, t, q.Limit)
}

func (c *strategyContext) UpdateIndicatorData(_ context.Context, req protocol.IndicatorUpdate) (types.IndicatorValue, error) {
	c.indicators.Update(req.Key, req.Value)

	return req.Value, nil
}

func (c *strategyContext) InitCustomVariableValue(_ context.Context, vars []types.CustomVariable) (protocol.Empty, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.variables = make(map[string]types.CustomVariable, len(vars))

	for _, v := range vars {
		if v.InitialValue == "" {
			v.InitialValue = v.Value
		}

		v.Value = v.InitialValue
		c.variables[v.Name] = v
	}

	return protocol.Empty{}, nil
}

func (c *strategyContext) GetCustomVariableValue(_ context.Context, name string) (types.CustomVariable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.variables[name]
	if !ok {
		return types.CustomVariable{}, errors.Newf(errors.ErrCodeVariableNotFound, "custom variable %q not found", name)
	}

	return v, nil
}

func (c *strategyContext) UpdateCustomVariableValue(_ context.Context, u protocol.VariableUpdate) (types.CustomVariable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.variables[u.Name]
	if !ok {
		return types.CustomVariable{}, errors.Newf(errors.ErrCodeVariableNotFound, "custom variable %q not found", u.Name)
	}

	updated, err := applyVariableOp(v, u.Op, u.Value)
	if err != nil {
		return types.CustomVariable{}, err
	}

	c.variables[u.Name] = updated

	return updated, nil
}

func (c *strategyContext) ResetCustomVariableValue(_ context.Context, name string) (types.CustomVariable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.variables[name]
	if !ok {
		return types.CustomVariable{}, errors.Newf(errors.ErrCodeVariableNotFound, "custom variable %q not found", name)
	}

	v.Value = v.InitialValue
	c.variables[name] = v

	return v, nil
}

func (c *strategyContext) UpdateSysVariableValue(_ context.Context, v types.SysVariable) (protocol.Empty, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sysVariables[string(v.Name)+"|"+v.Symbol] = v

	return protocol.Empty{}, nil
}

func (c *strategyContext) AddNodeCycleTracker(_ context.Context, t protocol.CycleTracker) (protocol.Empty, error) {
	c.stats.AddCycleTracker(t)

	return protocol.Empty{}, nil
}

// applyVariableOp applies op to v. Arithmetic needs a numeric variable.
func applyVariableOp(v types.CustomVariable, op protocol.VariableOp, operand string) (types.CustomVariable, error) {
	if op == protocol.VariableOpSet {
		if err := checkValue(v.ValueType, operand); err != nil {
			return types.CustomVariable{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "variable %q", v.Name)
		}

		v.Value = operand

		return v, nil
	}

	if v.ValueType != types.VariableValueTypeNumber {
		return types.CustomVariable{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"variable %q: %s needs a number variable, got %s", v.Name, op, v.ValueType)
	}

	current, err := v.Number()
	if err != nil {
		return types.CustomVariable{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "variable %q holds %q", v.Name, v.Value)
	}

	delta, err := decimal.NewFromString(operand)
	if err != nil {
		return types.CustomVariable{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "variable %q: operand %q", v.Name, operand)
	}

	switch op {
	case protocol.VariableOpAdd:
		current = current.Add(delta)
	case protocol.VariableOpSubtract:
		current = current.Sub(delta)
	case protocol.VariableOpMultiply:
		current = current.Mul(delta)
	case protocol.VariableOpDivide:
		if delta.IsZero() {
			return types.CustomVariable{}, errors.Newf(errors.ErrCodeInvalidParameter, "variable %q: division by zero", v.Name)
		}

		current = current.Div(delta)
	case protocol.VariableOpSet:
	default:
		return types.CustomVariable{}, errors.Newf(errors.ErrCodeInvalidParameter, "variable %q: unknown operation %q", v.Name, op)
	}

	v.Value = current.String()

	return v, nil
}

func checkValue(t types.VariableValueType, value string) error {
	switch t {
	case types.VariableValueTypeNumber:
		_, err := decimal.NewFromString(value)

		return err
	case types.VariableValueTypeBoolean:
		_, err := strconv.ParseBool(value)

		return err
	case types.VariableValueTypeString:
		return nil
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown value type %q", t)
	}
}
