// Package stats accumulates the run statistics of a strategy: node cycle
// timings, the signal count and per play index account snapshots.
package stats

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/protocol"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// Snapshot is the account state after one play index.
type Snapshot struct {
	PlayIndex int             `yaml:"play_index" json:"play_index"`
	Time      time.Time       `yaml:"time" json:"time"`
	Balance   decimal.Decimal `yaml:"balance" json:"balance"`
	Equity    decimal.Decimal `yaml:"equity" json:"equity"`
	Positions int             `yaml:"positions" json:"positions"`
}

// NodeTiming summarizes the cycle trackers of one node.
type NodeTiming struct {
	NodeID  types.NodeID  `yaml:"node_id" json:"node_id"`
	Cycles  int           `yaml:"cycles" json:"cycles"`
	Total   time.Duration `yaml:"total" json:"total"`
	Average time.Duration `yaml:"average" json:"average"`
	Max     time.Duration `yaml:"max" json:"max"`
}

// Summary is the report written at the end of a run.
type Summary struct {
	RunID          string          `yaml:"run_id" json:"run_id"`
	StrategyID     string          `yaml:"strategy_id" json:"strategy_id"`
	StrategyName   string          `yaml:"strategy_name" json:"strategy_name"`
	SessionStart   time.Time       `yaml:"session_start" json:"session_start"`
	SignalCount    int             `yaml:"signal_count" json:"signal_count"`
	PlayedCount    int             `yaml:"played_count" json:"played_count"`
	TotalOrders    int             `yaml:"total_orders" json:"total_orders"`
	FilledOrders   int             `yaml:"filled_orders" json:"filled_orders"`
	TotalFees      decimal.Decimal `yaml:"total_fees" json:"total_fees"`
	InitialBalance decimal.Decimal `yaml:"initial_balance" json:"initial_balance"`
	FinalEquity    decimal.Decimal `yaml:"final_equity" json:"final_equity"`
	MaxDrawdown    decimal.Decimal `yaml:"max_drawdown" json:"max_drawdown"`
	Nodes          []NodeTiming    `yaml:"nodes" json:"nodes"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	runID          string
	strategyID     string
	strategyName   string
	sessionStart   time.Time
	initialBalance decimal.Decimal
	signalCount    int

	cycles    map[types.NodeID][]protocol.CycleTracker
	snapshots []Snapshot
	orders    map[string]types.Order

	mu     sync.Mutex
	logger *logger.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(log *logger.Logger) *Tracker {
	return &Tracker{
		runID:          "",
		strategyID:     "",
		strategyName:   "",
		sessionStart:   time.Time{},
		initialBalance: decimal.Zero,
		signalCount:    0,
		cycles:         make(map[types.NodeID][]protocol.CycleTracker),
		snapshots:      nil,
		orders:         make(map[string]types.Order),
		mu:             sync.Mutex{},
		logger:         log.Named("stats"),
	}
}

// Initialize sets up the tracker for a run.
func (t *Tracker) Initialize(runID, strategyID, strategyName string, initialBalance decimal.Decimal, sessionStart time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.runID = runID
	t.strategyID = strategyID
	t.strategyName = strategyName
	t.initialBalance = initialBalance
	t.sessionStart = sessionStart

	t.logger.Info("Stats tracker initialized",
		zap.String("run_id", runID),
		zap.String("strategy_id", strategyID),
	)
}

// SetInitialBalance records the balance the account started with.
func (t *Tracker) SetInitialBalance(balance decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.initialBalance = balance
}

// SetSignalCount records the number of play indices in the run.
func (t *Tracker) SetSignalCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.signalCount = n
}

// SignalCount returns the number of play indices in the run.
func (t *Tracker) SignalCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.signalCount
}

// AddCycleTracker records how long a node spent on one play index.
func (t *Tracker) AddCycleTracker(c protocol.CycleTracker) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cycles[c.NodeID] = append(t.cycles[c.NodeID], c)
}

// CycleTrackers returns the trackers recorded for a node.
func (t *Tracker) CycleTrackers(nodeID types.NodeID) []protocol.CycleTracker {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]protocol.CycleTracker, len(t.cycles[nodeID]))
	copy(out, t.cycles[nodeID])

	return out
}

// RecordOrder records the latest state of an order.
func (t *Tracker) RecordOrder(order types.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.orders[order.OrderID] = order

	t.logger.Debug("Order recorded",
		zap.String("order_id", order.OrderID),
		zap.String("status", string(order.Status)),
	)
}

// RecordSnapshot records the account after a play index. A snapshot for an
// index already recorded replaces it.
func (t *Tracker) RecordSnapshot(s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.snapshots); n > 0 && t.snapshots[n-1].PlayIndex == s.PlayIndex {
		t.snapshots[n-1] = s

		return
	}

	t.snapshots = append(t.snapshots, s)
}

// Snapshots returns the recorded snapshots in play order.
func (t *Tracker) Snapshots() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Snapshot, len(t.snapshots))
	copy(out, t.snapshots)

	return out
}

// Reset drops everything recorded during play. Run identity, the initial
// balance and the signal count are kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cycles = make(map[types.NodeID][]protocol.CycleTracker)
	t.snapshots = nil
	t.orders = make(map[string]types.Order)

	t.logger.Debug("Stats tracker reset")
}

// Summary builds the run report.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := Summary{
		RunID:          t.runID,
		StrategyID:     t.strategyID,
		StrategyName:   t.strategyName,
		SessionStart:   t.sessionStart,
		SignalCount:    t.signalCount,
		PlayedCount:    len(t.snapshots),
		TotalOrders:    len(t.orders),
		FilledOrders:   0,
		TotalFees:      decimal.Zero,
		InitialBalance: t.initialBalance,
		FinalEquity:    t.initialBalance,
		MaxDrawdown:    decimal.Zero,
		Nodes:          make([]NodeTiming, 0, len(t.cycles)),
	}

	for _, order := range t.orders {
		if order.Status == types.OrderStatusFilled {
			summary.FilledOrders++
			summary.TotalFees = summary.TotalFees.Add(order.Fee)
		}
	}

	peak := t.initialBalance

	for _, s := range t.snapshots {
		if s.Equity.GreaterThan(peak) {
			peak = s.Equity
		}

		if drawdown := peak.Sub(s.Equity); drawdown.GreaterThan(summary.MaxDrawdown) {
			summary.MaxDrawdown = drawdown
		}

		summary.FinalEquity = s.Equity
	}

	for nodeID, trackers := range t.cycles {
		timing := NodeTiming{NodeID: nodeID, Cycles: len(trackers), Total: 0, Average: 0, Max: 0}

		for _, c := range trackers {
			timing.Total += c.Duration
			if c.Duration > timing.Max {
				timing.Max = c.Duration
			}
		}

		timing.Average = timing.Total / time.Duration(len(trackers))
		summary.Nodes = append(summary.Nodes, timing)
	}

	sort.Slice(summary.Nodes, func(i, j int) bool { return summary.Nodes[i].NodeID < summary.Nodes[j].NodeID })

	return summary
}

// WriteYAML writes the summary to path.
func (t *Tracker) WriteYAML(path string) error {
	data, err := yaml.Marshal(t.Summary())
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to marshal stats to YAML", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeInternal, err, "failed to write stats to %s", path)
	}

	return nil
}
