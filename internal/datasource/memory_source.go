package datasource

import (
	"context"
	"sort"
	"sync"

	"github.com/rxtech-lab/argo-graph/internal/types"
)

// MemorySource serves klines held in memory.
type MemorySource struct {
	data map[types.KlineKey][]types.Kline
	mu   sync.RWMutex
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		data: make(map[types.KlineKey][]types.Kline),
		mu:   sync.RWMutex{},
	}
}

// Put replaces the bars served for key.
func (m *MemorySource) Put(key types.KlineKey, klines []types.Kline) {
	sorted := append([]types.Kline(nil), klines...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = sorted
}

// Fetch implements KlineSource.
func (m *MemorySource) Fetch(ctx context.Context, key types.KlineKey, r types.TimeRange) ([]types.Kline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.data[key]
	from := sort.Search(len(all), func(i int) bool { return !all[i].Time.Before(r.Start) })
	to := sort.Search(len(all), func(i int) bool { return !all[i].Time.Before(r.End) })

	if to <= from {
		return []types.Kline{}, nil
	}

	return append([]types.Kline(nil), all[from:to]...), nil
}
