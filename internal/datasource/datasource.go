package datasource

import (
	"context"

	"github.com/rxtech-lab/argo-graph/internal/types"
)

// KlineSource fetches historical klines. Implementations must return bars
// inside the half-open range [r.Start, r.End), ascending by time.
type KlineSource interface {
	Fetch(ctx context.Context, key types.KlineKey, r types.TimeRange) ([]types.Kline, error)
}
