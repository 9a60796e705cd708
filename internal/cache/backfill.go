package cache

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rxtech-lab/argo-graph/internal/datasource"
	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

const (
	// DefaultBackfillPermits is the number of chunks fetched concurrently.
	DefaultBackfillPermits = 5
	// DefaultBackfillThreshold is the estimated bar count above which a range is chunked.
	DefaultBackfillThreshold = 5000

	day = 24 * time.Hour
)

// Backfiller loads historical klines into a KlineStore.
type Backfiller struct {
	source    datasource.KlineSource
	store     *KlineStore
	permits   int64
	threshold int
	logger    *logger.Logger
}

// BackfillOption configures a Backfiller.
type BackfillOption func(*Backfiller)

// WithPermits sets how many chunks may be in flight at once.
func WithPermits(n int64) BackfillOption {
	return func(b *Backfiller) {
		if n > 0 {
			b.permits = n
		}
	}
}

// WithThreshold sets the estimated bar count above which ranges are chunked.
func WithThreshold(bars int) BackfillOption {
	return func(b *Backfiller) {
		b.threshold = bars
	}
}

// NewBackfiller creates a Backfiller writing into store.
func NewBackfiller(source datasource.KlineSource, store *KlineStore, log *logger.Logger, opts ...BackfillOption) *Backfiller {
	b := &Backfiller{
		source:    source,
		store:     store,
		permits:   DefaultBackfillPermits,
		threshold: DefaultBackfillThreshold,
		logger:    log,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Backfill fetches key.Range and appends it into the store under key.KlineKey.
// Chunks are appended as they complete, so a failure part way leaves a sorted,
// deduplicated partial series. It returns the number of bars appended.
func (b *Backfiller) Backfill(ctx context.Context, key types.BacktestKlineKey) (int, error) {
	width, err := key.Interval.Duration()
	if err != nil {
		return 0, err
	}

	if !key.Range.End.After(key.Range.Start) {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "empty backfill range %s", key.Range)
	}

	b.store.AddKey(key.KlineKey)

	chunks := []types.TimeRange{key.Range}
	if int(key.Range.Duration()/width) > b.threshold {
		chunks = SplitRange(key.Range, ChunkSize(key.Interval, key.Range.Duration()))
	}

	b.logger.Debug("Backfilling klines",
		zap.String("key", key.KlineKey.String()),
		zap.String("range", key.Range.String()),
		zap.Int("chunks", len(chunks)),
	)

	var appended atomic.Int64

	sem := semaphore.NewWeighted(b.permits)
	g, gctx := errgroup.WithContext(ctx)

	for i, chunk := range chunks {
		if err := sem.Acquire(gctx, 1); err != nil {
			// gctx is done: a chunk failed or the caller canceled.
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			klines, err := b.source.Fetch(gctx, key.KlineKey, chunk)
			if err != nil {
				return errors.Wrapf(errors.ErrCodeBackfillFailed, err, "chunk %d/%d %s", i+1, len(chunks), chunk)
			}

			b.store.Append(key.KlineKey, klines)
			appended.Add(int64(len(klines)))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		b.logger.Error("Backfill failed", zap.String("key", key.KlineKey.String()), zap.Error(err))

		return int(appended.Load()), err
	}

	if err := ctx.Err(); err != nil {
		return int(appended.Load()), errors.Wrap(errors.ErrCodeBackfillFailed, "backfill canceled", err)
	}

	return int(appended.Load()), nil
}

// ChunkSize returns the width of one fetch for interval. Finer intervals get smaller chunks.
func ChunkSize(interval types.Interval, total time.Duration) time.Duration {
	switch interval {
	case types.Interval1m:
		if total > 7*day {
			return day
		}

		return total
	case types.Interval5m:
		return 3 * day
	case types.Interval15m:
		return 7 * day
	case types.Interval1h:
		return 30 * day
	case types.Interval1d:
		return 365 * day
	default:
		return 30 * day
	}
}

// SplitRange cuts r into consecutive windows of at most size.
func SplitRange(r types.TimeRange, size time.Duration) []types.TimeRange {
	if size <= 0 {
		return []types.TimeRange{r}
	}

	var chunks []types.TimeRange

	for start := r.Start; start.Before(r.End); start = start.Add(size) {
		end := start.Add(size)
		if end.After(r.End) {
			end = r.End
		}

		chunks = append(chunks, types.TimeRange{Start: start, End: end})
	}

	return chunks
}
