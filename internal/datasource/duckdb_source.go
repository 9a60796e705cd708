package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// DuckDBSource reads one-minute bars from a market_data relation and
// aggregates them to the requested interval.
type DuckDBSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBSource opens a DuckDB database. An empty path opens an in-memory database.
func NewDuckDBSource(path string, log *logger.Logger) (*DuckDBSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open duckdb", err)
	}

	return &DuckDBSource{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize exposes a parquet file as the market_data view.
func (d *DuckDBSource) Initialize(ctx context.Context, parquetPath string) error {
	d.logger.Debug("Initializing DuckDB kline source", zap.String("path", parquetPath))

	if _, err := d.db.ExecContext(ctx, `DROP VIEW IF EXISTS market_data;`); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop existing view", err)
	}

	// squirrel has no CREATE VIEW support
	query := fmt.Sprintf(`CREATE VIEW market_data AS SELECT * FROM read_parquet('%s');`, parquetPath)
	if _, err := d.db.ExecContext(ctx, query); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to create view from %s", parquetPath)
	}

	return nil
}

// Write stores bars in a market_data table, creating it when missing.
// It cannot be combined with Initialize on the same database.
func (d *DuckDBSource) Write(ctx context.Context, symbol string, klines []types.Kline) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS market_data (
			time TIMESTAMP,
			symbol VARCHAR,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		);
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create market_data table", err)
	}

	if len(klines) == 0 {
		return nil
	}

	insert := d.sq.Insert("market_data").Columns("time", "symbol", "open", "high", "low", "close", "volume")
	for _, k := range klines {
		insert = insert.Values(k.Time.UTC(), symbol, k.Open, k.High, k.Low, k.Close, k.Volume)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to build insert", err)
	}

	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert klines", err)
	}

	return nil
}

// Fetch implements KlineSource.
func (d *DuckDBSource) Fetch(ctx context.Context, key types.KlineKey, r types.TimeRange) ([]types.Kline, error) {
	query, args, err := d.buildFetchQuery(key, r)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to query %s %s", key, r)
	}
	defer rows.Close()

	result := make([]types.Kline, 0, 256)

	for rows.Next() {
		var (
			timestamp                      time.Time
			open, high, low, close, volume float64
		)

		if err := rows.Scan(&timestamp, &open, &high, &low, &close, &volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "failed to scan row", err)
		}

		result = append(result, types.Kline{
			Time:   timestamp.UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "error iterating rows", err)
	}

	d.logger.Debug("Fetched klines",
		zap.String("key", key.String()),
		zap.String("range", r.String()),
		zap.Int("count", len(result)),
	)

	return result, nil
}

// Count returns the number of raw rows for symbol inside r.
func (d *DuckDBSource) Count(ctx context.Context, symbol string, r types.TimeRange) (int, error) {
	query, args, err := d.sq.
		Select("COUNT(*)").
		From("market_data").
		Where(squirrel.And{
			squirrel.Eq{"symbol": symbol},
			squirrel.GtOrEq{"time": r.Start},
			squirrel.Lt{"time": r.End},
		}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count rows", err)
	}

	return count, nil
}

// Close closes the database.
func (d *DuckDBSource) Close() error {
	if d.db != nil {
		return d.db.Close()
	}

	return nil
}

func (d *DuckDBSource) buildFetchQuery(key types.KlineKey, r types.TimeRange) (string, []interface{}, error) {
	minutes, err := key.Interval.Minutes()
	if err != nil {
		return "", nil, err
	}

	where := squirrel.And{
		squirrel.Eq{"symbol": key.Symbol},
		squirrel.GtOrEq{"time": r.Start},
		squirrel.Lt{"time": r.End},
	}

	var builder squirrel.SelectBuilder
	if minutes == 1 {
		builder = d.sq.
			Select("time", "open", "high", "low", "close", "volume").
			From("market_data").
			Where(where).
			OrderBy("time ASC")
	} else {
		builder = d.sq.
			Select(
				fmt.Sprintf("time_bucket(INTERVAL '%d minutes', time) AS bucket", minutes),
				"arg_min(open, time)",
				"max(high)",
				"min(low)",
				"arg_max(close, time)",
				"sum(volume)",
			).
			From("market_data").
			Where(where).
			GroupBy("bucket").
			OrderBy("bucket ASC")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build fetch query", err)
	}

	return query, args, nil
}
