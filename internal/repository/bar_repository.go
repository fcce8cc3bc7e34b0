package repository

import (
	"context"
	"time"

	"alphasmith/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createBarsTable = `
CREATE TABLE IF NOT EXISTS bars (
    symbol      TEXT        NOT NULL,
    date        TIMESTAMPTZ NOT NULL,
    open        NUMERIC     NOT NULL,
    high        NUMERIC     NOT NULL,
    low         NUMERIC     NOT NULL,
    close       NUMERIC     NOT NULL,
    volume      NUMERIC     NOT NULL,
    PRIMARY KEY (symbol, date)
);

CREATE INDEX IF NOT EXISTS idx_bars_symbol_date
    ON bars (symbol, date DESC);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// BarRepository persists daily OHLCV history. It backs the offline market
// data provider, so reads only need the most recent window per symbol.
type BarRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewBarRepository(pool PgxPool, tracer trace.Tracer) *BarRepository {
	return &BarRepository{pool: pool, tracer: tracer}
}

func (r *BarRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "bar-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createBarsTable)
	return err
}

func (r *BarRepository) UpsertBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "bar-repo.upsert-bars")
	defer span.End()

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(
			`INSERT INTO bars (symbol, date, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (symbol, date) DO UPDATE SET
			     open = EXCLUDED.open,
			     high = EXCLUDED.high,
			     low = EXCLUDED.low,
			     close = EXCLUDED.close,
			     volume = EXCLUDED.volume`,
			b.Symbol, domain.TradingDay(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RecentBars returns up to days of the newest history for symbol. Rows come
// back newest-first; callers that need chronological order re-sort.
func (r *BarRepository) RecentBars(ctx context.Context, symbol string, days int) ([]domain.Bar, error) {
	_, span := r.tracer.Start(ctx, "bar-repo.recent-bars")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, date, open, high, low, close, volume
		 FROM bars
		 WHERE symbol = $1
		 ORDER BY date DESC
		 LIMIT $2`,
		symbol, days,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Date = b.Date.UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// BarsInRange returns symbol history between from and to inclusive,
// newest-first.
func (r *BarRepository) BarsInRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	_, span := r.tracer.Start(ctx, "bar-repo.bars-in-range")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, date, open, high, low, close, volume
		 FROM bars
		 WHERE symbol = $1 AND date >= $2 AND date <= $3
		 ORDER BY date DESC`,
		symbol, domain.TradingDay(from), domain.TradingDay(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Date = b.Date.UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LatestDate reports the newest stored session for symbol, so refresh jobs
// can fetch only the missing tail. ok is false when no history exists yet.
func (r *BarRepository) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	_, span := r.tracer.Start(ctx, "bar-repo.latest-date")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT date FROM bars WHERE symbol = $1 ORDER BY date DESC LIMIT 1`, symbol)
	if err != nil {
		return time.Time{}, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return time.Time{}, false, rows.Err()
	}
	var d time.Time
	if err := rows.Scan(&d); err != nil {
		return time.Time{}, false, err
	}
	return d.UTC(), true, rows.Err()
}
