package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alphasmith/internal/backtest"
	"alphasmith/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const createResultTables = `
CREATE TABLE IF NOT EXISTS predictions (
    symbol          TEXT             NOT NULL,
    horizon_days    INT              NOT NULL,
    as_of           TIMESTAMPTZ      NOT NULL,
    target_date     TIMESTAMPTZ      NOT NULL,
    price           NUMERIC          NOT NULL,
    probability     DOUBLE PRECISION NOT NULL,
    up_probability  DOUBLE PRECISION NOT NULL,
    consistency     INT              NOT NULL,
    confidence      TEXT             NOT NULL,
    direction       TEXT             NOT NULL,
    mode            TEXT             NOT NULL,
    models_json     TEXT             NOT NULL DEFAULT '[]',
    created_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
    resolved_at     TIMESTAMPTZ,
    actual_up       BOOLEAN,
    is_correct      BOOLEAN,
    realized_return DOUBLE PRECISION,
    PRIMARY KEY (symbol, horizon_days, as_of)
);

CREATE INDEX IF NOT EXISTS idx_predictions_unresolved
    ON predictions (target_date) WHERE resolved_at IS NULL;

CREATE TABLE IF NOT EXISTS backtests (
    id                BIGSERIAL PRIMARY KEY,
    symbol            TEXT             NOT NULL,
    from_date         TIMESTAMPTZ      NOT NULL,
    to_date           TIMESTAMPTZ      NOT NULL,
    sessions          INT              NOT NULL,
    initial_capital   NUMERIC          NOT NULL,
    final_value       NUMERIC          NOT NULL,
    total_return      DOUBLE PRECISION NOT NULL,
    annualized_return DOUBLE PRECISION NOT NULL,
    sharpe            DOUBLE PRECISION NOT NULL,
    sortino           DOUBLE PRECISION NOT NULL,
    max_drawdown      DOUBLE PRECISION NOT NULL,
    win_rate          DOUBLE PRECISION NOT NULL,
    information_ratio DOUBLE PRECISION NOT NULL,
    benchmark_return  DOUBLE PRECISION NOT NULL,
    trades_json       TEXT             NOT NULL DEFAULT '[]',
    created_at        TIMESTAMPTZ      NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_backtests_symbol_created
    ON backtests (symbol, created_at DESC);
`

// ResultRepository persists fused predictions and backtest runs. Predictions
// upsert on (symbol, horizon, as_of) so re-scoring the same session updates
// in place and clears any earlier outcome; backtests are append-only runs.
// Equity curves are not stored, only the metrics and the fill log.
type ResultRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewResultRepository(pool PgxPool, tracer trace.Tracer) *ResultRepository {
	return &ResultRepository{pool: pool, tracer: tracer}
}

func (r *ResultRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "result-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createResultTables)
	return err
}

func (r *ResultRepository) SavePrediction(ctx context.Context, p *domain.EnsemblePrediction) error {
	_, span := r.tracer.Start(ctx, "result-repo.save-prediction")
	defer span.End()

	models, err := json.Marshal(p.Models)
	if err != nil {
		return fmt.Errorf("encode model results for %s: %w", p.Symbol, err)
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO predictions (
    symbol, horizon_days, as_of, target_date, price,
    probability, up_probability, consistency,
    confidence, direction, mode, models_json
) VALUES (
    $1, $2, $3, $4, $5,
    $6, $7, $8,
    $9, $10, $11, $12
)
ON CONFLICT (symbol, horizon_days, as_of) DO UPDATE SET
    target_date = EXCLUDED.target_date,
    price = EXCLUDED.price,
    probability = EXCLUDED.probability,
    up_probability = EXCLUDED.up_probability,
    consistency = EXCLUDED.consistency,
    confidence = EXCLUDED.confidence,
    direction = EXCLUDED.direction,
    mode = EXCLUDED.mode,
    models_json = EXCLUDED.models_json,
    resolved_at = NULL,
    actual_up = NULL,
    is_correct = NULL,
    realized_return = NULL`,
		p.Symbol,
		p.HorizonDays,
		p.AsOf.UTC(),
		p.TargetDate.UTC(),
		p.Price,
		p.Probability,
		p.UpProbability,
		p.Consistency,
		string(p.Confidence),
		string(p.Direction),
		string(p.Mode),
		string(models),
	)
	return err
}

func (r *ResultRepository) SaveBacktest(ctx context.Context, res *backtest.Result) error {
	_, span := r.tracer.Start(ctx, "result-repo.save-backtest")
	defer span.End()

	trades, err := json.Marshal(res.Trades)
	if err != nil {
		return fmt.Errorf("encode trades for %s: %w", res.Symbol, err)
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO backtests (
    symbol, from_date, to_date, sessions,
    initial_capital, final_value,
    total_return, annualized_return, sharpe, sortino,
    max_drawdown, win_rate, information_ratio, benchmark_return,
    trades_json
) VALUES (
    $1, $2, $3, $4,
    $5, $6,
    $7, $8, $9, $10,
    $11, $12, $13, $14,
    $15
)`,
		res.Symbol,
		res.From.UTC(),
		res.To.UTC(),
		res.Days,
		res.InitialCapital,
		res.FinalValue,
		res.Strategy.TotalReturn,
		res.Strategy.AnnualizedReturn,
		res.Strategy.Sharpe,
		res.Strategy.Sortino,
		res.Strategy.MaxDrawdown,
		res.Strategy.WinRate,
		res.Strategy.InformationRatio,
		res.BuyAndHold.TotalReturn,
		string(trades),
	)
	return err
}

// RecentPredictions returns the newest stored predictions for a horizon,
// one row per symbol and session, newest first.
func (r *ResultRepository) RecentPredictions(ctx context.Context, horizonDays, limit int) ([]domain.EnsemblePrediction, error) {
	_, span := r.tracer.Start(ctx, "result-repo.recent-predictions")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT symbol, horizon_days, as_of, target_date, price,
       probability, up_probability, consistency,
       confidence, direction, mode, models_json, created_at
FROM predictions
WHERE horizon_days = $1
ORDER BY as_of DESC, symbol ASC
LIMIT $2`, horizonDays, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EnsemblePrediction
	for rows.Next() {
		var p domain.EnsemblePrediction
		var confidence, direction, mode, models string
		if err := rows.Scan(
			&p.Symbol, &p.HorizonDays, &p.AsOf, &p.TargetDate, &p.Price,
			&p.Probability, &p.UpProbability, &p.Consistency,
			&confidence, &direction, &mode, &models, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		p.Confidence = domain.Confidence(confidence)
		p.Direction = domain.SignalDirection(direction)
		p.Mode = domain.FusionMode(mode)
		p.AsOf = p.AsOf.UTC()
		p.TargetDate = p.TargetDate.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		if err := json.Unmarshal([]byte(models), &p.Models); err != nil {
			return nil, fmt.Errorf("decode model results for %s: %w", p.Symbol, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UnresolvedDue lists predictions whose target session has passed but whose
// outcome has not been recorded yet, oldest target first.
func (r *ResultRepository) UnresolvedDue(ctx context.Context, cutoff time.Time, limit int) ([]domain.EnsemblePrediction, error) {
	_, span := r.tracer.Start(ctx, "result-repo.unresolved-due")
	defer span.End()

	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
SELECT symbol, horizon_days, as_of, target_date, price, up_probability, direction
FROM predictions
WHERE resolved_at IS NULL
  AND target_date <= $1
ORDER BY target_date ASC
LIMIT $2`, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EnsemblePrediction
	for rows.Next() {
		var p domain.EnsemblePrediction
		var direction string
		if err := rows.Scan(&p.Symbol, &p.HorizonDays, &p.AsOf, &p.TargetDate, &p.Price, &p.UpProbability, &direction); err != nil {
			return nil, err
		}
		p.Direction = domain.SignalDirection(direction)
		p.AsOf = p.AsOf.UTC()
		p.TargetDate = p.TargetDate.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// ResolvePrediction records the realized outcome for one prediction row.
// Returns pgx.ErrNoRows when the row is missing or already resolved.
func (r *ResultRepository) ResolvePrediction(ctx context.Context, symbol string, horizonDays int, asOf time.Time, actualUp, correct bool, realizedReturn float64) error {
	_, span := r.tracer.Start(ctx, "result-repo.resolve-prediction")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE predictions
SET resolved_at = NOW(),
    actual_up = $4,
    is_correct = $5,
    realized_return = $6
WHERE symbol = $1
  AND horizon_days = $2
  AND as_of = $3
  AND resolved_at IS NULL`, symbol, horizonDays, asOf.UTC(), actualUp, correct, realizedReturn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
