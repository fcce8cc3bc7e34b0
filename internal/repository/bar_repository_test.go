package repository

import (
	"context"
	"testing"
	"time"

	"alphasmith/internal/domain"

	"github.com/pashagolub/pgxmock/v4"
	"go.opentelemetry.io/otel/trace"
)

func newBarRepoMock(t *testing.T) (*BarRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	return NewBarRepository(mock, tracer), mock
}

func TestBarMigrations(t *testing.T) {
	repo, mock := newBarRepoMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS bars").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	if err := repo.RunMigrations(context.Background()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertBarsBatchesRows(t *testing.T) {
	repo, mock := newBarRepoMock(t)

	day1 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	bars := []domain.Bar{
		{Symbol: "AAPL", Date: day1, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1e6},
		// Intraday timestamps are normalized to the trading day.
		{Symbol: "AAPL", Date: day2.Add(14 * time.Hour), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 1.2e6},
	}

	batch := mock.ExpectBatch()
	batch.ExpectExec("INSERT INTO bars").
		WithArgs("AAPL", day1, 100.0, 101.0, 99.0, 100.5, 1e6).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec("INSERT INTO bars").
		WithArgs("AAPL", day2, 100.5, 102.0, 100.0, 101.5, 1.2e6).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.UpsertBars(context.Background(), bars); err != nil {
		t.Fatalf("upsert bars: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertBarsEmptySkipsPool(t *testing.T) {
	repo, mock := newBarRepoMock(t)

	if err := repo.UpsertBars(context.Background(), nil); err != nil {
		t.Fatalf("upsert empty: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("empty upsert touched the pool: %v", err)
	}
}

func TestRecentBars(t *testing.T) {
	repo, mock := newBarRepoMock(t)

	newest := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT symbol, date, open, high, low, close, volume").
		WithArgs("MSFT", 30).
		WillReturnRows(pgxmock.NewRows([]string{"symbol", "date", "open", "high", "low", "close", "volume"}).
			AddRow("MSFT", newest, 410.0, 412.0, 408.0, 411.0, 2e6).
			AddRow("MSFT", newest.AddDate(0, 0, -1), 405.0, 411.0, 404.0, 410.0, 1.8e6))

	bars, err := repo.RecentBars(context.Background(), "MSFT", 30)
	if err != nil {
		t.Fatalf("recent bars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if !bars[0].Date.Equal(newest) {
		t.Fatalf("expected newest-first order, got %v", bars[0].Date)
	}
	if bars[0].Close != 411.0 || bars[1].Volume != 1.8e6 {
		t.Fatalf("unexpected bar values: %+v", bars)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBarsInRangeNormalizesBounds(t *testing.T) {
	repo, mock := newBarRepoMock(t)

	from := time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)
	to := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT symbol, date, open, high, low, close, volume").
		WithArgs("AAPL", domain.TradingDay(from), domain.TradingDay(to)).
		WillReturnRows(pgxmock.NewRows([]string{"symbol", "date", "open", "high", "low", "close", "volume"}).
			AddRow("AAPL", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), 100.0, 101.0, 99.0, 100.5, 1e6))

	bars, err := repo.BarsInRange(context.Background(), "AAPL", from, to)
	if err != nil {
		t.Fatalf("bars in range: %v", err)
	}
	if len(bars) != 1 || bars[0].Close != 100.5 {
		t.Fatalf("unexpected bars: %+v", bars)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLatestDate(t *testing.T) {
	repo, mock := newBarRepoMock(t)

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT date FROM bars").
		WithArgs("NVDA").
		WillReturnRows(pgxmock.NewRows([]string{"date"}).AddRow(day))

	got, ok, err := repo.LatestDate(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("latest date: %v", err)
	}
	if !ok || !got.Equal(day) {
		t.Fatalf("expected %v, got %v ok=%v", day, got, ok)
	}

	mock.ExpectQuery("SELECT date FROM bars").
		WithArgs("EMPTY").
		WillReturnRows(pgxmock.NewRows([]string{"date"}))

	_, ok, err = repo.LatestDate(context.Background(), "EMPTY")
	if err != nil {
		t.Fatalf("latest date empty: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a symbol with no history")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
