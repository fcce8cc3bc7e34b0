package signal

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"alphasmith/internal/backtest"
	"alphasmith/internal/domain"
	"alphasmith/internal/ensemble"
	"alphasmith/internal/features"
	"alphasmith/internal/model"
)

// Backtest replays the fused signal for one symbol over the most recent
// configured window. The probability series comes from walking the trained
// artifacts across the table row by row; sessions the models cannot score
// (indicator warmup) carry no signal and leave the position unchanged.
func (s *Service) Backtest(ctx context.Context, symbol string, horizonDays int) (*backtest.Result, error) {
	ctx, span := s.tracer.Start(ctx, "signal.backtest")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("horizon_days", horizonDays))

	arts, err := s.loadArtifacts(ctx, horizonDays)
	if err != nil {
		return nil, err
	}
	bars, err := s.provider.History(ctx, symbol, s.cfg.HistoryDays)
	if err != nil {
		return nil, err
	}
	return s.backtestOne(ctx, arts, symbol, bars, s.benchmark(ctx), horizonDays)
}

// BacktestBatch runs every configured symbol, skipping the ones that fail
// with a logged warning. Symbols replay in parallel under the fetch-pool
// bound; the day loop inside each replay stays strictly sequential.
func (s *Service) BacktestBatch(ctx context.Context, horizonDays int) ([]*backtest.Result, error) {
	ctx, span := s.tracer.Start(ctx, "signal.backtest-batch")
	defer span.End()
	defer s.observe("backtest_batch", time.Now())

	if _, err := s.loadArtifacts(ctx, horizonDays); err != nil {
		return nil, err
	}
	histories, symbols, err := s.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	bench := s.benchmark(ctx)

	workers := s.cfg.FetchWorkers
	if workers > len(symbols) {
		workers = len(symbols)
	}

	// Each worker writes only its own slots; order is compacted after.
	// Workers decode their own artifact copies because fitted boosters make
	// no promise about concurrent scoring.
	slots := make([]*backtest.Result, len(symbols))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			arts, err := s.loadArtifacts(ctx, horizonDays)
			if err != nil {
				log.Warn().Err(err).Msg("backtest worker could not load artifacts")
				for range jobs {
				}
				return
			}
			for i := range jobs {
				symbol := symbols[i]
				res, err := s.backtestOne(ctx, arts, symbol, histories[symbol], bench, horizonDays)
				if err != nil {
					s.rec.RecordError("backtest")
					log.Warn().Err(err).Str("symbol", symbol).Msg("backtest failed, symbol omitted")
					continue
				}
				slots[i] = res
			}
		}()
	}
	for i := range symbols {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	results := make([]*backtest.Result, 0, len(symbols))
	for _, res := range slots {
		if res != nil {
			results = append(results, res)
		}
	}
	return results, nil
}

func (s *Service) backtestOne(ctx context.Context, arts []*model.Artifact, symbol string, bars, bench []domain.Bar, horizonDays int) (*backtest.Result, error) {
	tab, err := s.buildTable(ctx, symbol, bars, bench, 0)
	if err != nil {
		return nil, err
	}
	if tab.Degraded {
		return nil, fmt.Errorf("%s: %d days of history is below the feature minimum: %w",
			symbol, tab.Rows(), domain.ErrDataUnavailable)
	}

	days, err := s.probabilitySeries(ctx, arts, tab, symbol, horizonDays)
	if err != nil {
		return nil, err
	}
	res, err := s.sim.Run(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if s.sink != nil {
		if err := s.sink.SaveBacktest(ctx, res); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("backtest sink write failed")
		}
	}
	return res, nil
}

// probabilitySeries walks every artifact over the table and fuses the
// per-row results into the simulator's input, keeping only the trailing
// configured window.
func (s *Service) probabilitySeries(ctx context.Context, arts []*model.Artifact, tab *features.Table, symbol string, horizonDays int) ([]backtest.Day, error) {
	perKind := make([][]domain.ModelResult, len(arts))
	perKindOK := make([][]bool, len(arts))
	for i, art := range arts {
		results, ok, err := art.PredictTable(tab)
		if err != nil {
			return nil, fmt.Errorf("score table with %s: %w", art.Kind, err)
		}
		perKind[i], perKindOK[i] = results, ok
	}

	closes, ok := tab.NumericByName("close")
	if !ok {
		return nil, fmt.Errorf("%s: table has no close column", symbol)
	}

	start := 0
	if extra := tab.Rows() - s.cfg.BacktestDays; extra > 0 {
		start = extra
	}
	days := make([]backtest.Day, 0, tab.Rows()-start)
	unscored := 0
	for i := start; i < tab.Rows(); i++ {
		rs := make([]domain.ModelResult, 0, len(arts))
		for k := range arts {
			if perKindOK[k][i] {
				rs = append(rs, perKind[k][i])
			}
		}
		prob := math.NaN()
		if len(rs) > 0 {
			fused, err := s.fuser.Fuse(ctx, ensemble.Input{
				Symbol:      symbol,
				AsOf:        tab.Dates[i],
				Price:       closes[i],
				HorizonDays: horizonDays,
				Results:     rs,
			})
			if err != nil {
				return nil, err
			}
			prob = fused.UpProbability
		} else {
			unscored++
		}
		days = append(days, backtest.Day{Date: tab.Dates[i], Price: closes[i], Probability: prob})
	}
	if unscored > 0 {
		log.Debug().Str("symbol", symbol).Int("sessions", unscored).Msg("sessions without a model score hold their position")
	}
	return days, nil
}
