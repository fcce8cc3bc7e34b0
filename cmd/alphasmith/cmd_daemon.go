package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"alphasmith/internal/job"
	"alphasmith/internal/marketdata"
	"alphasmith/internal/signal"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scheduler loops and the metrics endpoint",
	Long: `Runs until interrupted: refreshes stored history in round-robin batches,
retrains nightly, re-scores the watchlist on a fixed cadence and grades
past predictions once their target session has passed. Prometheus
metrics are served over HTTP. Postgres-backed loops are skipped when no
database is configured.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	var wg sync.WaitGroup
	start := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	cfg := a.cfg
	if a.barRepo != nil {
		refresher := marketdata.NewRefresher(a.tracer, a.client, a.barRepo, cfg.Data.HistoryDays)
		rotation := append(append([]string(nil), cfg.Watchlist...), cfg.Benchmark)
		start(job.NewRefreshJob(a.tracer, refresher, rotation, cfg.Jobs.RefreshEvery, cfg.Jobs.RefreshBatch).Start)

		resolver := signal.NewResolver(a.tracer, a.resultRepo, a.barRepo)
		start(job.NewResolveJob(a.tracer, resolver, cfg.Jobs.ResolveEvery, 0).Start)
	} else {
		log.Println("postgres disabled: refresh and outcome loops skipped")
	}

	start(job.NewTrainJob(a.tracer, a.pipeline, cfg.Jobs.TrainHourUTC).Start)
	start(job.NewPredictJob(a.tracer, a.pipeline, cfg.Training.Horizons, cfg.Jobs.PredictEvery).Start)

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		log.Printf("metrics listening on %s%s", cfg.Metrics.Addr, cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
	wg.Wait()
	return nil
}
