package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"alphasmith/internal/backtest"
)

var (
	backtestHorizon int
	backtestSymbol  string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the ensemble signal through the frictional simulator",
	Long: `Scores the recent history of each symbol with the trained ensemble and
replays the probability series through the single-position simulator.
Strategy metrics are reported next to a frictionless-entry buy-and-hold
benchmark over the same window.`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().IntVar(&backtestHorizon, "horizon", 5, "forecast horizon in trading days")
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "backtest a single symbol instead of the watchlist")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	var results []*backtest.Result
	if backtestSymbol != "" {
		res, err := a.pipeline.Backtest(ctx, backtestSymbol, backtestHorizon)
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		results, err = a.pipeline.BacktestBatch(ctx, backtestHorizon)
		if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tSESSIONS\tTRADES\tFINAL\tRETURN\tANNUAL\tSHARPE\tSORTINO\tMAXDD\tWINRATE\tIR\tB&H RETURN")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%.2f%%\t%.2f%%\t%.2f\t%.2f\t%.2f%%\t%.0f%%\t%.2f\t%.2f%%\n",
			r.Symbol, r.Days, len(r.Trades), r.FinalValue,
			r.Strategy.TotalReturn*100, r.Strategy.AnnualizedReturn*100,
			r.Strategy.Sharpe, r.Strategy.Sortino,
			r.Strategy.MaxDrawdown*100, r.Strategy.WinRate*100,
			r.Strategy.InformationRatio, r.BuyAndHold.TotalReturn*100)
	}
	return w.Flush()
}
