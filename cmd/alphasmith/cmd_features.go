package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"alphasmith/internal/features"
)

var (
	featuresSymbol  string
	featuresHorizon int
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Build and summarize one symbol's feature table",
	Long: `Builds the feature table for a symbol exactly as training would see it
and prints its shape: rows, columns, label balance and date range. Useful
for checking what a thin history degrades to before running a training
pass on it.`,
	RunE: runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
	featuresCmd.Flags().StringVar(&featuresSymbol, "symbol", "", "symbol to build the table for")
	featuresCmd.Flags().IntVar(&featuresHorizon, "horizon", 5, "label horizon in trading days")
	featuresCmd.MarkFlagRequired("symbol")
}

func runFeatures(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	bars, err := a.provider.History(ctx, featuresSymbol, a.cfg.Data.HistoryDays)
	if err != nil {
		return err
	}
	bench, err := a.provider.IndexHistory(ctx, a.cfg.Data.HistoryDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "benchmark unavailable, relative-strength columns skipped: %v\n", err)
		bench = nil
	}

	tab, err := a.engine.Build(ctx, bars, bench, features.Options{
		Horizon:        featuresHorizon,
		MinHistoryDays: a.cfg.Features.MinHistoryDays,
		Anomaly: features.AnomalyOptions{
			Enabled: a.cfg.Features.Anomaly,
			Warmup:  a.cfg.Features.AnomalyWarmup,
			Refit:   a.cfg.Features.AnomalyRefit,
		},
	})
	if err != nil {
		return err
	}

	var ups, downs, undefined int
	for _, l := range tab.Label {
		switch l {
		case features.LabelUndefined:
			undefined++
		case 1:
			ups++
		default:
			downs++
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "symbol\t%s\n", tab.Symbol)
	fmt.Fprintf(w, "rows\t%d\n", tab.Rows())
	if tab.Rows() > 0 {
		fmt.Fprintf(w, "range\t%s .. %s\n",
			tab.Dates[0].Format("2006-01-02"), tab.Dates[len(tab.Dates)-1].Format("2006-01-02"))
	}
	fmt.Fprintf(w, "degraded\t%v\n", tab.Degraded)
	fmt.Fprintf(w, "numeric\t%d\t%s\n", len(tab.Numeric), strings.Join(tab.NumericNames(), " "))
	fmt.Fprintf(w, "categorical\t%d\t%s\n", len(tab.Categorical), strings.Join(tab.CategoricalNames(), " "))
	fmt.Fprintf(w, "labels\t%d up / %d down / %d undefined\n", ups, downs, undefined)
	return w.Flush()
}
