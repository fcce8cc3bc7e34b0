package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"alphasmith/internal/domain"
)

var (
	predictHorizon int
	predictSymbol  string
	predictAsOf    string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score the watchlist (or one symbol) with the trained ensemble",
	RunE:  runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().IntVar(&predictHorizon, "horizon", 5, "forecast horizon in trading days")
	predictCmd.Flags().StringVar(&predictSymbol, "symbol", "", "predict a single symbol instead of the watchlist")
	predictCmd.Flags().StringVar(&predictAsOf, "as-of", "", "score as of this session (YYYY-MM-DD) instead of the latest bar; requires --symbol")
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	var preds []*domain.EnsemblePrediction
	switch {
	case predictAsOf != "":
		if predictSymbol == "" {
			return fmt.Errorf("--as-of requires --symbol")
		}
		asOf, err := time.ParseInLocation("2006-01-02", predictAsOf, time.UTC)
		if err != nil {
			return fmt.Errorf("parse --as-of: %w", err)
		}
		p, err := a.pipeline.PredictAsOf(ctx, predictSymbol, asOf, predictHorizon)
		if err != nil {
			return err
		}
		preds = append(preds, p)
	case predictSymbol != "":
		p, err := a.pipeline.Predict(ctx, predictSymbol, predictHorizon)
		if err != nil {
			return err
		}
		preds = append(preds, p)
	default:
		preds, err = a.pipeline.PredictWatchlist(ctx, predictHorizon)
		if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tPRICE\tPROB\tP(UP)\tCONSIST\tCONFIDENCE\tDIRECTION\tTARGET")
	for _, p := range preds {
		fmt.Fprintf(w, "%s\t%.2f\t%.3f\t%.3f\t%d%%\t%s\t%s\t%s\n",
			p.Symbol, p.Price, p.Probability, p.UpProbability, p.Consistency,
			p.Confidence, p.Direction, p.TargetDate.Format("2006-01-02"))
	}
	return w.Flush()
}
