package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	predictionsHorizon int
	predictionsLimit   int
)

var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "List recently stored predictions for a horizon",
	RunE:  runPredictions,
}

func init() {
	rootCmd.AddCommand(predictionsCmd)
	predictionsCmd.Flags().IntVar(&predictionsHorizon, "horizon", 5, "forecast horizon in trading days")
	predictionsCmd.Flags().IntVar(&predictionsLimit, "limit", 50, "maximum rows to list")
}

func runPredictions(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	if a.resultRepo == nil {
		return fmt.Errorf("stored predictions need postgres enabled")
	}

	preds, err := a.resultRepo.RecentPredictions(ctx, predictionsHorizon, predictionsLimit)
	if err != nil {
		return err
	}
	if len(preds) == 0 {
		fmt.Printf("no stored predictions for the %dd horizon\n", predictionsHorizon)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tAS OF\tTARGET\tPRICE\tP(UP)\tCONSIST\tCONFIDENCE\tDIRECTION\tMODE")
	for _, p := range preds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.3f\t%d%%\t%s\t%s\t%s\n",
			p.Symbol, p.AsOf.Format("2006-01-02"), p.TargetDate.Format("2006-01-02"),
			p.Price, p.UpProbability, p.Consistency, p.Confidence, p.Direction, p.Mode)
	}
	return w.Flush()
}
