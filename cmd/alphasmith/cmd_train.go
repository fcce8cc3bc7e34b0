package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train every model family for every configured horizon",
	Long: `Fetches history for the watchlist, builds the pooled feature table per
horizon and runs the cross-validated training pass for each model family.
Artifacts and accuracies land in the artifacts directory.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	reports, err := a.pipeline.TrainAll(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tHORIZON\tSYMBOLS\tROWS\tFEATURES\tACCURACY\tSTD\tROUNDS")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%dd\t%d\t%d\t%d\t%.4f\t%.4f\t%d\n",
			r.Kind, r.HorizonDays, len(r.Symbols), r.Rows, r.Features, r.Accuracy, r.AccuracyStd, r.BoostRounds)
	}
	return w.Flush()
}
