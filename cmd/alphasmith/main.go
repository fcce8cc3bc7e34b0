package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	offline bool
)

var rootCmd = &cobra.Command{
	Use:   "alphasmith",
	Short: "Ensemble trading-signal pipeline",
	Long: `Alphasmith trains a family of boosted classifiers per forecast horizon,
fuses their per-symbol probabilities into one signal, and replays that
signal through a frictional single-position backtest.

One-shot subcommands (train, predict, backtest, features) run the
pipeline once and print a table; daemon runs the refresh, train,
predict and outcome-resolver loops until interrupted.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "alphasmith.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "serve history from the Postgres bar store instead of the live provider")
}

// runContext cancels on SIGINT/SIGTERM so a long training or backtest run
// stops at the next symbol boundary.
func runContext() (context.Context, context.CancelFunc) {
	return ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
