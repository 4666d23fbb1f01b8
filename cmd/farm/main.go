package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "farm",
		Short:        "LP staking valuation and reward engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote token prices and LP valuations against a deployed factory",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("rpc", "", "RPC URL")
	quoteCmd.Flags().String("factory", "", "pair factory address")
	quoteCmd.Flags().String("stable", "", "stable asset address")
	quoteCmd.Flags().String("reward-token", "", "reward token address (enables stake conversion)")
	quoteCmd.Flags().StringSlice("route", nil, "price routes, hops joined by '>' (repeatable)")
	quoteCmd.Flags().String("pair", "", "LP pair to value")
	quoteCmd.Flags().String("lp-amount", "1000000000000000000", "LP amount to value")
	quoteCmd.Flags().String("stake", "", "stake value to convert back into LP")
	quoteCmd.Flags().Uint64("fee-bps", 30, "swap fee in basis points")
	quoteCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	quoteCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario through the in-memory engine",
		RunE:  runSimulate,
	}

	addScenarioFlags(simulateCmd)
	simulateCmd.Flags().Bool("report", false, "print a pool report after the run")

	root.AddCommand(simulateCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a scenario and serve its state over HTTP",
		RunE:  runServe,
	}

	addScenarioFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().String("scenario", "", "scenario YAML file")
	cmd.Flags().String("out", "./data/journal.jsonl", "output journal JSONL path")
	cmd.Flags().String("state-file", "", "optional local state file for journal progress")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshots")
	cmd.Flags().String("rewards-duration", "", "override reward period (seconds or duration)")
	cmd.Flags().String("lockup", "", "override lock-up (seconds or duration)")
	cmd.Flags().String("lock-policy", "", "override lock policy (first-deposit, per-deposit)")
	cmd.Flags().Uint64("fee-bps", 0, "override swap fee in basis points")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
