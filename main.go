package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pointskeeper/internal/app"
	"pointskeeper/internal/config"
	"pointskeeper/internal/platform"
)

var (
	flagConfig       string
	flagAddress      string
	flagSimulate     bool
	flagTokenPath    string
	flagLogFile      string
	flagAnalyticsDB  string
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "pointskeeper",
		Short: "Long-running channel points miner with a strategy-driven prediction engine.",
		RunE:  run,
	}

	root.Flags().StringVar(&flagConfig, "config", "config.yaml", "path to the YAML config file")
	root.Flags().StringVar(&flagAddress, "address", "0.0.0.0:3000", "control-plane HTTP listen address")
	root.Flags().BoolVar(&flagSimulate, "simulate", false, "evaluate strategies and log decisions without placing bets")
	root.Flags().StringVar(&flagTokenPath, "token", "tokens.json", "path to the bootstrapped bearer token file")
	root.Flags().StringVar(&flagLogFile, "log-file", "", "optional path to mirror log lines to")
	root.Flags().StringVar(&flagAnalyticsDB, "analytics-db", "analytics.db", "path to the SQLite analytics database")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	token, err := platform.LoadToken(flagTokenPath)
	if err != nil {
		return fmt.Errorf("load token (run the bootstrap flow first): %w", err)
	}

	a, err := app.New(cfg, token, app.Options{
		ConfigPath:    flagConfig,
		Address:       flagAddress,
		Simulate:      flagSimulate,
		TokenPath:     flagTokenPath,
		LogFilePath:   flagLogFile,
		AnalyticsPath: flagAnalyticsDB,
	})
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
