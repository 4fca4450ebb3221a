package main

// Script to initialize the quota ledger for a new billing period.
// Run once at deploy time, and again whenever the provider's plan changes.
//
// Usage:
//   go run scripts/init_quota_period.go --limit 10000 --start 2025-06-01

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"echowatch/internal/adapters/config"
	"echowatch/internal/adapters/postgres"
	pgrepo "echowatch/internal/repository/postgres"
	"echowatch/pkg/logger"
)

func main() {
	limit := flag.Int("limit", 10000, "Monthly search API call limit")
	startDate := flag.String("start", "", "Billing period start date (YYYY-MM-DD), defaults to the first of the current month")
	flag.Parse()

	if err := run(*limit, *startDate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(limit int, startDate string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	var start time.Time
	if startDate == "" {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else {
		start, err = time.Parse("2006-01-02", startDate)
		if err != nil {
			return fmt.Errorf("invalid start date (use YYYY-MM-DD): %w", err)
		}
	}
	end := start.AddDate(0, 1, 0)

	client, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer client.Close()

	repo := pgrepo.NewQuotaRepository(client.DB())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.InitPeriod(ctx, limit, start, end); err != nil {
		return fmt.Errorf("initialize billing period: %w", err)
	}

	fmt.Printf("Quota ledger initialized: limit=%d period=%s..%s\n",
		limit, start.Format("2006-01-02"), end.Format("2006-01-02"))
	return nil
}
