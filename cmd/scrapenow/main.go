package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/app"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/config"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/logger"
)

// scrapenow runs a single pipeline pass and exits non-zero when it fails.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scrape failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	harvester, err := app.NewHarvester(ctx, cfg, logger.Global())
	if err != nil {
		return err
	}
	defer harvester.Close()

	stats, err := harvester.RunOnce(ctx)
	if err != nil {
		return err
	}

	logger.InfoObj("scrape finished", "run_stats", stats)
	if stats.Status == domain.RunStatusEmpty {
		fmt.Fprintln(os.Stderr, "no coupons found")
	}
	return nil
}
