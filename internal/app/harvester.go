package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/api"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/config"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/crawler"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/extract"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/logger"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/pipeline"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/runlock"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/storage"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/taxonomy"
	"github.com/samvad-hq/samvad-coupon-harvester/pkg/httpclient"
	"github.com/samvad-hq/samvad-coupon-harvester/pkg/publishers"
	"github.com/samvad-hq/samvad-coupon-harvester/pkg/sources"
)

// runService is the pipeline pass the harvester schedules.
type runService interface {
	Run(ctx context.Context) (domain.RunStats, error)
}

// Harvester represents the coupon harvester runtime. It owns the run loop,
// the run lock, the optional HTTP API, storage and publishers.
type Harvester struct {
	cfg         *config.Config
	service     runService
	lock        runlock.Locker
	store       storage.Store
	fanout      *publishers.Fanout
	runInterval time.Duration
	log         logger.Logger

	// baseCtx scopes triggered runs to the Run lifetime rather than the request.
	baseCtx context.Context
	bg      sync.WaitGroup
}

// NewHarvester builds a harvester runtime from config files.
func NewHarvester(ctx context.Context, cfg *config.Config, log logger.Logger) (*Harvester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.OrNop(log)
	if ctx == nil {
		ctx = context.Background()
	}

	tax, err := loadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return nil, err
	}

	if err := sources.LoadSources(cfg.SourcesFile); err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	srcs := sources.Sources()
	if len(srcs) == 0 {
		return nil, fmt.Errorf("no enabled sources in %s", cfg.SourcesFile)
	}
	sourceIDs := make([]string, 0, len(srcs))
	for _, s := range srcs {
		sourceIDs = append(sourceIDs, s.ID)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	client := httpclient.NewRetryingClient(cfg.FetchTimeout, httpclient.RetryOptions{
		Attempts: cfg.FetchRetryAttempts,
		Wait:     cfg.FetchRetryWait,
		MaxWait:  cfg.FetchRetryMaxWait,
	})

	store, err := storage.NewStore(cfg.StorageType, storageTarget(cfg), storage.Options{
		Retention:       cfg.StorageRetention,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"retention_seconds":        int(cfg.StorageRetention.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	h := &Harvester{
		cfg:         cfg,
		store:       store,
		runInterval: cfg.RunInterval,
		log:         log,
	}

	h.lock, err = runlock.New(runlock.Options{
		Type:          cfg.RunLockType,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		Key:           cfg.AppName + ":run-lock",
		TTL:           cfg.RunLockTTL,
	})
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("init run lock: %w", err)
	}

	h.fanout, err = buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	dates := extract.NewDateParser(cfg.Location)
	opts := crawler.Options{
		Registry:   sources.DefaultFetcherRegistry(client, cfg.MaxOffersPerStore),
		Sources:    srcs,
		Stores:     cfg.Stores,
		StoreDelay: cfg.StoreDelay,
		Enricher:   pipeline.NewEnricher(tax, dates),
		Dedup:      pipeline.NewDeduplicator(tax),
		Validator: pipeline.NewValidator(pipeline.Thresholds{
			MinCodeLength:      cfg.MinCodeLength,
			MaxPercentage:      100,
			MaxDiscountAmount:  cfg.MaxDiscountAmount,
			MaxMinimumPurchase: cfg.MaxMinimumPurchase,
		}, dates, log),
		Store: store,
		Log:   log,
	}
	if h.fanout.Size() > 0 {
		opts.Publisher = h.fanout
	}

	h.service, err = crawler.NewService(opts)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("init crawler: %w", err)
	}
	return h, nil
}

func loadTaxonomy(path string) (*taxonomy.Taxonomy, error) {
	if path == "" {
		tax, err := taxonomy.Default()
		if err != nil {
			return nil, fmt.Errorf("load built-in taxonomy: %w", err)
		}
		return tax, nil
	}
	tax, err := taxonomy.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy %s: %w", path, err)
	}
	return tax, nil
}

func storageTarget(cfg *config.Config) string {
	switch cfg.StorageType {
	case "sqlite":
		return cfg.SQLitePath
	case "postgres":
		return cfg.PostgresDSN
	default:
		return cfg.BBoltPath
	}
}

// buildFanout returns an empty fanout when no publishers file is configured.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, p := range enabled {
		summaries = append(summaries, map[string]string{"id": p.ID, "type": p.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// RunOnce executes a single locked pipeline pass.
func (h *Harvester) RunOnce(ctx context.Context) (domain.RunStats, error) {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		return domain.RunStats{}, err
	}
	defer release()
	return h.service.Run(ctx)
}

// TriggerRun takes the run lock and starts a pass in the background.
func (h *Harvester) TriggerRun(ctx context.Context) error {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		return err
	}

	runCtx := ctx
	if h.baseCtx != nil {
		runCtx = h.baseCtx
	}

	h.bg.Add(1)
	go func() {
		defer h.bg.Done()
		defer release()
		if _, err := h.service.Run(runCtx); err != nil {
			h.log.ErrorObj("triggered run failed", "error", err.Error())
		}
	}()
	return nil
}

// Run starts the scheduled loop (first pass immediately) and the HTTP API when
// configured, until the context is cancelled.
func (h *Harvester) Run(ctx context.Context) error {
	if h == nil || h.service == nil {
		return fmt.Errorf("harvester is not initialized")
	}
	defer func() { _ = h.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	h.baseCtx = gctx
	if h.cfg.HTTPAddr != "" {
		handler := api.NewHandler(h.cfg.AppName, h, h.store, h.cfg.WebhookSecret, h.log)
		srv := api.NewServer(h.cfg.HTTPAddr, api.NewRouter(handler), h.log)
		g.Go(func() error { return srv.Serve(gctx) })
	}
	g.Go(func() error {
		h.loop(gctx)
		return nil
	})
	return g.Wait()
}

func (h *Harvester) loop(ctx context.Context) {
	h.log.InfoObj("harvester loop starting", "harvester_state", map[string]any{
		"stores":       len(h.cfg.Stores),
		"publishers":   h.fanout.Size(),
		"run_interval": h.runInterval.String(),
		"http_addr":    h.cfg.HTTPAddr,
	})

	h.scheduledRun(ctx)

	ticker := time.NewTicker(h.runInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.InfoObj("harvester loop exiting", "reason", ctx.Err().Error())
			return
		case <-ticker.C:
			h.scheduledRun(ctx)
		}
	}
}

func (h *Harvester) scheduledRun(ctx context.Context) {
	_, err := h.RunOnce(ctx)
	switch {
	case errors.Is(err, runlock.ErrRunInProgress):
		h.log.WarnObj("scheduled run skipped", "reason", err.Error())
	case err != nil:
		h.log.ErrorObj("scheduled run failed", "error", err.Error())
	}
}

// Close waits for triggered runs, then releases publishers, the lock and storage.
func (h *Harvester) Close() error {
	if h == nil {
		return nil
	}
	h.bg.Wait()

	var errs []error
	if err := h.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	if h.lock != nil {
		if err := h.lock.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close run lock: %w", err))
		}
		h.lock = nil
	}
	if h.store != nil {
		if err := h.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		h.store = nil
	}
	h.fanout = nil
	return errors.Join(errs...)
}
