package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/logger"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/pipeline"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/storage"
	"github.com/samvad-hq/samvad-coupon-harvester/pkg/publishers"
	"github.com/samvad-hq/samvad-coupon-harvester/pkg/sources"
)

// Options wires a Service. Publisher and Log are optional.
type Options struct {
	Registry   sources.FetcherRegistry
	Sources    []sources.Source
	Stores     []string
	StoreDelay time.Duration

	Enricher  *pipeline.Enricher
	Dedup     *pipeline.Deduplicator
	Validator *pipeline.Validator

	Store     Persister
	Publisher EventPublisher
	Log       logger.Logger
	Now       func() time.Time
}

// Service runs one pass of the pipeline: fetch, enrich, dedupe, admit, persist.
type Service struct {
	collector *sourceCollector
	sources   []sources.Source
	stores    []string
	enricher  *pipeline.Enricher
	dedup     *pipeline.Deduplicator
	validator *pipeline.Validator
	store     Persister
	publisher EventPublisher
	log       logger.Logger
	now       func() time.Time
	newRunID  func() string
}

// NewService validates the wiring and returns a ready Service.
func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Registry == nil:
		return nil, errors.New("crawler requires a fetcher registry")
	case opts.Enricher == nil || opts.Dedup == nil || opts.Validator == nil:
		return nil, errors.New("crawler requires enricher, deduplicator and validator")
	case opts.Store == nil:
		return nil, errors.New("crawler requires a store")
	}

	log := logger.OrNop(opts.Log)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		collector: &sourceCollector{
			registry:   opts.Registry,
			storeDelay: opts.StoreDelay,
			log:        log,
		},
		sources:   append([]sources.Source(nil), opts.Sources...),
		stores:    append([]string(nil), opts.Stores...),
		enricher:  opts.Enricher,
		dedup:     opts.Dedup,
		validator: opts.Validator,
		store:     opts.Store,
		publisher: opts.Publisher,
		log:       log,
		now:       now,
		newRunID:  uuid.NewString,
	}, nil
}

// Run executes a full pass. Fetch failures are isolated per source and
// recorded in the stats; persistence failures abort the run after a failed
// entry is written to the run log.
func (s *Service) Run(ctx context.Context) (domain.RunStats, error) {
	if s == nil {
		return domain.RunStats{}, fmt.Errorf("crawler service is not initialized")
	}
	if len(s.sources) == 0 {
		return domain.RunStats{}, fmt.Errorf("no sources configured for crawling")
	}

	stats := domain.RunStats{
		RunID:     s.newRunID(),
		StartedAt: s.now().UTC(),
		Stores:    len(s.stores),
	}
	s.log.InfoObj("run started", "run_meta", map[string]any{
		"run_id":  stats.RunID,
		"sources": len(s.sources),
		"stores":  len(s.stores),
	})

	raws, srcErrs := s.fetchAll(ctx)
	if len(srcErrs) > 0 {
		stats.SourceErrors = srcErrs
	}
	stats.Fetched = len(raws)

	if err := ctx.Err(); err != nil {
		return s.fail(ctx, stats, fmt.Errorf("fetch interrupted: %w", err))
	}

	if len(raws) == 0 {
		stats.Status = domain.RunStatusEmpty
		s.stamp(&stats)
		s.log.WarnObj("run found no coupons", "run_stats", stats)
		return stats, nil
	}

	enriched, failed := s.enricher.EnrichAll(raws, s.log)
	stats.Enriched = len(enriched)
	stats.EnrichFailed = failed

	unique := s.dedup.Deduplicate(enriched)
	stats.Unique = len(unique)

	admitted := s.validator.Validate(unique)
	stats.Admitted = len(admitted)
	stats.Rejected = len(unique) - len(admitted)

	s.log.InfoObj("pipeline stages completed", "stage_counts", map[string]any{
		"run_id":        stats.RunID,
		"fetched":       stats.Fetched,
		"enriched":      stats.Enriched,
		"enrich_failed": stats.EnrichFailed,
		"unique":        stats.Unique,
		"admitted":      stats.Admitted,
	})

	if err := s.persist(ctx, admitted, &stats); err != nil {
		return s.fail(ctx, stats, err)
	}

	s.publish(ctx, stats.RunID, admitted, &stats)

	stats.Status = domain.RunStatusSuccess
	s.stamp(&stats)
	if err := s.store.AppendRunLog(ctx, stats); err != nil {
		return s.fail(ctx, stats, fmt.Errorf("append run log: %w", err))
	}

	s.log.InfoObj("run completed", "run_stats", stats)
	return stats, nil
}

// fetchAll runs every source concurrently. One source failing or panicking
// never cancels the others; results keep source order.
func (s *Service) fetchAll(ctx context.Context) ([]domain.RawRecord, map[string]string) {
	results := make([][]domain.RawRecord, len(s.sources))

	var (
		mu   sync.Mutex
		errs = make(map[string]string)
		g    errgroup.Group
	)
	for i, src := range s.sources {
		g.Go(func() error {
			fail := func(msg string) {
				mu.Lock()
				errs[src.ID] = msg
				mu.Unlock()
				s.log.ErrorObj("source crawl failed", "source_error", map[string]any{
					"source_id": src.ID,
					"error":     msg,
				})
			}
			defer func() {
				if r := recover(); r != nil {
					results[i] = nil
					fail(fmt.Sprintf("panic: %v", r))
				}
			}()

			recs, cerr := s.collector.collect(ctx, src, s.stores)
			results[i] = recs
			if cerr != nil {
				fail(cerr.Error())
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.RawRecord
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out, errs
}

func (s *Service) persist(ctx context.Context, admitted []domain.EnrichedRecord, stats *domain.RunStats) error {
	for _, rec := range admitted {
		outcome, err := s.store.Upsert(ctx, rec)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", rec.IdentityKey(), err)
		}
		switch outcome {
		case storage.OutcomeInserted:
			stats.Inserted++
		case storage.OutcomeUpdated:
			stats.Updated++
		}
	}

	n, err := s.store.DeactivateExpired(ctx, s.now())
	if err != nil {
		return fmt.Errorf("deactivate expired: %w", err)
	}
	stats.Deactivated = n
	return nil
}

// publish hands each admitted coupon to the fan-out. Failures are counted and
// logged only.
func (s *Service) publish(ctx context.Context, runID string, admitted []domain.EnrichedRecord, stats *domain.RunStats) {
	if s.publisher == nil {
		return
	}
	for _, rec := range admitted {
		evt := publishers.NewEvent(runID, rec)
		n, err := s.publisher.Publish(ctx, evt)
		if n > 0 {
			stats.Published++
		}
		if err != nil {
			stats.PublishFailed++
			s.log.WarnObj("coupon publish failed", "publish_error", map[string]any{
				"run_id":       runID,
				"identity_key": evt.IdentityKey,
				"error":        err.Error(),
			})
		}
	}
}

// fail records a failed entry in the run log and surfaces err.
func (s *Service) fail(ctx context.Context, stats domain.RunStats, err error) (domain.RunStats, error) {
	stats.Status = domain.RunStatusFailed
	stats.Error = err.Error()
	s.stamp(&stats)

	s.log.ErrorObj("run failed", "run_stats", stats)
	if logErr := s.store.AppendRunLog(context.WithoutCancel(ctx), stats); logErr != nil {
		s.log.ErrorObj("failed run could not be logged", "run_log_error", map[string]any{
			"run_id": stats.RunID,
			"error":  logErr.Error(),
		})
		return stats, errors.Join(err, fmt.Errorf("append run log: %w", logErr))
	}
	return stats, err
}

func (s *Service) stamp(stats *domain.RunStats) {
	stats.FinishedAt = s.now().UTC()
	stats.ElapsedMs = stats.FinishedAt.Sub(stats.StartedAt).Milliseconds()
}
