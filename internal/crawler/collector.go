package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/logger"
	"github.com/samvad-hq/samvad-coupon-harvester/pkg/sources"
)

// sourceCollector walks the store list of one source sequentially.
type sourceCollector struct {
	registry   sources.FetcherRegistry
	storeDelay time.Duration
	log        logger.Logger
}

// collect fetches every store for src. A failing store contributes nothing and
// is logged; the error is returned only when the fetcher cannot be resolved,
// the context ends, or every store failed.
func (c *sourceCollector) collect(ctx context.Context, src sources.Source, stores []string) ([]domain.RawRecord, error) {
	fetcher, err := c.registry.FetcherFor(src)
	if err != nil {
		return nil, fmt.Errorf("resolve fetcher for source %s: %w", src.ID, err)
	}

	delay := c.storeDelay
	if src.RequestDelayMs > 0 {
		delay = src.RequestDelay()
	}

	var (
		out    []domain.RawRecord
		failed int
		last   error
	)
	for i, store := range stores {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		recs, err := fetcher.FetchStore(ctx, src, store)
		if err != nil {
			failed++
			last = err
			c.log.WarnObj("store fetch failed", "store_fetch_error", map[string]any{
				"source_id": src.ID,
				"store":     store,
				"error":     err.Error(),
			})
		} else {
			out = append(out, recs...)
			c.log.InfoObj("store fetched", "store_fetch", map[string]any{
				"source_id": src.ID,
				"store":     store,
				"offers":    len(recs),
			})
		}

		if delay > 0 && i < len(stores)-1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return out, ctx.Err()
			case <-timer.C:
			}
		}
	}

	if len(stores) > 0 && failed == len(stores) {
		return out, fmt.Errorf("all %d stores failed for source %s: %w", failed, src.ID, last)
	}
	return out, nil
}
