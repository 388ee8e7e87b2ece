package crawler

import (
	"context"
	"time"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/storage"
	"github.com/samvad-hq/samvad-coupon-harvester/pkg/publishers"
)

// Persister is the storage surface a run writes through.
type Persister interface {
	Upsert(ctx context.Context, rec domain.EnrichedRecord) (storage.Outcome, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
	AppendRunLog(ctx context.Context, stats domain.RunStats) error
}

// EventPublisher publishes admitted coupons downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
