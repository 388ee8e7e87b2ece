package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
)

// Package storage persists admitted coupons and the run log.

// ErrUnsupportedType is returned by NewStore for unknown backends.
var ErrUnsupportedType = errors.New("unsupported storage type")

// Outcome reports whether an upsert created or refreshed a coupon.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
)

// StoredCoupon is a persisted coupon with its scrape bookkeeping.
type StoredCoupon struct {
	domain.EnrichedRecord
	ScrapeCount    int       `json:"scrape_count"`
	FirstScrapedAt time.Time `json:"first_scraped_at"`
	LastScrapedAt  time.Time `json:"last_scraped_at"`
}

// Summary is the store-level view served by the stats endpoint.
type Summary struct {
	ActiveCoupons int               `json:"active_coupons"`
	ActiveByStore map[string]int    `json:"active_by_store"`
	RecentRuns    []domain.RunStats `json:"recent_runs"`
}

// Store is the persistence collaborator of a pipeline run. Upserts are keyed by
// the coupon identity key and applied one record at a time.
type Store interface {
	Close() error
	Upsert(ctx context.Context, rec domain.EnrichedRecord) (Outcome, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
	AppendRunLog(ctx context.Context, stats domain.RunStats) error
	Summary(ctx context.Context) (Summary, error)
	Get(ctx context.Context, identityKey string) (StoredCoupon, bool, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	Retention       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultRetention       = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
	recentRunsLimit        = 10
)

// NewStore creates the configured storage backend. target is the bbolt or
// sqlite file path, or the postgres DSN.
func NewStore(typ, target string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(target) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(target, opts)
	case "sqlite":
		if strings.TrimSpace(target) == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return openSQLite(target)
	case "postgres":
		if strings.TrimSpace(target) == "" {
			return nil, fmt.Errorf("postgres storage requires a dsn")
		}
		return openPostgres(target)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedType, typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

// expired reports whether an active coupon's validity has lapsed at now.
func expired(rec domain.EnrichedRecord, now time.Time) bool {
	return rec.IsActive && !rec.ValidUntil.IsZero() && rec.ValidUntil.Before(now)
}

type noopStore struct{}

func (noopStore) Close() error { return nil }
func (noopStore) Upsert(context.Context, domain.EnrichedRecord) (Outcome, error) {
	return OutcomeInserted, nil
}
func (noopStore) DeactivateExpired(context.Context, time.Time) (int, error) { return 0, nil }
func (noopStore) AppendRunLog(context.Context, domain.RunStats) error      { return nil }
func (noopStore) Get(context.Context, string) (StoredCoupon, bool, error) {
	return StoredCoupon{}, false, nil
}
func (noopStore) Summary(context.Context) (Summary, error) {
	return Summary{ActiveByStore: map[string]int{}, RecentRuns: []domain.RunStats{}}, nil
}
