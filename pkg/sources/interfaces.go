package sources

import (
	"context"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/pkg/httpclient"
)

// Fetcher retrieves and extracts raw offers for one store from a source.
// Concrete implementations live in source-specific files (e.g., grabon.go).
type Fetcher interface {
	ID() string
	FetchStore(ctx context.Context, src Source, store string) ([]domain.RawRecord, error)
}

// FetcherRegistry resolves the fetcher implementation for a given source config.
type FetcherRegistry interface {
	FetcherFor(src Source) (Fetcher, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within sources.
type HTTPClient = httpclient.Client
