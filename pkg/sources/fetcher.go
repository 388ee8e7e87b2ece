package sources

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-coupon-harvester/pkg/httpclient"
)

// fetcherRegistry implements FetcherRegistry.
type fetcherRegistry struct {
	fetchersByID   map[string]Fetcher
	fetchersByType map[string]Fetcher
	mu             sync.RWMutex
}

// NewTypeFetcherRegistry builds a registry with optional type-based fetchers and source-specific fetchers.
func NewTypeFetcherRegistry(typeFetchers map[string]Fetcher, fetchers ...Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{
		fetchersByID:   make(map[string]Fetcher),
		fetchersByType: make(map[string]Fetcher),
	}

	for _, f := range fetchers {
		reg.registerIDFetcher(f)
	}
	for typ, f := range typeFetchers {
		reg.registerTypeFetcher(typ, f)
	}

	return reg
}

func (r *fetcherRegistry) registerIDFetcher(f Fetcher) {
	if f == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(f.ID()))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.fetchersByID[key] = f
	r.mu.Unlock()
}

func (r *fetcherRegistry) registerTypeFetcher(typ string, f Fetcher) {
	if f == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.fetchersByType[key] = f
	r.mu.Unlock()
}

// FetcherFor selects the fetcher for the given source based on its id or type.
func (r *fetcherRegistry) FetcherFor(src Source) (Fetcher, error) {
	if r == nil {
		return nil, fmt.Errorf("fetcher registry is nil")
	}
	if strings.TrimSpace(src.ID) == "" {
		return nil, fmt.Errorf("source id is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idKey := strings.ToLower(strings.TrimSpace(src.ID))
	if f, ok := r.fetchersByID[idKey]; ok {
		return f, nil
	}

	typeKey := strings.ToLower(strings.TrimSpace(src.Type))
	if typeKey != "" {
		if f, ok := r.fetchersByType[typeKey]; ok {
			return f, nil
		}
	}

	return nil, fmt.Errorf("no fetcher registered for source %q (type %q)", src.ID, src.Type)
}

// DefaultHTTPClient returns a retrying client with the stock fetch policy.
func DefaultHTTPClient() HTTPClient {
	return httpclient.NewRetryingClient(30*time.Second, httpclient.RetryOptions{
		Attempts: 3,
		Wait:     2 * time.Second,
		MaxWait:  8 * time.Second,
	})
}

// DefaultFetcherRegistry wires up the known source fetchers by type.
func DefaultFetcherRegistry(client HTTPClient, maxOffers int) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}

	typeFetchers := map[string]Fetcher{
		SourceTypeCouponDunia: NewCouponDuniaFetcher(client, maxOffers),
		SourceTypeGrabOn:      NewGrabOnFetcher(client, maxOffers),
		SourceTypeCashKaro:    NewCashKaroFetcher(client, maxOffers),
	}

	return NewTypeFetcherRegistry(typeFetchers)
}
