package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	couponBucket = "coupons"
	runBucket    = "runs"
	runKeyLayout = "20060102T150405.000000000Z"
)

// boltStore implements a Store backed by BoltDB. Coupons are JSON values keyed
// by identity key; runs are keyed by start time so cursor order is run order.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	retention       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{couponBucket, runBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	store := &boltStore{
		db:              db,
		retention:       opts.Retention,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(time.Now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Upsert inserts rec or refreshes the stored coupon with the same identity key.
func (b *boltStore) Upsert(_ context.Context, rec domain.EnrichedRecord) (Outcome, error) {
	now := b.now()
	if err := b.maybePruneInactive(now); err != nil {
		return "", err
	}

	outcome := OutcomeInserted
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, couponBucket)
		if err != nil {
			return err
		}

		key := []byte(rec.IdentityKey())
		stored := StoredCoupon{EnrichedRecord: rec, ScrapeCount: 1, FirstScrapedAt: now, LastScrapedAt: now}
		if existing := bucket.Get(key); existing != nil {
			var prev StoredCoupon
			if err := json.Unmarshal(existing, &prev); err != nil {
				return fmt.Errorf("decode coupon %s: %w", key, err)
			}
			outcome = OutcomeUpdated
			stored.ScrapeCount = prev.ScrapeCount + 1
			stored.FirstScrapedAt = prev.FirstScrapedAt
		}

		value, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode coupon %s: %w", key, err)
		}
		return bucket.Put(key, value)
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// DeactivateExpired flips active coupons whose validity ended before now.
func (b *boltStore) DeactivateExpired(_ context.Context, now time.Time) (int, error) {
	count := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, couponBucket)
		if err != nil {
			return err
		}

		updates := map[string][]byte{}
		err = bucket.ForEach(func(k, v []byte) error {
			var c StoredCoupon
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decode coupon %s: %w", k, err)
			}
			if !expired(c.EnrichedRecord, now) {
				return nil
			}
			c.IsActive = false
			value, err := json.Marshal(c)
			if err != nil {
				return err
			}
			updates[string(k)] = value
			return nil
		})
		if err != nil {
			return err
		}

		// Writes are deferred until iteration ends; bbolt forbids mutation inside ForEach.
		for k, v := range updates {
			if err := bucket.Put([]byte(k), v); err != nil {
				return err
			}
		}
		count = len(updates)
		return nil
	})
	return count, err
}

// AppendRunLog records stats under a time-ordered key.
func (b *boltStore) AppendRunLog(_ context.Context, stats domain.RunStats) error {
	value, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", stats.RunID, err)
	}
	key := []byte(stats.StartedAt.UTC().Format(runKeyLayout) + "|" + stats.RunID)

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, runBucket)
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
}

// Summary counts active coupons and returns the most recent runs, newest first.
func (b *boltStore) Summary(_ context.Context) (Summary, error) {
	sum := Summary{ActiveByStore: map[string]int{}, RecentRuns: []domain.RunStats{}}

	err := b.db.View(func(tx *bolt.Tx) error {
		coupons, err := bucketOf(tx, couponBucket)
		if err != nil {
			return err
		}
		if err := coupons.ForEach(func(k, v []byte) error {
			var c StoredCoupon
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decode coupon %s: %w", k, err)
			}
			if c.IsActive {
				sum.ActiveCoupons++
				sum.ActiveByStore[c.Store]++
			}
			return nil
		}); err != nil {
			return err
		}

		runs, err := bucketOf(tx, runBucket)
		if err != nil {
			return err
		}
		cursor := runs.Cursor()
		for k, v := cursor.Last(); k != nil && len(sum.RecentRuns) < recentRunsLimit; k, v = cursor.Prev() {
			var stats domain.RunStats
			if err := json.Unmarshal(v, &stats); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			sum.RecentRuns = append(sum.RecentRuns, stats)
		}
		return nil
	})
	return sum, err
}

// Get loads one stored coupon by identity key.
func (b *boltStore) Get(_ context.Context, identityKey string) (StoredCoupon, bool, error) {
	var (
		c     StoredCoupon
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, couponBucket)
		if err != nil {
			return err
		}
		v := bucket.Get([]byte(identityKey))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &c)
	})
	return c, found, err
}

// maybePruneInactive removes inactive coupons not scraped within the retention
// window. It runs on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybePruneInactive(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	cutoff := now.Add(-b.retention)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, couponBucket)
		if err != nil {
			return err
		}

		var stale [][]byte
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var c StoredCoupon
			if err := json.Unmarshal(v, &c); err != nil || (!c.IsActive && c.LastScrapedAt.Before(cutoff)) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func bucketOf(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	bucket := tx.Bucket([]byte(name))
	if bucket == nil {
		return nil, fmt.Errorf("%s bucket missing", name)
	}
	return bucket, nil
}
