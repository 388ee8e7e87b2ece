package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
)

// Timestamps are stored as fixed-width UTC text so ordering and comparison
// behave the same on every dialect.
const sqlTimeLayout = "2006-01-02T15:04:05.000000000Z"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS coupons (
		identity_key        TEXT PRIMARY KEY,
		code                TEXT NOT NULL,
		store               TEXT NOT NULL,
		title               TEXT NOT NULL DEFAULT '',
		description         TEXT NOT NULL DEFAULT '',
		discount_text       TEXT NOT NULL DEFAULT '',
		discount_percentage INTEGER,
		discount_amount     INTEGER,
		discount_type       TEXT NOT NULL DEFAULT '',
		keywords            TEXT NOT NULL DEFAULT '[]',
		categories          TEXT NOT NULL DEFAULT '[]',
		main_category       TEXT NOT NULL DEFAULT '',
		product_types       TEXT NOT NULL DEFAULT '[]',
		brands              TEXT NOT NULL DEFAULT '[]',
		minimum_purchase    INTEGER NOT NULL DEFAULT 0,
		maximum_discount    INTEGER,
		excluded_brands     TEXT NOT NULL DEFAULT '[]',
		valid_until         TEXT,
		success_rate        INTEGER,
		source              TEXT NOT NULL DEFAULT '',
		is_active           BOOLEAN NOT NULL DEFAULT TRUE,
		scrape_count        INTEGER NOT NULL DEFAULT 1,
		scraped_at          TEXT NOT NULL,
		first_scraped_at    TEXT NOT NULL,
		last_scraped_at     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coupons_store_active ON coupons (store, is_active)`,
	`CREATE TABLE IF NOT EXISTS scraping_runs (
		run_id      TEXT PRIMARY KEY,
		status      TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		stats       TEXT NOT NULL
	)`,
}

// sqlStore implements Store over database/sql for postgres and sqlite.
type sqlStore struct {
	db     *sql.DB
	rebind func(string) string
	now    func() time.Time
}

func openPostgres(dsn string) (Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	return initSQLStore(db, dollarPlaceholders)
}

func openSQLite(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers; sqlite allows one at a time.
	db.SetMaxOpenConns(1)
	return initSQLStore(db, func(q string) string { return q })
}

func initSQLStore(db *sql.DB, rebind func(string) string) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &sqlStore{db: db, rebind: rebind, now: time.Now}, nil
}

// dollarPlaceholders rewrites ? placeholders to $1, $2, ... for postgres.
func dollarPlaceholders(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts rec or refreshes the row with the same identity key inside
// one transaction.
func (s *sqlStore) Upsert(ctx context.Context, rec domain.EnrichedRecord) (outcome Outcome, err error) {
	key := rec.IdentityKey()
	now := formatTime(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin upsert %s: %w", key, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT scrape_count FROM coupons WHERE identity_key = ?`), key).Scan(&count)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		outcome = OutcomeInserted
	case err != nil:
		return "", fmt.Errorf("lookup coupon %s: %w", key, err)
	default:
		outcome = OutcomeUpdated
	}

	lists, err := encodeLists(rec)
	if err != nil {
		return "", err
	}

	if outcome == OutcomeInserted {
		_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO coupons (
			identity_key, code, store, title, description, discount_text,
			discount_percentage, discount_amount, discount_type,
			keywords, categories, main_category, product_types, brands,
			minimum_purchase, maximum_discount, excluded_brands,
			valid_until, success_rate, source, is_active,
			scrape_count, scraped_at, first_scraped_at, last_scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`),
			key, rec.Code, rec.Store, rec.Title, rec.Description, rec.DiscountText,
			nullInt(rec.DiscountPercentage), nullInt(rec.DiscountAmount), string(rec.DiscountType),
			lists[0], lists[1], rec.MainCategory, lists[2], lists[3],
			rec.MinimumPurchase, nullInt(rec.MaximumDiscount), lists[4],
			nullTime(rec.ValidUntil), nullInt(rec.SuccessRate), rec.Source, rec.IsActive,
			formatTime(rec.ScrapedAt), now, now,
		)
	} else {
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE coupons SET
			code = ?, store = ?, title = ?, description = ?, discount_text = ?,
			discount_percentage = ?, discount_amount = ?, discount_type = ?,
			keywords = ?, categories = ?, main_category = ?, product_types = ?, brands = ?,
			minimum_purchase = ?, maximum_discount = ?, excluded_brands = ?,
			valid_until = ?, success_rate = ?, source = ?, is_active = ?,
			scrape_count = ?, scraped_at = ?, last_scraped_at = ?
		WHERE identity_key = ?`),
			rec.Code, rec.Store, rec.Title, rec.Description, rec.DiscountText,
			nullInt(rec.DiscountPercentage), nullInt(rec.DiscountAmount), string(rec.DiscountType),
			lists[0], lists[1], rec.MainCategory, lists[2], lists[3],
			rec.MinimumPurchase, nullInt(rec.MaximumDiscount), lists[4],
			nullTime(rec.ValidUntil), nullInt(rec.SuccessRate), rec.Source, rec.IsActive,
			count+1, formatTime(rec.ScrapedAt), now,
			key,
		)
	}
	if err != nil {
		return "", fmt.Errorf("write coupon %s: %w", key, err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit coupon %s: %w", key, err)
	}
	return outcome, nil
}

// DeactivateExpired flips active rows whose valid_until is before now.
func (s *sqlStore) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE coupons SET is_active = ? WHERE is_active = ? AND valid_until IS NOT NULL AND valid_until < ?`),
		false, true, formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate expired rows: %w", err)
	}
	return int(n), nil
}

// AppendRunLog inserts one run row; the full stats document is kept as JSON.
func (s *sqlStore) AppendRunLog(ctx context.Context, stats domain.RunStats) error {
	doc, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", stats.RunID, err)
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO scraping_runs (run_id, status, started_at, finished_at, error, stats) VALUES (?, ?, ?, ?, ?, ?)`),
		stats.RunID, stats.Status, formatTime(stats.StartedAt), formatTime(stats.FinishedAt), stats.Error, string(doc),
	)
	if err != nil {
		return fmt.Errorf("append run %s: %w", stats.RunID, err)
	}
	return nil
}

// Summary counts active coupons per store and loads the latest runs.
func (s *sqlStore) Summary(ctx context.Context) (Summary, error) {
	sum := Summary{ActiveByStore: map[string]int{}, RecentRuns: []domain.RunStats{}}

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT store, COUNT(*) FROM coupons WHERE is_active = ? GROUP BY store`), true)
	if err != nil {
		return sum, fmt.Errorf("count active coupons: %w", err)
	}
	for rows.Next() {
		var (
			store string
			n     int
		)
		if err := rows.Scan(&store, &n); err != nil {
			rows.Close()
			return sum, err
		}
		sum.ActiveByStore[store] = n
		sum.ActiveCoupons += n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return sum, err
	}
	rows.Close()

	runs, err := s.db.QueryContext(ctx, s.rebind(`SELECT stats FROM scraping_runs ORDER BY started_at DESC LIMIT ?`), recentRunsLimit)
	if err != nil {
		return sum, fmt.Errorf("load recent runs: %w", err)
	}
	defer runs.Close()
	for runs.Next() {
		var doc string
		if err := runs.Scan(&doc); err != nil {
			return sum, err
		}
		var stats domain.RunStats
		if err := json.Unmarshal([]byte(doc), &stats); err != nil {
			return sum, fmt.Errorf("decode run: %w", err)
		}
		sum.RecentRuns = append(sum.RecentRuns, stats)
	}
	return sum, runs.Err()
}

// Get loads one stored coupon by identity key.
func (s *sqlStore) Get(ctx context.Context, key string) (StoredCoupon, bool, error) {
	var (
		c                                    StoredCoupon
		pct, amt, maxDisc, rate              sql.NullInt64
		validUntil                           sql.NullString
		discountType                         string
		kw, cats, types, brands, excl        string
		scrapedAt, firstScraped, lastScraped string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT
		code, store, title, description, discount_text,
		discount_percentage, discount_amount, discount_type,
		keywords, categories, main_category, product_types, brands,
		minimum_purchase, maximum_discount, excluded_brands,
		valid_until, success_rate, source, is_active,
		scrape_count, scraped_at, first_scraped_at, last_scraped_at
	FROM coupons WHERE identity_key = ?`), key).Scan(
		&c.Code, &c.Store, &c.Title, &c.Description, &c.DiscountText,
		&pct, &amt, &discountType,
		&kw, &cats, &c.MainCategory, &types, &brands,
		&c.MinimumPurchase, &maxDisc, &excl,
		&validUntil, &rate, &c.Source, &c.IsActive,
		&c.ScrapeCount, &scrapedAt, &firstScraped, &lastScraped,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredCoupon{}, false, nil
	}
	if err != nil {
		return StoredCoupon{}, false, fmt.Errorf("load coupon %s: %w", key, err)
	}

	c.DiscountType = domain.DiscountType(discountType)
	c.DiscountPercentage = intOrNil(pct)
	c.DiscountAmount = intOrNil(amt)
	c.MaximumDiscount = intOrNil(maxDisc)
	c.SuccessRate = intOrNil(rate)
	if validUntil.Valid {
		c.ValidUntil = parseTime(validUntil.String)
	}
	c.ScrapedAt = parseTime(scrapedAt)
	c.FirstScrapedAt = parseTime(firstScraped)
	c.LastScrapedAt = parseTime(lastScraped)

	for _, l := range []struct {
		raw string
		dst *[]string
	}{
		{kw, &c.Keywords}, {cats, &c.Categories}, {types, &c.ProductTypes}, {brands, &c.Brands}, {excl, &c.ExcludedBrands},
	} {
		if err := json.Unmarshal([]byte(l.raw), l.dst); err != nil {
			return StoredCoupon{}, false, fmt.Errorf("decode coupon %s lists: %w", key, err)
		}
	}
	return c, true, nil
}

// encodeLists returns keywords, categories, product types, brands and
// excluded brands as JSON arrays, in that order.
func encodeLists(rec domain.EnrichedRecord) ([5]string, error) {
	var out [5]string
	for i, list := range [][]string{rec.Keywords, rec.Categories, rec.ProductTypes, rec.Brands, rec.ExcludedBrands} {
		if list == nil {
			list = []string{}
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return out, fmt.Errorf("encode coupon lists: %w", err)
		}
		out[i] = string(raw)
	}
	return out, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intOrNil(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqlTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
