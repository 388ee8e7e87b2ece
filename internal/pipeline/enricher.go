package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/extract"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/logger"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/taxonomy"
)

// ErrMalformedRecord marks a raw record that cannot be enriched.
var ErrMalformedRecord = errors.New("malformed record")

var successRateRe = regexp.MustCompile(`(\d+)%`)

// Enricher turns raw records into enriched records by composing the parsers and
// extractors. It holds no per-run state.
type Enricher struct {
	tax        *taxonomy.Taxonomy
	discounts  *extract.DiscountParser
	dates      *extract.DateParser
	keywords   *extract.KeywordExtractor
	classifier *extract.CategoryClassifier
}

// NewEnricher wires the extractors over tax; dates supplies the clock and zone.
func NewEnricher(tax *taxonomy.Taxonomy, dates *extract.DateParser) *Enricher {
	return &Enricher{
		tax:        tax,
		discounts:  extract.NewDiscountParser(),
		dates:      dates,
		keywords:   extract.NewKeywordExtractor(tax),
		classifier: extract.NewCategoryClassifier(tax),
	}
}

// Enrich builds one EnrichedRecord. Panics raised while enriching are
// recovered and reported as ErrMalformedRecord.
func (e *Enricher) Enrich(raw domain.RawRecord) (rec domain.EnrichedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = domain.EnrichedRecord{}
			err = fmt.Errorf("%w: %v", ErrMalformedRecord, r)
		}
	}()

	if field, ok := invalidUTF8(raw); ok {
		return domain.EnrichedRecord{}, fmt.Errorf("%w: %s is not valid utf-8", ErrMalformedRecord, field)
	}

	extracted := e.keywords.Extract(joinNonEmpty(raw.Title, raw.Description, raw.DiscountText))
	discount := e.discounts.Parse(raw.DiscountText)

	categories := e.classifier.Classify(extracted.Keywords, extracted.ProductTypes)
	for _, c := range extracted.Categories {
		if !containsString(categories, c) {
			categories = append(categories, c)
		}
	}

	rec = domain.EnrichedRecord{
		Code:         strings.ToUpper(strings.TrimSpace(raw.Code)),
		Store:        e.tax.NormalizeStore(raw.Store),
		Title:        strings.TrimSpace(raw.Title),
		Description:  strings.TrimSpace(raw.Description),
		DiscountText: strings.TrimSpace(raw.DiscountText),
		DiscountType: discount.Type,

		Keywords:        extracted.Keywords,
		Categories:      categories,
		MainCategory:    e.classifier.MainCategory(categories),
		ProductTypes:    extracted.ProductTypes,
		Brands:          extracted.Brands,
		MaximumDiscount: extracted.Conditions.MaximumDiscount,
		ExcludedBrands:  []string{},

		ValidUntil:  e.dates.Parse(raw.ValidityText),
		SuccessRate: parseSuccessRate(raw.SuccessRateText),

		Source:    raw.Source,
		ScrapedAt: raw.ScrapedAt,
		IsActive:  true,
	}

	switch discount.Type {
	case domain.DiscountPercentage:
		rec.DiscountPercentage = discount.Value
	case domain.DiscountAmount:
		rec.DiscountAmount = discount.Value
	}
	if extracted.Conditions.MinimumPurchase != nil {
		rec.MinimumPurchase = *extracted.Conditions.MinimumPurchase
	}
	if len(extracted.Conditions.ExcludedBrands) > 0 {
		rec.ExcludedBrands = extracted.Conditions.ExcludedBrands
	}
	if rec.ScrapedAt.IsZero() {
		rec.ScrapedAt = e.dates.Now()
	}

	return rec, nil
}

// EnrichAll enriches every record, dropping and logging the ones that fail.
// It returns the survivors and the number dropped.
func (e *Enricher) EnrichAll(raws []domain.RawRecord, log logger.Logger) ([]domain.EnrichedRecord, int) {
	log = logger.OrNop(log)

	out := make([]domain.EnrichedRecord, 0, len(raws))
	failed := 0
	for _, raw := range raws {
		rec, err := e.Enrich(raw)
		if err != nil {
			failed++
			log.WarnObj("enrichment failed, dropping record", "record", map[string]any{
				"source": raw.Source,
				"store":  raw.Store,
				"code":   raw.Code,
				"error":  err.Error(),
			})
			continue
		}
		out = append(out, rec)
	}
	return out, failed
}

// parseSuccessRate reads the first "N%" in text; out-of-range values are absent.
func parseSuccessRate(text string) *int {
	m := successRateRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v > 100 {
		return nil
	}
	return &v
}

func invalidUTF8(raw domain.RawRecord) (string, bool) {
	fields := []struct {
		name, value string
	}{
		{"code", raw.Code},
		{"title", raw.Title},
		{"description", raw.Description},
		{"discount_text", raw.DiscountText},
		{"validity_text", raw.ValidityText},
		{"success_rate_text", raw.SuccessRateText},
		{"store", raw.Store},
	}
	for _, f := range fields {
		if !utf8.ValidString(f.value) {
			return f.name, true
		}
	}
	return "", false
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
