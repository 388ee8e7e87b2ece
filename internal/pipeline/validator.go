package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/extract"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/logger"
)

var genericCodes = map[string]struct{}{
	"SALE":     {},
	"DEAL":     {},
	"OFFER":    {},
	"PROMO":    {},
	"DISCOUNT": {},
}

// Thresholds bound the numeric admission checks.
type Thresholds struct {
	MinCodeLength      int
	MaxPercentage      int
	MaxDiscountAmount  int
	MaxMinimumPurchase int
}

// DefaultThresholds returns the standard admission bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinCodeLength:      3,
		MaxPercentage:      100,
		MaxDiscountAmount:  100000,
		MaxMinimumPurchase: 1000000,
	}
}

// Verdict is the admission outcome with every failed rule listed.
type Verdict struct {
	Admitted bool
	Reasons  []string
}

// Validator applies the admission rules to enriched records.
type Validator struct {
	th    Thresholds
	dates *extract.DateParser
	log   logger.Logger
}

// NewValidator builds a validator. dates decides expiry against its clock.
func NewValidator(th Thresholds, dates *extract.DateParser, log logger.Logger) *Validator {
	return &Validator{th: th, dates: dates, log: logger.OrNop(log)}
}

// Check runs every rule so the verdict carries the full list of reasons.
func (v *Validator) Check(rec domain.EnrichedRecord) Verdict {
	var reasons []string

	if utf8.RuneCountInString(rec.Code) < v.th.MinCodeLength {
		reasons = append(reasons, "invalid or missing code")
	}
	if _, generic := genericCodes[strings.ToUpper(rec.Code)]; generic {
		reasons = append(reasons, "generic code")
	}
	if strings.TrimSpace(rec.Store) == "" {
		reasons = append(reasons, "missing store")
	}
	if rec.DiscountPercentage == nil && rec.DiscountAmount == nil && rec.DiscountType != domain.DiscountBOGO {
		reasons = append(reasons, "no discount value")
	}
	if p := rec.DiscountPercentage; p != nil && (*p < 1 || *p > v.th.MaxPercentage) {
		reasons = append(reasons, fmt.Sprintf("invalid discount percentage: %d%%", *p))
	}
	if a := rec.DiscountAmount; a != nil && (*a < 1 || *a > v.th.MaxDiscountAmount) {
		reasons = append(reasons, fmt.Sprintf("invalid discount amount: %d", *a))
	}
	if !rec.ValidUntil.IsZero() && v.dates.IsExpired(rec.ValidUntil) {
		reasons = append(reasons, "coupon expired")
	}
	if rec.MinimumPurchase > v.th.MaxMinimumPurchase {
		reasons = append(reasons, fmt.Sprintf("unrealistic minimum purchase: %d", rec.MinimumPurchase))
	}
	if len(rec.Keywords) == 0 && strings.TrimSpace(rec.Description) == "" {
		reasons = append(reasons, "no keywords or description")
	}

	return Verdict{Admitted: len(reasons) == 0, Reasons: reasons}
}

// IsValid reports whether rec passes every rule.
func (v *Validator) IsValid(rec domain.EnrichedRecord) bool {
	verdict := v.Check(rec)
	if !verdict.Admitted {
		v.log.DebugObj("coupon rejected", "rejection", map[string]any{
			"code":    rec.Code,
			"store":   rec.Store,
			"source":  rec.Source,
			"reasons": verdict.Reasons,
		})
	}
	return verdict.Admitted
}

// Validate filters records down to the admitted ones, preserving order.
func (v *Validator) Validate(records []domain.EnrichedRecord) []domain.EnrichedRecord {
	out := make([]domain.EnrichedRecord, 0, len(records))
	for _, rec := range records {
		if v.IsValid(rec) {
			out = append(out, rec)
		}
	}
	return out
}
