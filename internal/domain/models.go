package domain

import (
	"fmt"
	"strings"
	"time"
)

// Domain contains core models shared by the pipeline stages.

// RawRecord is one scraped offer before enrichment.
type RawRecord struct {
	Code            string    `json:"code"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DiscountText    string    `json:"discount_text"`
	ValidityText    string    `json:"validity_text"`
	SuccessRateText string    `json:"success_rate_text"`
	Store           string    `json:"store"`
	Source          string    `json:"source"`
	ScrapedAt       time.Time `json:"scraped_at"`
}

// DiscountType classifies a parsed discount.
type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountAmount       DiscountType = "amount"
	DiscountBOGO         DiscountType = "bogo"
	DiscountFreeShipping DiscountType = "free_shipping"
	DiscountUnknown      DiscountType = "unknown"
)

// DiscountSpec is the typed reading of a free-text discount string.
// An empty Type means the input text was absent.
type DiscountSpec struct {
	Type         DiscountType `json:"type"`
	Value        *int         `json:"value"`
	IsMax        bool         `json:"is_max"`
	IsExtra      bool         `json:"is_extra"`
	OriginalText string       `json:"original_text,omitempty"`
}

// Conditions are offer terms pulled out of description text.
type Conditions struct {
	MinimumPurchase *int     `json:"minimum_purchase,omitempty"`
	MaximumDiscount *int     `json:"maximum_discount,omitempty"`
	ExcludedBrands  []string `json:"excluded_brands,omitempty"`
}

// Empty reports whether no condition matched.
func (c Conditions) Empty() bool {
	return c.MinimumPurchase == nil && c.MaximumDiscount == nil && len(c.ExcludedBrands) == 0
}

// ExtractionResult is the keyword extractor output for one text blob.
// Set fields are deduplicated and never nil.
type ExtractionResult struct {
	Keywords     []string   `json:"keywords"`
	Categories   []string   `json:"categories"`
	Brands       []string   `json:"brands"`
	ProductTypes []string   `json:"product_types"`
	Conditions   Conditions `json:"conditions"`
}

// NewExtractionResult returns the all-empty result.
func NewExtractionResult() ExtractionResult {
	return ExtractionResult{
		Keywords:     []string{},
		Categories:   []string{},
		Brands:       []string{},
		ProductTypes: []string{},
	}
}

// EnrichedRecord is the canonical offer the rest of the pipeline and storage operate on.
type EnrichedRecord struct {
	Code  string `json:"code"`
	Store string `json:"store"`

	Title        string `json:"title"`
	Description  string `json:"description"`
	DiscountText string `json:"discount_text"`

	DiscountPercentage *int         `json:"discount_percentage"`
	DiscountAmount     *int         `json:"discount_amount"`
	DiscountType       DiscountType `json:"discount_type"`

	Keywords        []string `json:"keywords"`
	Categories      []string `json:"categories"`
	MainCategory    string   `json:"main_category"`
	ProductTypes    []string `json:"product_types"`
	Brands          []string `json:"brands"`
	MinimumPurchase int      `json:"minimum_purchase"`
	MaximumDiscount *int     `json:"maximum_discount"`
	ExcludedBrands  []string `json:"excluded_brands"`

	ValidUntil  time.Time `json:"valid_until"`
	SuccessRate *int      `json:"success_rate"`

	Source    string    `json:"source"`
	ScrapedAt time.Time `json:"scraped_at"`
	IsActive  bool      `json:"is_active"`
}

// DiscountValue returns the value used in the identity key: the percentage,
// else the amount, else 0. Zero values count as absent.
func (r EnrichedRecord) DiscountValue() int {
	if r.DiscountPercentage != nil && *r.DiscountPercentage != 0 {
		return *r.DiscountPercentage
	}
	if r.DiscountAmount != nil && *r.DiscountAmount != 0 {
		return *r.DiscountAmount
	}
	return 0
}

// IdentityKey identifies the same coupon across sources and runs.
func (r EnrichedRecord) IdentityKey() string {
	return strings.ToLower(fmt.Sprintf("%s_%s_%d", r.Store, r.Code, r.DiscountValue()))
}

// Run statuses recorded in the run log.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
	RunStatusEmpty   = "empty"
)

// RunStats summarises one pipeline run.
type RunStats struct {
	RunID         string            `json:"run_id"`
	Status        string            `json:"status"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	ElapsedMs     int64             `json:"elapsed_ms"`
	Stores        int               `json:"stores"`
	Fetched       int               `json:"fetched"`
	EnrichFailed  int               `json:"enrich_failed"`
	Enriched      int               `json:"enriched"`
	Unique        int               `json:"unique"`
	Admitted      int               `json:"admitted"`
	Rejected      int               `json:"rejected"`
	Inserted      int               `json:"inserted"`
	Updated       int               `json:"updated"`
	Deactivated   int               `json:"deactivated"`
	Published     int               `json:"published"`
	PublishFailed int               `json:"publish_failed"`
	SourceErrors  map[string]string `json:"source_errors,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
