package extract

import (
	"regexp"
	"strings"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/taxonomy"
)

var (
	minPurchasePatterns = compileAll(
		`above\s*₹?\s*(\d+[,\d]*)`,
		`over\s*₹?\s*(\d+[,\d]*)`,
		`minimum\s*₹?\s*(\d+[,\d]*)`,
		`min\s*₹?\s*(\d+[,\d]*)`,
		`on\s*orders?\s*of\s*₹?\s*(\d+[,\d]*)`,
		`purchase\s*above\s*₹?\s*(\d+[,\d]*)`,
	)
	maxDiscountPatterns = compileAll(
		`upto\s*₹?\s*(\d+[,\d]*)`,
		`up\s*to\s*₹?\s*(\d+[,\d]*)`,
		`maximum\s*₹?\s*(\d+[,\d]*)`,
		`max\s*₹?\s*(\d+[,\d]*)`,
	)
	exclusionPatterns = compileAll(
		`except\s+([a-z\s,&]+)`,
		`not\s+valid\s+on\s+([a-z\s,&]+)`,
		`excluding\s+([a-z\s,&]+)`,
		`not\s+applicable\s+on\s+([a-z\s,&]+)`,
	)
)

// KeywordExtractor scans offer text against the taxonomy lexicons.
type KeywordExtractor struct {
	tax *taxonomy.Taxonomy
}

// NewKeywordExtractor binds an extractor to a loaded taxonomy.
func NewKeywordExtractor(tax *taxonomy.Taxonomy) *KeywordExtractor {
	return &KeywordExtractor{tax: tax}
}

// Extract runs the product-type, brand, category-keyword and condition scans.
// The scans are additive; set fields come back deduplicated.
func (e *KeywordExtractor) Extract(text string) domain.ExtractionResult {
	out := domain.NewExtractionResult()
	if strings.TrimSpace(text) == "" {
		return out
	}

	lower := strings.ToLower(text)

	e.extractProductTypes(lower, &out)
	e.extractBrands(lower, &out)
	e.extractCategoryKeywords(lower, &out)
	out.Conditions = e.extractConditions(lower)

	out.Keywords = dedupe(out.Keywords)
	out.Categories = dedupe(out.Categories)
	out.Brands = dedupe(out.Brands)
	out.ProductTypes = dedupe(out.ProductTypes)
	return out
}

func (e *KeywordExtractor) extractProductTypes(text string, out *domain.ExtractionResult) {
	for _, cat := range e.tax.Categories() {
		for _, pt := range cat.ProductTypes {
			for _, phrase := range pt.Phrases {
				if strings.Contains(text, phrase) {
					out.ProductTypes = append(out.ProductTypes, pt.Name)
					out.Categories = append(out.Categories, cat.Name)
					out.Keywords = append(out.Keywords, pt.Name)
					break
				}
			}
		}
	}
}

func (e *KeywordExtractor) extractBrands(text string, out *domain.ExtractionResult) {
	for _, b := range e.tax.Brands() {
		if b.MatchWord(text) {
			out.Brands = append(out.Brands, b.Name)
			out.Keywords = append(out.Keywords, b.Name)
		}
	}
}

func (e *KeywordExtractor) extractCategoryKeywords(text string, out *domain.ExtractionResult) {
	for _, cat := range e.tax.Categories() {
		for _, kw := range cat.Keywords {
			if strings.Contains(text, kw) {
				if !contains(out.Categories, cat.Name) {
					out.Categories = append(out.Categories, cat.Name)
				}
				break
			}
		}
	}
}

func (e *KeywordExtractor) extractConditions(text string) domain.Conditions {
	var c domain.Conditions

	if v, ok := firstNumber(minPurchasePatterns, text); ok {
		c.MinimumPurchase = &v
	}
	if v, ok := firstNumber(maxDiscountPatterns, text); ok {
		c.MaximumDiscount = &v
	}

	for _, re := range exclusionPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		var excluded []string
		for _, b := range e.tax.Brands() {
			if b.MatchWord(m[1]) {
				excluded = append(excluded, b.Name)
			}
		}
		if len(excluded) > 0 {
			c.ExcludedBrands = excluded
			break
		}
	}

	return c
}

func firstNumber(patterns []*regexp.Regexp, text string) (int, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := parseNumber(m[1]); ok {
			return v, true
		}
	}
	return 0, false
}

// dedupe removes repeats keeping first-occurrence order; never returns nil.
func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
