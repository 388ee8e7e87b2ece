package extract

import (
	"testing"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/taxonomy"
)

func mustTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.Default()
	if err != nil {
		t.Fatalf("taxonomy.Default: %v", err)
	}
	return tax
}

func has(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestKeywordExtractorProductBrandCategory(t *testing.T) {
	e := NewKeywordExtractor(mustTaxonomy(t))

	got := e.Extract("Flat 20% off on Nike running shoes")

	if !has(got.Brands, "nike") || !has(got.Keywords, "nike") {
		t.Fatalf("expected nike as brand and keyword, got %#v", got)
	}
	if !has(got.ProductTypes, "footwear") || !has(got.Keywords, "footwear") {
		t.Fatalf("expected footwear product type, got %v", got.ProductTypes)
	}
	if !has(got.Categories, "fashion") {
		t.Fatalf("expected fashion category, got %v", got.Categories)
	}
	if !got.Conditions.Empty() {
		t.Fatalf("expected no conditions, got %#v", got.Conditions)
	}
}

func TestKeywordExtractorCategoryKeywordDoesNotAddKeyword(t *testing.T) {
	e := NewKeywordExtractor(mustTaxonomy(t))

	got := e.Extract("Huge grooming sale")
	if !has(got.Categories, "beauty") {
		t.Fatalf("expected beauty from category lexicon, got %v", got.Categories)
	}
	if has(got.Keywords, "grooming") {
		t.Fatalf("category keywords must not be added to keywords, got %v", got.Keywords)
	}
}

func TestKeywordExtractorDeduplicates(t *testing.T) {
	e := NewKeywordExtractor(mustTaxonomy(t))

	got := e.Extract("Samsung laptop and samsung notebook")
	count := 0
	for _, k := range got.Keywords {
		if k == "samsung" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected samsung once in keywords, got %v", got.Keywords)
	}
	if len(got.ProductTypes) == 0 || got.ProductTypes[0] != "laptop" {
		t.Fatalf("expected laptop first, got %v", got.ProductTypes)
	}
}

func TestKeywordExtractorConditions(t *testing.T) {
	e := NewKeywordExtractor(mustTaxonomy(t))

	got := e.Extract("Get 10% off upto ₹200 on orders above ₹1,999. Not valid on Apple and Samsung products.")
	c := got.Conditions
	if c.MinimumPurchase == nil || *c.MinimumPurchase != 1999 {
		t.Fatalf("minimum purchase = %v", c.MinimumPurchase)
	}
	if c.MaximumDiscount == nil || *c.MaximumDiscount != 200 {
		t.Fatalf("maximum discount = %v", c.MaximumDiscount)
	}
	if len(c.ExcludedBrands) != 2 || c.ExcludedBrands[0] != "apple" || c.ExcludedBrands[1] != "samsung" {
		t.Fatalf("excluded brands = %v", c.ExcludedBrands)
	}
}

func TestKeywordExtractorExclusionIgnoresUnknownBrands(t *testing.T) {
	e := NewKeywordExtractor(mustTaxonomy(t))

	got := e.Extract("Not applicable on gift cards")
	if len(got.Conditions.ExcludedBrands) != 0 {
		t.Fatalf("expected no excluded brands, got %v", got.Conditions.ExcludedBrands)
	}
}

func TestKeywordExtractorEmptyInput(t *testing.T) {
	e := NewKeywordExtractor(mustTaxonomy(t))

	got := e.Extract("  ")
	if got.Keywords == nil || got.Categories == nil || got.Brands == nil || got.ProductTypes == nil {
		t.Fatalf("empty input must yield non-nil collections")
	}
	if len(got.Keywords)+len(got.Categories)+len(got.Brands)+len(got.ProductTypes) != 0 {
		t.Fatalf("expected all-empty result, got %#v", got)
	}
}
