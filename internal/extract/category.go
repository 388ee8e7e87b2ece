package extract

import "github.com/samvad-hq/samvad-coupon-harvester/internal/taxonomy"

// CategoryClassifier derives categories from extracted keywords and product types.
type CategoryClassifier struct {
	tax *taxonomy.Taxonomy
}

// NewCategoryClassifier binds a classifier to a loaded taxonomy.
func NewCategoryClassifier(tax *taxonomy.Taxonomy) *CategoryClassifier {
	return &CategoryClassifier{tax: tax}
}

// Classify returns every category owning one of productTypes, plus every
// category whose keyword lexicon contains one of keywords exactly.
func (c *CategoryClassifier) Classify(keywords, productTypes []string) []string {
	out := make([]string, 0, len(productTypes))
	for _, pt := range productTypes {
		out = append(out, c.tax.CategoriesOfType(pt)...)
	}
	for _, kw := range keywords {
		out = append(out, c.tax.CategoriesOfKeyword(kw)...)
	}
	return dedupe(out)
}

// MainCategory picks the highest-priority category present, else the first
// category given, else the fallback.
func (c *CategoryClassifier) MainCategory(categories []string) string {
	for _, p := range c.tax.CategoryPriority() {
		if contains(categories, p) {
			return p
		}
	}
	if len(categories) > 0 {
		return categories[0]
	}
	return c.tax.FallbackCategory()
}
