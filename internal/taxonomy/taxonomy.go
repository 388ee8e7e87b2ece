package taxonomy

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Package taxonomy holds the static lexicons used by extraction, classification
// and deduplication. A Taxonomy is built once at process start and never mutated.

//go:embed default_taxonomy.yaml
var defaultTaxonomyYAML []byte

const fallbackCategory = "general"

// ProductType is one product type with its variant phrases.
type ProductType struct {
	Name    string   `json:"name" yaml:"name"`
	Phrases []string `json:"phrases" yaml:"phrases"`
}

// Category groups product types and loose category keywords.
type Category struct {
	Name         string        `json:"name" yaml:"name"`
	Keywords     []string      `json:"keywords" yaml:"keywords"`
	ProductTypes []ProductType `json:"product_types" yaml:"product_types"`
}

// file is the on-disk shape of a taxonomy file.
type file struct {
	CategoryPriority []string          `json:"category_priority" yaml:"category_priority"`
	SourceRanks      map[string]int    `json:"source_ranks" yaml:"source_ranks"`
	Categories       []Category        `json:"categories" yaml:"categories"`
	Brands           []string          `json:"brands" yaml:"brands"`
	StoreAliases     map[string]string `json:"store_aliases" yaml:"store_aliases"`
}

// Brand is a known brand with its compiled whole-word matcher.
type Brand struct {
	Name    string
	pattern *regexp.Regexp
}

// MatchWord reports whether the brand occurs as a whole word in text.
func (b Brand) MatchWord(text string) bool {
	return b.pattern.MatchString(text)
}

// Taxonomy is the immutable, loaded lexicon set.
type Taxonomy struct {
	categories   []Category
	brands       []Brand
	priority     []string
	sourceRanks  map[string]int
	storeAliases map[string]string

	typeOwners    map[string][]string
	keywordOwners map[string][]string
}

// Load reads a taxonomy from path, or returns the built-in one when path is empty.
func Load(path string) (*Taxonomy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy file: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	return Parse(raw, filepath.Ext(path))
}

// Default returns the built-in taxonomy.
func Default() (*Taxonomy, error) {
	return Parse(defaultTaxonomyYAML, ".yaml")
}

// Parse decodes YAML or JSON taxonomy content.
func Parse(data []byte, ext string) (*Taxonomy, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var f file
		if err := d.fn(data, &f); err != nil {
			continue
		}
		return build(f)
	}

	return nil, errors.New("taxonomy format not recognized (expected YAML or JSON)")
}

func build(f file) (*Taxonomy, error) {
	if len(f.Categories) == 0 {
		return nil, errors.New("taxonomy contains no categories")
	}

	t := &Taxonomy{
		sourceRanks:   make(map[string]int, len(f.SourceRanks)),
		storeAliases:  make(map[string]string, len(f.StoreAliases)),
		typeOwners:    make(map[string][]string),
		keywordOwners: make(map[string][]string),
	}

	seenCategory := make(map[string]bool, len(f.Categories))
	for i, c := range f.Categories {
		c = sanitizeCategory(c)
		if c.Name == "" {
			return nil, fmt.Errorf("categories[%d]: name is required", i)
		}
		if seenCategory[c.Name] {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		seenCategory[c.Name] = true
		t.categories = append(t.categories, c)

		for _, pt := range c.ProductTypes {
			t.typeOwners[pt.Name] = appendUnique(t.typeOwners[pt.Name], c.Name)
		}
		for _, kw := range c.Keywords {
			t.keywordOwners[kw] = appendUnique(t.keywordOwners[kw], c.Name)
		}
	}

	seenBrand := make(map[string]bool, len(f.Brands))
	for _, b := range f.Brands {
		name := strings.ToLower(strings.TrimSpace(b))
		if name == "" || seenBrand[name] {
			continue
		}
		seenBrand[name] = true
		pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(name) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile brand %q: %w", name, err)
		}
		t.brands = append(t.brands, Brand{Name: name, pattern: pattern})
	}

	for _, p := range f.CategoryPriority {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			t.priority = append(t.priority, p)
		}
	}
	for src, rank := range f.SourceRanks {
		if src = strings.TrimSpace(src); src != "" {
			t.sourceRanks[src] = rank
		}
	}
	for alias, store := range f.StoreAliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		store = strings.ToLower(strings.TrimSpace(store))
		if alias != "" && store != "" {
			t.storeAliases[alias] = store
		}
	}

	return t, nil
}

func sanitizeCategory(c Category) Category {
	c.Name = strings.ToLower(strings.TrimSpace(c.Name))
	c.Keywords = lowerAll(c.Keywords)

	types := make([]ProductType, 0, len(c.ProductTypes))
	for _, pt := range c.ProductTypes {
		pt.Name = strings.ToLower(strings.TrimSpace(pt.Name))
		pt.Phrases = lowerAll(pt.Phrases)
		if pt.Name == "" || len(pt.Phrases) == 0 {
			continue
		}
		types = append(types, pt)
	}
	c.ProductTypes = types
	return c
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// Categories returns the categories in declaration order.
func (t *Taxonomy) Categories() []Category {
	return append([]Category(nil), t.categories...)
}

// Brands returns the known brands in declaration order.
func (t *Taxonomy) Brands() []Brand {
	return append([]Brand(nil), t.brands...)
}

// CategoriesOfType returns the categories declaring the product type.
func (t *Taxonomy) CategoriesOfType(productType string) []string {
	return append([]string(nil), t.typeOwners[productType]...)
}

// CategoriesOfKeyword returns the categories whose keyword lexicon contains
// exactly keyword (case-insensitive).
func (t *Taxonomy) CategoriesOfKeyword(keyword string) []string {
	return append([]string(nil), t.keywordOwners[strings.ToLower(keyword)]...)
}

// CategoryPriority returns the main-category priority order.
func (t *Taxonomy) CategoryPriority() []string {
	return append([]string(nil), t.priority...)
}

// FallbackCategory is used when a record has no category at all.
func (t *Taxonomy) FallbackCategory() string { return fallbackCategory }

// SourceRank returns the trust rank of a scraping source, 0 when unknown.
func (t *Taxonomy) SourceRank(source string) int {
	return t.sourceRanks[source]
}

// NormalizeStore maps a raw store name to its canonical identifier.
func (t *Taxonomy) NormalizeStore(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return ""
	}
	if s, ok := t.storeAliases[lower]; ok {
		return s
	}

	cleaned := strings.Replace(lower, ".in", "", 1)
	cleaned = strings.Replace(cleaned, ".com", "", 1)
	cleaned = strings.Replace(cleaned, " india", "", 1)
	cleaned = strings.TrimSpace(cleaned)
	if s, ok := t.storeAliases[cleaned]; ok {
		return s
	}

	return strings.Join(strings.Fields(cleaned), "")
}
