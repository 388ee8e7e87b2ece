package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
)

// discountRule is one pattern family of the discount precedence table.
// Patterns inside a rule are tried in order; the first match builds the spec.
type discountRule struct {
	name     string
	patterns []*regexp.Regexp
	build    func(match []string) (domain.DiscountSpec, bool)
}

// DiscountParser classifies free-text discount strings. Rules are evaluated top
// to bottom and the first rule that matches wins.
type DiscountParser struct {
	rules []discountRule
}

// NewDiscountParser returns a parser with the standard precedence table.
func NewDiscountParser() *DiscountParser {
	return &DiscountParser{rules: []discountRule{
		{
			name:     "percentage_qualified",
			patterns: compileAll(`(\d+)\s*%\s*(off|discount)`),
			build:    valueSpec(domain.DiscountPercentage, false, false),
		},
		{
			name: "amount_qualified",
			patterns: compileAll(
				`₹\s*(\d+[,\d]*)\s*(off|discount)`,
				`flat\s*₹?\s*(\d+[,\d]*)`,
				`rs\.?\s*(\d+[,\d]*)\s*(off|discount)`,
			),
			build: valueSpec(domain.DiscountAmount, false, false),
		},
		{
			name:     "percentage_upto",
			patterns: compileAll(`upto?\s*(\d+)\s*%`, `up\s*to\s*(\d+)\s*%`),
			build:    valueSpec(domain.DiscountPercentage, true, false),
		},
		{
			name:     "percentage_extra",
			patterns: compileAll(`extra\s*(\d+)\s*%`),
			build:    valueSpec(domain.DiscountPercentage, false, true),
		},
		{
			name:     "bogo",
			patterns: compileAll(`buy\s*\d+\s*get\s*\d+`, `bogo`),
			build:    flagSpec(domain.DiscountBOGO),
		},
		{
			name:     "free_shipping",
			patterns: compileAll(`free\s*(shipping|delivery)`),
			build:    flagSpec(domain.DiscountFreeShipping),
		},
		{
			name:     "percentage_bare",
			patterns: compileAll(`(\d+)%`),
			build:    valueSpec(domain.DiscountPercentage, false, false),
		},
		{
			name:     "amount_bare",
			patterns: compileAll(`₹\s*(\d+[,\d]*)`),
			build:    valueSpec(domain.DiscountAmount, false, false),
		},
	}}
}

// Parse returns the typed discount for text. Empty input yields a spec with an
// empty Type and no original text; unmatched input yields DiscountUnknown.
func (p *DiscountParser) Parse(text string) domain.DiscountSpec {
	if text == "" {
		return domain.DiscountSpec{}
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range p.rules {
		for _, re := range rule.patterns {
			m := re.FindStringSubmatch(lower)
			if m == nil {
				continue
			}
			spec, ok := rule.build(m)
			if !ok {
				continue
			}
			spec.OriginalText = text
			return spec
		}
	}

	return domain.DiscountSpec{Type: domain.DiscountUnknown, OriginalText: text}
}

// Percentage returns the parsed percentage, or nil when text is not a percentage discount.
func (p *DiscountParser) Percentage(text string) *int {
	spec := p.Parse(text)
	if spec.Type != domain.DiscountPercentage {
		return nil
	}
	return spec.Value
}

// Amount returns the parsed flat amount, or nil when text is not an amount discount.
func (p *DiscountParser) Amount(text string) *int {
	spec := p.Parse(text)
	if spec.Type != domain.DiscountAmount {
		return nil
	}
	return spec.Value
}

func valueSpec(typ domain.DiscountType, isMax, isExtra bool) func([]string) (domain.DiscountSpec, bool) {
	return func(m []string) (domain.DiscountSpec, bool) {
		v, ok := parseNumber(m[1])
		if !ok {
			return domain.DiscountSpec{}, false
		}
		return domain.DiscountSpec{Type: typ, Value: &v, IsMax: isMax, IsExtra: isExtra}, true
	}
}

func flagSpec(typ domain.DiscountType) func([]string) (domain.DiscountSpec, bool) {
	return func([]string) (domain.DiscountSpec, bool) {
		return domain.DiscountSpec{Type: typ}, true
	}
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// parseNumber strips thousands separators and converts digits to an int.
func parseNumber(raw string) (int, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, false
	}
	return v, true
}
