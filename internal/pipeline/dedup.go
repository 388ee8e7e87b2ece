package pipeline

import (
	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/taxonomy"
)

// Deduplicator collapses records sharing an identity key.
type Deduplicator struct {
	tax *taxonomy.Taxonomy
}

// NewDeduplicator ranks sources using tax.
func NewDeduplicator(tax *taxonomy.Taxonomy) *Deduplicator {
	return &Deduplicator{tax: tax}
}

// Deduplicate keeps one record per identity key in a single pass. Survivors keep
// the position of the first record seen for their key.
func (d *Deduplicator) Deduplicate(records []domain.EnrichedRecord) []domain.EnrichedRecord {
	out := make([]domain.EnrichedRecord, 0, len(records))
	index := make(map[string]int, len(records))

	for _, rec := range records {
		key := rec.IdentityKey()
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, rec)
			continue
		}
		if d.shouldReplace(out[i], rec) {
			out[i] = rec
		}
	}
	return out
}

// shouldReplace applies success rate, then source rank, then keyword count.
// Each rule only decides when it is strictly in favour of one side.
func (d *Deduplicator) shouldReplace(incumbent, candidate domain.EnrichedRecord) bool {
	if incumbent.SuccessRate != nil && candidate.SuccessRate != nil {
		switch {
		case *candidate.SuccessRate > *incumbent.SuccessRate:
			return true
		case *candidate.SuccessRate < *incumbent.SuccessRate:
			return false
		}
	}

	oldRank, newRank := d.tax.SourceRank(incumbent.Source), d.tax.SourceRank(candidate.Source)
	if newRank != oldRank {
		return newRank > oldRank
	}

	return len(candidate.Keywords) > len(incumbent.Keywords)
}
