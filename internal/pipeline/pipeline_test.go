package pipeline

import (
	"testing"
	"time"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/extract"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/taxonomy"
)

var testNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

func testDeps(t *testing.T) (*taxonomy.Taxonomy, *extract.DateParser) {
	t.Helper()
	tax, err := taxonomy.Default()
	if err != nil {
		t.Fatalf("taxonomy.Default: %v", err)
	}
	return tax, extract.NewDateParserWithClock(time.UTC, func() time.Time { return testNow })
}

func coupon(store, code string, pct int, source string, successRate *int, keywords ...string) domain.EnrichedRecord {
	if keywords == nil {
		keywords = []string{}
	}
	return domain.EnrichedRecord{
		Code:               code,
		Store:              store,
		DiscountPercentage: domain.IntPtr(pct),
		DiscountType:       domain.DiscountPercentage,
		Keywords:           keywords,
		Description:        "desc",
		ValidUntil:         testNow.Add(24 * time.Hour),
		SuccessRate:        successRate,
		Source:             source,
		IsActive:           true,
	}
}
