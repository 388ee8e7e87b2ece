package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
)

func testEvent() Event {
	pct := 20
	return NewEvent("run-1", domain.EnrichedRecord{
		Code:               "SAVE20",
		Store:              "myntra",
		DiscountPercentage: &pct,
		DiscountType:       domain.DiscountPercentage,
		Keywords:           []string{"nike"},
		ValidUntil:         time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Source:             "CouponDunia",
		IsActive:           true,
	})
}

func flatCouponEvent() Event {
	return NewEvent("run-1", domain.EnrichedRecord{
		Code:           "FLAT500",
		Store:          "amazon",
		DiscountAmount: domain.IntPtr(500),
		DiscountType:   domain.DiscountAmount,
		Source:         "GrabOn",
		IsActive:       true,
	})
}
