package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
)

// Event represents the payload published downstream for one admitted coupon.
type Event struct {
	RunID       string                `json:"run_id"`
	IdentityKey string                `json:"identity_key"`
	Store       string                `json:"store"`
	Coupon      domain.EnrichedRecord `json:"coupon"`
	PublishedAt time.Time             `json:"published_at"`
}

// NewEvent constructs an Event for the given run + coupon.
func NewEvent(runID string, coupon domain.EnrichedRecord) Event {
	return Event{
		RunID:       runID,
		IdentityKey: coupon.IdentityKey(),
		Store:       coupon.Store,
		Coupon:      coupon,
		PublishedAt: time.Now().UTC(),
	}
}
