package sources

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
)

const (
	SourceTypeCouponDunia = "coupondunia"
	couponDuniaCodePrefix = "CD"
)

var couponDuniaDiscountRe = regexp.MustCompile(`(?i)(\d+%|upto \d+%|up to \d+%|\d+₹|₹\d+|flat \d+%|get \d+%)`)

// couponDuniaFetcher scrapes the offer cards on a CouponDunia store page.
type couponDuniaFetcher struct {
	pageFetcher
}

// NewCouponDuniaFetcher builds a fetcher for CouponDunia store pages.
func NewCouponDuniaFetcher(client HTTPClient, maxOffers int) Fetcher {
	return &couponDuniaFetcher{pageFetcher: newPageFetcher(client, maxOffers)}
}

func (f *couponDuniaFetcher) ID() string { return SourceTypeCouponDunia }

func (f *couponDuniaFetcher) FetchStore(ctx context.Context, src Source, store string) ([]domain.RawRecord, error) {
	if strings.TrimSpace(store) == "" {
		return nil, fmt.Errorf("coupondunia: store is empty")
	}

	doc, err := f.fetchDocument(ctx, src, storeURL(src.BaseURL, store, ""))
	if err != nil {
		return nil, err
	}

	limit := src.OfferLimit(f.maxOffers)
	scrapedAt := f.now()
	out := make([]domain.RawRecord, 0)

	doc.Find(".offer-card-ctr").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		title := cleanText(card.Find(".offer-title").First().Text())
		if title == "" {
			return true
		}
		description := cleanText(card.Find(".offer-desc").First().Text())

		discountSource := description
		if discountSource == "" {
			discountSource = title
		}
		discount := couponDuniaDiscountRe.FindString(discountSource)

		if description == "" {
			description = truncate(title, 200)
		}

		out = append(out, domain.RawRecord{
			Code:         syntheticCode(couponDuniaCodePrefix, store, title, description),
			Title:        title,
			Description:  description,
			DiscountText: discount,
			Store:        store,
			Source:       src.Name,
			ScrapedAt:    scrapedAt,
		})
		return len(out) < limit
	})

	return out, nil
}
