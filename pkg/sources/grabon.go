package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
)

const (
	SourceTypeGrabOn = "grabon"
	grabOnCodePrefix = "GO"
)

// grabOnFetcher scrapes the coupon boxes on a GrabOn store page.
type grabOnFetcher struct {
	pageFetcher
}

// NewGrabOnFetcher builds a fetcher for GrabOn store pages.
func NewGrabOnFetcher(client HTTPClient, maxOffers int) Fetcher {
	return &grabOnFetcher{pageFetcher: newPageFetcher(client, maxOffers)}
}

func (f *grabOnFetcher) ID() string { return SourceTypeGrabOn }

func (f *grabOnFetcher) FetchStore(ctx context.Context, src Source, store string) ([]domain.RawRecord, error) {
	if strings.TrimSpace(store) == "" {
		return nil, fmt.Errorf("grabon: store is empty")
	}

	doc, err := f.fetchDocument(ctx, src, storeURL(src.BaseURL, store, "-coupons"))
	if err != nil {
		return nil, err
	}

	limit := src.OfferLimit(f.maxOffers)
	scrapedAt := f.now()
	out := make([]domain.RawRecord, 0)

	doc.Find(".gc-box.banko").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		discount := cleanText(card.Find(".bank > span.txt").Text())
		description := cleanText(card.ChildrenFiltered(".gcbr").ChildrenFiltered("p").First().Text())
		if description == "" {
			description = cleanText(card.Find("p").First().Text())
		}
		if discount == "" && description == "" {
			return true
		}

		title := discount
		if title == "" {
			title = description
		}
		if description == "" {
			description = discount
		}

		var successRate string
		if card.Find(".verified").Length() > 0 {
			successRate = "Verified - " + cleanText(card.Find(".usr .bold-me").Text()) + " uses"
		}

		out = append(out, domain.RawRecord{
			Code:            syntheticCode(grabOnCodePrefix, store, title, description),
			Title:           title,
			Description:     description,
			DiscountText:    discount,
			SuccessRateText: successRate,
			Store:           store,
			Source:          src.Name,
			ScrapedAt:       scrapedAt,
		})
		return len(out) < limit
	})

	return out, nil
}
