package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/domain"
)

const SourceTypeCashKaro = "cashkaro"

var (
	cashKaroCardSelectors = []string{`[class*="coupon"]`, `[class*="offer"]`, ".deal-card"}
	cashKaroSkipCodes     = map[string]struct{}{"SALE": {}, "DEAL": {}, "OFFER": {}}
)

// cashKaroFetcher scrapes coupon cards on a CashKaro store page. Card markup
// varies, so the first selector family present on the page wins.
type cashKaroFetcher struct {
	pageFetcher
}

// NewCashKaroFetcher builds a fetcher for CashKaro store pages.
func NewCashKaroFetcher(client HTTPClient, maxOffers int) Fetcher {
	return &cashKaroFetcher{pageFetcher: newPageFetcher(client, maxOffers)}
}

func (f *cashKaroFetcher) ID() string { return SourceTypeCashKaro }

func (f *cashKaroFetcher) FetchStore(ctx context.Context, src Source, store string) ([]domain.RawRecord, error) {
	if strings.TrimSpace(store) == "" {
		return nil, fmt.Errorf("cashkaro: store is empty")
	}

	doc, err := f.fetchDocument(ctx, src, storeURL(src.BaseURL, store, "-coupons"))
	if err != nil {
		return nil, err
	}

	var cards *goquery.Selection
	for _, sel := range cashKaroCardSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			cards = found
			break
		}
	}
	out := make([]domain.RawRecord, 0)
	if cards == nil {
		return out, nil
	}

	limit := src.OfferLimit(f.maxOffers)
	scrapedAt := f.now()

	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		code := firstText(card, ".code", `[class*="code"]`, "code")
		if len([]rune(code)) < 3 {
			return true
		}
		if _, skip := cashKaroSkipCodes[strings.ToUpper(code)]; skip {
			return true
		}

		out = append(out, domain.RawRecord{
			Code:         code,
			Title:        firstText(card, ".title", `[class*="title"]`, "h3"),
			Description:  firstText(card, ".description", `[class*="desc"]`, "p"),
			DiscountText: firstText(card, `[class*="discount"]`, `[class*="offer"]`),
			ValidityText: firstText(card, `[class*="validity"]`, `[class*="expiry"]`),
			Store:        store,
			Source:       src.Name,
			ScrapedAt:    scrapedAt,
		})
		return len(out) < limit
	})

	return out, nil
}
