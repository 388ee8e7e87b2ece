package sources

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-coupon-harvester/pkg/httpclient"
)

type mockHTTPClient struct {
	t         *testing.T
	expectURL string
	status    int
	body      string
	err       error
}

type mockResponse struct {
	body       []byte
	statusCode int
}

func (r mockResponse) Body() []byte    { return r.body }
func (r mockResponse) StatusCode() int { return r.statusCode }

func (m mockHTTPClient) Get(_ context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	if m.expectURL != "" && url != m.expectURL {
		m.t.Fatalf("expected url %q, got %q", m.expectURL, url)
	}
	if headers["User-Agent"] == "" {
		m.t.Fatalf("expected a user agent header")
	}
	if m.err != nil {
		return nil, m.err
	}
	status := m.status
	if status == 0 {
		status = 200
	}
	return mockResponse{body: []byte(m.body), statusCode: status}, nil
}

var fixedScrape = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

const couponDuniaPage = `<html><body>
<div class="offer-card-ctr">
  <div class="offer-title">Upto 60% Off on Electronics</div>
  <div class="offer-desc">Get upto 60% off on   laptops</div>
</div>
<div class="offer-card-ctr"><div class="offer-desc">card without a title</div></div>
<div class="offer-card-ctr"><div class="offer-title">Flat ₹200 off</div></div>
</body></html>`

func TestCouponDuniaFetcher(t *testing.T) {
	client := mockHTTPClient{t: t, expectURL: "https://www.coupondunia.in/amazon", body: couponDuniaPage}
	f := NewCouponDuniaFetcher(client, 50).(*couponDuniaFetcher)
	f.now = func() time.Time { return fixedScrape }

	src := Source{ID: "coupondunia", Name: "CouponDunia", Type: SourceTypeCouponDunia, BaseURL: "https://www.coupondunia.in"}
	recs, err := f.FetchStore(context.Background(), src, "amazon")
	if err != nil {
		t.Fatalf("FetchStore: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	first := recs[0]
	if first.Title != "Upto 60% Off on Electronics" || first.Description != "Get upto 60% off on laptops" {
		t.Fatalf("unexpected text %+v", first)
	}
	if first.DiscountText != "upto 60%" {
		t.Fatalf("discount text = %q", first.DiscountText)
	}
	if !strings.HasPrefix(first.Code, "CD") || len(first.Code) != 8 {
		t.Fatalf("unexpected synthetic code %q", first.Code)
	}
	if first.Source != "CouponDunia" || first.Store != "amazon" || !first.ScrapedAt.Equal(fixedScrape) {
		t.Fatalf("unexpected provenance %+v", first)
	}

	second := recs[1]
	if second.DiscountText != "₹200" || second.Description != "Flat ₹200 off" {
		t.Fatalf("title-only card = %+v", second)
	}

	again, _ := f.FetchStore(context.Background(), src, "amazon")
	if again[0].Code != first.Code {
		t.Fatalf("synthetic codes must be stable across runs")
	}
}

func TestCouponDuniaFetcherRespectsOfferLimit(t *testing.T) {
	client := mockHTTPClient{t: t, body: couponDuniaPage}
	f := NewCouponDuniaFetcher(client, 1)

	recs, err := f.FetchStore(context.Background(), Source{ID: "cd", Name: "CouponDunia", BaseURL: "https://x.example"}, "amazon")
	if err != nil {
		t.Fatalf("FetchStore: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected limit of 1, got %d", len(recs))
	}
}

const grabOnPage = `<html><body>
<div class="gc-box banko">
  <div class="bank"><span class="txt">Flat 40% OFF</span></div>
  <div class="gcbr"><p>On fashion and footwear</p></div>
  <span class="verified">Verified</span>
  <div class="usr"><span class="bold-me">1,204</span></div>
</div>
<div class="gc-box banko"><div class="gcbr"></div></div>
<div class="gc-box banko"><div class="other"><p>Free delivery on all orders</p></div></div>
</body></html>`

func TestGrabOnFetcher(t *testing.T) {
	client := mockHTTPClient{t: t, expectURL: "https://www.grabon.in/myntra-coupons", body: grabOnPage}
	f := NewGrabOnFetcher(client, 0)

	src := Source{ID: "grabon", Name: "GrabOn", Type: SourceTypeGrabOn, BaseURL: "https://www.grabon.in"}
	recs, err := f.FetchStore(context.Background(), src, "myntra")
	if err != nil {
		t.Fatalf("FetchStore: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	if recs[0].Title != "Flat 40% OFF" || recs[0].DiscountText != "Flat 40% OFF" || recs[0].Description != "On fashion and footwear" {
		t.Fatalf("unexpected first record %+v", recs[0])
	}
	if recs[0].SuccessRateText != "Verified - 1,204 uses" {
		t.Fatalf("success rate text = %q", recs[0].SuccessRateText)
	}
	if !strings.HasPrefix(recs[0].Code, "GO") {
		t.Fatalf("unexpected code %q", recs[0].Code)
	}

	if recs[1].Title != "Free delivery on all orders" || recs[1].DiscountText != "" || recs[1].SuccessRateText != "" {
		t.Fatalf("unexpected description-only record %+v", recs[1])
	}
}

const cashKaroPage = `<html><body>
<div class="coupon-card">
  <span class="code">SAVE20</span>
  <h3>20% off on shoes</h3>
  <p>Valid on orders above ₹999</p>
  <span class="discount-tag">20% OFF</span>
  <span class="expiry-date">Valid till 31 Dec 2026</span>
</div>
<div class="coupon-card"><span class="code">SALE</span><h3>Sale</h3></div>
<div class="coupon-card"><span class="code">AB</span></div>
</body></html>`

func TestCashKaroFetcher(t *testing.T) {
	client := mockHTTPClient{t: t, expectURL: "https://cashkaro.com/ajio-coupons", body: cashKaroPage}
	f := NewCashKaroFetcher(client, 50)

	src := Source{ID: "cashkaro", Name: "CashKaro", Type: SourceTypeCashKaro, BaseURL: "https://cashkaro.com"}
	recs, err := f.FetchStore(context.Background(), src, "ajio")
	if err != nil {
		t.Fatalf("FetchStore: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(recs), recs)
	}
	r := recs[0]
	if r.Code != "SAVE20" || r.Title != "20% off on shoes" || r.Description != "Valid on orders above ₹999" {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.DiscountText != "20% OFF" || r.ValidityText != "Valid till 31 Dec 2026" {
		t.Fatalf("unexpected discount/validity %+v", r)
	}
}

func TestCashKaroFetcherNoCards(t *testing.T) {
	client := mockHTTPClient{t: t, body: "<html><body><div>nothing here</div></body></html>"}
	recs, err := NewCashKaroFetcher(client, 50).FetchStore(context.Background(), Source{ID: "ck", BaseURL: "https://x.example"}, "ajio")
	if err != nil {
		t.Fatalf("FetchStore: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", recs)
	}
}

func TestFetcherErrors(t *testing.T) {
	src := Source{ID: "grabon", BaseURL: "https://www.grabon.in"}

	status := mockHTTPClient{t: t, status: 503, body: "unavailable"}
	if _, err := NewGrabOnFetcher(status, 50).FetchStore(context.Background(), src, "amazon"); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}

	transport := mockHTTPClient{t: t, err: errors.New("connection reset")}
	if _, err := NewGrabOnFetcher(transport, 50).FetchStore(context.Background(), src, "amazon"); err == nil {
		t.Fatalf("expected transport error")
	}

	if _, err := NewGrabOnFetcher(transport, 50).FetchStore(context.Background(), src, " "); err == nil {
		t.Fatalf("expected empty store error")
	}
}

func TestDefaultFetcherRegistry(t *testing.T) {
	reg := DefaultFetcherRegistry(mockHTTPClient{t: t}, 50)

	for typ, want := range map[string]string{
		SourceTypeCouponDunia: SourceTypeCouponDunia,
		SourceTypeGrabOn:      SourceTypeGrabOn,
		SourceTypeCashKaro:    SourceTypeCashKaro,
	} {
		f, err := reg.FetcherFor(Source{ID: "custom-" + typ, Type: typ})
		if err != nil {
			t.Fatalf("FetcherFor(%s): %v", typ, err)
		}
		if f.ID() != want {
			t.Fatalf("FetcherFor(%s) = %s", typ, f.ID())
		}
	}

	if _, err := reg.FetcherFor(Source{ID: "x", Type: "rss"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if _, err := reg.FetcherFor(Source{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestSyntheticCodeIsDeterministic(t *testing.T) {
	a := syntheticCode("GO", "amazon", "t", "d")
	b := syntheticCode("GO", "amazon", "t", "d")
	c := syntheticCode("GO", "flipkart", "t", "d")
	if a != b || a == c || len(a) != 8 || strings.ToUpper(a) != a {
		t.Fatalf("unexpected synthetic codes %q %q %q", a, b, c)
	}
}
