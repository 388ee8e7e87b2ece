package sources

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const defaultMaxOffers = 50

// pageFetcher holds what every HTML source fetcher shares.
type pageFetcher struct {
	client    HTTPClient
	maxOffers int
	now       func() time.Time
}

func newPageFetcher(client HTTPClient, maxOffers int) pageFetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if maxOffers <= 0 {
		maxOffers = defaultMaxOffers
	}
	return pageFetcher{client: client, maxOffers: maxOffers, now: time.Now}
}

// fetchDocument GETs pageURL with the source headers and parses the HTML.
func (p pageFetcher) fetchDocument(ctx context.Context, src Source, pageURL string) (*goquery.Document, error) {
	resp, err := p.client.Get(ctx, pageURL, Headers(src))
	if err != nil {
		return nil, fmt.Errorf("fetch %s page %s: %w", src.ID, pageURL, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s page %s returned status %d body: %s", src.ID, pageURL, resp.StatusCode(), responseSnippet(body))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s page %s: %w", src.ID, pageURL, err)
	}
	return doc, nil
}

// storeURL joins base, the escaped store slug and an optional suffix.
func storeURL(base, store, suffix string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(strings.TrimSpace(store)) + suffix
}

// syntheticCode derives a stable code for offers that show none on the page.
func syntheticCode(prefix, store, title, description string) string {
	sum := sha1.Sum([]byte(store + "|" + title + "|" + description))
	return prefix + strings.ToUpper(hex.EncodeToString(sum[:])[:6])
}

// firstText returns the first non-empty text among selectors under sel.
func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if text := cleanText(sel.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
