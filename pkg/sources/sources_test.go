package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSourcesFile(t *testing.T, name, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	return file
}

func TestLoadSourcesYAML(t *testing.T) {
	file := writeSourcesFile(t, "sources.yaml", `
sources:
  - id: grabon
    name: GrabOn
    type: GrabOn
    base_url: https://www.grabon.in/
    request_delay_ms: 750
    config:
      user_agent: coupon-bot/1.0
  - id: cashkaro
    name: CashKaro
    type: cashkaro
    base_url: https://cashkaro.com
    disabled: true
`)

	if err := LoadSources(file); err != nil {
		t.Fatalf("LoadSources returned error: %v", err)
	}

	enabled := Sources()
	if len(enabled) != 1 || enabled[0].ID != "grabon" {
		t.Fatalf("expected only grabon enabled, got %+v", enabled)
	}

	s, ok := SourceByID("grabon")
	if !ok {
		t.Fatalf("expected source id grabon to be loaded")
	}
	if s.Type != SourceTypeGrabOn || s.BaseURL != "https://www.grabon.in" {
		t.Fatalf("unexpected sanitized source %+v", s)
	}
	if s.RequestDelay() != 750*time.Millisecond {
		t.Fatalf("unexpected request delay: %v", s.RequestDelay())
	}
	if Headers(s)["User-Agent"] != "coupon-bot/1.0" {
		t.Fatalf("expected configured user agent")
	}

	if _, ok := SourceByID("cashkaro"); !ok {
		t.Fatalf("disabled sources remain addressable by id")
	}
	if cfg, _ := SourceByID("cashkaro"); cfg.RequestDelay() != 2*time.Second {
		t.Fatalf("expected default delay, got %v", cfg.RequestDelay())
	}
}

func TestLoadSourcesJSON(t *testing.T) {
	file := writeSourcesFile(t, "sources.json", `{"sources":[{"id":"cd","name":"CouponDunia","type":"coupondunia","base_url":"https://www.coupondunia.in","max_offers":10}]}`)

	if err := LoadSources(file); err != nil {
		t.Fatalf("LoadSources returned error: %v", err)
	}
	s, ok := SourceByID("cd")
	if !ok || s.OfferLimit(50) != 10 {
		t.Fatalf("unexpected source %+v", s)
	}
}

func TestLoadSourcesRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"duplicate id": `
sources:
  - {id: dup, name: One, type: grabon, base_url: https://a.example}
  - {id: dup, name: Two, type: grabon, base_url: https://b.example}
`,
		"unknown type": `
sources:
  - {id: x, name: X, type: rss, base_url: https://x.example}
`,
		"bad url": `
sources:
  - {id: x, name: X, type: grabon, base_url: not-a-url}
`,
		"empty": "sources: []\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if err := LoadSources(writeSourcesFile(t, "sources.yaml", content)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestHeadersDefaults(t *testing.T) {
	h := Headers(Source{})
	if h["User-Agent"] == "" || h["Accept"] == "" || h["Accept-Language"] == "" {
		t.Fatalf("expected default headers, got %v", h)
	}
	if _, ok := h["Cache-Control"]; ok {
		t.Fatalf("cache-control should be omitted when unset")
	}
}
