package sources

import "strings"

// ConfigString returns the trimmed string value for key from source.Config or a fallback.
func ConfigString(src Source, key, fallback string) string {
	if src.Config != nil {
		if raw, ok := src.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigCacheControlKey   = "cache_control"

	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultAcceptLanguage = "en-US,en;q=0.9"
)

// Headers builds the request headers from a source config. User-Agent, Accept
// and Accept-Language fall back to browser-like defaults; Cache-Control is
// sent only when configured.
func Headers(src Source) map[string]string {
	headers := map[string]string{
		"User-Agent":      ConfigString(src, ConfigUserAgentKey, defaultUserAgent),
		"Accept":          ConfigString(src, ConfigAcceptKey, defaultAccept),
		"Accept-Language": ConfigString(src, ConfigAcceptLanguageKey, defaultAcceptLanguage),
	}
	if v := ConfigString(src, ConfigCacheControlKey, ""); v != "" {
		headers["Cache-Control"] = v
	}
	return headers
}
