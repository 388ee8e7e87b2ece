package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/logger"
)

// NewRouter builds the HTTP router for the harvester.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))

	r.Get("/", h.Index)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Get("/coupons/{key}", h.Coupon)
	r.Route("/scrape", func(r chi.Router) {
		r.Post("/trigger", h.TriggerScrape)
	})

	return r
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.DebugObj("http request", "http_request", map[string]any{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"elapsed_ms": time.Since(start).Milliseconds(),
				"request_id": middleware.GetReqID(r.Context()),
			})
		})
	}
}
