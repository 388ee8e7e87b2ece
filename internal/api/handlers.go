package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/logger"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/runlock"
	"github.com/samvad-hq/samvad-coupon-harvester/internal/storage"
)

// AuthHeader carries the webhook secret on trigger requests.
const AuthHeader = "X-Auth-Token"

// Trigger starts a pipeline run in the background. It returns
// runlock.ErrRunInProgress when a run is already active.
type Trigger interface {
	TriggerRun(ctx context.Context) error
}

// StatsReader is the read side of the store served over HTTP.
type StatsReader interface {
	Summary(ctx context.Context) (storage.Summary, error)
	Get(ctx context.Context, identityKey string) (storage.StoredCoupon, bool, error)
}

// Handler serves the trigger, health and stats endpoints.
type Handler struct {
	name    string
	trigger Trigger
	store   StatsReader
	secret  string
	log     logger.Logger
	now     func() time.Time
}

// NewHandler builds a Handler. An empty secret disables trigger auth.
func NewHandler(name string, trigger Trigger, store StatsReader, secret string, log logger.Logger) *Handler {
	return &Handler{
		name:    name,
		trigger: trigger,
		store:   store,
		secret:  secret,
		log:     logger.OrNop(log),
		now:     time.Now,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Index describes the service and its endpoints.
func (h *Handler) Index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": h.name,
		"endpoints": map[string]string{
			"health":  "GET /health",
			"trigger": "POST /scrape/trigger",
			"stats":   "GET /stats",
			"coupon":  "GET /coupons/{key}",
		},
	})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   h.now().UTC(),
	})
}

// TriggerScrape accepts a run request and answers before the run finishes.
func (h *Handler) TriggerScrape(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.log.WarnObj("unauthorized trigger attempt", "trigger_auth", map[string]any{
			"remote_addr": r.RemoteAddr,
		})
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	err := h.trigger.TriggerRun(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, runlock.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run already in progress")
	case err != nil:
		h.log.ErrorObj("trigger failed", "trigger_error", err.Error())
		writeError(w, http.StatusInternalServerError, "trigger failed")
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "accepted",
			"message": "scraping started in background",
		})
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	sum, err := h.store.Summary(r.Context())
	if err != nil {
		h.log.ErrorObj("stats query failed", "stats_error", err.Error())
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Coupon returns one stored coupon by identity key.
func (h *Handler) Coupon(w http.ResponseWriter, r *http.Request) {
	key := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "key")))
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing key")
		return
	}
	c, ok, err := h.store.Get(r.Context(), key)
	if err != nil {
		h.log.ErrorObj("coupon lookup failed", "coupon_error", err.Error())
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "coupon not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := r.Header.Get(AuthHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
