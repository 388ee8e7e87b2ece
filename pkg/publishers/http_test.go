package publishers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPPublisherSendsCouponEvent(t *testing.T) {
	type received struct {
		method, key, custom, contentType string
		body                             map[string]any
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := received{
			method:      r.Method,
			key:         r.Header.Get("X-Coupon-Key"),
			custom:      r.Header.Get("X-Harvester"),
			contentType: r.Header.Get("Content-Type"),
		}
		if err := json.NewDecoder(r.Body).Decode(&rec.body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got <- rec
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pub, err := newHTTPPublisher(context.Background(), PublisherConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPPublisherConfig{
			URL:            srv.URL,
			Method:         http.MethodPost,
			Headers:        map[string]string{"X-Harvester": "coupons"},
			TimeoutSeconds: 2,
		},
	}, nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}

	if err := pub.Publish(context.Background(), flatCouponEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var rec received
	select {
	case rec = <-got:
	default:
		t.Fatalf("server did not receive request")
	}
	if rec.method != http.MethodPost {
		t.Fatalf("expected POST, got %s", rec.method)
	}
	if rec.key != "amazon_flat500_500" {
		t.Fatalf("X-Coupon-Key = %q", rec.key)
	}
	if rec.custom != "coupons" {
		t.Fatalf("configured header missing, got %q", rec.custom)
	}
	if rec.contentType != "application/json" {
		t.Fatalf("Content-Type = %q", rec.contentType)
	}
	if rec.body["run_id"] != "run-1" || rec.body["identity_key"] != "amazon_flat500_500" {
		t.Fatalf("unexpected envelope %v", rec.body)
	}
	coupon, ok := rec.body["coupon"].(map[string]any)
	if !ok || coupon["code"] != "FLAT500" {
		t.Fatalf("unexpected coupon payload %v", rec.body["coupon"])
	}
}

func TestHTTPPublisherErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	pub, err := newHTTPPublisher(context.Background(), PublisherConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPPublisherConfig{
			URL:            srv.URL,
			Method:         http.MethodPost,
			TimeoutSeconds: 1,
		},
	}, nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}

	if err := pub.Publish(context.Background(), flatCouponEvent()); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}
