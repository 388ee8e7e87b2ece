package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubPublisher struct {
	id    string
	typ   string
	err   error
	calls int
	keys  []string
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(_ context.Context, evt Event) error {
	s.calls++
	s.keys = append(s.keys, evt.IdentityKey)
	return s.err
}

type closingPublisher struct {
	stubPublisher
	closeErr error
	closed   int
}

func (c *closingPublisher) Close() error {
	c.closed++
	return c.closeErr
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	ok := &stubPublisher{id: "ok", typ: TypeHTTP}
	bad := &stubPublisher{id: "bad", typ: TypeHTTP, err: errors.New("failed")}
	fanout := NewFanout([]Publisher{ok, nil, bad})

	if fanout.Size() != 2 {
		t.Fatalf("nil publishers must be skipped, size = %d", fanout.Size())
	}

	count, err := fanout.Publish(context.Background(), flatCouponEvent())
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil || !strings.Contains(err.Error(), "http publisher[bad]: failed") {
		t.Fatalf("expected aggregated error naming bad publisher, got %v", err)
	}
	if strings.Contains(err.Error(), "publisher[ok]") {
		t.Fatalf("successful publisher must not appear in error: %v", err)
	}
	for _, p := range []*stubPublisher{ok, bad} {
		if p.calls != 1 || len(p.keys) != 1 || p.keys[0] != "amazon_flat500_500" {
			t.Fatalf("publisher %s saw calls=%d keys=%v", p.id, p.calls, p.keys)
		}
	}
}

func TestFanoutClosesOnlyClosers(t *testing.T) {
	plain := &stubPublisher{id: "hook", typ: TypeHTTP}
	kafka := &closingPublisher{stubPublisher: stubPublisher{id: "stream", typ: TypeKafka}}
	pubsub := &closingPublisher{
		stubPublisher: stubPublisher{id: "topic", typ: TypePubSub},
		closeErr:      errors.New("client gone"),
	}
	fanout := NewFanout([]Publisher{plain, kafka, pubsub})

	err := fanout.Close()
	if err == nil || !strings.Contains(err.Error(), "close gcp_pubsub publisher[topic]: client gone") {
		t.Fatalf("expected aggregated close error, got %v", err)
	}
	if strings.Contains(err.Error(), "stream") {
		t.Fatalf("clean close must not be reported: %v", err)
	}
	if kafka.closed != 1 || pubsub.closed != 1 {
		t.Fatalf("closers called kafka=%d pubsub=%d", kafka.closed, pubsub.closed)
	}

	var nilFanout *Fanout
	if err := nilFanout.Close(); err != nil {
		t.Fatalf("nil fanout Close: %v", err)
	}
	if err := NewFanout([]Publisher{plain, kafka}).Close(); err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	pubs, err := BuildAll(context.Background(), reg, []PublisherConfig{
		{ID: "coupon-hook", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com/coupons"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 1 || pubs[0].ID() != "coupon-hook" || pubs[0].Type() != TypeHTTP {
		t.Fatalf("unexpected publishers %+v", pubs)
	}
}
