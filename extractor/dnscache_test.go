package extractor

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDNSCacheGetSet(t *testing.T) {
	c := newDNSCache(time.Minute)

	if _, ok := c.get("example.com"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.set("example.com", []string{"93.184.216.34"})

	addrs, ok := c.get("example.com")
	if !ok || len(addrs) != 1 || addrs[0] != "93.184.216.34" {
		t.Fatalf("expected cached addrs, got %v ok=%v", addrs, ok)
	}
}

func TestDNSCacheExpiry(t *testing.T) {
	c := newDNSCache(-time.Second)

	c.set("example.com", []string{"93.184.216.34"})

	if _, ok := c.get("example.com"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestDialContextLiteralIP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	c := newDNSCache(time.Minute)
	dial := c.dialContext(&net.Dialer{Timeout: time.Second})

	conn, err := dial(context.Background(), "tcp", ts.Listener.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn.Close()

	// Literal addresses never enter the cache.
	if len(c.entries) != 0 {
		t.Fatalf("expected empty cache, got %v", c.entries)
	}
}

func TestDialContextResolvesHostname(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	_, port, err := net.SplitHostPort(ts.Listener.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := newDNSCache(time.Minute)
	dial := c.dialContext(&net.Dialer{Timeout: time.Second})

	conn, err := dial(context.Background(), "tcp", net.JoinHostPort("localhost", port))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn.Close()

	if _, ok := c.get("localhost"); !ok {
		t.Fatalf("expected localhost resolution cached")
	}
}
