package extractor

import (
	"context"
	"net"
	"sync"
	"time"
)

const dnsCacheTTL = 5 * time.Minute

type dnsCacheEntry struct {
	addrs   []string
	expires time.Time
}

// dnsCache memoizes hostname lookups for the fetcher's dialer so a crawl
// that hits the same host hundreds of times resolves it once per TTL.
// Only successful lookups are cached.
type dnsCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]dnsCacheEntry
}

func newDNSCache(ttl time.Duration) *dnsCache {
	return &dnsCache{
		ttl:     ttl,
		entries: make(map[string]dnsCacheEntry),
	}
}

func (c *dnsCache) get(host string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ent, ok := c.entries[host]
	if !ok || time.Now().After(ent.expires) {
		return nil, false
	}

	return ent.addrs, true
}

func (c *dnsCache) set(host string, addrs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[host] = dnsCacheEntry{
		addrs:   addrs,
		expires: time.Now().Add(c.ttl),
	}
}

func (c *dnsCache) lookup(ctx context.Context, host string) ([]string, error) {
	if addrs, ok := c.get(host); ok {
		return addrs, nil
	}

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}

	c.set(host, addrs)

	return addrs, nil
}

// dialContext wraps dialer with cached name resolution. Literal IPs and
// unsplittable addresses pass straight through; resolved hosts are tried
// address by address until one connects.
func (c *dnsCache) dialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return dialer.DialContext(ctx, network, addr)
		}

		if net.ParseIP(host) != nil {
			return dialer.DialContext(ctx, network, addr)
		}

		addrs, err := c.lookup(ctx, host)
		if err != nil {
			return nil, err
		}

		if len(addrs) == 0 {
			return nil, &net.DNSError{Err: "no addresses found", Name: host}
		}

		var lastErr error

		for _, resolved := range addrs {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(resolved, port))
			if err == nil {
				return conn, nil
			}

			lastErr = err
		}

		return nil, lastErr
	}
}
