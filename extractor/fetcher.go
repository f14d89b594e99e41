package extractor

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// userAgent mimics a desktop browser. A surprising number of sites serve
// stripped-down pages, or nothing at all, to clients they do not recognize.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const maxConnsPerHost = 50

// Fetcher performs single-shot GETs with the crawl's transport policy:
// redirects are followed, certificate validation is off so expired or
// self-signed sites still yield their pages, connections are capped per
// host and DNS answers are cached. One Fetcher is shared by every crawl
// in the process.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	cache := newDNSCache(dnsCacheTTL)

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         cache.dialContext(dialer),
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		MaxConnsPerHost:     maxConnsPerHost,
		MaxIdleConnsPerHost: maxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// Fetch GETs pageURL and returns the body together with the status code.
// The body is non-nil only for a 200 response that declares an HTML or
// plain text content type. Transport failures of any kind return (nil, 0);
// they are logged at debug level and never propagated, a dead host is an
// ordinary outcome for this workload.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, int) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		f.logger.Debug("invalid request", "url", pageURL, "error", err)
		return nil, 0
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("error fetching page", "url", pageURL, "error", err)
		return nil, 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return nil, resp.StatusCode
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Debug("error reading page body", "url", pageURL, "error", err)
		return nil, 0
	}

	return body, resp.StatusCode
}
