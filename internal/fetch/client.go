// Package fetch provides the outbound HTTP client for discovery and
// enrichment: per-host token-bucket rate limiting, a browser-like header set,
// bounded redirects, anti-bot block detection, and the transient/permanent
// status mapping consumed by the retry layer.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/agscout/agscout/internal/resilience"
)

const (
	maxRedirects = 5
	maxBodyBytes = 512 * 1024
)

// browserHeaders mimics a real browser. These pages are public; we simply
// avoid the trivial UA-string rejections that default Go clients hit.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Cache-Control":   "no-cache",
}

// Options configures the Client.
type Options struct {
	Timeout     time.Duration // per-request timeout, default 30s
	HostRate    rate.Limit    // sustained requests/sec per host, default 1
	HostBurst   int           // token bucket burst per host, default 2
	Blocklist   []string      // host suffixes skipped without a network call
	UserAgent   string        // overrides the default browser UA when set
	MaxBodySize int64         // response body cap, default 512KB
}

// Page is one fetched document.
type Page struct {
	URL        string
	FinalURL   string
	HTML       string
	StatusCode int
}

// Client fetches public pages politely. Safe for concurrent use.
type Client struct {
	http      *http.Client
	opts      Options
	blocklist *Blocklist

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a Client with the given options.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HostRate <= 0 {
		opts.HostRate = 1
	}
	if opts.HostBurst <= 0 {
		opts.HostBurst = 2
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = maxBodyBytes
	}

	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return eris.Errorf("fetch: stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		opts:      opts,
		blocklist: NewBlocklist(opts.Blocklist),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Blocklist exposes the client's domain blocklist.
func (c *Client) Blocklist() *Blocklist { return c.blocklist }

// limiterFor returns the token bucket for a host, creating it on first use.
func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(c.opts.HostRate, c.opts.HostBurst)
		c.limiters[host] = lim
	}
	return lim
}

// Get fetches a URL. Blocklisted hosts, 403/404-class statuses, and detected
// anti-bot walls come back as PermanentError; 408/429/5xx and network-level
// failures as TransientError, so resilience.Do retries only what can succeed.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, resilience.NewPermanentError(eris.Errorf("fetch: invalid url %q", rawURL), 0, "invalid_url")
	}

	if c.blocklist.Matches(u.Host) {
		return nil, resilience.NewPermanentError(eris.Errorf("fetch: host %s is blocklisted", u.Host), 0, "blocklisted")
	}

	if err := c.limiterFor(u.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if strings.Contains(err.Error(), "no such host") {
			return nil, resilience.NewPermanentError(eris.Wrap(err, "fetch: dns"), 0, "dns_failure")
		}
		return nil, resilience.NewTransientError(eris.Wrap(err, "fetch: request"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodySize))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "fetch: read body"), resp.StatusCode)
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, resilience.NewPermanentError(
			eris.Errorf("fetch: blocked by %s (%s)", u.Host, blockType),
			resp.StatusCode, string(blockType),
		)
	}

	switch {
	case resilience.IsPermanentHTTPStatus(resp.StatusCode):
		return nil, resilience.NewPermanentError(
			eris.Errorf("fetch: %s returned %d", u.Host, resp.StatusCode),
			resp.StatusCode, "http_status",
		)
	case resp.StatusCode >= 300:
		return nil, resilience.NewTransientError(
			eris.Errorf("fetch: %s returned %d", u.Host, resp.StatusCode),
			resp.StatusCode,
		)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		HTML:       string(body),
		StatusCode: resp.StatusCode,
	}, nil
}

// Head issues a HEAD request, used for LinkedIn slug verification. Falls back
// to GET when the server rejects HEAD outright.
func (c *Client) Head(ctx context.Context, rawURL string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0, eris.Errorf("fetch: invalid url %q", rawURL)
	}
	if err := c.limiterFor(u.Host).Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: create request")
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: head")
	}
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		page, getErr := c.Get(ctx, rawURL)
		if getErr != nil {
			return 0, getErr
		}
		return page.StatusCode, nil
	}

	return resp.StatusCode, nil
}
