// Package fetcher performs all outbound HTTP on behalf of proxy callers.
// Every fetch is gated by the safeurl validator before any network I/O.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/imageproxy-service/internal/proxyerr"
	"github.com/user/imageproxy-service/internal/safeurl"
)

const (
	defaultUserAgent = "imageproxy-service/1.0 (+https://github.com/user/imageproxy-service)"
	defaultAccept    = "image/*,*/*;q=0.8"

	// Responses smaller than this that also lack an image/* content type
	// are treated as upstream garbage rather than relayed.
	minPlausibleImageBytes = 100
)

// Resource is the outcome of one successful upstream fetch.
type Resource struct {
	Status      int
	ContentType string
	Body        []byte
}

// Overrides let a caller adjust request headers for hosts that reject
// default client identification (hotlink protection, bot filters).
type Overrides struct {
	UserAgent string
	Referer   string
	Accept    string
}

// Options configures a Fetcher.
type Options struct {
	Timeout      time.Duration // per-request upstream timeout
	MaxRetries   int           // additional attempts for retriable image fetch failures
	RetryBase    time.Duration // initial backoff delay, doubled per attempt
	MaxBodyBytes int64         // upstream body size cap
	OnRetry      func()        // invoked once per retried image fetch attempt

	// Transport overrides the outbound round tripper, mainly for tests.
	Transport http.RoundTripper
}

// Fetcher issues validated upstream requests. The zero value is not usable;
// construct with New.
type Fetcher struct {
	opts Options
	// noRedirect observes 3xx responses directly instead of following them.
	noRedirect *http.Client
	// following follows redirects (stdlib 10-hop cap) for image relays.
	following *http.Client
	logger    *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 * 1024 * 1024
	}
	return &Fetcher{
		opts: opts,
		noRedirect: &http.Client{
			Transport: opts.Transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		following: &http.Client{Transport: opts.Transport},
		logger:    logger,
	}
}

// FetchExternal performs the generic passthrough fetch: manual redirect
// handling, at most one followed hop, each hop re-validated. The ordering
// here is load-bearing: validate, fetch, inspect, and only then follow.
func (f *Fetcher) FetchExternal(ctx context.Context, rawURL string) (*Resource, error) {
	if safeurl.IsBlocked(rawURL) {
		return nil, proxyerr.New(proxyerr.KindForbiddenTarget, "target not allowed: %s", rawURL)
	}

	resp, err := f.get(ctx, f.noRedirect, rawURL, Overrides{})
	if err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindBadUpstream, err, "fetch failed")
	}

	if isRedirect(resp.StatusCode) {
		location := resp.Header.Get("Location")
		drain(resp)
		if location == "" {
			return nil, proxyerr.New(proxyerr.KindBadUpstream, "redirect without Location header")
		}
		target, err := resolveRedirect(rawURL, location)
		if err != nil {
			return nil, proxyerr.Wrap(proxyerr.KindBadUpstream, err, "unresolvable redirect target")
		}
		// Re-validate: an allowed URL may 302 into the private network.
		if safeurl.IsBlocked(target) {
			return nil, proxyerr.New(proxyerr.KindForbiddenTarget, "redirect target not allowed: %s", target)
		}
		f.logger.Debug("following redirect", zap.String("from", rawURL), zap.String("to", target))

		resp, err = f.get(ctx, f.noRedirect, target, Overrides{})
		if err != nil {
			return nil, proxyerr.Wrap(proxyerr.KindBadUpstream, err, "redirect fetch failed")
		}
		if isRedirect(resp.StatusCode) {
			drain(resp)
			return nil, proxyerr.New(proxyerr.KindTooManyRedirects, "redirect chain exceeds one hop")
		}
	}

	return f.readResource(resp)
}

// FetchImage relays a single image with header overrides, following
// redirects automatically and retrying retriable upstream failures with
// exponential backoff.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string, ov Overrides) (*Resource, error) {
	if safeurl.IsBlocked(rawURL) {
		return nil, proxyerr.New(proxyerr.KindForbiddenTarget, "target not allowed: %s", rawURL)
	}

	applyImageDefaults(&ov, rawURL)

	var lastErr error
	delay := f.opts.RetryBase
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, proxyerr.Wrap(proxyerr.KindRetriesExhausted, err, "cancelled during backoff")
			}
			delay *= 2
			if f.opts.OnRetry != nil {
				f.opts.OnRetry()
			}
			f.logger.Debug("retrying image fetch", zap.String("url", rawURL), zap.Int("attempt", attempt))
		}

		resp, err := f.get(ctx, f.following, rawURL, ov)
		if err != nil {
			lastErr = err // transport errors are retriable
			continue
		}

		if retriableStatus(resp.StatusCode) {
			drain(resp)
			lastErr = proxyerr.New(proxyerr.KindBadUpstream, "upstream returned %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			drain(resp)
			return nil, &proxyerr.Error{
				Kind:           proxyerr.KindBadUpstream,
				Message:        "upstream error",
				UpstreamStatus: resp.StatusCode,
			}
		}

		res, err := f.readResource(resp)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(res.ContentType, "image/") && len(res.Body) < minPlausibleImageBytes {
			return nil, proxyerr.New(proxyerr.KindInvalidPayload,
				"implausible payload: %s, %d bytes", res.ContentType, len(res.Body))
		}
		return res, nil
	}

	return nil, proxyerr.Wrap(proxyerr.KindRetriesExhausted, lastErr,
		"upstream failed after %d attempts", f.opts.MaxRetries+1)
}

func (f *Fetcher) get(ctx context.Context, client *http.Client, rawURL string, ov Overrides) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	if ov.UserAgent != "" {
		req.Header.Set("User-Agent", ov.UserAgent)
	}
	if ov.Referer != "" {
		req.Header.Set("Referer", ov.Referer)
	}
	if ov.Accept != "" {
		req.Header.Set("Accept", ov.Accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	// Hand the cancel to the body so the timeout covers the read.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (f *Fetcher) readResource(resp *http.Response) (*Resource, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &proxyerr.Error{
			Kind:           proxyerr.KindBadUpstream,
			Message:        "upstream error",
			UpstreamStatus: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindBadUpstream, err, "reading upstream body")
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Resource{Status: resp.StatusCode, ContentType: ct, Body: body}, nil
}

func applyImageDefaults(ov *Overrides, rawURL string) {
	if ov.UserAgent == "" {
		ov.UserAgent = defaultUserAgent
	}
	if ov.Accept == "" {
		ov.Accept = defaultAccept
	}
	if ov.Referer == "" {
		// Many CDNs require a same-origin referer for hotlinked images.
		if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
			ov.Referer = u.Scheme + "://" + u.Host + "/"
		}
	}
}

func resolveRedirect(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	locURL, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(locURL).String(), nil
}

func isRedirect(code int) bool { return code >= 300 && code <= 399 }

func retriableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
