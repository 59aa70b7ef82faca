// Package fetcher returns validated listings-page content by trying, in
// order: the content cache, a direct connection, the session's confirmed
// relay, and finally a bounded sweep over the relay catalog.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Ruscigno/astroscraper/models"
	"github.com/Ruscigno/astroscraper/pkg/retry"
	"github.com/Ruscigno/astroscraper/pkg/scrapeerr"
	"github.com/Ruscigno/astroscraper/scraper/cache"
	"github.com/Ruscigno/astroscraper/scraper/proxy"
)

// DefaultBaseURL is the paginated listings endpoint.
const DefaultBaseURL = "https://www.astrobuysell.com/uk/propview.php"

const (
	defaultMaxRetries      = 3
	defaultProxyRetryPause = 2 * time.Second
	defaultBackoffUnit     = time.Second
)

// Fetcher resolves one logical page request into validated page content.
type Fetcher struct {
	dir     *proxy.Directory
	cache   *cache.Cache
	session *proxy.Session
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	baseURL         string
	maxRetries      int
	proxyRetryPause time.Duration
	backoffUnit     time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBaseURL overrides the listings endpoint.
func WithBaseURL(u string) Option {
	return func(f *Fetcher) { f.baseURL = u }
}

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithMaxRetries overrides the per-relay attempt budget of the fallback sweep.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) { f.maxRetries = n }
}

// WithPauses overrides the confirmed-relay retry pause and the linear
// backoff unit of the fallback sweep. Tests run these at zero.
func WithPauses(proxyRetry, backoffUnit time.Duration) Option {
	return func(f *Fetcher) {
		f.proxyRetryPause = proxyRetry
		f.backoffUnit = backoffUnit
	}
}

// WithRateLimit caps outbound requests per second across all strategies.
func WithRateLimit(rps float64) Option {
	return func(f *Fetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// New wires a fetcher to the relay catalog, the page cache, and the shared
// session state.
func New(dir *proxy.Directory, pageCache *cache.Cache, session *proxy.Session, logger *zap.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:             dir,
		cache:           pageCache,
		session:         session,
		client:          &http.Client{Timeout: 30 * time.Second},
		logger:          logger,
		baseURL:         DefaultBaseURL,
		maxRetries:      defaultMaxRetries,
		proxyRetryPause: defaultProxyRetryPause,
		backoffUnit:     defaultBackoffUnit,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BuildPageURL constructs the URL for a numbered page. Price range and sort
// order are held constant; only the page cursor varies.
func (f *Fetcher) BuildPageURL(pageNumber int) string {
	params := url.Values{}
	params.Set("minprice", "0")
	params.Set("maxprice", "1000000000000000")
	params.Set("cur_page", fmt.Sprintf("%d", pageNumber))
	params.Set("sort", "id DESC")
	return f.baseURL + "?" + params.Encode()
}

// FetchPage fetches a numbered listings page.
func (f *Fetcher) FetchPage(ctx context.Context, pageNumber int) (string, error) {
	return f.fetch(ctx, f.BuildPageURL(pageNumber), cache.PageKey(pageNumber), fmt.Sprintf("page %d", pageNumber))
}

// FetchURL fetches an arbitrary absolute URL through the same strategy
// cascade, cached under a bounded URL-derived key.
func (f *Fetcher) FetchURL(ctx context.Context, rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "http") {
		return "", scrapeerr.Network("not an absolute URL: "+rawURL, nil)
	}
	return f.fetch(ctx, rawURL, cache.URLKey(rawURL), rawURL)
}

// fetch runs the ordered strategy cascade. Each strategy is tried in full
// before the next; FetchExhausted is returned only once everything failed.
func (f *Fetcher) fetch(ctx context.Context, target, cacheKey, identifier string) (string, error) {
	if body, ok := f.cache.Get(cacheKey); ok {
		f.logger.Debug("cache hit", zap.String("id", identifier))
		return body, nil
	}

	var lastErr error

	// Direct connection, one attempt. A 2xx wins without content
	// validation; anything else falls through to the relays.
	body, err := f.fetchDirect(ctx, target)
	if err == nil {
		f.cache.Put(cacheKey, body)
		return body, nil
	}
	lastErr = err
	f.logger.Debug("direct fetch failed", zap.String("id", identifier), zap.Error(err))

	// Confirmed relay, bounded retries with a fixed pause. A success
	// status with invalid content counts as a retryable failure.
	current := f.session.Current()
	if current != nil {
		body, err = f.fetchViaConfirmed(ctx, *current, target, identifier)
		if err == nil {
			f.cache.Put(cacheKey, body)
			return body, nil
		}
		lastErr = err
		f.logger.Warn("confirmed relay exhausted, sweeping fallbacks",
			zap.String("id", identifier),
			zap.Int("relay", current.Index),
			zap.Error(err))
	}

	body, err = f.fallbackSweep(ctx, current, target, identifier)
	if err == nil {
		f.cache.Put(cacheKey, body)
		return body, nil
	}
	if err != nil {
		lastErr = err
	}

	return "", scrapeerr.Exhausted("failed to fetch "+identifier+" after all strategies", lastErr)
}

func (f *Fetcher) fetchDirect(ctx context.Context, target string) (string, error) {
	body, status, err := f.request(ctx, target, nil)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", scrapeerr.HTTP(status, "direct fetch rejected")
	}
	return body, nil
}

func (f *Fetcher) fetchViaConfirmed(ctx context.Context, sel models.ProxySelection, target, identifier string) (string, error) {
	desc, ok := f.dir.Get(sel.Index)
	if !ok {
		return "", scrapeerr.Network(fmt.Sprintf("confirmed relay index %d out of range", sel.Index), nil)
	}

	var body string
	cfg := retry.FixedDelay(f.maxRetries, f.proxyRetryPause)
	cfg.Logger = f.logger
	err := retry.Do(ctx, cfg, func(attempt int) error {
		f.logger.Debug("fetching via confirmed relay",
			zap.String("id", identifier),
			zap.Int("relay", desc.Index),
			zap.Int("attempt", attempt))
		content, err := f.fetchViaRelay(ctx, desc, target)
		if err != nil {
			return err
		}
		body = content
		return nil
	})
	return body, err
}

// fallbackSweep walks a bounded catalog prefix, skipping the relay already
// spent above, each with linearly growing backoff between attempts.
func (f *Fetcher) fallbackSweep(ctx context.Context, current *models.ProxySelection, target, identifier string) (string, error) {
	skip := -1
	if current != nil {
		skip = current.Index
	}

	var lastErr error
	for _, idx := range f.dir.FallbackIndices(current != nil) {
		if idx == skip {
			continue
		}
		desc, ok := f.dir.Get(idx)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var body string
		cfg := retry.LinearBackoff(f.maxRetries, f.backoffUnit)
		err := retry.Do(ctx, cfg, func(attempt int) error {
			f.logger.Debug("trying fallback relay",
				zap.String("id", identifier),
				zap.Int("relay", idx),
				zap.Int("attempt", attempt))
			content, err := f.fetchViaRelay(ctx, desc, target)
			if err != nil {
				return err
			}
			body = content
			return nil
		})
		if err == nil {
			f.logger.Info("fallback relay succeeded",
				zap.String("id", identifier), zap.Int("relay", idx))
			return body, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = scrapeerr.Network("no fallback relays available", nil)
	}
	return "", lastErr
}

// fetchViaRelay performs one relayed request: build the relayed URL, issue
// it with the browser header profile, unwrap per family, validate.
func (f *Fetcher) fetchViaRelay(ctx context.Context, desc proxy.Descriptor, target string) (string, error) {
	relayURL := desc.BuildURL(target)
	body, status, err := f.request(ctx, relayURL, fetchHeaders)
	if err != nil {
		return "", err
	}
	if status == http.StatusForbidden {
		// Informative: likely bot interdiction, captured for the final
		// error but still just a failed attempt.
		snippet := body
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return "", scrapeerr.HTTP(status, "relay returned 403 Forbidden: "+snippet)
	}
	if status < 200 || status > 299 {
		return "", scrapeerr.HTTP(status, "relay rejected request")
	}

	content := desc.Family.Unwrap(body)
	if !proxy.IsValidListingPage(content) {
		return "", scrapeerr.ContentInvalid(fmt.Sprintf("body length %d failed listings validation", len(content)))
	}
	return content, nil
}

var fetchHeaders = map[string]string{
	"Accept":           "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language":  "en-US,en;q=0.9",
	"User-Agent":       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Referer":          "https://www.astrobuysell.com/",
	"X-Requested-With": "XMLHttpRequest",
}

func (f *Fetcher) request(ctx context.Context, rawURL string, headers map[string]string) (string, int, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, scrapeerr.Network("building request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, scrapeerr.Network("request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, scrapeerr.Network("reading response body", err)
	}
	return string(body), resp.StatusCode, nil
}
