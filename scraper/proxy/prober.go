package proxy

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/models"
	"github.com/Ruscigno/astroscraper/pkg/scrapeerr"
)

// DefaultEchoURL is the always-available endpoint used for the lightweight
// connectivity pre-check. A relay that cannot reach it cannot reach the
// target either, so the retry budget is never spent on it.
const DefaultEchoURL = "https://httpbin.org/ip"

// Strategy is one header profile tried against the real target. Sites vary
// behavior by client fingerprint, so the prober cycles several.
type Strategy struct {
	Name    string
	Headers map[string]string
}

// DefaultStrategies returns the fixed ordered profile list.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name: "minimal-headers",
			Headers: map[string]string{
				"User-Agent":       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
				"X-Requested-With": "XMLHttpRequest",
			},
		},
		{
			Name: "browser-like",
			Headers: map[string]string{
				"Accept":           "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
				"Accept-Language":  "en-US,en;q=0.9",
				"User-Agent":       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
				"Referer":          "https://www.google.com/",
				"X-Requested-With": "XMLHttpRequest",
			},
		},
		{
			Name: "old-user-agent",
			Headers: map[string]string{
				"Accept":           "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
				"User-Agent":       "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:91.0) Gecko/20100101 Firefox/91.0",
				"X-Requested-With": "XMLHttpRequest",
			},
		},
	}
}

// Prober exercises every directory entry against the echo endpoint and then
// the real target, confirming the first entry that returns a valid listings
// page. Probing stops at the first success; this is deliberate first-
// success-wins, not fastest-of-all.
type Prober struct {
	dir        *Directory
	session    *Session
	client     *http.Client
	strategies []Strategy
	echoURL    string
	pause      time.Duration
	logger     *zap.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithEchoURL overrides the connectivity pre-check endpoint.
func WithEchoURL(u string) ProberOption {
	return func(p *Prober) { p.echoURL = u }
}

// WithStrategyPause overrides the delay between header-profile attempts.
func WithStrategyPause(d time.Duration) ProberOption {
	return func(p *Prober) { p.pause = d }
}

// WithProbeClient overrides the HTTP client.
func WithProbeClient(c *http.Client) ProberOption {
	return func(p *Prober) { p.client = c }
}

// NewProber wires a prober to the catalog and the session state it confirms
// selections into.
func NewProber(dir *Directory, session *Session, logger *zap.Logger, opts ...ProberOption) *Prober {
	p := &Prober{
		dir:        dir,
		session:    session,
		client:     &http.Client{Timeout: 20 * time.Second},
		strategies: DefaultStrategies(),
		echoURL:    DefaultEchoURL,
		pause:      time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProbeAll walks the catalog in order, returning a per-entry outcome list.
// The first entry yielding valid target content is confirmed into the
// session and probing stops.
func (p *Prober) ProbeAll(ctx context.Context, targetURL string) ([]models.ProbeResult, error) {
	results := make([]models.ProbeResult, 0, p.dir.Len())

	for _, desc := range p.dir.All() {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		p.logger.Info("probing relay",
			zap.Int("index", desc.Index),
			zap.String("template", desc.Template),
			zap.Stringer("family", desc.Family))

		// The direct entry skips the connectivity pre-check; there is no
		// relay to verify.
		if !desc.Direct() {
			if err := p.connectivityCheck(ctx, desc); err != nil {
				p.logger.Warn("relay failed connectivity check",
					zap.Int("index", desc.Index), zap.Error(err))
				results = append(results, models.ProbeResult{
					Index:  desc.Index,
					Proxy:  desc.Template,
					Status: models.ProbeFailed,
					Error:  err.Error(),
				})
				continue
			}
		}

		result, confirmed := p.probeTarget(ctx, desc, targetURL)
		results = append(results, result)
		if confirmed {
			p.logger.Info("confirmed working relay",
				zap.Int("index", desc.Index),
				zap.String("strategy", result.Strategy),
				zap.Duration("latency", result.ResponseTime))
			return results, nil
		}
	}

	return results, nil
}

func (p *Prober) connectivityCheck(ctx context.Context, desc Descriptor) error {
	probeURL := desc.BuildURL(p.echoURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return scrapeerr.Network("building connectivity probe request", err)
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := p.client.Do(req)
	if err != nil {
		return scrapeerr.Network("connectivity probe failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return scrapeerr.HTTP(resp.StatusCode, "connectivity probe rejected")
	}
	return nil
}

// probeTarget tries each header strategy once against the real target.
// Returns the per-entry result and whether the entry was confirmed.
func (p *Prober) probeTarget(ctx context.Context, desc Descriptor, targetURL string) (models.ProbeResult, bool) {
	proxyURL := desc.BuildURL(targetURL)
	var lastErr string

	for i, strategy := range p.strategies {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		body, status, err := p.request(ctx, proxyURL, strategy.Headers)
		latency := time.Since(start)

		switch {
		case err != nil:
			lastErr = err.Error()
			p.logger.Warn("strategy failed",
				zap.Int("index", desc.Index),
				zap.String("strategy", strategy.Name),
				zap.Error(err))
		case status == http.StatusForbidden:
			lastErr = "403 Forbidden"
			if scrapeerr.BodyLooksLikeBotWall(body) {
				p.logger.Warn("bot-wall challenge detected",
					zap.Int("index", desc.Index),
					zap.String("strategy", strategy.Name))
			} else {
				p.logger.Warn("relay returned 403",
					zap.Int("index", desc.Index),
					zap.String("strategy", strategy.Name))
			}
		case status < 200 || status > 299:
			lastErr = http.StatusText(status)
			p.logger.Warn("strategy rejected",
				zap.Int("index", desc.Index),
				zap.String("strategy", strategy.Name),
				zap.Int("status", status))
		default:
			content := desc.Family.Unwrap(body)
			if IsValidListingPage(content) {
				p.session.Confirm(models.ProxySelection{
					Index:       desc.Index,
					Proxy:       desc.Template,
					Latency:     latency,
					ConfirmedAt: time.Now(),
				})
				return models.ProbeResult{
					Index:         desc.Index,
					Proxy:         desc.Template,
					Strategy:      strategy.Name,
					Status:        models.ProbeSuccess,
					ResponseTime:  latency,
					ContentLength: len(content),
					Valid:         true,
				}, true
			}
			lastErr = "content failed validation"
			p.logger.Warn("content failed validation",
				zap.Int("index", desc.Index),
				zap.String("strategy", strategy.Name),
				zap.Int("length", len(content)))
		}

		if i < len(p.strategies)-1 && p.pause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.pause):
			}
		}
	}

	return models.ProbeResult{
		Index:  desc.Index,
		Proxy:  desc.Template,
		Status: models.ProbeAllStrategiesFailed,
		Error:  lastErr,
	}, false
}

func (p *Prober) request(ctx context.Context, rawURL string, headers map[string]string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, scrapeerr.Network("building probe request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, scrapeerr.Network("probe request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, scrapeerr.Network("reading probe response", err)
	}
	return string(body), resp.StatusCode, nil
}

// BestProxy picks the lowest-latency valid success from a probe run. With
// the stop-early policy at most one success exists, but callers that relax
// the stopping rule can still choose the fastest.
func BestProxy(results []models.ProbeResult) *models.ProbeResult {
	var best *models.ProbeResult
	for i := range results {
		r := &results[i]
		if r.Status != models.ProbeSuccess || !r.Valid {
			continue
		}
		if best == nil || r.ResponseTime < best.ResponseTime {
			best = r
		}
	}
	return best
}
