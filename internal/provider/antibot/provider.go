// Package antibot implements the scraping JobProvider for a network that
// actively tries to detect automated access. It authenticates with a
// long-lived session cookie and wraps every request in a randomized throttle,
// a warmup referer chain, and a circuit breaker that latches on block
// signals. Whatever happens inside, Search degrades to an empty result
// instead of failing the run.
package antibot

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/provider"
)

const (
	providerName = "linkedin"

	defaultBaseURL = "https://www.linkedin.com"
	homePath       = "/"
	feedPath       = "/feed/"
	jobsIndexPath  = "/jobs/"
	jobsSearchPath = "/jobs/search/"

	sessionCookieName = "li_at"

	requestTimeout = 20 * time.Second
	maxBodyBytes   = 2 << 20
)

// blockBodySignals are body substrings that mean the session is being
// challenged rather than served.
var blockBodySignals = []string{
	"captcha",
	"security-challenge",
	"challenge",
	"unusual activity",
	"verify your account",
	"security check",
}

// blockRedirectSignals are Location substrings on a 301/302 that mean the
// session was bounced to an interstitial.
var blockRedirectSignals = []string{"authwall", "login", "challenge"}

// CookieFunc resolves the session cookie just-in-time for a session. It is
// how the encrypted credential store plugs in without this package knowing
// about decryption.
type CookieFunc func(ctx context.Context) (string, error)

// Config carries the per-credential setup for one provider instance.
type Config struct {
	Enabled bool
	BaseURL string
	Cookie  CookieFunc
	// FailureThreshold overrides the consecutive-failure trip point (3).
	FailureThreshold int
}

// Provider is one scraping session. Instances are scoped per stored
// credential; concurrent runs holding the same credential must share the
// instance so they also share its failure budget.
type Provider struct {
	baseURL    string
	cookieFn   CookieFunc
	HTTPClient *http.Client

	breaker  *Breaker
	throttle *Throttle
	stats    *provider.Stats
	logger   *zap.Logger

	userAgent  string
	warmupOnce sync.Once
}

// New builds a Provider around the given per-credential stats. The breaker
// starts ready only when the provider is enabled and a credential source is
// configured.
func New(cfg Config, stats *provider.Stats, logger *zap.Logger) *Provider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}

	initial := StateReady
	if !cfg.Enabled || cfg.Cookie == nil {
		initial = StateDisabled
	}

	return &Provider{
		baseURL:  base,
		cookieFn: cfg.Cookie,
		HTTPClient: &http.Client{
			Timeout: requestTimeout,
			// Redirects to authwall/login pages are block signals; they must
			// surface as responses instead of being followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		breaker:   NewBreaker(initial, cfg.FailureThreshold),
		throttle:  NewThrottle(),
		stats:     stats,
		logger:    logger,
		userAgent: pickUserAgent(),
	}
}

func (p *Provider) Name() string { return providerName }

// Breaker exposes the circuit breaker for operator commands.
func (p *Provider) Breaker() *Breaker { return p.breaker }

// Stats exposes the per-credential counters.
func (p *Provider) Stats() *provider.Stats { return p.stats }

// Search scrapes job cards for one query. Pre-flight unavailability
// (disabled, blocked, missing credential) and in-flight errors all degrade to
// an empty result; this provider never fails a run.
func (p *Provider) Search(ctx context.Context, query matching.Query, limit int) ([]matching.JobItem, error) {
	switch p.breaker.State() {
	case StateDisabled:
		return nil, nil
	case StateBlocked:
		p.logger.Debug("scraping session is blocked, skipping search", zap.String("query", query.Text))
		return nil, nil
	}

	cookie, err := p.cookieFn(ctx)
	if err != nil || strings.TrimSpace(cookie) == "" {
		p.logger.Warn("no scraping credential available, skipping search", zap.Error(err))
		return nil, nil
	}

	p.warmupOnce.Do(func() { p.warmup(ctx, cookie) })

	jobs, err := p.searchOnce(ctx, cookie, query, limit)
	if err != nil {
		streak := p.stats.RecordFailure(err)
		explicit := isBlockErr(err)
		p.breaker.OnFailure(streak, explicit)
		if p.breaker.State() == StateBlocked && !p.stats.IsBlocked() {
			p.stats.MarkBlocked()
			p.logger.Warn("scraping session transitioned to blocked",
				zap.Int("consecutive_failures", streak),
				zap.Bool("explicit_block", explicit),
			)
		}
		p.logger.Warn("scraping search failed, returning empty result",
			zap.String("query", query.Text),
			zap.Error(err),
		)
		return nil, nil
	}

	p.stats.RecordSuccess()
	return jobs, nil
}

// Reset manually returns a blocked session to ready and clears the streak.
func (p *Provider) Reset() {
	p.breaker.Reset()
	p.stats.Reset()
	p.logger.Info("scraping session manually reset")
}

// Test probes the jobs index page with the real session flow.
func (p *Provider) Test(ctx context.Context) provider.TestResult {
	if p.breaker.State() == StateDisabled {
		return provider.TestResult{Available: false, Message: "provider is disabled"}
	}
	if p.breaker.State() == StateBlocked {
		return provider.TestResult{Available: false, Message: "session is blocked, reset required"}
	}

	cookie, err := p.cookieFn(ctx)
	if err != nil {
		return provider.TestResult{Available: false, Message: fmt.Sprintf("credential: %v", err)}
	}

	if _, err := p.fetch(ctx, cookie, p.baseURL+jobsIndexPath, ""); err != nil {
		return provider.TestResult{Available: false, Message: err.Error()}
	}
	return provider.TestResult{Available: true, Message: "session is valid"}
}

// GetStatus reports the breaker state and counters without network calls.
func (p *Provider) GetStatus() provider.Status {
	snapshot := p.stats.Snapshot()
	state := p.breaker.State()
	msg := fmt.Sprintf("state=%s requests=%d failures=%d consecutive=%d",
		state, snapshot.Requests, snapshot.Failures, snapshot.ConsecutiveFailures)
	if snapshot.LastError != "" {
		msg += " last_error=" + snapshot.LastError
	}
	return provider.Status{Healthy: state == StateReady, Message: msg}
}

// warmup walks home → feed → jobs with human pauses and a referer chain, so
// the first search request is not the session's cold opening move. Failures
// are logged and ignored.
func (p *Provider) warmup(ctx context.Context, cookie string) {
	home := p.baseURL + homePath
	feed := p.baseURL + feedPath
	jobs := p.baseURL + jobsIndexPath

	if _, err := p.fetch(ctx, cookie, home, ""); err != nil {
		p.logger.Debug("warmup home fetch failed", zap.Error(err))
		return
	}
	if err := p.throttle.randomPause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return
	}

	if _, err := p.fetch(ctx, cookie, feed, home); err != nil {
		p.logger.Debug("warmup feed fetch failed", zap.Error(err))
		return
	}
	if err := p.throttle.randomPause(ctx, 1500*time.Millisecond, 3*time.Second); err != nil {
		return
	}

	if _, err := p.fetch(ctx, cookie, jobs, feed); err != nil {
		p.logger.Debug("warmup jobs fetch failed", zap.Error(err))
		return
	}

	p.logger.Debug("warmup sequence completed")
}

func (p *Provider) searchOnce(ctx context.Context, cookie string, query matching.Query, limit int) ([]matching.JobItem, error) {
	params := url.Values{}
	params.Set("keywords", query.Text)
	if query.Location != "" {
		params.Set("location", query.Location)
	}

	searchURL := p.baseURL + jobsSearchPath + "?" + params.Encode()
	body, err := p.fetch(ctx, cookie, searchURL, p.baseURL+jobsIndexPath)
	if err != nil {
		return nil, err
	}

	jobs, err := parseJobCards(body, p.baseURL)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	p.logger.Debug("scraping search finished",
		zap.String("query", query.Text),
		zap.Int("jobs", len(jobs)),
	)

	return jobs, nil
}

// fetch performs one throttled, stealth-headed GET and classifies the
// response for block signals before returning the body.
func (p *Provider) fetch(ctx context.Context, cookie, rawURL, referer string) (string, error) {
	if err := p.throttle.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	applyStealthHeaders(req, p.userAgent, referer)
	req.Header.Set("Cookie", fmt.Sprintf("%s=%s", sessionCookieName, cookie))

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	if err := classifyBlock(resp, body); err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	return body, nil
}

func readBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// classifyBlock decides whether a response is a bot-detection block rather
// than an ordinary failure.
func classifyBlock(resp *http.Response, body string) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: rate limited (429)", ErrBlocked)
	}

	if resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound {
		location := strings.ToLower(resp.Header.Get("Location"))
		for _, signal := range blockRedirectSignals {
			if strings.Contains(location, signal) {
				return fmt.Errorf("%w: redirected to %s", ErrBlocked, location)
			}
		}
	}

	lower := strings.ToLower(body)
	for _, signal := range blockBodySignals {
		if strings.Contains(lower, signal) {
			return fmt.Errorf("%w: body contains %q", ErrBlocked, signal)
		}
	}

	return nil
}

func isBlockErr(err error) bool {
	return errors.Is(err, ErrBlocked)
}
