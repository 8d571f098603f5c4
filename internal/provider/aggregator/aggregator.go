// Package aggregator implements the JobProvider contract on top of a
// conventional paginated keyword/location search API.
package aggregator

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/provider"
)

const (
	providerName = "aggregator"

	// Max value the API accepts for page size.
	perPage = 50
	// Hard page cap per query, independent of the caller's limit.
	maxPages = 3

	defaultTimeout = 15 * time.Second
	// Politeness delay between paginated calls for one query.
	pageDelay = 500 * time.Millisecond

	defaultUserAgent = "pmip-jobmatch/1.0"
)

// Provider queries the aggregator search API.
type Provider struct {
	APIURL     string
	HTTPClient *http.Client
	UserAgent  string

	apiKey string
	logger *zap.Logger
}

// New builds a Provider for the given API base URL and key.
func New(apiURL, apiKey string, logger *zap.Logger) *Provider {
	return &Provider{
		APIURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		UserAgent: defaultUserAgent,
		logger:    logger,
	}
}

func (p *Provider) Name() string { return providerName }

// Search runs one query against the API, following pagination until limit,
// the API's last page, or the page cap is reached. A failure on the first
// page fails the query; a failure on a later page stops pagination and the
// items collected so far are returned.
func (p *Provider) Search(ctx context.Context, query matching.Query, limit int) ([]matching.JobItem, error) {
	if limit <= 0 {
		limit = perPage
	}

	var jobs []matching.JobItem
	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			select {
			case <-ctx.Done():
				return jobs, ctx.Err()
			case <-time.After(pageDelay):
			}
		}

		batch, err := p.searchPage(ctx, query, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			p.logger.Warn("pagination stopped early",
				zap.String("query", query.Text),
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}
		if len(batch) == 0 {
			break
		}

		jobs = append(jobs, batch...)
		if len(jobs) >= limit {
			jobs = jobs[:limit]
			break
		}
		if len(batch) < perPage {
			break // last page
		}
	}

	p.logger.Debug("aggregator search finished",
		zap.String("query", query.Text),
		zap.String("location", query.Location),
		zap.Int("jobs", len(jobs)),
	)

	return jobs, nil
}

// Test issues a minimal probe request to verify credentials and reachability.
func (p *Provider) Test(ctx context.Context) provider.TestResult {
	probe := matching.Query{Text: "product manager", Location: "Bangalore", RecencyWindow: matching.RecencyMonth}
	if _, err := p.searchPage(ctx, probe, 1); err != nil {
		return provider.TestResult{Available: false, Message: err.Error()}
	}
	return provider.TestResult{Available: true, Message: "search API reachable"}
}

// GetStatus reports configuration health without a network call.
func (p *Provider) GetStatus() provider.Status {
	if strings.TrimSpace(p.apiKey) == "" {
		return provider.Status{Healthy: false, Message: "api key is not configured"}
	}
	if strings.TrimSpace(p.APIURL) == "" {
		return provider.Status{Healthy: false, Message: "api url is not configured"}
	}
	return provider.Status{Healthy: true, Message: "configured"}
}
