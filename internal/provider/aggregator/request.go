package aggregator

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

const (
	searchPath      = "/v1/search"
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
)

type searchResponse struct {
	Items   []map[string]any `json:"items"`
	Found   int              `json:"found"`
	Pages   int              `json:"pages"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

// item mirrors one listing in the API response. Field names follow the wire
// format; mapstructure fills it from the loosely-typed items array.
type item struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Location       string   `json:"location"`
	Description    string   `json:"description"`
	EmploymentType string   `json:"employment_type"`
	Salary         string   `json:"salary"`
	Skills         []string `json:"skills"`
	ApplyURL       string   `json:"apply_url"`
	Logo           string   `json:"logo"`
	PostedAt       string   `json:"posted_at"`
}

func (p *Provider) searchPage(ctx context.Context, query matching.Query, page int) ([]matching.JobItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.APIURL+searchPath, nil)
	if err != nil {
		return nil, err
	}

	req = p.setHeaders(req)
	req.URL.RawQuery = buildParams(query, page).Encode()

	p.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	response, err := parseSearchResponse(resp)
	if err != nil {
		return nil, err
	}

	jobs := make([]matching.JobItem, 0, len(response.Items))
	for _, raw := range response.Items {
		var it item
		cfg := &mapstructure.DecoderConfig{
			Result:  &it,
			TagName: "json",
		}
		decoder, _ := mapstructure.NewDecoder(cfg)
		if err := decoder.Decode(raw); err != nil {
			p.logger.Debug("skipping undecodable item", zap.Error(err))
			continue
		}
		jobs = append(jobs, it.toJobItem())
	}

	return jobs, nil
}

func parseSearchResponse(resp *http.Response) (*searchResponse, error) {
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var response *searchResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, err
	}

	return response, nil
}

func (p *Provider) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	req.Header.Set("User-Agent", p.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("Content-Type", contentType)

	return req
}

func buildParams(query matching.Query, page int) url.Values {
	q := url.Values{}
	q.Set("q", query.Text)
	q.Set("location", query.Location)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	if query.Remote != "" {
		q.Set("workplace", string(query.Remote))
	}

	if days := recencyDays(query.RecencyWindow); days > 0 {
		q.Set("max_age_days", strconv.Itoa(days))
	}

	return q
}

// recencyDays maps a recency window to the API's max_age_days parameter.
// Zero means no provider-side age filter.
func recencyDays(w matching.RecencyWindow) int {
	switch w {
	case matching.RecencyToday:
		return 1
	case matching.RecencyWeek:
		return 7
	case matching.RecencyMonth:
		return 30
	default:
		return 0
	}
}

func (it item) toJobItem() matching.JobItem {
	job := matching.JobItem{
		Source:             providerName,
		SourceID:           it.ID,
		Title:              it.Title,
		Company:            it.Company,
		Location:           it.Location,
		EmploymentType:     it.EmploymentType,
		DescriptionSnippet: it.Description,
		Skills:             it.Skills,
		ApplyURL:           it.ApplyURL,
		Salary:             it.Salary,
		Logo:               it.Logo,
	}

	if posted := strings.TrimSpace(it.PostedAt); posted != "" {
		if t, err := time.Parse(time.RFC3339, posted); err == nil {
			job.PostedAt = &t
		} else if t, err := time.Parse("2006-01-02", posted); err == nil {
			job.PostedAt = &t
		}
	}

	return job
}
