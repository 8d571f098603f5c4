package antibot

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

// parseJobCards extracts job postings from a search results page. The markup
// uses the public job-card structure: a results list of cards, each with a
// title, subtitle (company), location span and a full-card link.
func parseJobCards(body, baseURL string) ([]matching.JobItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	// Cards render as div.base-search-card; older markup puts the fields
	// directly on the results list items. The selectors nest, so trying the
	// union would visit the same card twice.
	cards := doc.Find("div.base-search-card")
	if cards.Length() == 0 {
		cards = doc.Find("ul.jobs-search__results-list li")
	}

	var jobs []matching.JobItem
	cards.Each(func(_ int, card *goquery.Selection) {
		title := strings.TrimSpace(card.Find(".base-search-card__title").First().Text())
		if title == "" {
			return
		}

		company := strings.TrimSpace(card.Find(".base-search-card__subtitle").First().Text())
		location := strings.TrimSpace(card.Find(".job-search-card__location").First().Text())

		href, _ := card.Find("a.base-card__full-link").First().Attr("href")
		if href == "" {
			href, _ = card.Find("a").First().Attr("href")
		}
		if href == "" {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = baseURL + href
		}
		// Strip tracking query params; the same job otherwise shows up under
		// many distinct URLs.
		if idx := strings.Index(href, "?"); idx != -1 {
			href = href[:idx]
		}

		job := matching.JobItem{
			Source:   providerName,
			Title:    title,
			Company:  company,
			Location: location,
			ApplyURL: href,
		}

		if datetime, ok := card.Find("time").First().Attr("datetime"); ok {
			if t, err := time.Parse("2006-01-02", strings.TrimSpace(datetime)); err == nil {
				job.PostedAt = &t
			}
		}

		if snippet := strings.TrimSpace(card.Find(".base-search-card__metadata, .job-search-card__snippet").First().Text()); snippet != "" {
			job.DescriptionSnippet = snippet
		}

		jobs = append(jobs, job)
	})

	return jobs, nil
}
