package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultSerperBaseURL = "https://google.serper.dev"

// SerperProvider handles web searches using the Serper.dev API.
// Serper bills both per call and per returned item, so it is registered
// with dual-cap accounting in the ledger.
type SerperProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

func (p *SerperProvider) Name() string {
	return "serper"
}

// serperRequest represents the Serper API request body
type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
	TBS   string `json:"tbs,omitempty"`
}

// serperResponse represents the Serper API response structure
type serperResponse struct {
	Organic []struct {
		Title    string  `json:"title"`
		Link     string  `json:"link"`
		Snippet  string  `json:"snippet"`
		Date     string  `json:"date"`
		Position float64 `json:"position"`
	} `json:"organic"`
}

// serperFreshness maps the freshness filter to Google tbs values.
func serperFreshness(f Freshness) string {
	switch f {
	case FreshnessDay:
		return "qdr:d"
	case FreshnessWeek:
		return "qdr:w"
	case FreshnessMonth:
		return "qdr:m"
	default:
		return ""
	}
}

// Search performs a Serper web search
func (p *SerperProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if opts.Site != "" {
		query = fmt.Sprintf("site:%s %s", opts.Site, query)
	}

	reqBody := serperRequest{
		Query: query,
		Num:   opts.Limit,
		TBS:   serperFreshness(opts.Freshness),
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/search", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusForbidden:
		// Serper returns 403 once the plan's credits are spent.
		return nil, &QuotaError{Provider: p.Name(), Scope: QuotaDaily}
	default:
		return nil, &HTTPError{Provider: p.Name(), Status: resp.StatusCode}
	}

	var data serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(data.Organic))
	for _, item := range data.Organic {
		results = append(results, Result{
			Title:       item.Title,
			URL:         item.Link,
			Snippet:     item.Snippet,
			Score:       item.Position,
			PublishedAt: item.Date,
			Source:      p.Name(),
		})
	}

	return results, nil
}
