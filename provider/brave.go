package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultBraveBaseURL = "https://api.search.brave.com/res/v1"

// BraveProvider handles web searches using the Brave Search API
type BraveProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

func (p *BraveProvider) Name() string {
	return "brave"
}

// braveResponse represents the Brave API response structure
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
			Thumbnail   struct {
				Src string `json:"src"`
			} `json:"thumbnail"`
		} `json:"results"`
	} `json:"web"`
}

// braveFreshness maps the freshness filter to Brave's query values.
func braveFreshness(f Freshness) string {
	switch f {
	case FreshnessDay:
		return "pd"
	case FreshnessWeek:
		return "pw"
	case FreshnessMonth:
		return "pm"
	default:
		return ""
	}
}

// Search performs a Brave web search
func (p *BraveProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/web/search", nil)
	if err != nil {
		return nil, err
	}

	if opts.Site != "" {
		query = fmt.Sprintf("site:%s %s", opts.Site, query)
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", opts.Limit))
	if fr := braveFreshness(opts.Freshness); fr != "" {
		q.Set("freshness", fr)
	}
	if opts.SafeMode {
		q.Set("safesearch", "strict")
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, &QuotaError{Provider: p.Name(), Scope: QuotaDaily}
	default:
		return nil, &HTTPError{Provider: p.Name(), Status: resp.StatusCode}
	}

	var data braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(data.Web.Results))
	for _, item := range data.Web.Results {
		results = append(results, Result{
			Title:       item.Title,
			URL:         item.URL,
			Snippet:     item.Description,
			Thumbnail:   item.Thumbnail.Src,
			PublishedAt: item.Age,
			Source:      p.Name(),
		})
	}

	return results, nil
}
