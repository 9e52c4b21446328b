package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const defaultDDGBaseURL = "https://api.duckduckgo.com"

// DuckDuckGoProvider handles searches using the DuckDuckGo instant answer
// API. It needs no credentials and serves as the keyless fallback at the
// tail of most chains.
type DuckDuckGoProvider struct {
	httpClient *http.Client
	baseURL    string
}

func (p *DuckDuckGoProvider) Name() string {
	return "duckduckgo"
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

// ddgResponse represents the instant answer API response structure
type ddgResponse struct {
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Heading       string     `json:"Heading"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// Search performs a DuckDuckGo instant answer lookup
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/", nil)
	if err != nil {
		return nil, err
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	if opts.SafeMode {
		q.Set("kp", "1")
	}
	req.URL.RawQuery = q.Encode()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Provider: p.Name(), Status: resp.StatusCode}
	}

	var data ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	var results []Result

	if data.AbstractText != "" && data.AbstractURL != "" {
		results = append(results, Result{
			Title:   data.Heading,
			URL:     data.AbstractURL,
			Snippet: data.AbstractText,
			Source:  p.Name(),
		})
	}

	var appendTopic func(topic ddgTopic)
	appendTopic = func(topic ddgTopic) {
		if topic.Text != "" && topic.FirstURL != "" {
			title, snippet := splitTopicText(topic.Text)
			results = append(results, Result{
				Title:   title,
				URL:     topic.FirstURL,
				Snippet: snippet,
				Source:  p.Name(),
			})
		}
		for _, child := range topic.Topics {
			appendTopic(child)
		}
	}
	for _, topic := range data.RelatedTopics {
		appendTopic(topic)
	}

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}

func splitTopicText(text string) (title string, snippet string) {
	parts := strings.SplitN(text, " - ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(text), ""
}
