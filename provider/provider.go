package provider

import (
	"context"
	"net/http"
	"time"
)

const (
	httpMaxIdleConns        = 100
	httpMaxIdleConnsPerHost = 100
	httpIdleConnTimeout     = 90 * time.Second
	httpClientTimeout       = 15 * time.Second
)

// Freshness restricts results to a publication window.
type Freshness string

const (
	FreshnessAny   Freshness = "any"
	FreshnessDay   Freshness = "day"
	FreshnessWeek  Freshness = "week"
	FreshnessMonth Freshness = "month"
)

// Options controls a single provider search call.
type Options struct {
	Limit     int
	Freshness Freshness
	SafeMode  bool
	Site      string
}

// Result represents a single search result
type Result struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Snippet     string            `json:"snippet"`
	Score       float64           `json:"score,omitempty"`
	Thumbnail   string            `json:"thumbnail,omitempty"`
	PublishedAt string            `json:"published_at,omitempty"`
	Author      string            `json:"author,omitempty"`
	Source      string            `json:"source"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Provider defines the interface for search providers
type Provider interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
	Name() string
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        httpMaxIdleConns,
			MaxIdleConnsPerHost: httpMaxIdleConnsPerHost,
			IdleConnTimeout:     httpIdleConnTimeout,
		},
		Timeout: httpClientTimeout,
	}
}
