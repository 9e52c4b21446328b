package provider

// Config holds API keys for search providers. A provider whose key is
// missing is simply not registered and contributes zero results.
type Config struct {
	BraveAPIKey  string
	SerperAPIKey string
}

// Registry holds the configured providers keyed by identifier.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates providers for every configured credential. DuckDuckGo
// needs no key and is always available.
func NewRegistry(cfg Config) *Registry {
	httpClient := newHTTPClient()

	providers := map[string]Provider{
		"duckduckgo": &DuckDuckGoProvider{
			httpClient: httpClient,
			baseURL:    defaultDDGBaseURL,
		},
	}

	if cfg.BraveAPIKey != "" {
		providers["brave"] = &BraveProvider{
			apiKey:     cfg.BraveAPIKey,
			httpClient: httpClient,
			baseURL:    defaultBraveBaseURL,
		}
	}
	if cfg.SerperAPIKey != "" {
		providers["serper"] = &SerperProvider{
			apiKey:     cfg.SerperAPIKey,
			httpClient: httpClient,
			baseURL:    defaultSerperBaseURL,
		}
	}

	return &Registry{providers: providers}
}

// Get returns the provider for the given identifier, if configured.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the identifiers of all configured providers.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
