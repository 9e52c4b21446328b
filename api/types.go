package api

import (
	"time"

	"github.com/polyquery/metasearch/config"
	"github.com/polyquery/metasearch/ledger"
	"github.com/polyquery/metasearch/router"
)

const (
	MaxRequestBodySize = 1 << 20 // 1 MB
	RequestTimeout     = 30 * time.Second
)

// Server holds all dependencies for the HTTP handlers
type Server struct {
	Router  *router.Router
	Ledger  *ledger.Ledger
	Routing *config.Routing
}

// SearchRequest represents the incoming search request body. GET requests
// carry the same fields as query parameters.
type SearchRequest struct {
	Query     string `json:"query"`
	Mode      string `json:"mode,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Freshness string `json:"freshness,omitempty"`
	SafeMode  bool   `json:"safe_mode,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Debug     bool   `json:"debug,omitempty"`
}
