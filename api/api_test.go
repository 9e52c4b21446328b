package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/polyquery/metasearch/config"
	"github.com/polyquery/metasearch/ledger"
	"github.com/polyquery/metasearch/provider"
	"github.com/polyquery/metasearch/router"
)

// stubProvider records the last search it served and returns a fixed page.
type stubProvider struct {
	mu        sync.Mutex
	lastQuery string
	lastOpts  provider.Options
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Search(ctx context.Context, query string, opts provider.Options) ([]provider.Result, error) {
	s.mu.Lock()
	s.lastQuery = query
	s.lastOpts = opts
	s.mu.Unlock()
	return []provider.Result{
		{Title: "stub page", URL: "https://example.com/stub"},
	}, nil
}

type stubRegistry struct{ p provider.Provider }

func (s stubRegistry) Get(name string) (provider.Provider, bool) {
	if name == "stub" {
		return s.p, true
	}
	return nil, false
}

func newTestServer() (*Server, *stubProvider) {
	routing := &config.Routing{
		Groups: []config.Group{
			{Name: "g", Chain: []config.Step{{Provider: "stub"}}},
		},
		Modes: []config.Mode{
			{Name: "default", Weights: []config.GroupWeight{{Group: "g", Weight: 1.0}}},
		},
		DefaultMode:  "default",
		MinLimit:     1,
		MaxLimit:     50,
		DefaultLimit: 10,
	}
	stub := &stubProvider{}
	led := ledger.New(nil)
	return &Server{
		Router:  router.New(stubRegistry{p: stub}, led, routing),
		Ledger:  led,
		Routing: routing,
	}, stub
}

func TestHandleSearch_GetParams(t *testing.T) {
	s, stub := newTestServer()

	req := httptest.NewRequest("GET", "/search?q=golang+generics&limit=5&freshness=day&safe_mode=true", nil)
	w := httptest.NewRecorder()
	s.HandleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp router.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalUnique != 1 {
		t.Errorf("expected 1 unique result, got %d", resp.TotalUnique)
	}

	if stub.lastQuery != "golang generics" {
		t.Errorf("expected query passed through, got %q", stub.lastQuery)
	}
	if stub.lastOpts.Limit != 5 {
		t.Errorf("expected limit 5, got %d", stub.lastOpts.Limit)
	}
	if stub.lastOpts.Freshness != provider.FreshnessDay {
		t.Errorf("expected freshness day, got %q", stub.lastOpts.Freshness)
	}
	if !stub.lastOpts.SafeMode {
		t.Error("expected safe mode on")
	}
}

func TestHandleSearch_PostBody(t *testing.T) {
	s, stub := newTestServer()

	body := `{"query": "  golang   generics  ", "limit": 3}`
	req := httptest.NewRequest("POST", "/search", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.HandleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	// Whitespace is collapsed before the query reaches providers.
	if stub.lastQuery != "golang generics" {
		t.Errorf("expected sanitized query, got %q", stub.lastQuery)
	}
}

func TestHandleSearch_ShortQueryRejected(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest("GET", "/search?q=a", nil)
	w := httptest.NewRecorder()
	s.HandleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var resp struct {
		Error struct {
			Type  string `json:"type"`
			Field string `json:"field"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error.Type != "validation_error" || resp.Error.Field != "query" {
		t.Errorf("unexpected error payload: %s", w.Body.String())
	}
}

func TestHandleSearch_WhitespaceOnlyQueryRejected(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest("GET", "/search?q=++++", nil)
	w := httptest.NewRecorder()
	s.HandleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for whitespace-only query, got %d", w.Code)
	}
}

func TestHandleSearch_UnknownFreshnessFallsBack(t *testing.T) {
	s, stub := newTestServer()

	req := httptest.NewRequest("GET", "/search?q=golang&freshness=fortnight", nil)
	w := httptest.NewRecorder()
	s.HandleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if stub.lastOpts.Freshness != provider.FreshnessWeek {
		t.Errorf("expected fallback to week, got %q", stub.lastOpts.Freshness)
	}
}

func TestHandleSearch_MalformedBodyRejected(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest("POST", "/search", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.HandleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestHandleSearch_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest("DELETE", "/search", nil)
	w := httptest.NewRecorder()
	s.HandleSearch(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestHandleDiagnostics(t *testing.T) {
	s, _ := newTestServer()
	s.Ledger.RecordSuccess("stub", 0)

	req := httptest.NewRequest("GET", "/diagnostics", nil)
	w := httptest.NewRecorder()
	s.HandleDiagnostics(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var diag map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &diag); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if _, ok := diag["stub"]; !ok {
		t.Errorf("expected stub in diagnostics, got %s", w.Body.String())
	}
}

func TestHandleDiagnostics_SingleProvider(t *testing.T) {
	s, _ := newTestServer()
	s.Ledger.RecordSuccess("stub", 0)
	s.Ledger.RecordSuccess("other", 0)

	req := httptest.NewRequest("GET", "/diagnostics?provider=stub", nil)
	w := httptest.NewRecorder()
	s.HandleDiagnostics(w, req)

	var diag map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &diag); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if len(diag) != 1 {
		t.Errorf("expected only the requested provider, got %s", w.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after panic, got %d", w.Code)
	}
}

func TestSanitizeQuery(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  golang  ", "golang"},
		{"go\t\nlang", "go lang"},
		{"already clean", "already clean"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := sanitizeQuery(tc.in); got != tc.want {
			t.Errorf("sanitizeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
