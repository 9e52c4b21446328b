package router

import (
	"context"
	"testing"

	"github.com/polyquery/metasearch/config"
	"github.com/polyquery/metasearch/ledger"
	"github.com/polyquery/metasearch/provider"
)

// fixedProvider serves a preset result list, truncated to the requested
// limit.
type fixedProvider struct {
	name    string
	results []provider.Result
}

func (f *fixedProvider) Name() string { return f.name }

func (f *fixedProvider) Search(ctx context.Context, query string, opts provider.Options) ([]provider.Result, error) {
	n := len(f.results)
	if opts.Limit < n {
		n = opts.Limit
	}
	return append([]provider.Result(nil), f.results[:n]...), nil
}

func twoSliceRouting() *config.Routing {
	return &config.Routing{
		Groups: []config.Group{
			{Name: "slice1", Chain: singleChain("a")},
			{Name: "slice2", Chain: singleChain("b")},
		},
		Modes: []config.Mode{
			{
				Name: "balanced",
				Weights: []config.GroupWeight{
					{Group: "slice1", Weight: 0.5},
					{Group: "slice2", Weight: 0.5},
				},
			},
		},
		DefaultMode:  "balanced",
		MinLimit:     1,
		MaxLimit:     50,
		DefaultLimit: 10,
	}
}

func TestSearch_CrossGroupDedup(t *testing.T) {
	a := &fixedProvider{name: "a", results: []provider.Result{
		{Title: "shared", URL: "https://example.com/shared"},
		{Title: "a only", URL: "https://a.example.com/1"},
	}}
	// b's first result is the same page with a tracking param bolted on.
	b := &fixedProvider{name: "b", results: []provider.Result{
		{Title: "shared again", URL: "https://example.com/shared?utm_source=b"},
		{Title: "b only", URL: "https://b.example.com/1"},
	}}
	reg := fakeRegistry{"a": a, "b": b}
	r := New(reg, ledger.New(nil), twoSliceRouting())

	resp, err := r.Search(context.Background(), Request{Query: "q", Limit: 4})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if resp.TotalUnique != 3 {
		t.Errorf("expected 3 unique results, got %d", resp.TotalUnique)
	}
	if resp.DedupedCount != 1 {
		t.Errorf("expected 1 deduped, got %d", resp.DedupedCount)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	// First occurrence wins, so slice1's copy of the shared page survives.
	if resp.Results[0].Title != "shared" {
		t.Errorf("expected slice1's copy first, got %q", resp.Results[0].Title)
	}
	// Results carry their originating provider.
	for _, res := range resp.Results {
		if res.Source == "" {
			t.Errorf("result %q missing source", res.URL)
		}
	}
}

func TestSearch_TruncatesToLimit(t *testing.T) {
	a := &fakeProvider{name: "a", max: -1}
	b := &fakeProvider{name: "b", max: -1}
	reg := fakeRegistry{"a": a, "b": b}
	r := New(reg, ledger.New(nil), twoSliceRouting())

	resp, err := r.Search(context.Background(), Request{Query: "q", Limit: 6})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(resp.Results) > 6 {
		t.Errorf("expected at most 6 results, got %d", len(resp.Results))
	}
	if resp.TotalUnique != 6 {
		t.Errorf("expected 6 unique, got %d", resp.TotalUnique)
	}
}

func TestSearch_DebugAttachesTraceAndLedger(t *testing.T) {
	a := &fakeProvider{name: "a", max: -1}
	b := &fakeProvider{name: "b", max: -1}
	reg := fakeRegistry{"a": a, "b": b}
	r := New(reg, ledger.New(nil), twoSliceRouting())

	resp, err := r.Search(context.Background(), Request{Query: "q", Limit: 4, Debug: true})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if resp.Debug == nil {
		t.Fatal("expected debug info")
	}
	if resp.Debug.RequestID == "" {
		t.Error("expected a request id")
	}
	if len(resp.Debug.Groups) != 2 {
		t.Errorf("expected 2 group traces, got %d", len(resp.Debug.Groups))
	}
	if _, ok := resp.Debug.Ledger["a"]; !ok {
		t.Error("expected ledger diagnostics for provider a")
	}

	// Without the flag the payload stays clean.
	resp, err = r.Search(context.Background(), Request{Query: "q", Limit: 4})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if resp.Debug != nil {
		t.Error("expected no debug info by default")
	}
}

func TestSearch_ProviderOverride(t *testing.T) {
	a := &fakeProvider{name: "a", max: -1}
	b := &fakeProvider{name: "b", max: -1}
	reg := fakeRegistry{"a": a, "b": b}
	r := New(reg, ledger.New(nil), twoSliceRouting())

	resp, err := r.Search(context.Background(), Request{Query: "q", Limit: 5, Provider: "b"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if a.callCount() != 0 {
		t.Error("override should bypass routing entirely")
	}
	if got := b.requested(); len(got) != 1 || got[0] != 5 {
		t.Errorf("override provider should get the full limit, got %v", got)
	}
	if len(resp.Results) != 5 {
		t.Errorf("expected 5 results, got %d", len(resp.Results))
	}
}

func TestSearch_UnknownModeFallsBack(t *testing.T) {
	a := &fakeProvider{name: "a", max: -1}
	b := &fakeProvider{name: "b", max: -1}
	reg := fakeRegistry{"a": a, "b": b}
	r := New(reg, ledger.New(nil), twoSliceRouting())

	resp, err := r.Search(context.Background(), Request{Query: "q", Mode: "nonsense", Limit: 4})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if resp.TotalUnique != 4 {
		t.Errorf("expected default mode to serve the request, got %d unique", resp.TotalUnique)
	}
}

func TestSearch_NormalizesLimit(t *testing.T) {
	a := &fakeProvider{name: "a", max: -1}
	b := &fakeProvider{name: "b", max: -1}
	reg := fakeRegistry{"a": a, "b": b}
	r := New(reg, ledger.New(nil), twoSliceRouting())

	// Above the max the limit clamps down.
	resp, err := r.Search(context.Background(), Request{Query: "q", Limit: 500})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(resp.Results) > 50 {
		t.Errorf("expected limit clamped to 50, got %d results", len(resp.Results))
	}

	// Zero means the configured default.
	resp, err = r.Search(context.Background(), Request{Query: "q"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if resp.TotalUnique != 10 {
		t.Errorf("expected default limit 10, got %d unique", resp.TotalUnique)
	}
}

func TestAssemble_LeavesMissingFieldsEmpty(t *testing.T) {
	resp := assemble([]provider.Result{
		{URL: "https://example.com/untitled"},
	}, 0, 5)

	if resp.Results[0].Title != "" {
		t.Errorf("expected missing title left empty, got %q", resp.Results[0].Title)
	}
	if resp.TotalUnique != 1 {
		t.Errorf("expected 1 unique, got %d", resp.TotalUnique)
	}
}

func TestAssemble_TotalUniqueCountedBeforeTruncation(t *testing.T) {
	results := []provider.Result{
		{URL: "https://example.com/1"},
		{URL: "https://example.com/2"},
		{URL: "https://example.com/3"},
	}

	resp := assemble(results, 2, 2)

	if len(resp.Results) != 2 {
		t.Errorf("expected truncation to 2, got %d", len(resp.Results))
	}
	if resp.TotalUnique != 3 {
		t.Errorf("expected total unique 3, got %d", resp.TotalUnique)
	}
	if resp.DedupedCount != 2 {
		t.Errorf("expected deduped count passed through, got %d", resp.DedupedCount)
	}
}

func TestSearch_AllProvidersDownYieldsEmpty(t *testing.T) {
	a := &fakeProvider{name: "a", err: &provider.HTTPError{Provider: "a", Status: 502}}
	b := &fakeProvider{name: "b", err: &provider.HTTPError{Provider: "b", Status: 502}}
	reg := fakeRegistry{"a": a, "b": b}
	r := New(reg, ledger.New(nil), twoSliceRouting())

	resp, err := r.Search(context.Background(), Request{Query: "q", Limit: 4})
	if err != nil {
		t.Fatalf("degraded search must not error: %v", err)
	}
	if resp.Results == nil {
		t.Error("expected empty slice, not nil")
	}
	if len(resp.Results) != 0 || resp.TotalUnique != 0 {
		t.Errorf("expected empty response, got %+v", resp)
	}
}
