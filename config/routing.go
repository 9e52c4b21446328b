package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step is one entry in a group's provider chain: either a single provider
// or a parallel set of providers invoked concurrently. Exactly one of the
// two fields is set.
type Step struct {
	Provider string   `yaml:"provider,omitempty"`
	Parallel []string `yaml:"parallel,omitempty"`
}

// IsParallel reports whether this step fans out to several providers.
func (s Step) IsParallel() bool {
	return len(s.Parallel) > 0
}

// Group is a named bucket of the result budget with an ordered provider
// chain.
type Group struct {
	Name  string `yaml:"name"`
	Chain []Step `yaml:"chain"`
}

// GroupWeight assigns a fraction of the total limit to a group. Order
// matters: remainder units during allocation go to earlier entries first.
type GroupWeight struct {
	Group  string  `yaml:"group"`
	Weight float64 `yaml:"weight"`
}

// Mode is a named routing profile selecting group weights for a request.
type Mode struct {
	Name    string        `yaml:"name"`
	Weights []GroupWeight `yaml:"weights"`
}

// ProviderCaps carries the usage caps configured for one provider. Zero
// means uncapped. A non-zero RequestsDailyCap marks a dual-cap provider
// (billed per call and per returned item).
type ProviderCaps struct {
	DailyCap         int64 `yaml:"daily_cap"`
	MonthlyCap       int64 `yaml:"monthly_cap"`
	RequestsDailyCap int64 `yaml:"requests_daily_cap"`
	ObjectsDailyCap  int64 `yaml:"objects_daily_cap"`
}

// Routing is the static routing configuration loaded at startup.
type Routing struct {
	Providers   map[string]ProviderCaps `yaml:"providers"`
	Groups      []Group                 `yaml:"groups"`
	Modes       []Mode                  `yaml:"modes"`
	DefaultMode string                  `yaml:"default_mode"`

	MinLimit     int `yaml:"min_limit"`
	MaxLimit     int `yaml:"max_limit"`
	DefaultLimit int `yaml:"default_limit"`
}

// DefaultRouting returns the compiled-in routing table: a web group headed
// by Brave with Serper and DuckDuckGo fallbacks, and a reference group on
// DuckDuckGo's instant answers.
func DefaultRouting() *Routing {
	return &Routing{
		Providers: map[string]ProviderCaps{
			"brave": {DailyCap: 2000, MonthlyCap: 60000},
			"serper": {
				RequestsDailyCap: 100,
				ObjectsDailyCap:  1000,
				MonthlyCap:       2500,
			},
		},
		Groups: []Group{
			{
				Name: "web",
				Chain: []Step{
					{Provider: "brave"},
					{Parallel: []string{"serper", "duckduckgo"}},
				},
			},
			{
				Name: "reference",
				Chain: []Step{
					{Provider: "duckduckgo"},
					{Provider: "brave"},
				},
			},
		},
		Modes: []Mode{
			{
				Name: "balanced",
				Weights: []GroupWeight{
					{Group: "web", Weight: 0.7},
					{Group: "reference", Weight: 0.3},
				},
			},
			{
				Name: "web",
				Weights: []GroupWeight{
					{Group: "web", Weight: 1.0},
				},
			},
			{
				Name: "reference",
				Weights: []GroupWeight{
					{Group: "reference", Weight: 0.6},
					{Group: "web", Weight: 0.4},
				},
			},
		},
		DefaultMode:  "balanced",
		MinLimit:     1,
		MaxLimit:     50,
		DefaultLimit: 10,
	}
}

// LoadRouting reads the routing file at path. A missing file yields the
// compiled-in defaults; a malformed or invalid file is an error.
func LoadRouting(path string) (*Routing, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultRouting(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read routing config: %w", err)
	}

	r := DefaultRouting()
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse routing config: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("routing config %s: %w", path, err)
	}
	return r, nil
}

// Validate checks structural invariants: every chain step names exactly one
// kind, every mode references known groups, and limits are sane.
func (r *Routing) Validate() error {
	groups := make(map[string]bool, len(r.Groups))
	for _, g := range r.Groups {
		if g.Name == "" {
			return fmt.Errorf("group with empty name")
		}
		if groups[g.Name] {
			return fmt.Errorf("duplicate group %q", g.Name)
		}
		groups[g.Name] = true
		if len(g.Chain) == 0 {
			return fmt.Errorf("group %q has an empty chain", g.Name)
		}
		for i, step := range g.Chain {
			single := step.Provider != ""
			parallel := len(step.Parallel) > 0
			if single == parallel {
				return fmt.Errorf("group %q step %d must set exactly one of provider or parallel", g.Name, i)
			}
		}
	}

	modes := make(map[string]bool, len(r.Modes))
	for _, m := range r.Modes {
		if modes[m.Name] {
			return fmt.Errorf("duplicate mode %q", m.Name)
		}
		modes[m.Name] = true
		if len(m.Weights) == 0 {
			return fmt.Errorf("mode %q has no weights", m.Name)
		}
		for _, w := range m.Weights {
			if !groups[w.Group] {
				return fmt.Errorf("mode %q references unknown group %q", m.Name, w.Group)
			}
			if w.Weight < 0 {
				return fmt.Errorf("mode %q has negative weight for group %q", m.Name, w.Group)
			}
		}
	}
	if !modes[r.DefaultMode] {
		return fmt.Errorf("default mode %q is not defined", r.DefaultMode)
	}

	if r.MinLimit < 0 || r.MaxLimit < r.MinLimit || r.DefaultLimit < r.MinLimit || r.DefaultLimit > r.MaxLimit {
		return fmt.Errorf("invalid limit bounds min=%d max=%d default=%d", r.MinLimit, r.MaxLimit, r.DefaultLimit)
	}
	return nil
}

// ModeWeights returns the ordered weights for the named mode, falling back
// to the default mode when the name is unknown.
func (r *Routing) ModeWeights(name string) []GroupWeight {
	for _, m := range r.Modes {
		if m.Name == name {
			return m.Weights
		}
	}
	for _, m := range r.Modes {
		if m.Name == r.DefaultMode {
			return m.Weights
		}
	}
	return nil
}

// GroupByName returns the group definition, if present.
func (r *Routing) GroupByName(name string) (Group, bool) {
	for _, g := range r.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}
