// Package strategy defines the parameterized strategy model and provides a
// Registry mapping strategy names to factories and parameter metadata.
package strategy

import (
	"fmt"
	"sort"

	"backsim/internal/engine"
)

// Params carries the numeric parameters a strategy instance is built with.
type Params map[string]float64

// Get returns the parameter value for name, or def when absent.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// ParamSpec describes one tunable parameter for API consumers.
type ParamSpec struct {
	Type    string  `json:"type"`
	Default float64 `json:"default"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Info is the catalog entry for a registered strategy. Validate, when set,
// enforces constraints spanning multiple parameters and runs after the
// per-parameter range checks.
type Info struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]ParamSpec `json:"parameters"`
	Validate    func(Params) error   `json:"-"`
}

// Factory builds a strategy instance for one symbol with the given parameters.
// Unknown parameter names are ignored; missing ones take their defaults.
type Factory func(symbol string, params Params) engine.Strategy

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
	infos     map[string]Info
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		infos:     make(map[string]Info),
	}
}

// Register adds a strategy factory to the registry, keyed by info.Name.
func (r *Registry) Register(info Info, f Factory) {
	r.factories[info.Name] = f
	r.infos[info.Name] = info
}

// New instantiates the named strategy for symbol with params. Every supplied
// parameter that has a ParamSpec must fall within its declared Min/Max, and
// the strategy's Validate hook, if any, must accept the full set; violations
// return an error instead of a strategy.
func (r *Registry) New(name, symbol string, params Params) (engine.Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}

	info := r.infos[name]
	for pname, v := range params {
		spec, ok := info.Parameters[pname]
		if !ok {
			continue
		}
		if v < spec.Min || v > spec.Max {
			return nil, fmt.Errorf("parameter %q = %v out of range [%v, %v]", pname, v, spec.Min, spec.Max)
		}
	}
	if info.Validate != nil {
		if err := info.Validate(params); err != nil {
			return nil, fmt.Errorf("strategy %q: %w", name, err)
		}
	}

	return f(symbol, params), nil
}

// Get retrieves the catalog entry for a strategy by name. The second return
// value indicates whether the strategy was found.
func (r *Registry) Get(name string) (Info, bool) {
	info, ok := r.infos[name]
	return info, ok
}

// List returns the catalog entries of all registered strategies, sorted by
// name.
func (r *Registry) List() []Info {
	infos := make([]Info, 0, len(r.infos))
	for _, info := range r.infos {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
