package registry

import (
	"fmt"
	"iter"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/criteria"
	"github.com/benchrig/benchrig/pkg/domain"
)

// Params are the bound parameters of one instance, in declaration order.
type Params []domain.Param

// Get returns the value bound to name.
func (p Params) Get(name string) (any, bool) {
	for _, kv := range p {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return nil, false
}

// Int returns the value bound to name as an int, or 0.
func (p Params) Int(name string) int {
	v, _ := p.Get(name)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// String returns the value bound to name formatted with %v, or "".
func (p Params) String(name string) string {
	v, ok := p.Get(name)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Values returns the bound values in declaration order.
func (p Params) Values() []any {
	out := make([]any, len(p))
	for i, kv := range p {
		out[i] = kv.Value
	}
	return out
}

// Map returns the parameters keyed by name.
func (p Params) Map() map[string]any {
	out := make(map[string]any, len(p))
	for _, kv := range p {
		out[kv.Name] = kv.Value
	}
	return out
}

// Instance is one concrete, expanded test case.
type Instance struct {
	ID          string
	Suite       string
	Description string
	Criticality domain.Criticality
	Params      Params
	Criteria    map[string]string
	Body        Body
	Skip        bool
}

// Key returns "suite/id", the name used for filtering and state paths.
func (i Instance) Key() string { return i.Suite + "/" + i.ID }

// Plan is the flat, ordered list of instances of one run.
type Plan struct {
	Instances []Instance
}

// Len returns the number of instances.
func (p *Plan) Len() int { return len(p.Instances) }

// Keys returns the instance keys in execution order.
func (p *Plan) Keys() []string {
	out := make([]string, len(p.Instances))
	for i, inst := range p.Instances {
		out[i] = inst.Key()
	}
	return out
}

// Filter returns the instances whose "suite/id" matches any of the glob
// patterns (path.Match syntax), keeping order. No patterns selects all.
func (p *Plan) Filter(patterns ...string) (*Plan, error) {
	if len(patterns) == 0 {
		return &Plan{Instances: slices.Clone(p.Instances)}, nil
	}
	for _, pat := range patterns {
		if _, err := path.Match(pat, ""); err != nil {
			return nil, &domain.ConfigurationError{Source: "filter", Msg: fmt.Sprintf("pattern %q", pat), Err: err}
		}
	}
	out := &Plan{}
	for _, inst := range p.Instances {
		for _, pat := range patterns {
			if ok, _ := path.Match(pat, inst.Key()); ok {
				out.Instances = append(out.Instances, inst)
				break
			}
		}
	}
	return out, nil
}

// Expand replays the registry against c and returns the concrete plan.
// Parameter sources are resolved now, so values may depend on configuration.
// Missing required configuration, a malformed criterion, a name template
// that does not fit its parameters and duplicate identifiers are all
// reported as configuration errors before anything runs.
func (r *Registry) Expand(c *bench.Context) (*Plan, error) {
	r.mu.RLock()
	suites := slices.Clone(r.suites)
	r.mu.RUnlock()

	plan := &Plan{}
	seen := make(map[string]bool)
	for _, s := range suites {
		if err := c.Config.Require(s.required...); err != nil {
			return nil, fmt.Errorf("suite %q: %w", s.name, err)
		}
		for _, cb := range s.cases {
			instances, err := s.expandCase(c, cb)
			if err != nil {
				return nil, fmt.Errorf("suite %q: %w", s.name, err)
			}
			for _, inst := range instances {
				if seen[inst.Key()] {
					return nil, domain.Configf(s.name, "duplicate test case identifier %q", inst.ID)
				}
				seen[inst.Key()] = true
				plan.Instances = append(plan.Instances, inst)
			}
		}
	}
	c.Logger.Debug("Registry expanded", "suites", len(suites), "instances", plan.Len())
	return plan, nil
}

func (s *SuiteBuilder) expandCase(c *bench.Context, cb *CaseBuilder) ([]Instance, error) {
	if cb.body == nil && !cb.notImplemented {
		return nil, domain.Configf(cb.template, "case has no body")
	}

	crit := cb.criticality
	if crit == domain.NotCritical && s.critical {
		crit = domain.SuiteCritical
	}

	decls := make(map[string]string, len(s.criteria)+len(cb.criteria))
	if !cb.notImplemented {
		maps.Copy(decls, s.criteria)
		maps.Copy(decls, cb.criteria)
		for _, name := range slices.Sorted(maps.Keys(decls)) {
			if _, err := criteria.Compile(decls[name]); err != nil {
				return nil, fmt.Errorf("case %q: criterion %q: %w", cb.template, name, err)
			}
		}
	}

	axes := make([][]any, len(cb.iterations))
	for i, it := range cb.iterations {
		vals, err := it.source.Values(c)
		if err != nil {
			return nil, fmt.Errorf("case %q: parameter %q: %w", cb.template, it.name, err)
		}
		axes[i] = vals
	}

	var out []Instance
	for combo := range product(axes) {
		params := make(Params, len(combo))
		for i, v := range combo {
			params[i] = domain.Param{Name: cb.iterations[i].name, Value: v}
		}
		id, err := formatID(cb.template, combo)
		if err != nil {
			return nil, err
		}
		out = append(out, Instance{
			ID:          id,
			Suite:       s.name,
			Description: cb.description,
			Criticality: crit,
			Params:      params,
			Criteria:    maps.Clone(decls),
			Body:        cb.body,
			Skip:        cb.notImplemented,
		})
	}
	return out, nil
}

func formatID(template string, args []any) (string, error) {
	id := fmt.Sprintf(template, args...)
	if strings.Contains(id, "%!") {
		return "", domain.Configf(template, "name template does not match parameters %v: %q", args, id)
	}
	if id == "" || strings.Contains(id, "/") {
		return "", domain.Configf(template, "invalid test case identifier %q", id)
	}
	return id, nil
}

// product yields the cartesian product of axes; the first axis varies slowest.
// No axes yield a single empty combination; an empty axis yields nothing.
func product(axes [][]any) iter.Seq[[]any] {
	return func(yield func([]any) bool) {
		for _, a := range axes {
			if len(a) == 0 {
				return
			}
		}
		idx := make([]int, len(axes))
		for {
			combo := make([]any, len(axes))
			for i, a := range axes {
				combo[i] = a[idx[i]]
			}
			if !yield(combo) {
				return
			}
			i := len(axes) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(axes[i]) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}
