package registry

import (
	"maps"
	"sync"

	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/domain"
)

// Body is the implementation of one test case. p holds the bound
// parameters of the expanded instance, in declaration order.
type Body func(c *bench.Context, p Params) error

// Registry collects test suites in declaration order.
type Registry struct {
	mu     sync.RWMutex
	suites []*SuiteBuilder
	byName map[string]*SuiteBuilder
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*SuiteBuilder)}
}

// Suite returns the builder for name, declaring the suite on first use.
func (r *Registry) Suite(name string) *SuiteBuilder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byName[name]; ok {
		return s
	}
	s := &SuiteBuilder{name: name}
	r.suites = append(r.suites, s)
	r.byName[name] = s
	return s
}

// Suites returns the declared suite names in declaration order.
func (r *Registry) Suites() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.suites))
	for i, s := range r.suites {
		names[i] = s.name
	}
	return names
}

// SuiteBuilder declares one suite: an ordered collection of cases plus
// suite-level criticality, criteria and required configuration keys.
type SuiteBuilder struct {
	name        string
	description string
	critical    bool
	criteria    map[string]string
	required    []string
	cases       []*CaseBuilder
}

// SuiteCritical makes any failure in the suite abort the rest of the run.
func (s *SuiteBuilder) SuiteCritical() *SuiteBuilder {
	s.critical = true
	return s
}

// Criteria declares criteria shared by every case of the suite.
func (s *SuiteBuilder) Criteria(decls map[string]string) *SuiteBuilder {
	if s.criteria == nil {
		s.criteria = make(map[string]string)
	}
	maps.Copy(s.criteria, decls)
	return s
}

// RequireConfig names configuration keys that must be present at expansion.
func (s *SuiteBuilder) RequireConfig(keys ...string) *SuiteBuilder {
	s.required = append(s.required, keys...)
	return s
}

// Describe attaches a human readable description.
func (s *SuiteBuilder) Describe(text string) *SuiteBuilder {
	s.description = text
	return s
}

// Case declares a test case. template is a printf format applied to the
// bound parameter values of every expansion to compute its identifier.
func (s *SuiteBuilder) Case(template string, body Body) *CaseBuilder {
	c := &CaseBuilder{template: template, body: body}
	s.cases = append(s.cases, c)
	return c
}

type iteration struct {
	name   string
	source Source
}

// CaseBuilder declares one case of a suite.
type CaseBuilder struct {
	template       string
	body           Body
	description    string
	iterations     []iteration
	criticality    domain.Criticality
	criteria       map[string]string
	notImplemented bool
}

// Iterate binds a parameter to a source of values. Iterations nest in
// declaration order: the first declared is the outermost loop.
func (c *CaseBuilder) Iterate(name string, source Source) *CaseBuilder {
	c.iterations = append(c.iterations, iteration{name: name, source: source})
	return c
}

// Critical makes a failure of this case abort the rest of the run.
func (c *CaseBuilder) Critical() *CaseBuilder {
	c.criticality = domain.Critical
	return c
}

// SuiteCritical marks this case with suite criticality.
func (c *CaseBuilder) SuiteCritical() *CaseBuilder {
	c.criticality = domain.SuiteCritical
	return c
}

// Criteria declares criteria for this case; they override suite criteria
// of the same name.
func (c *CaseBuilder) Criteria(decls map[string]string) *CaseBuilder {
	if c.criteria == nil {
		c.criteria = make(map[string]string)
	}
	maps.Copy(c.criteria, decls)
	return c
}

// NotImplemented registers the case as a placeholder: it is recorded as
// skipped and contributes no criteria.
func (c *CaseBuilder) NotImplemented() *CaseBuilder {
	c.notImplemented = true
	return c
}

// Describe attaches a human readable description.
func (c *CaseBuilder) Describe(text string) *CaseBuilder {
	c.description = text
	return c
}
