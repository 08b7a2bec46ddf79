package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/benchrig/benchrig/pkg/config"
	"github.com/benchrig/benchrig/pkg/criteria"
	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/feedback"
	"github.com/benchrig/benchrig/pkg/state"
)

// ServiceFactory creates a remote-service handle on first access.
type ServiceFactory func(c *Context) (any, error)

// Context is the per-run aggregate handed to every test body. It is a
// context.Context for blocking calls and carries configuration, the logger,
// the state tree root and lazily created service handles.
//
// The runner derives a case-scoped Context for each test instance; the
// scoped copy shares configuration, services and state with the run.
type Context struct {
	context.Context

	Config     *config.Config
	Logger     *slog.Logger
	State      *state.Tree
	Product    string
	TestType   string
	PriorScans map[string]string

	shared   *shared
	feedback *feedback.Requester

	caseID string
	eval   *criteria.Evaluator
}

type shared struct {
	mu        sync.Mutex
	factories map[string]ServiceFactory
	services  map[string]any
	created   []string
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		c.Logger = logger
	}
}

// WithState sets the state tree root.
func WithState(root *state.Tree) Option {
	return func(c *Context) {
		c.State = root
	}
}

// WithFeedback sets the operator feedback requester.
func WithFeedback(r *feedback.Requester) Option {
	return func(c *Context) {
		c.feedback = r
	}
}

// WithService registers a lazy service.
func WithService(name string, factory ServiceFactory) Option {
	return func(c *Context) {
		c.shared.factories[name] = factory
	}
}

// New creates the run Context. Product and TestType are taken from the
// "product" and "test_type" configuration keys.
func New(ctx context.Context, cfg *config.Config, opts ...Option) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		cfg = config.New()
	}
	c := &Context{
		Context:    ctx,
		Config:     cfg,
		Product:    cfg.String("product"),
		TestType:   cfg.String("test_type"),
		PriorScans: make(map[string]string),
		shared: &shared{
			factories: make(map[string]ServiceFactory),
			services:  make(map[string]any),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.State == nil {
		c.State = state.New()
	}
	return c
}

// RegisterService registers or replaces a lazy service factory.
// A handle already created under name is kept until Close.
func (c *Context) RegisterService(name string, factory ServiceFactory) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	c.shared.factories[name] = factory
}

// Service returns the handle for name, creating it on first access.
// The handle is cached for the rest of the run.
func (c *Context) Service(name string) (any, error) {
	c.shared.mu.Lock()
	if svc, ok := c.shared.services[name]; ok {
		c.shared.mu.Unlock()
		return svc, nil
	}
	factory, ok := c.shared.factories[name]
	c.shared.mu.Unlock()
	if !ok {
		return nil, domain.Configf("services", "service %q is not registered", name)
	}

	svc, err := factory(c)
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", name, err)
	}

	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	if existing, ok := c.shared.services[name]; ok {
		if closer, ok := svc.(io.Closer); ok {
			_ = closer.Close()
		}
		return existing, nil
	}
	c.shared.services[name] = svc
	c.shared.created = append(c.shared.created, name)
	c.Logger.Debug("Service created", "service", name)
	return svc, nil
}

// ServiceAs returns the service registered under name as a T.
func ServiceAs[T any](c *Context, name string) (T, error) {
	var zero T
	svc, err := c.Service(name)
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, domain.Configf("services", "service %q is %T, not %T", name, svc, zero)
	}
	return typed, nil
}

// Services lists the registered service names, sorted.
func (c *Context) Services() []string {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	return slices.Sorted(maps.Keys(c.shared.factories))
}

// Close releases every created handle implementing io.Closer, newest first.
func (c *Context) Close() error {
	c.shared.mu.Lock()
	names := slices.Clone(c.shared.created)
	services := maps.Clone(c.shared.services)
	c.shared.services = make(map[string]any)
	c.shared.created = nil
	c.shared.mu.Unlock()

	var errs []error
	for _, name := range slices.Backward(names) {
		if closer, ok := services[name].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %q: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ForCase returns a copy of c scoped to one test instance.
func (c *Context) ForCase(ctx context.Context, id string, eval *criteria.Evaluator) *Context {
	scoped := *c
	scoped.Context = ctx
	scoped.caseID = id
	scoped.eval = eval
	scoped.Logger = c.Logger.With("case", id)
	return &scoped
}

// CaseID returns the identifier of the active test instance, if any.
func (c *Context) CaseID() string { return c.caseID }

// Criteria returns the evaluator of the active test instance, or nil.
func (c *Context) Criteria() *criteria.Evaluator { return c.eval }

// Evaluate checks value against the named criterion of the active instance.
func (c *Context) Evaluate(name string, value any) (bool, error) {
	if c.eval == nil {
		return false, domain.Configf("criteria", "no active test case for criterion %q", name)
	}
	return c.eval.Evaluate(name, value)
}

// EvaluateBlock runs fn in an evaluation block of the active instance.
func (c *Context) EvaluateBlock(fn func() error) error {
	if c.eval == nil {
		return domain.Configf("criteria", "no active test case")
	}
	return c.eval.EvaluateBlock(fn)
}

// Feedback suspends the body until the operator answers.
func (c *Context) Feedback(prompt, media string, mode feedback.Mode) (feedback.Result, error) {
	if c.feedback == nil {
		return feedback.Result{}, domain.Configf("feedback", "no feedback channel configured")
	}
	return c.feedback.Ask(c, prompt, media, mode)
}

// Confirm asks a pass/fail question and returns the mapped error:
// nil on pass, a test failure otherwise.
func (c *Context) Confirm(prompt string) error {
	res, err := c.Feedback(prompt, "", feedback.PassFail)
	if err != nil {
		return err
	}
	return res.Err()
}

// Scan asks the operator for text (typically a barcode) and records it under
// key in PriorScans and under scans/<key> in the state tree.
func (c *Context) Scan(key, prompt string) (string, error) {
	if c.feedback == nil {
		return "", domain.Configf("feedback", "no feedback channel configured")
	}
	text, err := c.feedback.Scan(c, prompt)
	if err != nil {
		return "", err
	}
	c.PriorScans[key] = text
	c.State.Update(state.Path{"scans", key}, text)
	return text, nil
}
