package criteria

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/state"
)

// Evaluator holds the declared criteria of one evaluation scope (typically
// one test case) and records every evaluation performed against them.
type Evaluator struct {
	predicates map[string]*Predicate
	results    map[string]*domain.CriterionResult
	order      []string
	block      *Block
	node       *state.Tree
	operators  []Operator
	logger     *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTree publishes every result under node, keyed by criterion name.
func WithTree(node *state.Tree) Option {
	return func(e *Evaluator) {
		e.node = node
	}
}

// WithOperators restricts the operator whitelist used by Declare.
func WithOperators(ops ...Operator) Option {
	return func(e *Evaluator) {
		e.operators = ops
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New creates an Evaluator with no declared criteria.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		predicates: make(map[string]*Predicate),
		results:    make(map[string]*domain.CriterionResult),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// Declare compiles and attaches named predicates. A malformed predicate is
// reported immediately; nothing from decls is attached in that case.
func (e *Evaluator) Declare(decls map[string]string) error {
	compiled := make(map[string]*Predicate, len(decls))
	for _, name := range slices.Sorted(maps.Keys(decls)) {
		p, err := Compile(decls[name], e.operators...)
		if err != nil {
			return fmt.Errorf("criterion %q: %w", name, err)
		}
		compiled[name] = p
	}
	maps.Copy(e.predicates, compiled)
	return nil
}

// Declared returns the declared criterion names, sorted.
func (e *Evaluator) Declared() []string {
	return slices.Sorted(maps.Keys(e.predicates))
}

// Evaluate checks value against the predicate declared for name and records
// the outcome, overwriting any earlier record of the same name.
//
// Inside a Block the outcome is only returned; the block reports failures
// when it closes. Outside a block a failed criterion is returned as a
// *domain.TestFailure right away.
//
// A value the predicate cannot be applied to (wrong type, division by zero)
// counts as a failed criterion.
func (e *Evaluator) Evaluate(name string, value any) (bool, error) {
	p, ok := e.predicates[name]
	if !ok {
		return false, domain.Configf("criteria", "criterion %q is not declared", name)
	}

	passed, err := p.Eval(value)
	if err != nil {
		e.logger.Warn("Criterion could not be evaluated", "criterion", name, "value", value, "error", err)
	}

	res := &domain.CriterionResult{
		Name:      name,
		Predicate: p.String(),
		Value:     value,
		Passed:    passed,
	}
	if _, seen := e.results[name]; !seen {
		e.order = append(e.order, name)
	}
	e.results[name] = res
	e.publish(res)

	e.logger.Debug("Criterion evaluated", "criterion", name, "value", value, "passed", passed)

	if e.block != nil {
		e.block.record(name)
		return passed, nil
	}
	if !passed {
		return false, &domain.TestFailure{Failed: []domain.CriterionResult{*res}}
	}
	return true, nil
}

// Result returns the latest record for name.
func (e *Evaluator) Result(name string) (domain.CriterionResult, bool) {
	r, ok := e.results[name]
	if !ok {
		return domain.CriterionResult{}, false
	}
	return *r, true
}

// Results returns every recorded criterion in first-evaluation order.
func (e *Evaluator) Results() []domain.CriterionResult {
	out := make([]domain.CriterionResult, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, *e.results[name])
	}
	return out
}

// Failed returns the records whose latest evaluation failed.
func (e *Evaluator) Failed() []domain.CriterionResult {
	var out []domain.CriterionResult
	for _, name := range e.order {
		if r := e.results[name]; !r.Passed {
			out = append(out, *r)
		}
	}
	return out
}

// Begin opens an evaluation block. Blocks nest; names evaluated in an inner
// block are also reported by the enclosing one.
func (e *Evaluator) Begin() *Block {
	b := &Block{eval: e, prev: e.block, seen: make(map[string]bool)}
	e.block = b
	return b
}

// EvaluateBlock runs fn inside a block. Every evaluation in fn is recorded
// even after one has failed; the aggregate failure, if any, is returned
// ahead of the error returned by fn.
func (e *Evaluator) EvaluateBlock(fn func() error) error {
	b := e.Begin()
	var fnErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				b.Close()
				panic(r)
			}
		}()
		fnErr = fn()
	}()
	return errors.Join(b.Close(), fnErr)
}

func (e *Evaluator) publish(res *domain.CriterionResult) {
	if e.node == nil {
		return
	}
	e.node.Set(res.Name, map[string]any{
		"predicate": res.Predicate,
		"value":     res.Value,
		"passed":    res.Passed,
	})
}

// Block accumulates evaluations until Close.
type Block struct {
	eval   *Evaluator
	prev   *Block
	names  []string
	seen   map[string]bool
	closed bool
}

func (b *Block) record(name string) {
	if !b.seen[name] {
		b.seen[name] = true
		b.names = append(b.names, name)
	}
}

// Close ends the block. If any criterion evaluated in it failed on its latest
// evaluation, Close returns a *domain.TestFailure listing only those.
// Closing twice is a no-op.
func (b *Block) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.eval.block == b {
		b.eval.block = b.prev
	}
	if b.prev != nil {
		for _, name := range b.names {
			b.prev.record(name)
		}
	}

	var failed []domain.CriterionResult
	for _, name := range b.names {
		if r := b.eval.results[name]; !r.Passed {
			failed = append(failed, *r)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &domain.TestFailure{Failed: failed}
}
