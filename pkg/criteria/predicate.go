package criteria

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/benchrig/benchrig/pkg/domain"
)

// Operator is one entry of the predicate operator whitelist.
type Operator string

const (
	OpAdd      Operator = "+"
	OpSub      Operator = "-"
	OpMul      Operator = "*"
	OpDiv      Operator = "/"
	OpFloorDiv Operator = "//"
	OpMod      Operator = "%"
	OpPow      Operator = "**"
	OpLT       Operator = "<"
	OpLE       Operator = "<="
	OpGT       Operator = ">"
	OpGE       Operator = ">="
	OpEQ       Operator = "=="
	OpNE       Operator = "!="
	OpAnd      Operator = "and"
	OpOr       Operator = "or"
	OpNot      Operator = "not"
)

// DefaultOperators is the whitelist used when none is configured:
// arithmetic, comparison (chainable, as in "1 < value < 5") and boolean connectives.
var DefaultOperators = []Operator{
	OpAdd, OpSub, OpMul, OpDiv, OpFloorDiv, OpMod, OpPow,
	OpLT, OpLE, OpGT, OpGE, OpEQ, OpNE,
	OpAnd, OpOr, OpNot,
}

// Variable is the only free name a predicate may reference.
const Variable = "value"

// Predicate is a compiled criterion expression.
type Predicate struct {
	text string
	root expr
}

// Compile parses text against the given operator whitelist (DefaultOperators
// if empty). Anything outside the grammar is a *domain.PredicateError.
func Compile(text string, allowed ...Operator) (*Predicate, error) {
	if len(allowed) == 0 {
		allowed = DefaultOperators
	}
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{src: text, toks: toks, allowed: allowed}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	if !p.usesValue {
		return nil, &domain.PredicateError{Predicate: text, Msg: "expression does not reference " + Variable}
	}
	return &Predicate{text: text, root: root}, nil
}

// MustCompile is like Compile but panics on error. For package-level fixtures.
func MustCompile(text string, allowed ...Operator) *Predicate {
	p, err := Compile(text, allowed...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Predicate) String() string { return p.text }

// Eval binds value and reports whether the predicate holds.
// Runtime problems (unsupported value type, division by zero) are returned as errors.
func (p *Predicate) Eval(value any) (bool, error) {
	v, err := normalize(value)
	if err != nil {
		return false, err
	}
	out, err := p.root.eval(v)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", p.text, err)
	}
	return truthy(out), nil
}

// -- Parser --

type parser struct {
	src       string
	toks      []token
	pos       int
	allowed   []Operator
	usesValue bool
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &domain.PredicateError{Predicate: p.src, Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

// acceptOp consumes the next token if it is one of ops, checking the whitelist.
func (p *parser) acceptOp(ops ...string) (string, bool, error) {
	tok := p.peek()
	if tok.kind != tokOp || !slices.Contains(ops, tok.text) {
		return "", false, nil
	}
	if !slices.Contains(p.allowed, Operator(tok.text)) {
		return "", false, p.errorf(tok, "operator %q is not permitted", tok.text)
	}
	p.next()
	return tok.text, true, nil
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		_, ok, err := p.acceptOp("or")
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logicalExpr{op: "or", left: left, right: right}
	}
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		_, ok, err := p.acceptOp("and")
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = logicalExpr{op: "and", left: left, right: right}
	}
}

func (p *parser) parseNot() (expr, error) {
	_, ok, err := p.acceptOp("not")
	if err != nil {
		return nil, err
	}
	if ok {
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notExpr{x: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (expr, error) {
	first, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	cmp := compareExpr{operands: []expr{first}}
	for {
		op, ok, err := p.acceptOp("<", "<=", ">", ">=", "==", "!=")
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		next, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		cmp.ops = append(cmp.ops, op)
		cmp.operands = append(cmp.operands, next)
	}
	if len(cmp.ops) == 0 {
		return first, nil
	}
	return cmp, nil
}

func (p *parser) parseSum() (expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok, err := p.acceptOp("+", "-")
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok, err := p.acceptOp("*", "/", "//", "%")
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (expr, error) {
	op, ok, err := p.acceptOp("-", "+")
	if err != nil {
		return nil, err
	}
	if ok {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negExpr{neg: op == "-", x: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (expr, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	_, ok, err := p.acceptOp("**")
	if err != nil {
		return nil, err
	}
	if !ok {
		return base, nil
	}
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return binaryExpr{op: "**", left: base, right: exp}, nil
}

func (p *parser) parseAtom() (expr, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return literal{v: tok.num}, nil
	case tokString:
		return literal{v: tok.text}, nil
	case tokIdent:
		switch tok.text {
		case Variable:
			p.usesValue = true
			return variable{}, nil
		case "true", "True":
			return literal{v: true}, nil
		case "false", "False":
			return literal{v: false}, nil
		}
		if p.peek().kind == tokLParen {
			return nil, p.errorf(tok, "function calls are not permitted")
		}
		return nil, p.errorf(tok, "unknown identifier %q", tok.text)
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')'")
		}
		return inner, nil
	case tokEOF:
		return nil, p.errorf(tok, "unexpected end of expression")
	default:
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
}

// -- AST --

type expr interface {
	eval(value any) (any, error)
}

type literal struct{ v any }

func (l literal) eval(any) (any, error) { return l.v, nil }

type variable struct{}

func (variable) eval(value any) (any, error) { return value, nil }

type negExpr struct {
	neg bool
	x   expr
}

func (n negExpr) eval(value any) (any, error) {
	v, err := n.x.eval(value)
	if err != nil {
		return nil, err
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("unary operator on %T", v)
	}
	if n.neg {
		return -f, nil
	}
	return f, nil
}

type notExpr struct{ x expr }

func (n notExpr) eval(value any) (any, error) {
	v, err := n.x.eval(value)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

type logicalExpr struct {
	op          string
	left, right expr
}

// eval follows Python semantics: the deciding operand is returned, and the
// right side is only evaluated when needed.
func (l logicalExpr) eval(value any) (any, error) {
	lv, err := l.left.eval(value)
	if err != nil {
		return nil, err
	}
	if l.op == "and" && !truthy(lv) || l.op == "or" && truthy(lv) {
		return lv, nil
	}
	return l.right.eval(value)
}

type binaryExpr struct {
	op          string
	left, right expr
}

func (b binaryExpr) eval(value any) (any, error) {
	lv, err := b.left.eval(value)
	if err != nil {
		return nil, err
	}
	rv, err := b.right.eval(value)
	if err != nil {
		return nil, err
	}

	if ls, ok := lv.(string); ok && b.op == "+" {
		if rs, ok := rv.(string); ok {
			return ls + rs, nil
		}
	}

	x, okx := toFloat(lv)
	y, oky := toFloat(rv)
	if !okx || !oky {
		return nil, fmt.Errorf("operator %s on %T and %T", b.op, lv, rv)
	}
	switch b.op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return x / y, nil
	case "//":
		if y == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return math.Floor(x / y), nil
	case "%":
		if y == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		// Python modulo takes the sign of the divisor.
		m := math.Mod(x, y)
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return m, nil
	case "**":
		return math.Pow(x, y), nil
	}
	return nil, fmt.Errorf("unknown operator %s", b.op)
}

type compareExpr struct {
	ops      []string
	operands []expr
}

func (c compareExpr) eval(value any) (any, error) {
	left, err := c.operands[0].eval(value)
	if err != nil {
		return nil, err
	}
	for i, op := range c.ops {
		right, err := c.operands[i+1].eval(value)
		if err != nil {
			return nil, err
		}
		ok, err := compare(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func compare(op string, a, b any) (bool, error) {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch op {
			case "<":
				return x < y, nil
			case "<=":
				return x <= y, nil
			case ">":
				return x > y, nil
			case ">=":
				return x >= y, nil
			case "==":
				return x == y, nil
			case "!=":
				return x != y, nil
			}
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			switch op {
			case "<":
				return x < y, nil
			case "<=":
				return x <= y, nil
			case ">":
				return x > y, nil
			case ">=":
				return x >= y, nil
			case "==":
				return x == y, nil
			case "!=":
				return x != y, nil
			}
		}
	}
	switch op {
	case "==":
		return false, nil
	case "!=":
		return true, nil
	}
	return false, fmt.Errorf("cannot order %T and %T", a, b)
}

// normalize converts a measured value into the predicate's value domain:
// float64, string or bool.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("value %q is not numeric: %w", x, err)
		}
		return f, nil
	case fmt.Stringer:
		return strings.TrimSpace(x.String()), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	}
	return true
}
