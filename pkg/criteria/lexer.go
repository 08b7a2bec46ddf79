package criteria

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/benchrig/benchrig/pkg/domain"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// keyword operators are lexed as identifiers and promoted here.
var wordOperators = map[string]bool{"and": true, "or": true, "not": true}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c >= '0' && c <= '9' || c == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			tok, n, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i += n
		case c == '\'' || c == '"':
			tok, n, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i += n
		case c == '_' || unicode.IsLetter(c):
			j := i
			for j < len(src) && (src[j] == '_' || unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j]))) {
				j++
			}
			word := src[i:j]
			kind := tokIdent
			if wordOperators[word] {
				kind = tokOp
			}
			toks = append(toks, token{kind: kind, text: word, pos: i})
			i = j
		default:
			op := lexSymbol(src[i:])
			if op == "" {
				return nil, &domain.PredicateError{Predicate: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// symbols are matched longest first.
var symbols = []string{"**", "//", "<=", ">=", "==", "!=", "+", "-", "*", "/", "%", "<", ">"}

func lexSymbol(s string) string {
	for _, sym := range symbols {
		if strings.HasPrefix(s, sym) {
			return sym
		}
	}
	return ""
}

func lexNumber(src string, start int) (token, int, error) {
	j := start
	if strings.HasPrefix(src[j:], "0x") || strings.HasPrefix(src[j:], "0X") {
		j += 2
		for j < len(src) && isHexDigit(src[j]) {
			j++
		}
		v, err := strconv.ParseInt(strings.ReplaceAll(src[start+2:j], "_", ""), 16, 64)
		if err != nil {
			return token{}, 0, &domain.PredicateError{Predicate: src, Pos: start, Msg: "malformed hex literal"}
		}
		return token{kind: tokNumber, text: src[start:j], num: float64(v), pos: start}, j - start, nil
	}

	for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.' || src[j] == '_') {
		j++
	}
	if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
		k := j + 1
		if k < len(src) && (src[k] == '+' || src[k] == '-') {
			k++
		}
		if k < len(src) && src[k] >= '0' && src[k] <= '9' {
			j = k
			for j < len(src) && src[j] >= '0' && src[j] <= '9' {
				j++
			}
		}
	}
	text := src[start:j]
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
	if err != nil {
		return token{}, 0, &domain.PredicateError{Predicate: src, Pos: start, Msg: fmt.Sprintf("malformed number %q", text)}
	}
	return token{kind: tokNumber, text: text, num: v, pos: start}, j - start, nil
}

func lexString(src string, start int) (token, int, error) {
	quote := src[start]
	var b strings.Builder
	j := start + 1
	for j < len(src) {
		c := src[j]
		switch {
		case c == '\\' && j+1 < len(src):
			b.WriteByte(src[j+1])
			j += 2
		case c == quote:
			return token{kind: tokString, text: b.String(), pos: start}, j + 1 - start, nil
		default:
			b.WriteByte(c)
			j++
		}
	}
	return token{}, 0, &domain.PredicateError{Predicate: src, Pos: start, Msg: "unterminated string literal"}
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' || c == '_'
}
