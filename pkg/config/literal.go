package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/benchrig/benchrig/pkg/domain"
)

// ParseLiteralSequence parses a literal tuple or list such as
//
//	("rf_board", "base.cfg", 'bands.cfg')
//	[0, 1, 2.5, True]
//	("single",)
//
// Elements may be quoted strings, integers (returned as int), floats,
// True/False or None. Nothing is ever executed; any other token is an error.
func ParseLiteralSequence(text string) ([]any, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, domain.Configf("literal", "empty sequence")
	}
	open, closing := s[0], byte(0)
	switch open {
	case '(':
		closing = ')'
	case '[':
		closing = ']'
	default:
		return nil, domain.Configf("literal", "sequence must start with '(' or '[': %q", text)
	}
	if s[len(s)-1] != closing {
		return nil, domain.Configf("literal", "sequence must end with %q: %q", closing, text)
	}
	return parseElements(s[1:len(s)-1], text)
}

// ParseList accepts either a literal sequence or a plain comma separated list
// of bare words and numbers ("0, 1, 2").
func ParseList(text string) ([]any, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "(") || strings.HasPrefix(s, "[") {
		return ParseLiteralSequence(s)
	}
	return parseElements(s, text)
}

func parseElements(body, orig string) ([]any, error) {
	var out []any
	i := 0
	expectValue := true
	for {
		for i < len(body) && unicode.IsSpace(rune(body[i])) {
			i++
		}
		if i >= len(body) {
			break
		}
		if !expectValue {
			if body[i] != ',' {
				return nil, domain.Configf("literal", "expected ',' at offset %d in %q", i, orig)
			}
			i++
			expectValue = true
			continue
		}

		var (
			v   any
			n   int
			err error
		)
		if c := body[i]; c == '"' || c == '\'' {
			v, n, err = scanQuoted(body[i:])
		} else {
			v, n, err = scanBare(body[i:])
		}
		if err != nil {
			return nil, domain.Configf("literal", "%v in %q", err, orig)
		}
		out = append(out, v)
		i += n
		expectValue = false
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func scanQuoted(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			b.WriteByte(s[i])
		case c == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func scanBare(s string) (any, int, error) {
	n := strings.IndexByte(s, ',')
	if n < 0 {
		n = len(s)
	}
	word := strings.TrimSpace(s[:n])
	if word == "" {
		return nil, 0, fmt.Errorf("empty element")
	}
	switch word {
	case "True", "true":
		return true, n, nil
	case "False", "false":
		return false, n, nil
	case "None":
		return nil, n, nil
	}
	if i, err := strconv.Atoi(word); err == nil {
		return i, n, nil
	}
	if f, err := strconv.ParseFloat(word, 64); err == nil {
		return f, n, nil
	}
	for _, r := range word {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_-./", r)) {
			return nil, 0, fmt.Errorf("unsupported token %q", word)
		}
	}
	return word, n, nil
}
