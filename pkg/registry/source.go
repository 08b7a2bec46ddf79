package registry

import (
	"slices"
	"strconv"
	"strings"

	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/config"
	"github.com/benchrig/benchrig/pkg/domain"
)

// Source yields the values of one parameter at expansion time.
type Source interface {
	Values(c *bench.Context) ([]any, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(c *bench.Context) ([]any, error)

func (f SourceFunc) Values(c *bench.Context) ([]any, error) { return f(c) }

// Values is a literal source.
func Values(v ...any) Source {
	vals := slices.Clone(v)
	return SourceFunc(func(*bench.Context) ([]any, error) {
		return vals, nil
	})
}

// Range yields 0..n-1.
func Range(n int) Source {
	return SourceFunc(func(*bench.Context) ([]any, error) {
		return rangeOf("range", n)
	})
}

// Func is a source computed from the Context.
func Func(fn func(c *bench.Context) ([]any, error)) Source {
	return SourceFunc(fn)
}

// FromConfig resolves key against the run configuration. An integer N yields
// 0..N-1; a literal sequence such as (a, b) or [1, 2] or a plain comma
// separated list yields its elements.
func FromConfig(key string) Source {
	return SourceFunc(func(c *bench.Context) ([]any, error) {
		raw, ok := c.Config.Get(key)
		if !ok {
			return nil, domain.Configf(key, "iteration source is not configured")
		}
		switch v := raw.(type) {
		case int:
			return rangeOf(key, v)
		case int64:
			return rangeOf(key, int(v))
		case float64:
			if v != float64(int(v)) {
				return nil, domain.Configf(key, "iteration count %v is not an integer", v)
			}
			return rangeOf(key, int(v))
		case []any:
			return slices.Clone(v), nil
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				out[i] = s
			}
			return out, nil
		case string:
			s := strings.TrimSpace(v)
			if n, err := strconv.Atoi(s); err == nil {
				return rangeOf(key, n)
			}
			return config.ParseList(s)
		default:
			return nil, domain.Configf(key, "cannot iterate over %T", raw)
		}
	})
}

func rangeOf(source string, n int) ([]any, error) {
	if n < 0 {
		return nil, domain.Configf(source, "negative iteration count %d", n)
	}
	out := make([]any, n)
	for i := range n {
		out[i] = i
	}
	return out, nil
}
