package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/benchrig/benchrig/pkg/domain"
)

// Config is the flat configuration namespace of one run.
// Keys from later sources override earlier ones.
type Config struct {
	values  map[string]any
	sources []string
}

// New returns an empty Config.
func New() *Config {
	return &Config{values: make(map[string]any)}
}

// FromMap returns a Config holding a copy of values.
func FromMap(values map[string]any) *Config {
	c := New()
	maps.Copy(c.values, values)
	return c
}

// Get returns the raw value for key.
func (c *Config) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is set.
func (c *Config) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// String returns key formatted as a string, or "" when unset.
func (c *Config) String(key string) string {
	v, ok := c.values[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns key as an int. Missing or non-integer values are configuration errors.
func (c *Config) Int(key string) (int, error) {
	v, ok := c.values[key]
	if !ok {
		return 0, c.missing(key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 0, 64)
		if err == nil {
			return int(i), nil
		}
	}
	return 0, domain.Configf(key, "value %v is not an integer", v)
}

// Float returns key as a float64.
func (c *Config) Float(key string) (float64, error) {
	v, ok := c.values[key]
	if !ok {
		return 0, c.missing(key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, domain.Configf(key, "value %v is not a number", v)
}

// Bool returns key as a bool. Besides strconv forms it accepts yes/no and on/off.
func (c *Config) Bool(key string) (bool, error) {
	v, ok := c.values[key]
	if !ok {
		return false, c.missing(key)
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "t", "true", "yes", "on":
			return true, nil
		case "0", "f", "false", "no", "off":
			return false, nil
		}
	}
	return false, domain.Configf(key, "value %v is not a boolean", v)
}

// Require fails with a ConfigurationError naming every missing key.
func (c *Config) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if !c.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return domain.Configf("config", "missing required keys: %s", strings.Join(missing, ", "))
}

// Set assigns key, overriding any loaded value.
func (c *Config) Set(key string, value any) {
	c.values[key] = value
}

// Keys returns all keys, sorted.
func (c *Config) Keys() []string {
	return slices.Sorted(maps.Keys(c.values))
}

// Sources lists the files merged into c, in load order.
func (c *Config) Sources() []string {
	return slices.Clone(c.sources)
}

// Map returns a copy of the namespace.
func (c *Config) Map() map[string]any {
	return maps.Clone(c.values)
}

// Decode maps the namespace onto out (a pointer to a struct or map) using
// `mapstructure` tags. String values are converted to the target field type.
func (c *Config) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(c.values); err != nil {
		return &domain.ConfigurationError{Source: "config", Msg: "decode failed", Err: err}
	}
	return nil
}

func (c *Config) merge(source string, values map[string]any) {
	maps.Copy(c.values, values)
	c.sources = append(c.sources, source)
}

func (c *Config) missing(key string) error {
	return domain.Configf(key, "key is not set")
}
