package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/benchrig/benchrig/pkg/domain"
)

// DefaultLookupFile is the lookup table name under the configuration root.
const DefaultLookupFile = "products.cfg"

// Extensions lists the recognised configuration file extensions in the order
// they are probed when a file is named without one.
var Extensions = []string{".cfg", ".ini", ".conf", ".yaml", ".yml", ".json", ".env"}

// Plan names the sources of one run's configuration.
type Plan struct {
	// Root is the configuration directory. Relative names resolve against it.
	Root string
	// TestType selects the base file <Root>/<TestType>.<ext> (required).
	TestType string
	// Machine selects the optional override <Root>/machines/<Machine>.<ext>.
	Machine string
	// Product is resolved through the lookup table; its files are required.
	Product string
	// LookupFile overrides DefaultLookupFile.
	LookupFile string
	// Overlays are optional extra files (calibration, band tables) loaded last.
	Overlays []string
}

// Option configures Load.
type Option func(*loader)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *loader) {
		l.logger = logger
	}
}

type loader struct {
	logger *slog.Logger
}

// Load assembles a Config by cascading, later sources overriding earlier keys:
// base test-type file, machine override, product files, overlays.
// Missing optional files are skipped; a missing required file is a
// ConfigurationError.
func Load(plan Plan, opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if plan.TestType == "" {
		return nil, domain.Configf("plan", "test type is required")
	}

	cfg := New()
	cfg.Set("test_type", plan.TestType)
	if plan.Machine != "" {
		cfg.Set("machine", plan.Machine)
	}

	base, ok := probe(plan.Root, plan.TestType)
	if !ok {
		return nil, domain.Configf(filepath.Join(plan.Root, plan.TestType), "base configuration not found")
	}
	if err := l.mergeFile(cfg, base, true); err != nil {
		return nil, err
	}

	if plan.Machine != "" {
		if path, ok := probe(plan.Root, filepath.Join("machines", plan.Machine)); ok {
			if err := l.mergeFile(cfg, path, false); err != nil {
				return nil, err
			}
		} else {
			l.logger.Debug("No machine override", "machine", plan.Machine)
		}
	}

	if plan.Product != "" {
		name := plan.LookupFile
		if name == "" {
			name = DefaultLookupFile
		}
		lookup, err := LoadLookup(resolve(plan.Root, name))
		if err != nil {
			return nil, err
		}
		entry, err := lookup.Resolve(plan.TestType, plan.Product)
		if err != nil {
			return nil, err
		}
		cfg.Set("product", plan.Product)
		cfg.Set("product_folder", entry.Folder)
		for _, p := range entry.Paths() {
			if err := l.mergeFile(cfg, resolve(plan.Root, p), true); err != nil {
				return nil, err
			}
		}
	}

	for _, o := range plan.Overlays {
		if err := l.mergeFile(cfg, resolve(plan.Root, o), false); err != nil {
			return nil, err
		}
	}

	l.logger.Info("Configuration loaded", "test_type", plan.TestType, "sources", len(cfg.sources), "keys", len(cfg.values))
	return cfg, nil
}

func (l *loader) mergeFile(cfg *Config, path string, required bool) error {
	values, err := ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			l.logger.Debug("Optional configuration missing", "path", path)
			return nil
		}
		return err
	}
	cfg.merge(path, values)
	l.logger.Debug("Configuration merged", "path", path, "keys", len(values))
	return nil
}

// ReadFile parses one configuration file into a flat namespace, choosing
// the format by extension. Nested YAML and JSON objects are flattened with
// dots; key=value sections are merged with the section name dropped.
func ReadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.ConfigurationError{Source: path, Msg: "required file not found", Err: err}
		}
		return nil, &domain.ConfigurationError{Source: path, Msg: "failed to read", Err: err}
	}

	var values map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cfg", ".ini", ".conf", "":
		values, err = parseINI(data)
	case ".yaml", ".yml":
		var raw map[string]any
		if err = yaml.Unmarshal(data, &raw); err == nil {
			values = flatten(raw)
		}
	case ".json":
		var raw map[string]any
		if err = json.Unmarshal(data, &raw); err == nil {
			values = flatten(raw)
		}
	case ".env":
		var env map[string]string
		if env, err = godotenv.UnmarshalBytes(data); err == nil {
			values = make(map[string]any, len(env))
			for k, v := range env {
				values[k] = v
			}
		}
	default:
		return nil, domain.Configf(path, "unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, &domain.ConfigurationError{Source: path, Msg: "failed to parse", Err: err}
	}
	return values, nil
}

func parseINI(data []byte) (map[string]any, error) {
	f, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, data)
	if err != nil {
		return nil, err
	}
	values := make(map[string]any)
	for _, sec := range f.Sections() {
		for _, key := range sec.Keys() {
			values[key.Name()] = key.String()
		}
	}
	return values, nil
}

func flatten(raw map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			out[key] = v
		}
	}
	walk("", raw)
	return out
}

// probe finds <root>/<name> with the first recognised extension that exists.
// A name that already carries a recognised extension is checked as is.
func probe(root, name string) (string, bool) {
	if slices.Contains(Extensions, strings.ToLower(filepath.Ext(name))) {
		p := resolve(root, name)
		_, err := os.Stat(p)
		return p, err == nil
	}
	for _, ext := range Extensions {
		p := resolve(root, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func resolve(root, name string) string {
	if filepath.IsAbs(name) || root == "" {
		return name
	}
	return filepath.Join(root, name)
}

// Describe renders the sources and keys of cfg for the `config` command.
func Describe(cfg *Config) string {
	var b strings.Builder
	for _, s := range cfg.Sources() {
		fmt.Fprintf(&b, "# %s\n", s)
	}
	for _, k := range cfg.Keys() {
		fmt.Fprintf(&b, "%s = %v\n", k, cfg.values[k])
	}
	return b.String()
}
