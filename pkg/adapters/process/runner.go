package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/domain"
)

// ArgPrefix prefixes the environment variables carrying call arguments.
const ArgPrefix = "BENCHRIG_ARG_"

// ErrToolFailed reports a tool that ran but exited unsuccessfully.
var ErrToolFailed = errors.New("tool failed")

// Result is the captured outcome of one tool execution.
type Result struct {
	Tool     string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	// Value is Stdout decoded as JSON when it holds an object or array,
	// and the trimmed text otherwise.
	Value any
}

// Runner executes allow-listed tools. Call arguments are passed as
// environment variables, never as command line flags.
type Runner struct {
	tools   map[string]Tool
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithTools populates the allow-list.
func WithTools(tools map[string]Tool) RunnerOption {
	return func(r *Runner) {
		maps.Copy(r.tools, tools)
	}
}

// WithDir sets the working directory of executed tools.
func WithDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.dir = dir
	}
}

// WithTimeout bounds tools that declare no timeout of their own.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner with an empty allow-list unless WithTools is given.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{tools: make(map[string]Tool)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name, command string, args ...string) {
	r.tools[name] = Tool{Name: name, Command: command, Args: args}
}

// Tools returns the registered tool names, sorted.
func (r *Runner) Tools() []string {
	return slices.Sorted(maps.Keys(r.tools))
}

// Run executes the tool registered as name. An unknown name is a
// configuration error; a non-zero exit returns the result together with an
// error wrapping ErrToolFailed.
func (r *Runner) Run(ctx context.Context, name string, args map[string]any) (*Result, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, domain.Configf("tools", "tool %q is not registered", name)
	}

	timeout := tool.Timeout
	if timeout == 0 {
		timeout = r.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, tool.Command, tool.Args...)
	cmd.Dir = r.dir
	cmd.Env = cmd.Environ()
	for k, v := range tool.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	for _, k := range slices.Sorted(maps.Keys(args)) {
		cmd.Env = append(cmd.Env, ArgPrefix+strings.ToUpper(k)+"="+encodeArg(args[k]))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Tool:     name,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	r.logger.Debug("Tool executed", "tool", name, "exit", res.ExitCode, "duration", res.Duration)

	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("%w: %s: %w", ErrToolFailed, name, ctx.Err())
		}
		return res, fmt.Errorf("%w: %s: %v: %s", ErrToolFailed, name, err, strings.TrimSpace(res.Stderr))
	}
	res.Value = decodeOutput(res.Stdout)
	return res, nil
}

func encodeArg(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprint(v)
	}
}

func decodeOutput(out string) any {
	trimmed := strings.TrimSpace(out)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return trimmed
}

// ServiceFactory creates a Runner from the tools file named by the
// configuration key fileKey.
func ServiceFactory(fileKey string) bench.ServiceFactory {
	return func(c *bench.Context) (any, error) {
		path := c.Config.String(fileKey)
		if path == "" {
			return nil, domain.Configf(fileKey, "tools file is not configured")
		}
		tools, err := LoadTools(path)
		if err != nil {
			return nil, err
		}
		return NewRunner(WithTools(tools), WithLogger(c.Logger.With("service", "tools"))), nil
	}
}
