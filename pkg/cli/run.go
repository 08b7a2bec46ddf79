package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	backend "github.com/redis/go-redis/v9"
	"golang.org/x/term"

	"github.com/benchrig/benchrig"

	"github.com/benchrig/benchrig/internal/logging"
	"github.com/benchrig/benchrig/internal/presentation/tui"
	httpadapter "github.com/benchrig/benchrig/pkg/adapters/http"
	"github.com/benchrig/benchrig/pkg/adapters/mcp"
	"github.com/benchrig/benchrig/pkg/adapters/process"
	redisadapter "github.com/benchrig/benchrig/pkg/adapters/redis"
	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/config"
	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/feedback"
	"github.com/benchrig/benchrig/pkg/observability"
	"github.com/benchrig/benchrig/pkg/persistence/middleware"
	"github.com/benchrig/benchrig/pkg/ports"
	"github.com/benchrig/benchrig/pkg/registry"
	"github.com/benchrig/benchrig/pkg/runner"
	"github.com/benchrig/benchrig/pkg/state"
)

const (
	// ToolsService is the service name of the external tool runner.
	ToolsService = "tools"
	// ToolsFileKey is the configuration key naming the tools file.
	ToolsFileKey = "tools_file"
)

// ErrCasesFailed is returned when the run completed but some case did not pass.
var ErrCasesFailed = errors.New("test cases failed")

// Execute loads the configuration, expands reg and runs the plan.
//
// The returned report is nil only when nothing ran. A run that completes with
// failed cases returns the report and ErrCasesFailed.
func Execute(ctx context.Context, reg *registry.Registry, opts RunOptions, streams IOStreams) (*domain.Report, error) {
	level, err := logging.ParseLevel(defaultString(opts.LogLevel, "warn"))
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithFormat(streams.Err, level, logging.FormatText)

	redact, err := middleware.NewRedactMiddleware(opts.Redact)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.plan(), config.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	tree := state.New()
	channel, err := selectChannel(opts, streams, tree)
	if err != nil {
		return nil, err
	}
	benchOpts := []bench.Option{
		bench.WithLogger(logger),
		bench.WithState(tree),
		bench.WithFeedback(feedback.NewRequester(channel, feedback.WithLogger(logger))),
		bench.WithService(ToolsService, process.ServiceFactory(ToolsFileKey)),
	}
	for name, factory := range opts.Services {
		benchOpts = append(benchOpts, bench.WithService(name, factory))
	}
	c := bench.New(ctx, cfg, benchOpts...)
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close services", "err", err)
		}
	}()

	plan, err := reg.Expand(c)
	if err != nil {
		return nil, err
	}
	if plan, err = plan.Filter(opts.Only...); err != nil {
		return nil, err
	}
	if plan.Len() == 0 {
		return nil, domain.Configf("filter", "no test case matches %v", opts.Only)
	}

	reportOut := streams.Out
	if opts.Headless {
		reportOut = streams.Err
	}
	runOpts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithHooks(observability.LogHooks(logger)),
		runner.WithHooks(newReporter(reportOut, !opts.Headless).Hooks()),
	}
	if opts.RunID != "" {
		runOpts = append(runOpts, runner.WithRunID(opts.RunID))
	}

	if opts.Listen != "" {
		metrics := observability.NewMetrics()
		runOpts = append(runOpts, runner.WithHooks(metrics.Hooks()))
		stop, err := serveRelay(opts.Listen, tree, metrics.Handler(), logger)
		if err != nil {
			return nil, err
		}
		defer stop()
	}

	if opts.MCPPort > 0 {
		mcpCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		startMCP(mcpCtx, mcp.NewServer(tree, benchrig.Version, mcp.WithLogger(logger)), opts.MCPPort, logger)
	}

	if opts.Redis != "" {
		client := backend.NewClient(&backend.Options{Addr: opts.Redis})
		defer client.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("redis %s: %w", opts.Redis, err)
		}

		detach := redisadapter.NewPublisher(client, defaultString(opts.Room, DefaultRoom),
			redisadapter.WithLogger(logger)).Attach(tree)
		defer detach()

		var store ports.ReportStore = redisadapter.NewFromClient(client)
		runOpts = append(runOpts,
			runner.WithLocker(redisadapter.NewLocker(client, ""), lockKey(opts), runner.DefaultLockTTL),
			runner.WithLockWait(opts.LockWait),
			runner.WithReportStore(middleware.Chain(store, redact)),
		)
	}

	rep, err := runner.New(runOpts...).Run(c, plan)
	if err != nil {
		return rep, err
	}
	if !rep.OK() {
		return rep, ErrCasesFailed
	}
	return rep, nil
}

func (o RunOptions) plan() config.Plan {
	return config.Plan{
		Root:     o.Dir,
		TestType: o.TestType,
		Machine:  o.Machine,
		Product:  o.Product,
		Overlays: o.Overlays,
	}
}

// selectChannel picks how operator feedback is delivered: a script, JSON
// lines, the state tree when the relay or MCP is the only operator surface,
// or the terminal.
func selectChannel(opts RunOptions, streams IOStreams, tree *state.Tree) (feedback.Channel, error) {
	switch {
	case opts.Answers != "":
		return feedback.ParseScript(opts.Answers)
	case opts.Headless:
		return feedback.NewJSONChannel(streams.In, streams.Out), nil
	case (opts.Listen != "" || opts.MCPPort > 0) && !isTerminal(streams.In):
		return feedback.NewTreeChannel(tree), nil
	default:
		return feedback.NewConsoleChannel(streams.In, streams.Out,
			feedback.WithRenderer(tui.NewRenderer(80))), nil
	}
}

func newReporter(w io.Writer, interactive bool) *tui.Reporter {
	var opts []tui.ReporterOption
	if !interactive || !isTerminal(w) {
		opts = append(opts, tui.WithoutColor(), tui.WithoutProgress())
	}
	return tui.NewReporter(w, opts...)
}

func serveRelay(addr string, tree *state.Tree, metrics http.Handler, logger *slog.Logger) (func(), error) {
	relay := httpadapter.NewServer(tree, httpadapter.WithLogger(logger), httpadapter.WithMetrics(metrics))
	srv := &http.Server{Addr: addr, Handler: relay.Handler()}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Relay listening", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	// Surface bind errors before the run starts.
	select {
	case err := <-serverErrors:
		relay.Close()
		return nil, fmt.Errorf("relay %s: %w", addr, err)
	case <-time.After(50 * time.Millisecond):
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Relay shutdown incomplete", "err", err)
			_ = srv.Close()
		}
		relay.Close()
	}, nil
}

// startMCP serves srv in the background until ctx is done.
var startMCP = func(ctx context.Context, srv *mcp.Server, port int, logger *slog.Logger) {
	go func() {
		if err := srv.ServeSSE(ctx, port); err != nil {
			logger.Error("MCP server stopped", "port", port, "err", err)
		}
	}()
}

func lockKey(o RunOptions) string {
	if o.Machine != "" {
		return "station:" + o.Machine
	}
	host, err := os.Hostname()
	if err != nil {
		return "station:default"
	}
	return "station:" + host
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
