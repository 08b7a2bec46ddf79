package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/benchrig/benchrig/pkg/bench"
)

// DefaultRoom is the Redis channel used when --redis is set without --room.
const DefaultRoom = "benchrig"

// RunOptions contains the configuration of one station run.
type RunOptions struct {
	Dir      string
	TestType string
	Product  string
	Machine  string
	Overlays []string
	Only     []string

	// Listen serves the HTTP relay on this address during the run.
	Listen string
	// MCPPort serves the run's state tree to MCP clients over SSE.
	MCPPort int
	// Redis enables the realtime channel, the station lock and the report
	// store on this address.
	Redis string
	Room  string

	// Headless exchanges feedback as JSON lines on stdin/stdout.
	Headless bool
	// Answers replays a comma separated script ("pass,fail,scan=SN1").
	Answers string

	// Redact masks parameter and criterion values whose names match these
	// patterns in stored reports.
	Redact []string

	RunID    string
	LockWait time.Duration
	LogLevel string

	// Services are registered on the run Context before expansion.
	Services map[string]bench.ServiceFactory
}

// Option configures the station command tree.
type Option func(*RunOptions)

// WithService registers a lazy service handle, such as an instrument
// connection, on every run.
func WithService(name string, factory bench.ServiceFactory) Option {
	return func(o *RunOptions) {
		if o.Services == nil {
			o.Services = make(map[string]bench.ServiceFactory)
		}
		o.Services[name] = factory
	}
}

// IOStreams are the process streams a run reads and writes.
type IOStreams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// DefaultStreams returns stdin, stdout and stderr.
func DefaultStreams() IOStreams {
	return IOStreams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

func (o *RunOptions) bindPlan(fs *pflag.FlagSet) {
	fs.StringVarP(&o.TestType, "type", "t", "", "Test type, selects the base configuration file")
	fs.StringVarP(&o.Product, "product", "p", "", "Product name resolved through the lookup table")
	fs.StringVarP(&o.Machine, "machine", "m", "", "Machine override under machines/")
	fs.StringSliceVar(&o.Overlays, "overlay", nil, "Extra configuration files loaded last")
	fs.StringSliceVar(&o.Only, "only", nil, "Run only cases matching these suite/id glob patterns")
}

func (o *RunOptions) bindRun(fs *pflag.FlagSet) {
	fs.StringVar(&o.Listen, "listen", "", "Serve the HTTP relay on this address (e.g. :8080)")
	fs.IntVar(&o.MCPPort, "mcp-port", 0, "Serve the run state and feedback to MCP clients over SSE on this port")
	fs.StringVar(&o.Redis, "redis", "", "Redis address for the realtime channel, station lock and reports")
	fs.StringVar(&o.Room, "room", DefaultRoom, "Redis channel name for state mutations")
	fs.BoolVar(&o.Headless, "headless", false, "Exchange feedback as JSON lines on stdin/stdout")
	fs.StringVar(&o.Answers, "answers", "", "Scripted feedback answers, comma separated")
	fs.StringSliceVar(&o.Redact, "redact", nil, "Mask stored values of parameters and criteria matching these patterns")
	fs.StringVar(&o.RunID, "run-id", "", "Run identifier (default: random UUID)")
	fs.DurationVar(&o.LockWait, "lock-wait", 0, "How long to wait for a busy station lock")
}
