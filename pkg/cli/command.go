package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benchrig/benchrig/internal/presentation/graph"
	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/config"
	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/registry"
)

// NewRunCommand builds the command tree of a station binary: "run" executes
// the registered suites and "list" prints the expanded plan.
func NewRunCommand(reg *registry.Registry, options ...Option) *cobra.Command {
	opts := &RunOptions{}
	for _, o := range options {
		o(opts)
	}
	root := &cobra.Command{
		Use:           filepath.Base(os.Args[0]),
		Short:         "Run the registered test suites of this station",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.Dir, "dir", ".", "Configuration root directory")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	root.AddCommand(newRunCmd(reg, opts), newListCmd(reg, opts))
	return root
}

func newRunCmd(reg *registry.Registry, opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the test plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Headless && opts.Answers != "" {
				return fmt.Errorf("--headless and --answers cannot be used together")
			}
			streams := IOStreams{In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}

			signals := NewSignals(cmd.Context(), streams.Err)
			defer signals.Stop()

			rep, err := Execute(signals.Context(), reg, *opts, streams)
			if err != nil && rep == nil {
				signals.CheckRace()
			}
			return err
		},
	}
	opts.bindPlan(cmd.Flags())
	opts.bindRun(cmd.Flags())
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newListCmd(reg *registry.Registry, opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the expanded test cases in execution order",
		Long: `Prints one "suite/id" line per case. Without --type only suites whose
parameters do not come from configuration can be expanded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			if opts.TestType != "" {
				loaded, err := config.Load(opts.plan())
				if err != nil {
					return err
				}
				cfg = loaded
			}
			var benchOpts []bench.Option
			for name, factory := range opts.Services {
				benchOpts = append(benchOpts, bench.WithService(name, factory))
			}
			c := bench.New(cmd.Context(), cfg, benchOpts...)
			defer c.Close()
			plan, err := reg.Expand(c)
			if err != nil {
				return err
			}
			if plan, err = plan.Filter(opts.Only...); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if mermaid, _ := cmd.Flags().GetBool("mermaid"); mermaid {
				fmt.Fprint(out, graph.GenerateMermaid(graph.NodesFromPlan(plan)))
				return nil
			}
			for _, inst := range plan.Instances {
				var tags []string
				if inst.Criticality != domain.NotCritical {
					tags = append(tags, inst.Criticality.String())
				}
				if inst.Skip {
					tags = append(tags, "not_implemented")
				}
				if len(tags) > 0 {
					fmt.Fprintf(out, "%s [%s]\n", inst.Key(), strings.Join(tags, ","))
				} else {
					fmt.Fprintln(out, inst.Key())
				}
			}
			return nil
		},
	}
	opts.bindPlan(cmd.Flags())
	cmd.Flags().Bool("mermaid", false, "Print the plan as a Mermaid flowchart")
	return cmd
}

// Main runs the station command tree and exits with 1 on failed cases or
// aborted runs and 2 on configuration problems.
func Main(reg *registry.Registry, options ...Option) {
	if err := NewRunCommand(reg, options...).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(ExitCode(err))
	}
}

// ExitCode maps a run error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, domain.ErrPredicate):
		return 2
	default:
		return 1
	}
}
