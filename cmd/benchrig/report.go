package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benchrig/benchrig/internal/presentation/graph"
	"github.com/benchrig/benchrig/internal/presentation/tui"
	redisadapter "github.com/benchrig/benchrig/pkg/adapters/redis"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "List stored run reports or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("redis")
		asJSON, _ := cmd.Flags().GetBool("json")
		mermaid, _ := cmd.Flags().GetBool("mermaid")

		store := redisadapter.New(addr, "", 0)
		defer store.Close()

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			ids, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		}

		rep, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if mermaid {
			fmt.Fprint(out, graph.GenerateMermaid(graph.NodesFromReport(rep)))
			return nil
		}
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		text, err := tui.NewRenderer(100)(tui.ReportMarkdown(rep))
		if err != nil {
			return err
		}
		fmt.Fprint(out, text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("redis", "localhost:6379", "Redis address holding the reports")
	reportCmd.Flags().Bool("json", false, "Print the raw report as JSON")
	reportCmd.Flags().Bool("mermaid", false, "Print the case outcomes as a Mermaid flowchart")
}
