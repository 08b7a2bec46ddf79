package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/benchrig/benchrig/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration of a test type",
	Long: `Loads the configuration cascade exactly as a station run would: the base
test-type file, the machine override, the product files from the lookup table
and the overlays. The merged keys are printed as YAML, preceded by the files
that contributed to them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("dir")
		testType, _ := cmd.Flags().GetString("type")
		product, _ := cmd.Flags().GetString("product")
		machine, _ := cmd.Flags().GetString("machine")
		overlays, _ := cmd.Flags().GetStringSlice("overlay")
		format, _ := cmd.Flags().GetString("format")

		cfg, err := config.Load(config.Plan{
			Root:     dir,
			TestType: testType,
			Product:  product,
			Machine:  machine,
			Overlays: overlays,
		}, config.WithLogger(logger))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if format == "text" {
			fmt.Fprint(out, config.Describe(cfg))
			return nil
		}
		for _, s := range cfg.Sources() {
			fmt.Fprintf(out, "# %s\n", s)
		}
		data, err := yaml.Marshal(cfg.Map())
		if err != nil {
			return fmt.Errorf("encode configuration: %w", err)
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringP("type", "t", "", "Test type")
	configCmd.Flags().StringP("product", "p", "", "Product")
	configCmd.Flags().StringP("machine", "m", "", "Machine override")
	configCmd.Flags().StringSlice("overlay", nil, "Extra configuration files")
	configCmd.Flags().String("format", "yaml", "Output format: yaml or text")
	_ = configCmd.MarkFlagRequired("type")
}
