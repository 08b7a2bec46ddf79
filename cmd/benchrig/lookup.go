package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/benchrig/benchrig/pkg/config"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Resolve a product through the lookup table",
	Long: `Without --type the test types of the lookup table are listed. With --type
alone its products are listed. With both, the folder and the files a run
would load are printed in order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		file, _ := cmd.Flags().GetString("file")
		testType, _ := cmd.Flags().GetString("type")
		product, _ := cmd.Flags().GetString("product")

		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		table, err := config.LoadLookup(file)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case testType == "":
			for _, t := range table.TestTypes() {
				fmt.Fprintln(out, t)
			}
		case product == "":
			for _, p := range table.Products(testType) {
				fmt.Fprintln(out, p)
			}
		default:
			entry, err := table.Resolve(testType, product)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "folder: %s\n", entry.Folder)
			for _, p := range entry.Paths() {
				fmt.Fprintln(out, p)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringP("type", "t", "", "Test type section")
	lookupCmd.Flags().StringP("product", "p", "", "Product name")
	lookupCmd.Flags().String("file", config.DefaultLookupFile, "Lookup table, relative to --dir")
}
