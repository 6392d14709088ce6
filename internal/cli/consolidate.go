package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
)

// NewConsolidateCmd creates the consolidate command
func NewConsolidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Merge report CSVs into the consolidated store",
		Long: `Without --file, rebuild the store from every report_*.csv in the data
directory. With --file, merge that one CSV into the existing store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, _ := cmd.Flags().GetString("file")

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			var store *report.Store
			if file != "" {
				store, err = a.Store.ConsolidateIncremental(ctx, file)
			} else {
				store, err = a.Store.ConsolidateAll(ctx, a.Config.Paths.DataDir)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store: %s\n", a.Store.Key())
			fmt.Fprintf(out, "  Ejecuciones: %d\n", store.Metadata.TotalExecutions)
			fmt.Fprintf(out, "  URLs únicas: %d\n", len(store.Metadata.DistinctURLs))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "Merge a single report CSV")
	return cmd
}
