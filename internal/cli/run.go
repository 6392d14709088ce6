package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/scheduler"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one report now",
		Long: `Fetch GA4 metrics for every configured URL, write the run CSV and merge it
into the consolidated store. The run is logged like a scheduled one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.Scheduler.RunNow(commandContext(cmd), scheduler.TriggerManual)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if o.Summary != nil {
				fmt.Fprintf(out, "Ejecución %s\n", o.ExecutionID)
				fmt.Fprintf(out, "  URLs procesadas:  %d\n", o.Summary.TotalURLs)
				fmt.Fprintf(out, "  Con datos:        %d\n", o.Summary.Successful)
				fmt.Fprintf(out, "  Con advertencias: %d\n", o.Summary.WithWarnings)
				fmt.Fprintf(out, "  Con insights:     %d\n", o.Summary.WithInsights)
				fmt.Fprintf(out, "  Errores:          %d\n", o.Summary.Errors)
			}
			fmt.Fprintf(out, "Duración: %ss\n", o.DurationSeconds())
			fmt.Fprintf(out, "Log: %s\n", o.LogFile)
			if !o.Success {
				return errors.New(o.Error)
			}
			return nil
		},
	}
}
