package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/consolidate"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/stats"
)

// NewViewCmd creates the view command
func NewViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Inspect the consolidated store",
		Long: `Print the same JSON views the HTTP API serves:
  stats           - Global overview
  executions      - Every execution
  urls            - Per-URL aggregates
  execution <id>  - One execution
  url <query>     - History of the best matching URL`,
	}

	cmd.AddCommand(
		viewCmd("stats", "Global overview", cobra.NoArgs,
			func(s *report.Store, _ []string) (any, error) { return stats.Summarize(s), nil }),
		viewCmd("executions", "Every execution", cobra.NoArgs,
			func(s *report.Store, _ []string) (any, error) {
				list := stats.Executions(s)
				return map[string]any{"total": len(list), "executions": list}, nil
			}),
		viewCmd("urls", "Per-URL aggregates", cobra.NoArgs,
			func(s *report.Store, _ []string) (any, error) {
				list := stats.URLStats(s)
				return map[string]any{"total": len(list), "urls": list}, nil
			}),
		viewCmd("execution <id>", "One execution", cobra.ExactArgs(1),
			func(s *report.Store, args []string) (any, error) {
				detail, err := stats.Detail(s, args[0])
				if errors.Is(err, stats.ErrExecutionNotFound) {
					return nil, fmt.Errorf("ejecución %q no encontrada (disponibles: %v)", args[0], stats.ExecutionIDs(s))
				}
				return detail, err
			}),
		viewCmd("url <query>", "History of the best matching URL", cobra.ExactArgs(1),
			func(s *report.Store, args []string) (any, error) {
				history, err := stats.History(s, args[0])
				if errors.Is(err, stats.ErrNoMatch) {
					return nil, fmt.Errorf("URL %q no encontrada (disponibles: %v)", args[0], s.Metadata.DistinctURLs)
				}
				return history, err
			}),
	)
	return cmd
}

// viewCmd loads the store and prints the value built by view as JSON.
func viewCmd(use, short string, args cobra.PositionalArgs, view func(*report.Store, []string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.Store.Load(commandContext(cmd))
			if errors.Is(err, consolidate.ErrStoreNotFound) {
				return fmt.Errorf("archivo de datos no encontrado: %s (ejecuta primero: reportctl run o reportctl consolidate)", a.Store.Key())
			}
			if err != nil {
				return err
			}

			v, err := view(store, argv)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}
