// Package cli provides the reportctl command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/app"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/config"
)

const defaultConfigPath = "config/config.yaml"

// NewRootCmd creates the root command for reportctl
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reportctl",
		Short: "GA4 URL report collector",
		Long: `reportctl runs GA4 page reports, consolidates them into the report store
and inspects the result without going through the HTTP API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "Path to the YAML config file")

	cmd.AddCommand(
		NewRunCmd(),
		NewConsolidateCmd(),
		NewURLsCmd(),
		NewViewCmd(),
	)
	return cmd
}

// loadApp builds the service components from the --config flag.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return app.New(commandContext(cmd), cfg)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
