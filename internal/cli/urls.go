package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/urlconfig"
)

// NewURLsCmd creates the urls command
func NewURLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "urls",
		Short: "Manage the URL list",
		Long: `Manage the URLs queried on every run:
  list   - Show the configured URLs
  add    - Append a URL
  remove - Remove a URL by value or 1-based position
  clear  - Remove every URL`,
		RunE: listURLs,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show the configured URLs",
			Args:  cobra.NoArgs,
			RunE:  listURLs,
		},
		&cobra.Command{
			Use:   "add <url>",
			Short: "Append a URL",
			Args:  cobra.ExactArgs(1),
			RunE:  addURL,
		},
		&cobra.Command{
			Use:   "remove <url|index>",
			Short: "Remove a URL by value or 1-based position",
			Args:  cobra.ExactArgs(1),
			RunE:  removeURL,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every URL",
			Args:  cobra.NoArgs,
			RunE:  clearURLs,
		},
	)
	return cmd
}

func listURLs(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, err := a.URLs.List(commandContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(cfg.URLs) == 0 {
		fmt.Fprintln(out, "No hay URLs configuradas")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tURL")
	for i, u := range cfg.URLs {
		fmt.Fprintf(w, "%d\t%s\n", i+1, u)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal: %d (actualizado %s)\n", len(cfg.URLs), cfg.LastUpdated)
	return nil
}

func addURL(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	added, total, err := a.URLs.Add(commandContext(cmd), args[0])
	if errors.Is(err, urlconfig.ErrDuplicate) {
		return fmt.Errorf("la URL %q ya existe", added)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "URL agregada: %s (total %d)\n", added, total)
	return nil
}

func removeURL(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, total, err := a.URLs.Remove(commandContext(cmd), args[0])
	if errors.Is(err, urlconfig.ErrNotFound) {
		return fmt.Errorf("URL %q no encontrada", removed)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "URL eliminada: %s (total %d)\n", removed, total)
	return nil
}

func clearURLs(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.URLs.Clear(commandContext(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Se eliminaron %d URLs\n", count)
	return nil
}
