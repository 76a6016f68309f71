package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kioku-game/kioku/internal/backup"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	Output   string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the full game state as a backup document",
		Long: `Export the full game state, cards included, as a JSON backup document.

Example:
  kioku export -o backup.json
  kioku export --db /tmp/test.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	st, err := opts.openStore(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	raw, err := backup.Export(cmd.Context(), st)
	if err != nil {
		return WrapExitError(ExitFailure, "export failed", err)
	}

	if opts.Output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	}
	if err := os.WriteFile(opts.Output, raw, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write backup", err)
	}
	slog.Info("backup written", "path", opts.Output, "bytes", len(raw))
	return nil
}
