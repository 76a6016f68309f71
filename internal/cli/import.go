package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kioku-game/kioku/internal/backup"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <backup-file>",
		Short: "Replace the local game state from a backup document",
		Long: `Validate a backup document and replace the whole local game state
with it. A document that fails validation changes nothing.

Example:
  kioku import backup.json
  kioku import --db /tmp/test.db backup.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read backup", err)
	}

	snap, err := backup.Decode(raw)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid backup document", err)
	}

	st, err := opts.openStore(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := backup.Restore(cmd.Context(), st, snap); err != nil {
		return WrapExitError(ExitFailure, "import failed", err)
	}

	slog.Info("backup imported", "monsters", len(snap.Monsters), "level", snap.Level)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d card(s) at level %d.\n", len(snap.Monsters), snap.Level)
	return nil
}
