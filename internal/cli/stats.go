package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kioku-game/kioku/internal/game"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Database string
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show player progress",
		Long: `Show the player's level, XP, energy, day streak and card counts.

Example:
  kioku stats
  kioku stats --db /tmp/test.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	st, err := opts.openStore(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	corpus, err := opts.loadCorpus()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load corpus", err)
	}

	player, err := game.BuildPlayer(cmd.Context(), st, corpus.Len(), time.Now())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build stats", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(player)
	}
	return out.Success(formatPlayer(player))
}

func formatPlayer(p game.Player) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Level %d", p.Level)
	if p.TotalXP > 0 {
		fmt.Fprintf(&b, "  (%d/%d XP)", p.XP, p.TotalXP)
	}
	fmt.Fprintf(&b, "\nEnergy  %d/%d\n", p.Energy, p.MaxEnergy)
	fmt.Fprintf(&b, "Streak  %d day(s), %d card(s) studied today\n", p.Streak, p.StudiedToday)
	fmt.Fprintf(&b, "Cards   %d due, %d seen, %d mastered, %d total", p.ToReview, p.Seen, p.Mastered, p.Total)
	return b.String()
}
