package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kioku-game/kioku/internal/card"
	"github.com/kioku-game/kioku/internal/game"
	"github.com/kioku-game/kioku/internal/reminder"
	"github.com/kioku-game/kioku/internal/session"
	"github.com/kioku-game/kioku/internal/store"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Database string
	Hard     bool
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start an interactive review session",
		Long: `Start the game loop and run review sessions interactively.

The engine opens the SQLite database (creating it if it doesn't exist),
resumes from the stored sync watermark and starts the single-writer
update loop. Answers are read from stdin; a session ends when every card
has been answered correctly.

Example:
  kioku play
  kioku play --db /tmp/test.db --hard`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().BoolVar(&opts.Hard, "hard", false, "hard mode: half energy cost, no hints")

	return cmd
}

// stdoutNotifier prints due-card reminders between prompts.
type stdoutNotifier struct {
	w io.Writer
}

func (n stdoutNotifier) RemindDue(count int) error {
	_, err := fmt.Fprintf(n.w, "\n%d card(s) are due for review.\n", count)
	return err
}

func runPlay(opts *PlayOptions, cmd *cobra.Command) error {
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

	if opts.cfg.Lang != "" {
		if err := st.SetLang(cmd.Context(), opts.cfg.Lang); err != nil {
			return WrapExitError(ExitCommandError, "failed to set language", err)
		}
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// Resume serial numbering past everything already applied.
	watermark, err := st.MaxSerial(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read watermark", err)
	}
	transport := game.NewLoopback()
	transport.SetSerial(watermark)

	consumer, err := game.NewConsumer(ctx, st, corpus, transport,
		game.WithConfig(game.Config{
			PollInterval:     opts.cfg.Game.PollInterval.Std(),
			EnergyCheckEvery: opts.cfg.Game.EnergyCheckEvery.Std(),
			RegenPeriod:      opts.cfg.Game.RegenPeriod.Std(),
		}))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	ui := &playUI{
		in:     bufio.NewScanner(cmd.InOrStdin()),
		out:    cmd.OutOrStdout(),
		corpus: corpus,
	}
	consumer.Init(ui.onSession, ui.onPlayer)

	if opts.cfg.Reminder.Enabled {
		rem := reminder.New(st, stdoutNotifier{w: cmd.OutOrStdout()}, reminder.Config{
			Every:      opts.cfg.Reminder.Every.Std(),
			QuietFrom:  opts.cfg.Reminder.QuietFrom,
			QuietUntil: opts.cfg.Reminder.QuietUntil,
		})
		if err := rem.Start(); err != nil {
			return WrapExitError(ExitCommandError, "failed to start reminder", err)
		}
		defer rem.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- consumer.Run(ctx) }()

	mode := session.ModeEasy
	if opts.Hard {
		mode = session.ModeHard
	}
	playErr := ui.loop(ctx, consumer, mode)

	cancel()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	if playErr != nil && !errors.Is(playErr, context.Canceled) {
		return WrapExitError(ExitFailure, "session error", playErr)
	}

	slog.Info("engine stopped gracefully")
	return nil
}

// playUI drives the prompt loop over the consumer's published state.
type playUI struct {
	in     *bufio.Scanner
	out    io.Writer
	corpus *card.Corpus

	session atomic.Pointer[session.Session]
	hasSess atomic.Bool
	player  atomic.Pointer[game.Player]
}

func (ui *playUI) onSession(s *session.Session) {
	ui.session.Store(s)
	ui.hasSess.Store(s != nil)
}

func (ui *playUI) onPlayer(p game.Player) {
	ui.player.Store(&p)
}

// waitFor polls the published state until cond holds or the context ends.
func (ui *playUI) waitFor(ctx context.Context, cond func() bool) error {
	deadline := time.After(10 * time.Second)
	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("timed out waiting for engine state")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (ui *playUI) loop(ctx context.Context, consumer *game.Consumer, mode session.Mode) error {
	if err := ui.waitFor(ctx, func() bool { return ui.player.Load() != nil }); err != nil {
		return err
	}

	for {
		if p := ui.player.Load(); p != nil {
			fmt.Fprintf(ui.out, "\nLevel %d | Energy %d/%d | %d due\n",
				p.Level, p.Energy, p.MaxEnergy, p.ToReview)
		}

		if !ui.hasSess.Load() {
			fmt.Fprint(ui.out, "Press enter to start a session, or q to quit: ")
			line, ok := ui.readLine()
			if !ok || strings.EqualFold(line, "q") {
				return nil
			}
			if err := consumer.StartSession(ctx, mode); err != nil {
				if errors.Is(err, game.ErrNoEnergy) {
					fmt.Fprintln(ui.out, "Not enough energy. Come back later.")
					continue
				}
				return err
			}
			if err := ui.waitFor(ctx, ui.hasSess.Load); err != nil {
				return err
			}
		}

		summary, err := ui.runSession(ctx, consumer, mode)
		if err != nil {
			return err
		}
		if summary == nil {
			// Input ended mid-session; progress is persisted.
			return nil
		}

		fmt.Fprintf(ui.out, "\nSession complete: %d XP, %d%% accuracy in %s.\n",
			summary.XP, summary.Accuracy, time.Duration(summary.Time)*time.Millisecond)
		if summary.LevelUp != nil {
			fmt.Fprintf(ui.out, "Level up! You are now level %d with %d energy.\n",
				summary.LevelUp.NewLevel, summary.LevelUp.NewEnergy)
		}

		// Let the finished event settle before re-reading state.
		if err := ui.waitFor(ctx, func() bool { return !ui.hasSess.Load() }); err != nil {
			return err
		}
	}
}

// runSession prompts through the active session until it completes or
// input ends.
func (ui *playUI) runSession(ctx context.Context, consumer *game.Consumer, mode session.Mode) (*game.ResultSummary, error) {
	for {
		sess := ui.session.Load()
		if sess == nil {
			return nil, nil
		}

		next, remaining := nextCard(sess)
		if remaining == 0 {
			return nil, nil
		}

		c, err := ui.corpus.Card(next.ID)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(ui.out, "\n[%d left] %s\n", remaining, c.Sentence)
		if mode == session.ModeEasy {
			fmt.Fprintf(ui.out, "(%d meaning(s) accepted)\n", len(c.Meanings))
		}
		fmt.Fprint(ui.out, "> ")

		answer, ok := ui.readLine()
		if !ok {
			return nil, nil
		}
		correct := matchesMeaning(answer, c.Meanings)
		if correct {
			fmt.Fprintln(ui.out, "Correct!")
		} else {
			fmt.Fprintf(ui.out, "Not quite. It means: %s\n", strings.Join(c.Meanings, " | "))
		}

		summary, err := consumer.SubmitAnswer(ctx, next, correct)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			return summary, nil
		}
	}
}

func (ui *playUI) readLine() (string, bool) {
	if !ui.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(ui.in.Text()), true
}

// nextCard picks the card to show: fresh cards first, then failed ones
// cycling back for a re-attempt.
func nextCard(sess *session.Session) (store.Monster, int) {
	remaining := len(sess.Pending) + len(sess.Failed)
	if len(sess.Pending) > 0 {
		return sess.Pending[0], remaining
	}
	if len(sess.Failed) > 0 {
		return sess.Failed[0], remaining
	}
	return store.Monster{}, 0
}

func matchesMeaning(answer string, meanings []string) bool {
	for _, m := range meanings {
		if strings.EqualFold(strings.TrimSpace(m), answer) {
			return true
		}
	}
	return false
}
