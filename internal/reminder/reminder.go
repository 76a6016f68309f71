// Package reminder periodically checks for due cards and nudges the
// player through a pluggable notifier.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/kioku-game/kioku/internal/store"
)

// Notifier delivers a due-cards reminder.
type Notifier interface {
	RemindDue(count int) error
}

// Config tunes the reminder schedule.
type Config struct {
	// Every is the check interval.
	Every time.Duration

	// QuietFrom and QuietUntil bound the do-not-disturb window in local
	// hours. The window may wrap midnight; equal values disable it.
	QuietFrom  int
	QuietUntil int
}

func (c Config) withDefaults() Config {
	if c.Every == 0 {
		c.Every = time.Hour
	}
	return c
}

// Reminder owns the background check schedule. It only ever reads the
// store, so it can run alongside the game loop without coordination.
type Reminder struct {
	store    *store.Store
	notifier Notifier
	cfg      Config
	sched    *gocron.Scheduler
	now      func() time.Time
}

// New creates a reminder over the given store and notifier.
func New(st *store.Store, notifier Notifier, cfg Config) *Reminder {
	return &Reminder{
		store:    st,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		sched:    gocron.NewScheduler(time.Local),
		now:      time.Now,
	}
}

// Start launches the background schedule. Safe to call once.
func (r *Reminder) Start() error {
	if _, err := r.sched.Every(r.cfg.Every).Do(r.check); err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	r.sched.StartAsync()
	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (r *Reminder) Stop() {
	r.sched.Stop()
}

func (r *Reminder) check() {
	now := r.now()
	if r.quiet(now.Hour()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	due, err := r.store.CountDue(ctx, now.UnixMilli())
	if err != nil {
		slog.Error("reminder due check failed", "error", err)
		return
	}
	if due == 0 {
		return
	}

	slog.Debug("cards due, notifying", "count", due)
	if err := r.notifier.RemindDue(due); err != nil {
		slog.Error("reminder notify failed", "error", err, "due", due)
	}
}

// quiet reports whether the given local hour falls in the do-not-disturb
// window.
func (r *Reminder) quiet(hour int) bool {
	from, until := r.cfg.QuietFrom, r.cfg.QuietUntil
	switch {
	case from == until:
		return false
	case from < until:
		return hour >= from && hour < until
	default:
		return hour >= from || hour < until
	}
}
