package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kioku-game/kioku/internal/backup"
	"github.com/kioku-game/kioku/internal/card"
	"github.com/kioku-game/kioku/internal/progression"
	"github.com/kioku-game/kioku/internal/session"
	"github.com/kioku-game/kioku/internal/srs"
	"github.com/kioku-game/kioku/internal/store"
)

// Config tunes the consumer's cooperative loop. Zero values fall back to
// the production defaults; tests shrink them.
type Config struct {
	// PollInterval is how long the loop sleeps between drain passes when
	// no update signal arrives.
	PollInterval time.Duration

	// EnergyCheckEvery gates how often the maintenance pass recomputes
	// energy regeneration.
	EnergyCheckEvery time.Duration

	// RegenPeriod is the wall-clock time to regenerate one energy point.
	RegenPeriod time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.EnergyCheckEvery == 0 {
		c.EnergyCheckEvery = 10 * time.Second
	}
	if c.RegenPeriod == 0 {
		c.RegenPeriod = 6 * time.Minute
	}
	return c
}

// Consumer owns the single queue of inbound replicated updates and all
// local game state mutation.
//
// Thread-safety model:
//   - Deliver(): safe from any goroutine (transport callbacks)
//   - Run(): must be called from exactly one goroutine
//   - Producers (StartSession, SubmitAnswer, ...): safe from any
//     goroutine; they share the consumer's mutex with update dispatch, so
//     optimistic local applies never interleave with queued applies.
type Consumer struct {
	mu        sync.Mutex
	store     *store.Store
	corpus    *card.Corpus
	sessions  *session.Manager
	transport Transport
	queue     *updateQueue
	actorID   string
	cfg       Config
	now       func() time.Time

	sessionHook func(*session.Session)
	playerHook  func(Player)

	lastEnergyCheck time.Time
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithConfig overrides the loop tuning.
func WithConfig(cfg Config) Option {
	return func(c *Consumer) { c.cfg = cfg.withDefaults() }
}

// WithClock overrides the wall clock. Used by tests for deterministic
// scheduling and regeneration.
func WithClock(now func() time.Time) Option {
	return func(c *Consumer) { c.now = now }
}

// NewConsumer creates a consumer over the given store, corpus and
// transport, attaching itself as a delivery sink if the transport supports
// it.
func NewConsumer(ctx context.Context, st *store.Store, corpus *card.Corpus, transport Transport, opts ...Option) (*Consumer, error) {
	actorID, err := st.ActorID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve actor id: %w", err)
	}

	c := &Consumer{
		store:     st,
		corpus:    corpus,
		sessions:  session.NewManager(st, corpus.Len()),
		transport: transport,
		queue:     newUpdateQueue(),
		actorID:   actorID,
		cfg:       Config{}.withDefaults(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if attacher, ok := transport.(SinkAttacher); ok {
		attacher.Attach(c.Deliver)
	}

	return c, nil
}

// ActorID returns this device's replication identity.
func (c *Consumer) ActorID() string {
	return c.actorID
}

// Deliver submits an inbound update for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
// Returns false if the consumer has been stopped.
func (c *Consumer) Deliver(u Update) bool {
	return c.queue.Enqueue(u)
}

// Init enqueues the local bootstrap pseudo-event registering the observer
// hooks. Call it once, before or after Run starts; it is processed ahead
// of any real update delivered afterwards.
func (c *Consumer) Init(sessionHook func(*session.Session), playerHook func(Player)) bool {
	return c.queue.Enqueue(Update{
		Serial:    -1,
		MaxSerial: 0,
		Payload: InitEvent{
			ActorID:     c.actorID,
			SessionHook: sessionHook,
			PlayerHook:  playerHook,
		},
	})
}

// Run starts the cooperative update loop. Blocks until the context is
// cancelled or Stop() is called.
//
// Each pass drains the pending queue to empty in delivery order, performs
// one energy maintenance pass, then waits for the next update signal or
// the poll interval, whichever comes first. Externally pushed updates are
// therefore picked up within one interval without the producer and the
// loop sharing a lock on the wait itself.
//
// ERROR HANDLING: On update processing failure, the error is logged with
// update context and processing continues. Retrying would reorder the log;
// the event source retains history past the watermark for manual replay.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("consumer starting", "actor", c.actorID)

	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()

	for {
		for {
			u, ok := c.queue.TryDequeue()
			if !ok {
				break
			}
			c.apply(ctx, u)
		}

		c.regenerate(ctx)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.cfg.PollInterval)

		select {
		case <-ctx.Done():
			slog.Info("consumer stopping: context cancelled")
			c.queue.Close()
			return ctx.Err()

		case <-c.queue.Wait():
			// The signal coalesces: a poll pass may have drained the item
			// it announced, leaving a stale wakeup behind. Only an actually
			// closed and drained queue ends the loop.
			if c.queue.Closed() && c.queue.Len() == 0 {
				slog.Info("consumer stopping: queue closed")
				return nil
			}

		case <-timer.C:
		}
	}
}

// Stop gracefully shuts down the consumer by closing the update queue,
// which causes Run() to return once the backlog is drained.
func (c *Consumer) Stop() {
	c.queue.Close()
}

// apply processes one delivered update and advances the watermark when the
// update closes its batch. Called only from the Run goroutine.
func (c *Consumer) apply(ctx context.Context, u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Foreign actors' updates carry no local effects: this log is a
	// private outbox/inbox per device. The watermark still advances so
	// redelivery resumes past them.
	if u.Payload.Actor() == c.actorID {
		if err := c.dispatch(ctx, u.Payload); err != nil {
			slog.Error("update processing failed",
				"error", err,
				"cmd", u.Payload.cmd(),
				"serial", u.Serial,
			)
		}
	}

	if u.Serial == u.MaxSerial && u.Serial > 0 {
		if err := c.store.SetMaxSerial(ctx, u.Serial); err != nil {
			slog.Error("persist watermark failed", "error", err, "serial", u.Serial)
		}
	}
}

// dispatch routes a payload to its handler. The switch is exhaustive over
// the closed payload set.
func (c *Consumer) dispatch(ctx context.Context, p Payload) error {
	switch e := p.(type) {
	case InitEvent:
		return c.applyInit(ctx, e)
	case NewSessionEvent:
		return c.applyNewSession(ctx, e)
	case CardOutcomeEvent:
		return c.applyCardOutcome(ctx, e)
	case SessionFinishedEvent:
		return c.applySessionFinished(ctx, e)
	case ImportBackupEvent:
		return c.applyImportBackup(ctx, e)
	default:
		return fmt.Errorf("unhandled payload type %T", p)
	}
}

func (c *Consumer) applyInit(ctx context.Context, e InitEvent) error {
	c.sessionHook = e.SessionHook
	c.playerHook = e.PlayerHook

	sess, err := c.loadSession(ctx)
	if err != nil {
		return err
	}
	c.publishSession(sess)
	return c.publishPlayer(ctx)
}

func (c *Consumer) applyNewSession(ctx context.Context, e NewSessionEvent) error {
	// Defensive re-check of the producer's advisory energy check: a
	// malformed or raced update must not drive energy negative.
	energy := e.Energy
	if energy < 0 {
		slog.Warn("new-session with negative energy, clamping", "energy", energy)
		energy = 0
	}
	if err := c.store.SetEnergy(ctx, energy, e.Time); err != nil {
		return err
	}

	sess, err := c.sessions.Create(ctx, e.Time, e.Mode)
	if err != nil {
		return err
	}
	if err := c.saveSession(ctx, sess); err != nil {
		return err
	}
	if err := c.store.SetShowIntro(ctx, false); err != nil {
		return err
	}

	slog.Info("session started", "start", sess.Start, "mode", sess.Mode, "cards", len(sess.Pending))
	c.publishSession(sess)
	return c.publishPlayer(ctx)
}

func (c *Consumer) applyCardOutcome(ctx context.Context, e CardOutcomeEvent) error {
	sess, err := c.loadSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil || sess.Start != e.SessionID {
		// Benign race: the session completed or was replaced on another
		// device before this outcome arrived.
		slog.Debug("outcome for stale session, discarding",
			"session_id", e.SessionID, "card", e.Monster.ID)
		return nil
	}

	// Idempotency guard: at-least-once delivery and the optimistic local
	// apply both hand us outcomes we may have already recorded.
	if sess.Contains(e.Monster.ID, e.Monster.Seen) {
		slog.Debug("duplicate outcome, skipping (idempotent)",
			"card", e.Monster.ID, "seen", e.Monster.Seen)
		c.publishSession(sess)
		return nil
	}

	if !sess.Apply(e.Monster) {
		slog.Debug("outcome for card not awaiting review, discarding", "card", e.Monster.ID)
		return nil
	}
	sess.XP += e.XP
	if err := c.saveSession(ctx, sess); err != nil {
		return err
	}

	c.publishSession(sess)
	return nil
}

func (c *Consumer) applySessionFinished(ctx context.Context, e SessionFinishedEvent) error {
	sess := e.Session
	if sess == nil {
		return fmt.Errorf("session-finished without session")
	}

	// Bulk upsert, last write wins per card: on a two-device race the
	// later finish overwrites record-by-record.
	if err := c.store.BulkPutMonsters(ctx, sess.Correct); err != nil {
		return err
	}

	level, err := c.store.Level(ctx)
	if err != nil {
		return err
	}
	xp, err := c.store.XP(ctx)
	if err != nil {
		return err
	}

	newXP, newLevel := progression.ApplyXP(xp, level, sess.XP)
	if newLevel > level {
		// Level-up refills to the new capacity outright, not additively.
		if err := c.store.SetEnergy(ctx, progression.MaxEnergy(newLevel), c.now().UnixMilli()); err != nil {
			return err
		}
		slog.Info("level up", "from", level, "to", newLevel)
	}
	if err := c.store.SetXP(ctx, newXP); err != nil {
		return err
	}
	if err := c.store.SetLevel(ctx, newLevel); err != nil {
		return err
	}

	if err := c.recordPlayedDay(ctx, sess); err != nil {
		return err
	}

	if err := c.clearSession(ctx); err != nil {
		return err
	}

	slog.Info("session finished",
		"start", sess.Start,
		"correct", len(sess.Correct),
		"xp", sess.XP,
	)
	c.publishSession(nil)
	return c.publishPlayer(ctx)
}

// recordPlayedDay updates the daily streak and studied-today counters from
// a completed session. The completion day is the local midnight of the
// last recorded review.
func (c *Consumer) recordPlayedDay(ctx context.Context, sess *session.Session) error {
	end := c.now()
	if n := len(sess.Correct); n > 0 {
		end = time.UnixMilli(sess.Correct[n-1].Seen)
	}
	playedDay := srs.Midnight(end)

	lastPlayed, err := c.store.LastPlayed(ctx)
	if err != nil {
		return err
	}

	if lastPlayed >= playedDay.UnixMilli() {
		// Same day: accumulate only.
		studied, err := c.store.StudiedToday(ctx)
		if err != nil {
			return err
		}
		return c.store.SetStudiedToday(ctx, studied+len(sess.Correct))
	}

	// New calendar day: the counter restarts, and the day streak continues
	// only if the previous played day was exactly yesterday.
	if err := c.store.SetStudiedToday(ctx, len(sess.Correct)); err != nil {
		return err
	}
	if err := c.store.SetLastPlayed(ctx, playedDay.UnixMilli()); err != nil {
		return err
	}

	dayStreak := 1
	if lastPlayed >= playedDay.AddDate(0, 0, -1).UnixMilli() {
		prev, err := c.store.Streak(ctx)
		if err != nil {
			return err
		}
		dayStreak = prev + 1
	}
	return c.store.SetStreak(ctx, dayStreak)
}

func (c *Consumer) applyImportBackup(ctx context.Context, e ImportBackupEvent) error {
	// Validation already happened at the producer, but the payload crossed
	// a wire since then: re-validate, fail closed, never partially import.
	snap, err := backup.Decode(e.Backup)
	if err != nil {
		return fmt.Errorf("import backup: %w", err)
	}
	if err := backup.Restore(ctx, c.store, snap); err != nil {
		return fmt.Errorf("import backup: %w", err)
	}

	slog.Info("backup imported", "monsters", len(snap.Monsters), "level", snap.Level)

	sess, err := c.loadSession(ctx)
	if err != nil {
		return err
	}
	c.publishSession(sess)
	return c.publishPlayer(ctx)
}

// regenerate is the periodic maintenance pass: it lazily replays elapsed
// wall-clock time into energy, one whole regeneration period at a time,
// until caught up or at capacity. Advancing the stored timestamp by whole
// periods only makes the pass idempotent under repeated ticks and correct
// after long process suspensions.
func (c *Consumer) regenerate(ctx context.Context) {
	now := c.now()
	if now.Sub(c.lastEnergyCheck) < c.cfg.EnergyCheckEvery {
		return
	}
	c.lastEnergyCheck = now

	c.mu.Lock()
	defer c.mu.Unlock()

	energy, ts, err := c.store.Energy(ctx)
	if err != nil {
		slog.Error("energy read failed", "error", err)
		return
	}
	level, err := c.store.Level(ctx)
	if err != nil {
		slog.Error("level read failed", "error", err)
		return
	}

	capacity := progression.MaxEnergy(level)
	period := c.cfg.RegenPeriod.Milliseconds()
	nowMillis := now.UnixMilli()

	changed := false
	for energy < capacity && nowMillis-ts >= period {
		ts += period
		energy++
		changed = true
	}
	if !changed {
		return
	}

	if err := c.store.SetEnergy(ctx, energy, ts); err != nil {
		slog.Error("energy write failed", "error", err)
		return
	}
	if err := c.publishPlayer(ctx); err != nil {
		slog.Error("publish player failed", "error", err)
	}
}

// loadSession reads the active session, or nil when none is active.
func (c *Consumer) loadSession(ctx context.Context) (*session.Session, error) {
	raw, err := c.store.SessionJSON(ctx)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var sess session.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decode stored session: %w", err)
	}
	return &sess, nil
}

func (c *Consumer) saveSession(ctx context.Context, sess *session.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return c.store.SetSessionJSON(ctx, string(raw))
}

func (c *Consumer) clearSession(ctx context.Context) error {
	return c.store.SetSessionJSON(ctx, "")
}

func (c *Consumer) publishSession(sess *session.Session) {
	if c.sessionHook != nil {
		c.sessionHook(sess)
	}
}

func (c *Consumer) publishPlayer(ctx context.Context) error {
	if c.playerHook == nil {
		return nil
	}
	p, err := BuildPlayer(ctx, c.store, c.corpus.Len(), c.now())
	if err != nil {
		return err
	}
	c.playerHook(p)
	return nil
}
