package game

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioku-game/kioku/internal/card"
	"github.com/kioku-game/kioku/internal/progression"
	"github.com/kioku-game/kioku/internal/session"
	"github.com/kioku-game/kioku/internal/store"
	"github.com/kioku-game/kioku/internal/testutil"
)

// testStart is a fixed weekday noon, away from midnight boundaries.
var testStart = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.Local)

type fixture struct {
	consumer *Consumer
	store    *store.Store
	clock    *testutil.Clock
	loopback *Loopback

	// sent records every update the loopback delivered, for redelivery
	// tests.
	sent []Update
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	corpus, err := card.Load("")
	require.NoError(t, err)

	f := &fixture{
		store:    st,
		clock:    testutil.NewClock(testStart),
		loopback: NewLoopback(),
	}
	f.loopback.Attach(func(u Update) bool {
		f.sent = append(f.sent, u)
		return true
	})

	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.consumer, err = NewConsumer(context.Background(), st, corpus, f.loopback, opts...)
	require.NoError(t, err)
	return f
}

// drain processes every queued update synchronously, standing in for the
// Run loop.
func (f *fixture) drain(ctx context.Context) {
	for {
		u, ok := f.consumer.queue.TryDequeue()
		if !ok {
			return
		}
		f.consumer.apply(ctx, u)
	}
}

func (f *fixture) activeSession(t *testing.T, ctx context.Context) *session.Session {
	t.Helper()
	sess, err := f.consumer.loadSession(ctx)
	require.NoError(t, err)
	return sess
}

func TestFullSessionFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.consumer.StartSession(ctx, session.ModeEasy))
	f.drain(ctx)

	sess := f.activeSession(t, ctx)
	require.NotNil(t, sess)
	assert.Len(t, sess.Pending, session.Size)
	assert.Equal(t, session.ModeEasy, sess.Mode)

	energy, _, err := f.store.Energy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30-PlayEnergyCost, energy)

	showIntro, err := f.store.ShowIntro(ctx)
	require.NoError(t, err)
	assert.False(t, showIntro)

	// Answer every card correctly; only the last answer yields a summary.
	var summary *ResultSummary
	for len(sess.Pending) > 0 {
		m := sess.Pending[0]
		f.clock.Advance(time.Second)
		summary, err = f.consumer.SubmitAnswer(ctx, m, true)
		require.NoError(t, err)
		f.drain(ctx)
		sess = f.activeSession(t, ctx)
		if sess == nil {
			break
		}
	}

	require.NotNil(t, summary)
	assert.Equal(t, 100, summary.Accuracy)
	assert.Equal(t, session.Size, summary.XP) // streak 1 at level 1 awards 1 XP per card
	assert.Nil(t, summary.LevelUp)

	// The finished event cleared the session and persisted everything.
	assert.Nil(t, f.activeSession(t, ctx))

	count, err := f.store.CountMonsters(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Size, count)

	xp, err := f.store.XP(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Size, xp)

	streak, err := f.store.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)

	studied, err := f.store.StudiedToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Size, studied)
}

func TestDuplicateOutcomeDeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.consumer.StartSession(ctx, session.ModeEasy))
	f.drain(ctx)
	sess := f.activeSession(t, ctx)
	require.NotNil(t, sess)

	f.clock.Advance(time.Second)
	_, err := f.consumer.SubmitAnswer(ctx, sess.Pending[0], true)
	require.NoError(t, err)
	f.drain(ctx)

	after := f.activeSession(t, ctx)
	require.Len(t, after.Correct, 1)
	xpBefore := after.XP

	// Redeliver the recorded outcome update verbatim.
	last := f.sent[len(f.sent)-1]
	require.IsType(t, CardOutcomeEvent{}, last.Payload)
	f.consumer.Deliver(last)
	f.drain(ctx)

	again := f.activeSession(t, ctx)
	assert.Len(t, again.Correct, 1)
	assert.Equal(t, xpBefore, again.XP)
}

func TestHardModeCostsHalf(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.consumer.StartSession(ctx, session.ModeHard))
	f.drain(ctx)

	energy, _, err := f.store.Energy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30-PlayEnergyCost/2, energy)
}

func TestStartSessionWithoutEnergy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.SetEnergy(ctx, PlayEnergyCost-1, testStart.UnixMilli()))

	err := f.consumer.StartSession(ctx, session.ModeEasy)
	assert.ErrorIs(t, err, ErrNoEnergy)

	// Hard mode is still affordable at half cost.
	require.NoError(t, f.consumer.StartSession(ctx, session.ModeHard))
}

func TestSubmitAnswerWithoutSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.consumer.SubmitAnswer(ctx, store.Monster{ID: 0}, true)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestOutcomeForStaleSessionDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.consumer.StartSession(ctx, session.ModeEasy))
	f.drain(ctx)
	before := f.activeSession(t, ctx)

	f.consumer.Deliver(Update{Serial: 99, MaxSerial: 99, Payload: CardOutcomeEvent{
		ActorID:   f.consumer.ActorID(),
		SessionID: before.Start - 1,
		Monster:   store.Monster{ID: 0, Streak: 1, Seen: f.clock.Now().UnixMilli()},
		XP:        1,
	}})
	f.drain(ctx)

	after := f.activeSession(t, ctx)
	assert.Equal(t, before, after)
}

func TestForeignActorUpdatesOnlyAdvanceWatermark(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.consumer.Deliver(Update{Serial: 7, MaxSerial: 7, Payload: NewSessionEvent{
		ActorID: "someone-else",
		Time:    testStart.UnixMilli(),
		Energy:  0,
		Mode:    session.ModeEasy,
	}})
	f.drain(ctx)

	assert.Nil(t, f.activeSession(t, ctx))
	energy, _, err := f.store.Energy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, energy)

	serial, err := f.store.MaxSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), serial)
}

func TestWatermarkAdvancesOnlyAtBatchEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mid := Update{Serial: 3, MaxSerial: 5, Payload: NewSessionEvent{
		ActorID: "someone-else",
	}}
	f.consumer.Deliver(mid)
	f.drain(ctx)

	serial, err := f.store.MaxSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), serial)

	end := Update{Serial: 5, MaxSerial: 5, Payload: NewSessionEvent{
		ActorID: "someone-else",
	}}
	f.consumer.Deliver(end)
	f.drain(ctx)

	serial, err = f.store.MaxSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), serial)
}

func TestLevelUpRefillsEnergy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.SetEnergy(ctx, 3, testStart.UnixMilli()))

	seen := testStart.UnixMilli()
	f.consumer.Deliver(Update{Serial: 1, MaxSerial: 1, Payload: SessionFinishedEvent{
		ActorID: f.consumer.ActorID(),
		Session: &session.Session{
			Start:     seen - 60_000,
			Mode:      session.ModeEasy,
			XP:        progression.XPForLevel(1) + 5,
			FailedIDs: []int{},
			Correct:   []store.Monster{{ID: 0, Streak: 1, Due: seen + 1000, Seen: seen}},
			Failed:    []store.Monster{},
			Pending:   []store.Monster{},
		},
	}})
	f.drain(ctx)

	level, err := f.store.Level(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, level)

	xp, err := f.store.XP(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, xp)

	energy, _, err := f.store.Energy(ctx)
	require.NoError(t, err)
	assert.Equal(t, progression.MaxEnergy(2), energy)
}

func TestDailyStreakAcrossDays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	finish := func(seen int64) {
		f.consumer.Deliver(Update{Serial: 0, MaxSerial: 1, Payload: SessionFinishedEvent{
			ActorID: f.consumer.ActorID(),
			Session: &session.Session{
				Start:     seen - 60_000,
				FailedIDs: []int{},
				Correct:   []store.Monster{{ID: 0, Streak: 1, Seen: seen}},
				Failed:    []store.Monster{},
				Pending:   []store.Monster{},
			},
		}})
		f.drain(ctx)
	}

	day0 := testStart
	finish(day0.UnixMilli())
	streak, err := f.store.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)

	// Second session the same day accumulates the counter, not the streak.
	finish(day0.Add(2 * time.Hour).UnixMilli())
	streak, err = f.store.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)
	studied, err := f.store.StudiedToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, studied)

	// Next calendar day extends the streak and restarts the counter.
	finish(day0.AddDate(0, 0, 1).UnixMilli())
	streak, err = f.store.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, streak)
	studied, err = f.store.StudiedToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, studied)

	// A skipped day resets to one.
	finish(day0.AddDate(0, 0, 3).UnixMilli())
	streak, err = f.store.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)
}

func TestRunLoopProcessesDeliveries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)

	done := make(chan error, 1)
	go func() { done <- f.consumer.Run(ctx) }()

	require.NoError(t, f.consumer.StartSession(ctx, session.ModeEasy))

	require.Eventually(t, func() bool {
		f.consumer.mu.Lock()
		defer f.consumer.mu.Unlock()
		raw, err := f.store.SessionJSON(ctx)
		return err == nil && raw != ""
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunLoopSurvivesDeliveryTimerRace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, WithConfig(Config{PollInterval: time.Millisecond}))

	done := make(chan error, 1)
	go func() { done <- f.consumer.Run(ctx) }()

	// Hammer the loop so enqueues keep landing while the poll timer is
	// also ready; a drain pass then races the coalesced signal, and a
	// stale wakeup over an empty queue must not read as shutdown.
	const last = 500
	go func() {
		for i := int64(1); i <= last; i++ {
			f.consumer.Deliver(Update{Serial: i, MaxSerial: i, Payload: NewSessionEvent{
				ActorID: "someone-else",
			}})
			time.Sleep(200 * time.Microsecond)
		}
	}()

	// The loop must stay alive through the burst and apply everything.
	require.Eventually(t, func() bool {
		serial, err := f.store.MaxSerial(ctx)
		return err == nil && serial == last
	}, 10*time.Second, 5*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("run loop exited while consumer was still in use: %v", err)
	default:
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestInitPublishesState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var gotPlayer *Player
	var sessionCalls int
	f.consumer.Init(
		func(*session.Session) { sessionCalls++ },
		func(p Player) { gotPlayer = &p },
	)
	f.drain(ctx)

	require.NotNil(t, gotPlayer)
	assert.Equal(t, 1, gotPlayer.Level)
	assert.Equal(t, 30, gotPlayer.Energy)
	assert.Equal(t, 30, gotPlayer.Total)
	assert.True(t, gotPlayer.ShowIntro)
	assert.Equal(t, 1, sessionCalls)

	// The init pseudo-update never persists a watermark.
	serial, err := f.store.MaxSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), serial)
}
