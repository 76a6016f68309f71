package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}
}

func TestScalars_Defaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	level, err := s.Level(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, level)

	xp, err := s.XP(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, xp)

	energy, ts, err := s.Energy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, energy)
	assert.Equal(t, int64(0), ts)

	intro, err := s.ShowIntro(ctx)
	require.NoError(t, err)
	assert.True(t, intro)

	serial, err := s.MaxSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), serial)

	session, err := s.SessionJSON(ctx)
	require.NoError(t, err)
	assert.Empty(t, session)
}

func TestScalars_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetLevel(ctx, 12))
	require.NoError(t, s.SetXP(ctx, 45))
	require.NoError(t, s.SetEnergy(ctx, 7, 1700000000000))
	require.NoError(t, s.SetStreak(ctx, 9))
	require.NoError(t, s.SetLastPlayed(ctx, 1699999200000))
	require.NoError(t, s.SetStudiedToday(ctx, 17))
	require.NoError(t, s.SetUnseenIndex(ctx, 42))
	require.NoError(t, s.SetMaxSerial(ctx, 1234))
	require.NoError(t, s.SetShowIntro(ctx, false))

	level, _ := s.Level(ctx)
	assert.Equal(t, 12, level)
	xp, _ := s.XP(ctx)
	assert.Equal(t, 45, xp)
	energy, ts, _ := s.Energy(ctx)
	assert.Equal(t, 7, energy)
	assert.Equal(t, int64(1700000000000), ts)
	streak, _ := s.Streak(ctx)
	assert.Equal(t, 9, streak)
	lastPlayed, _ := s.LastPlayed(ctx)
	assert.Equal(t, int64(1699999200000), lastPlayed)
	studied, _ := s.StudiedToday(ctx)
	assert.Equal(t, 17, studied)
	idx, _ := s.UnseenIndex(ctx)
	assert.Equal(t, 42, idx)
	serial, _ := s.MaxSerial(ctx)
	assert.Equal(t, int64(1234), serial)
	intro, _ := s.ShowIntro(ctx)
	assert.False(t, intro)
}

func TestActorID_StableAcrossCalls(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.ActorID(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := s.ActorID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
