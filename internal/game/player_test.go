package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioku-game/kioku/internal/srs"
)

func TestPlayerStreakLapsesWithoutStoredMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	today := srs.Midnight(testStart)
	require.NoError(t, f.store.SetStreak(ctx, 6))
	require.NoError(t, f.store.SetStudiedToday(ctx, 4))
	require.NoError(t, f.store.SetLastPlayed(ctx, today.UnixMilli()))

	p, err := BuildPlayer(ctx, f.store, 30, testStart)
	require.NoError(t, err)
	assert.Equal(t, 6, p.Streak)
	assert.Equal(t, 4, p.StudiedToday)

	// Viewed tomorrow, the streak survives but the daily counter resets.
	p, err = BuildPlayer(ctx, f.store, 30, testStart.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 6, p.Streak)
	assert.Equal(t, 0, p.StudiedToday)

	// Two days later the streak reads as lapsed; the store still holds 6.
	p, err = BuildPlayer(ctx, f.store, 30, testStart.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, p.Streak)

	stored, err := f.store.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stored)
}

func TestPlayerAtMaxLevelHasNoNextThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.SetLevel(ctx, 100))

	p, err := BuildPlayer(ctx, f.store, 30, testStart)
	require.NoError(t, err)
	assert.Equal(t, 0, p.TotalXP)
	assert.Equal(t, 40, p.MaxEnergy)
}
