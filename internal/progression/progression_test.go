package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPForLevel_WarmupTable(t *testing.T) {
	assert.Equal(t, 20, XPForLevel(1))
	assert.Equal(t, 34, XPForLevel(2))
	assert.Equal(t, 47, XPForLevel(3))
}

func TestXPForLevel_CubicCurve(t *testing.T) {
	// (level+1)^3 - level^3
	assert.Equal(t, 61, XPForLevel(4))
	assert.Equal(t, 91, XPForLevel(5))
	assert.Equal(t, 331, XPForLevel(10))
}

func TestApplyXP_SingleBoundary(t *testing.T) {
	// Level 5 player one point short of the boundary gains 5 XP:
	// crosses exactly one level, 4 XP carries over.
	xp, level := ApplyXP(XPForLevel(5)-1, 5, 5)

	assert.Equal(t, 6, level)
	assert.Equal(t, 4, xp)
}

func TestApplyXP_MultiLevelJump(t *testing.T) {
	// Enough XP to clear levels 1 and 2 in one call.
	gained := XPForLevel(1) + XPForLevel(2) + 3

	xp, level := ApplyXP(0, 1, gained)

	assert.Equal(t, 3, level)
	assert.Equal(t, 3, xp)
}

func TestApplyXP_NoGain(t *testing.T) {
	xp, level := ApplyXP(10, 4, 0)
	assert.Equal(t, 4, level)
	assert.Equal(t, 10, xp)
}

func TestApplyXP_ClampsAtMaxLevel(t *testing.T) {
	xp, level := ApplyXP(0, MaxLevel-1, 1_000_000)
	assert.Equal(t, MaxLevel, level)
	assert.Equal(t, 0, xp)

	// Already at cap: stays pinned.
	xp, level = ApplyXP(0, MaxLevel, 500)
	assert.Equal(t, MaxLevel, level)
	assert.Equal(t, 0, xp)
}

func TestApplyXP_LevelMonotonicAndBounded(t *testing.T) {
	for level := 1; level < MaxLevel; level += 7 {
		for gained := 0; gained < 2000; gained += 123 {
			xp, newLevel := ApplyXP(0, level, gained)
			require.GreaterOrEqual(t, newLevel, level)
			if newLevel == MaxLevel {
				require.Equal(t, 0, xp)
			} else {
				require.Less(t, xp, XPForLevel(newLevel),
					"leftover xp must stay below the next threshold")
			}
		}
	}
}

func TestMaxEnergy(t *testing.T) {
	assert.Equal(t, 30, MaxEnergy(1))
	assert.Equal(t, 30, MaxEnergy(9))
	assert.Equal(t, 31, MaxEnergy(10))
	assert.Equal(t, 33, MaxEnergy(35))
	assert.Equal(t, 40, MaxEnergy(MaxLevel))
}

func TestXPGain(t *testing.T) {
	assert.Equal(t, 0, XPGain(5, 3, false), "failures award nothing")
	assert.Equal(t, 0, XPGain(MaxLevel, 3, true), "capped players award nothing")

	// level/5 bonus plus streak.
	assert.Equal(t, 1, XPGain(1, 1, true))
	assert.Equal(t, 5, XPGain(10, 3, true))

	// Level 99 bonus is 19; the total award caps at 50.
	assert.Equal(t, 42, XPGain(MaxLevel-1, 23, true))
	assert.Equal(t, 50, XPGain(MaxLevel-1, 500, true))
}
