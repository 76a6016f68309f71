// Package progression implements the XP and leveling state machine.
//
// All functions are pure: they map accumulated XP and review outcomes to
// levels, energy capacity and XP rewards without touching storage. The
// update log consumer owns persistence of the resulting values.
package progression

const (
	// MaxLevel caps player progression. At the cap, XP pins to zero and
	// no further accumulation occurs.
	MaxLevel = 100

	// BaseEnergy is the energy capacity at level 1.
	BaseEnergy = 30
)

// XPForLevel returns the XP required to advance past the given level.
//
// Levels 1-3 use a fixed warm-up table; above that the cost follows the
// difference of consecutive cubes, a medium-fast growth curve that rises
// smoothly without per-level tuning.
func XPForLevel(level int) int {
	switch level {
	case 1:
		return 20
	case 2:
		return 34
	case 3:
		return 47
	}
	next := level + 1
	return next*next*next - level*level*level
}

// ApplyXP folds gained XP into the current (xp, level) pair.
//
// Level boundaries are crossed repeatedly, so a single large gain can jump
// several levels in one call. At MaxLevel the pair clamps to (0, MaxLevel).
// The returned level never decreases and the returned xp is always below
// XPForLevel(level), except at the cap where it is exactly 0.
func ApplyXP(currentXP, currentLevel, gained int) (xp, level int) {
	xp = currentXP + gained
	level = currentLevel

	threshold := XPForLevel(level)
	for xp >= threshold {
		xp -= threshold
		level++
		threshold = XPForLevel(level)
	}

	if level >= MaxLevel {
		return 0, MaxLevel
	}
	return xp, level
}

// MaxEnergy returns the energy capacity for a level: a slow +1 per ten
// levels on top of the base capacity.
func MaxEnergy(level int) int {
	return BaseEnergy + level/10
}

// XPGain returns the XP awarded for a correct review.
//
// The streak argument is the card's streak after the review. Failures and
// reviews at MaxLevel award nothing; otherwise a level-scaled bonus (capped
// at 40) plus the card streak, capped at 50 overall so long streaks cannot
// run away.
func XPGain(level, streak int, correct bool) int {
	if !correct || level == MaxLevel {
		return 0
	}
	bonus := level / 5
	if bonus > 40 {
		bonus = 40
	}
	gain := bonus + streak
	if gain > 50 {
		gain = 50
	}
	return gain
}
