// Package srs implements the spaced-repetition scheduler.
//
// The scheduler is a pure function from (streak, outcome, now) to
// (new streak, new due timestamp). It holds no state and touches no storage,
// which keeps review scheduling trivially testable and deterministic.
//
// The interval curve is tiered rather than formula-driven: fast first
// repetitions measured in hours, then whole days anchored to local midnight,
// then a slow long tail. Anchoring day-based intervals to midnight means
// repeated reviews on the same day cannot drift a card's due date by a few
// hours at a time.
package srs

import "time"

const (
	// MasteredStreak is the streak at which a card counts as mastered.
	// Cards above this streak graduate to double-length day intervals.
	MasteredStreak = 5

	// MaxStreak caps the per-card streak counter.
	MaxStreak = 999
)

// NextReview computes the review outcome for a single card.
//
// On failure the streak resets to 0 and the card becomes immediately
// eligible again (due = 0). On success the streak increments (capped at
// MaxStreak) and the new due time is derived from the new streak:
//
//	1           -> now + 2h
//	2           -> now + 24h
//	3           -> now + 48h
//	4..mastered -> midnight(now) + streak days
//	..10        -> midnight(now) + streak*2 days
//	11..15      -> midnight(now) + 30*(streak-10) days
//	>15         -> midnight(now) + (150 + streak*4) days
//
// Hour-based tiers use wall-clock time; day-based tiers are anchored to the
// local midnight of now. The returned due timestamp is Unix milliseconds.
func NextReview(streak int, correct bool, now time.Time) (int, int64) {
	if !correct {
		return 0, 0
	}

	streak++
	if streak > MaxStreak {
		streak = MaxStreak
	}

	var due time.Time
	switch streak {
	case 1:
		due = now.Add(2 * time.Hour)
	case 2:
		due = now.Add(24 * time.Hour)
	case 3:
		due = now.Add(48 * time.Hour)
	default:
		switch {
		case streak > 15:
			due = addDays(now, 150+streak*4)
		case streak > 10:
			due = addDays(now, 30*(streak-10))
		case streak > MasteredStreak:
			due = addDays(now, streak*2)
		default:
			due = addDays(now, streak)
		}
	}

	return streak, due.UnixMilli()
}

// Midnight returns local midnight of t. Day-based intervals, the daily
// streak and the studied-today counter all anchor on it.
func Midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// addDays returns local midnight of t plus the given number of calendar days.
// AddDate is calendar-aware, so DST transitions do not skew the result.
func addDays(t time.Time, days int) time.Time {
	return Midnight(t).AddDate(0, 0, days)
}
