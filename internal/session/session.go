// Package session implements the review session lifecycle: card selection,
// per-card outcome bookkeeping, completion detection and result building.
//
// A session partitions its fixed card set into three lists - pending,
// failed and correct - and every outcome moves exactly one card between
// them. A card is done when it lands in correct; failed cards are
// re-queued until they succeed, so a finished session always has every
// card in correct.
package session

import (
	"context"
	"fmt"
	"math"

	"github.com/kioku-game/kioku/internal/store"
)

// Size is the number of cards drawn into a session.
const Size = 10

// Mode selects the answer input style.
type Mode string

const (
	ModeEasy Mode = "easy"
	ModeHard Mode = "hard"
)

// Session is one review round. Start doubles as the session identity for
// cross-device partial updates. The JSON field names are part of the
// replication and backup wire formats.
//
// Invariant: every monster id is in exactly one of pending, failed or
// correct at any time.
type Session struct {
	Start     int64           `json:"start"`
	Mode      Mode            `json:"mode"`
	XP        int             `json:"xp"`
	FailedIDs []int           `json:"failedIds"`
	Correct   []store.Monster `json:"correct"`
	Failed    []store.Monster `json:"failed"`
	Pending   []store.Monster `json:"pending"`
}

// Apply records one review outcome: the monster is removed from pending
// (or from failed on a re-attempt) and appended to correct or failed
// depending on its post-review streak. A zero streak means the review
// failed, since any success yields at least streak 1.
//
// Returns false if the monster is in neither pending nor failed; callers
// treat that as an already-applied duplicate and discard it.
func (s *Session) Apply(m store.Monster) bool {
	if !remove(&s.Pending, m.ID) && !remove(&s.Failed, m.ID) {
		return false
	}

	if m.Streak == 0 {
		s.Failed = append(s.Failed, m)
		if !containsID(s.FailedIDs, m.ID) {
			s.FailedIDs = append(s.FailedIDs, m.ID)
		}
	} else {
		s.Correct = append(s.Correct, m)
	}
	return true
}

// Contains reports whether a monster with this id and seen timestamp has
// already been recorded in correct or failed. This is the idempotency
// guard against duplicate delivery of the same outcome event.
func (s *Session) Contains(id int, seen int64) bool {
	for _, m := range s.Correct {
		if m.ID == id && m.Seen == seen {
			return true
		}
	}
	for _, m := range s.Failed {
		if m.ID == id && m.Seen == seen {
			return true
		}
	}
	return false
}

// Complete reports whether every card has been answered correctly.
func (s *Session) Complete() bool {
	return len(s.Pending) == 0 && len(s.Failed) == 0
}

// Results summarizes a completed session.
type Results struct {
	Time     int64 `json:"time"` // session duration in millis
	XP       int   `json:"xp"`
	Accuracy int   `json:"accuracy"` // percent
}

// Results builds the completion summary. Accuracy counts only cards that
// were never failed, as a fraction of the correct list length. This is the
// historical formula; it is kept bit-for-bit for parity across devices
// even though re-failed cards can skew it.
func (s *Session) Results(endTime int64) Results {
	accuracy := 0
	if total := len(s.Correct); total > 0 {
		accuracy = int(math.Round(float64(total-len(s.FailedIDs)) / float64(total) * 100))
	}
	return Results{
		Time:     endTime - s.Start,
		XP:       s.XP,
		Accuracy: accuracy,
	}
}

// Manager builds new sessions against the local store.
type Manager struct {
	store      *store.Store
	totalCards int
}

// NewManager creates a session manager over the given store and corpus size.
func NewManager(st *store.Store, totalCards int) *Manager {
	return &Manager{store: st, totalCards: totalCards}
}

// Create selects the cards for a session starting at the given time.
//
// Selection order:
//  1. Up to Size monsters already due, earliest-due first.
//  2. Top up with never-issued cards from the unseen cursor, persisting the
//     fresh records immediately so a crash cannot lose the cursor advance.
//  3. If still short (unseen exhausted, few due), fall back to the Size
//     oldest-due monsters regardless of due time, so a session is never
//     empty while any cards exist.
func (m *Manager) Create(ctx context.Context, start int64, mode Mode) (*Session, error) {
	monsters, err := m.store.DueMonsters(ctx, start, Size)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	unseen, err := m.store.UnseenIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	var fresh []store.Monster
	for i := unseen; len(monsters)+len(fresh) < Size && i < m.totalCards; i++ {
		fresh = append(fresh, store.Monster{ID: i})
	}
	if len(fresh) > 0 {
		if err := m.store.BulkPutMonsters(ctx, fresh); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		if err := m.store.SetUnseenIndex(ctx, unseen+len(fresh)); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	if len(monsters) < Size {
		// Re-query picks up the freshly created records (due = 0) and, if
		// the corpus is exhausted, whatever is closest to due.
		monsters, err = m.store.OldestMonsters(ctx, Size)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	return &Session{
		Start:     start,
		Mode:      mode,
		FailedIDs: []int{},
		Correct:   []store.Monster{},
		Failed:    []store.Monster{},
		Pending:   monsters,
	}, nil
}

func remove(list *[]store.Monster, id int) bool {
	for i, m := range *list {
		if m.ID == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
