package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kioku-game/kioku/internal/backup"
	"github.com/kioku-game/kioku/internal/progression"
	"github.com/kioku-game/kioku/internal/session"
	"github.com/kioku-game/kioku/internal/srs"
	"github.com/kioku-game/kioku/internal/store"
)

// PlayEnergyCost is the energy price of one easy-mode session. Hard mode
// costs half.
const PlayEnergyCost = 10

var (
	// ErrNoEnergy means the player cannot afford to start a session now.
	ErrNoEnergy = errors.New("not enough energy")

	// ErrNoSession means an answer was submitted with no session active.
	ErrNoSession = errors.New("no active session")
)

// LevelUp describes a level gained by finishing a session.
type LevelUp struct {
	NewLevel  int `json:"newLevel"`
	NewEnergy int `json:"newEnergy"`
}

// ResultSummary is returned to the caller when an answer completes the
// session, ahead of the finished event coming back around the wire.
type ResultSummary struct {
	session.Results
	LevelUp *LevelUp `json:"levelUp,omitempty"`
}

// StartSession checks energy, deducts the session cost and emits the
// new-session event. The actual state change happens when the event is
// delivered back; the energy check here is advisory and re-checked on
// apply.
func (c *Consumer) StartSession(ctx context.Context, mode session.Mode) error {
	c.mu.Lock()
	energy, _, err := c.store.Energy(ctx)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	cost := PlayEnergyCost
	if mode == session.ModeHard {
		cost = PlayEnergyCost / 2
	}
	remaining := energy - cost
	if remaining < 0 {
		return ErrNoEnergy
	}

	return c.send(ctx, NewSessionEvent{
		ActorID: c.actorID,
		Time:    c.now().UnixMilli(),
		Energy:  remaining,
		Mode:    mode,
	})
}

// SubmitAnswer records one review outcome. The scheduler computes the
// card's next streak and due time, the outcome is applied to the local
// session optimistically, and the matching event is emitted so other
// devices converge.
//
// When the answer completes the session, the returned summary is non-nil
// and a session-finished event is emitted instead of a per-card one.
func (c *Consumer) SubmitAnswer(ctx context.Context, m store.Monster, correct bool) (*ResultSummary, error) {
	now := c.now()

	c.mu.Lock()
	sess, err := c.loadSession(ctx)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("submit answer: %w", err)
	}
	if sess == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}

	level, err := c.store.Level(ctx)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("submit answer: %w", err)
	}

	m.Seen = now.UnixMilli()
	m.Streak, m.Due = srs.NextReview(m.Streak, correct, now)
	gained := progression.XPGain(level, m.Streak, correct)

	if !sess.Apply(m) {
		c.mu.Unlock()
		return nil, fmt.Errorf("submit answer: card %d not awaiting review", m.ID)
	}
	sess.XP += gained

	var summary *ResultSummary
	finished := sess.Complete()
	if finished {
		// Preview the progression outcome for the caller; the persisted
		// change happens when the finished event is applied.
		xp, err := c.store.XP(ctx)
		if err != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("submit answer: %w", err)
		}
		_, newLevel := progression.ApplyXP(xp, level, sess.XP)
		summary = &ResultSummary{Results: sess.Results(now.UnixMilli())}
		if newLevel > level {
			summary.LevelUp = &LevelUp{
				NewLevel:  newLevel,
				NewEnergy: progression.MaxEnergy(newLevel),
			}
		}
	} else {
		if err := c.saveSession(ctx, sess); err != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("submit answer: %w", err)
		}
	}
	c.publishSession(sess)
	c.mu.Unlock()

	if finished {
		err = c.send(ctx, SessionFinishedEvent{ActorID: c.actorID, Session: sess})
	} else {
		err = c.send(ctx, CardOutcomeEvent{
			ActorID:   c.actorID,
			SessionID: sess.Start,
			Monster:   m,
			XP:        gained,
		})
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ImportBackup validates a backup document and emits the import event.
// Invalid documents are rejected here and never reach the wire.
func (c *Consumer) ImportBackup(ctx context.Context, raw []byte) error {
	if _, err := backup.Decode(raw); err != nil {
		return fmt.Errorf("import backup: %w", err)
	}
	return c.send(ctx, ImportBackupEvent{
		ActorID: c.actorID,
		Backup:  json.RawMessage(raw),
	})
}

// SetMode persists the preferred answer input style.
func (c *Consumer) SetMode(ctx context.Context, mode session.Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.SetMode(ctx, string(mode))
}

func (c *Consumer) send(ctx context.Context, p Payload) error {
	if err := c.transport.Send(ctx, p); err != nil {
		return fmt.Errorf("send %s: %w", p.cmd(), err)
	}
	return nil
}
