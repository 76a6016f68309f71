package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Monster is the spaced-repetition state for one card: its consecutive
// correct-review streak, the time it next becomes due, and the time it was
// last seen. Timestamps are Unix milliseconds; a zero due time means the
// card is immediately eligible.
//
// The JSON field names are part of the replication and backup wire formats.
type Monster struct {
	ID     int   `json:"id"`
	Streak int   `json:"streak"`
	Due    int64 `json:"due"`
	Seen   int64 `json:"seen"`
}

// DueMonsters returns up to limit monsters with due <= now, earliest-due
// first so the longest-overdue reviews are prioritized.
func (s *Store) DueMonsters(ctx context.Context, now int64, limit int) ([]Monster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, streak, due, seen FROM monsters
		WHERE due <= ?
		ORDER BY due ASC, id ASC
		LIMIT ?
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due monsters: %w", err)
	}
	return scanMonsters(rows)
}

// OldestMonsters returns up to limit monsters ordered by due time
// regardless of whether they are due yet. Used as the session builder's
// last-resort fallback so a session is never empty while any cards exist.
func (s *Store) OldestMonsters(ctx context.Context, limit int) ([]Monster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, streak, due, seen FROM monsters
		ORDER BY due ASC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query oldest monsters: %w", err)
	}
	return scanMonsters(rows)
}

// AllMonsters returns every monster, ordered by id. Used by the backup
// exporter.
func (s *Store) AllMonsters(ctx context.Context) ([]Monster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, streak, due, seen FROM monsters
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all monsters: %w", err)
	}
	return scanMonsters(rows)
}

// BulkPutMonsters upserts the given monsters in one transaction,
// last write wins per id.
func (s *Store) BulkPutMonsters(ctx context.Context, monsters []Monster) error {
	if len(monsters) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bulk put monsters: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO monsters (id, streak, due, seen) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			streak = excluded.streak,
			due    = excluded.due,
			seen   = excluded.seen
	`)
	if err != nil {
		return fmt.Errorf("bulk put monsters: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range monsters {
		if _, err := stmt.ExecContext(ctx, m.ID, m.Streak, m.Due, m.Seen); err != nil {
			return fmt.Errorf("bulk put monster %d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bulk put monsters: commit: %w", err)
	}
	return nil
}

// ReplaceMonsters atomically swaps the whole collection for the given set.
// Used by backup import, which never partially applies.
func (s *Store) ReplaceMonsters(ctx context.Context, monsters []Monster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace monsters: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM monsters`); err != nil {
		return fmt.Errorf("replace monsters: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO monsters (id, streak, due, seen) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("replace monsters: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range monsters {
		if _, err := stmt.ExecContext(ctx, m.ID, m.Streak, m.Due, m.Seen); err != nil {
			return fmt.Errorf("replace monster %d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace monsters: commit: %w", err)
	}
	return nil
}

// CountMonsters returns how many cards have ever been drawn into a session.
func (s *Store) CountMonsters(ctx context.Context) (int, error) {
	return s.countWhere(ctx, "1 = 1")
}

// CountMastered returns how many monsters have reached minStreak.
func (s *Store) CountMastered(ctx context.Context, minStreak int) (int, error) {
	return s.countWhere(ctx, "streak >= ?", minStreak)
}

// CountDue returns how many monsters are due at the given time.
func (s *Store) CountDue(ctx context.Context, now int64) (int, error) {
	return s.countWhere(ctx, "due <= ?", now)
}

func (s *Store) countWhere(ctx context.Context, where string, args ...any) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM monsters WHERE " + where
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count monsters: %w", err)
	}
	return count, nil
}

func scanMonsters(rows *sql.Rows) ([]Monster, error) {
	defer rows.Close()

	monsters := []Monster{}
	for rows.Next() {
		var m Monster
		if err := rows.Scan(&m.ID, &m.Streak, &m.Due, &m.Seen); err != nil {
			return nil, fmt.Errorf("scan monster: %w", err)
		}
		monsters = append(monsters, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monsters: %w", err)
	}
	return monsters, nil
}
