package game

import (
	"context"
	"time"

	"github.com/kioku-game/kioku/internal/progression"
	"github.com/kioku-game/kioku/internal/srs"
	"github.com/kioku-game/kioku/internal/store"
)

// Player is the derived read model of the whole game state, rebuilt from
// the store on every change. Day-sensitive fields (streak, studied today)
// are evaluated against the given clock, so a stale last-played day shows
// as a lapsed streak without any stored mutation.
type Player struct {
	Level        int   `json:"level"`
	XP           int   `json:"xp"`
	TotalXP      int   `json:"totalXp"` // threshold for the next level, 0 at cap
	Energy       int   `json:"energy"`
	MaxEnergy    int   `json:"maxEnergy"`
	Streak       int   `json:"streak"`
	StudiedToday int   `json:"studiedToday"`
	ToReview     int   `json:"toReview"`
	Seen         int   `json:"seen"`
	Mastered     int   `json:"mastered"`
	Total        int   `json:"total"`
	ShowIntro    bool  `json:"showIntro"`
	LastPlayed   int64 `json:"lastPlayed"`
}

// BuildPlayer assembles the read model from stored state.
func BuildPlayer(ctx context.Context, st *store.Store, totalCards int, now time.Time) (Player, error) {
	var p Player
	var err error

	if p.Level, err = st.Level(ctx); err != nil {
		return Player{}, err
	}
	if p.XP, err = st.XP(ctx); err != nil {
		return Player{}, err
	}
	if p.Level < progression.MaxLevel {
		p.TotalXP = progression.XPForLevel(p.Level)
	}
	p.MaxEnergy = progression.MaxEnergy(p.Level)

	if p.Energy, _, err = st.Energy(ctx); err != nil {
		return Player{}, err
	}
	if p.LastPlayed, err = st.LastPlayed(ctx); err != nil {
		return Player{}, err
	}
	if p.ShowIntro, err = st.ShowIntro(ctx); err != nil {
		return Player{}, err
	}

	// A streak survives only if the last played day is yesterday or today;
	// the studied-today counter only if it is today.
	today := srs.Midnight(now).UnixMilli()
	yesterday := srs.Midnight(now).AddDate(0, 0, -1).UnixMilli()
	if p.LastPlayed >= yesterday {
		if p.Streak, err = st.Streak(ctx); err != nil {
			return Player{}, err
		}
	}
	if p.LastPlayed >= today {
		if p.StudiedToday, err = st.StudiedToday(ctx); err != nil {
			return Player{}, err
		}
	}

	if p.ToReview, err = st.CountDue(ctx, now.UnixMilli()); err != nil {
		return Player{}, err
	}
	if p.Seen, err = st.CountMonsters(ctx); err != nil {
		return Player{}, err
	}
	if p.Mastered, err = st.CountMastered(ctx, srs.MasteredStreak); err != nil {
		return Player{}, err
	}
	p.Total = totalCards

	return p, nil
}
