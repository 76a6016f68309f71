package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Scalar keys. The names double as the backup document's vocabulary, so
// renaming one is a wire format change.
const (
	keyLevel        = "level"
	keyXP           = "xp"
	keyEnergy       = "energy"
	keyEnergyTime   = "energyTimestamp"
	keyStreak       = "streak"
	keyLastPlayed   = "lastPlayed"
	keyStudiedToday = "studiedToday"
	keyUnseenIndex  = "unseenIndex"
	keyMaxSerial    = "maxSerial"
	keyShowIntro    = "showIntro"
	keySFX          = "sfx"
	keyTTS          = "tts"
	keyMode         = "mode"
	keyLang         = "lang"
	keySession      = "session"
	keyActorID      = "actorId"
)

// defaultEnergy is the starting energy for a fresh replica, equal to the
// level-1 capacity.
const defaultEnergy = 30

func (s *Store) getInt(ctx context.Context, key string, def int) (int, error) {
	raw, err := s.getScalar(ctx, key, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("scalar %s: %w", key, err)
	}
	return n, nil
}

func (s *Store) getInt64(ctx context.Context, key string, def int64) (int64, error) {
	raw, err := s.getScalar(ctx, key, strconv.FormatInt(def, 10))
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("scalar %s: %w", key, err)
	}
	return n, nil
}

func (s *Store) getBool(ctx context.Context, key string, def bool) (bool, error) {
	raw, err := s.getScalar(ctx, key, strconv.FormatBool(def))
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("scalar %s: %w", key, err)
	}
	return b, nil
}

func (s *Store) setInt(ctx context.Context, key string, v int) error {
	return s.setScalar(ctx, key, strconv.Itoa(v))
}

func (s *Store) setInt64(ctx context.Context, key string, v int64) error {
	return s.setScalar(ctx, key, strconv.FormatInt(v, 10))
}

func (s *Store) setBool(ctx context.Context, key string, v bool) error {
	return s.setScalar(ctx, key, strconv.FormatBool(v))
}

// Level returns the player level (default 1).
func (s *Store) Level(ctx context.Context) (int, error) {
	return s.getInt(ctx, keyLevel, 1)
}

func (s *Store) SetLevel(ctx context.Context, level int) error {
	return s.setInt(ctx, keyLevel, level)
}

// XP returns the XP accumulated toward the next level.
func (s *Store) XP(ctx context.Context) (int, error) {
	return s.getInt(ctx, keyXP, 0)
}

func (s *Store) SetXP(ctx context.Context, xp int) error {
	return s.setInt(ctx, keyXP, xp)
}

// Energy returns the current energy and the timestamp (Unix millis) of the
// last regeneration step. A zero timestamp means regeneration has never run.
func (s *Store) Energy(ctx context.Context) (int, int64, error) {
	energy, err := s.getInt(ctx, keyEnergy, defaultEnergy)
	if err != nil {
		return 0, 0, err
	}
	ts, err := s.getInt64(ctx, keyEnergyTime, 0)
	if err != nil {
		return 0, 0, err
	}
	return energy, ts, nil
}

func (s *Store) SetEnergy(ctx context.Context, energy int, ts int64) error {
	if err := s.setInt(ctx, keyEnergy, energy); err != nil {
		return err
	}
	return s.setInt64(ctx, keyEnergyTime, ts)
}

// Streak returns the consecutive-days-played counter.
func (s *Store) Streak(ctx context.Context) (int, error) {
	return s.getInt(ctx, keyStreak, 0)
}

func (s *Store) SetStreak(ctx context.Context, streak int) error {
	return s.setInt(ctx, keyStreak, streak)
}

// LastPlayed returns the local-midnight timestamp of the last completed
// session's day, in Unix millis.
func (s *Store) LastPlayed(ctx context.Context) (int64, error) {
	return s.getInt64(ctx, keyLastPlayed, 0)
}

func (s *Store) SetLastPlayed(ctx context.Context, ts int64) error {
	return s.setInt64(ctx, keyLastPlayed, ts)
}

// StudiedToday returns the number of cards answered correctly today.
func (s *Store) StudiedToday(ctx context.Context) (int, error) {
	return s.getInt(ctx, keyStudiedToday, 0)
}

func (s *Store) SetStudiedToday(ctx context.Context, n int) error {
	return s.setInt(ctx, keyStudiedToday, n)
}

// UnseenIndex returns the ID of the next never-issued card.
func (s *Store) UnseenIndex(ctx context.Context) (int, error) {
	return s.getInt(ctx, keyUnseenIndex, 0)
}

func (s *Store) SetUnseenIndex(ctx context.Context, idx int) error {
	return s.setInt(ctx, keyUnseenIndex, idx)
}

// MaxSerial returns the sync watermark: the highest replicated-event serial
// fully applied locally.
func (s *Store) MaxSerial(ctx context.Context) (int64, error) {
	return s.getInt64(ctx, keyMaxSerial, 0)
}

func (s *Store) SetMaxSerial(ctx context.Context, serial int64) error {
	return s.setInt64(ctx, keyMaxSerial, serial)
}

// ShowIntro reports whether the first-run intro should still be shown.
func (s *Store) ShowIntro(ctx context.Context) (bool, error) {
	return s.getBool(ctx, keyShowIntro, true)
}

func (s *Store) SetShowIntro(ctx context.Context, show bool) error {
	return s.setBool(ctx, keyShowIntro, show)
}

// SFX reports whether sound effects are enabled.
func (s *Store) SFX(ctx context.Context) (bool, error) {
	return s.getBool(ctx, keySFX, true)
}

func (s *Store) SetSFX(ctx context.Context, on bool) error {
	return s.setBool(ctx, keySFX, on)
}

// TTS reports whether text-to-speech is enabled.
func (s *Store) TTS(ctx context.Context) (bool, error) {
	return s.getBool(ctx, keyTTS, true)
}

func (s *Store) SetTTS(ctx context.Context, on bool) error {
	return s.setBool(ctx, keyTTS, on)
}

// Mode returns the preferred game mode ("easy" or "hard").
func (s *Store) Mode(ctx context.Context) (string, error) {
	return s.getScalar(ctx, keyMode, "easy")
}

func (s *Store) SetMode(ctx context.Context, mode string) error {
	return s.setScalar(ctx, keyMode, mode)
}

// Lang returns the corpus locale tag.
func (s *Store) Lang(ctx context.Context) (string, error) {
	return s.getScalar(ctx, keyLang, "en")
}

func (s *Store) SetLang(ctx context.Context, lang string) error {
	return s.setScalar(ctx, keyLang, lang)
}

// SessionJSON returns the serialized active session, or "" when no session
// is active. The game layer owns the (de)serialization; the store treats
// the value as opaque text.
func (s *Store) SessionJSON(ctx context.Context) (string, error) {
	return s.getScalar(ctx, keySession, "")
}

func (s *Store) SetSessionJSON(ctx context.Context, session string) error {
	return s.setScalar(ctx, keySession, session)
}

// ActorID returns this device's replication identity, minting and
// persisting a time-sortable UUIDv7 on first use.
func (s *Store) ActorID(ctx context.Context) (string, error) {
	id, err := s.getScalar(ctx, keyActorID, "")
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.Must(uuid.NewV7()).String()
	if err := s.setScalar(ctx, keyActorID, id); err != nil {
		return "", err
	}
	return id, nil
}
