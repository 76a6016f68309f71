// Package backup implements the portable export/import document for the
// whole game state.
//
// The document is JSON with every scalar encoded as a string, the format
// the original key-value exports used; the monster list is structured.
// Import is fail-closed: a document either passes schema validation and
// string-to-value conversion in full, or nothing is written.
package backup

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/language"

	"github.com/kioku-game/kioku/internal/store"
)

// Version is the current backup document version.
const Version = 1

//go:embed schema.cue
var schemaSource string

// document is the raw wire shape. Field names are frozen.
type document struct {
	Version         string          `json:"version"`
	Lang            string          `json:"lang"`
	ShowIntro       string          `json:"showIntro"`
	Monsters        []store.Monster `json:"monsters"`
	Session         string          `json:"session"`
	UnseenIndex     string          `json:"unseenIndex"`
	Streak          string          `json:"streak"`
	Level           string          `json:"level"`
	XP              string          `json:"xp"`
	Energy          string          `json:"energy"`
	EnergyTimestamp string          `json:"energyTimestamp"`
	StudiedToday    string          `json:"studiedToday"`
	LastPlayed      string          `json:"lastPlayed"`
	SFX             string          `json:"sfx"`
	TTS             string          `json:"tts"`
	MaxSerial       string          `json:"maxSerial,omitempty"`
}

// Snapshot is a decoded, validated backup.
type Snapshot struct {
	Version         int
	Lang            string
	ShowIntro       bool
	Monsters        []store.Monster
	Session         string
	UnseenIndex     int
	Streak          int
	Level           int
	XP              int
	Energy          int
	EnergyTimestamp int64
	StudiedToday    int
	LastPlayed      int64
	SFX             bool
	TTS             bool

	// MaxSerial is the replication watermark at export time, or -1 for
	// documents from versions that did not export it.
	MaxSerial int64
}

// IsValid reports whether raw is a structurally valid backup document.
func IsValid(raw []byte) bool {
	_, err := Decode(raw)
	return err == nil
}

// Decode validates raw against the schema and converts it to a typed
// snapshot. Any violation, including unparseable numbers or an unknown
// language tag, rejects the whole document.
func Decode(raw []byte) (*Snapshot, error) {
	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("backup schema: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("backup decode: %w", err)
	}
	return doc.toSnapshot()
}

func validateSchema(raw []byte) error {
	cuectx := cuecontext.New()

	schema := cuectx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Backup"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup definition: %w", err)
	}

	doc := cuectx.CompileBytes(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	return def.Unify(doc).Validate(cue.Concrete(true))
}

func (d document) toSnapshot() (*Snapshot, error) {
	snap := &Snapshot{
		Monsters:  d.Monsters,
		Session:   d.Session,
		MaxSerial: -1,
	}
	var err error

	if snap.Version, err = parseInt("version", d.Version); err != nil {
		return nil, err
	}
	if snap.Version > Version {
		return nil, fmt.Errorf("backup version %d is newer than supported %d", snap.Version, Version)
	}

	// Validation only: the stored string is kept verbatim so a backup
	// round-trips byte-for-byte even for non-canonical tags like "DE".
	if _, err := language.Parse(d.Lang); err != nil {
		return nil, fmt.Errorf("field lang: %w", err)
	}
	snap.Lang = d.Lang

	if snap.ShowIntro, err = parseBool("showIntro", d.ShowIntro); err != nil {
		return nil, err
	}
	if snap.UnseenIndex, err = parseInt("unseenIndex", d.UnseenIndex); err != nil {
		return nil, err
	}
	if snap.Streak, err = parseInt("streak", d.Streak); err != nil {
		return nil, err
	}
	if snap.Level, err = parseInt("level", d.Level); err != nil {
		return nil, err
	}
	if snap.XP, err = parseInt("xp", d.XP); err != nil {
		return nil, err
	}
	if snap.Energy, err = parseInt("energy", d.Energy); err != nil {
		return nil, err
	}
	if snap.EnergyTimestamp, err = parseInt64("energyTimestamp", d.EnergyTimestamp); err != nil {
		return nil, err
	}
	if snap.StudiedToday, err = parseInt("studiedToday", d.StudiedToday); err != nil {
		return nil, err
	}
	if snap.LastPlayed, err = parseInt64("lastPlayed", d.LastPlayed); err != nil {
		return nil, err
	}
	if snap.SFX, err = parseBool("sfx", d.SFX); err != nil {
		return nil, err
	}
	if snap.TTS, err = parseBool("tts", d.TTS); err != nil {
		return nil, err
	}
	if d.MaxSerial != "" {
		if snap.MaxSerial, err = parseInt64("maxSerial", d.MaxSerial); err != nil {
			return nil, err
		}
	}

	if snap.Session != "" {
		if !json.Valid([]byte(snap.Session)) {
			return nil, fmt.Errorf("field session: not valid JSON")
		}
	}

	return snap, nil
}

// Export serializes the complete stored state into a backup document.
func Export(ctx context.Context, st *store.Store) ([]byte, error) {
	monsters, err := st.AllMonsters(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if monsters == nil {
		monsters = []store.Monster{}
	}

	doc := document{
		Version:  strconv.Itoa(Version),
		Monsters: monsters,
	}

	if doc.Lang, err = st.Lang(ctx); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	showIntro, err := st.ShowIntro(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.ShowIntro = strconv.FormatBool(showIntro)

	if doc.Session, err = st.SessionJSON(ctx); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	unseen, err := st.UnseenIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.UnseenIndex = strconv.Itoa(unseen)

	streak, err := st.Streak(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.Streak = strconv.Itoa(streak)

	level, err := st.Level(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.Level = strconv.Itoa(level)

	xp, err := st.XP(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.XP = strconv.Itoa(xp)

	energy, ts, err := st.Energy(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.Energy = strconv.Itoa(energy)
	doc.EnergyTimestamp = strconv.FormatInt(ts, 10)

	studied, err := st.StudiedToday(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.StudiedToday = strconv.Itoa(studied)

	lastPlayed, err := st.LastPlayed(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.LastPlayed = strconv.FormatInt(lastPlayed, 10)

	sfx, err := st.SFX(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.SFX = strconv.FormatBool(sfx)

	tts, err := st.TTS(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.TTS = strconv.FormatBool(tts)

	maxSerial, err := st.MaxSerial(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	doc.MaxSerial = strconv.FormatInt(maxSerial, 10)

	return json.MarshalIndent(doc, "", "  ")
}

// Restore overwrites the stored state with the snapshot. The monster table
// is replaced wholesale; the watermark is only touched when the snapshot
// carries one.
func Restore(ctx context.Context, st *store.Store, snap *Snapshot) error {
	if err := st.ReplaceMonsters(ctx, snap.Monsters); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	steps := []func() error{
		func() error { return st.SetLang(ctx, snap.Lang) },
		func() error { return st.SetShowIntro(ctx, snap.ShowIntro) },
		func() error { return st.SetSessionJSON(ctx, snap.Session) },
		func() error { return st.SetUnseenIndex(ctx, snap.UnseenIndex) },
		func() error { return st.SetStreak(ctx, snap.Streak) },
		func() error { return st.SetLevel(ctx, snap.Level) },
		func() error { return st.SetXP(ctx, snap.XP) },
		func() error { return st.SetEnergy(ctx, snap.Energy, snap.EnergyTimestamp) },
		func() error { return st.SetStudiedToday(ctx, snap.StudiedToday) },
		func() error { return st.SetLastPlayed(ctx, snap.LastPlayed) },
		func() error { return st.SetSFX(ctx, snap.SFX) },
		func() error { return st.SetTTS(ctx, snap.TTS) },
	}
	if snap.MaxSerial >= 0 {
		steps = append(steps, func() error { return st.SetMaxSerial(ctx, snap.MaxSerial) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}
	return nil
}

func parseInt(field, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return n, nil
}

func parseInt64(field, v string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return n, nil
}

func parseBool(field, v string) (bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("field %s: %w", field, err)
	}
	return b, nil
}
