package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatsFreshDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "game.db")

	out, err := execute(t, "stats", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Level 1")
	assert.Contains(t, out, "Energy  30/30")
}

func TestStatsJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "game.db")

	out, err := execute(t, "stats", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, data["level"])
	assert.EqualValues(t, 30, data["energy"])
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcDB := filepath.Join(dir, "src.db")
	dstDB := filepath.Join(dir, "dst.db")
	backupFile := filepath.Join(dir, "backup.json")

	_, err := execute(t, "export", "--db", srcDB, "-o", backupFile)
	require.NoError(t, err)

	out, err := execute(t, "import", "--db", dstDB, backupFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 card(s)")
}

func TestImportRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"version":"1"}`), 0o644))

	_, err := execute(t, "import", "--db", filepath.Join(dir, "game.db"), bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCardsCheckEmbedded(t *testing.T) {
	out, err := execute(t, "cards", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Corpus OK")
}
