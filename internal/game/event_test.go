package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioku-game/kioku/internal/session"
	"github.com/kioku-game/kioku/internal/store"
)

func TestPayloadRoundTrip(t *testing.T) {
	payloads := []Payload{
		NewSessionEvent{ActorID: "a1", Time: 1700000000000, Energy: 20, Mode: session.ModeEasy},
		CardOutcomeEvent{
			ActorID:   "a1",
			SessionID: 1700000000000,
			Monster:   store.Monster{ID: 4, Streak: 2, Due: 1700090000000, Seen: 1700000001000},
			XP:        3,
		},
		SessionFinishedEvent{
			ActorID: "a1",
			Session: &session.Session{
				Start:     1700000000000,
				Mode:      session.ModeHard,
				XP:        12,
				FailedIDs: []int{2},
				Correct:   []store.Monster{{ID: 2, Streak: 1, Seen: 5}},
				Failed:    []store.Monster{},
				Pending:   []store.Monster{},
			},
		},
		ImportBackupEvent{ActorID: "a1", Backup: json.RawMessage(`{"version":"1"}`)},
	}

	for _, p := range payloads {
		raw, err := MarshalPayload(p)
		require.NoError(t, err)

		// The discriminant must be on the wire.
		var probe map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &probe))
		assert.Contains(t, probe, "cmd")

		decoded, err := UnmarshalPayload(raw)
		require.NoError(t, err)
		assert.Equal(t, p.cmd(), decoded.cmd())
		assert.Equal(t, p.Actor(), decoded.Actor())
		assert.Equal(t, p, decoded)
	}
}

func TestUnmarshalUnknownCmd(t *testing.T) {
	_, err := UnmarshalPayload([]byte(`{"cmd":"teleport","uid":"a1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestUnmarshalMissingCmd(t *testing.T) {
	_, err := UnmarshalPayload([]byte(`{"uid":"a1"}`))
	require.Error(t, err)
}

func TestInitEventNeverMarshals(t *testing.T) {
	_, err := MarshalPayload(InitEvent{ActorID: "a1"})
	require.Error(t, err)
}
