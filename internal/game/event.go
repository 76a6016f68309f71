package game

import (
	"encoding/json"
	"fmt"

	"github.com/kioku-game/kioku/internal/session"
	"github.com/kioku-game/kioku/internal/store"
)

// Wire discriminants. These are shared with replicas on other devices, so
// they are frozen.
const (
	cmdInit            = "init"
	cmdNewSession      = "new"
	cmdCardOutcome     = "mon-up"
	cmdSessionFinished = "finished"
	cmdImportBackup    = "import"
)

// Payload is the closed set of replicated event payloads. Exactly five
// kinds exist; dispatch matches them exhaustively, so no handler ever
// probes for optional fields.
type Payload interface {
	// Actor returns the id of the device that produced the event.
	Actor() string
	cmd() string
}

// Update is a payload as delivered by the transport: stamped with a
// strictly increasing serial and the cumulative maximum serial of its
// batch.
type Update struct {
	Serial    int64
	MaxSerial int64
	Payload   Payload
}

// InitEvent is the local bootstrap pseudo-event: it registers the observer
// hooks and triggers an immediate publish of current state. It is always
// the first item processed, is never wire-delivered, and mutates nothing.
type InitEvent struct {
	ActorID     string
	SessionHook func(*session.Session)
	PlayerHook  func(Player)
}

func (e InitEvent) Actor() string { return e.ActorID }
func (InitEvent) cmd() string     { return cmdInit }

// NewSessionEvent starts a review session. Energy carries the remaining
// energy after the spend, computed by the producer.
type NewSessionEvent struct {
	ActorID string       `json:"uid"`
	Time    int64        `json:"time"`
	Energy  int          `json:"energy"`
	Mode    session.Mode `json:"mode"`
}

func (e NewSessionEvent) Actor() string { return e.ActorID }
func (NewSessionEvent) cmd() string     { return cmdNewSession }

// CardOutcomeEvent records one review outcome inside an active session.
// SessionID is the start timestamp of the session it belongs to; outcomes
// for completed or replaced sessions are discarded on delivery.
type CardOutcomeEvent struct {
	ActorID   string        `json:"uid"`
	SessionID int64         `json:"sessionId"`
	Monster   store.Monster `json:"monster"`
	XP        int           `json:"xp"`
}

func (e CardOutcomeEvent) Actor() string { return e.ActorID }
func (CardOutcomeEvent) cmd() string     { return cmdCardOutcome }

// SessionFinishedEvent carries the full completed session for durable
// merge into the store.
type SessionFinishedEvent struct {
	ActorID string           `json:"uid"`
	Session *session.Session `json:"session"`
}

func (e SessionFinishedEvent) Actor() string { return e.ActorID }
func (SessionFinishedEvent) cmd() string     { return cmdSessionFinished }

// ImportBackupEvent replaces the full local state with a backup document.
// The document stays raw until the apply site validates it, fail-closed.
type ImportBackupEvent struct {
	ActorID string          `json:"uid"`
	Backup  json.RawMessage `json:"backup"`
}

func (e ImportBackupEvent) Actor() string { return e.ActorID }
func (ImportBackupEvent) cmd() string     { return cmdImportBackup }

// MarshalPayload encodes a payload for the wire, injecting the cmd
// discriminant. InitEvent is local-only and cannot be marshaled.
func MarshalPayload(p Payload) ([]byte, error) {
	if _, ok := p.(InitEvent); ok {
		return nil, fmt.Errorf("init events are local-only, not wire events")
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.cmd(), err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.cmd(), err)
	}
	cmd, err := json.Marshal(p.cmd())
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.cmd(), err)
	}
	fields["cmd"] = cmd

	return json.Marshal(fields)
}

// UnmarshalPayload decodes a wire payload by its cmd discriminant into the
// matching variant. Unknown discriminants are an error: a replica running
// older code must not silently drop state it cannot interpret.
func UnmarshalPayload(data []byte) (Payload, error) {
	var probe struct {
		Cmd string `json:"cmd"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	switch probe.Cmd {
	case cmdNewSession:
		var e NewSessionEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", probe.Cmd, err)
		}
		return e, nil
	case cmdCardOutcome:
		var e CardOutcomeEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", probe.Cmd, err)
		}
		return e, nil
	case cmdSessionFinished:
		var e SessionFinishedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", probe.Cmd, err)
		}
		return e, nil
	case cmdImportBackup:
		var e ImportBackupEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", probe.Cmd, err)
		}
		return e, nil
	case cmdInit:
		return nil, fmt.Errorf("init events are local-only, not wire events")
	default:
		return nil, fmt.Errorf("unknown payload cmd %q", probe.Cmd)
	}
}
