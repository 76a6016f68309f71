package game

import (
	"context"
	"fmt"
	"sync"
)

// Transport carries outbound payloads to the host event log. The host
// assigns serials and delivers every stored update back to every device,
// the sender included.
type Transport interface {
	Send(ctx context.Context, p Payload) error
}

// SinkAttacher is implemented by transports that can deliver updates back
// into a consumer.
type SinkAttacher interface {
	Attach(sink func(Update) bool)
}

// Loopback is an in-process host: it serializes each sent payload through
// the real wire codec, assigns the next serial and delivers the update to
// every attached sink synchronously. Used by the standalone binary and by
// tests; a webxdc build swaps in the real host bridge.
type Loopback struct {
	mu     sync.Mutex
	serial int64
	sinks  []func(Update) bool
}

// NewLoopback creates an empty loopback transport. Seed the serial with
// SetSerial when resuming from a persisted watermark.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// SetSerial positions the next assigned serial after the given one.
func (l *Loopback) SetSerial(serial int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.serial = serial
}

// Attach registers a delivery sink. Not safe to call concurrently with
// Send.
func (l *Loopback) Attach(sink func(Update) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// Send assigns the next serial and delivers to all sinks. The payload is
// round-tripped through the JSON codec first, so loopback runs exercise
// exactly the bytes a real host would store.
func (l *Loopback) Send(ctx context.Context, p Payload) error {
	raw, err := MarshalPayload(p)
	if err != nil {
		return fmt.Errorf("loopback send: %w", err)
	}
	decoded, err := UnmarshalPayload(raw)
	if err != nil {
		return fmt.Errorf("loopback send: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.serial++
	u := Update{Serial: l.serial, MaxSerial: l.serial, Payload: decoded}
	for _, sink := range l.sinks {
		sink(u)
	}
	return nil
}
