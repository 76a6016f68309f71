// Package game implements the replicated state engine: the update log
// consumer, the outbound action producers, and the derived player view.
//
// ARCHITECTURE:
//
// Single-Writer Update Loop:
// Each device is one logical actor. All state mutation happens in the
// consumer's Run loop goroutine, which drains the inbound update queue in
// delivery order, performs one energy maintenance pass, then sleeps for a
// short poll interval. Producers (user actions) only send new updates and
// advance local state optimistically under the consumer's mutex; no two
// updates are ever applied concurrently.
//
// Replication model:
// The transport provides at-least-once delivery with a per-update strictly
// increasing serial and a batch max-serial watermark, scoped to one
// conversation. Updates are idempotent: the card-outcome handler discards
// outcomes whose (id, seen) pair was already recorded, so duplicate
// delivery and the optimistic local apply converge to the same state.
// This log is a per-device private outbox/inbox, not a multi-writer CRDT:
// dispatch only applies updates whose actor id matches the local actor.
//
// Recovery:
// The max-applied-serial watermark is persisted whenever an update's serial
// equals its batch maximum, so after a restart the transport resumes
// delivery past everything already applied and redelivered history is a
// no-op.
package game
