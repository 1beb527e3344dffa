// Package subscribe implements the multi-topic WebSocket subscription
// fan-out engine: SubscriptionRegistry (C6) holds per-connection
// subscriptions across three topics, and Notifier (C7) drains broadcast
// channels and dispatches to matching sinks.
package subscribe

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// ConnectionID identifies the WebSocket connection a subscription belongs
// to. Kept as a distinct type rather than a bare string, since it is used
// purely as an opaque map key and a typed key prevents accidental
// string-concatenation bugs.
type ConnectionID string

// SubscriptionID identifies a single subscription within a connection.
type SubscriptionID string

// Sink is the consumed-not-owned JSON-RPC boundary: a WebSocket
// subscription endpoint supplied by the RPC layer that accepts messages
// with a timeout and reports its own closure.
type Sink interface {
	SendTimeout(ctx context.Context, payload any, timeout time.Duration) error
	IsClosed() bool
	ConnectionID() ConnectionID
	SubscriptionID() SubscriptionID
}

// Subscription is the registry's bookkeeping record for one sink.
type Subscription struct {
	CreatedAt time.Time
	ClientID  string
	Sink      Sink

	sent uint64
}

// SentCount returns the number of dispatch attempts made for this
// subscription so far.
func (s *Subscription) SentCount() uint64 {
	return atomic.LoadUint64(&s.sent)
}

// markSent increments the dispatch-attempt counter. Called once per send
// dispatch regardless of outcome (spec.md §4.7 "Send policy").
func (s *Subscription) markSent() {
	atomic.AddUint64(&s.sent, 1)
}

// LogFilter is an opaque predicate over a mined log, with stable equality
// used as a map key to deduplicate identical filters registered by the same
// connection (spec.md §3).
type LogFilter interface {
	Matches(log LogMined) bool
	// Key returns a stable, comparable representation of the filter used
	// as the map key in the nested logs registry. Two filters that should
	// be treated as duplicates MUST return equal keys.
	Key() string
}

// LogMined is opaque to this package; only fields referenced by filters
// and notification payloads are named.
type LogMined struct {
	BlockNumber uint64
	Address     string
	Topics      []string
	Data        []byte
}

// BlockHeader mirrors consensus.BlockHeader's shape for the new-heads topic
// without importing the consensus package, keeping subscribe free of a
// dependency the spec never asks for.
type BlockHeader struct {
	Number uint64
	Hash   [32]byte
}

// TransactionExecution mirrors consensus.TransactionExecution's shape for
// the pending-txs topic.
type TransactionExecution struct {
	Hash [32]byte
}

// SubscriptionLimitError is returned by Registry.CheckClientLimit when a
// client has reached its subscription quota (spec.md §7).
type SubscriptionLimitError struct {
	Max int
}

func (e *SubscriptionLimitError) Error() string {
	return fmt.Sprintf("subscription limit reached: max %d", e.Max)
}
