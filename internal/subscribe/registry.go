package subscribe

import (
	"sync"
	"time"
)

// Registry is C6: it holds per-connection subscriptions across the three
// topics named in spec.md §3. All three maps share one read/write lock;
// adds take the write lock, notifier fan-outs take the read lock
// (spec.md §4.6).
type Registry struct {
	mu sync.RWMutex

	pendingTxs map[ConnectionID]*Subscription
	newHeads   map[ConnectionID]*Subscription
	logs       map[ConnectionID]map[string]logEntry
}

type logEntry struct {
	sub    *Subscription
	filter LogFilter
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pendingTxs: make(map[ConnectionID]*Subscription),
		newHeads:   make(map[ConnectionID]*Subscription),
		logs:       make(map[ConnectionID]map[string]logEntry),
	}
}

// CheckClientLimit counts clientID's subscriptions across all three topics
// and returns a SubscriptionLimitError if the sum is at or above max
// (spec.md §4.6).
func (r *Registry) CheckClientLimit(max int, clientID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, sub := range r.pendingTxs {
		if sub.ClientID == clientID {
			count++
		}
	}
	for _, sub := range r.newHeads {
		if sub.ClientID == clientID {
			count++
		}
	}
	for _, filters := range r.logs {
		for _, entry := range filters {
			if entry.sub.ClientID == clientID {
				count++
			}
		}
	}

	if count >= max {
		return &SubscriptionLimitError{Max: max}
	}
	return nil
}

// AddPendingTxs registers sink for the pending-txs topic, keyed by its
// connection ID. A repeat registration for the same connection overwrites
// the earlier sink (spec.md §3 Invariant 4).
func (r *Registry) AddPendingTxs(clientID string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingTxs[sink.ConnectionID()] = newSubscription(clientID, sink)
}

// AddNewHeads registers sink for the new-heads topic.
func (r *Registry) AddNewHeads(clientID string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newHeads[sink.ConnectionID()] = newSubscription(clientID, sink)
}

// AddLogs registers sink for the logs topic under the given filter. A
// repeat of the same (connection, filter) pair overwrites the earlier sink
// (spec.md §4.6 "newest wins").
func (r *Registry) AddLogs(clientID string, filter LogFilter, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn := sink.ConnectionID()
	filters, ok := r.logs[conn]
	if !ok {
		filters = make(map[string]logEntry)
		r.logs[conn] = filters
	}
	filters[filter.Key()] = logEntry{sub: newSubscription(clientID, sink), filter: filter}
}

func newSubscription(clientID string, sink Sink) *Subscription {
	return &Subscription{
		CreatedAt: time.Now(),
		ClientID:  clientID,
		Sink:      sink,
	}
}

// snapshotPendingTxs returns the current pending-txs subscriptions under
// the read lock, for the notifier to iterate without holding the lock
// across a send.
func (r *Registry) snapshotPendingTxs() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscription, 0, len(r.pendingTxs))
	for _, sub := range r.pendingTxs {
		out = append(out, sub)
	}
	return out
}

func (r *Registry) snapshotNewHeads() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscription, 0, len(r.newHeads))
	for _, sub := range r.newHeads {
		out = append(out, sub)
	}
	return out
}

// matchingLogEntry pairs a subscription with the filter it was registered
// under, for the logs notifier to test against an incoming log.
type matchingLogEntry struct {
	sub    *Subscription
	filter LogFilter
}

func (r *Registry) snapshotLogs() []matchingLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []matchingLogEntry
	for _, filters := range r.logs {
		for _, entry := range filters {
			out = append(out, matchingLogEntry{sub: entry.sub, filter: entry.filter})
		}
	}
	return out
}

// reap removes subscriptions whose sink reports closed from all three
// topics, dropping any connection entry in logs whose inner map becomes
// empty (spec.md §4.7 task 4).
func (r *Registry) reap() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conn, sub := range r.pendingTxs {
		if sub.Sink.IsClosed() {
			delete(r.pendingTxs, conn)
		}
	}
	for conn, sub := range r.newHeads {
		if sub.Sink.IsClosed() {
			delete(r.newHeads, conn)
		}
	}
	for conn, filters := range r.logs {
		for key, entry := range filters {
			if entry.sub.Sink.IsClosed() {
				delete(filters, key)
			}
		}
		if len(filters) == 0 {
			delete(r.logs, conn)
		}
	}
}

// Counts returns the current number of subscriptions per topic, useful for
// tests and observability.
func (r *Registry) Counts() (pendingTxs, newHeads, logs int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	logs = 0
	for _, filters := range r.logs {
		logs += len(filters)
	}
	return len(r.pendingTxs), len(r.newHeads), logs
}
