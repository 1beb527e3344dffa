package consensus

import "sync/atomic"

// PersistFunc durably records the latest block number observed by this
// node. internal/storage supplies the Badger-backed implementation; nil
// disables persistence (used in tests).
type PersistFunc func(number uint64)

// LastArrivedBlockNumber is the shared counter read by RoleMachine (as
// last_log_index), by ForwardGate (as the serve-gate height), and updated
// unconditionally by AppendService on every AppendBlockCommit call
// (spec.md §3, §9 "accepted limitation: unconditional overwrite, not a
// max").
type LastArrivedBlockNumber struct {
	value   atomic.Uint64
	persist PersistFunc
}

// NewLastArrivedBlockNumber constructs the counter seeded from storage at
// startup. persist may be nil.
func NewLastArrivedBlockNumber(seed uint64, persist PersistFunc) *LastArrivedBlockNumber {
	l := &LastArrivedBlockNumber{persist: persist}
	l.value.Store(seed)
	return l
}

// Load returns the current value.
func (l *LastArrivedBlockNumber) Load() uint64 {
	return l.value.Load()
}

// Set unconditionally overwrites the stored value and persists it,
// returning the previous value so callers can compute the commit diff
// metric. This is a deliberately ported limitation: a late or
// out-of-order AppendBlockCommit call can move the number backwards
// (spec.md §9 item 2; TestAppendBlockCommit_UnconditionalOverwrite in
// appendservice_test.go covers this).
func (l *LastArrivedBlockNumber) Set(number uint64) (previous uint64) {
	previous = l.value.Swap(number)
	if l.persist != nil {
		l.persist(number)
	}
	return previous
}
