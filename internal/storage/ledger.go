// Package storage is the tiny Badger-backed ledger standing in for the
// out-of-scope block storage engine: it persists LastArrivedBlockNumber
// across restarts and answers the LatestBlockNumber() read consulted by
// ForwardGate's serve-gate.
package storage

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/dgraph-io/badger/v4"
)

var lastArrivedKey = []byte("stratus:last_arrived_block_number")

// Ledger wraps a Badger database holding a single counter key. It
// implements the consensus.Storage interface without importing it,
// keeping internal/storage free of a dependency on internal/consensus.
type Ledger struct {
	db *badger.DB
}

// Open opens (creating if absent) a Badger database rooted at dir.
func Open(dir string) (*Ledger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: opening badger at %s: %w", dir, err)
	}
	return &Ledger{db: db}, nil
}

// OpenInMemory opens a Badger database backed by memory only, used by
// tests that don't want a filesystem dependency.
func OpenInMemory() (*Ledger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: opening in-memory badger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// LatestBlockNumber implements consensus.Storage. Returns 0 if no value
// has ever been persisted.
func (l *Ledger) LatestBlockNumber() uint64 {
	var value uint64
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(lastArrivedKey)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(raw []byte) error {
			if len(raw) != 8 {
				return fmt.Errorf("storage: corrupt last-arrived value (len=%d)", len(raw))
			}
			value = binary.BigEndian.Uint64(raw)
			return nil
		})
	})
	if err != nil {
		return 0
	}
	return value
}

// PersistLastArrived stores number as the current LastArrivedBlockNumber.
// Matches consensus.PersistFunc's signature for direct use as the
// LastArrivedBlockNumber persist hook.
func (l *Ledger) PersistLastArrived(number uint64) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, number)
	err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(lastArrivedKey, buf)
	})
	if err != nil {
		log.Printf("[Storage] WARN: persisting last arrived block number %d: %v", number, err)
	}
}
