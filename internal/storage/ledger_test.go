package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_LatestBlockNumber_DefaultsToZero(t *testing.T) {
	ledger, err := OpenInMemory()
	require.NoError(t, err)
	defer ledger.Close()

	assert.Equal(t, uint64(0), ledger.LatestBlockNumber())
}

func TestLedger_PersistThenRead(t *testing.T) {
	ledger, err := OpenInMemory()
	require.NoError(t, err)
	defer ledger.Close()

	ledger.PersistLastArrived(42)
	assert.Equal(t, uint64(42), ledger.LatestBlockNumber())

	ledger.PersistLastArrived(7)
	assert.Equal(t, uint64(7), ledger.LatestBlockNumber(), "persistence mirrors the unconditional overwrite semantics")
}
