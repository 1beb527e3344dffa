package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeerAddress_Valid(t *testing.T) {
	addr, err := ParsePeerAddress("10.0.0.1:3000;3777")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", addr.Host)
	assert.Equal(t, uint16(3000), addr.JSONRPCPort)
	assert.Equal(t, uint16(3777), addr.GRPCPort)
}

func TestParsePeerAddress_MissingGRPCPort(t *testing.T) {
	_, err := ParsePeerAddress("10.0.0.1:3000")
	require.Error(t, err)
}

func TestParsePeerAddress_EmptyHost(t *testing.T) {
	_, err := ParsePeerAddress(":3000;3777")
	require.Error(t, err)
}

func TestParsePeerAddress_NonNumericPort(t *testing.T) {
	_, err := ParsePeerAddress("10.0.0.1:abc;3777")
	require.Error(t, err)
}

func TestPeerAddress_RoundTrip(t *testing.T) {
	addr := PeerAddress{Host: "10.0.0.1", JSONRPCPort: 3000, GRPCPort: 3777}
	parsed, err := ParsePeerAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)
}

func TestPeerAddress_GRPCTarget(t *testing.T) {
	addr := PeerAddress{Host: "10.0.0.1", JSONRPCPort: 3000, GRPCPort: 3777}
	assert.Equal(t, "10.0.0.1:3777", addr.GRPCTarget())
}

func TestPeerAddress_JSONRPCHTTPURL(t *testing.T) {
	addr := PeerAddress{Host: "10.0.0.1", JSONRPCPort: 3000, GRPCPort: 3777}
	assert.Equal(t, "http://10.0.0.1:3000", addr.JSONRPCHTTPURL())
}
