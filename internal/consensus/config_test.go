package consensus

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeerList_SkipsMalformedEntries(t *testing.T) {
	ok, bad := parsePeerList("10.0.0.1:3000;3777, garbage, 10.0.0.2:3000;3778")
	require.Len(t, ok, 2)
	require.Len(t, bad, 1)
	assert.Equal(t, "garbage", bad[0])
}

func TestParsePeerList_Empty(t *testing.T) {
	ok, bad := parsePeerList("")
	assert.Nil(t, ok)
	assert.Nil(t, bad)
}

func TestConfig_Validate_RejectsEmptyNodeName(t *testing.T) {
	cfg := testConfig("")
	cfg.GRPCPort = 3777
	err := cfg.Validate()
	require.Error(t, err)
}

func TestConfig_Validate_RejectsEqualElectionBounds(t *testing.T) {
	cfg := testConfig("A")
	cfg.GRPCPort = 3777
	cfg.ElectionTimeoutMin = cfg.ElectionTimeoutMax
	err := cfg.Validate()
	require.Error(t, err)
}

func TestConfig_LoadFromEnv_Defaults(t *testing.T) {
	os.Unsetenv(EnvGRPCPort)
	os.Unsetenv(EnvJSONRPCPort)
	os.Unsetenv(EnvStaticPeers)

	cfg := LoadFromEnv()
	assert.Equal(t, uint16(DefaultGRPCPort), cfg.GRPCPort)
	assert.Equal(t, uint16(DefaultJSONRPCPort), cfg.JSONRPCPort)
	assert.Empty(t, cfg.StaticPeers)
}

func TestConfig_LoadFromEnv_ParsesStaticPeers(t *testing.T) {
	t.Setenv(EnvStaticPeers, "10.0.0.1:3000;3777,10.0.0.2:3000;3777")
	cfg := LoadFromEnv()
	require.Len(t, cfg.StaticPeers, 2)
}
