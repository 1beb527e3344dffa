package selfaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_ReturnsLocalOutboundIP(t *testing.T) {
	// net.Dial with "udp" never sends a packet for a non-existent target on
	// the loopback range, matching the production probe's behavior of not
	// requiring the target to be reachable.
	ip, err := Discover("127.0.0.1:65000")
	require.NoError(t, err)
	assert.NotNil(t, ip)
	assert.True(t, ip.IsLoopback())
}

func TestDiscover_InvalidTargetFails(t *testing.T) {
	_, err := Discover("not-a-valid-target")
	require.Error(t, err)
}
