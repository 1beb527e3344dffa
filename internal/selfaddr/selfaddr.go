// Package selfaddr discovers this process's outbound IP address using the
// UDP "connect" trick (spec.md §6): open a UDP socket, "connect" it to an
// external address without sending a packet, and read the local address
// the kernel would use to route there.
package selfaddr

import (
	"fmt"
	"net"
)

// DefaultProbeTarget is the address dialed to force route resolution; no
// packet is actually sent to it over UDP.
const DefaultProbeTarget = "8.8.8.8:80"

// Discover returns this host's outbound IP by dialing target over UDP and
// inspecting the resulting local address. Isolated behind a target
// parameter so tests can substitute a fake target without real network
// access.
func Discover(target string) (net.IP, error) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return nil, fmt.Errorf("selfaddr: dialing %s: %w", target, err)
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("selfaddr: unexpected local address type %T", conn.LocalAddr())
	}
	return local.IP, nil
}
