package consensus

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables consulted by LoadFromEnv, matching spec.md §6.
//
//	MY_POD_NAME                          this node's name / pod name
//	NAMESPACE                            cluster namespace for discovery (default "default")
//	STRATUS_GRPC_PORT                    AppendEntryService bind port (default 3777)
//	STRATUS_JSONRPC_PORT                 this node's JSON-RPC port (default 3000)
//	STRATUS_STATIC_PEERS                 comma-separated "host:jsonrpc;grpc" peer list
//	STRATUS_CLUSTER_SERVICE_LABEL        "app" label value used by cluster-API discovery
//	STRATUS_DISCOVERY_INTERVAL           discovery re-run period (default 30s)
//	STRATUS_ELECTION_MIN_MS/_MAX_MS      election_timeout bounds (default [1700,1900))
//	STRATUS_HEARTBEAT_MIN_MS/_MAX_MS     heartbeat_timeout bounds (default [1500,1700))
const (
	EnvPodName        = "MY_POD_NAME"
	EnvNamespace      = "NAMESPACE"
	EnvGRPCPort       = "STRATUS_GRPC_PORT"
	EnvJSONRPCPort    = "STRATUS_JSONRPC_PORT"
	EnvStaticPeers    = "STRATUS_STATIC_PEERS"
	EnvServiceLabel   = "STRATUS_CLUSTER_SERVICE_LABEL"
	EnvDiscoveryEvery = "STRATUS_DISCOVERY_INTERVAL"
	EnvElectionMinMs  = "STRATUS_ELECTION_MIN_MS"
	EnvElectionMaxMs  = "STRATUS_ELECTION_MAX_MS"
	EnvHeartbeatMinMs = "STRATUS_HEARTBEAT_MIN_MS"
	EnvHeartbeatMaxMs = "STRATUS_HEARTBEAT_MAX_MS"

	DefaultGRPCPort    = 3777
	DefaultJSONRPCPort = 3000
)

// Config holds the static configuration for the consensus subsystem.
type Config struct {
	// NodeName identifies this node in log lines and is used to exclude self
	// during cluster-API discovery. Sourced from MY_POD_NAME. It is not the
	// candidate_id sent in RequestVote, which is the self PeerAddress.
	NodeName string

	// Namespace scopes cluster-API discovery. Sourced from NAMESPACE.
	Namespace string

	// GRPCPort is this node's AppendEntryService bind port.
	GRPCPort uint16

	// JSONRPCPort is this node's JSON-RPC port.
	JSONRPCPort uint16

	// StaticPeers is the configured static peer list (spec.md §4.1).
	StaticPeers []PeerAddress

	// ServiceLabel is the "app=<value>" label used to filter pods during
	// cluster-API discovery (spec.md §4.1).
	ServiceLabel string

	// ClusterAPIEnabled turns on the Kubernetes workload-API discovery
	// source. When false only StaticPeers is used.
	ClusterAPIEnabled bool

	// DiscoveryInterval is how often PeerRegistry.Discover reruns (default 30s).
	DiscoveryInterval time.Duration

	// ElectionTimeoutMin/Max bound the randomized election_timeout
	// (default [1700,1900)ms, spec.md §4.2).
	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration

	// HeartbeatTimeoutMin/Max bound the randomized heartbeat_timeout
	// (default [1500,1700)ms, spec.md §4.2).
	HeartbeatTimeoutMin time.Duration
	HeartbeatTimeoutMax time.Duration

	// ImporterConfig, when non-nil, marks this node as mirroring an external
	// chain (spec.md §4.5, §6 "Importer config") instead of mining.
	ImporterConfig *ImporterConfig
}

// ImporterConfig names the external JSON-RPC endpoints used when this node
// imports blocks from another chain rather than producing its own.
type ImporterConfig struct {
	ExternalHTTPURL string
	ExternalWSURL   string
}

// LoadFromEnv builds a Config from the environment, applying the defaults
// named in spec.md §6. It does not validate; call Validate separately so
// callers can decide whether a misconfiguration is fatal (spec.md §7:
// "only startup misconfiguration ... aborts the process").
func LoadFromEnv() *Config {
	cfg := &Config{
		NodeName:            getEnv(EnvPodName, "stratus-local"),
		Namespace:           getEnv(EnvNamespace, "default"),
		GRPCPort:            uint16(getEnvInt(EnvGRPCPort, DefaultGRPCPort)),
		JSONRPCPort:         uint16(getEnvInt(EnvJSONRPCPort, DefaultJSONRPCPort)),
		ServiceLabel:        getEnv(EnvServiceLabel, ""),
		ClusterAPIEnabled:   getEnv(EnvServiceLabel, "") != "",
		DiscoveryInterval:   getEnvDuration(EnvDiscoveryEvery, 30*time.Second),
		ElectionTimeoutMin:  getEnvDurationMs(EnvElectionMinMs, 1700),
		ElectionTimeoutMax:  getEnvDurationMs(EnvElectionMaxMs, 1900),
		HeartbeatTimeoutMin: getEnvDurationMs(EnvHeartbeatMinMs, 1500),
		HeartbeatTimeoutMax: getEnvDurationMs(EnvHeartbeatMaxMs, 1700),
	}

	peers, bad := parsePeerList(getEnv(EnvStaticPeers, ""))
	cfg.StaticPeers = peers
	for _, raw := range bad {
		logWarnf("config", cfg.NodeName, "skipping malformed static peer %q", raw)
	}

	return cfg
}

// Validate checks invariants that would otherwise surface later as
// confusing runtime errors.
func (c *Config) Validate() error {
	if c.NodeName == "" {
		return fmt.Errorf("consensus: node name must not be empty")
	}
	if c.GRPCPort == 0 {
		return fmt.Errorf("consensus: grpc port must not be zero")
	}
	if c.ElectionTimeoutMax <= c.ElectionTimeoutMin {
		return fmt.Errorf("consensus: election timeout max (%s) must exceed min (%s)", c.ElectionTimeoutMax, c.ElectionTimeoutMin)
	}
	if c.HeartbeatTimeoutMax <= c.HeartbeatTimeoutMin {
		return fmt.Errorf("consensus: heartbeat timeout max (%s) must exceed min (%s)", c.HeartbeatTimeoutMax, c.HeartbeatTimeoutMin)
	}
	return nil
}

// ParseStaticPeerList parses a comma-separated static peer list for
// callers outside this package (the cmd/stratusd --static-peers flag).
func ParseStaticPeerList(s string) (ok []PeerAddress, bad []string) {
	return parsePeerList(s)
}

// parsePeerList parses a comma-separated static peer list, skipping (and
// returning) malformed entries rather than failing the whole list
// (spec.md §4.1: "Malformed entries are logged and skipped").
func parsePeerList(s string) (ok []PeerAddress, bad []string) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		addr, err := ParsePeerAddress(raw)
		if err != nil {
			bad = append(bad, raw)
			continue
		}
		ok = append(ok, addr)
	}
	return ok, bad
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultMs int) time.Duration {
	ms := getEnvInt(key, defaultMs)
	return time.Duration(ms) * time.Millisecond
}
