// Package consensus implements Stratus's leader-replicated consensus and
// block-propagation subsystem: peer discovery, Raft-style election, per-peer
// ordered block replication, the AppendEntryService gRPC server, and the
// forwarding-gate logic consulted by the JSON-RPC layer.
package consensus

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is the node's position in the election state machine.
type Role int

const (
	RoleFollower Role = iota
	RoleCandidate
	RoleLeader
)

func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "follower"
	case RoleCandidate:
		return "candidate"
	case RoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// PeerAddress identifies a remote node by host and the two ports it serves:
// JSON-RPC and the AppendEntryService gRPC port. It is immutable once
// constructed and is used as a map key, so equality is by value.
//
// Wire encoding is "host:jsonrpc_port;grpc_port" (note the ';' separator).
type PeerAddress struct {
	Host        string
	JSONRPCPort uint16
	GRPCPort    uint16
}

// String renders the peer address in its wire form.
func (a PeerAddress) String() string {
	return fmt.Sprintf("%s:%d;%d", a.Host, a.JSONRPCPort, a.GRPCPort)
}

// GRPCTarget returns the dial target for this peer's AppendEntryService.
func (a PeerAddress) GRPCTarget() string {
	return fmt.Sprintf("%s:%d", a.Host, a.GRPCPort)
}

// JSONRPCHTTPURL returns the HTTP JSON-RPC URL for this peer.
func (a PeerAddress) JSONRPCHTTPURL() string {
	return fmt.Sprintf("http://%s:%d", a.Host, a.JSONRPCPort)
}

// ParsePeerAddress parses "host:jsonrpc_port;grpc_port". A missing ';grpc_port'
// segment, or a non-numeric port, is a parse error.
func ParsePeerAddress(s string) (PeerAddress, error) {
	hostPort, grpcPart, ok := strings.Cut(s, ";")
	if !ok {
		return PeerAddress{}, fmt.Errorf("consensus: invalid peer address %q: missing ';grpc_port'", s)
	}

	host, jsonrpcPart, ok := lastColonCut(hostPort)
	if !ok {
		return PeerAddress{}, fmt.Errorf("consensus: invalid peer address %q: missing host:jsonrpc_port", s)
	}

	jsonrpcPort, err := strconv.ParseUint(jsonrpcPart, 10, 16)
	if err != nil {
		return PeerAddress{}, fmt.Errorf("consensus: invalid jsonrpc port in %q: %w", s, err)
	}

	grpcPort, err := strconv.ParseUint(grpcPart, 10, 16)
	if err != nil {
		return PeerAddress{}, fmt.Errorf("consensus: invalid grpc port in %q: %w", s, err)
	}

	if host == "" {
		return PeerAddress{}, fmt.Errorf("consensus: invalid peer address %q: empty host", s)
	}

	return PeerAddress{Host: host, JSONRPCPort: uint16(jsonrpcPort), GRPCPort: uint16(grpcPort)}, nil
}

// lastColonCut splits on the last ':' in s, the way a host:port pair must be
// split when the host itself may be an IPv6 literal or contain no colons.
func lastColonCut(s string) (before, after string, found bool) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// Term is Stratus's monotonically increasing election epoch. It only ever
// increases; see Invariant 2 in spec.md §3.
type Term = uint64

// BlockHeader is the opaque (to this package) header carried by block
// replication and AppendBlockCommit. Only Number is referenced by consensus
// logic; the remaining bytes are produced and interpreted by the EVM
// execution layer, which is out of scope (spec.md §1).
type BlockHeader struct {
	Number uint64
	Hash   [32]byte
}

// Block is the opaque (to this package) unit that flows over the block
// broadcast bus. Only the header is replicated to followers; transaction
// bodies are not (spec.md §9, known limitation 2).
type Block struct {
	Header BlockHeader
}

// TransactionExecution is opaque except for its Hash, referenced by the
// pending-tx notifier (spec.md §3).
type TransactionExecution struct {
	Hash [32]byte
}

// StatusCode mirrors the gRPC AppendBlockCommitResponse/AppendTransactionExecutionsResponse
// status field (spec.md §6). Any non-zero value is a retriable failure to the
// caller.
type StatusCode int32

const (
	StatusAppendSuccess StatusCode = 0
	StatusUnknownError  StatusCode = 1
	StatusInvalidHeader StatusCode = 2
)
