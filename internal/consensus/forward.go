package consensus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// forwardTimeout bounds the relayed eth_sendRawTransaction call (spec.md
// §4.4: "2 second timeout HTTP client").
const forwardTimeout = 2 * time.Second

// ForwardGate is C5: it decides whether this node should itself serve
// reads/accept writes, or forward writes to the current leader (spec.md
// §4.4, supplemented by original_source/src/eth/consensus/mod.rs's
// forward_to submodule).
type ForwardGate struct {
	cfg       *Config
	roles     *RoleMachine
	registry  *PeerRegistry
	storage   Storage
	lastBlock *LastArrivedBlockNumber

	client *http.Client
}

// NewForwardGate constructs the gate.
func NewForwardGate(cfg *Config, roles *RoleMachine, registry *PeerRegistry, storage Storage, lastBlock *LastArrivedBlockNumber) *ForwardGate {
	return &ForwardGate{
		cfg:       cfg,
		roles:     roles,
		registry:  registry,
		storage:   storage,
		lastBlock: lastBlock,
		client:    &http.Client{Timeout: forwardTimeout},
	}
}

// ShouldForward reports whether write RPCs must be relayed elsewhere: false
// only when this node is Leader and no importer is configured, meaning it
// serves writes locally; true otherwise (spec.md §4.4 step 1).
func (g *ForwardGate) ShouldForward() bool {
	if g.roles.Role() == RoleLeader && (g.cfg.ImporterConfig == nil || g.cfg.ImporterConfig.ExternalHTTPURL == "") {
		return false
	}
	return true
}

// ShouldServe reports whether this node is caught up enough to answer
// reads (spec.md §4.4 step 2). With no known peers, a node trusts its own
// leadership status. With peers present, it tolerates local storage being
// up to 2 blocks behind LastArrivedBlockNumber.
func (g *ForwardGate) ShouldServe() bool {
	if g.registry.Len() == 0 {
		return g.roles.Role() == RoleLeader
	}
	var margin uint64 = 2
	last := g.lastBlock.Load()
	if last < margin {
		return true
	}
	return last-margin <= g.storage.LatestBlockNumber()
}

// ChainURL resolves the JSON-RPC endpoint write RPCs should be forwarded
// to: the peer this node currently believes is Leader, or the configured
// external importer URL as a fallback (spec.md §4.4 step 3).
func (g *ForwardGate) ChainURL() (string, bool) {
	if url, ok := g.registry.LeaderURL(); ok {
		return url, true
	}
	if g.cfg.ImporterConfig != nil && g.cfg.ImporterConfig.ExternalHTTPURL != "" {
		return g.cfg.ImporterConfig.ExternalHTTPURL, true
	}
	return "", false
}

// jsonRPCRequest is the minimal eth_sendRawTransaction envelope relayed by
// Forward.
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// Forward relays a raw signed transaction to the resolved chain URL via
// eth_sendRawTransaction, returning the raw JSON-RPC response body
// (spec.md §4.4 step 4).
func (g *ForwardGate) Forward(ctx context.Context, rawTx string) ([]byte, error) {
	url, ok := g.ChainURL()
	if !ok {
		return nil, fmt.Errorf("consensus: no forwarding target available")
	}

	payload, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_sendRawTransaction",
		Params:  []any{rawTx},
	})
	if err != nil {
		return nil, fmt.Errorf("consensus: encoding forwarded request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("consensus: building forwarded request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("consensus: forwarding to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("consensus: reading forwarded response: %w", err)
	}
	return body, nil
}
