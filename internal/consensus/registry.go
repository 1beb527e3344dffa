package consensus

import (
	"context"
	"sync"
	"time"
)

// ReplicationStarter spawns the per-peer replication task (C3) for a newly
// discovered peer. PeerRegistry depends on this function instead of the
// concrete ReplicationEngine type so the two components stay decoupled, the
// way the teacher wires Transport/ConnectionHandler callbacks into
// pkg/replication/ha_standby.go rather than importing a concrete transport.
type ReplicationStarter func(ctx context.Context, peer *Peer)

// PeerRegistry is C1: it discovers peers (static list + optional cluster-API),
// opens gRPC client channels, deduplicates by address, and owns the Peer map
// read by RoleMachine (C2) and ForwardGate (C5).
type PeerRegistry struct {
	cfg          *Config
	bus          *Bus[Block]
	dial         PeerDialer
	clusterAPI   ClusterAPISource
	startReplica ReplicationStarter

	mu    sync.RWMutex
	peers map[PeerAddress]*Peer

	cancelMu sync.Mutex
	cancels  map[PeerAddress]context.CancelFunc
}

// NewPeerRegistry constructs a registry. clusterAPI may be nil to disable
// the cluster-API discovery source (spec.md §4.1: "Cluster-API source
// (optional)").
func NewPeerRegistry(cfg *Config, bus *Bus[Block], dial PeerDialer, clusterAPI ClusterAPISource, startReplica ReplicationStarter) *PeerRegistry {
	if dial == nil {
		dial = DialPeer
	}
	return &PeerRegistry{
		cfg:          cfg,
		bus:          bus,
		dial:         dial,
		clusterAPI:   clusterAPI,
		startReplica: startReplica,
		peers:        make(map[PeerAddress]*Peer),
		cancels:      make(map[PeerAddress]context.CancelFunc),
	}
}

// Run performs an initial discovery pass and then re-runs Discover every
// cfg.DiscoveryInterval until ctx is cancelled (spec.md §4.1: "Runs once at
// startup and periodically every 30 s").
func (r *PeerRegistry) Run(ctx context.Context) {
	r.Discover(ctx)

	ticker := time.NewTicker(r.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Discover(ctx)
		}
	}
}

// Discover unions the static peer list with the cluster-API source (static
// entries losing to cluster-API duplicates that resolve to the same
// PeerAddress, per spec.md §4.1), then connects every address not already
// present. All failures are logged as warnings; discovery never returns an
// error (spec.md §4.1 "All errors surface as warnings; discovery is
// best-effort").
func (r *PeerRegistry) Discover(ctx context.Context) {
	discovered := make(map[PeerAddress]struct{}, len(r.cfg.StaticPeers))
	for _, addr := range r.cfg.StaticPeers {
		discovered[addr] = struct{}{}
	}

	if r.clusterAPI != nil {
		addrs, err := r.clusterAPI.Discover(ctx)
		if err != nil {
			logWarnf("registry", r.cfg.NodeName, "cluster-api discovery failed: %v", err)
		}
		for _, addr := range addrs {
			discovered[addr] = struct{}{}
		}
	}

	for addr := range discovered {
		r.connectIfNew(ctx, addr)
	}
}

// connectIfNew opens a channel and spawns replication for addr unless it is
// already known. Existing entries are never reopened or replaced, even if
// the remote has restarted (spec.md §4.1 accepted limitation, §9 item 5).
func (r *PeerRegistry) connectIfNew(ctx context.Context, addr PeerAddress) {
	r.mu.RLock()
	_, exists := r.peers[addr]
	r.mu.RUnlock()
	if exists {
		return
	}

	client, err := r.dial(addr)
	if err != nil {
		logWarnf("registry", r.cfg.NodeName, "connect to peer %s failed: %v", addr, err)
		return
	}

	queue := r.bus.Subscribe()
	peer := NewPeer(addr, client, queue)

	r.mu.Lock()
	if _, exists := r.peers[addr]; exists {
		// Lost the race with a concurrent discovery cycle; keep the
		// winner and tear down the handle we just opened.
		r.mu.Unlock()
		queue.Unsubscribe()
		client.Close()
		return
	}
	r.peers[addr] = peer
	r.mu.Unlock()

	peerCtx, cancel := context.WithCancel(ctx)
	r.cancelMu.Lock()
	r.cancels[addr] = cancel
	r.cancelMu.Unlock()

	if r.startReplica != nil {
		r.startReplica(peerCtx, peer)
	}

	logInfof("registry", r.cfg.NodeName, "discovered peer %s", addr)
}

// Peers returns a snapshot slice of currently known peers. Callers must not
// mutate Peer fields except through its own synchronized methods.
func (r *PeerRegistry) Peers() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Len returns the number of known peers.
func (r *PeerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Get looks up a peer by address.
func (r *PeerRegistry) Get(addr PeerAddress) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[addr]
	return p, ok
}

// LeaderURL returns the JSON-RPC URL of any peer this node currently
// believes is Leader, used by ForwardGate (C5).
func (r *PeerRegistry) LeaderURL() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for addr, p := range r.peers {
		if role, _ := p.RoleTerm(); role == RoleLeader {
			return addr.JSONRPCHTTPURL(), true
		}
	}
	return "", false
}

// Shutdown cancels every per-peer replication task started by this
// registry.
func (r *PeerRegistry) Shutdown() {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
}
