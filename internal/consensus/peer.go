package consensus

import (
	"sync"
	"time"
)

// Peer is the mutable per-follower record owned exclusively by PeerRegistry
// (spec.md §3). It is created the first time discovery sees an address and
// destroyed only on process exit; rediscovery of the same address is a
// no-op (spec.md §4.1 "Existing entries are never reopened or replaced").
type Peer struct {
	Address PeerAddress
	Client  AppendEntryClient

	// BlockQueue is this peer's consumer handle on the block broadcast bus,
	// drained exclusively by its ReplicationEngine task (spec.md §4.3).
	BlockQueue *Subscription[Block]

	mu                sync.Mutex
	lastHeartbeat     time.Time
	matchIndex        uint64
	nextIndex         uint64
	role              Role
	term              Term
}

// NewPeer constructs a Peer record. last_heartbeat_instant starts at the
// zero time so a freshly discovered peer looks immediately stale to the
// election timer, matching the source's behavior of never crediting an
// unconfirmed peer with liveness.
func NewPeer(addr PeerAddress, client AppendEntryClient, queue *Subscription[Block]) *Peer {
	return &Peer{
		Address:    addr,
		Client:     client,
		BlockQueue: queue,
	}
}

// Touch records a liveness signal from this peer. ReplicationEngine calls it
// when the peer answers an AppendBlockCommit with AppendSuccess; there is no
// dedicated leader heartbeat. AppendService does not call Touch when it
// receives an AppendBlockCommit, so a follower records no liveness for the
// leader that sent it.
func (p *Peer) Touch(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastHeartbeat = now
}

// LastHeartbeat returns the last recorded liveness instant.
func (p *Peer) LastHeartbeat() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHeartbeat
}

// SetRoleTerm records this node's latest belief about the peer's role and
// term, used by ForwardGate (C5) to find the current leader among peers.
func (p *Peer) SetRoleTerm(role Role, term Term) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.role = role
	p.term = term
}

// RoleTerm returns this node's latest belief about the peer's role and term.
func (p *Peer) RoleTerm() (Role, Term) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role, p.term
}

// SetIndexes records match/next index bookkeeping (spec.md §3). Since this
// port does not implement log matching (spec.md §1 Non-goals), these are
// advisory only: observability of replication progress, not a correctness
// dependency.
func (p *Peer) SetIndexes(match, next uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.matchIndex = match
	p.nextIndex = next
}

func (p *Peer) Indexes() (match, next uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matchIndex, p.nextIndex
}
