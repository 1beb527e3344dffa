package consensus

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RoleMachine is C2: it tracks role, term, and the vote record, and runs the
// election timer (spec.md §4.2).
type RoleMachine struct {
	cfg      *Config
	registry *PeerRegistry
	storage  Storage
	rnd      *rand.Rand
	rndMu    sync.Mutex

	roleMu sync.RWMutex
	role   Role

	term atomic.Uint64

	votedMu  sync.Mutex
	votedFor *PeerAddress

	lastBlock *LastArrivedBlockNumber // shared with AppendService

	electionsStarted prometheus.Counter // optional, set via SetMetrics
}

// SetMetrics attaches the elections-started counter. Optional: a RoleMachine
// with no metrics attached simply skips the increment.
func (m *RoleMachine) SetMetrics(electionsStarted prometheus.Counter) {
	m.electionsStarted = electionsStarted
}

// NewRoleMachine constructs a RoleMachine. lastBlock is the shared
// LastArrivedBlockNumber counter (spec.md §3), owned jointly with
// AppendService since both read/update it.
func NewRoleMachine(cfg *Config, registry *PeerRegistry, storage Storage, lastBlock *LastArrivedBlockNumber) *RoleMachine {
	return &RoleMachine{
		cfg:       cfg,
		registry:  registry,
		storage:   storage,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		lastBlock: lastBlock,
	}
}

// Role returns the current role under the read lock (spec.md §5: "role:
// read/write lock; transitions take write").
func (m *RoleMachine) Role() Role {
	m.roleMu.RLock()
	defer m.roleMu.RUnlock()
	return m.role
}

func (m *RoleMachine) setRole(r Role) {
	m.roleMu.Lock()
	defer m.roleMu.Unlock()
	m.role = r
}

// Term returns current_term with acquire-equivalent semantics (an atomic
// load, per spec.md §5).
func (m *RoleMachine) Term() Term {
	return m.term.Load()
}

// VotedFor returns the candidate this node voted for in the current term,
// if any.
func (m *RoleMachine) VotedFor() (PeerAddress, bool) {
	m.votedMu.Lock()
	defer m.votedMu.Unlock()
	if m.votedFor == nil {
		return PeerAddress{}, false
	}
	return *m.votedFor, true
}

// randomTimeout picks a uniformly random duration in [min, max).
func (m *RoleMachine) randomTimeout(min, max time.Duration) time.Duration {
	m.rndMu.Lock()
	defer m.rndMu.Unlock()
	span := max - min
	if span <= 0 {
		return min
	}
	return min + time.Duration(m.rnd.Int63n(int64(span)))
}

// RunElectionTimer is the long-running loop from spec.md §4.2: every
// heartbeat_timeout, if this node isn't Leader, check whether every peer's
// last_heartbeat_instant is older than election_timeout; if so, start an
// election. heartbeat_timeout and election_timeout are each chosen once at
// startup (spec.md §4.2), matching the source's "choose the randomized
// bound once, not per tick" behavior.
func (m *RoleMachine) RunElectionTimer(ctx context.Context, selfAddr PeerAddress) {
	heartbeatTimeout := m.randomTimeout(m.cfg.HeartbeatTimeoutMin, m.cfg.HeartbeatTimeoutMax)
	electionTimeout := m.randomTimeout(m.cfg.ElectionTimeoutMin, m.cfg.ElectionTimeoutMax)

	ticker := time.NewTicker(heartbeatTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.Role() == RoleLeader {
				continue
			}
			if m.allPeersStale(electionTimeout) {
				m.StartElection(ctx, selfAddr)
			}
		}
	}
}

// allPeersStale reports whether every known peer's last_heartbeat_instant
// lies outside the election_timeout window. A registry with no peers is
// considered stale (a lone node should still be able to elect itself).
func (m *RoleMachine) allPeersStale(electionTimeout time.Duration) bool {
	peers := m.registry.Peers()
	cutoff := time.Now().Add(-electionTimeout)
	for _, p := range peers {
		if p.LastHeartbeat().After(cutoff) {
			return false
		}
	}
	return true
}

// StartElection runs the election procedure from spec.md §4.2.
func (m *RoleMachine) StartElection(ctx context.Context, selfAddr PeerAddress) {
	m.setRole(RoleCandidate)
	term := m.term.Add(1)
	m.votedMu.Lock()
	m.votedFor = &selfAddr
	m.votedMu.Unlock()

	if m.electionsStarted != nil {
		m.electionsStarted.Inc()
	}

	logInfof("election", m.cfg.NodeName, "starting election for term %d", term)

	req := &RequestVoteRequest{
		Term:         term,
		CandidateID:  selfAddr.String(),
		LastLogIndex: m.lastBlock.Load(),
		LastLogTerm:  term,
	}

	peers := m.registry.Peers()
	var wg sync.WaitGroup
	votes := make(chan bool, len(peers))

	for _, p := range peers {
		wg.Add(1)
		go func(p *Peer) {
			defer wg.Done()
			granted := m.requestVoteFrom(ctx, p, req)
			votes <- granted
		}(p)
	}

	wg.Wait()
	close(votes)

	granted := 1 // self-vote
	for g := range votes {
		if g {
			granted++
		}
	}

	if granted > len(peers)/2 {
		m.becomeLeader(term)
	} else {
		m.setRole(RoleFollower)
		logInfof("election", m.cfg.NodeName, "election lost for term %d (%d votes)", term, granted)
	}
}

// requestVoteFrom issues RequestVote to a single peer. Transport failures
// are logged warnings and counted as not-granted (spec.md §4.2 step 3:
// "failures are warnings").
func (m *RoleMachine) requestVoteFrom(ctx context.Context, p *Peer, req *RequestVoteRequest) bool {
	resp, err := p.Client.RequestVote(ctx, req)
	if err != nil {
		logWarnf("election", m.cfg.NodeName, "RequestVote to %s failed: %v", p.Address, err)
		return false
	}
	return resp.VoteGranted
}

func (m *RoleMachine) becomeLeader(term Term) {
	m.setRole(RoleLeader)
	logInfof("election", m.cfg.NodeName, "became leader for term %d", term)
}

// HandleRequestVote implements the server-side vote-granting logic from
// spec.md §4.2, called by AppendService (C4).
func (m *RoleMachine) HandleRequestVote(candidate PeerAddress, term Term) (respTerm Term, granted bool) {
	// votedMu is held across the term bump and the vote so concurrent
	// requests for the same term cannot each see a cleared vote record.
	m.votedMu.Lock()
	defer m.votedMu.Unlock()

	current := m.term.Load()

	if term < current {
		return current, false
	}

	if term > current {
		if m.term.CompareAndSwap(current, term) {
			m.votedFor = nil
			m.setRole(RoleFollower)
		}
		current = m.term.Load()
	}

	if m.votedFor == nil || *m.votedFor == candidate {
		m.votedFor = &candidate
		return current, true
	}
	return current, false
}
