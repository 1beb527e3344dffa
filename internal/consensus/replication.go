package consensus

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// retryDelay is the fixed backoff between AppendBlockCommit retries
// (spec.md §4.3: RETRY_DELAY = 10ms).
const retryDelay = 10 * time.Millisecond

// producerCapacity bounds the leader-side feed channel between block
// production and the broadcast bus (spec.md §4.3).
const producerCapacity = 32

// ReplicationEngine is C3: a leader-side feed task that republishes
// produced blocks onto the shared bus only while this node is Leader, and
// one task per peer that drains its own Subscription and retries
// AppendBlockCommit indefinitely until it succeeds (spec.md §4.3).
type ReplicationEngine struct {
	cfg   *Config
	roles *RoleMachine
	bus   *Bus[Block]

	lastSent prometheus.Gauge
}

// NewReplicationEngine constructs the engine. lastSent, if non-nil, is
// updated with the block number most recently handed to the bus.
func NewReplicationEngine(cfg *Config, roles *RoleMachine, bus *Bus[Block], lastSent prometheus.Gauge) *ReplicationEngine {
	return &ReplicationEngine{cfg: cfg, roles: roles, bus: bus, lastSent: lastSent}
}

// RunProducerFeed consumes produced blocks from src and republishes them
// onto the broadcast bus only while this node believes itself Leader;
// blocks produced while Follower are dropped (spec.md §4.3 "Followers do
// not republish").
func (e *ReplicationEngine) RunProducerFeed(ctx context.Context, src <-chan Block) {
	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-src:
			if !ok {
				return
			}
			if e.roles.Role() != RoleLeader {
				continue
			}
			e.bus.Publish(block)
			if e.lastSent != nil {
				e.lastSent.Set(float64(block.Header.Number))
			}
		}
	}
}

// RunPeerReplication is the per-peer task spawned by PeerRegistry's
// ReplicationStarter callback (C1/C3 wiring). It drains peer.BlockQueue in
// strict arrival order and retries AppendBlockCommit with retryDelay
// backoff until the call succeeds, matching the source's "each peer
// connection is an independently retried FIFO pipe" behavior (spec.md §4.3,
// scenario S4).
func (e *ReplicationEngine) RunPeerReplication(ctx context.Context, peer *Peer) {
	for {
		block, err := peer.BlockQueue.Recv(ctx)
		if err != nil {
			if errors.Is(err, ErrBusClosed) || ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrLagged) {
				logWarnf("replication", e.cfg.NodeName, "peer %s lagged, resuming", peer.Address)
				continue
			}
			return
		}
		e.sendUntilSuccess(ctx, peer, block)
	}
}

func (e *ReplicationEngine) sendUntilSuccess(ctx context.Context, peer *Peer, block Block) {
	term := e.roles.Term()
	req := &AppendBlockCommitRequest{
		Term:   uint64(term),
		Header: &block.Header,
	}

	for {
		if ctx.Err() != nil {
			return
		}

		resp, err := peer.Client.AppendBlockCommit(ctx, req)
		if err == nil && resp.Status == StatusAppendSuccess {
			peer.Touch(time.Now())
			return
		}

		if err != nil {
			logWarnf("replication", e.cfg.NodeName, "AppendBlockCommit to %s failed: %v", peer.Address, err)
		} else {
			logWarnf("replication", e.cfg.NodeName, "AppendBlockCommit to %s rejected: %s", peer.Address, resp.Message)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

// NewProducerChannel returns a buffered channel of capacity producerCapacity
// for locally produced blocks, suitable as the src of RunProducerFeed
// (spec.md §4.3: bounded producer channel, capacity 32).
func NewProducerChannel() chan Block {
	return make(chan Block, producerCapacity)
}
