package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReplication_S4_RetryThenSucceed matches scenario S4: the peer stub
// fails twice with UnknownError then succeeds; the engine must retry the
// same head block until AppendSuccess, observed as three calls all for
// block 42.
func TestReplication_S4_RetryThenSucceed(t *testing.T) {
	cfg := testConfig("leader")
	client := &stubClient{
		appendResponses: []appendResult{
			{status: StatusUnknownError},
			{status: StatusUnknownError},
			{status: StatusAppendSuccess},
		},
	}

	bus := NewBus[Block](4)
	sub := bus.Subscribe()
	addr := PeerAddress{Host: "peer", JSONRPCPort: 3000, GRPCPort: 3777}
	peer := NewPeer(addr, client, sub)

	lastBlock := NewLastArrivedBlockNumber(0, nil)
	roles := NewRoleMachine(cfg, NewPeerRegistry(cfg, NewBus[Block](1), nil, nil, nil), nil, lastBlock)
	engine := NewReplicationEngine(cfg, roles, bus, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		engine.sendUntilSuccess(ctx, peer, Block{Header: BlockHeader{Number: 42}})
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("sendUntilSuccess did not complete in time")
	}

	require.Equal(t, 3, client.callCount())
	for _, req := range client.appendCalls {
		assert.Equal(t, uint64(42), req.Header.Number)
	}
}

// TestReplication_ProducerFeed_DropsWhenFollower verifies the leader-side
// bus feed only republishes while this node believes itself Leader
// (spec.md §4.3 "Followers do not republish").
func TestReplication_ProducerFeed_DropsWhenFollower(t *testing.T) {
	cfg := testConfig("node")
	lastBlock := NewLastArrivedBlockNumber(0, nil)
	roles := NewRoleMachine(cfg, NewPeerRegistry(cfg, NewBus[Block](1), nil, nil, nil), nil, lastBlock)
	bus := NewBus[Block](4)
	engine := NewReplicationEngine(cfg, roles, bus, nil)

	sub := bus.Subscribe()
	src := make(chan Block, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.RunProducerFeed(ctx, src)

	src <- Block{Header: BlockHeader{Number: 1}}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer recvCancel()
	_, err := sub.Recv(recvCtx)
	require.Error(t, err, "follower must not see the block republished")
}

// TestReplication_ProducerFeed_RepublishesWhenLeader verifies the
// complementary case.
func TestReplication_ProducerFeed_RepublishesWhenLeader(t *testing.T) {
	cfg := testConfig("node")
	lastBlock := NewLastArrivedBlockNumber(0, nil)
	roles := NewRoleMachine(cfg, NewPeerRegistry(cfg, NewBus[Block](1), nil, nil, nil), nil, lastBlock)
	roles.setRole(RoleLeader)
	bus := NewBus[Block](4)
	engine := NewReplicationEngine(cfg, roles, bus, nil)

	sub := bus.Subscribe()
	src := make(chan Block, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.RunProducerFeed(ctx, src)

	src <- Block{Header: BlockHeader{Number: 9}}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	block, err := sub.Recv(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), block.Header.Number)
}
