package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOutToAllConsumers(t *testing.T) {
	bus := NewBus[int](4)
	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()

	bus.Publish(42)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v1, err := sub1.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v1)

	v2, err := sub2.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v2)
}

func TestBus_LaggedConsumerDropsOldest(t *testing.T) {
	bus := NewBus[int](1)
	sub := bus.Subscribe()

	bus.Publish(1)
	bus.Publish(2) // sub's buffer (size 1) is full; oldest value dropped, lagged flagged

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := sub.Recv(ctx)
	require.ErrorIs(t, err, ErrLagged)

	v, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus[int](4)
	sub := bus.Subscribe()
	sub.Unsubscribe()

	bus.Publish(7) // must not panic or block despite no live consumers

	assert.Equal(t, 0, bus.consumerCount())
}

func TestBus_CloseEndsPendingRecv(t *testing.T) {
	bus := NewBus[int](4)
	sub := bus.Subscribe()
	bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := sub.Recv(ctx)
	require.ErrorIs(t, err, ErrBusClosed)
}

func TestBus_RecvRespectsContextCancellation(t *testing.T) {
	bus := NewBus[int](4)
	sub := bus.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sub.Recv(ctx)
	require.Error(t, err)
}
