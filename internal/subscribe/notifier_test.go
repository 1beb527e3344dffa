package subscribe

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNotifier_S5_NewHeadsFanOut matches scenario S5: two connections
// subscribed to newHeads both receive the arriving header, and each
// subscription's sent counter becomes 1.
func TestNotifier_S5_NewHeadsFanOut(t *testing.T) {
	reg := NewRegistry()
	sink1 := newFakeSink("c1", "s1")
	sink2 := newFakeSink("c2", "s2")
	reg.AddNewHeads("client-a", sink1)
	reg.AddNewHeads("client-b", sink2)

	notifier := NewNotifier(reg, NewMetrics(prometheus.NewRegistry()))
	recv := make(chan BlockHeader, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go notifier.RunNewHeads(ctx, recv)

	header := BlockHeader{Number: 42}
	recv <- header

	assertReceived(t, sink1.received, header)
	assertReceived(t, sink2.received, header)

	subs := reg.snapshotNewHeads()
	for _, sub := range subs {
		assert.Equal(t, uint64(1), sub.SentCount())
	}
}

// TestNotifier_LogFilterMatching covers Testable Property 6: only logs
// satisfying filter.Matches are dispatched.
func TestNotifier_LogFilterMatching(t *testing.T) {
	reg := NewRegistry()
	matchSink := newFakeSink("c1", "s1")
	rejectSink := newFakeSink("c2", "s2")

	reg.AddLogs("client-a", stubFilter{key: "match", matchAll: true}, matchSink)
	reg.AddLogs("client-b", stubFilter{key: "reject", matchAll: false}, rejectSink)

	notifier := NewNotifier(reg, NewMetrics(prometheus.NewRegistry()))
	recv := make(chan LogMined, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go notifier.RunLogs(ctx, recv)

	log := LogMined{BlockNumber: 1, Address: "0xabc"}
	recv <- log

	assertReceived(t, matchSink.received, log)

	select {
	case <-rejectSink.received:
		t.Fatal("rejected filter must not receive the log")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestNotifier_Reaper_EventualEviction covers Testable Property 5: a
// subscription whose sink closes is absent from registry reads within one
// reaper cycle.
func TestNotifier_Reaper_EventualEviction(t *testing.T) {
	reg := NewRegistry()
	sink := newFakeSink("c1", "s1")
	reg.AddNewHeads("client-a", sink)
	sink.closed.Store(true)

	notifier := NewNotifier(reg, NewMetrics(prometheus.NewRegistry()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go notifier.RunReaper(ctx)

	require.Eventually(t, func() bool {
		_, newHeads, _ := reg.Counts()
		return newHeads == 0
	}, cleaningFrequency+2*time.Second, 50*time.Millisecond)
}

func assertReceived(t *testing.T, ch chan any, want any) {
	t.Helper()
	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}
