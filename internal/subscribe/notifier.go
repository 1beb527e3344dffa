package subscribe

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// notificationTimeout bounds every per-sink send (spec.md §4.7:
// NOTIFICATION_TIMEOUT = 10s).
const notificationTimeout = 10 * time.Second

// cleaningFrequency is the reaper's tick interval (spec.md §4.7:
// CLEANING_FREQUENCY = 10s).
const cleaningFrequency = 10 * time.Second

// Metrics groups the Prometheus collectors for the notifier (SPEC_FULL.md
// DOMAIN STACK).
type Metrics struct {
	Sent      *prometheus.CounterVec
	Timeouts  *prometheus.CounterVec
	Evictions *prometheus.CounterVec
}

// NewMetrics constructs and registers the subscribe metrics, labeled by
// topic ("pending_txs", "new_heads", "logs").
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stratus",
			Subsystem: "subscribe",
			Name:      "sent_total",
			Help:      "Count of notification dispatch attempts, by topic.",
		}, []string{"topic"}),
		Timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stratus",
			Subsystem: "subscribe",
			Name:      "send_timeouts_total",
			Help:      "Count of notification sends that exceeded the send timeout, by topic.",
		}, []string{"topic"}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stratus",
			Subsystem: "subscribe",
			Name:      "evictions_total",
			Help:      "Count of subscriptions removed by the reaper, by topic.",
		}, []string{"topic"}),
	}
	reg.MustRegister(m.Sent, m.Timeouts, m.Evictions)
	return m
}

// Notifier is C7: three topic fan-out loops plus a reaper, all consulting
// the shared Registry (spec.md §4.7).
type Notifier struct {
	registry *Registry
	metrics  *Metrics
}

// NewNotifier constructs a notifier bound to registry.
func NewNotifier(registry *Registry, metrics *Metrics) *Notifier {
	return &Notifier{registry: registry, metrics: metrics}
}

// RunPendingTxs consumes the pending-transactions broadcast and fans out
// each tx hash, as a "0x"-prefixed hex string, to every pending-txs
// subscriber.
func (n *Notifier) RunPendingTxs(ctx context.Context, recv <-chan TransactionExecution) {
	for {
		select {
		case <-ctx.Done():
			return
		case tx, ok := <-recv:
			if !ok {
				return
			}
			subs := n.registry.snapshotPendingTxs()
			for _, sub := range subs {
				n.dispatch(ctx, "pending_txs", sub, fmt.Sprintf("%#x", tx.Hash))
			}
		}
	}
}

// RunNewHeads consumes the block broadcast and fans out block headers to
// every new-heads subscriber.
func (n *Notifier) RunNewHeads(ctx context.Context, recv <-chan BlockHeader) {
	for {
		select {
		case <-ctx.Done():
			return
		case header, ok := <-recv:
			if !ok {
				return
			}
			subs := n.registry.snapshotNewHeads()
			for _, sub := range subs {
				n.dispatch(ctx, "new_heads", sub, header)
			}
		}
	}
}

// RunLogs consumes the mined-log broadcast and fans out to every logs
// subscriber whose filter matches (spec.md §4.7 task 3, Testable
// Property 6).
func (n *Notifier) RunLogs(ctx context.Context, recv <-chan LogMined) {
	for {
		select {
		case <-ctx.Done():
			return
		case log, ok := <-recv:
			if !ok {
				return
			}
			entries := n.registry.snapshotLogs()
			for _, entry := range entries {
				if !entry.filter.Matches(log) {
					continue
				}
				n.dispatch(ctx, "logs", entry.sub, log)
			}
		}
	}
}

// RunReaper evicts closed sinks from the registry every cleaningFrequency
// until ctx is cancelled (spec.md §4.7 task 4, Testable Property 5).
func (n *Notifier) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(cleaningFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beforeTxs, beforeHeads, beforeLogs := n.registry.Counts()
			n.registry.reap()
			afterTxs, afterHeads, afterLogs := n.registry.Counts()
			if n.metrics != nil {
				n.recordEviction("pending_txs", beforeTxs-afterTxs)
				n.recordEviction("new_heads", beforeHeads-afterHeads)
				n.recordEviction("logs", beforeLogs-afterLogs)
			}
		}
	}
}

func (n *Notifier) recordEviction(topic string, count int) {
	if count > 0 {
		n.metrics.Evictions.WithLabelValues(topic).Add(float64(count))
	}
}

// dispatch sends payload to sub.Sink as an independent goroutine with the
// notification timeout, incrementing the sent counter once per attempt
// regardless of outcome (spec.md §4.7 "Send policy").
func (n *Notifier) dispatch(ctx context.Context, topic string, sub *Subscription, payload any) {
	sub.markSent()
	if n.metrics != nil {
		n.metrics.Sent.WithLabelValues(topic).Inc()
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(ctx, notificationTimeout)
		defer cancel()

		if err := sub.Sink.SendTimeout(sendCtx, payload, notificationTimeout); err != nil {
			if n.metrics != nil {
				n.metrics.Timeouts.WithLabelValues(topic).Inc()
			}
			logNotifyError(topic, sub.Sink.ConnectionID(), err)
		}
	}()
}
