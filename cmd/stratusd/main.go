// Package main provides the stratusd CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dinhani/stratus/internal/consensus"
	"github.com/dinhani/stratus/internal/selfaddr"
	"github.com/dinhani/stratus/internal/storage"
	"github.com/dinhani/stratus/internal/subscribe"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stratusd",
		Short: "Stratus consensus and subscription node",
		Long: `stratusd runs the leader-replicated consensus and block-propagation
subsystem together with the WebSocket RPC subscription fan-out engine.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stratusd v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the consensus and subscription node",
		RunE:  runServe,
	}
	serveCmd.Flags().Int("grpc-port", consensus.DefaultGRPCPort, "AppendEntryService bind port")
	serveCmd.Flags().Int("jsonrpc-port", consensus.DefaultJSONRPCPort, "this node's JSON-RPC port")
	serveCmd.Flags().String("static-peers", "", "comma-separated host:jsonrpc;grpc peer list")
	serveCmd.Flags().Int("election-timeout-min-ms", 1700, "election timeout lower bound, ms")
	serveCmd.Flags().Int("election-timeout-max-ms", 1900, "election timeout upper bound, ms")
	serveCmd.Flags().String("data-dir", "./data", "badger ledger data directory")
	serveCmd.Flags().String("metrics-addr", ":9464", "Prometheus metrics listen address")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := consensus.LoadFromEnv()
	applyFlagOverrides(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("stratusd: invalid configuration: %w", err)
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	ledger, err := storage.Open(dataDir)
	if err != nil {
		return fmt.Errorf("stratusd: opening ledger: %w", err)
	}
	defer ledger.Close()

	selfIP, err := selfaddr.Discover(selfaddr.DefaultProbeTarget)
	if err != nil {
		return fmt.Errorf("stratusd: discovering self address: %w", err)
	}
	selfAddr := consensus.PeerAddress{
		Host:        selfIP.String(),
		JSONRPCPort: cfg.JSONRPCPort,
		GRPCPort:    cfg.GRPCPort,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go waitForShutdownSignal(cancel)

	registry := prometheus.NewRegistry()
	metrics := consensus.NewMetrics(registry)
	subMetrics := subscribe.NewMetrics(registry)

	lastBlock := consensus.NewLastArrivedBlockNumber(ledger.LatestBlockNumber(), ledger.PersistLastArrived)
	bus := consensus.NewBus[consensus.Block](32)

	var clusterAPI consensus.ClusterAPISource
	if cfg.ClusterAPIEnabled {
		src, err := consensus.NewKubernetesPodSource(cfg)
		if err != nil {
			logWarnStartup("cluster-api discovery disabled: %v", err)
		} else {
			clusterAPI = src
		}
	}

	var engine *consensus.ReplicationEngine
	peerRegistry := consensus.NewPeerRegistry(cfg, bus, consensus.DialPeer, clusterAPI, func(peerCtx context.Context, peer *consensus.Peer) {
		go engine.RunPeerReplication(peerCtx, peer)
	})

	roles := consensus.NewRoleMachine(cfg, peerRegistry, ledger, lastBlock)
	roles.SetMetrics(metrics.ElectionsStarted)
	engine = consensus.NewReplicationEngine(cfg, roles, bus, metrics.LastSentBlock)

	appendSvc := consensus.NewAppendService(cfg, roles, lastBlock, metrics)
	// forwardGate is consulted by the JSON-RPC method dispatcher, which this
	// binary does not implement; constructed here so it is ready to wire in.
	_ = consensus.NewForwardGate(cfg, roles, peerRegistry, ledger, lastBlock)

	subRegistry := subscribe.NewRegistry()
	notifier := subscribe.NewNotifier(subRegistry, subMetrics)

	// pendingTxs and logs are fed by the EVM execution layer, which this
	// binary does not implement (spec.md §1 out-of-scope collaborator);
	// the loops still run so subscriptions reap correctly even with no
	// producer attached yet.
	pendingTxs := make(chan subscribe.TransactionExecution)
	logs := make(chan subscribe.LogMined)
	newHeads := make(chan subscribe.BlockHeader, 32)

	go peerRegistry.Run(ctx)
	go roles.RunElectionTimer(ctx, selfAddr)
	go notifier.RunReaper(ctx)
	go notifier.RunPendingTxs(ctx, pendingTxs)
	go notifier.RunLogs(ctx, logs)
	go notifier.RunNewHeads(ctx, newHeads)
	go bridgeNewHeads(ctx, bus, newHeads)
	go func() {
		if err := appendSvc.Serve(ctx, selfAddr); err != nil {
			logWarnStartup("grpc server stopped: %v", err)
		}
	}()

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	go serveMetrics(metricsAddr, registry)

	fmt.Printf("stratusd v%s node=%s grpc=%d jsonrpc=%d\n", version, cfg.NodeName, cfg.GRPCPort, cfg.JSONRPCPort)

	<-ctx.Done()
	peerRegistry.Shutdown()
	return nil
}

// bridgeNewHeads subscribes to the consensus block bus and republishes every
// block's header to the subscription notifier's new-heads topic, so clients
// subscribed via C6/C7 see blocks this node produces or replicates.
func bridgeNewHeads(ctx context.Context, bus *consensus.Bus[consensus.Block], out chan<- subscribe.BlockHeader) {
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	for {
		block, err := sub.Recv(ctx)
		if err != nil {
			if errors.Is(err, consensus.ErrLagged) {
				continue
			}
			return
		}
		select {
		case out <- subscribe.BlockHeader{Number: block.Header.Number, Hash: block.Header.Hash}:
		case <-ctx.Done():
			return
		}
	}
}

func applyFlagOverrides(cmd *cobra.Command, cfg *consensus.Config) {
	if v, _ := cmd.Flags().GetInt("grpc-port"); cmd.Flags().Changed("grpc-port") {
		cfg.GRPCPort = uint16(v)
	}
	if v, _ := cmd.Flags().GetInt("jsonrpc-port"); cmd.Flags().Changed("jsonrpc-port") {
		cfg.JSONRPCPort = uint16(v)
	}
	if cmd.Flags().Changed("static-peers") {
		v, _ := cmd.Flags().GetString("static-peers")
		peers, bad := consensus.ParseStaticPeerList(v)
		cfg.StaticPeers = peers
		for _, raw := range bad {
			logWarnStartup("skipping malformed --static-peers entry %q", raw)
		}
	}
	if v, _ := cmd.Flags().GetInt("election-timeout-min-ms"); cmd.Flags().Changed("election-timeout-min-ms") {
		cfg.ElectionTimeoutMin = time.Duration(v) * time.Millisecond
	}
	if v, _ := cmd.Flags().GetInt("election-timeout-max-ms"); cmd.Flags().Changed("election-timeout-max-ms") {
		cfg.ElectionTimeoutMax = time.Duration(v) * time.Millisecond
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logWarnStartup("metrics server stopped: %v", err)
	}
}

func waitForShutdownSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}

func logWarnStartup(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[stratusd] WARN: "+format+"\n", args...)
}
