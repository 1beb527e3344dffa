package consensus

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
)

// AppendService is C4: the concrete AppendEntryServiceServer implementation.
// It wires RequestVote into RoleMachine's vote-granting logic and
// AppendBlockCommit into the shared LastArrivedBlockNumber counter plus the
// block-commit-diff metric (SPEC_FULL.md DOMAIN STACK).
type AppendService struct {
	cfg       *Config
	roles     *RoleMachine
	lastBlock *LastArrivedBlockNumber
	metrics   *Metrics
}

// NewAppendService constructs the server implementation.
func NewAppendService(cfg *Config, roles *RoleMachine, lastBlock *LastArrivedBlockNumber, metrics *Metrics) *AppendService {
	return &AppendService{cfg: cfg, roles: roles, lastBlock: lastBlock, metrics: metrics}
}

// RequestVote implements AppendEntryServiceServer.
func (s *AppendService) RequestVote(ctx context.Context, req *RequestVoteRequest) (*RequestVoteResponse, error) {
	candidate, err := ParsePeerAddress(req.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("consensus: malformed candidate id %q: %w", req.CandidateID, err)
	}

	term, granted := s.roles.HandleRequestVote(candidate, Term(req.Term))
	return &RequestVoteResponse{
		Term:        uint64(term),
		VoteGranted: granted,
	}, nil
}

// AppendBlockCommit implements AppendEntryServiceServer. Per spec.md §3/§9,
// the stored block number is unconditionally overwritten, never
// max()-compared against the previous value. The term is not consulted
// here; only a missing header is rejected.
func (s *AppendService) AppendBlockCommit(ctx context.Context, req *AppendBlockCommitRequest) (*AppendBlockCommitResponse, error) {
	if req.Header == nil {
		s.metrics.AppendRejections.Inc()
		return &AppendBlockCommitResponse{
			Status:  StatusInvalidHeader,
			Message: "missing block header",
		}, nil
	}

	previous := s.lastBlock.Set(req.Header.Number)
	s.metrics.BlockCommitDiff.Set(float64(req.Header.Number) - float64(previous))

	return &AppendBlockCommitResponse{
		Status:                   StatusAppendSuccess,
		LastCommittedBlockNumber: req.Header.Number,
	}, nil
}

// AppendTransactionExecutions implements AppendEntryServiceServer. The
// source treats this RPC as a best-effort side channel with no effect on
// consensus state (spec.md §1 Non-goals: "transaction execution replay is
// out of scope"), so this is an acknowledging no-op.
func (s *AppendService) AppendTransactionExecutions(ctx context.Context, req *AppendTransactionExecutionsRequest) (*AppendTransactionExecutionsResponse, error) {
	return &AppendTransactionExecutionsResponse{
		Status:                   StatusAppendSuccess,
		LastCommittedBlockNumber: s.lastBlock.Load(),
	}, nil
}

// Serve binds a gRPC server on addr.GRPCPort on all interfaces (the host
// part of addr is not used), registers this service
// with the protoc-free JSON codec, and blocks until ctx is cancelled or the
// listener fails.
func (s *AppendService) Serve(ctx context.Context, addr PeerAddress) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", addr.GRPCPort))
	if err != nil {
		return fmt.Errorf("consensus: listen on grpc port %d: %w", addr.GRPCPort, err)
	}

	server := grpc.NewServer()
	RegisterAppendEntryServiceServer(server, s)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		server.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
