package consensus

import "context"

// AppendEntryClient is the subset of AppendEntryServiceClient that the
// election and replication loops depend on. Abstracting it lets tests
// substitute stub peers (spec.md §8 scenarios S1-S4) without a real gRPC
// channel, the way pkg/replication/replication_test.go's MockTransport
// substitutes for a real network connection.
type AppendEntryClient interface {
	RequestVote(ctx context.Context, req *RequestVoteRequest) (*RequestVoteResponse, error)
	AppendBlockCommit(ctx context.Context, req *AppendBlockCommitRequest) (*AppendBlockCommitResponse, error)
	AppendTransactionExecutions(ctx context.Context, req *AppendTransactionExecutionsRequest) (*AppendTransactionExecutionsResponse, error)
	Close() error
}

// Storage is the external collaborator named in spec.md §1 ("persistent
// block storage ... out of scope, accessed only through the interfaces
// named in §6"). The consensus package only ever reads the latest locally
// stored block number, for ForwardGate's serve-gate (spec.md §4.5) and to
// seed LastArrivedBlockNumber at startup (spec.md §3).
type Storage interface {
	LatestBlockNumber() uint64
}
