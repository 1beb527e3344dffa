package consensus

import (
	"context"

	"google.golang.org/grpc"
)

// appendEntryServiceName is the fully-qualified gRPC service name, matching
// spec.md §6's `AppendEntryService`.
const appendEntryServiceName = "stratus.consensus.AppendEntryService"

// RequestVoteRequest is the wire message for the RequestVote RPC
// (spec.md §6).
type RequestVoteRequest struct {
	Term          uint64 `json:"term"`
	CandidateID   string `json:"candidate_id"`
	LastLogIndex  uint64 `json:"last_log_index"`
	LastLogTerm   uint64 `json:"last_log_term"`
}

// RequestVoteResponse is the response to RequestVote.
type RequestVoteResponse struct {
	Term        uint64 `json:"term"`
	VoteGranted bool   `json:"vote_granted"`
}

// AppendBlockCommitRequest is the wire message for the AppendBlockCommit RPC.
// TransactionHashes is always sent empty (spec.md §9 known limitation 2).
type AppendBlockCommitRequest struct {
	Term              uint64      `json:"term"`
	PrevLogIndex      uint64      `json:"prev_log_index"`
	PrevLogTerm       uint64      `json:"prev_log_term"`
	Header            *BlockHeader `json:"header"`
	TransactionHashes [][]byte    `json:"transaction_hashes"`
}

// AppendBlockCommitResponse is the response to AppendBlockCommit.
type AppendBlockCommitResponse struct {
	Status                   StatusCode `json:"status"`
	Message                   string     `json:"message"`
	LastCommittedBlockNumber uint64     `json:"last_committed_block_number"`
}

// AppendTransactionExecutionsRequest is the wire message for
// AppendTransactionExecutions.
type AppendTransactionExecutionsRequest struct {
	Executions []TransactionExecution `json:"executions"`
}

// AppendTransactionExecutionsResponse is the response to
// AppendTransactionExecutions.
type AppendTransactionExecutionsResponse struct {
	Status                   StatusCode `json:"status"`
	Message                   string     `json:"message"`
	LastCommittedBlockNumber uint64     `json:"last_committed_block_number"`
}

// AppendEntryServiceServer is implemented by AppendService (C4).
type AppendEntryServiceServer interface {
	RequestVote(context.Context, *RequestVoteRequest) (*RequestVoteResponse, error)
	AppendBlockCommit(context.Context, *AppendBlockCommitRequest) (*AppendBlockCommitResponse, error)
	AppendTransactionExecutions(context.Context, *AppendTransactionExecutionsRequest) (*AppendTransactionExecutionsResponse, error)
}

// RegisterAppendEntryServiceServer registers srv on s, the way a
// protoc-gen-go-grpc _grpc.pb.go's RegisterXxxServer function would.
func RegisterAppendEntryServiceServer(s grpc.ServiceRegistrar, srv AppendEntryServiceServer) {
	s.RegisterService(&appendEntryServiceDesc, srv)
}

var appendEntryServiceDesc = grpc.ServiceDesc{
	ServiceName: appendEntryServiceName,
	HandlerType: (*AppendEntryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestVote",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(RequestVoteRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(AppendEntryServiceServer).RequestVote(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + appendEntryServiceName + "/RequestVote"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(AppendEntryServiceServer).RequestVote(ctx, req.(*RequestVoteRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "AppendBlockCommit",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(AppendBlockCommitRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(AppendEntryServiceServer).AppendBlockCommit(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + appendEntryServiceName + "/AppendBlockCommit"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(AppendEntryServiceServer).AppendBlockCommit(ctx, req.(*AppendBlockCommitRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "AppendTransactionExecutions",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(AppendTransactionExecutionsRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(AppendEntryServiceServer).AppendTransactionExecutions(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + appendEntryServiceName + "/AppendTransactionExecutions"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(AppendEntryServiceServer).AppendTransactionExecutions(ctx, req.(*AppendTransactionExecutionsRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stratus/consensus/append_entry.proto",
}

// AppendEntryServiceClient is the client stub consumed by PeerRegistry (C1)
// and ReplicationEngine (C3).
type AppendEntryServiceClient struct {
	cc *grpc.ClientConn
}

// NewAppendEntryServiceClient wraps an established channel.
func NewAppendEntryServiceClient(cc *grpc.ClientConn) *AppendEntryServiceClient {
	return &AppendEntryServiceClient{cc: cc}
}

func (c *AppendEntryServiceClient) RequestVote(ctx context.Context, req *RequestVoteRequest) (*RequestVoteResponse, error) {
	resp := new(RequestVoteResponse)
	if err := c.cc.Invoke(ctx, "/"+appendEntryServiceName+"/RequestVote", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *AppendEntryServiceClient) AppendBlockCommit(ctx context.Context, req *AppendBlockCommitRequest) (*AppendBlockCommitResponse, error) {
	resp := new(AppendBlockCommitResponse)
	if err := c.cc.Invoke(ctx, "/"+appendEntryServiceName+"/AppendBlockCommit", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *AppendEntryServiceClient) AppendTransactionExecutions(ctx context.Context, req *AppendTransactionExecutionsRequest) (*AppendTransactionExecutionsResponse, error) {
	resp := new(AppendTransactionExecutionsResponse)
	if err := c.cc.Invoke(ctx, "/"+appendEntryServiceName+"/AppendTransactionExecutions", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
