package consensus

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// grpcAppendEntryClient adapts AppendEntryServiceClient (+ its underlying
// grpc.ClientConn) to the AppendEntryClient interface used by the rest of
// this package.
type grpcAppendEntryClient struct {
	*AppendEntryServiceClient
	cc *grpc.ClientConn
}

func (c *grpcAppendEntryClient) Close() error {
	return c.cc.Close()
}

// DialPeer opens a gRPC channel to a peer's AppendEntryService, matching
// spec.md §4.1: "opens a gRPC channel to http://host:grpc". The channel is
// lazily connected (grpc.NewClient does not dial eagerly); failures surface
// on first RPC, which the caller treats as a Transport error (spec.md §7).
func DialPeer(addr PeerAddress) (AppendEntryClient, error) {
	cc, err := grpc.NewClient(addr.GRPCTarget(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &grpcAppendEntryClient{
		AppendEntryServiceClient: NewAppendEntryServiceClient(cc),
		cc:                       cc,
	}, nil
}

// PeerDialer abstracts DialPeer for tests.
type PeerDialer func(addr PeerAddress) (AppendEntryClient, error)
