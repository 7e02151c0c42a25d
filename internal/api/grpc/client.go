package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// SessionServiceClient is the client API for SessionService.
type SessionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSessionServiceClient creates a client that speaks the JSON codec.
func NewSessionServiceClient(cc grpc.ClientConnInterface) *SessionServiceClient {
	return &SessionServiceClient{cc: cc}
}

func (c *SessionServiceClient) invoke(ctx context.Context, method string, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, &Empty{}, out, opts...)
}

func (c *SessionServiceClient) Start(ctx context.Context, opts ...grpc.CallOption) (*StateResponse, error) {
	out := new(StateResponse)
	if err := c.invoke(ctx, "Start", out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionServiceClient) Stop(ctx context.Context, opts ...grpc.CallOption) (*StateResponse, error) {
	out := new(StateResponse)
	if err := c.invoke(ctx, "Stop", out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionServiceClient) GetState(ctx context.Context, opts ...grpc.CallOption) (*StateResponse, error) {
	out := new(StateResponse)
	if err := c.invoke(ctx, "GetState", out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionServiceClient) ListCommands(ctx context.Context, opts ...grpc.CallOption) (*ListCommandsResponse, error) {
	out := new(ListCommandsResponse)
	if err := c.invoke(ctx, "ListCommands", out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// StateStream receives WatchState updates.
type StateStream struct {
	grpc.ClientStream
}

func (x *StateStream) Recv() (*StateResponse, error) {
	m := new(StateResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *SessionServiceClient) WatchState(ctx context.Context, opts ...grpc.CallOption) (*StateStream, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/WatchState", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &StateStream{stream}, nil
}
