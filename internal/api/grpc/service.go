// Package grpcapi exposes the recognition session over gRPC.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-command-service/internal/catalog"
	"voice-command-service/internal/service/session"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "voice.command.v1.SessionService"

// Empty is the request of calls that take no arguments.
type Empty struct{}

// StateResponse carries a session state snapshot.
type StateResponse struct {
	State session.RecognitionState `json:"state"`
}

// PhaseName reports the session phase for call logging.
func (r *StateResponse) PhaseName() string {
	return r.State.Phase.String()
}

// ListCommandsResponse carries the command catalog in priority order.
type ListCommandsResponse struct {
	Commands []catalog.Definition `json:"commands"`
}

// SessionServiceServer is the server API for SessionService.
type SessionServiceServer interface {
	Start(context.Context, *Empty) (*StateResponse, error)
	Stop(context.Context, *Empty) (*StateResponse, error)
	GetState(context.Context, *Empty) (*StateResponse, error)
	ListCommands(context.Context, *Empty) (*ListCommandsResponse, error)
	WatchState(*Empty, SessionService_WatchStateServer) error
}

// SessionService_WatchStateServer is the server side of the WatchState stream.
type SessionService_WatchStateServer interface {
	Send(*StateResponse) error
	grpc.ServerStream
}

type watchStateServer struct {
	grpc.ServerStream
}

func (x *watchStateServer) Send(m *StateResponse) error {
	return x.ServerStream.SendMsg(m)
}

func unaryHandler(call func(SessionServiceServer, context.Context, *Empty) (any, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(SessionServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchStateHandler(srv any, stream grpc.ServerStream) error {
	in := new(Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SessionServiceServer).WatchState(in, &watchStateServer{stream})
}

// ServiceDesc is the grpc.ServiceDesc for SessionService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Start",
			Handler: unaryHandler(func(s SessionServiceServer, ctx context.Context, in *Empty) (any, error) {
				return s.Start(ctx, in)
			}, "Start"),
		},
		{
			MethodName: "Stop",
			Handler: unaryHandler(func(s SessionServiceServer, ctx context.Context, in *Empty) (any, error) {
				return s.Stop(ctx, in)
			}, "Stop"),
		},
		{
			MethodName: "GetState",
			Handler: unaryHandler(func(s SessionServiceServer, ctx context.Context, in *Empty) (any, error) {
				return s.GetState(ctx, in)
			}, "GetState"),
		},
		{
			MethodName: "ListCommands",
			Handler: unaryHandler(func(s SessionServiceServer, ctx context.Context, in *Empty) (any, error) {
				return s.ListCommands(ctx, in)
			}, "ListCommands"),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchState",
			Handler:       watchStateHandler,
			ServerStreams: true,
		},
	},
}

// Engine is the session the service exposes.
type Engine interface {
	Start() session.RecognitionState
	Stop() session.RecognitionState
	State() session.RecognitionState
	Subscribe() (<-chan session.RecognitionState, func())
	Catalog() *catalog.Catalog
}

// Server implements SessionServiceServer on top of an Engine.
type Server struct {
	engine Engine
}

// Register adds the session service to g.
func Register(g *grpc.Server, engine Engine) *Server {
	s := &Server{engine: engine}
	g.RegisterService(&ServiceDesc, s)
	return s
}

func (s *Server) Start(ctx context.Context, _ *Empty) (*StateResponse, error) {
	return &StateResponse{State: s.engine.Start()}, nil
}

func (s *Server) Stop(ctx context.Context, _ *Empty) (*StateResponse, error) {
	return &StateResponse{State: s.engine.Stop()}, nil
}

func (s *Server) GetState(ctx context.Context, _ *Empty) (*StateResponse, error) {
	return &StateResponse{State: s.engine.State()}, nil
}

func (s *Server) ListCommands(ctx context.Context, _ *Empty) (*ListCommandsResponse, error) {
	return &ListCommandsResponse{Commands: s.engine.Catalog().Definitions()}, nil
}

// WatchState streams the current state and every change until the client
// goes away or the session closes.
func (s *Server) WatchState(_ *Empty, stream SessionService_WatchStateServer) error {
	updates, cancel := s.engine.Subscribe()
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case st, ok := <-updates:
			if !ok {
				return status.Error(codes.Unavailable, "session closed")
			}
			if err := stream.Send(&StateResponse{State: st}); err != nil {
				return err
			}
		}
	}
}
