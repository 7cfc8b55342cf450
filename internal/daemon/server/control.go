package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/motioninput/mimonitor/internal/models"
)

// ============================================================================
// Control service definition
// ============================================================================

// ControlServer is the server interface for the Control service.
type ControlServer interface {
	Start(context.Context, *emptypb.Empty) (*ControlReply, error)
	Stop(context.Context, *emptypb.Empty) (*ControlReply, error)
	Status(context.Context, *emptypb.Empty) (*StatusReply, error)
}

// ControlReply is the outcome of a Start or Stop call. A failed operation is
// reported in Error, not as an RPC error, so the caller still gets the state
// it left behind.
type ControlReply struct {
	Action string
	Result string // "started", "already running", "stopped" or "not running"
	Error  string
	Status *models.StatusFile
}

// StatusReply carries the current supervisor state.
type StatusReply struct {
	Status *models.StatusFile
}

const (
	controlServiceName = "mimonitor.Control"
	startMethod        = "/" + controlServiceName + "/Start"
	stopMethod         = "/" + controlServiceName + "/Stop"
	statusMethod       = "/" + controlServiceName + "/Status"
)

// ControlServiceDesc describes the Control service to grpc.
var ControlServiceDesc = grpc.ServiceDesc{
	ServiceName: controlServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Start", Handler: unaryHandler(startMethod, func(s ControlServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.Start(ctx, in)
		})},
		{MethodName: "Stop", Handler: unaryHandler(stopMethod, func(s ControlServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.Stop(ctx, in)
		})},
		{MethodName: "Status", Handler: unaryHandler(statusMethod, func(s ControlServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.Status(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mimonitor/control",
}

// RegisterControlServer registers srv with the gRPC server.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ControlServiceDesc, srv)
}

func unaryHandler(method string, call func(ControlServer, context.Context, *emptypb.Empty) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ============================================================================
// Client
// ============================================================================

// ControlClient calls the Control service.
type ControlClient struct {
	cc grpc.ClientConnInterface
}

// NewControlClient wraps a connection. The connection must use CodecName,
// as Dial arranges.
func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

// Start asks the daemon to start the managed app and waits for the outcome.
func (c *ControlClient) Start(ctx context.Context) (*ControlReply, error) {
	out := new(ControlReply)
	if err := c.cc.Invoke(ctx, startMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stop asks the daemon to stop the managed app and waits for the outcome.
func (c *ControlClient) Stop(ctx context.Context) (*ControlReply, error) {
	out := new(ControlReply)
	if err := c.cc.Invoke(ctx, stopMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status returns the daemon's current view of the managed app.
func (c *ControlClient) Status(ctx context.Context) (*models.StatusFile, error) {
	out := new(StatusReply)
	if err := c.cc.Invoke(ctx, statusMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.Status, nil
}
