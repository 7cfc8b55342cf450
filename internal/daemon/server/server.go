// Package server implements the daemon's gRPC control service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Host is the loopback address the control service binds to. The service has
// no authentication, so it never listens beyond this machine.
const Host = "127.0.0.1"

// Server is the daemon's gRPC server.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	port       int
}

// New creates a server for sup listening on the specified loopback port.
// Pass port 0 for dynamic allocation.
func New(port int, sup Supervisor, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	addr := net.JoinHostPort(Host, strconv.Itoa(port))
	listener, err := (&net.ListenConfig{}).Listen(context.TODO(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	// Get actual port if dynamically allocated
	actualPort := listener.Addr().(*net.TCPAddr).Port

	grpcServer := grpc.NewServer()
	RegisterControlServer(grpcServer, &controlService{sup: sup, logger: logger})

	return &Server{
		grpcServer: grpcServer,
		listener:   listener,
		port:       actualPort,
	}, nil
}

// Host returns the address the server is listening on.
func (s *Server) Host() string {
	return Host
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Serve starts serving requests. This blocks until Stop is called.
func (s *Server) Serve() error {
	return s.grpcServer.Serve(s.listener)
}

// Stop gracefully stops the server, letting in-flight operations finish.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

// Dial creates a client connection to a control service at host:port.
func Dial(host string, port int) (*grpc.ClientConn, error) {
	if host == "" {
		host = Host
	}
	conn, err := grpc.NewClient(net.JoinHostPort(host, strconv.Itoa(port)),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}
