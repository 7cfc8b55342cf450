package cli

import (
	"errors"
	"fmt"

	"google.golang.org/grpc"

	"github.com/motioninput/mimonitor/internal/config"
	"github.com/motioninput/mimonitor/internal/daemon/server"
)

// errNoControlService means the daemon did not publish a control address.
var errNoControlService = errors.New("daemon has no control service")

// connectDaemon establishes a gRPC connection to the running daemon.
func connectDaemon() (*grpc.ClientConn, error) {
	info, err := config.LoadDaemonInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to load daemon info: %w", err)
	}
	if info == nil || info.Port == 0 {
		return nil, errNoControlService
	}
	return server.Dial(info.Host, info.Port)
}
