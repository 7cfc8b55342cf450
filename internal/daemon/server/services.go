package server

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/motioninput/mimonitor/internal/daemon/phrase"
	"github.com/motioninput/mimonitor/internal/daemon/process"
	"github.com/motioninput/mimonitor/internal/models"
)

// Supervisor is the part of the daemon the control service drives.
// *supervisor.Supervisor satisfies it.
type Supervisor interface {
	Start(ctx context.Context, src phrase.Source) (process.StartResult, error)
	Stop(ctx context.Context, src phrase.Source) (process.StopResult, error)
	Status() *models.StatusFile
}

type controlService struct {
	sup    Supervisor
	logger *slog.Logger
}

func (s *controlService) Start(ctx context.Context, _ *emptypb.Empty) (*ControlReply, error) {
	res, err := s.sup.Start(operationContext(ctx), phrase.SourceCLI)
	return s.reply(models.ActionStart, res, err)
}

func (s *controlService) Stop(ctx context.Context, _ *emptypb.Empty) (*ControlReply, error) {
	res, err := s.sup.Stop(operationContext(ctx), phrase.SourceCLI)
	return s.reply(models.ActionStop, res, err)
}

func (s *controlService) Status(ctx context.Context, _ *emptypb.Empty) (*StatusReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	return &StatusReply{Status: s.sup.Status()}, nil
}

func (s *controlService) reply(action string, res fmt.Stringer, err error) (*ControlReply, error) {
	out := &ControlReply{Action: action, Status: s.sup.Status()}
	if err != nil {
		out.Error = err.Error()
	} else {
		out.Result = res.String()
	}
	s.logger.Debug("control call", "action", action, "result", out.Result, "error", out.Error)
	return out, nil
}

// operationContext detaches an operation from the caller. A start or stop
// that has begun runs its ladder to the end even if the client goes away.
func operationContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
