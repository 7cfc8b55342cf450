package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/motioninput/mimonitor/internal/config"
	"github.com/motioninput/mimonitor/internal/daemon/server"
	"github.com/motioninput/mimonitor/internal/models"
)

var (
	controlWait    bool
	controlTimeout time.Duration
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the managed app (same as saying the start phrase)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, models.ActionStart)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the managed app (same as saying the stop phrase)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, models.ActionStop)
	},
}

// pollInterval is how often the mailbox fallback re-reads the request and
// status files.
var pollInterval = 100 * time.Millisecond

func init() {
	for _, c := range []*cobra.Command{startCmd, stopCmd} {
		c.Flags().BoolVarP(&controlWait, "wait", "w", true, "wait for the daemon to finish and print the result")
		c.Flags().DurationVar(&controlTimeout, "timeout", 30*time.Second, "how long --wait waits")
	}
}

func runControl(cmd *cobra.Command, action string) error {
	out := cmd.OutOrStdout()
	if err := ensureDaemon(); err != nil {
		return err
	}

	if !controlWait {
		if _, err := config.SubmitRequest(models.NewControlRequest(action)); err != nil {
			return fmt.Errorf("failed to submit %s request: %w", action, err)
		}
		fmt.Fprintf(out, "%s request sent.\n", styleCommand.Render(action))
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), controlTimeout)
	defer cancel()

	reply, err := callControl(ctx, action)
	if errors.Is(err, errNoControlService) || status.Code(err) == codes.Unavailable {
		reply, err = mailboxControl(ctx, out, action)
	}
	if err != nil {
		return err
	}

	printStatusSummary(out, reply.Status)
	if reply.Error != "" {
		return fmt.Errorf("%s failed: %s", action, reply.Error)
	}
	fmt.Fprintf(out, "%s: %s\n", styleCommand.Render(action), reply.Result)
	return nil
}

// callControl runs action through the daemon's control service and returns
// its outcome.
func callControl(ctx context.Context, action string) (*server.ControlReply, error) {
	conn, err := connectDaemon()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	client := server.NewControlClient(conn)
	if action == models.ActionStop {
		return client.Stop(ctx)
	}
	return client.Start(ctx)
}

// mailboxControl submits action through the request mailbox and waits for the
// daemon to report the outcome of that request.
func mailboxControl(ctx context.Context, out io.Writer, action string) (*server.ControlReply, error) {
	req := models.NewControlRequest(action)
	path, err := config.SubmitRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s request: %w", action, err)
	}
	fmt.Fprintf(out, "%s request sent.\n", styleCommand.Render(action))

	if err := waitForPickup(ctx, path); err != nil {
		return nil, fmt.Errorf("daemon did not pick up the request: %w", err)
	}
	st, err := waitForOutcome(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("daemon did not report the outcome: %w", err)
	}
	return &server.ControlReply{
		Action: action,
		Result: st.LastRequest.Result,
		Error:  st.LastRequest.Error,
		Status: st,
	}, nil
}

// waitForPickup waits until the daemon has consumed the request file.
func waitForPickup(ctx context.Context, path string) error {
	return poll(ctx, func() (bool, error) {
		return !config.FileExists(path), nil
	})
}

// waitForOutcome waits for a status that records the outcome of request id.
// Statuses written by observations in the meantime carry an older outcome and
// are skipped.
func waitForOutcome(ctx context.Context, id string) (*models.StatusFile, error) {
	var st *models.StatusFile
	err := poll(ctx, func() (bool, error) {
		s, err := config.LoadStatus()
		if err != nil {
			return false, err
		}
		st = s
		return s != nil && s.LastRequest != nil && s.LastRequest.ID == id, nil
	})
	return st, err
}

func poll(ctx context.Context, done func() (bool, error)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func printStatusSummary(out io.Writer, st *models.StatusFile) {
	if st == nil {
		return
	}
	fmt.Fprintf(out, "%s is %s (%s), tray %s\n",
		styleValue.Render(st.App),
		phaseBadge(st.Phase),
		instancesText(st.Instances),
		indicatorBadge(st.Indicator))
}

func instancesText(n int) string {
	switch n {
	case -1:
		return "instances unknown"
	case 1:
		return "1 instance"
	default:
		return fmt.Sprintf("%d instances", n)
	}
}
