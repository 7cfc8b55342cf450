package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/motioninput/mimonitor/internal/config"
	"github.com/motioninput/mimonitor/internal/daemon/server"
	"github.com/motioninput/mimonitor/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the managed app and daemon status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	running, info, err := GetDaemonStatus()
	if err != nil {
		return err
	}
	if !running || info == nil {
		fmt.Fprintln(out, styleWarning.Render("Daemon is not running."))
		fmt.Fprintf(out, "%s\n", styleHint.Render("Run `mimonitor daemon start` to start listening."))
		return nil
	}

	status, err := currentStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	fmt.Fprintf(out, "%s %s\n", styleLabel.Render("Daemon:   "), styleSuccess.Render(fmt.Sprintf("running (PID %d)", info.PID)))
	if status == nil {
		fmt.Fprintln(out, styleHint.Render("No status reported yet."))
		return nil
	}

	fmt.Fprintf(out, "%s %s\n", styleLabel.Render("App:      "), styleValue.Render(status.App))
	fmt.Fprintf(out, "%s %s\n", styleLabel.Render("Phase:    "), phaseBadge(status.Phase))
	fmt.Fprintf(out, "%s %s\n", styleLabel.Render("Instances:"), instancesText(status.Instances))
	fmt.Fprintf(out, "%s %s\n", styleLabel.Render("Tray:     "), indicatorBadge(status.Indicator))
	if !status.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "%s %s ago\n", styleLabel.Render("Updated:  "), time.Since(status.UpdatedAt).Truncate(time.Second))
	}
	if status.LastError != "" {
		fmt.Fprintf(out, "%s %s\n", styleLabel.Render("Error:    "), styleError.Render(status.LastError))
	}
	return nil
}

// currentStatus asks the daemon for its live state and falls back to the
// status file when the control service cannot be reached.
func currentStatus(ctx context.Context) (*models.StatusFile, error) {
	if conn, err := connectDaemon(); err == nil {
		defer conn.Close()
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if st, err := server.NewControlClient(conn).Status(ctx); err == nil {
			return st, nil
		}
	}
	return config.LoadStatus()
}
