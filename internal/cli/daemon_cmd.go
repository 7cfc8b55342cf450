package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"

	"github.com/motioninput/mimonitor/internal/config"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the mimonitor daemon",
	Long:  `Manage the mimonitord daemon process.`,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runDaemonStatus,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon (the managed app keeps running)",
	RunE:  runDaemonStop,
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	running, info, err := config.IsDaemonRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if running && info != nil {
		fmt.Fprintf(out, "Daemon is already running (PID %d).\n", info.PID)
		return nil
	}

	fmt.Fprint(out, "Starting daemon...")
	if startErr := ensureDaemon(); startErr != nil {
		fmt.Fprintln(out)
		return startErr
	}

	_, freshInfo, err := GetDaemonStatus()
	if err != nil || freshInfo == nil {
		fmt.Fprintln(out, " started.")
		return nil
	}

	fmt.Fprintf(out, " started (PID %d).\n", freshInfo.PID)
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	running, info, err := GetDaemonStatus()
	if err != nil {
		return err
	}

	if !running || info == nil {
		fmt.Fprintln(out, "Daemon is not running.")
		return nil
	}

	uptime := time.Since(info.StartedAt).Truncate(time.Second)

	fmt.Fprintln(out, styleSuccess.Render("Daemon is running."))
	fmt.Fprintf(out, "  %s  %d\n", styleLabel.Render("PID:     "), info.PID)
	fmt.Fprintf(out, "  %s  %s\n", styleLabel.Render("Uptime:  "), uptime)
	if info.Port != 0 {
		fmt.Fprintf(out, "  %s  %s:%d\n", styleLabel.Render("Control: "), info.Host, info.Port)
	} else {
		fmt.Fprintf(out, "  %s  %s\n", styleLabel.Render("Control: "), styleHint.Render("request mailbox only"))
	}
	if info.ConfigPath != "" {
		fmt.Fprintf(out, "  %s  %s\n", styleLabel.Render("Settings:"), info.ConfigPath)
	}
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	running, info, err := config.IsDaemonRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running || info == nil {
		fmt.Fprintln(out, "Daemon is not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	proc, err := process.NewProcessWithContext(ctx, int32(info.PID))
	if err != nil {
		return fmt.Errorf("failed to find daemon process: %w", err)
	}
	if err := proc.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("failed to send stop signal: %w", err)
	}

	// Poll for shutdown (max 5 seconds)
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		stillRunning, _, err := config.IsDaemonRunning()
		if err == nil && !stillRunning {
			fmt.Fprintln(out, "Daemon stopped.")
			return nil
		}
	}

	return fmt.Errorf("daemon did not stop within timeout")
}
