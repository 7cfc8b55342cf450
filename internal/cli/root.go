// Package cli implements the mimonitor CLI commands.
package cli

import (
	"github.com/spf13/cobra"
)

// configPath is the --config flag shared by every command.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "mimonitor",
	Short: "Voice-controlled supervisor for UCL MotionInput",
	Long: `mimonitor listens for spoken trigger phrases and starts or stops the
managed application, keeping exactly one instance alive and showing its state
in the system tray. The CLI talks to the mimonitord daemon through request
files in ~/.mimonitor/requests.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to settings.yaml (default ~/.mimonitor/settings.yaml)")

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(watchCmd)
}
