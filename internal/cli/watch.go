package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/motioninput/mimonitor/internal/config"
	"github.com/motioninput/mimonitor/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of the supervisor status and daemon log",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("watch needs a terminal, use `mimonitor status` instead")
	}

	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	logPath := settings.Logging.File
	if logPath == "" {
		if logPath, err = config.GlobalLogFile(); err != nil {
			return err
		}
	}
	return tui.Run(logPath)
}
