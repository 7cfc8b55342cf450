package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/motioninput/mimonitor/internal/config"
	"github.com/motioninput/mimonitor/internal/models"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage settings.yaml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default settings file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved settings (defaults merged with the file)",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	RunE:  runConfigPath,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing settings file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
}

func settingsPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GlobalSettingsFile()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}
	if config.FileExists(path) && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.EnsureGlobalDir(); err != nil {
		return err
	}
	if err := config.SaveSettings(path, models.NewSettings()); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styleSuccess.Render("Wrote"), path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
