package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/upnpdiscover/internal/config"
	"github.com/muurk/upnpdiscover/internal/ui"
)

// Config init flags
var (
	configForce bool
	configYes   bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configInitCmd.Flags().BoolVarP(&configYes, "yes", "y", false, "Do not ask before overwriting")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Show, locate or create the YAML configuration file.

Settings in the file are defaults; command line flags override them.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration in effect as YAML: the config file merged over
the defaults, or only the defaults when there is no file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Example: `  upnp-discover config init

  # Replace an existing file without asking
  upnp-discover config init --force --yes`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return fmt.Errorf("failed to check config file: %w", statErr)
	}

	if exists && configForce && !configYes {
		confirmed := ui.Confirm(cmd.InOrStdin(), out, "Overwrite configuration",
			[]string{
				"The file at " + path + " will be replaced with the defaults",
				"Any settings you changed in it will be lost",
			}, "overwrite")
		if !confirmed {
			return nil
		}
	}

	path, err = config.Init(path, configForce)
	if err != nil {
		return err
	}

	ui.NewPrinter(out).PrintSuccess("Configuration written", ui.Param{Key: "Path", Value: path})
	return nil
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
