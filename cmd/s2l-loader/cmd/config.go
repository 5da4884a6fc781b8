package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/python313again/s2l-loader/internal/config"
	"github.com/python313again/s2l-loader/internal/status"
)

var errConfigExists = errors.New("settings file already exists, use --force to overwrite")

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file",
	}

	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default settings to the --config path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s: %w", configPath, errConfigExists)
			}

			if err := config.Save(configPath, config.Default()); err != nil {
				return err
			}

			status.New(cmd.OutOrStdout()).Success("Settings written to %s", configPath)

			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")

	configCmd.AddCommand(initCmd)

	return configCmd
}
