package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/python313again/s2l-loader/internal/config"
	"github.com/python313again/s2l-loader/internal/logger"
	"github.com/python313again/s2l-loader/internal/service/bootstrap"
	"github.com/python313again/s2l-loader/internal/service/common"
	"github.com/python313again/s2l-loader/internal/status"
	"github.com/python313again/s2l-loader/internal/version"
)

var errInvalidLogLevel = errors.New("invalid log level")

var (
	// configPath to the configuration YAML file.
	configPath string
	// workDir is where the working copy lives.
	workDir string
	// logLevel of diagnostic output on stderr.
	logLevel string
	// assumeYes answers every question with "yes".
	assumeYes bool

	// rootCmd represents the base command for setting up and launching the application.
	rootCmd = &cobra.Command{
		Use:   version.Name + " [environment-name]",
		Short: "Install, update and launch S2L in its conda environment",
		Long: "Checks for git and conda and installs them when missing, creates the conda environment, " +
			"clones or updates the S2L working copy and starts the application. " +
			"After pulling new changes the loader restarts itself with the same arguments.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%q: %w", logLevel, errInvalidLogLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := status.New(cmd.OutOrStdout())

			// Interrupts print one message and exit with status 1.
			ctx, release := bootstrap.NewGuard(out, nil).Watch(context.Background())
			defer release()

			options := &bootstrap.Options{
				ConfigPath:     configPath,
				ConfigRequired: cmd.Flags().Changed("config"),
				WorkDir:        workDir,
				AssumeYes:      assumeYes,
				Argv:           os.Args,
				Out:            out,
			}

			if len(args) > 0 {
				options.EnvironmentName = args[0]
			}

			return bootstrap.Run(ctx, options)
		},
	}
)

// Execute runs the s2l-loader CLI. A run that installed a tool exits with
// status 0 so the operator can restart it; other errors exit with status 1.
func Execute() {
	err := rootCmd.Execute()
	if reportable(err) {
		status.New(os.Stderr).Error("%v", err)
	}

	_ = logger.Logger().Sync()

	if code := exitCode(err); code != 0 {
		os.Exit(code)
	}
}

// exitCode maps the outcome of a run to the process exit status.
func exitCode(err error) int {
	if err == nil || errors.Is(err, common.ErrRestartRequired) {
		return 0
	}

	return 1
}

// reportable tells whether Execute still has to print err. Setup failures
// and interrupts were already reported where they happened.
func reportable(err error) bool {
	if exitCode(err) == 0 {
		return false
	}

	return !errors.Is(err, common.ErrSetupFailed) && !errors.Is(err, common.ErrOperatorCancellation)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "diagnostic log level: debug, info, warn or error")
	rootCmd.Flags().StringVarP(&workDir, "workdir", "w", "", "directory holding the working copy (default: current directory)")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every question")

	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newConfigCommand())
}
