package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-laser/internal/config"
	"github.com/oshokin/sos-laser/internal/service/controller"
	"github.com/oshokin/sos-laser/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// driver overrides the laser driver from config.
	driver string
	// logLevel overrides the log level from config.
	logLevel string

	// rootCmd represents the base command for running the laser controller.
	rootCmd = &cobra.Command{
		Use:   "sos-laser [listen-address]",
		Short: "Run the SOS laser controller.",
		Long: `Starts the laser controller that flashes SOS in Morse code on command.

The controller serves a small HTTP interface on its access point:
  /        control page with the two action buttons
  /sos     emit the SOS pattern (acknowledged before the first pulse)
  /test    fire a one second test pulse (acknowledged after it)
  /status  report uptime, free memory and connected clients

Only one emission runs at a time; further commands wait for it to finish.
Listen address can be provided as argument to override config (e.g., :8080).
An actuator fault stops the controller with a non-zero exit code.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &controller.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				Driver:        driver,
				LogLevel:      logLevel,
			}

			return controller.Run(ctx, options)
		},
	}

	// initCmd writes a settings file with defaults.
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with default values.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Save(configPath, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", configPath)

			return nil
		},
	}
)

// Execute runs the sos-laser CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&driver, "driver", "d", "", "laser driver override: gpio or simulated")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level override")
}
