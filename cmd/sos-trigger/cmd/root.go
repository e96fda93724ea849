package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/sos-laser/internal/config"
	"github.com/oshokin/sos-laser/internal/service/trigger"
	"github.com/oshokin/sos-laser/internal/service/watcher"
	"github.com/oshokin/sos-laser/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// healthAddress overrides the controller health address.
	healthAddress string
	// pollInterval is the delay between status checks of watch.
	pollInterval time.Duration

	// rootCmd represents the base command of the gateway.
	rootCmd = &cobra.Command{
		Use:   "sos-trigger",
		Short: "Drive the SOS laser controller remotely.",
		Long: `Gateway for the SOS laser controller.

Sends commands to the controller over its HTTP interface. The controller
address can be provided as argument or loaded from configuration file.`,
	}

	// sosCmd triggers the SOS emission.
	sosCmd = &cobra.Command{
		Use:   "sos [controller-address]",
		Short: "Trigger the SOS signal.",
		Long: `Triggers the SOS emission on the controller.

Retries every second until the controller acknowledges the command.
The acknowledgement arrives before the first pulse.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runTrigger(trigger.ActionSignal, args)
		},
	}

	// testCmd fires the test pulse.
	testCmd = &cobra.Command{
		Use:   "test [controller-address]",
		Short: "Fire the one second test pulse.",
		Long: `Fires the test pulse on the controller.

Retries every second until the controller acknowledges the command.
The acknowledgement arrives after the pulse has finished.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runTrigger(trigger.ActionTest, args)
		},
	}

	// statusCmd prints the controller status once.
	statusCmd = &cobra.Command{
		Use:   "status [controller-address]",
		Short: "Print the controller status.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			report, err := watcher.Check(ctx, &watcher.Options{
				ConfigPath:        configPath,
				ControllerAddress: argument(args),
				HealthAddress:     healthAddress,
			})
			if err != nil {
				return err
			}

			out, err := protojson.MarshalOptions{Multiline: true}.Marshal(report.Status)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if report.Health != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "health: %s\n", report.Health)
			}

			return nil
		},
	}

	// watchCmd polls the controller status.
	watchCmd = &cobra.Command{
		Use:   "watch [controller-address]",
		Short: "Poll the controller status until interrupted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return watcher.Run(ctx, &watcher.Options{
				ConfigPath:        configPath,
				ControllerAddress: argument(args),
				HealthAddress:     healthAddress,
				PollInterval:      pollInterval,
			})
		},
	}
)

// runTrigger sends the action until it is acknowledged or interrupted.
func runTrigger(action trigger.Action, args []string) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return trigger.Run(ctx, &trigger.Options{
		ConfigPath:        configPath,
		ControllerAddress: argument(args),
		Action:            action,
	})
}

// argument returns the optional controller address argument.
func argument(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return ""
}

// Execute runs the sos-trigger CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&healthAddress, "health", "", "controller gRPC health address override")
	watchCmd.Flags().
		DurationVarP(&pollInterval, "interval", "i", watcher.DefaultPollInterval, "delay between status checks")

	rootCmd.AddCommand(sosCmd, testCmd, statusCmd, watchCmd)
}
