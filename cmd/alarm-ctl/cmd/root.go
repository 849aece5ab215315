package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-alarm/internal/config"
	"github.com/oshokin/smart-alarm/internal/service/checker"
	"github.com/oshokin/smart-alarm/internal/service/client"
	"github.com/oshokin/smart-alarm/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the remote console address from the configuration.
	serverAddress string
	// wait keeps retrying while the device is unreachable.
	wait bool
	// pollInterval is the watch polling interval.
	pollInterval time.Duration
	// untilMode stops watching once the device reports this mode.
	untilMode string

	// rootCmd represents the base command for talking to a device.
	rootCmd = &cobra.Command{
		Use:   "alarm-ctl",
		Short: "Send commands to a smart-alarm device.",
		Long: `Operator client for the smart-alarm remote console.

Command lines are executed by the device exactly as if typed on its console,
and the reply is printed. Your username and hostname are sent with every command.
The device address comes from --address or remote_addr in the configuration file.`,
	}

	// execCmd sends one command line.
	execCmd = &cobra.Command{
		Use:     "exec <command> [args...]",
		Short:   "Run one command line on the device.",
		Example: "  alarm-ctl exec repeat 500 200\n  alarm-ctl exec status 2",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, strings.Join(args, " "))
		},
	}

	// statusCmd prints the controller snapshot.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the device mode, outputs and uptime as JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, "")
		},
	}

	// watchCmd polls the status and prints changes.
	watchCmd = &cobra.Command{
		Use:     "watch",
		Short:   "Print a line every time the device mode or outputs change.",
		Example: "  alarm-ctl watch --interval 500ms --until off",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return checker.Run(ctx, &checker.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				PollInterval:  pollInterval,
				Until:         untilMode,
				Output:        cmd.OutOrStdout(),
			})
		},
	}
)

func run(cmd *cobra.Command, line string) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return client.Run(ctx, &client.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
		Line:          line,
		Wait:          wait,
		Output:        cmd.OutOrStdout(),
	})
}

// Execute runs the alarm-ctl CLI and exits with non-zero status on error.
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
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "address", "a", "", "device remote console address")
	rootCmd.PersistentFlags().BoolVarP(&wait, "wait", "w", false, "retry while the device is unreachable")

	watchCmd.Flags().DurationVarP(&pollInterval, "interval", "i", checker.DefaultPollInterval, "status polling interval")
	watchCmd.Flags().StringVar(&untilMode, "until", "", "exit once the device reports this mode")

	rootCmd.AddCommand(execCmd, statusCmd, watchCmd)
}
