package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-alarm/internal/config"
	"github.com/oshokin/smart-alarm/internal/service/device"
	"github.com/oshokin/smart-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// portName overrides the transport with a serial port.
	portName string
	// baudRate overrides the serial baud rate.
	baudRate int
	// wsURL overrides the transport with a websocket serial bridge.
	wsURL string
	// singleInstance refuses to start next to another device process.
	singleInstance bool

	// rootCmd represents the base command for running the device.
	rootCmd = &cobra.Command{
		Use:   "smart-alarm [listen-address]",
		Short: "Run the alarm device command console and mode controller.",
		Long: `Runs the smart-alarm device: a line-based command console over a serial port,
a websocket serial bridge or standard input, and a tick-driven controller that
drives the alarm, auxiliary and status outputs.

Settings come from the configuration file; a missing default file means defaults
(stdin/stdout console, outputs rendered on stderr). --port or --url override the
console transport. The optional listen address enables the gRPC remote console
used by alarm-ctl and overrides remote_addr from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			// Only an explicit --config must exist.
			path := configPath
			if !cmd.Flags().Changed("config") {
				path = ""
			}

			options := &device.Options{
				ConfigPath:     path,
				Port:           portName,
				Baud:           baudRate,
				URL:            wsURL,
				ListenAddress:  listenAddress,
				SingleInstance: singleInstance,
			}

			return device.Run(ctx, options)
		},
	}
)

// Execute runs the smart-alarm CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&portName, "port", "p", "", "serial port for the command console")
	rootCmd.Flags().IntVarP(&baudRate, "baud", "b", 0, "serial baud rate (default from config, 9600)")
	rootCmd.Flags().StringVarP(&wsURL, "url", "u", "", "websocket serial bridge URL (ws:// or wss://)")
	rootCmd.Flags().BoolVar(&singleInstance, "single-instance", false, "refuse to start if another instance runs")

	rootCmd.MarkFlagsMutuallyExclusive("port", "url")

	rootCmd.AddCommand(portsCmd, initConfigCmd)
}
