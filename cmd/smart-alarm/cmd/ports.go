package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-alarm/internal/transport"
)

// portsCmd lists the serial ports a device console can use.
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ports, err := transport.ListPorts()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if len(ports) == 0 {
			_, _ = fmt.Fprintln(out, "No serial ports found.")

			return nil
		}

		for _, p := range ports {
			if !p.IsUSB {
				_, _ = fmt.Fprintln(out, p.Name)

				continue
			}

			_, _ = fmt.Fprintf(out, "%s\tUSB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
		}

		return nil
	},
}
