package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/thereceipt/label-engine/internal/printer"
)

func newPrintersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "printers",
		Short: "List USB and serial devices that can take a --printer URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := printer.Discover()
			if err != nil {
				// Serial ports are still listed without libusb
				slog.Warn("USB discovery failed", "error", err)
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "No printers found")
				return nil
			}
			for _, p := range found {
				fmt.Fprintf(out, "%-40s %s\n", p.URI, p.Description)
			}
			return nil
		},
	}
}
