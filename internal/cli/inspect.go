package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thereceipt/label-engine/internal/pdfdoc"
)

func newInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "inspect <pdf>...",
		Short:   "Report page count and sheet size of exported PDFs",
		Example: `  labelctl inspect labels-pages-1-4.pdf`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := make([]*pdfdoc.Info, 0, len(args))
			for _, path := range args {
				info, err := pdfdoc.Inspect(path)
				if err != nil {
					return fmt.Errorf("failed to inspect %s: %w", path, err)
				}
				infos = append(infos, info)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%s\n", info.Path)
				fmt.Fprintf(out, "  version: %s\n", info.Version)
				fmt.Fprintf(out, "  pages:   %d\n", info.Pages)
				fmt.Fprintf(out, "  sheet:   %.1f x %.1f pt\n", info.PageWidth, info.PageHeight)
				fmt.Fprintf(out, "  size:    %d bytes\n", info.Size)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}
