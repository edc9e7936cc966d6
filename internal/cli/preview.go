package cli

import (
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

func newPreviewCmd(global *globalOptions) *cobra.Command {
	var (
		recordsPath string
		index       int
		width       int
		output      string
	)

	cmd := &cobra.Command{
		Use:   "preview <template>",
		Short: "Render one stamped label as a PNG",
		Example: `  labelctl preview badge.json -o badge.png
  labelctl preview badge.json --records attendees.csv --record 3 --width 300`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			eng, err := openEngine(cfg, global.logger(), args[0], recordsPath)
			if err != nil {
				return err
			}
			defer eng.Close()

			record := labelformat.Record{}
			if recs := eng.Session.Records(); len(recs) > 0 {
				if index < 1 || index > len(recs) {
					return fmt.Errorf("record %d out of range (1-%d)", index, len(recs))
				}
				record = recs[index-1]
			}

			img, err := eng.RenderRecord(eng.Session.Template(), record)
			if err != nil {
				return err
			}
			if width > 0 && width < img.Bounds().Dx() {
				img = imaging.Resize(img, width, 0, imaging.Lanczos)
			}
			if err := imaging.Save(img, output); err != nil {
				return fmt.Errorf("failed to save preview: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%dx%d)\n", output, img.Bounds().Dx(), img.Bounds().Dy())
			return nil
		},
	}

	cmd.Flags().StringVarP(&recordsPath, "records", "r", "", "Records file to stamp the label with")
	cmd.Flags().IntVar(&index, "record", 1, "Record number to render (1-based)")
	cmd.Flags().IntVarP(&width, "width", "w", 0, "Thumbnail width in pixels")
	cmd.Flags().StringVarP(&output, "output", "o", "preview.png", "Output image (png or jpg)")

	return cmd
}
