package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/thereceipt/label-engine/internal/engine"
	"github.com/thereceipt/label-engine/internal/export"
	"github.com/thereceipt/label-engine/internal/tui"
)

type exportOptions struct {
	selection      string
	output         string
	recordsMode    bool
	printer        string
	qrColumn       string
	filenameColumn string
	blockSize      int
	workers        int
	paper          string
	quiet          bool
}

func newExportCmd(global *globalOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <template> <records>",
		Short: "Render a template over a records file and write the PDF",
		Long: `Render the template once per record, place the labels on sheets and write
the selected pages as a single PDF. With --records every record becomes its own
PDF and the files are bundled in a zip archive.

The selection is "all", a single page number ("3") or an inclusive range ("2-5").`,
		Example: `  # Every page, named after the selection
  labelctl export badge.json attendees.csv

  # Pages 2 to 4 into a chosen file
  labelctl export badge.json attendees.csv --pages 2-4 -o batch.pdf

  # One PDF per record, named by the "name" column
  labelctl export badge.json attendees.csv --records --filename-column name

  # Straight to a label printer
  labelctl export badge.json attendees.csv --printer tcp://192.168.1.50:9100`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, global, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.selection, "pages", "p", "all", "Pages to export (all, N or A-B)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (defaults to the selection's file name)")
	cmd.Flags().BoolVar(&opts.recordsMode, "records", false, "Write one PDF per record into a zip archive")
	cmd.Flags().StringVar(&opts.printer, "printer", "", `Printer URI (usb://, serial://, tcp://, file://) or "default" for LABEL_PRINTER`)
	cmd.Flags().StringVar(&opts.qrColumn, "qr-column", "", "Column encoded in QR slots")
	cmd.Flags().StringVar(&opts.filenameColumn, "filename-column", "", "Column used to name per-record files")
	cmd.Flags().IntVar(&opts.blockSize, "block-size", 0, "Pages rendered per block")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Pages rendered in parallel inside a block")
	cmd.Flags().StringVar(&opts.paper, "paper", "", "Paper size (a4, letter, legal, a3, a5 or WxH in mm)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "No progress output")

	return cmd
}

func runExport(cmd *cobra.Command, global *globalOptions, opts *exportOptions, templatePath, recordsPath string) error {
	logger := global.logger()

	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}
	if opts.blockSize > 0 {
		cfg.BlockSize = opts.blockSize
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.paper != "" {
		cfg.Paper = opts.paper
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	eng, err := openEngine(cfg, logger, templatePath, recordsPath)
	if err != nil {
		return err
	}
	defer eng.Close()

	eng.Session.SetColumns(opts.qrColumn, opts.filenameColumn)

	req := engine.ExportRequest{
		Selection: opts.selection,
		Mode:      engine.ModePages,
		Printer:   opts.printer,
	}
	if opts.recordsMode {
		req.Mode = engine.ModeRecords
	}
	if err := eng.Validate(req); err != nil {
		return err
	}
	if opts.printer != "" && strings.EqualFold(filepath.Ext(opts.output), ".pdf") {
		return fmt.Errorf("--printer writes an ESC/POS spool, not a PDF; pick another name than %s", opts.output)
	}

	// Render into a temp file next to the destination so a cancelled
	// export never leaves a partial document behind
	dir := "."
	if opts.output != "" {
		dir = filepath.Dir(opts.output)
	}
	tmp, err := os.CreateTemp(dir, ".labelctl-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	run := func(ctx context.Context, report func(export.Progress)) (*export.Result, error) {
		return eng.Export(ctx, req, tmp, report)
	}

	var res *export.Result
	if !opts.quiet && isatty.IsTerminal(os.Stdout.Fd()) {
		res, err = tui.RunExport(cmd.Context(), "Exporting "+filepath.Base(templatePath), run)
	} else {
		res, err = run(cmd.Context(), func(p export.Progress) {
			logger.Info("block done", "blocks", p.BlocksCompleted, "of", p.TotalBlocks, "pages", p.PagesDone)
		})
	}
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("export cancelled, nothing was written")
		}
		return err
	}

	dest := opts.output
	if dest == "" {
		dest = res.FileName
	}
	if opts.printer != "" && opts.output == "" {
		if !opts.quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Sent %d page(s) to %s\n", res.Pages, opts.printer)
		}
		return nil
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}

	if !opts.quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%d page(s), %d block(s))\n", dest, res.Pages, res.Blocks)
	}
	return nil
}
