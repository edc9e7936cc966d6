// Package cli holds the labelctl commands
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thereceipt/label-engine/internal/config"
	"github.com/thereceipt/label-engine/internal/engine"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd builds the labelctl command tree
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "labelctl",
		Short: "Stamp label templates over data records and export print-ready PDFs",
		Long: `labelctl renders a label template once per data record, lays the labels
out on sheets and exports them as one merged PDF, one PDF per record, or a raster
stream for a label printer.

Records can come from CSV, JSON, JSON Lines or Parquet files.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newRecordsCmd())
	cmd.AddCommand(newPreviewCmd(opts))
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newPrintersCmd())
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRemoteCmd())

	return cmd
}

func (o *globalOptions) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(o.logLevel))); err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath)
}

// openEngine loads the template and records into a fresh engine
func openEngine(cfg *config.Config, logger *slog.Logger, templatePath, recordsPath string) (*engine.Engine, error) {
	eng, err := engine.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	tpl, err := engine.ReadTemplate(templatePath)
	if err != nil {
		eng.Close()
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if err := eng.LoadTemplate(tpl); err != nil {
		eng.Close()
		return nil, err
	}

	if recordsPath != "" {
		if _, err := eng.LoadRecords(recordsPath); err != nil {
			eng.Close()
			return nil, fmt.Errorf("failed to load records: %w", err)
		}
	}
	return eng, nil
}
