package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thereceipt/label-engine/internal/records"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

func newRecordsCmd() *cobra.Command {
	var (
		format string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "records <file>",
		Short: "Show the columns and rows of a records file",
		Long: `Load a CSV, JSON, JSON Lines or Parquet records file the same way an
export does and print what was read.`,
		Example: `  labelctl records attendees.csv
  labelctl records attendees.parquet --format json --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := records.Load(args[0])
			if err != nil {
				return err
			}
			rows := set.Records
			if limit > 0 && limit < len(rows) {
				rows = rows[:limit]
			}
			return writeRecords(cmd.OutOrStdout(), format, set.Columns, rows, set.Len())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json, yaml, csv)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Rows to print (0 for all)")

	return cmd
}

func writeRecords(w io.Writer, format string, columns []string, rows []labelformat.Record, total int) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"columns": columns, "count": total, "records": rows})
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(map[string]interface{}{"columns": columns, "count": total, "records": rows})
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(columns); err != nil {
			return err
		}
		for _, rec := range rows {
			if err := cw.Write(recordRow(rec, columns)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "#\t%s\n", strings.Join(columns, "\t"))
		for i, rec := range rows {
			fmt.Fprintf(tw, "%d\t%s\n", i+1, strings.Join(recordRow(rec, columns), "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%d record(s), %d column(s)\n", total, len(columns))
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func recordRow(rec labelformat.Record, columns []string) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i], _ = rec.Lookup(c)
	}
	return row
}
