package records

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// LoadParquet reads every row group of a Parquet file. Nested columns are
// keyed by their dotted path; nulls become nil.
func LoadParquet(r io.ReaderAt, size int64) (*Set, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	paths := pf.Schema().Columns()
	columns := make([]string, len(paths))
	for i, p := range paths {
		columns[i] = strings.Join(p, ".")
	}

	slog.Debug("Parquet file opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	set := &Set{Columns: columns, Records: make([]labelformat.Record, 0, pf.NumRows())}
	buf := make([]parquet.Row, 128)

	for gi, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				set.Records = append(set.Records, toRecord(row, columns))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to read row group %d: %w", gi, err)
			}
			if n == 0 {
				break
			}
		}
		rows.Close()
	}

	return set, nil
}

func toRecord(row parquet.Row, columns []string) labelformat.Record {
	rec := make(labelformat.Record, len(columns))
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(columns) {
			continue
		}
		key := columns[col]
		// repeated columns keep their first value
		if _, ok := rec[key]; ok {
			continue
		}
		rec[key] = toValue(v)
	}
	return rec
}

func toValue(v parquet.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
