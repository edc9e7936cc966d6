// Package records loads the data rows labels are stamped from
package records

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// Set is an ordered list of records plus the columns they carry
type Set struct {
	Columns []string             `json:"columns"`
	Records []labelformat.Record `json:"records"`
}

// Len returns the number of records
func (s *Set) Len() int {
	return len(s.Records)
}

// HasColumn reports whether name is one of the set's columns
func (s *Set) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Load reads records from a file, picking the format by extension
func Load(path string) (*Set, error) {
	ext := strings.ToLower(filepath.Ext(path))

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer file.Close()

	var set *Set
	switch ext {
	case ".csv":
		set, err = LoadCSV(file)
	case ".json":
		set, err = LoadJSON(file)
	case ".jsonl", ".ndjson":
		set, err = LoadJSONL(file)
	case ".parquet":
		info, statErr := file.Stat()
		if statErr != nil {
			return nil, fmt.Errorf("failed to stat file: %w", statErr)
		}
		set, err = LoadParquet(file, info.Size())
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .csv, .json, .jsonl, .parquet)", ext)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("records loaded", "path", path, "records", set.Len(), "columns", len(set.Columns))
	return set, nil
}

// LoadCSV reads a CSV whose first row names the columns. Values stay strings.
func LoadCSV(r io.Reader) (*Set, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return &Set{Columns: []string{}, Records: []labelformat.Record{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) > 0 {
		// Excel writes a BOM in front of the first column
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	set := &Set{Columns: header, Records: []labelformat.Record{}}
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV at line %d: %w", line, err)
		}
		if isBlank(row) {
			continue
		}

		rec := make(labelformat.Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = nil
			}
		}
		set.Records = append(set.Records, rec)
	}

	return set, nil
}

// LoadJSON reads a JSON array of flat objects. Numbers stay float64.
func LoadJSON(r io.Reader) (*Set, error) {
	var rows []labelformat.Record
	dec := json.NewDecoder(r)
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse JSON records: %w", err)
	}
	if rows == nil {
		rows = []labelformat.Record{}
	}
	for i, rec := range rows {
		if rec == nil {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
	}
	return &Set{Columns: columnsOf(rows), Records: rows}, nil
}

// LoadJSONL reads one JSON object per line
func LoadJSONL(r io.Reader) (*Set, error) {
	scanner := bufio.NewScanner(r)
	const maxCapacity = 10 * 1024 * 1024 // 10MB per line
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	rows := []labelformat.Record{}
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec labelformat.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("line %d is not an object", lineNum)
		}
		rows = append(rows, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading records: %w", err)
	}

	return &Set{Columns: columnsOf(rows), Records: rows}, nil
}

// columnsOf is the sorted union of record keys
func columnsOf(rows []labelformat.Record) []string {
	seen := make(map[string]bool)
	cols := []string{}
	for _, rec := range rows {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
