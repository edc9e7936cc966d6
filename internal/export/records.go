package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/thereceipt/label-engine/internal/paginator"
	"github.com/thereceipt/label-engine/internal/resolver"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// ArchiveName is the download name of a per-record export
const ArchiveName = "labels.zip"

// nameFields are tried, case-insensitively, when no filename column is set
var nameFields = []string{"nombre", "nombres", "name"}

// ExportRecords renders each record onto its own design-canvas page and
// streams one PDF per record into a zip archive written to w
func (p *Pipeline) ExportRecords(ctx context.Context, tpl *labelformat.Template, records []labelformat.Record, r *resolver.Resolver, filenameColumn string, w io.Writer) (*Result, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	if tpl == nil {
		return nil, fmt.Errorf("no template loaded")
	}
	if err := labelformat.Validate(tpl); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	if p.NewSurface == nil {
		return nil, fmt.Errorf("pipeline is missing a surface factory")
	}

	log := p.logger()
	names := RecordFileNames(records, filenameColumn)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nodes, err := r.ResolveAll(tpl.Objects, rec)
		if err != nil {
			log.Error("record failed to render", "record", i, "err", err)
			nodes = []resolver.Node{errorNode(tpl.DesignWidth)}
		}

		surface := p.NewSurface(tpl.DesignWidth, tpl.DesignHeight)
		for _, node := range nodes {
			if err := surface.DrawObject(node); err != nil {
				return nil, fmt.Errorf("failed to draw record %d: %w", i+1, err)
			}
		}

		entry, err := zw.Create(names[i])
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", names[i], err)
		}
		if err := surface.ToVectorDocument(entry); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", names[i], err)
		}

		p.report(Progress{
			Fraction:        float64(i+1) / float64(len(records)),
			BlocksCompleted: 0,
			TotalBlocks:     1,
			PagesDone:       i + 1,
			TotalPages:      len(records),
		})
		if err := sleep(ctx, p.PagePause); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	if _, err := io.Copy(w, &buf); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}

	log.Info("record export completed", "records", len(records))
	return &Result{FileName: ArchiveName, Pages: len(records), Blocks: 1}, nil
}

// RecordFileNames derives one unique PDF file name per record
func RecordFileNames(records []labelformat.Record, filenameColumn string) []string {
	used := make(map[string]bool, len(records))
	names := make([]string, len(records))

	for i, rec := range records {
		base := sanitizeName(recordBaseName(rec, filenameColumn))
		if base == "" {
			base = fmt.Sprintf("label_%d", i+1)
		}

		name := base
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s(%d)", base, n)
		}
		used[name] = true
		names[i] = name + ".pdf"
	}
	return names
}

func recordBaseName(rec labelformat.Record, column string) string {
	if column != "" {
		if v, ok := rec.Lookup(column); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	for _, field := range nameFields {
		if v, ok := rec.LookupFold(field); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func sanitizeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), "_")
}

func errorNode(width float64) resolver.Node {
	return resolver.Node{Object: labelformat.Object{
		Type:     labelformat.TypeText,
		Left:     10,
		Top:      10,
		Width:    width - 20,
		Height:   30,
		ScaleX:   1,
		ScaleY:   1,
		Text:     paginator.ErrorMarkerText,
		Fill:     "#ff0000",
		FontSize: 24,
	}}
}
