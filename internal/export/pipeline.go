// Package export renders paginated labels into block documents and merges them
package export

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thereceipt/label-engine/internal/document"
	"github.com/thereceipt/label-engine/internal/paginator"
	"github.com/thereceipt/label-engine/internal/renderer"
)

// DefaultBlockSize is the number of pages materialized per block document
const DefaultBlockSize = 40

// DocumentWriter opens and merges block documents
type DocumentWriter = document.Writer

// Block is one block document
type Block = document.Block

// SurfaceFactory creates a fresh surface of the given size
type SurfaceFactory func(width, height float64) renderer.RenderSurface

// Progress is reported after every page
type Progress struct {
	Fraction        float64 `json:"fraction"`
	BlocksCompleted int     `json:"blocks_completed"`
	TotalBlocks     int     `json:"total_blocks"`
	PagesDone       int     `json:"pages_done"`
	TotalPages      int     `json:"total_pages"`
}

// Result describes a finished export
type Result struct {
	FileName string `json:"file_name"`
	Pages    int    `json:"pages"`
	Blocks   int    `json:"blocks"`
}

// Pipeline exports pages in bounded blocks
type Pipeline struct {
	Writer     DocumentWriter
	NewSurface SurfaceFactory
	Grid       paginator.Grid

	BlockSize int
	// Workers > 1 rasterizes the pages of a block concurrently; they are still appended in order
	Workers    int
	PagePause  time.Duration
	BlockPause time.Duration

	OnProgress func(Progress)
	Logger     *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Pipeline) blockSize() int {
	if p.BlockSize < 1 {
		return DefaultBlockSize
	}
	return p.BlockSize
}

// Export renders the selected pages and writes the merged document to w.
// On cancellation or failure nothing is written to w.
func (p *Pipeline) Export(ctx context.Context, pages []paginator.Page, sel Selection, w io.Writer) (*Result, error) {
	span, err := sel.Resolve(len(pages))
	if err != nil {
		return nil, err
	}
	return p.ExportSpan(ctx, pages[span.Start:span.End], span, w)
}

// ExportSpan renders pages that were already selected by span. span only
// names the output; an empty page list is ErrNothingToExport.
func (p *Pipeline) ExportSpan(ctx context.Context, selected []paginator.Page, span Span, w io.Writer) (*Result, error) {
	if len(selected) == 0 {
		return nil, ErrNothingToExport
	}
	if p.Writer == nil || p.NewSurface == nil {
		return nil, fmt.Errorf("pipeline is missing a writer or surface factory")
	}

	size := p.blockSize()
	totalBlocks := (len(selected) + size - 1) / size
	log := p.logger()

	log.Info("export started", "pages", len(selected), "blocks", totalBlocks, "file", span.FileName())

	blocks := make([]Block, 0, totalBlocks)
	discard := func() {
		for _, b := range blocks {
			b.Discard()
		}
	}

	done := 0
	for bi := 0; bi < totalBlocks; bi++ {
		if err := ctx.Err(); err != nil {
			discard()
			return nil, err
		}

		start := bi * size
		end := start + size
		if end > len(selected) {
			end = len(selected)
		}
		chunk := selected[start:end]

		block, err := p.Writer.NewBlock()
		if err != nil {
			discard()
			return nil, fmt.Errorf("failed to open block %d: %w", bi+1, err)
		}
		blocks = append(blocks, block)

		add := func(i int, img image.Image) error {
			if err := block.AddPage(img); err != nil {
				return fmt.Errorf("failed to add page %d: %w", chunk[i].Index+1, err)
			}
			done++
			p.report(Progress{
				Fraction:        (float64(bi) + float64(i+1)/float64(len(chunk))) / float64(totalBlocks),
				BlocksCompleted: bi,
				TotalBlocks:     totalBlocks,
				PagesDone:       done,
				TotalPages:      len(selected),
			})
			return sleep(ctx, p.PagePause)
		}

		if err := p.renderBlock(ctx, chunk, add); err != nil {
			discard()
			return nil, err
		}

		if err := block.Close(); err != nil {
			discard()
			return nil, fmt.Errorf("failed to close block %d: %w", bi+1, err)
		}
		log.Debug("block materialized", "block", bi+1, "pages", block.PageCount())

		if bi < totalBlocks-1 {
			if err := sleep(ctx, p.BlockPause); err != nil {
				discard()
				return nil, err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		discard()
		return nil, err
	}

	if err := p.Writer.Merge(blocks, w); err != nil {
		discard()
		return nil, fmt.Errorf("failed to merge blocks: %w", err)
	}
	discard()

	log.Info("export completed", "pages", len(selected), "blocks", totalBlocks)
	return &Result{FileName: span.FileName(), Pages: len(selected), Blocks: totalBlocks}, nil
}

// renderBlock rasterizes chunk and hands each image to add in page order
func (p *Pipeline) renderBlock(ctx context.Context, chunk []paginator.Page, add func(int, image.Image) error) error {
	if p.Workers <= 1 {
		for i := range chunk {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := p.rasterize(&chunk[i])
			if err != nil {
				return err
			}
			if err := add(i, img); err != nil {
				return err
			}
		}
		return nil
	}

	images := make([]image.Image, len(chunk))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for i := range chunk {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := p.rasterize(&chunk[i])
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := add(i, img); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) rasterize(page *paginator.Page) (image.Image, error) {
	w, h := p.Grid.SheetSize()
	surface := p.NewSurface(w, h)
	if err := renderer.RenderPage(surface, page, p.Grid); err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page.Index+1, err)
	}
	return surface.ToRasterImage(), nil
}

func (p *Pipeline) report(pr Progress) {
	if p.OnProgress != nil {
		p.OnProgress(pr)
	}
}

// sleep waits d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
