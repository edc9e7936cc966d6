// Package document declares the block document contract shared by output sinks
package document

import (
	"image"
	"io"
)

// Block is a bounded run of pages materialized as one document
type Block interface {
	AddPage(img image.Image) error
	PageCount() int
	// Close materializes the block; no pages may be added afterwards
	Close() error
	// Discard releases the block without producing output
	Discard()
}

// Writer opens blocks and concatenates closed blocks, in order, into w
type Writer interface {
	NewBlock() (Block, error)
	Merge(blocks []Block, w io.Writer) error
}
