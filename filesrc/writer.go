package filesrc

import (
	"fmt"
	"io"

	"github.com/go-iso9660/isoimage/msgsink"
	"github.com/go-iso9660/isoimage/pipeline"
	"github.com/go-iso9660/isoimage/stream"
)

// Writer is the pipeline.Writer that owns the file-data region: one
// extent per distinct FileSrc, in SortedForAssignment order, shared by
// every target tree's directory records (spec.md §4.4's "File Data
// Extents" step, between the ECMA-119 and Joliet directory extents in
// the teacher's assignContentLBAs).
type Writer struct {
	Reg  *Registry
	Sink *msgsink.Sink

	ordered []*FileSrc
}

// NewWriter wraps reg for participation in a pipeline.Driver.
func NewWriter(reg *Registry, sink *msgsink.Sink) *Writer {
	if sink == nil {
		sink = msgsink.Discard()
	}
	return &Writer{Reg: reg, Sink: sink}
}

func (w *Writer) Name() string { return "filesrc" }

// ReserveExtents assigns one block run per FileSrc not already backed
// by a prior session's extent, via Registry.AssignBlocks.
func (w *Writer) ReserveExtents(ctx *pipeline.Context) error {
	w.ordered = w.Reg.SortedForAssignment(true)
	start := ctx.CurBlock()
	next := AssignBlocks(w.ordered, start, pipeline.BlockSize)
	ctx.ReserveBlocks(next - start)
	return nil
}

// WriteVolumeDescriptors is a no-op: file data carries no descriptor
// of its own.
func (w *Writer) WriteVolumeDescriptors(ctx *pipeline.Context, out io.Writer) error {
	return nil
}

// WriteData streams each FileSrc's content in assignment order,
// padding or truncating to its declared Size (spec.md §4.4 "a content
// stream whose actual byte count differs from Size is padded or
// truncated, never failed").
func (w *Writer) WriteData(ctx *pipeline.Context, out io.Writer) error {
	for _, fs := range w.ordered {
		size := fs.Content.Size()
		if size == 0 {
			continue
		}
		padded, truncated, err := stream.CopyPadded(out, fs.Content, size)
		if err != nil {
			return fmt.Errorf("filesrc: streaming content for block %d: %w", fs.Block, err)
		}
		if padded {
			w.Sink.Report(msgsink.Warning, "filesrc", "content shorter than declared size, padded", "block", fs.Block)
		}
		if truncated {
			w.Sink.Report(msgsink.Warning, "filesrc", "content longer than declared size, truncated", "block", fs.Block)
		}

		rem := size % pipeline.BlockSize
		if rem != 0 {
			if _, err := out.Write(make([]byte, pipeline.BlockSize-rem)); err != nil {
				return fmt.Errorf("filesrc: padding final sector for block %d: %w", fs.Block, err)
			}
		}
	}
	return nil
}
