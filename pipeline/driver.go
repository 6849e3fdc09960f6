package pipeline

import (
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/go-iso9660/isoimage/msgsink"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/ringbuffer"
)

// Driver runs an ordered set of Writers through the three passes and
// streams the result to an external sink, generalizing the teacher's
// ISOBuilder.Build sequencing (scan → layout → write descriptors →
// write path tables/directories → write file data → finalize).
type Driver struct {
	Writers    []Writer
	Appendable bool
	MSBlock    uint32
	Sink       *msgsink.Sink

	// RingCapacity is the producer/consumer buffer size between the
	// data-emission pass and dst (spec.md §2's "bounded ring buffer").
	RingCapacity int

	// SystemArea, when set, runs once every writer's ReserveExtents has
	// completed (so published facts such as a boot image's LBA are
	// available) and supplies the 16-block system area payload in place
	// of the all-zero default, plus a count of zero blocks to pad onto
	// the end of the image after every writer's data region (isohybrid
	// MBR partitions must span a whole number of BIOS cylinders).
	// El Torito's isohybrid MBR stamping is the only writer that needs
	// this; everyone else leaves it nil.
	SystemArea func(ctx *Context) ([]byte, uint32, error)
}

// NewDriver constructs a Driver over writers in emission order.
func NewDriver(writers ...Writer) *Driver {
	return &Driver{Writers: writers, RingCapacity: 2 * 1024 * 1024}
}

// Build runs all three passes and writes the finished image to dst.
// Descriptor and data emission happen on a separate goroutine from the
// copy into dst, decoupled by a bounded ring buffer so a slow sink
// does not stall computing later blocks (spec.md §2, §4.4).
func (d *Driver) Build(img *node.Image, dst io.Writer) error {
	sink := d.Sink
	if sink == nil {
		sink = msgsink.Discard()
	}
	ctx := NewContext(img, d.Appendable, d.MSBlock)

	for _, w := range d.Writers {
		if err := w.ReserveExtents(ctx); err != nil {
			return fmt.Errorf("pipeline: %s: reserving extents: %w", w.Name(), err)
		}
		sink.Report(msgsink.Debug, "pipeline", "reserved extents", "writer", w.Name(), "curblock", ctx.CurBlock())
	}
	ctx.Publish("total_blocks", ctx.CurBlock())

	sysArea := make([]byte, SystemAreaBlocks*BlockSize)
	var padBlocks uint32
	if d.SystemArea != nil {
		patched, pad, err := d.SystemArea(ctx)
		if err != nil {
			return fmt.Errorf("pipeline: building system area: %w", err)
		}
		copy(sysArea, patched)
		padBlocks = pad
	}

	if d.RingCapacity <= 0 {
		d.RingCapacity = 2 * 1024 * 1024
	}
	buf := ringbuffer.New(d.RingCapacity)

	var g errgroup.Group
	g.Go(func() error {
		w := ringbuffer.NewWriter(buf)
		defer w.Close()
		return d.produce(ctx, w, sink, sysArea, padBlocks)
	})
	g.Go(func() error {
		r := ringbuffer.NewReader(buf)
		defer r.Close()
		_, err := io.Copy(dst, r)
		return err
	})
	return g.Wait()
}

func (d *Driver) produce(ctx *Context, w io.Writer, sink *msgsink.Sink, sysArea []byte, padBlocks uint32) error {
	// pass 2: system area (blank, or isohybrid-patched) then each
	// writer's volume descriptors, in emission order, at sector 16+.
	if _, err := w.Write(sysArea); err != nil {
		return fmt.Errorf("pipeline: writing system area: %w", err)
	}
	for _, wr := range d.Writers {
		if err := wr.WriteVolumeDescriptors(ctx, w); err != nil {
			return fmt.Errorf("pipeline: %s: writing volume descriptors: %w", wr.Name(), err)
		}
	}

	// terminator descriptor, common to every ECMA-119 image (ECMA-119 §8.3).
	term := make([]byte, BlockSize)
	term[0] = 255
	copy(term[1:6], "CD001")
	term[6] = 1
	if _, err := w.Write(term); err != nil {
		return fmt.Errorf("pipeline: writing volume descriptor terminator: %w", err)
	}

	// pass 3: each writer's data region, in the same order its extents
	// were reserved.
	for _, wr := range d.Writers {
		if err := wr.WriteData(ctx, w); err != nil {
			return fmt.Errorf("pipeline: %s: writing data: %w", wr.Name(), err)
		}
		sink.Report(msgsink.Debug, "pipeline", "wrote data region", "writer", wr.Name())
	}

	// isohybrid MBR partitions must cover a whole number of BIOS
	// cylinders; pad the image out to that boundary with zero blocks.
	if padBlocks > 0 {
		pad := make([]byte, BlockSize)
		for i := uint32(0); i < padBlocks; i++ {
			if _, err := w.Write(pad); err != nil {
				return fmt.Errorf("pipeline: writing isohybrid cylinder padding: %w", err)
			}
		}
	}
	return nil
}
