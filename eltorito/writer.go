package eltorito

import (
	"fmt"
	"io"

	"github.com/go-iso9660/isoimage/ecma119"
	"github.com/go-iso9660/isoimage/isoerr"
	"github.com/go-iso9660/isoimage/msgsink"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/pipeline"
	"github.com/go-iso9660/isoimage/stream"
)

// Writer is the El Torito pipeline.Writer: it validates the configured
// boot image, emits the Boot Record Volume Descriptor, and supplies
// ecma119.Writer's BootContent hook with the catalog's bytes. The boot
// node's own extent (ecma119.KindBoot) and the boot image's file
// extent are reserved by ecma119.Writer and filesrc.Writer
// respectively, so this writer's ReserveExtents is a no-op: it only
// needs those blocks once they're assigned, at
// WriteVolumeDescriptors/WriteData time.
type Writer struct {
	Tree *ecma119.Tree
	Meta *node.BootCatalog
	Sink *msgsink.Sink

	bootImg *ecma119.Node
	catalog *ecma119.Node

	partitionType byte
}

// NewWriter resolves img.Boot's configured paths against tree, runs
// the same validation create_image performs on a boot image before
// accepting it, and installs the isolinux boot-info-table patch when
// requested.
func NewWriter(tree *ecma119.Tree, img *node.Image, sink *msgsink.Sink) (*Writer, error) {
	if sink == nil {
		sink = msgsink.Discard()
	}
	meta := img.Boot
	if meta == nil {
		return nil, fmt.Errorf("%w: image has no boot catalog configured", isoerr.ErrPrecondition)
	}

	bootLogical, err := img.PathToNode(meta.BootImagePath)
	if err != nil {
		return nil, fmt.Errorf("eltorito: resolving boot image path: %w", err)
	}
	bootImg := tree.FindByLogical(bootLogical)
	if bootImg == nil || bootImg.Kind != ecma119.KindFile || bootImg.File == nil {
		return nil, fmt.Errorf("%w: boot image %q is not a regular file in the target tree", isoerr.ErrFormat, meta.BootImagePath)
	}

	catalogLogical, err := img.PathToNode(meta.CatalogNodePath)
	if err != nil {
		return nil, fmt.Errorf("eltorito: resolving boot catalog path: %w", err)
	}
	catalog := tree.FindByLogical(catalogLogical)
	if catalog == nil || catalog.Kind != ecma119.KindBoot {
		return nil, fmt.Errorf("%w: %q is not a boot catalog placeholder", isoerr.ErrFormat, meta.CatalogNodePath)
	}

	partitionType, err := validateBootImage(bootImg.File.Content, meta.MediaType)
	if err != nil {
		return nil, err
	}

	w := &Writer{Tree: tree, Meta: meta, Sink: sink, bootImg: bootImg, catalog: catalog, partitionType: partitionType}

	if meta.Isolinux {
		original := bootImg.File.Content
		bootImg.File.Content = stream.NewFilterStream(original, original.Size(),
			isolinuxPatchFilter(
				func() uint32 { return pipeline.SystemAreaBlocks },
				func() uint32 { return bootImg.File.Block },
			))
	}
	return w, nil
}

func (w *Writer) Name() string { return "eltorito" }

// ReserveExtents reserves nothing of its own: the catalog's extent
// comes from ecma119.Writer, the boot image's from filesrc.Writer.
func (w *Writer) ReserveExtents(ctx *pipeline.Context) error { return nil }

// WriteVolumeDescriptors emits the Boot Record Volume Descriptor once
// the catalog's block has been reserved by ecma119.Writer.
func (w *Writer) WriteVolumeDescriptors(ctx *pipeline.Context, out io.Writer) error {
	_, err := out.Write(bootRecordVolumeDescriptor(w.catalog.Block))
	return err
}

// WriteData is a no-op: the catalog's bytes are supplied through
// BootContent, inside ecma119.Writer's own data region, not a region
// of this writer's own.
func (w *Writer) WriteData(ctx *pipeline.Context, out io.Writer) error { return nil }

// BootContent is the ecma119.BootContentFunc hook: install it on the
// companion ecma119.Writer (ecmaW.BootContent = eltW.BootContent)
// before running the pipeline driver.
func (w *Writer) BootContent(n *ecma119.Node) ([]byte, error) {
	buf := make([]byte, pipeline.BlockSize)
	copy(buf[0:32], entryValidation(platformX86))

	secCount := w.Meta.LoadSize
	if secCount == 0 {
		secCount = 4 // one 2048-byte sector's worth of 512-byte sectors
	}
	copy(buf[32:64], entryDefault(w.Meta.Bootable, w.Meta.MediaType, w.Meta.LoadSegment, secCount, w.partitionType, w.bootImg.File.Block))
	return buf, nil
}

// SystemArea is a pipeline.Driver.SystemArea hook
// (driver.SystemArea = eltW.SystemArea): stamps an isohybrid MBR over
// the system area for no-emulation and floppy-emulation images, so a
// BIOS that only knows how to boot an MBR-partitioned disk can still
// boot the ISO written straight to a USB stick. Hard-disk emulation
// images already carry their own MBR inside the boot image; stamping
// the outer one too would present two conflicting partition tables, so
// that combination is left alone. The second return value is the
// number of trailing zero blocks the driver must pad the image with so
// the stamped partition covers a whole number of BIOS cylinders.
func (w *Writer) SystemArea(ctx *pipeline.Context) ([]byte, uint32, error) {
	if w.Meta.MediaType == node.BootHardDisk {
		return nil, 0, nil
	}
	total, err := ctx.MustLookup("total_blocks")
	if err != nil {
		return nil, 0, err
	}
	mbr, padBlocks := isohybridMBR(total.(uint32), w.partitionType)
	return mbr, padBlocks, nil
}
