package ecma119

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/go-iso9660/isoimage/filesrc"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/pipeline"
)

// sectorSize is the ECMA-119 logical block size; kept as a local alias
// so this package's arithmetic doesn't reach across to pipeline for
// every constant use.
const sectorSize = pipeline.BlockSize

// Writer is the ECMA-119 pipeline.Writer: it owns the primary path
// tables and ECMA-119 directory extents, and publishes the tree and
// root extent for other writers (Joliet, Rock Ridge) to reference,
// generalizing the teacher's calculateLayout/createPrimaryVolumeDescriptor
// sequence (iso9660/layout.go, iso9660/descriptors.go) to run as one
// stage of a multi-writer pipeline instead of the whole build.
type Writer struct {
	Opts Options
	Reg  *filesrc.Registry

	tree *Tree

	ptLSize uint32
	lbaPTL  uint32
	lbaPTM  uint32

	dirsInOrder  []*Node // genuine directories only, in PathTableNum order
	placeholders []*Node // RR_MOVED placeholder stubs, block-reserved but absent from the path table
	bootNodes    []*Node // El Torito boot catalog stub(s), one fixed-size block each

	// SystemUse, when set by a companion Rock Ridge writer before
	// ReserveExtents runs, supplies the SUSP bytes appended to each
	// directory record; left nil when Rock Ridge is off.
	SystemUse SystemUseFunc

	// BootContent, when set by a companion El Torito writer before
	// WriteData runs, supplies the 2048-byte boot catalog payload for
	// each KindBoot node; left nil when the image carries no boot catalog.
	BootContent BootContentFunc
}

// BootContentFunc supplies the raw sector content for a KindBoot node,
// installed on Writer the same way a Rock Ridge writer installs
// SystemUse: ecma119 reserves the node's single block during
// ReserveExtents, and the El Torito writer fills it in during WriteData
// once every other writer's blocks (boot image, path tables) are known.
type BootContentFunc func(n *Node) ([]byte, error)

// NewWriter builds the ECMA-119 target tree from img and returns a
// Writer ready to participate in a pipeline.Driver.
func NewWriter(img *node.Image, opts Options, reg *filesrc.Registry) (*Writer, error) {
	tree, err := BuildTree(img, opts, reg)
	if err != nil {
		return nil, fmt.Errorf("ecma119: building target tree: %w", err)
	}
	return &Writer{Opts: opts, Reg: reg, tree: tree}, nil
}

func (w *Writer) Name() string { return "ecma119" }

// Tree exposes the built target tree for companion writers (Rock Ridge
// walks the same nodes to attach SUSP entries; El Torito finds its boot
// catalog node in it). Joliet builds its own tree from the image.
func (w *Writer) Tree() *Tree { return w.tree }

// ReserveExtents computes each directory's record-listing size, reserves
// the two path table copies, then walks the tree breadth-first
// (matching PathTableNum order) reserving one extent per directory,
// mirroring the teacher's determinePathTableLBAs → assignContentLBAs
// sequence restricted to the ECMA-119 half of that work.
func (w *Writer) ReserveExtents(ctx *pipeline.Context) error {
	w.dirsInOrder = collectDirsInOrder(w.tree.Root)
	w.placeholders = collectPlaceholders(w.tree.Root)
	w.bootNodes = collectBootNodes(w.tree.Root)

	for _, d := range w.dirsInOrder {
		d.Size = uint32(len(directoryListing(d, w.Opts, w.SystemUse)))
	}
	for _, p := range w.placeholders {
		p.Size = uint32(len(directoryListing(p, w.Opts, w.SystemUse)))
	}

	ptBytes := buildPathTable(w.dirsInOrder, true)
	w.ptLSize = uint32(len(ptBytes))
	ptSectors := sectorsFor(w.ptLSize)
	w.lbaPTL = ctx.ReserveBlocks(ptSectors)
	w.lbaPTM = ctx.ReserveBlocks(ptSectors)

	for _, d := range w.dirsInOrder {
		d.Block = ctx.ReserveBlocks(sectorsFor(d.Size))
	}
	for _, p := range w.placeholders {
		p.Block = ctx.ReserveBlocks(sectorsFor(p.Size))
	}
	for _, b := range w.bootNodes {
		b.Size = sectorSize
		b.Block = ctx.ReserveBlocks(1)
	}

	ctx.Publish("ecma119.root", w.tree.Root)
	ctx.Publish("ecma119.boot_nodes", w.bootNodes)
	ctx.Publish("ecma119.root_dr_size", w.tree.Root.Size)
	return nil
}

// WriteVolumeDescriptors emits the Primary Volume Descriptor sector.
func (w *Writer) WriteVolumeDescriptors(ctx *pipeline.Context, out io.Writer) error {
	total, err := ctx.MustLookup("total_blocks")
	if err != nil {
		return err
	}
	totalBlocks := total.(uint32)

	sector := make([]byte, sectorSize)
	sector[0] = 1 // PVD type
	copy(sector[1:6], "CD001")
	sector[6] = 1

	body := new(bytes.Buffer)
	body.WriteByte(0)
	body.Write(padString(w.Opts.SystemID, 32))
	body.Write(padString(w.Opts.VolumeID, 32))
	body.Write(make([]byte, 8))

	binary.Write(body, binary.LittleEndian, totalBlocks)
	binary.Write(body, binary.BigEndian, totalBlocks)
	body.Write(make([]byte, 32)) // no escape sequences for the plain PVD

	binary.Write(body, binary.LittleEndian, uint16(1)) // volume set size
	binary.Write(body, binary.BigEndian, uint16(1))
	binary.Write(body, binary.LittleEndian, uint16(1)) // volume sequence number
	binary.Write(body, binary.BigEndian, uint16(1))
	binary.Write(body, binary.LittleEndian, uint16(sectorSize))
	binary.Write(body, binary.BigEndian, uint16(sectorSize))
	binary.Write(body, binary.LittleEndian, w.ptLSize)
	binary.Write(body, binary.BigEndian, w.ptLSize)
	binary.Write(body, binary.LittleEndian, w.lbaPTL)
	binary.Write(body, binary.LittleEndian, uint32(0)) // optional L table
	binary.Write(body, binary.BigEndian, w.lbaPTM)
	binary.Write(body, binary.BigEndian, uint32(0)) // optional M table

	// the PVD's root record is a fixed 34-byte field (no System Use
	// bytes); the root's own "." record carries the SUSP entries.
	rootID := identifierFor("", true, false, true, w.Opts)
	body.Write(marshalRecord(w.tree.Root.Block, w.tree.Root.Size, rootID, true, false, time.Now().UTC(), nil))

	body.Write(padString("", 128)) // volume set identifier
	body.Write(padString(w.Opts.PublisherID, 128))
	body.Write(padString(w.Opts.PreparerID, 128))
	body.Write(padString(w.Opts.ApplicationID, 128))
	body.Write(padString("", 37)) // copyright file
	body.Write(padString("", 37)) // abstract file
	body.Write(padString("", 37)) // bibliographic file

	now := formatTimestamp(time.Now().UTC())
	body.Write(now)
	body.Write(now)
	body.Write(formatTimestamp(time.Time{}))
	body.Write(now)
	body.WriteByte(1) // file structure version

	copy(sector[7:], body.Bytes())
	_, err = out.Write(sector)
	return err
}

// WriteData emits the path tables followed by each directory's
// record listing, in the same order blocks were reserved, padding the
// final sector of each extent per ECMA-119 §6.8.1.1.
func (w *Writer) WriteData(ctx *pipeline.Context, out io.Writer) error {
	ptL := buildPathTable(w.dirsInOrder, true)
	ptM := buildPathTable(w.dirsInOrder, false)
	if err := writePadded(out, ptL); err != nil {
		return err
	}
	if err := writePadded(out, ptM); err != nil {
		return err
	}

	for _, d := range w.dirsInOrder {
		listing := directoryListing(d, w.Opts, w.SystemUse)
		if err := writePadded(out, listing); err != nil {
			return fmt.Errorf("ecma119: writing directory %q: %w", d.Name, err)
		}
	}
	for _, p := range w.placeholders {
		listing := directoryListing(p, w.Opts, w.SystemUse)
		if err := writePadded(out, listing); err != nil {
			return fmt.Errorf("ecma119: writing relocation placeholder %q: %w", p.Name, err)
		}
	}
	for _, b := range w.bootNodes {
		var content []byte
		if w.BootContent != nil {
			c, err := w.BootContent(b)
			if err != nil {
				return fmt.Errorf("ecma119: building boot catalog %q: %w", b.Name, err)
			}
			content = c
		}
		if err := writePadded(out, content); err != nil {
			return fmt.Errorf("ecma119: writing boot catalog %q: %w", b.Name, err)
		}
	}
	return nil
}

func writePadded(out io.Writer, data []byte) error {
	padded := sectorsFor(uint32(len(data))) * sectorSize
	buf := make([]byte, padded)
	copy(buf, data)
	_, err := out.Write(buf)
	return err
}

func sectorsFor(size uint32) uint32 {
	return (size + sectorSize - 1) / sectorSize
}

// collectDirsInOrder returns genuine directories breadth-first, the
// same order assignPathTableNumbers used, so path table position lines
// up with each directory's PathTableNum.
func collectDirsInOrder(root *Node) []*Node {
	var out []*Node
	queue := []*Node{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		for _, c := range cur.Children {
			if c.Kind == KindDir {
				queue = append(queue, c)
			}
		}
	}
	return out
}

// collectPlaceholders returns every relocation placeholder in the
// tree. Placeholders get their own (empty) extent but never a path
// table entry, since the directory they stand in for is listed under
// RR_MOVED instead.
func collectPlaceholders(root *Node) []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			if c.Kind == KindPlaceholder {
				out = append(out, c)
			}
			if isDirLike(c.Kind) {
				walk(c)
			}
		}
	}
	walk(root)
	return out
}

// collectBootNodes returns every synthetic El Torito boot catalog node
// in the tree, in the same depth-first order collectPlaceholders
// uses, so WriteData emits their blocks in the order ReserveExtents
// assigned them.
func collectBootNodes(root *Node) []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			if c.Kind == KindBoot {
				out = append(out, c)
			}
			if isDirLike(c.Kind) {
				walk(c)
			}
		}
	}
	walk(root)
	return out
}

func buildPathTable(dirs []*Node, le bool) []byte {
	var out []byte
	for _, d := range dirs {
		out = append(out, pathTableRecord(d, le)...)
	}
	return out
}

func padString(s string, n int) []byte {
	b := bytes.Repeat([]byte(" "), n)
	copy(b, s)
	return b
}

// formatTimestamp renders the 17-byte ECMA-119 §8.4.26.1 date/time
// field: 16 decimal-digit characters plus a one-byte GMT offset. A
// zero time.Time yields the all-zero "not specified" form.
func formatTimestamp(t time.Time) []byte {
	if t.IsZero() {
		return make([]byte, 17)
	}
	s := t.Format("20060102150405") + "00" // centiseconds unsupported, always 00
	buf := append([]byte(s), 0)
	return buf
}
