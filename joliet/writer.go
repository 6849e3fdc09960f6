package joliet

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

const sectorSize = pipeline.BlockSize

// Writer is the Joliet pipeline.Writer: a second, parallel directory
// hierarchy and path table set describing the same logical tree under
// UCS-2BE names, emitting a Supplementary Volume Descriptor instead of
// a second Primary one (ECMA-119 §8.5), generalizing the teacher's
// createJolietVolumeDescriptor off its single fixed tree.
type Writer struct {
	Opts Options
	Reg  *filesrc.Registry

	tree *Tree

	ptLSize uint32
	lbaPTL  uint32
	lbaPTM  uint32

	dirsInOrder []*Node
}

// NewWriter builds the Joliet target tree.
func NewWriter(img *node.Image, opts Options, reg *filesrc.Registry) (*Writer, error) {
	tree, err := BuildTree(img, opts, reg)
	if err != nil {
		return nil, fmt.Errorf("joliet: building target tree: %w", err)
	}
	return &Writer{Opts: opts, Reg: reg, tree: tree}, nil
}

func (w *Writer) Name() string { return "joliet" }

func (w *Writer) ReserveExtents(ctx *pipeline.Context) error {
	w.dirsInOrder = collectDirsInOrder(w.tree.Root)

	for _, d := range w.dirsInOrder {
		d.Size = uint32(len(directoryListing(d)))
	}

	ptBytes := buildPathTable(w.dirsInOrder, true)
	w.ptLSize = uint32(len(ptBytes))
	ptSectors := sectorsFor(w.ptLSize)
	w.lbaPTL = ctx.ReserveBlocks(ptSectors)
	w.lbaPTM = ctx.ReserveBlocks(ptSectors)

	for _, d := range w.dirsInOrder {
		d.Block = ctx.ReserveBlocks(sectorsFor(d.Size))
	}

	ctx.Publish("joliet.root", w.tree.Root)
	return nil
}

// WriteVolumeDescriptors emits the Supplementary Volume Descriptor,
// including the "%/E" escape sequence that marks this SVD as a Level
// 3 (UCS-2) Joliet descriptor (ECMA-119 §8.5.2).
func (w *Writer) WriteVolumeDescriptors(ctx *pipeline.Context, out io.Writer) error {
	total, err := ctx.MustLookup("total_blocks")
	if err != nil {
		return err
	}
	totalBlocks := total.(uint32)

	sector := make([]byte, sectorSize)
	sector[0] = 2 // SVD type
	copy(sector[1:6], "CD001")
	sector[6] = 1

	body := new(bytes.Buffer)
	body.WriteByte(0) // volume flags
	body.Write(padString(w.Opts.SystemID, 32))
	body.Write(padUTF16(w.Opts.VolumeID, 16))
	body.Write(make([]byte, 8))

	binary.Write(body, binary.LittleEndian, totalBlocks)
	binary.Write(body, binary.BigEndian, totalBlocks)

	var esc [32]byte
	copy(esc[0:3], jolietEscapeSequence[:])
	body.Write(esc[:])

	binary.Write(body, binary.LittleEndian, uint16(1))
	binary.Write(body, binary.BigEndian, uint16(1))
	binary.Write(body, binary.LittleEndian, uint16(1))
	binary.Write(body, binary.BigEndian, uint16(1))
	binary.Write(body, binary.LittleEndian, uint16(sectorSize))
	binary.Write(body, binary.BigEndian, uint16(sectorSize))
	binary.Write(body, binary.LittleEndian, w.ptLSize)
	binary.Write(body, binary.BigEndian, w.ptLSize)
	binary.Write(body, binary.LittleEndian, w.lbaPTL)
	binary.Write(body, binary.LittleEndian, uint32(0))
	binary.Write(body, binary.BigEndian, w.lbaPTM)
	binary.Write(body, binary.BigEndian, uint32(0))

	rootID := identifierFor("", true, false)
	body.Write(marshalRecord(w.tree.Root.Block, w.tree.Root.Size, rootID, true, false, time.Now().UTC()))

	body.Write(padUTF16("", 64))
	body.Write(padUTF16(w.Opts.PublisherID, 64))
	body.Write(padUTF16(w.Opts.PreparerID, 64))
	body.Write(padUTF16(w.Opts.ApplicationID, 64))
	body.Write(make([]byte, 37))
	body.Write(make([]byte, 37))
	body.Write(make([]byte, 37))

	now := formatTimestamp(time.Now().UTC())
	body.Write(now)
	body.Write(now)
	body.Write(formatTimestamp(time.Time{}))
	body.Write(now)
	body.WriteByte(1)

	copy(sector[7:], body.Bytes())
	_, err = out.Write(sector)
	return err
}

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
		if err := writePadded(out, directoryListing(d)); err != nil {
			return fmt.Errorf("joliet: writing directory %q: %w", d.Name, err)
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

func sectorsFor(size uint32) uint32 { return (size + sectorSize - 1) / sectorSize }

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

// padUTF16 encodes s as UCS-2BE and pads/truncates to numChars
// characters (2*numChars bytes), space-padded like the teacher's
// padUTF16StringBE.
func padUTF16(s string, numChars int) []byte {
	b := make([]byte, numChars*2)
	for i := 0; i < numChars; i++ {
		b[2*i], b[2*i+1] = 0, ' '
	}
	enc := encodeUTF16BE(s)
	if len(enc) > len(b) {
		enc = enc[:len(b)]
	}
	copy(b, enc)
	return b
}

func formatTimestamp(t time.Time) []byte {
	if t.IsZero() {
		return make([]byte, 17)
	}
	s := t.Format("20060102150405") + "00"
	return append([]byte(s), 0)
}
