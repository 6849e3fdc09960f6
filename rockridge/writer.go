package rockridge

import (
	"fmt"
	"io"
	"time"

	"github.com/go-iso9660/isoimage/ecma119"
	"github.com/go-iso9660/isoimage/fsimport"
	"github.com/go-iso9660/isoimage/msgsink"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/pipeline"
)

// POSIX file-type bits node.Node.Mode never carries (fsimport stores
// permission bits only); rrip_add_PX still needs the combined value,
// so Writer fills them in from the node's Kind.
const (
	posixIFSOCK = 0o140000
	posixIFLNK  = 0o120000
	posixIFREG  = 0o100000
	posixIFBLK  = 0o060000
	posixIFDIR  = 0o040000
	posixIFCHR  = 0o020000
	posixIFIFO  = 0o010000
)

// maxInlineSUA bounds the total bytes of NM/SL/AA entries Writer will
// place directly in one Directory Record's System Use Area; an entry
// that would push the total past it moves whole to the Continuation
// Area. ECMA-119 §9.1 caps a Directory Record at 255 bytes and its
// length is even, so 254 are usable: 33 fixed, up to 40 of identifier
// and padding (37 characters plus ";1"), PX 44, TF 26, PN 20 and CE 28
// add up to 191, leaving 63. This is a simplification of
// rrip_calc_len's byte-exact "space" accounting (which knows the
// record's actual remaining budget): NM, SL and AA each move to CE
// whole, rather than splitting a single SL component across SUA and CE.
const maxInlineSUA = 63

type ceKey struct {
	target *ecma119.Node
	slot   ecma119.EntrySlot
}

type ceRange struct {
	offset uint32
	length uint32
}

// Writer computes Rock Ridge/SUSP entries for every node in an
// already-built ecma119.Tree and owns the disc's single Continuation
// Area (spec.md §4.6's Rock Ridge support), generalizing
// original_source/src/rockridge.c's per-node entry builders plus the
// susp_add_CE/rrip_add_ER continuation-area bookkeeping into a
// pipeline.Writer that plugs into ecma119.Writer via SystemUseFunc
// instead of being compiled directly into the ECMA-119 record
// marshaller.
type Writer struct {
	Tree *ecma119.Tree
	Sink *msgsink.Sink

	ceBlock   uint32
	ceContent []byte
	ceRanges  map[ceKey]ceRange
}

// NewWriter builds a Rock Ridge Writer over tree. Call SystemUse to
// obtain the hook to install on the companion ecma119.Writer before
// running the pipeline.
func NewWriter(tree *ecma119.Tree, sink *msgsink.Sink) *Writer {
	if sink == nil {
		sink = msgsink.Discard()
	}
	return &Writer{Tree: tree, Sink: sink, ceRanges: make(map[ceKey]ceRange)}
}

func (w *Writer) Name() string { return "rockridge" }

// ReserveExtents walks the tree computing every node's SUSP entries
// and assembling the Continuation Area content (ER plus any NM/SL/AA
// entry too large to inline). This never depends on ecma119 block
// numbers: PL/CL entries are fixed-size regardless of the block value
// they end up holding, so the Continuation Area can be fully sized and
// reserved before ecma119.Writer assigns any directory blocks,
// resolving what would otherwise be a circular dependency between the
// two writers.
func (w *Writer) ReserveExtents(ctx *pipeline.Context) error {
	w.walk(w.Tree.Root, func(target *ecma119.Node, slot ecma119.EntrySlot) {
		_, chunks := w.buildEntries(target, slot)
		if len(chunks) == 0 {
			return
		}
		off := uint32(len(w.ceContent))
		var size uint32
		for _, c := range chunks {
			w.ceContent = append(w.ceContent, c...)
			size += uint32(len(c))
		}
		w.ceRanges[ceKey{target, slot}] = ceRange{offset: off, length: size}
	})

	if len(w.ceContent) == 0 {
		return nil
	}
	sectors := (uint32(len(w.ceContent)) + pipeline.BlockSize - 1) / pipeline.BlockSize
	w.ceBlock = ctx.ReserveBlocks(sectors)
	return nil
}

// WriteVolumeDescriptors is a no-op: Rock Ridge has no descriptor of
// its own, only SUSP entries inside ECMA-119's directory records.
func (w *Writer) WriteVolumeDescriptors(ctx *pipeline.Context, out io.Writer) error {
	return nil
}

// WriteData emits the Continuation Area, sector-padded.
func (w *Writer) WriteData(ctx *pipeline.Context, out io.Writer) error {
	if len(w.ceContent) == 0 {
		return nil
	}
	sectors := (uint32(len(w.ceContent)) + pipeline.BlockSize - 1) / pipeline.BlockSize
	buf := make([]byte, sectors*pipeline.BlockSize)
	copy(buf, w.ceContent)
	if _, err := out.Write(buf); err != nil {
		return fmt.Errorf("rockridge: writing continuation area: %w", err)
	}
	return nil
}

// SystemUse is the ecma119.SystemUseFunc hook: install it on the
// companion ecma119.Writer (w2.SystemUse = rrWriter.SystemUse) before
// running the pipeline driver.
func (w *Writer) SystemUse(target *ecma119.Node, slot ecma119.EntrySlot) []byte {
	inline, _ := w.buildEntries(target, slot)
	if r, ok := w.ceRanges[ceKey{target, slot}]; ok {
		inline = append(inline, entryCE(w.ceBlock, r.offset, r.length)...)
	}
	return inline
}

// walk visits every (directory-or-placeholder node, slot) combination
// ecma119.directoryListing will later call SystemUse for, in the same
// order, so ReserveExtents' CE layout matches what SystemUse reports
// back during both the sizing and the final write pass.
func (w *Writer) walk(dir *ecma119.Node, visit func(*ecma119.Node, ecma119.EntrySlot)) {
	visit(dir, ecma119.SlotSelf)
	visit(dir, ecma119.SlotParent)
	for _, c := range dir.Children {
		visit(c, ecma119.SlotNormal)
		if c.Kind == ecma119.KindDir || c.Kind == ecma119.KindPlaceholder {
			w.walk(c, visit)
		}
	}
}

func (w *Writer) buildEntries(target *ecma119.Node, slot ecma119.EntrySlot) (inline []byte, ceChunks [][]byte) {
	var parts [][]byte
	logical := target.Logical

	var mode, uid, gid uint32
	var mtime, atime, ctime time.Time
	if logical != nil {
		mode, uid, gid = logical.Mode, logical.UID, logical.GID
		mtime, atime, ctime = logical.MTime, logical.ATime, logical.CTime
	}
	mode |= posixTypeBits(target, logical)

	parts = append(parts, entryPX(mode, nlinkFor(target), uid, gid, 0))
	parts = append(parts, entryTF(mtime, atime, ctime))

	switch slot {
	case ecma119.SlotParent:
		if target.RealParent != nil {
			parts = append(parts, entryPL(target.RealParent.Block))
		}
	case ecma119.SlotSelf:
		if target == w.Tree.Root {
			parts = append(parts, entrySP())
			ceChunks = append(ceChunks, entryER())
		}
	case ecma119.SlotNormal:
		inlineUsed := 0
		switch target.Kind {
		case ecma119.KindSymlink:
			slBytes := joinEntries(buildSLEntries(splitSymlinkTarget(logical.SymlinkTarget())))
			if inlineUsed+len(slBytes) <= maxInlineSUA {
				parts = append(parts, slBytes)
				inlineUsed += len(slBytes)
			} else {
				ceChunks = append(ceChunks, slBytes)
			}
		case ecma119.KindSpecial:
			if logical != nil {
				kind, major, minor := logical.SpecialInfo()
				if kind == node.SpecialBlockDevice || kind == node.SpecialCharDevice {
					parts = append(parts, entryPN(major, minor))
				}
			}
		case ecma119.KindPlaceholder:
			if target.RealMe != nil {
				parts = append(parts, entryCL(target.RealMe.Block))
			}
		}
		if target.RealParent != nil {
			parts = append(parts, entryRE())
		}
		if aa, ok := aaString(logical); ok {
			aaEntry := entryAA(aa)
			if inlineUsed+len(aaEntry) <= maxInlineSUA {
				parts = append(parts, aaEntry)
				inlineUsed += len(aaEntry)
			} else {
				ceChunks = append(ceChunks, aaEntry)
			}
		}
		if name := rrName(target); name != "" {
			nameBytes := joinEntries(buildNMEntries(name))
			if inlineUsed+len(nameBytes) <= maxInlineSUA {
				parts = append(parts, nameBytes)
				inlineUsed += len(nameBytes)
			} else {
				ceChunks = append(ceChunks, nameBytes)
			}
		}
	}
	return joinEntries(parts), ceChunks
}

// rrName returns the real (untranslated) POSIX name Rock Ridge should
// advertise for target, since ecma119's own identifier is already the
// mangled 8.3/level-2 form.
func rrName(target *ecma119.Node) string {
	if target.Logical == nil {
		return ""
	}
	return target.Logical.Name
}

func aaString(logical *node.Node) (string, bool) {
	if logical == nil {
		return "", false
	}
	v, ok := logical.Extra(fsimport.AAStringKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// nlinkFor approximates the POSIX link count: 2 plus one per
// subdirectory for directories and relocation placeholders, 1 for
// everything else.
func nlinkFor(target *ecma119.Node) uint32 {
	if target.Kind != ecma119.KindDir && target.Kind != ecma119.KindPlaceholder {
		return 1
	}
	n := uint32(2)
	for _, c := range target.Children {
		if c.Kind == ecma119.KindDir {
			n++
		}
	}
	return n
}

func posixTypeBits(target *ecma119.Node, logical *node.Node) uint32 {
	switch target.Kind {
	case ecma119.KindDir, ecma119.KindPlaceholder:
		return posixIFDIR
	case ecma119.KindSymlink:
		return posixIFLNK
	case ecma119.KindSpecial:
		if logical != nil {
			switch k, _, _ := logical.SpecialInfo(); k {
			case node.SpecialBlockDevice:
				return posixIFBLK
			case node.SpecialCharDevice:
				return posixIFCHR
			case node.SpecialFIFO:
				return posixIFIFO
			case node.SpecialSocket:
				return posixIFSOCK
			}
		}
		return 0
	default:
		return posixIFREG
	}
}
