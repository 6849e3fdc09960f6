package ecma119

import (
	"encoding/binary"
	"time"
)

// drFixedPartSize is the Directory Record size excluding the
// identifier field (ECMA-119 §9.1).
const drFixedPartSize = 33

// identifierFor returns the on-disk identifier bytes for a directory
// entry named name (self/parent use the single 0x00/0x01 bytes;
// everything else gets the translated name plus ";1" unless
// OmitVersionNumbers is set), generalizing the teacher's
// getDRIdentifierBytes to drop the Joliet branch (joliet.go owns that
// encoding separately).
func identifierFor(name string, isSelf, isParent bool, isDir bool, opts Options) []byte {
	if isSelf {
		return []byte{0x00}
	}
	if isParent {
		return []byte{0x01}
	}
	if isDir || opts.OmitVersionNumbers {
		return []byte(name)
	}
	return []byte(name + ";1")
}

// identifierPad reports whether ECMA-119 §9.1.12 requires a padding
// byte between the identifier and the System Use field: exactly when
// the identifier's own length is even.
func identifierPad(identifier []byte) int {
	if len(identifier)%2 == 0 {
		return 1
	}
	return 0
}

// drSize returns the padded byte length a directory record with this
// identifier and System Use field will occupy (ECMA-119 §9.1.13: the
// whole record length must be even).
func drSize(identifier []byte, sua []byte) int {
	n := drFixedPartSize + len(identifier) + identifierPad(identifier) + len(sua)
	if n%2 != 0 {
		n++
	}
	return n
}

// marshalRecord builds one ECMA-119 §9.1 Directory Record, appending
// sua (Rock Ridge/SUSP fields, nil when Rock Ridge is off) after the
// identifier and its padding byte.
func marshalRecord(lba, size uint32, identifier []byte, isDir, hidden bool, t time.Time, sua []byte) []byte {
	buf := make([]byte, drSize(identifier, sua))
	buf[0] = byte(len(buf))
	buf[1] = 0 // extended attribute record length, unused

	binary.LittleEndian.PutUint32(buf[2:6], lba)
	binary.BigEndian.PutUint32(buf[6:10], lba)
	binary.LittleEndian.PutUint32(buf[10:14], size)
	binary.BigEndian.PutUint32(buf[14:18], size)

	if t.IsZero() {
		t = time.Now().UTC()
	}
	buf[18] = byte(t.Year() - 1900)
	buf[19] = byte(t.Month())
	buf[20] = byte(t.Day())
	buf[21] = byte(t.Hour())
	buf[22] = byte(t.Minute())
	buf[23] = byte(t.Second())
	buf[24] = 0 // GMT offset, unknown

	var flags byte
	if isDir {
		flags |= 0x02
	}
	if hidden {
		flags |= 0x01
	}
	buf[25] = flags

	buf[26] = 0 // file unit size, no interleaving
	buf[27] = 0 // interleave gap size
	binary.LittleEndian.PutUint16(buf[28:30], 1)
	binary.BigEndian.PutUint16(buf[30:32], 1)

	buf[32] = byte(len(identifier))
	pos := 33 + copy(buf[33:], identifier)
	pos += identifierPad(identifier)
	copy(buf[pos:], sua)
	return buf
}

// EntrySlot identifies which directory-record role a SystemUseFunc
// call is filling in, since Rock Ridge attaches different SUSP
// entries to a node's own "." record than to its appearance as a
// child of its parent (spec.md §4.3/§4.6).
type EntrySlot int

const (
	SlotNormal EntrySlot = iota // the node's entry within its parent's listing
	SlotSelf                    // the directory's own "." entry
	SlotParent                  // a directory's ".." entry (describes the parent)
)

// SystemUseFunc supplies the Rock Ridge/SUSP bytes for one directory
// record slot; nil when Rock Ridge is disabled.
type SystemUseFunc func(target *Node, slot EntrySlot) []byte

// directoryListing renders one directory's full ". .. children" record
// stream, generalizing the teacher's createDirectoryListing to operate
// on an ecma119.Node tree where self/parent block+size were already
// resolved in ReserveExtents.
func directoryListing(n *Node, opts Options, sysUse SystemUseFunc) []byte {
	var out []byte
	// add appends one record, first zero-filling to the next sector when
	// the record would otherwise straddle a sector boundary (ECMA-119
	// §6.8.1.1).
	add := func(rec []byte) {
		if room := sectorSize - len(out)%sectorSize; len(rec) > room {
			out = append(out, make([]byte, room)...)
		}
		out = append(out, rec...)
	}

	selfID := identifierFor("", true, false, true, opts)
	add(marshalRecord(n.Block, n.Size, selfID, true, false, modTimeOf(n), callSysUse(sysUse, n, SlotSelf)))

	parent := n
	if n.Parent != nil {
		parent = n.Parent
	}
	parentID := identifierFor("", false, true, true, opts)
	add(marshalRecord(parent.Block, parent.Size, parentID, true, false, modTimeOf(parent), callSysUse(sysUse, n, SlotParent)))

	for _, c := range n.Children {
		id := identifierFor(c.Name, false, false, isDirLike(c.Kind), opts)
		lba, size := extentOf(c)
		hidden := c.Logical != nil && c.Logical.Hide != 0
		add(marshalRecord(lba, size, id, isDirLike(c.Kind), hidden, modTimeOf(c), callSysUse(sysUse, c, SlotNormal)))
	}
	return out
}

func callSysUse(f SystemUseFunc, n *Node, slot EntrySlot) []byte {
	if f == nil {
		return nil
	}
	return f(n, slot)
}

func extentOf(n *Node) (uint32, uint32) {
	switch {
	case isDirLike(n.Kind):
		return n.Block, n.Size
	case n.Kind == KindBoot:
		return n.Block, n.Size
	case n.Kind == KindFile:
		if n.File == nil {
			return 0, 0
		}
		return n.File.Block, uint32(n.File.Content.Size())
	default:
		return 0, 0
	}
}

func modTimeOf(n *Node) time.Time {
	if n.Logical == nil {
		return time.Time{}
	}
	return n.Logical.MTime
}

// pathTableRecord marshals one ECMA-119 §9.4 Path Table Record for
// directory n, in the little- or big-endian form selected by le.
func pathTableRecord(n *Node, le bool) []byte {
	name := n.Name
	if n.Parent == nil {
		name = "\x00"
	}
	nameLen := len(name)
	recLen := 8 + nameLen
	if nameLen%2 != 0 {
		recLen++
	}
	buf := make([]byte, recLen)
	buf[0] = byte(nameLen)
	buf[1] = 0 // extended attribute record length

	parentNum := uint16(1)
	if n.Parent != nil {
		parentNum = n.Parent.PathTableNum
	}

	if le {
		binary.LittleEndian.PutUint32(buf[2:6], n.Block)
		binary.LittleEndian.PutUint16(buf[6:8], parentNum)
	} else {
		binary.BigEndian.PutUint32(buf[2:6], n.Block)
		binary.BigEndian.PutUint16(buf[6:8], parentNum)
	}
	copy(buf[8:], name)
	return buf
}
