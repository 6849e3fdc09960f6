package joliet

import (
	"encoding/binary"
	"time"
)

const drFixedPartSize = 33

// identifierFor returns the on-disk Joliet identifier: self/parent use
// the single 0x00/0x01 byte exactly like ECMA-119, everything else is
// the UCS-2BE encoded name (Joliet carries no version-number
// convention the way ECMA-119 does).
func identifierFor(name string, isSelf, isParent bool) []byte {
	switch {
	case isSelf:
		return []byte{0x00}
	case isParent:
		return []byte{0x01}
	default:
		return encodeUTF16BE(name)
	}
}

func drSize(identifier []byte) int {
	n := drFixedPartSize + len(identifier)
	if n%2 != 0 {
		n++
	}
	return n
}

func marshalRecord(lba, size uint32, identifier []byte, isDir, hidden bool, t time.Time) []byte {
	buf := make([]byte, drSize(identifier))
	buf[0] = byte(len(buf))
	buf[1] = 0

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
	buf[24] = 0

	var flags byte
	if isDir {
		flags |= 0x02
	}
	if hidden {
		flags |= 0x01
	}
	buf[25] = flags

	buf[26] = 0
	buf[27] = 0
	binary.LittleEndian.PutUint16(buf[28:30], 1)
	binary.BigEndian.PutUint16(buf[30:32], 1)

	buf[32] = byte(len(identifier))
	copy(buf[33:], identifier)
	return buf
}

// directoryListing renders one directory's ". .. children" Joliet
// record stream, parallel to ecma119's directoryListing.
func directoryListing(n *Node) []byte {
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

	add(marshalRecord(n.Block, n.Size, identifierFor("", true, false), true, false, modTimeOf(n)))

	parent := n
	if n.Parent != nil {
		parent = n.Parent
	}
	add(marshalRecord(parent.Block, parent.Size, identifierFor("", false, true), true, false, modTimeOf(parent)))

	for _, c := range n.Children {
		lba, size := extentOf(c)
		hidden := c.Logical != nil && c.Logical.Hide != 0
		add(marshalRecord(lba, size, identifierFor(c.Name, false, false), c.Kind == KindDir, hidden, modTimeOf(c)))
	}
	return out
}

func extentOf(n *Node) (uint32, uint32) {
	switch n.Kind {
	case KindDir:
		return n.Block, n.Size
	case KindFile:
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

// pathTableRecord marshals one ECMA-119 §9.4 Path Table Record for a
// Joliet directory, identical wire layout to ecma119's own but keyed
// by the same UCS-2BE identifiers as the Joliet directory records
// (genisoimage does so and readers expect it); the root keeps the
// single 0x00 byte.
func pathTableRecord(n *Node, le bool) []byte {
	name := n.Name
	identifier := encodeUTF16BE(name)
	if n.Parent == nil {
		identifier = []byte{0x00}
	}
	nameLen := len(identifier)
	recLen := 8 + nameLen
	if nameLen%2 != 0 {
		recLen++
	}
	buf := make([]byte, recLen)
	buf[0] = byte(nameLen)
	buf[1] = 0

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
	copy(buf[8:], identifier)
	return buf
}
