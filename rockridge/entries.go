// Package rockridge encodes RRIP/SUSP System Use entries (PX, TF, NM,
// SL, PN, CL, PL, RE, CE, SP, ER) and AAIP "AA" attribute entries over
// an already-built ecma119.Tree, supplying the SUA bytes ecma119.Writer
// appends to each Directory Record via its SystemUse hook.
//
// Grounded on original_source/src/rockridge.c's rrip_add_* family: the
// byte layouts below (field offsets, the 44/26/20/12/4/28/7/182 fixed
// sizes) are copied from that file's malloc sizes and iso_bb/iso_datetime_7
// packing, translated into Go's encoding/binary instead of the manual
// byte-doubling iso_bb helper.
package rockridge

import (
	"encoding/binary"
	"strings"
	"time"
)

// bothOrder writes a little-endian, then big-endian, 4-byte encoding of
// v (ECMA-119's "both byte orders" convention, the iso_bb helper).
func bothOrder(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], v)
	binary.BigEndian.PutUint32(buf[4:8], v)
}

func susp(sig [2]byte, body []byte) []byte {
	out := make([]byte, 4+len(body))
	out[0], out[1] = sig[0], sig[1]
	out[2] = byte(len(out))
	out[3] = 1 // version
	copy(out[4:], body)
	return out
}

// entryPX encodes RRIP 4.1.1: POSIX mode/nlink/uid/gid/inode (44 bytes).
func entryPX(mode, nlink, uid, gid, ino uint32) []byte {
	body := make([]byte, 40)
	bothOrder(body[0:8], mode)
	bothOrder(body[8:16], nlink)
	bothOrder(body[16:24], uid)
	bothOrder(body[24:32], gid)
	bothOrder(body[32:40], ino)
	return susp([2]byte{'P', 'X'}, body)
}

func datetime7(t time.Time) []byte {
	b := make([]byte, 7)
	if t.IsZero() {
		return b
	}
	u := t.UTC()
	b[0] = byte(u.Year() - 1900)
	b[1] = byte(u.Month())
	b[2] = byte(u.Day())
	b[3] = byte(u.Hour())
	b[4] = byte(u.Minute())
	b[5] = byte(u.Second())
	b[6] = 0 // GMT offset, unknown
	return b
}

// entryTF encodes RRIP 4.1.6: modify/access/change timestamps (26 bytes).
func entryTF(mtime, atime, ctime time.Time) []byte {
	body := make([]byte, 1+3*7)
	body[0] = (1 << 1) | (1 << 2) | (1 << 3) // MODIFY | ACCESS | ATTRIBUTES present
	copy(body[1:8], datetime7(mtime))
	copy(body[8:15], datetime7(atime))
	copy(body[15:22], datetime7(ctime))
	return susp([2]byte{'T', 'F'}, body)
}

// entryPN encodes RRIP 4.1.2: a device's major/minor pair (20 bytes).
func entryPN(devHigh, devLow uint32) []byte {
	body := make([]byte, 16)
	bothOrder(body[0:8], devHigh)
	bothOrder(body[8:16], devLow)
	return susp([2]byte{'P', 'N'}, body)
}

// entryPL encodes RRIP 4.1.5.2: the real parent's block, written into
// the relocated directory's own ".." entry (12 bytes).
func entryPL(realParentBlock uint32) []byte {
	body := make([]byte, 8)
	bothOrder(body, realParentBlock)
	return susp([2]byte{'P', 'L'}, body)
}

// entryCL encodes RRIP 4.1.5.1: the new block of a directory that was
// relocated, written into the placeholder left at its old position
// (12 bytes).
func entryCL(realMeBlock uint32) []byte {
	body := make([]byte, 8)
	bothOrder(body, realMeBlock)
	return susp([2]byte{'C', 'L'}, body)
}

// entryRE marks a relocated directory's own entry under RR_MOVED
// (4 bytes, no payload).
func entryRE() []byte {
	return susp([2]byte{'R', 'E'}, nil)
}

// entryCE points at a chunk of the Continuation Area (28 bytes).
func entryCE(ceBlock, ceOffset, ceLen uint32) []byte {
	body := make([]byte, 24)
	bothOrder(body[0:8], ceBlock)
	bothOrder(body[8:16], ceOffset)
	bothOrder(body[16:24], ceLen)
	return susp([2]byte{'C', 'E'}, body)
}

// entrySP marks the root's "." entry as the start of SUSP extensions
// (SUSP 5.3, 7 bytes).
func entrySP() []byte {
	return susp([2]byte{'S', 'P'}, []byte{0xbe, 0xef, 0})
}

// ieee1282Name/ieee1282Desc/ieee1282Source are the identification
// strings RRIP 1.12 registers for the IEEE P1282 Rock Ridge protocol,
// copied verbatim from rrip_add_ER so readers can verify against a
// real Rock Ridge disc.
const (
	ieee1282Name   = "IEEE_1282"
	ieee1282Desc   = "THE IEEE 1282 PROTOCOL PROVIDES SUPPORT FOR POSIX FILE SYSTEM SEMANTICS."
	ieee1282Source = "PLEASE CONTACT THE IEEE STANDARDS DEPARTMENT, PISCATAWAY, NJ, USA FOR THE 1282 SPECIFICATION."
)

// entryER identifies the Rock Ridge extension (SUSP 5.5, 182 bytes).
// Always Continuation-Area resident in practice, since it never fits
// alongside PX/TF/NM in the root's "." entry.
func entryER() []byte {
	body := make([]byte, 178)
	body[0] = byte(len(ieee1282Name))
	body[1] = byte(len(ieee1282Desc))
	body[2] = byte(len(ieee1282Source))
	body[3] = 1 // extension version
	copy(body[4:], ieee1282Name)
	copy(body[4+len(ieee1282Name):], ieee1282Desc)
	copy(body[4+len(ieee1282Name)+len(ieee1282Desc):], ieee1282Source)
	return susp([2]byte{'E', 'R'}, body)
}

const nmContinue = 1 << 0

// entryNM encodes RRIP 4.1.4: the POSIX alternate name (5+len(name) bytes).
func entryNM(name string, continued bool) []byte {
	body := make([]byte, 1+len(name))
	if continued {
		body[0] = nmContinue
	}
	copy(body[1:], name)
	return susp([2]byte{'N', 'M'}, body)
}

// maxNMChunk is the longest name chunk a single NM entry can hold: a
// SUSP entry's length byte caps it at 255, minus the 4-byte signature
// header and 1-byte NM flags field.
const maxNMChunk = 250

// buildNMEntries chunks name into one or more NM entries when it
// exceeds maxNMChunk, setting CONTINUE on every entry but the last
// (RRIP 4.1.4), the same CONTINUE-chaining rrip_add_NM uses for a
// single oversized name.
func buildNMEntries(name string) [][]byte {
	if len(name) <= maxNMChunk {
		return [][]byte{entryNM(name, false)}
	}
	var entries [][]byte
	for len(name) > maxNMChunk {
		entries = append(entries, entryNM(name[:maxNMChunk], true))
		name = name[maxNMChunk:]
	}
	entries = append(entries, entryNM(name, false))
	return entries
}

// slComponent is one path segment of a symlink target, RRIP 4.1.3.1.
type slComponent struct {
	flags byte
	text  string
}

const (
	slContinue byte = 1 << 0
	slCurrent  byte = 1 << 1
	slParent   byte = 1 << 2
	slRoot     byte = 1 << 3
)

// splitSymlinkTarget decomposes a symlink's raw target into RRIP
// components, collapsing "." and ".." segments to their flag form the
// way rrip_calc_len/rrip_add_SL's caller does.
func splitSymlinkTarget(target string) []slComponent {
	var comps []slComponent
	parts := strings.Split(target, "/")
	for i, p := range parts {
		if p == "" {
			if i == 0 && len(parts) > 1 {
				comps = append(comps, slComponent{flags: slRoot})
			}
			continue
		}
		switch p {
		case ".":
			comps = append(comps, slComponent{flags: slCurrent})
		case "..":
			comps = append(comps, slComponent{flags: slParent})
		default:
			comps = append(comps, slComponent{text: p})
		}
	}
	return comps
}

// buildSLEntries packs components into one or more SL entries, each
// capped at 255 bytes total (RRIP 4.1.3), splitting across entries with
// the CONTINUE flag set on every entry but the last. This is a
// simplification of rrip_calc_len/rrip_add_SL's byte-exact splitting:
// components never straddle two entries here, so a single component
// longer than 248 bytes (pathologically long path segment) is not
// supported and is truncated instead of split across entries.
func buildSLEntries(comps []slComponent) [][]byte {
	var entries [][]byte
	var cur []byte
	flush := func(continued bool) {
		flags := byte(0)
		if continued {
			flags = 1
		}
		body := append([]byte{flags}, cur...)
		entries = append(entries, susp([2]byte{'S', 'L'}, body))
		cur = nil
	}
	for _, c := range comps {
		text := c.text
		if len(text) > 248 {
			text = text[:248]
		}
		compLen := 2 + len(text)
		if len(cur)+compLen > 250 { // 255 minus the 4-byte SUSP header and this entry's flags byte
			flush(true)
		}
		cur = append(cur, c.flags, byte(len(text)))
		cur = append(cur, text...)
	}
	flush(false)
	return entries
}

func joinEntries(entries [][]byte) []byte {
	var out []byte
	for _, e := range entries {
		out = append(out, e...)
	}
	return out
}
