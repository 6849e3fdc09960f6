// Package eltorito builds the El Torito boot catalog and Boot Record
// Volume Descriptor over an already-built ecma119.Tree (spec.md §4.6's
// El Torito support), plugging into ecma119.Writer via its BootContent
// hook the same way package rockridge plugs in via SystemUse.
//
// Grounded on original_source/src/eltorito.c/.h: the 32-byte
// Validation/Default Entry layouts are translated verbatim, and the
// checksum keeps write_validation_entry's invariant (the entry's
// 16-bit words sum to zero) over true word pairs; the catalog/boot-image
// integration with the writer pipeline is in scope, the bit-level
// bootloader payload inside the boot image itself is not (spec.md
// Non-goals).
package eltorito

import (
	"encoding/binary"

	"github.com/go-iso9660/isoimage/node"
)

// platformX86 is the only El Torito platform ID this package emits;
// PowerPC/Mac platform IDs are accepted input but carried through
// opaquely since spec.md scopes only the 80x86 catalog shape.
const platformX86 = 0

// entryValidation encodes El Torito 2.1's Validation Entry (32 bytes):
// header_id=1, platform_id, a 24-byte id string left blank, and a
// checksum chosen so the little-endian sum of every 16-bit word in the
// entry is zero, per write_validation_entry's invariant (the checksum
// field itself is computed last, while still zero).
func entryValidation(platformID byte) []byte {
	buf := make([]byte, 32)
	buf[0] = 1 // header ID
	buf[1] = platformID
	buf[30] = 0x55
	buf[31] = 0xAA

	var checksum uint16
	for i := 0; i < len(buf); i += 2 {
		checksum -= binary.LittleEndian.Uint16(buf[i : i+2])
	}
	binary.LittleEndian.PutUint16(buf[28:30], checksum)
	return buf
}

// bootIndicator values for a Default/Section Entry's first byte.
const (
	bootIndicatorNotBootable = 0x00
	bootIndicatorBootable    = 0x88
)

// mediaTypeByte maps node.BootMediaType onto El Torito 2.2's
// boot_media_type nibble.
func mediaTypeByte(m node.BootMediaType) byte {
	switch m {
	case node.BootFloppy12:
		return 1
	case node.BootFloppy144:
		return 2
	case node.BootFloppy288:
		return 3
	case node.BootHardDisk:
		return 4
	default:
		return 0 // no emulation
	}
}

// entryDefault encodes El Torito 2.2's Default (Initial) Entry (32
// bytes): bootable flag, emulation type, load segment, the HD-emulation
// partition type (system_type), sector count, and the boot image's LBA.
func entryDefault(bootable bool, media node.BootMediaType, loadSeg, secCount uint16, systemType byte, block uint32) []byte {
	buf := make([]byte, 32)
	if bootable {
		buf[0] = bootIndicatorBootable
	} else {
		buf[0] = bootIndicatorNotBootable
	}
	buf[1] = mediaTypeByte(media)
	binary.LittleEndian.PutUint16(buf[2:4], loadSeg)
	buf[4] = systemType
	binary.LittleEndian.PutUint16(buf[6:8], secCount)
	binary.LittleEndian.PutUint32(buf[8:12], block)
	return buf
}

// bootRecordSystemID is the Boot Record Volume Descriptor's fixed
// 32-byte boot system identifier (El Torito 2.0 §1.5).
const bootRecordSystemID = "EL TORITO SPECIFICATION"

// bootRecordVolumeDescriptor encodes the Boot Record Volume Descriptor
// (ECMA-119 §8.2 descriptor type 0): boot system identifier plus the
// catalog's own LBA at offset 71.
func bootRecordVolumeDescriptor(catalogBlock uint32) []byte {
	sector := make([]byte, 2048)
	sector[0] = 0 // boot record indicator
	copy(sector[1:6], "CD001")
	sector[6] = 1
	copy(sector[7:39], padRight(bootRecordSystemID, 32))
	// bytes 39:71 (boot identifier) are left zero: this catalog carries
	// no vendor-specific payload there.
	binary.LittleEndian.PutUint32(sector[71:75], catalogBlock)
	return sector
}

func padRight(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}
