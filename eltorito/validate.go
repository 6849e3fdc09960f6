package eltorito

import (
	"fmt"
	"io"

	"github.com/go-iso9660/isoimage/isoerr"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/stream"
)

// floppySizes maps each floppy emulation mode to the exact byte count
// its image must have, mirroring create_image's hard equality check
// (no floppy emulation image may be short or padded).
var floppySizes = map[node.BootMediaType]int64{
	node.BootFloppy12:  1200 * 1024,
	node.BootFloppy144: 1440 * 1024,
	node.BootFloppy288: 2880 * 1024,
}

// mbrSig1Offset, mbrSig2Offset and friends locate the fields create_image reads
// out of a hard-disk-emulation boot image's embedded MBR.
const (
	mbrSize            = 512
	mbrPartitionOffset = 446
	mbrPartitionSize   = 16
	mbrPartitionCount  = 4
	mbrSig1Offset      = 510
	mbrSig2Offset      = 511
)

// validateBootImage enforces the El Torito constraints create_image
// checks before accepting a boot image: floppy emulation requires an
// exact size match, hard-disk emulation requires a valid MBR signature
// with exactly one non-zero partition entry (whose type becomes the
// catalog's system_type byte).
func validateBootImage(content stream.Stream, media node.BootMediaType) (partitionType byte, err error) {
	if want, ok := floppySizes[media]; ok {
		if content.Size() != want {
			return 0, fmt.Errorf("%w: floppy emulation image is %d bytes, want exactly %d", isoerr.ErrFormat, content.Size(), want)
		}
		return 0, nil
	}
	if media != node.BootHardDisk {
		return 0, nil
	}

	if content.Size() < mbrSize {
		return 0, fmt.Errorf("%w: hard disk emulation image is %d bytes, too small for an MBR", isoerr.ErrFormat, content.Size())
	}
	if err := content.Open(); err != nil {
		return 0, fmt.Errorf("eltorito: opening boot image to read MBR: %w", err)
	}
	defer content.Close()

	buf := make([]byte, mbrSize)
	if _, err := io.ReadFull(content, buf); err != nil {
		return 0, fmt.Errorf("eltorito: reading MBR: %w", err)
	}
	if buf[mbrSig1Offset] != 0x55 || buf[mbrSig2Offset] != 0xAA {
		return 0, fmt.Errorf("%w: hard disk emulation image has no valid MBR signature", isoerr.ErrFormat)
	}

	found := false
	for i := 0; i < mbrPartitionCount; i++ {
		entry := buf[mbrPartitionOffset+i*mbrPartitionSize : mbrPartitionOffset+(i+1)*mbrPartitionSize]
		t := entry[4]
		if t == 0 {
			continue
		}
		if found {
			return 0, fmt.Errorf("%w: hard disk emulation image's MBR has more than one non-zero partition", isoerr.ErrFormat)
		}
		found = true
		partitionType = t
	}
	if !found {
		return 0, fmt.Errorf("%w: hard disk emulation image's MBR has no non-zero partition", isoerr.ErrFormat)
	}
	return partitionType, nil
}
