package eltorito

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-iso9660/isoimage/pipeline"
	"github.com/go-iso9660/isoimage/stream"
)

// errReader yields err on every Read, letting isolinuxPatchFilter
// report a read failure through the stream.FilterFunc signature (which
// carries no error return of its own).
type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// isolinuxPatchFilter returns a stream.FilterFunc that stamps the
// 56-byte boot information table isolinux images expect at file offset
// 8 (original_source/src/eltorito.c's struct boot_info_table: bi_pvd,
// bi_file, bi_length, bi_csum, then 40 reserved bytes), reading the
// boot file's own LBA lazily at Open time so the patch reflects
// whatever block filesrc.Writer assigns in pass 1.
//
// bi_csum follows isolinux's own documented algorithm (the 32-bit sum
// of every little-endian word in the file from offset 64 onward):
// original_source carries no checksum routine for this table, only for
// the Validation Entry, so this is this package's own grounding for
// that one field.
func isolinuxPatchFilter(pvdBlock, fileBlock func() uint32) stream.FilterFunc {
	return func(src io.Reader) io.Reader {
		data, err := io.ReadAll(src)
		if err != nil {
			return errReader{err}
		}
		if len(data) < 64 {
			return bytes.NewReader(data)
		}

		binary.LittleEndian.PutUint32(data[8:12], pvdBlock())
		binary.LittleEndian.PutUint32(data[12:16], fileBlock())
		binary.LittleEndian.PutUint32(data[16:20], uint32(len(data)))
		for i := 20; i < 64; i++ {
			data[i] = 0
		}

		var checksum uint32
		for i := 64; i+4 <= len(data); i += 4 {
			checksum += binary.LittleEndian.Uint32(data[i : i+4])
		}
		binary.LittleEndian.PutUint32(data[20:24], checksum)

		return bytes.NewReader(data)
	}
}

// isohybridHeads and isohybridSectors are the fixed CHS geometry
// make_isohybrid_mbr.c assumes (static int h = 64, s = 32), used only
// to round the image up to a whole number of pseudo-cylinders.
const (
	isohybridHeads   = 64
	isohybridSectors = 32
)

// isohybridCylinderBlocks is one pseudo-cylinder (h*s*512 bytes) in
// 2048-byte blocks: 64*32*512/2048 = 512.
const isohybridCylinderBlocks = isohybridHeads * isohybridSectors * mbrSize / pipeline.BlockSize

// isohybridMBR stamps the 512-byte "hard_disc_mbr" (original_source's
// struct hard_disc_mbr) over the image's first sector so BIOSes that
// only know how to boot off an MBR-partitioned disk can still boot the
// ISO directly from a USB stick. One primary partition covers the
// whole image starting at sector 0; CHS fields are left zero, the
// simplification every isohybrid-lite implementation (including
// create_image's own non-exhaustive handling) makes since any modern
// BIOS reads the LBA fields instead.
//
// make_isohybrid_mbr.c rounds the image up to a whole pseudo-cylinder
// (cylsize = h*s*512) before computing the partition's sector count,
// and requires that many blocks actually get written as the ISO 9660
// image; isohybridMBR returns the extra zero blocks the caller must
// pad the image out to, alongside the stamped MBR.
func isohybridMBR(totalBlocks uint32, partitionType byte) ([]byte, uint32) {
	mbr := make([]byte, mbrSize)
	if partitionType == 0 {
		partitionType = 0xCD // "ISO 9660" partition type some hybrid tools use
	}

	paddedBlocks := totalBlocks
	if r := paddedBlocks % isohybridCylinderBlocks; r != 0 {
		paddedBlocks += isohybridCylinderBlocks - r
	}
	padBlocks := paddedBlocks - totalBlocks

	part := mbr[mbrPartitionOffset : mbrPartitionOffset+mbrPartitionSize]
	part[0] = 0x80 // boot indicator: active
	part[4] = partitionType
	sectors := paddedBlocks * (pipeline.BlockSize / mbrSize)
	binary.LittleEndian.PutUint32(part[8:12], 0)
	binary.LittleEndian.PutUint32(part[12:16], sectors)

	mbr[mbrSig1Offset] = 0x55
	mbr[mbrSig2Offset] = 0xAA
	return mbr, padBlocks
}
