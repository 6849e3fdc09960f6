package eltorito

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-iso9660/isoimage/pipeline"
)

func TestIsohybridMBRRoundsToPseudoCylinder(t *testing.T) {
	// 100 blocks (2048-byte) falls short of one 512-block pseudo
	// cylinder (64 heads * 32 sectors * 512-byte sectors), so the image
	// must be padded up to exactly one cylinder's worth of blocks.
	mbr, pad := isohybridMBR(100, 0)
	require.Equal(t, uint32(isohybridCylinderBlocks-100), pad)

	part := mbr[mbrPartitionOffset : mbrPartitionOffset+mbrPartitionSize]
	sectors := binary.LittleEndian.Uint32(part[12:16])
	require.Equal(t, uint32(isohybridCylinderBlocks)*(pipeline.BlockSize/mbrSize), sectors)
}

func TestIsohybridMBRExactCylinderNeedsNoPadding(t *testing.T) {
	mbr, pad := isohybridMBR(isohybridCylinderBlocks, 0)
	require.Zero(t, pad)

	part := mbr[mbrPartitionOffset : mbrPartitionOffset+mbrPartitionSize]
	sectors := binary.LittleEndian.Uint32(part[12:16])
	require.Equal(t, uint32(isohybridCylinderBlocks)*(pipeline.BlockSize/mbrSize), sectors)
}

func TestIsohybridMBRRoundsUpPartialSecondCylinder(t *testing.T) {
	total := uint32(isohybridCylinderBlocks + 1)
	mbr, pad := isohybridMBR(total, 0)
	require.Equal(t, uint32(isohybridCylinderBlocks-1), pad)

	part := mbr[mbrPartitionOffset : mbrPartitionOffset+mbrPartitionSize]
	sectors := binary.LittleEndian.Uint32(part[12:16])
	require.Equal(t, uint32(2*isohybridCylinderBlocks)*(pipeline.BlockSize/mbrSize), sectors)
}
