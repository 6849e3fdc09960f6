package eltorito

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-iso9660/isoimage/ecma119"
	"github.com/go-iso9660/isoimage/filesrc"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/pipeline"
	"github.com/go-iso9660/isoimage/stream"
)

func buildBootImage(t *testing.T, media node.BootMediaType) *node.Image {
	t.Helper()
	img := node.New("BOOTVOL")
	root := img.Root()

	var content []byte
	switch media {
	case node.BootFloppy144:
		content = make([]byte, 1440*1024)
	default:
		content = bytes.Repeat([]byte{0xAB}, 8192)
	}
	bootFile := node.NewFile("isolinux.bin", 0o444, 0, 0, stream.NewMemoryStream(content))
	require.NoError(t, root.AsDir().Insert(bootFile))

	catalog := node.NewBootPlaceholder("boot.catalog")
	require.NoError(t, root.AsDir().Insert(catalog))

	img.Boot = &node.BootCatalog{
		BootImagePath:   "isolinux.bin",
		CatalogNodePath: "boot.catalog",
		Isolinux:        true,
		MediaType:       media,
		Bootable:        true,
	}
	return img
}

func buildPipeline(t *testing.T, img *node.Image) (*ecma119.Writer, *Writer, *pipeline.Context) {
	t.Helper()
	reg := filesrc.NewRegistry()
	ecmaW, err := ecma119.NewWriter(img, ecma119.DefaultOptions(), reg)
	require.NoError(t, err)

	eltW, err := NewWriter(ecmaW.Tree(), img, nil)
	require.NoError(t, err)
	ecmaW.BootContent = eltW.BootContent

	ctx := pipeline.NewContext(img, false, 0)
	require.NoError(t, eltW.ReserveExtents(ctx))
	require.NoError(t, ecmaW.ReserveExtents(ctx))

	fsW := filesrc.NewWriter(reg, nil)
	require.NoError(t, fsW.ReserveExtents(ctx))
	ctx.Publish("total_blocks", ctx.CurBlock())
	return ecmaW, eltW, ctx
}

func TestNewWriterRejectsMissingBootCatalog(t *testing.T) {
	img := node.New("NOBOOT")
	reg := filesrc.NewRegistry()
	ecmaW, err := ecma119.NewWriter(img, ecma119.DefaultOptions(), reg)
	require.NoError(t, err)
	_, err = NewWriter(ecmaW.Tree(), img, nil)
	require.Error(t, err)
}

func TestWriterEmitsBootRecordAndCatalog(t *testing.T) {
	img := buildBootImage(t, node.BootNoEmulation)
	ecmaW, eltW, ctx := buildPipeline(t, img)

	var vd bytes.Buffer
	require.NoError(t, eltW.WriteVolumeDescriptors(ctx, &vd))
	require.Equal(t, byte(0), vd.Bytes()[0])
	require.Equal(t, "CD001", string(vd.Bytes()[1:6]))
	require.Equal(t, bootRecordSystemID, string(bytes.TrimRight(vd.Bytes()[7:39], "\x00")))

	content, err := eltW.BootContent(eltW.catalog)
	require.NoError(t, err)
	require.Len(t, content, pipeline.BlockSize)
	require.Equal(t, byte(1), content[0]) // validation entry header id
	require.Equal(t, byte(0x55), content[30])
	require.Equal(t, byte(0xAA), content[31])
	require.Equal(t, byte(bootIndicatorBootable), content[32])

	var data bytes.Buffer
	require.NoError(t, ecmaW.WriteData(ctx, &data))
	require.Zero(t, data.Len()%pipeline.BlockSize)
}

func TestValidateBootImageRejectsWrongFloppySize(t *testing.T) {
	s := stream.NewMemoryStream(make([]byte, 100))
	_, err := validateBootImage(s, node.BootFloppy144)
	require.Error(t, err)
}

func TestValidateBootImageAcceptsExactFloppySize(t *testing.T) {
	s := stream.NewMemoryStream(make([]byte, 1440*1024))
	pt, err := validateBootImage(s, node.BootFloppy144)
	require.NoError(t, err)
	require.Zero(t, pt)
}

func TestValidateBootImageParsesHardDiskPartitionType(t *testing.T) {
	mbr := make([]byte, 512)
	mbr[446+4] = 0x0c // FAT32 LBA
	mbr[510], mbr[511] = 0x55, 0xAA
	s := stream.NewMemoryStream(mbr)
	pt, err := validateBootImage(s, node.BootHardDisk)
	require.NoError(t, err)
	require.Equal(t, byte(0x0c), pt)
}

func TestValidateBootImageRejectsMultiplePartitions(t *testing.T) {
	mbr := make([]byte, 512)
	mbr[446+4] = 0x0c
	mbr[446+16+4] = 0x07
	mbr[510], mbr[511] = 0x55, 0xAA
	s := stream.NewMemoryStream(mbr)
	_, err := validateBootImage(s, node.BootHardDisk)
	require.Error(t, err)
}

func TestSystemAreaStampsIsohybridMBRForNonHDMedia(t *testing.T) {
	img := buildBootImage(t, node.BootNoEmulation)
	_, eltW, ctx := buildPipeline(t, img)

	area, pad, err := eltW.SystemArea(ctx)
	require.NoError(t, err)
	require.Len(t, area, 512)
	require.Equal(t, byte(0x55), area[510])
	require.Equal(t, byte(0xAA), area[511])

	total, err := ctx.MustLookup("total_blocks")
	require.NoError(t, err)
	require.Zero(t, (total.(uint32)+pad)%isohybridCylinderBlocks, "padded image must span a whole number of pseudo-cylinders")
}

func TestSystemAreaSkipsHardDiskEmulation(t *testing.T) {
	mbr := make([]byte, 8192)
	mbr[446+4] = 0x0c
	mbr[510], mbr[511] = 0x55, 0xAA
	img := node.New("HDBOOT")
	root := img.Root()
	require.NoError(t, root.AsDir().Insert(node.NewFile("hd.img", 0o444, 0, 0, stream.NewMemoryStream(mbr))))
	require.NoError(t, root.AsDir().Insert(node.NewBootPlaceholder("boot.catalog")))
	img.Boot = &node.BootCatalog{
		BootImagePath:   "hd.img",
		CatalogNodePath: "boot.catalog",
		MediaType:       node.BootHardDisk,
		Bootable:        true,
	}
	_, eltW, ctx := buildPipeline(t, img)

	area, pad, err := eltW.SystemArea(ctx)
	require.NoError(t, err)
	require.Nil(t, area)
	require.Zero(t, pad)
}
