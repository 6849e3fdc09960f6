package ecma119

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-iso9660/isoimage/filesrc"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/pipeline"
	"github.com/go-iso9660/isoimage/stream"
)

func buildSmallImage(t *testing.T) *node.Image {
	t.Helper()
	img := node.New("TESTVOL")
	root := img.Root()
	mustInsert(t, root, node.NewFile("hello.txt", 0o644, 0, 0, stream.NewMemoryStream([]byte("hello world"))))
	sub := node.NewDir("docs", 0o755, 0, 0)
	mustInsert(t, root, sub)
	mustInsert(t, sub, node.NewFile("readme.txt", 0o644, 0, 0, stream.NewMemoryStream([]byte("read me"))))
	return img
}

func TestWriterReserveAndEmitDescriptors(t *testing.T) {
	img := buildSmallImage(t)
	reg := filesrc.NewRegistry()
	opts := DefaultOptions()
	opts.VolumeID = "TESTVOL"

	w, err := NewWriter(img, opts, reg)
	require.NoError(t, err)

	ctx := pipeline.NewContext(img, false, 0)
	require.NoError(t, w.ReserveExtents(ctx))
	require.Greater(t, w.tree.Root.Size, uint32(0))
	require.Greater(t, w.tree.Root.Block, uint32(0))

	ctx.Publish("total_blocks", ctx.CurBlock())

	var buf bytes.Buffer
	require.NoError(t, w.WriteVolumeDescriptors(ctx, &buf))
	require.Equal(t, pipeline.BlockSize, buf.Len())
	sector := buf.Bytes()
	require.Equal(t, byte(1), sector[0])
	require.Equal(t, "CD001", string(sector[1:6]))
}

func TestWriterWriteDataProducesSectorAlignedOutput(t *testing.T) {
	img := buildSmallImage(t)
	reg := filesrc.NewRegistry()
	w, err := NewWriter(img, DefaultOptions(), reg)
	require.NoError(t, err)

	ctx := pipeline.NewContext(img, false, 0)
	require.NoError(t, w.ReserveExtents(ctx))

	var buf bytes.Buffer
	require.NoError(t, w.WriteData(ctx, &buf))
	require.Zero(t, buf.Len()%pipeline.BlockSize, "writer output must be sector-aligned")
}
