package filesrc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/pipeline"
	"github.com/go-iso9660/isoimage/stream"
)

func TestWriterReserveAndWriteData(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.GetOrCreate(stream.NewMemoryStream([]byte("hello")), 0, false)
	require.NoError(t, err)
	b, err := reg.GetOrCreate(stream.NewMemoryStream([]byte("world!!")), 0, false)
	require.NoError(t, err)

	w := NewWriter(reg, nil)
	img := node.New("TESTVOL")
	ctx := pipeline.NewContext(img, false, 0)
	startBlock := ctx.CurBlock()

	require.NoError(t, w.ReserveExtents(ctx))
	require.Greater(t, a.Block, uint32(0))
	require.GreaterOrEqual(t, b.Block, a.Block)
	require.Greater(t, ctx.CurBlock(), startBlock)

	var buf bytes.Buffer
	require.NoError(t, w.WriteData(ctx, &buf))
	require.Zero(t, buf.Len()%pipeline.BlockSize)
}
