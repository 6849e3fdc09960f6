package rockridge

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-iso9660/isoimage/ecma119"
	"github.com/go-iso9660/isoimage/filesrc"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/pipeline"
	"github.com/go-iso9660/isoimage/stream"
)

func mustInsert(t *testing.T, dir *node.Node, child *node.Node) {
	t.Helper()
	require.NoError(t, dir.AsDir().Insert(child))
}

func buildRRImage(t *testing.T) *node.Image {
	t.Helper()
	img := node.New("TESTVOL")
	root := img.Root()
	mustInsert(t, root, node.NewFile("hello-there.txt", 0o644, 1000, 1000, stream.NewMemoryStream([]byte("hello world"))))
	mustInsert(t, root, node.NewSymlink("a-link", 0o777, 1000, 1000, "hello-there.txt"))
	sub := node.NewDir("a subdirectory with a long name", 0o755, 1000, 1000)
	mustInsert(t, root, sub)
	mustInsert(t, sub, node.NewFile("nested file.txt", 0o644, 1000, 1000, stream.NewMemoryStream([]byte("nested"))))
	return img
}

func TestWriterReservesContinuationAreaForER(t *testing.T) {
	img := buildRRImage(t)
	reg := filesrc.NewRegistry()
	opts := ecma119.DefaultOptions()
	opts.RockRidge = true

	ecmaW, err := ecma119.NewWriter(img, opts, reg)
	require.NoError(t, err)

	rrW := NewWriter(ecmaW.Tree(), nil)
	ecmaW.SystemUse = rrW.SystemUse

	ctx := pipeline.NewContext(img, false, 0)
	require.NoError(t, rrW.ReserveExtents(ctx))
	require.Greater(t, len(rrW.ceContent), 0)
	require.Greater(t, rrW.ceBlock, uint32(0))

	require.NoError(t, ecmaW.ReserveExtents(ctx))
	require.Greater(t, ecmaW.Tree().Root.Size, uint32(0))
}

func TestSystemUseEmitsNamedEntriesForFile(t *testing.T) {
	img := buildRRImage(t)
	reg := filesrc.NewRegistry()
	opts := ecma119.DefaultOptions()
	opts.RockRidge = true

	ecmaW, err := ecma119.NewWriter(img, opts, reg)
	require.NoError(t, err)
	rrW := NewWriter(ecmaW.Tree(), nil)
	ecmaW.SystemUse = rrW.SystemUse

	ctx := pipeline.NewContext(img, false, 0)
	require.NoError(t, rrW.ReserveExtents(ctx))
	require.NoError(t, ecmaW.ReserveExtents(ctx))
	ctx.Publish("total_blocks", ctx.CurBlock())

	var buf bytes.Buffer
	require.NoError(t, rrW.WriteData(ctx, &buf))
	require.Zero(t, buf.Len()%pipeline.BlockSize)

	var child *ecma119.Node
	for _, c := range ecmaW.Tree().Root.Children {
		if c.Logical != nil && c.Logical.Name == "hello-there.txt" {
			child = c
		}
	}
	require.NotNil(t, child)

	entries := rrW.SystemUse(child, ecma119.SlotNormal)
	require.Contains(t, string(entries), "PX")
	require.Contains(t, string(entries), "NM")
	require.Contains(t, string(entries), "hello-there.txt")
}

func TestBuildSLEntriesSplitsLongTargets(t *testing.T) {
	comps := splitSymlinkTarget(strings.Repeat("a/b/../very/deeply/nested/path/that/keeps/going/and/going/and/going/and/going/and/going/and/going/and/going/and/going/", 3))
	entries := buildSLEntries(comps)
	require.NotEmpty(t, entries)
	require.Greater(t, len(entries), 1)
	for _, e := range entries {
		require.LessOrEqual(t, len(e), 255)
	}
}
