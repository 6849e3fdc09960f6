package joliet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-iso9660/isoimage/filesrc"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/stream"
)

func mustInsert(t *testing.T, dir *node.Node, child *node.Node) {
	t.Helper()
	require.NoError(t, dir.AsDir().Insert(child))
}

func TestTranslateNamePreservesCaseAndLongNames(t *testing.T) {
	opts := DefaultOptions()
	name := translateName("My Report (Final).DOCX", opts)
	require.Equal(t, "My Report (Final).DOCX", name)
}

func TestTranslateNameReplacesForbiddenChars(t *testing.T) {
	opts := DefaultOptions()
	require.Equal(t, "a_b_c", translateName("a*b:c", opts))
}

func TestTranslateNameTruncatesToMaxChars(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxNameChars = 8
	require.Equal(t, "abcdefgh", translateName("abcdefghijklmnop", opts))
}

func TestBuildTreeSkipsSymlinksAndHiddenJolietNodes(t *testing.T) {
	img := node.New("TESTVOL")
	root := img.Root()

	mustInsert(t, root, node.NewSymlink("link", 0o777, 0, 0, "target"))
	hiddenFile := node.NewFile("hidden.bin", 0o644, 0, 0, stream.NewMemoryStream([]byte("x")))
	hiddenFile.Hide = node.HideJoliet
	mustInsert(t, root, hiddenFile)
	mustInsert(t, root, node.NewFile("Visible File.txt", 0o644, 0, 0, stream.NewMemoryStream([]byte("y"))))

	reg := filesrc.NewRegistry()
	tree, err := BuildTree(img, DefaultOptions(), reg)
	require.NoError(t, err)
	require.Len(t, tree.Root.Children, 1)
	require.Equal(t, "Visible File.txt", tree.Root.Children[0].Name)
}
