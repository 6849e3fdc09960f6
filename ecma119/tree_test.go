package ecma119

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-iso9660/isoimage/filesrc"
	"github.com/go-iso9660/isoimage/isoerr"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/stream"
)

func mustInsert(t *testing.T, dir *node.Node, child *node.Node) {
	t.Helper()
	require.NoError(t, dir.AsDir().Insert(child))
}

func TestTranslateNameSanitizesAndForcesDot(t *testing.T) {
	opts := DefaultOptions()
	require.Equal(t, "README.", translateName("README", false, opts))
	require.Equal(t, "MYDIR", translateName("mydir", true, opts))
	require.Equal(t, "FOO_BAR.", translateName("foo bar", false, opts))
}

func TestTranslateNameAllowLowercase(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowLowercase = true
	require.Equal(t, "readme.", translateName("readme", false, opts))
}

func TestTranslateNameLevel1CapsStemAndExtensionIndependently(t *testing.T) {
	opts := DefaultOptions() // Level1

	// A 1-byte stem with a 4-byte extension fits in 12 bytes total but
	// is not valid Level 1 8.3: the extension alone must cap at 3.
	require.Equal(t, "A.DOC", translateName("A.DOCX", false, opts))

	// A 10-byte stem with a 1-byte extension also fits in 12 bytes
	// total but the stem alone must cap at 8.
	require.Equal(t, "ABCDEFGH.X", translateName("ABCDEFGHIJ.X", false, opts))
}

func TestTranslateNameLevel2KeepsCombinedBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.Level = Level2
	// Level 2/3 names are a single combined budget, not a stem/extension
	// split, so a short stem with a longer extension is untouched as
	// long as the total fits.
	require.Equal(t, "A.DOCX", translateName("A.DOCX", false, opts))
}

func TestNameChildrenManglesCollisions(t *testing.T) {
	opts := DefaultOptions()
	children := []*Node{
		{Name: "REPORT."},
		{Name: "REPORT."},
		{Name: "REPORT."},
	}
	require.NoError(t, nameChildren(children, opts))
	names := map[string]bool{}
	for _, c := range children {
		require.False(t, names[c.Name], "mangled names must be unique: %v", c.Name)
		names[c.Name] = true
	}
}

func TestNameChildrenReportsExhaustionInsteadOfLoopingForever(t *testing.T) {
	opts := DefaultOptions()
	opts.Level = Level3 // 31-char budget

	// A 29-char extension leaves only 2 bytes of budget for a 1-byte
	// stem plus suffix; the 11th colliding sibling needs a 2-digit
	// suffix ("10"), which no longer fits. A longer numeric suffix only
	// shrinks the remaining budget further, so this must be reported as
	// a build error instead of retried with a bigger counter.
	longExt := "." + strings.Repeat("X", 28)
	children := make([]*Node, 11)
	for i := range children {
		children[i] = &Node{Name: "A" + longExt}
	}

	err := nameChildren(children, opts)
	require.Error(t, err)
	require.ErrorIs(t, err, isoerr.ErrInvariant)
}

func TestMangleReportsExhaustionForLevel1StemBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.Level = Level1
	_, err := mangle("ABCDEFGH.TXT", 99999999, opts, false)
	require.Error(t, err)
	require.ErrorIs(t, err, isoerr.ErrInvariant)
}

func TestBuildTreeTranslatesAndSorts(t *testing.T) {
	img := node.New("TESTVOL")
	root := img.Root()

	mustInsert(t, root, node.NewFile("banana.txt", 0o644, 0, 0, stream.NewMemoryStream([]byte("b"))))
	mustInsert(t, root, node.NewFile("apple.txt", 0o644, 0, 0, stream.NewMemoryStream([]byte("a"))))
	mustInsert(t, root, node.NewDir("sub", 0o755, 0, 0))

	reg := filesrc.NewRegistry()
	tree, err := BuildTree(img, DefaultOptions(), reg)
	require.NoError(t, err)
	require.Len(t, tree.Root.Children, 3)

	require.Equal(t, "APPLE.TXT", tree.Root.Children[0].Name)
	require.Equal(t, "BANANA.TXT", tree.Root.Children[1].Name)
	require.Equal(t, "SUB", tree.Root.Children[2].Name)
}

func TestBuildTreeSkipsHiddenChildren(t *testing.T) {
	img := node.New("TESTVOL")
	root := img.Root()

	hidden := node.NewFile("secret.txt", 0o644, 0, 0, stream.NewMemoryStream([]byte("s")))
	hidden.Hide = node.HideECMA119
	mustInsert(t, root, hidden)
	mustInsert(t, root, node.NewFile("visible.txt", 0o644, 0, 0, stream.NewMemoryStream([]byte("v"))))

	reg := filesrc.NewRegistry()
	tree, err := BuildTree(img, DefaultOptions(), reg)
	require.NoError(t, err)
	require.Len(t, tree.Root.Children, 1)
	require.Equal(t, "VISIBLE.TXT", tree.Root.Children[0].Name)
}
