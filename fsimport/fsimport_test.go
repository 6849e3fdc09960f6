package fsimport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-iso9660/isoimage/fsource"
	"github.com/go-iso9660/isoimage/node"
)

func writeTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.tmp"), []byte("c"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("d"), 0o644))
}

func TestImportDirAppliesFilters(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir)

	img := node.New("TEST")
	b := New(fsource.NewOS(dir), Options{
		Excludes:   []string{"*.tmp"},
		SkipHidden: true,
	})
	require.NoError(t, b.ImportDir(img.Root(), "/"))

	root := img.Root().AsDir()
	_, hasKeep := root.Get("keep.txt")
	require.True(t, hasKeep)
	_, hasHidden := root.Get(".hidden")
	require.False(t, hasHidden)
	_, hasTmp := root.Get("skip.tmp")
	require.False(t, hasTmp)

	sub, ok := root.Get("sub")
	require.True(t, ok)
	require.Equal(t, node.KindDir, sub.Kind)
	_, hasNested := sub.AsDir().Get("nested.txt")
	require.True(t, hasNested)
}

func TestImportDirReportCancels(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir)

	img := node.New("TEST")
	seen := 0
	b := New(fsource.NewOS(dir), Options{
		Report: func(fsPath string, st fsource.Stat) int {
			seen++
			return -1 // cancel on first candidate
		},
	})
	require.NoError(t, b.ImportDir(img.Root(), "/"))
	require.Equal(t, 1, seen)
	require.Equal(t, 0, img.Root().AsDir().Len())
}

func TestReplacePolicyNeverKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("new"), 0o644))

	img := node.New("TEST")
	existing := node.NewFile("a.txt", 0o644, 0, 0, nil)
	require.NoError(t, img.Root().AsDir().Insert(existing))

	b := New(fsource.NewOS(dir), Options{Replace: ReplaceNever})
	require.NoError(t, b.ImportDir(img.Root(), "/"))

	got, ok := img.Root().AsDir().Get("a.txt")
	require.True(t, ok)
	require.Same(t, existing, got)
}

func TestReplacePolicyAlwaysReplaces(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("new"), 0o644))

	img := node.New("TEST")
	existing := node.NewFile("a.txt", 0o644, 0, 0, nil)
	require.NoError(t, img.Root().AsDir().Insert(existing))

	b := New(fsource.NewOS(dir), Options{Replace: ReplaceAlways})
	require.NoError(t, b.ImportDir(img.Root(), "/"))

	got, ok := img.Root().AsDir().Get("a.txt")
	require.True(t, ok)
	require.NotSame(t, existing, got)
}
