package fsource

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOSReaddirAndResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	fsys := NewOS(dir)

	names, err := fsys.Readdir("/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.txt", "sub"}, names)

	src, err := fsys.Resolve("/a.txt")
	require.NoError(t, err)

	st, err := src.Stat()
	require.NoError(t, err)
	require.False(t, st.IsDir)
	require.Equal(t, int64(5), st.Size)

	s, err := src.Open()
	require.NoError(t, err)
	require.True(t, s.IsRepeatable())
	require.NoError(t, s.Open())
	data, err := io.ReadAll(s)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
	require.NoError(t, s.Close())

	// repeatable: opening a second time yields the same bytes.
	require.NoError(t, s.Open())
	data2, err := io.ReadAll(s)
	require.NoError(t, err)
	require.Equal(t, data, data2)
	require.NoError(t, s.Close())
}

func TestOSFollowSymlinksPolicy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(dir, "target.txt"), filepath.Join(dir, "link.txt")))

	fsys := NewOS(dir)

	src, err := fsys.Resolve("/link.txt")
	require.NoError(t, err)
	st, err := src.Stat()
	require.NoError(t, err)
	require.True(t, st.IsLink, "default policy preserves the symlink")

	fsys.SetFollowSymlinks(true)
	src, err = fsys.Resolve("/link.txt")
	require.NoError(t, err)
	st, err = src.Stat()
	require.NoError(t, err)
	require.False(t, st.IsLink, "FollowSymlinks dereferences to the target's stat")
	require.Equal(t, int64(5), st.Size)
}

func TestOSResolveDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	fsys := NewOS(dir)
	src, err := fsys.Resolve("/sub")
	require.NoError(t, err)
	st, err := src.Stat()
	require.NoError(t, err)
	require.True(t, st.IsDir)
}
