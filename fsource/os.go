package fsource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-iso9660/isoimage/stream"
)

// OS is the local-filesystem FileSystem, the default input side
// fsimport walks (iso_tree_add_dir_rec's filesystem in spec.md §4.2).
// Root is the directory on disk the logical tree's root maps to.
type OS struct {
	Root string

	// FollowSymlinks makes Stat dereference a symlink and report the
	// target's info instead of the link itself (fsimport.Options'
	// FollowSymlinks policy, spec.md §4.1 "stat it (follow or not per
	// policy)"). SetFollowSymlinks lets fsimport configure this
	// without fsource.FileSystem itself needing to carry the option.
	FollowSymlinks bool
}

// NewOS anchors an OS filesystem at root.
func NewOS(root string) *OS {
	return &OS{Root: root}
}

// SetFollowSymlinks implements fsimport's optional symlinkPolicy hook.
func (o *OS) SetFollowSymlinks(follow bool) { o.FollowSymlinks = follow }

func (o *OS) full(path string) string {
	return filepath.Join(o.Root, filepath.FromSlash(path))
}

// Readdir lists path's children by base name, unsorted.
func (o *OS) Readdir(path string) ([]string, error) {
	entries, err := os.ReadDir(o.full(path))
	if err != nil {
		return nil, fmt.Errorf("fsource: reading directory %q: %w", path, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// Resolve returns a FileSource rooted at the on-disk path for the
// logical path given.
func (o *OS) Resolve(path string) (FileSource, error) {
	return &osSource{diskPath: o.full(path), followSymlinks: o.FollowSymlinks}, nil
}

type osSource struct {
	diskPath       string
	followSymlinks bool
}

func (s *osSource) Stat() (Stat, error) {
	statFunc := os.Lstat
	if s.followSymlinks {
		statFunc = os.Stat
	}
	fi, err := statFunc(s.diskPath)
	if err != nil {
		return Stat{}, fmt.Errorf("fsource: stat %q: %w", s.diskPath, err)
	}
	st := Stat{
		Name:   fi.Name(),
		Mode:   fi.Mode(),
		Size:   fi.Size(),
		MTime:  fi.ModTime(),
		IsDir:  fi.IsDir(),
		IsLink: fi.Mode()&os.ModeSymlink != 0,
	}
	st.IsSpecial = fi.Mode()&(os.ModeDevice|os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0
	fillPlatformStat(&st, fi, s.diskPath, s.followSymlinks)
	return st, nil
}

func (s *osSource) Open() (stream.Stream, error) {
	return newOSStream(s.diskPath), nil
}

func (s *osSource) Readlink() (string, error) {
	target, err := os.Readlink(s.diskPath)
	if err != nil {
		return "", fmt.Errorf("fsource: readlink %q: %w", s.diskPath, err)
	}
	return target, nil
}

func (s *osSource) GetAAString() (string, bool) {
	return getXattrAAString(s.diskPath)
}

// osStream is a repeatable Stream over a path on disk: every Open
// re-opens the file from the top, matching the writer's two-pass
// (size, then emit) contract for on-disk content (spec.md §3).
type osStream struct {
	path string
	id   stream.Identity
	size int64
	f    *os.File
}

// newOSStream stats path up front, so Size and Identity are valid
// before the first Open and stay the same across every Open.
func newOSStream(path string) *osStream {
	s := &osStream{path: path}
	if fi, err := os.Stat(path); err == nil {
		s.size = fi.Size()
		s.id = identityOf(fi, path)
	} else {
		s.id = stream.Identity{InoID: stream.NextSyntheticIno()}
	}
	return s
}

func (s *osStream) Open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("fsource: open %q: %w", s.path, err)
	}
	s.f = f
	return nil
}

func (s *osStream) Read(p []byte) (int, error) { return s.f.Read(p) }
func (s *osStream) Close() error               { return s.f.Close() }
func (s *osStream) Size() int64                { return s.size }
func (s *osStream) Identity() stream.Identity  { return s.id }
func (s *osStream) IsRepeatable() bool         { return true }
