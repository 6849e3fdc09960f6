// Package fsource implements the FileSource/FileSystem abstraction of
// spec.md §4.2: the pluggable input side that fsimport walks to build a
// logical tree. The teacher (goiso9660) talks to os.ReadDir/os.Stat
// directly inside its scanner; here that is pulled behind an interface
// so a second implementation (an already-built ISO image, for
// multi-session appends) can stand in for the local filesystem without
// fsimport knowing the difference.
package fsource

import (
	"io/fs"
	"time"

	"github.com/go-iso9660/isoimage/stream"
)

// Stat mirrors the POSIX fields fsimport needs off every directory
// entry: enough to build a Node without leaking the source's own
// concrete stat type into the rest of the module.
type Stat struct {
	Name      string
	Mode      fs.FileMode
	UID       uint32
	GID       uint32
	Size      int64
	ATime     time.Time
	MTime     time.Time
	CTime     time.Time
	Ident     stream.Identity
	IsDir     bool
	IsLink    bool
	IsSpecial bool
}

// FileSource is one entry's worth of access: open its content, or read
// a symlink target, without re-resolving the path (fsimport holds a
// FileSource per entry it visits, mirroring IsoFileSource in spec.md
// §4.2).
type FileSource interface {
	Stat() (Stat, error)
	// Open returns a repeatable Stream for a regular file's content.
	Open() (stream.Stream, error)
	// Readlink returns a symlink's target.
	Readlink() (string, error)
	// GetAAString returns the raw AAIP attribute block for this entry,
	// or ("", false) if the source has none (spec.md §4.9).
	GetAAString() (string, bool)
}

// FileSystem is the directory-walking half: given a path, list its
// children as openable FileSource values (spec.md §4.2 IsoFilesystem).
type FileSystem interface {
	// Readdir lists the immediate children of dir, in arbitrary order;
	// fsimport is responsible for any sorting it needs.
	Readdir(dirPath string) ([]string, error)
	// Resolve returns a FileSource for path.
	Resolve(path string) (FileSource, error)
}
