package fsource

import (
	"encoding/binary"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-iso9660/isoimage/stream"
)

// Image is the FileSystem half of spec.md §7's multi-session support:
// a read-only view over the Primary Volume Descriptor of a previously
// written ISO, letting fsimport graft an old image's tree onto a new
// one instead of re-reading every file from the original source.
//
// It deliberately parses only what appendable mode needs (root PVD
// fields and plain ECMA-119 directory records); it is not a general
// ISO 9660 reader and does not resolve Rock Ridge, Joliet, or El
// Torito structures on the source image.
type Image struct {
	ra         io.ReaderAt
	sectorSize int64
	rootLBA    uint32
	rootLen    uint32
}

const isoSectorSize = 2048

// OpenImage parses the PVD of ra, a previously written ISO 9660 image,
// at the fixed system-area offset of 16 sectors (ECMA-119 §6.2.1).
func OpenImage(ra io.ReaderAt) (*Image, error) {
	sector := make([]byte, isoSectorSize)
	if _, err := ra.ReadAt(sector, 16*isoSectorSize); err != nil {
		return nil, fmt.Errorf("fsource: reading PVD: %w", err)
	}
	if sector[0] != 1 || string(sector[1:6]) != "CD001" {
		return nil, fmt.Errorf("fsource: sector 16 is not a Primary Volume Descriptor")
	}
	rootDR := sector[156 : 156+34]
	lba := binary.LittleEndian.Uint32(rootDR[2:6])
	size := binary.LittleEndian.Uint32(rootDR[10:14])
	return &Image{ra: ra, sectorSize: isoSectorSize, rootLBA: lba, rootLen: size}, nil
}

type dirEntry struct {
	name  string
	isDir bool
	lba   uint32
	size  uint32
	mtime time.Time
}

// readDir parses every directory record in the extent at (lba, size),
// skipping the "." and ".." self-entries (ECMA-119 §9.1.11).
func (im *Image) readDir(lba, size uint32) ([]dirEntry, error) {
	buf := make([]byte, size)
	if _, err := im.ra.ReadAt(buf, int64(lba)*im.sectorSize); err != nil {
		return nil, fmt.Errorf("fsource: reading directory extent: %w", err)
	}
	var out []dirEntry
	for off := 0; off < len(buf); {
		recLen := int(buf[off])
		if recLen == 0 {
			// padding to the next sector boundary
			off = (off/int(im.sectorSize) + 1) * int(im.sectorSize)
			continue
		}
		rec := buf[off : off+recLen]
		nameLen := int(rec[32])
		if nameLen == 1 && (rec[33] == 0 || rec[33] == 1) {
			off += recLen
			continue // "." or ".."
		}
		name := string(rec[33 : 33+nameLen])
		if i := strings.IndexByte(name, ';'); i >= 0 {
			name = name[:i] // strip ;1 version suffix
		}
		flags := rec[25]
		out = append(out, dirEntry{
			name:  name,
			isDir: flags&0x02 != 0,
			lba:   binary.LittleEndian.Uint32(rec[2:6]),
			size:  binary.LittleEndian.Uint32(rec[10:14]),
			mtime: decodeDirTime(rec[18:25]),
		})
		off += recLen
	}
	return out, nil
}

func decodeDirTime(b []byte) time.Time {
	if len(b) < 7 {
		return time.Time{}
	}
	offsetQuarterHours := int(int8(b[6]))
	loc := time.FixedZone("", offsetQuarterHours*15*60)
	return time.Date(1900+int(b[0]), time.Month(b[1]), int(b[2]), int(b[3]), int(b[4]), int(b[5]), 0, loc)
}

func (im *Image) resolveDir(p string) (dirEntry, error) {
	cur := dirEntry{isDir: true, lba: im.rootLBA, size: im.rootLen}
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return cur, nil
	}
	for _, comp := range strings.Split(p, "/") {
		entries, err := im.readDir(cur.lba, cur.size)
		if err != nil {
			return dirEntry{}, err
		}
		found := false
		for _, e := range entries {
			if strings.EqualFold(e.name, comp) {
				cur, found = e, true
				break
			}
		}
		if !found {
			return dirEntry{}, fmt.Errorf("fsource: no entry %q in image", p)
		}
	}
	return cur, nil
}

// Readdir lists dirPath's children by name.
func (im *Image) Readdir(dirPath string) ([]string, error) {
	d, err := im.resolveDir(dirPath)
	if err != nil {
		return nil, err
	}
	entries, err := im.readDir(d.lba, d.size)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names, nil
}

// Resolve returns a FileSource for a path inside the prior image.
func (im *Image) Resolve(p string) (FileSource, error) {
	e, err := im.resolveDir(p)
	if err != nil {
		return nil, err
	}
	return &imageSource{im: im, entry: e}, nil
}

type imageSource struct {
	im    *Image
	entry dirEntry
}

func (s *imageSource) Stat() (Stat, error) {
	return Stat{
		Name:  s.entry.name,
		Size:  int64(s.entry.size),
		MTime: s.entry.mtime,
		IsDir: s.entry.isDir,
		Ident: stream.Identity{InoID: uint64(s.entry.lba)},
	}, nil
}

func (s *imageSource) Open() (stream.Stream, error) {
	if s.entry.isDir {
		return nil, fmt.Errorf("fsource: cannot open a directory as a stream")
	}
	return &imageStream{
		ra:   s.im.ra,
		off:  int64(s.entry.lba) * s.im.sectorSize,
		size: int64(s.entry.size),
		id:   stream.Identity{InoID: uint64(s.entry.lba)},
	}, nil
}

func (s *imageSource) Readlink() (string, error) {
	return "", fmt.Errorf("fsource: image source has no symlink support")
}

func (s *imageSource) GetAAString() (string, bool) { return "", false }

// imageStream streams a file extent straight out of the prior image by
// absolute offset, reusable across repeated Opens since it never
// mutates the backing reader (spec.md §3 repeatability requirement).
type imageStream struct {
	ra   io.ReaderAt
	off  int64
	size int64
	id   stream.Identity
	pos  int64
}

func (s *imageStream) Open() error               { s.pos = 0; return nil }
func (s *imageStream) Close() error              { return nil }
func (s *imageStream) Size() int64               { return s.size }
func (s *imageStream) Identity() stream.Identity { return s.id }
func (s *imageStream) IsRepeatable() bool        { return true }

func (s *imageStream) Read(p []byte) (int, error) {
	remaining := s.size - s.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := s.ra.ReadAt(p, s.off+s.pos)
	s.pos += int64(n)
	if err == io.EOF && int64(n) == remaining {
		err = nil
	}
	return n, err
}
