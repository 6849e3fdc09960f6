// Package stream implements the opaque byte-producer contract that
// backs every regular file node: open, read to completion, close. The
// writer lays out blocks in pass 1 from Size and Identity alone,
// without opening the stream, and opens it to emit bytes in pass 3; a
// stream may also be opened before that (El Torito reads a hard-disk
// boot image's MBR), so only streams that answer IsRepeatable() true
// may back an ISO file (spec.md §3).
package stream

import (
	"bytes"
	"io"
	"sync/atomic"
)

// Identity is the (filesystem, device, inode) triple used by the
// filesrc registry to deduplicate file content. Streams without a
// stable on-disk identity synthesize one from a process-unique counter
// (spec.md §3: "streams without a stable identity return a
// process-unique ino").
type Identity struct {
	FSID  uint64
	DevID uint64
	InoID uint64
}

var syntheticIno uint64

// NextSyntheticIno hands out a monotonically increasing id, documented
// as opaque and comparable only for equality (spec.md §9, the
// "iso_fs_global_id" pattern).
func NextSyntheticIno() uint64 {
	return atomic.AddUint64(&syntheticIno, 1)
}

// Stream is the content producer owned by a File node.
type Stream interface {
	// Open prepares the stream for a read pass. Must be paired with Close.
	Open() error
	// Read pulls the next chunk of content; io.EOF ends the stream.
	Read(p []byte) (int, error)
	// Close releases any resources acquired by Open.
	Close() error
	// Size reports the stream's declared length. The writer pads short
	// reads and truncates long ones to match this value (spec.md §4.4).
	Size() int64
	// Identity returns the dedup key for this stream's content.
	Identity() Identity
	// IsRepeatable reports whether Open/Read/Close can be run a second
	// time and yield the same bytes.
	IsRepeatable() bool
}

// MemoryStream is a repeatable Stream backed by an in-memory byte slice,
// used for synthetic content such as a boot catalog or relocation stub.
type MemoryStream struct {
	data []byte
	r    *bytes.Reader
	id   Identity
}

// NewMemoryStream wraps data with a synthesized identity triple so two
// distinct in-memory buffers are never accidentally deduplicated.
func NewMemoryStream(data []byte) *MemoryStream {
	return &MemoryStream{data: data, id: Identity{InoID: NextSyntheticIno()}}
}

func (m *MemoryStream) Open() error {
	m.r = bytes.NewReader(m.data)
	return nil
}

func (m *MemoryStream) Read(p []byte) (int, error) { return m.r.Read(p) }
func (m *MemoryStream) Close() error               { m.r = nil; return nil }
func (m *MemoryStream) Size() int64                { return int64(len(m.data)) }
func (m *MemoryStream) Identity() Identity         { return m.id }
func (m *MemoryStream) IsRepeatable() bool         { return true }

// CutOutStream presents a byte-range slice of another repeatable stream
// as its own stream, e.g. extracting one El Torito boot image out of a
// larger container file.
type CutOutStream struct {
	parent       Stream
	offset, size int64
	section      io.Reader
}

// NewCutOutStream slices [offset, offset+size) out of parent. parent
// must be repeatable; the slice inherits parent's identity so dedup
// still collapses overlapping cut-outs of the same backing file... but
// callers needing independent dedup should wrap with a synthesized one.
func NewCutOutStream(parent Stream, offset, size int64) *CutOutStream {
	return &CutOutStream{parent: parent, offset: offset, size: size}
}

func (c *CutOutStream) Open() error {
	if err := c.parent.Open(); err != nil {
		return err
	}
	if _, err := io.CopyN(io.Discard, c.parent, c.offset); err != nil && err != io.EOF {
		return err
	}
	c.section = io.LimitReader(c.parent, c.size)
	return nil
}

func (c *CutOutStream) Read(p []byte) (int, error) { return c.section.Read(p) }
func (c *CutOutStream) Close() error               { return c.parent.Close() }
func (c *CutOutStream) Size() int64                { return c.size }
func (c *CutOutStream) Identity() Identity         { return c.parent.Identity() }
func (c *CutOutStream) IsRepeatable() bool         { return c.parent.IsRepeatable() }

// FilterFunc transforms bytes as they flow through a FilterStream, e.g.
// an isolinux boot-info-table patch applied at emission time.
type FilterFunc func(src io.Reader) io.Reader

// FilterStream wraps a parent stream with a byte-level transform that
// is re-applied identically on every Open, so the filtered stream
// remains repeatable whenever its parent is.
type FilterStream struct {
	parent Stream
	filter FilterFunc
	size   int64
	out    io.Reader
}

// NewFilterStream applies filter to parent's bytes. size is the
// filtered stream's declared length, which may differ from parent's.
func NewFilterStream(parent Stream, size int64, filter FilterFunc) *FilterStream {
	return &FilterStream{parent: parent, filter: filter, size: size}
}

func (f *FilterStream) Open() error {
	if err := f.parent.Open(); err != nil {
		return err
	}
	f.out = f.filter(f.parent)
	return nil
}

func (f *FilterStream) Read(p []byte) (int, error) { return f.out.Read(p) }
func (f *FilterStream) Close() error               { return f.parent.Close() }
func (f *FilterStream) Size() int64                { return f.size }
func (f *FilterStream) Identity() Identity         { return f.parent.Identity() }
func (f *FilterStream) IsRepeatable() bool         { return f.parent.IsRepeatable() }

// CopyPadded copies exactly size bytes from s into w, zero-padding a
// short stream or truncating a long one, and reports which happened
// (spec.md §4.4 pass-3 size-drift policy).
func CopyPadded(w io.Writer, s Stream, size int64) (padded, truncated bool, err error) {
	if err = s.Open(); err != nil {
		return false, false, err
	}
	defer s.Close()

	n, copyErr := io.CopyN(w, s, size)
	if copyErr == io.EOF {
		if n < size {
			pad := make([]byte, size-n)
			if _, werr := w.Write(pad); werr != nil {
				return false, false, werr
			}
			return true, false, nil
		}
		return false, false, nil
	}
	if copyErr != nil {
		return false, false, copyErr
	}
	// stream produced at least `size` bytes; drain and report truncation
	// if there was more.
	extra, _ := io.Copy(io.Discard, io.LimitReader(s, 1))
	return false, extra > 0, nil
}
