package node

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-iso9660/isoimage/isoerr"
	"github.com/go-iso9660/isoimage/msgsink"
)

// VolumeIdentifiers holds the PVD/SVD string fields spec.md §3 assigns
// to Image: each is optional, length-bounded per ECMA-119, and either
// 7-bit or Unicode depending on which target tree consumes it.
type VolumeIdentifiers struct {
	VolumeID          string
	VolumeSetID       string
	Publisher         string
	Preparer          string
	System            string
	Application       string
	CopyrightFile     string
	AbstractFile      string
	BibliographicFile string
}

// BootMediaType names the El Torito emulation mode a boot image
// targets (El Torito spec 1.0 §2.2's boot_media_type byte).
type BootMediaType uint8

const (
	BootNoEmulation BootMediaType = iota
	BootFloppy12
	BootFloppy144
	BootFloppy288
	BootHardDisk
)

// BootCatalog is the image-wide boot configuration referenced from
// spec.md §3/§4.6. The bit-level El Torito layout lives in package
// eltorito; this struct only carries what the logical tree needs to
// know: where the boot image file and catalog placeholder sit, plus
// the catalog metadata (emulation type, load segment/size, bootable
// flag, HD-emulation partition type) spec.md §3 assigns to the Image
// rather than to the eltorito encoder.
type BootCatalog struct {
	BootImagePath   string
	CatalogNodePath string
	Isolinux        bool

	MediaType     BootMediaType
	Bootable      bool
	LoadSegment   uint16
	LoadSize      uint16 // 512-byte sectors to load; 0 lets the writer default it
	PartitionType byte   // HD-emulation only, captured from the boot image's MBR
}

// Image is the process-wide context of spec.md §3: it owns the root
// directory, the volume identifiers, and the collaborators (charset,
// message sink, node builder, input filesystem) every other package
// needs to do its job.
type Image struct {
	Volumes VolumeIdentifiers

	InputCharset string // default charset of incoming names, e.g. "UTF-8"

	Boot *BootCatalog

	Excludes []string // glob patterns, absolute or path-suffix relative

	Sink *msgsink.Sink

	root *Node
	refs int32
}

// New creates an Image rooted at an empty, unnamed directory (the
// teacher's ScanSourceDirectory synthesizes this same placeholder root
// entry; here it is a first-class Node from the start).
func New(volumeID string) *Image {
	root := NewDir("", 0o755, 0, 0)
	return &Image{
		Volumes: VolumeIdentifiers{VolumeID: volumeID},
		Sink:    msgsink.Discard(),
		root:    root,
		refs:    1,
	}
}

// Root returns the logical tree root.
func (im *Image) Root() *Node { return im.root }

// Ref/Unref implement the image's reference-counted lifetime (spec.md
// §3: "destroying the image destroys the tree unless nodes are held
// elsewhere"). The count uses atomic ops so release from either the
// writer thread or the caller's thread is safe (spec.md §5).
func (im *Image) Ref()         { atomic.AddInt32(&im.refs, 1) }
func (im *Image) Unref() int32 { return atomic.AddInt32(&im.refs, -1) }

// PathToNode walks a '/'-separated path from the root, as
// tree_path_to_node in spec.md §4.1.
func (im *Image) PathToNode(path string) (*Node, error) {
	cur := im.root
	path = strings.Trim(path, "/")
	if path == "" {
		return cur, nil
	}
	for _, comp := range strings.Split(path, "/") {
		if cur.Kind != KindDir {
			return nil, fmt.Errorf("%w: %q is not a directory", isoerr.ErrPrecondition, cur.Name)
		}
		child, ok := cur.AsDir().Get(comp)
		if !ok {
			return nil, fmt.Errorf("%w: no node at %q", isoerr.ErrNotFound, path)
		}
		cur = child
	}
	return cur, nil
}

// NodeToPath is the inverse of PathToNode (tree_get_node_path).
func NodeToPath(n *Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Name != ""; cur = parentNode(cur) {
		parts = append([]string{cur.Name}, parts...)
	}
	return "/" + strings.Join(parts, "/")
}

func parentNode(n *Node) *Node {
	d := n.Parent()
	if d == nil {
		return nil
	}
	return d.owner
}

// AddDir creates and inserts a new directory node under parent
// (tree_add_new_dir).
func (im *Image) AddDir(parent *Node, name string, mode uint32, uid, gid uint32) (*Node, error) {
	if parent.Kind != KindDir {
		return nil, fmt.Errorf("%w: parent %q is not a directory", isoerr.ErrPrecondition, parent.Name)
	}
	n := NewDir(name, mode, uid, gid)
	if err := parent.AsDir().Insert(n); err != nil {
		return nil, err
	}
	return n, nil
}

// AddNode inserts an already-constructed node under parent
// (tree_add_new_file / _symlink / _special / _cut_out all funnel here
// after building the appropriate Node).
func (im *Image) AddNode(parent, n *Node) error {
	if parent.Kind != KindDir {
		return fmt.Errorf("%w: parent %q is not a directory", isoerr.ErrPrecondition, parent.Name)
	}
	return parent.AsDir().Insert(n)
}
