// Package node implements the logical tree model of spec.md §3/§4.1: a
// mutable in-memory directory graph rooted at an Image, with POSIX-like
// metadata on every node and a content Stream on every regular file.
//
// The teacher (goiso9660) represents the scanned tree as a flat
// []fileEntry slice with parent/child indices. That collapses naming,
// metadata and tree shape into one struct tailored to a single output
// standard. Here the tree shape is kept (Dir owns its children, a
// non-owning parent pointer closes the loop) but decoupled from any
// particular target standard, because spec.md needs the same logical
// tree to grow an ECMA-119 tree, a Joliet tree, and (later) others.
package node

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-iso9660/isoimage/isoerr"
	"github.com/go-iso9660/isoimage/stream"
)

// Kind discriminates the Node variants named in spec.md §3.
type Kind int

const (
	KindDir Kind = iota
	KindFile
	KindSymlink
	KindSpecial
	KindBootPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	case KindSpecial:
		return "special"
	case KindBootPlaceholder:
		return "boot-placeholder"
	default:
		return "unknown"
	}
}

// SpecialKind further discriminates KindSpecial nodes.
type SpecialKind int

const (
	SpecialSocket SpecialKind = iota
	SpecialBlockDevice
	SpecialCharDevice
	SpecialFIFO
)

// HideMask carries one bit per target tree a node should be omitted
// from (spec.md §4.3 "skip nodes whose hide-mask for the target tree
// is set").
type HideMask uint8

const (
	HideECMA119 HideMask = 1 << iota
	HideJoliet
	HideISO1999
)

// extraInfoKey is the free function-pointer key of the "xinfo" pattern
// (spec.md §9): any package can stash an opaque payload on a node
// without the core Node type knowing its shape. AAIP xattr/ACL blobs
// are attached this way.
type extraInfoKey string

// Node is the tagged union of spec.md §3. All fields are present on
// every variant; the Kind-specific payload lives in the pointer fields
// that are non-nil only for their own Kind (Dir/File/SymlinkTarget/
// Special), matching the "sum type with exhaustive matching" guidance
// of spec.md §9 while staying a single allocatable struct, as Go has no
// tagged-union literal.
type Node struct {
	Name string // UTF-8, non-empty, no '/', unique among siblings
	Kind Kind

	Mode uint32 // type + permission bits, POSIX-style
	UID  uint32
	GID  uint32

	ATime, MTime, CTime time.Time

	Hide HideMask

	refs int32

	parent   *Dir // non-owning; nil only for the image root
	extra    map[extraInfoKey]extraInfo
	children int // index within parent.order, -1 if untracked

	// Dir payload
	dir *Dir
	// File payload
	file *File
	// Symlink payload
	symlinkTarget string
	// Special payload
	special            SpecialKind
	devMajor, devMinor uint32
}

type extraInfo struct {
	payload interface{}
	destroy func(interface{})
}

// SetExtra attaches an opaque payload under key, replacing and
// destroying any prior value for that key (spec.md §9 xinfo pattern).
func (n *Node) SetExtra(key string, payload interface{}, destroy func(interface{})) {
	if n.extra == nil {
		n.extra = make(map[extraInfoKey]extraInfo)
	}
	if old, ok := n.extra[extraInfoKey(key)]; ok && old.destroy != nil {
		old.destroy(old.payload)
	}
	n.extra[extraInfoKey(key)] = extraInfo{payload: payload, destroy: destroy}
}

// Extra retrieves a previously attached payload.
func (n *Node) Extra(key string) (interface{}, bool) {
	if n.extra == nil {
		return nil, false
	}
	ei, ok := n.extra[extraInfoKey(key)]
	return ei.payload, ok
}

// Parent returns the owning directory, or nil for the tree root.
func (n *Node) Parent() *Dir { return n.parent }

// Ref increments the node's reference count. Used when a caller holds
// a Node beyond a single tree operation (spec.md §3 "shared by
// reference count").
func (n *Node) Ref() { atomic.AddInt32(&n.refs, 1) }

// Unref decrements the reference count; callers must not touch the
// node after it reaches zero.
func (n *Node) Unref() int32 { return atomic.AddInt32(&n.refs, -1) }

// AsDir returns the Dir payload, or nil if Kind != KindDir.
func (n *Node) AsDir() *Dir { return n.dir }

// AsFile returns the File payload, or nil if Kind != KindFile.
func (n *Node) AsFile() *File { return n.file }

// SymlinkTarget returns the link target, valid only for KindSymlink.
func (n *Node) SymlinkTarget() string { return n.symlinkTarget }

// SpecialInfo returns the special-file kind and device numbers, valid
// only for KindSpecial.
func (n *Node) SpecialInfo() (SpecialKind, uint32, uint32) {
	return n.special, n.devMajor, n.devMinor
}

// File is the KindFile payload: a content Stream plus the bookkeeping
// fields spec.md §3 assigns to File nodes.
type File struct {
	Content    stream.Stream
	MSBlock    uint32 // pre-existing extent for multi-session imports; 0 if new
	SortWeight int32  // higher sorts earlier in the data region
}

// Dir is the KindDir payload: an unordered set of children keyed by
// name, with a stable iteration order (spec.md §3 "Dir").
type Dir struct {
	owner    *Node
	children map[string]*Node
	order    []string // insertion order, kept in sync for stable iteration
}

func newDir(owner *Node) *Dir {
	return &Dir{owner: owner, children: make(map[string]*Node)}
}

// Len returns the number of children.
func (d *Dir) Len() int { return len(d.children) }

// Get looks up a child by name.
func (d *Dir) Get(name string) (*Node, bool) {
	n, ok := d.children[name]
	return n, ok
}

// Children returns the children in stable (insertion) order. The
// returned slice is a copy; mutating the Dir mid-iteration is safe.
func (d *Dir) Children() []*Node {
	out := make([]*Node, 0, len(d.order))
	for _, name := range d.order {
		if n, ok := d.children[name]; ok {
			out = append(out, n)
		}
	}
	return out
}

// SortedByName returns children sorted by Name, the default stable
// order higher layers may rely on for deterministic output.
func (d *Dir) SortedByName() []*Node {
	out := d.Children()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Insert adds child under name, enforcing the sibling-name-unique
// invariant (spec.md §8 invariant 1).
func (d *Dir) Insert(child *Node) error {
	if child.Name == "" {
		return fmt.Errorf("%w: node name must not be empty", isoerr.ErrPrecondition)
	}
	if _, exists := d.children[child.Name]; exists {
		return fmt.Errorf("%w: sibling name %q already exists", isoerr.ErrInvariant, child.Name)
	}
	if child.parent != nil {
		return fmt.Errorf("%w: node %q already has a parent", isoerr.ErrInvariant, child.Name)
	}
	d.children[child.Name] = child
	d.order = append(d.order, child.Name)
	child.parent = d
	return nil
}

// Take removes and returns the named child without destroying it,
// clearing its parent pointer atomically with the removal so the
// "exactly one parent" invariant never observes a dangling link
// (spec.md §9).
func (d *Dir) Take(name string) (*Node, error) {
	child, ok := d.children[name]
	if !ok {
		return nil, fmt.Errorf("%w: no child named %q", isoerr.ErrNotFound, name)
	}
	delete(d.children, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	child.parent = nil
	return child, nil
}

// Remove deletes the named child outright.
func (d *Dir) Remove(name string) error {
	_, err := d.Take(name)
	return err
}

// Rename changes child's name within the same directory, re-checking
// the sibling-name-unique invariant against the parent (spec.md §9:
// "Rename must be guarded by the sibling-name-unique check on the
// parent").
func (d *Dir) Rename(oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	if _, exists := d.children[newName]; exists {
		return fmt.Errorf("%w: sibling name %q already exists", isoerr.ErrInvariant, newName)
	}
	child, ok := d.children[oldName]
	if !ok {
		return fmt.Errorf("%w: no child named %q", isoerr.ErrNotFound, oldName)
	}
	delete(d.children, oldName)
	for i, n := range d.order {
		if n == oldName {
			d.order[i] = newName
			break
		}
	}
	child.Name = newName
	d.children[newName] = child
	return nil
}

// NewDir constructs a directory node with the given metadata. Intended
// for use by the NodeBuilder and by direct tree-construction APIs
// (tree_add_new_dir in spec.md §4.1).
func NewDir(name string, mode uint32, uid, gid uint32) *Node {
	n := &Node{Name: name, Kind: KindDir, Mode: mode, UID: uid, GID: gid}
	n.dir = newDir(n)
	return n
}

// NewFile constructs a regular file node backed by content.
func NewFile(name string, mode uint32, uid, gid uint32, content stream.Stream) *Node {
	n := &Node{Name: name, Kind: KindFile, Mode: mode, UID: uid, GID: gid}
	n.file = &File{Content: content}
	return n
}

// NewSymlink constructs a symbolic-link node.
func NewSymlink(name string, mode uint32, uid, gid uint32, target string) *Node {
	return &Node{Name: name, Kind: KindSymlink, Mode: mode, UID: uid, GID: gid, symlinkTarget: target}
}

// NewSpecial constructs a device/socket/fifo node.
func NewSpecial(name string, mode uint32, uid, gid uint32, kind SpecialKind, major, minor uint32) *Node {
	return &Node{Name: name, Kind: KindSpecial, Mode: mode, UID: uid, GID: gid, special: kind, devMajor: major, devMinor: minor}
}

// NewBootPlaceholder constructs the synthetic node the boot catalog
// occupies in the tree (spec.md §4.6).
func NewBootPlaceholder(name string) *Node {
	return &Node{Name: name, Kind: KindBootPlaceholder}
}
