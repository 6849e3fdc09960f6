// Package fsimport implements recursive import of a FileSource tree
// into a logical node.Image (spec.md §4.1 "Recursive add behavior"),
// generalizing the teacher's ScanSourceDirectory/scanDirectoryRecursive
// pair to operate against the fsource abstraction instead of os.Stat
// directly, and to build node.Node values instead of flat fileEntry
// records.
package fsimport

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/go-iso9660/isoimage/fsource"
	"github.com/go-iso9660/isoimage/isoerr"
	"github.com/go-iso9660/isoimage/msgsink"
	"github.com/go-iso9660/isoimage/node"
)

// ReplacePolicy governs what happens when an imported entry collides
// with an existing node of the same name (spec.md §4.1).
type ReplacePolicy int

const (
	// ReplaceNever keeps the existing node and skips the incoming one.
	ReplaceNever ReplacePolicy = iota
	// ReplaceAlways always evicts the existing node.
	ReplaceAlways
	// ReplaceIfSameType replaces only when both nodes share a Kind.
	ReplaceIfSameType
	// ReplaceAsk defers the decision to the AskReplace callback. There
	// is no terminal UI in this module, so "ask" means "call back into
	// whatever decision function the embedder supplied"; AskReplace
	// must be set when this policy is used.
	ReplaceAsk
)

// ReportFunc is offered every filtered-in candidate before it is built
// into a node; a non-positive return cancels the whole import (spec.md
// §4.1 "offer it to an optional report callback").
type ReportFunc func(fsPath string, st fsource.Stat) int

// AskReplaceFunc resolves a ReplaceAsk collision: true replaces.
type AskReplaceFunc func(existing, incoming *node.Node) bool

// Options configures one recursive import.
type Options struct {
	// FollowSymlinks makes the walker stat through a symlink instead
	// of preserving it as a KindSymlink node.
	FollowSymlinks bool

	// Excludes are glob patterns; absolute patterns (leading '/') match
	// the full path from the import root, relative patterns match any
	// path suffix starting at a '/' boundary (spec.md §4.1).
	Excludes []string

	// SkipHidden drops entries whose base name starts with '.'.
	SkipHidden bool

	// SkipSpecialMask is a bitmask of node.SpecialKind values to ignore
	// (1<<node.SpecialSocket | ...).
	SkipSpecialMask uint32

	Replace    ReplacePolicy
	AskReplace AskReplaceFunc

	Report ReportFunc

	Sink *msgsink.Sink
}

// Builder drives recursive import from a FileSystem into a node.Image.
type Builder struct {
	fsys fsource.FileSystem
	opts Options
}

// symlinkPolicy is implemented by a FileSystem (fsource.OS) that
// distinguishes a symlink's own stat from its target's; New wires
// Options.FollowSymlinks into it so the policy actually takes effect
// instead of sitting unused (spec.md §4.1 "stat it (follow or not per
// policy)"). A FileSystem that doesn't implement it (fsource.Image)
// has no such distinction to configure.
type symlinkPolicy interface {
	SetFollowSymlinks(bool)
}

// New constructs a Builder reading from fsys under opts.
func New(fsys fsource.FileSystem, opts Options) *Builder {
	if opts.Sink == nil {
		opts.Sink = msgsink.Discard()
	}
	if sp, ok := fsys.(symlinkPolicy); ok {
		sp.SetFollowSymlinks(opts.FollowSymlinks)
	}
	return &Builder{fsys: fsys, opts: opts}
}

// cancelled is returned internally when Report vetoes the whole walk;
// it is not surfaced to the caller as a failure.
type cancelled struct{}

func (cancelled) Error() string { return "fsimport: cancelled by report callback" }

// ImportDir walks fsPath recursively, inserting built nodes under
// parent (tree_add_dir_rec in spec.md §4.1). Returns nil if the
// traversal was cancelled by the report callback, as cancellation is
// not itself a failure.
func (b *Builder) ImportDir(parent *node.Node, fsPath string) error {
	err := b.importDirRec(parent, fsPath)
	if _, ok := err.(cancelled); ok {
		b.opts.Sink.Report(msgsink.Note, "fsimport", "import cancelled by report callback", "path", fsPath)
		return nil
	}
	return err
}

func (b *Builder) importDirRec(parent *node.Node, fsPath string) error {
	names, err := b.fsys.Readdir(fsPath)
	if err != nil {
		return fmt.Errorf("fsimport: %w", err)
	}
	for _, name := range names {
		childPath := path.Join(fsPath, name)
		src, err := b.fsys.Resolve(childPath)
		if err != nil {
			b.opts.Sink.ReportErr(msgsink.Warning, "fsimport", err, "resolving entry", "path", childPath)
			continue
		}
		st, err := src.Stat()
		if err != nil {
			b.opts.Sink.ReportErr(msgsink.Warning, "fsimport", err, "statting entry", "path", childPath)
			continue
		}

		if b.isExcluded(childPath) {
			continue
		}
		if b.opts.SkipHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if st.IsSpecial {
			// resolve the kind from the raw mode the same way BuildNode
			// does, so a masked special file never reaches Report.
			kind := node.SpecialSocket
			switch {
			case st.Mode&os.ModeDevice != 0 && st.Mode&os.ModeCharDevice != 0:
				kind = node.SpecialCharDevice
			case st.Mode&os.ModeDevice != 0:
				kind = node.SpecialBlockDevice
			case st.Mode&os.ModeNamedPipe != 0:
				kind = node.SpecialFIFO
			}
			if b.opts.SkipSpecialMask&(1<<uint(kind)) != 0 {
				continue
			}
		}

		if b.opts.Report != nil {
			if b.opts.Report(childPath, st) <= 0 {
				return cancelled{}
			}
		}

		child, err := BuildNode(name, st, src)
		if err != nil {
			b.opts.Sink.ReportErr(msgsink.Warning, "fsimport", err, "building node", "path", childPath)
			continue
		}

		if child.Kind == node.KindSpecial {
			kind, _, _ := child.SpecialInfo()
			if b.opts.SkipSpecialMask&(1<<uint(kind)) != 0 {
				continue
			}
		}

		if err := b.insert(parent, child); err != nil {
			if err == errSkipInsert {
				continue
			}
			return err
		}

		if child.Kind == node.KindDir {
			if err := b.importDirRec(child, childPath); err != nil {
				return err
			}
		}
	}
	return nil
}

var errSkipInsert = fmt.Errorf("fsimport: insert skipped by replace policy")

func (b *Builder) insert(parent *node.Node, child *node.Node) error {
	dir := parent.AsDir()
	existing, exists := dir.Get(child.Name)
	if !exists {
		return dir.Insert(child)
	}
	switch b.opts.Replace {
	case ReplaceNever:
		return errSkipInsert
	case ReplaceAlways:
		// fallthrough to replace
	case ReplaceIfSameType:
		if existing.Kind != child.Kind {
			return errSkipInsert
		}
	case ReplaceAsk:
		if b.opts.AskReplace == nil || !b.opts.AskReplace(existing, child) {
			return errSkipInsert
		}
	default:
		return fmt.Errorf("%w: unknown replace policy %d", isoerr.ErrPrecondition, b.opts.Replace)
	}
	if _, err := dir.Take(existing.Name); err != nil {
		return err
	}
	return dir.Insert(child)
}

func (b *Builder) isExcluded(fsPath string) bool {
	for _, pattern := range b.opts.Excludes {
		if strings.HasPrefix(pattern, "/") {
			if ok, _ := path.Match(pattern, fsPath); ok {
				return true
			}
			continue
		}
		// relative: match any suffix starting at a '/' boundary
		for i := 0; i < len(fsPath); i++ {
			if fsPath[i] != '/' {
				continue
			}
			if ok, _ := path.Match(pattern, fsPath[i+1:]); ok {
				return true
			}
		}
		if ok, _ := path.Match(pattern, strings.TrimPrefix(fsPath, "/")); ok {
			return true
		}
	}
	return false
}
