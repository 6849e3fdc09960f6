package joliet

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/go-iso9660/isoimage/filesrc"
	"github.com/go-iso9660/isoimage/isoerr"
	"github.com/go-iso9660/isoimage/node"
)

// Kind discriminates Joliet target-tree nodes. Joliet has no
// relocation or special-file representation of its own (symlinks and
// special files are simply omitted, since Joliet has no Rock-Ridge-
// like extension for them).
type Kind int

const (
	KindDir Kind = iota
	KindFile
)

// Node is the Joliet target-tree node, parallel to ecma119.Node but
// carrying a UCS-2BE-ready name and no relocation bookkeeping (Joliet
// has no 8-level depth limit to work around).
type Node struct {
	Name    string // UTF-8 still; encoded to UCS-2BE at marshal time
	Kind    Kind
	Logical *node.Node
	Parent  *Node

	Children []*Node
	Block    uint32
	Size     uint32

	File *filesrc.FileSrc

	PathTableNum uint16
}

// Tree is a built Joliet target tree.
type Tree struct {
	Root *Node
	Opts Options
}

// BuildTree mirrors ecma119.BuildTree's shape but applies Joliet's own
// name rules and hide mask, and omits anything ECMA-119 alone can
// represent (symlinks, device nodes) since Joliet carries no
// extension mechanism for them.
func BuildTree(img *node.Image, opts Options, reg *filesrc.Registry) (*Tree, error) {
	t := &Tree{Opts: opts}
	root, err := buildNode(img.Root(), nil, reg, opts)
	if err != nil {
		return nil, err
	}
	t.Root = root
	t.Root.PathTableNum = 1
	assignPathTableNumbers(t.Root)
	return t, nil
}

func buildNode(logical *node.Node, parent *Node, reg *filesrc.Registry, opts Options) (*Node, error) {
	n := &Node{Logical: logical, Parent: parent}

	switch logical.Kind {
	case node.KindDir:
		n.Kind = KindDir
		var children []*Node
		for _, c := range logical.AsDir().SortedByName() {
			if c.Hide&node.HideJoliet != 0 {
				continue
			}
			if c.Kind != node.KindDir && c.Kind != node.KindFile {
				continue // symlinks/special nodes have no Joliet representation
			}
			child, err := buildNode(c, n, reg, opts)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		mangleChildren(children, opts)
		sortSiblings(children)
		n.Children = children
	case node.KindFile:
		n.Kind = KindFile
		f := logical.AsFile()
		if f.Content != nil {
			fs, err := reg.GetOrCreate(f.Content, f.SortWeight, f.MSBlock != 0)
			if err != nil {
				return nil, err
			}
			n.File = fs
		}
	default:
		return nil, fmt.Errorf("%w: joliet cannot represent node kind %v", isoerr.ErrFormat, logical.Kind)
	}

	if parent != nil {
		n.Name = translateName(logical.Name, opts)
	}
	return n, nil
}

func mangleChildren(children []*Node, opts Options) {
	seen := make(map[string]int)
	for _, c := range children {
		base := c.Name
		count := seen[base]
		if count == 0 {
			seen[base] = 1
			continue
		}
		c.Name = mangle(base, count, opts.MaxNameChars)
		seen[base] = count + 1
	}
}

func mangle(base string, n int, maxChars int) string {
	suffix := "_" + strconv.Itoa(n)
	runes := []rune(base)
	budget := maxChars - len([]rune(suffix))
	if budget < 0 {
		budget = 0
	}
	if len(runes) > budget {
		runes = runes[:budget]
	}
	return string(runes) + suffix
}

func sortSiblings(children []*Node) {
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})
}

func assignPathTableNumbers(root *Node) {
	next := uint16(2)
	queue := []*Node{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range cur.Children {
			if c.Kind != KindDir {
				continue
			}
			c.PathTableNum = next
			next++
			queue = append(queue, c)
		}
	}
}
