package ecma119

// maxDirDepth is the deepest directory ECMA-119 §6.8.2.1 permits
// without Rock Ridge relocation: root is depth 1, so 8 levels allow a
// path eight components deep.
const maxDirDepth = 8

// rrMovedName is the synthetic directory Rock Ridge's RRIP-1.12 §5
// reserves for relocated directories.
const rrMovedName = "RR_MOVED"

// relocateDeepDirectories implements spec.md §4.3's "Deep-directory
// relocation": any directory nested past maxDirDepth is moved under a
// synthetic top-level RR_MOVED directory, leaving a Placeholder node
// (CL entry, in Rock Ridge terms) at its original position and
// recording RealParent/RealMe so the Rock Ridge writer can emit the
// matching PL/CL/RE entries. Grounded on original_source/src/rockridge.c's
// rrip_add_PL/rrip_add_CL handling, generalized into a tree-rewrite
// pass the ecma119 package owns independently of the SUSP encoder.
func relocateDeepDirectories(t *Tree) error {
	var deep []*Node
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if n.Kind != KindDir {
			return
		}
		if depth > maxDirDepth && n != t.Root {
			deep = append(deep, n)
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(t.Root, 1)

	if len(deep) == 0 {
		return nil
	}

	moved := t.RRMoved
	if moved == nil {
		moved = &Node{Name: rrMovedName, Kind: KindDir, Parent: t.Root}
		t.RRMoved = moved
		t.Root.Children = append(t.Root.Children, moved)
		sortSiblings(t.Root.Children)
	}

	for _, real := range deep {
		origParent := real.Parent
		removeChild(origParent, real)

		placeholder := &Node{
			Name:    real.Name,
			Kind:    KindPlaceholder,
			Parent:  origParent,
			RealMe:  real,
			Logical: real.Logical,
		}
		origParent.Children = append(origParent.Children, placeholder)
		sortSiblings(origParent.Children)

		real.RealParent = origParent
		real.Parent = moved
		moved.Children = append(moved.Children, real)
	}
	sortSiblings(moved.Children)
	return nil
}

func removeChild(parent *Node, target *Node) {
	out := parent.Children[:0]
	for _, c := range parent.Children {
		if c != target {
			out = append(out, c)
		}
	}
	parent.Children = out
}
