package pattern

// Tree is a node of a pattern. A node without children is a leaf.
//
// Orig points at the node a synthetic node was converted from. It is a
// non-owning reference into the sentence tree: when the pre-conversion
// pattern is rebuilt, Orig and its whole subtree replace the converted node.
type Tree struct {
	Element  Element
	Children []*Tree
	Orig     *Tree
}

// Leaf returns a childless node.
func Leaf(e Element) *Tree {
	return &Tree{Element: e}
}

// NewTree returns a node with the given children.
func NewTree(e Element, children ...*Tree) *Tree {
	if len(children) == 0 {
		children = nil
	}
	return &Tree{Element: e, Children: children}
}

func (t *Tree) IsLeaf() bool {
	return len(t.Children) == 0
}

// Size counts the nodes of the subtree rooted at t.
func (t *Tree) Size() int {
	n := 1
	for _, c := range t.Children {
		n += c.Size()
	}
	return n
}

// Equal compares elements and ordered children recursively. Orig is not
// part of a node's identity.
func (t *Tree) Equal(o *Tree) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !t.Element.Equal(o.Element) || len(t.Children) != len(o.Children) {
		return false
	}
	for i := range t.Children {
		if !t.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// Walk visits the subtree in pre-order until fn returns false.
func (t *Tree) Walk(fn func(*Tree) bool) bool {
	if !fn(t) {
		return false
	}
	for _, c := range t.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}
