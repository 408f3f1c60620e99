package widgy

import (
	"strconv"

	"github.com/mx-space/widgy/internal/models"
)

// Node is a tree position together with its loaded content. Children is only
// populated when the node was loaded as part of a subtree.
type Node struct {
	models.NodeModel
	Content  models.Content `json:"content"`
	Children []*Node        `json:"children,omitempty"`
}

// Kind returns the content kind tag.
func (n *Node) Kind() models.ContentKind { return n.ContentType }

// Class returns the static class of the node's content.
func (n *Node) Class() *Class {
	c, _ := Lookup(n.ContentType)
	return c
}

// Category is a shortcut for Class().Category.
func (n *Node) Category() Category {
	if c := n.Class(); c != nil {
		return c.Category
	}
	return CategoryGeneric
}

// Key is the node identifier rendered as a string.
func (n *Node) Key() string { return strconv.FormatUint(uint64(n.ID), 10) }

func (n *Node) IsRoot() bool { return n.Depth <= 1 }

// Is reports whether the node holds content of the given kind.
func (n *Node) Is(kind models.ContentKind) bool { return n != nil && n.ContentType == kind }

// DepthFirst flattens the loaded subtree in document order, n included.
func (n *Node) DepthFirst() []*Node {
	out := []*Node{n}
	for _, c := range n.Children {
		out = append(out, c.DepthFirst()...)
	}
	return out
}

// Find returns the node with the given id inside the loaded subtree.
func (n *Node) Find(id uint) *Node {
	for _, d := range n.DepthFirst() {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// buildTree links a depth-first ordered list into a tree and returns its top node.
func buildTree(nodes []*Node) *Node {
	if len(nodes) == 0 {
		return nil
	}
	byPath := make(map[string]*Node, len(nodes))
	root := nodes[0]
	for _, n := range nodes {
		n.Children = nil
		byPath[n.Path] = n
		if n == root {
			continue
		}
		if p, ok := byPath[parentPath(n.Path)]; ok {
			p.Children = append(p.Children, n)
		}
	}
	return root
}
