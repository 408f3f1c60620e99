package widgy

import (
	"fmt"

	"github.com/mx-space/widgy/internal/models"
)

// Placement is a consistent snapshot of a prospective parent: the parent
// itself, its ancestors (root first) and its current children.
type Placement struct {
	Parent    *Node
	Ancestors []*Node
	Children  []*Node
}

// lineage is the parent followed by its ancestors, nearest first.
func (p Placement) lineage() []*Node {
	out := make([]*Node, 0, len(p.Ancestors)+1)
	if p.Parent != nil {
		out = append(out, p.Parent)
	}
	for i := len(p.Ancestors) - 1; i >= 0; i-- {
		out = append(out, p.Ancestors[i])
	}
	return out
}

func (p Placement) hasChild(n *Node) bool {
	if n == nil {
		return false
	}
	for _, c := range p.Children {
		if c.ID == n.ID {
			return true
		}
	}
	return false
}

// CanBeChildOf is the type-level rule: may a content of kind be placed under
// the parent in this placement. child is the node being moved, nil on insert.
func CanBeChildOf(kind models.ContentKind, p Placement, child *Node) bool {
	cls, ok := Lookup(kind)
	if !ok || p.Parent == nil {
		return false
	}
	switch {
	case cls.Category.IsSuccessHandler():
		return p.Parent.Is(models.KindSubmitButton)
	case cls.Category.IsFormElement():
		if FindForm(p.lineage()) == nil {
			return false
		}
		return baseValidChildOf(cls, p, child)
	case cls.Category == CategoryForm:
		if FindForm(p.lineage()) != nil {
			return false
		}
		return baseValidChildOf(cls, p, child)
	case cls.Category == CategoryLayout:
		return false
	}
	return baseValidChildOf(cls, p, child)
}

func baseValidChildOf(*Class, Placement, *Node) bool { return true }

// ParentAccepts is the instance-level rule: does this parent accept this child.
func ParentAccepts(p Placement, kind models.ContentKind, child *Node) bool {
	cls, ok := Lookup(kind)
	if !ok || p.Parent == nil {
		return false
	}
	switch p.Parent.Kind() {
	case models.KindSubmitButton:
		if p.hasChild(child) {
			return true
		}
		if cls.Category.IsResponseHandler() {
			for _, c := range p.Children {
				if c.Category().IsResponseHandler() {
					return false
				}
			}
		}
		return cls.Category.IsSuccessHandler()
	case models.KindForm:
		return true
	case models.KindTwoColumnLayout:
		if p.hasChild(child) {
			return true
		}
		return kind == models.KindBucket && len(p.Children) < 2
	}
	parentClass := p.Parent.Class()
	return parentClass != nil && parentClass.AcceptingChildren
}

// Admits evaluates both rules together; mutations are allowed only if it is true.
func Admits(p Placement, kind models.ContentKind, child *Node) bool {
	return CanBeChildOf(kind, p, child) && ParentAccepts(p, kind, child)
}

// SubtreeFits reports whether the descendants n carries stay valid once n
// sits under the placement: no form ends up inside another form and no form
// element ends up outside of every form.
func SubtreeFits(p Placement, n *Node) bool {
	return descendantsFit(n, FindForm(p.lineage()) != nil || n.Is(models.KindForm))
}

func descendantsFit(n *Node, inForm bool) bool {
	for _, c := range n.Children {
		isForm := c.Is(models.KindForm)
		if isForm && inForm {
			return false
		}
		if c.Category().IsFormElement() && !inForm {
			return false
		}
		if !descendantsFit(c, inForm || isForm) {
			return false
		}
	}
	return true
}

// FindForm returns the first Form among nodes, or nil.
func FindForm(nodes []*Node) *Node {
	for _, n := range nodes {
		if n.Is(models.KindForm) {
			return n
		}
	}
	return nil
}

// ParentForm returns the form owning a form element given its ancestors.
// A form element outside of any form means the validity rules were bypassed.
func ParentForm(n *Node, ancestors []*Node) *Node {
	for i := len(ancestors) - 1; i >= 0; i-- {
		if ancestors[i].Is(models.KindForm) {
			return ancestors[i]
		}
	}
	if n.Category().IsFormElement() {
		panic(fmt.Sprintf("widgy: form element %d (%s) does not belong to a form", n.ID, n.Kind()))
	}
	return nil
}

// AvailableChildren lists the classes that could be added under the placement.
func AvailableChildren(p Placement) []*Class {
	var out []*Class
	for _, c := range Classes() {
		if !c.Shelf {
			continue
		}
		if Admits(p, c.Kind, nil) {
			out = append(out, c)
		}
	}
	return out
}
