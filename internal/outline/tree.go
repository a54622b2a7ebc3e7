// Package outline presents a flat symbol catalog as a navigable tree.
//
// The hierarchy is reconstructed from container names alone: a symbol's
// children are the catalog entries whose ContainerName equals the symbol's
// qualified name. Every query rescans the catalog; nothing is indexed, so a
// Tree can never disagree with the Catalog it was built from.
package outline

import (
	"errors"

	"github.com/xonecas/outline/internal/symbol"
)

// ErrUnsupported is returned by Tree.Parent. Container names cannot be
// inverted into a unique parent, so callers that need ancestry must track it
// while walking down from the roots.
var ErrUnsupported = errors.New("outline: operation not supported")

// Tree answers structural queries over one Catalog.
type Tree struct {
	cat *symbol.Catalog
}

// New returns a tree view of cat.
func New(cat *symbol.Catalog) *Tree {
	return &Tree{cat: cat}
}

// Catalog returns the underlying catalog.
func (t *Tree) Catalog() *symbol.Catalog { return t.cat }

// QualifiedName joins the container path and the symbol's own name.
func QualifiedName(s symbol.Symbol) string {
	if s.ContainerName == "" {
		return s.Name
	}
	return s.ContainerName + "." + s.Name
}

// Roots returns the symbols whose container kind is the root marker.
func (t *Tree) Roots() []symbol.Symbol {
	return t.cat.Filter(func(s symbol.Symbol) bool {
		return s.ContainerKind == symbol.RootKind
	})
}

// Children returns the symbols directly contained by parent, in catalog order.
func (t *Tree) Children(parent symbol.Symbol) []symbol.Symbol {
	name := QualifiedName(parent)
	return t.cat.Filter(func(s symbol.Symbol) bool {
		return s.ContainerName == name
	})
}

// HasChildren reports whether Children(parent) is non-empty.
func (t *Tree) HasChildren(parent symbol.Symbol) bool {
	return len(t.Children(parent)) > 0
}

// Parent always fails with ErrUnsupported.
func (t *Tree) Parent(symbol.Symbol) (symbol.Symbol, error) {
	return symbol.Symbol{}, ErrUnsupported
}

// Find returns every symbol whose qualified name equals qualified.
func (t *Tree) Find(qualified string) []symbol.Symbol {
	return t.cat.Filter(func(s symbol.Symbol) bool {
		return QualifiedName(s) == qualified
	})
}

// WalkFunc is called for each node of a walk. depth is 0 for roots.
type WalkFunc func(depth int, s symbol.Symbol) error

// SkipChildren can be returned from a WalkFunc to skip the node's subtree.
var SkipChildren = errors.New("skip children")

// Walk visits the fully expanded tree depth-first in pre-order, starting at
// Roots. A child's qualified name is strictly longer than its parent's, so
// the walk terminates on any catalog. Orphans are never visited.
func (t *Tree) Walk(fn WalkFunc) error {
	for _, r := range t.Roots() {
		if err := t.walk(0, r, fn); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) walk(depth int, s symbol.Symbol, fn WalkFunc) error {
	if err := fn(depth, s); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, c := range t.Children(s) {
		if err := t.walk(depth+1, c, fn); err != nil {
			return err
		}
	}
	return nil
}
