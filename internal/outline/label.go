package outline

import "github.com/xonecas/outline/internal/symbol"

// Label is what a tree view shows for a node.
type Label struct {
	Text string
	Icon string
}

// LabelOf returns the symbol's name and icon, undecorated.
func LabelOf(s symbol.Symbol) Label {
	return Label{Text: s.Name, Icon: s.Icon}
}

// Label returns LabelOf(s).
func (t *Tree) Label(s symbol.Symbol) Label { return LabelOf(s) }
