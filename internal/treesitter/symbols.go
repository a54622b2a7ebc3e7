// Package treesitter extracts outline symbols from source files with
// tree-sitter grammars. Declarations are flattened into catalog entries whose
// container path mirrors the lexical nesting of the source.
package treesitter

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/xonecas/outline/internal/symbol"
)

// rule describes how one node type becomes a symbol.
type rule struct {
	kind symbol.Kind

	// kindOf overrides kind, given the kind of the enclosing container.
	kindOf func(n *sitter.Node, parent symbol.Kind) symbol.Kind
	// name returns the identifier node; defaults to the "name" field.
	name func(n *sitter.Node) *sitter.Node
	// scope overrides the container the symbol is attached to.
	scope func(n *sitter.Node, src []byte, container string, parent symbol.Kind) (string, symbol.Kind)

	nests  bool          // declarations inside are children of this symbol
	leaf   bool          // do not look inside the node at all
	multi  bool          // every "name" field is a symbol sharing the node's range
	within []symbol.Kind // only emit when the container kind is one of these
}

func (r rule) allowed(parent symbol.Kind) bool {
	if len(r.within) == 0 {
		return true
	}
	for _, k := range r.within {
		if k == parent {
			return true
		}
	}
	return false
}

func (r rule) nameNode(n *sitter.Node) *sitter.Node {
	if r.name != nil {
		return r.name(n)
	}
	return n.ChildByFieldName("name")
}

// nameNodes returns the identifiers a node declares, in source order.
func (r rule) nameNodes(n *sitter.Node) []*sitter.Node {
	if !r.multi {
		if nn := r.nameNode(n); nn != nil {
			return []*sitter.Node{nn}
		}
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == "name" {
			out = append(out, n.Child(i))
		}
	}
	return out
}

// language binds a grammar to its declaration rules.
type language struct {
	name  string
	lang  func() *sitter.Language
	rules map[string]rule
}

func field(name string) func(*sitter.Node) *sitter.Node {
	return func(n *sitter.Node) *sitter.Node { return n.ChildByFieldName(name) }
}

func self(n *sitter.Node) *sitter.Node { return n }

var goRules = map[string]rule{
	"package_clause": {
		kind: symbol.KindPackage,
		leaf: true,
		name: func(n *sitter.Node) *sitter.Node {
			// package_identifier is a named child, not a field.
			if nc := n.NamedChild(0); nc != nil && nc.Type() == "package_identifier" {
				return nc
			}
			return nil
		},
	},
	"function_declaration": {kind: symbol.KindFunction, leaf: true},
	"method_declaration":   {kind: symbol.KindMethod, leaf: true, scope: goReceiverScope},
	"type_spec":            {kindOf: goTypeKind, nests: true},
	"type_alias":           {kind: symbol.KindType, leaf: true},
	"field_declaration":    {kind: symbol.KindField, leaf: true, multi: true},
	"method_elem":          {kind: symbol.KindMethod, leaf: true},
	"method_spec":          {kind: symbol.KindMethod, leaf: true},
	"const_spec":           {kind: symbol.KindConstant, leaf: true, multi: true},
	"var_spec":             {kind: symbol.KindVariable, leaf: true, multi: true},
}

// goTypeKind classifies a type_spec by its underlying type.
func goTypeKind(n *sitter.Node, _ symbol.Kind) symbol.Kind {
	t := n.ChildByFieldName("type")
	if t == nil {
		return symbol.KindType
	}
	switch t.Type() {
	case "struct_type":
		return symbol.KindStruct
	case "interface_type":
		return symbol.KindInterface
	default:
		return symbol.KindType
	}
}

// goReceiverScope attaches methods to their receiver's base type, so
// "func (s *Server) Start()" becomes Server.Start.
func goReceiverScope(n *sitter.Node, src []byte, container string, parent symbol.Kind) (string, symbol.Kind) {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return container, parent
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		child := recv.NamedChild(i)
		if child.Type() != "parameter_declaration" {
			continue
		}
		typeNode := child.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		name := strings.TrimLeft(typeNode.Content(src), "*")
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		if name != "" {
			return name, symbol.KindType
		}
	}
	return container, parent
}

// scriptRules are shared by JavaScript and TypeScript.
var scriptRules = map[string]rule{
	"class_declaration":              {kind: symbol.KindClass, nests: true},
	"abstract_class_declaration":     {kind: symbol.KindClass, nests: true},
	"method_definition":              {kind: symbol.KindMethod, nests: true},
	"function_declaration":           {kind: symbol.KindFunction, nests: true},
	"generator_function_declaration": {kind: symbol.KindFunction, nests: true},
	"public_field_definition":        {kind: symbol.KindProperty, leaf: true},
	"field_definition":               {kind: symbol.KindProperty, leaf: true, name: field("property")},
	"variable_declarator": {
		kind:   symbol.KindVariable,
		leaf:   true,
		within: []symbol.Kind{symbol.RootKind, symbol.KindModule},
	},
}

var typeScriptOnlyRules = map[string]rule{
	"interface_declaration":     {kind: symbol.KindInterface, nests: true},
	"property_signature":        {kind: symbol.KindProperty, leaf: true},
	"method_signature":          {kind: symbol.KindMethod, leaf: true},
	"abstract_method_signature": {kind: symbol.KindMethod, leaf: true},
	"type_alias_declaration":    {kind: symbol.KindType, leaf: true},
	"enum_declaration":          {kind: symbol.KindEnum, nests: true},
	"enum_assignment":           {kind: symbol.KindConstant, leaf: true},
	"property_identifier": {
		kind:   symbol.KindConstant,
		leaf:   true,
		name:   self,
		within: []symbol.Kind{symbol.KindEnum},
	},
	"internal_module": {kind: symbol.KindModule, nests: true},
	"module":          {kind: symbol.KindModule, nests: true},
}

var pythonRules = map[string]rule{
	"class_definition": {kind: symbol.KindClass, nests: true},
	"function_definition": {
		nests: true,
		kindOf: func(_ *sitter.Node, parent symbol.Kind) symbol.Kind {
			if parent == symbol.KindClass {
				return symbol.KindMethod
			}
			return symbol.KindFunction
		},
	},
	"assignment": {
		kind:   symbol.KindVariable,
		leaf:   true,
		within: []symbol.Kind{symbol.RootKind, symbol.KindClass},
		name: func(n *sitter.Node) *sitter.Node {
			if left := n.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
				return left
			}
			return nil
		},
	},
}

func merge(maps ...map[string]rule) map[string]rule {
	out := make(map[string]rule)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

var (
	langGo         = &language{name: "go", lang: golang.GetLanguage, rules: goRules}
	langJavaScript = &language{name: "javascript", lang: javascript.GetLanguage, rules: scriptRules}
	langTypeScript = &language{name: "typescript", lang: typescript.GetLanguage, rules: merge(scriptRules, typeScriptOnlyRules)}
	langTSX        = &language{name: "tsx", lang: tsx.GetLanguage, rules: merge(scriptRules, typeScriptOnlyRules)}
	langPython     = &language{name: "python", lang: python.GetLanguage, rules: pythonRules}
)

var byExt = map[string]*language{
	".go":  langGo,
	".js":  langJavaScript,
	".jsx": langJavaScript,
	".mjs": langJavaScript,
	".cjs": langJavaScript,
	".ts":  langTypeScript,
	".mts": langTypeScript,
	".cts": langTypeScript,
	".tsx": langTSX,
	".py":  langPython,
	".pyi": langPython,
}

// langForPath returns the language for a file, or nil.
func langForPath(path string) *language {
	return byExt[strings.ToLower(filepath.Ext(path))]
}

// Supported returns true if the file extension has a tree-sitter grammar.
func Supported(path string) bool {
	return langForPath(path) != nil
}

// Language returns the grammar name used for path, or "".
func Language(path string) string {
	if l := langForPath(path); l != nil {
		return l.name
	}
	return ""
}
