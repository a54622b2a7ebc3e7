// Package shscript outlines shell scripts: function definitions, nested
// functions and the variables a script assigns outside any function.
package shscript

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"mvdan.cc/sh/v3/syntax"

	"github.com/xonecas/outline/internal/symbol"
)

var byExt = map[string]syntax.LangVariant{
	".sh":   syntax.LangBash,
	".bash": syntax.LangBash,
	".bats": syntax.LangBats,
	".ksh":  syntax.LangMirBSDKorn,
	".mksh": syntax.LangMirBSDKorn,
}

// Supported reports whether path looks like a shell script, by extension or,
// failing that, by its shebang line.
func Supported(path string) bool {
	_, ok := variantFor(path, nil)
	return ok
}

func variantFor(path string, src []byte) (syntax.LangVariant, bool) {
	if v, ok := byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return v, true
	}
	if src == nil {
		f, err := os.Open(path) //nolint:gosec // path comes from the caller
		if err != nil {
			return 0, false
		}
		defer f.Close() //nolint:errcheck
		line, _ := bufio.NewReader(f).ReadString('\n')
		src = []byte(line)
	}
	return shebang(src)
}

// shebang picks a variant from a "#!" first line.
func shebang(src []byte) (syntax.LangVariant, bool) {
	if !bytes.HasPrefix(src, []byte("#!")) {
		return 0, false
	}
	line := string(src[2:])
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}
	interp := filepath.Base(fields[0])
	if interp == "env" && len(fields) > 1 {
		interp = fields[1]
	}
	switch interp {
	case "bash", "zsh":
		return syntax.LangBash, true
	case "sh", "dash", "ash":
		return syntax.LangPOSIX, true
	case "mksh", "ksh":
		return syntax.LangMirBSDKorn, true
	case "bats":
		return syntax.LangBats, true
	}
	return 0, false
}

// Provider is a symbol.Provider for shell scripts.
type Provider struct{}

// NewProvider returns a shell script provider.
func NewProvider() *Provider { return &Provider{} }

// FetchSymbols reads and parses path.
func (p *Provider) FetchSymbols(ctx context.Context, path string) ([]symbol.Symbol, error) {
	src, err := os.ReadFile(path) //nolint:gosec // path comes from the caller
	if err != nil {
		return nil, err
	}
	return ParseSource(ctx, path, src)
}

// ParseSource returns the symbols of a shell script in source order.
func ParseSource(ctx context.Context, path string, src []byte) ([]symbol.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	variant, ok := variantFor(path, src)
	if !ok {
		variant = syntax.LangBash
	}
	f, err := syntax.NewParser(syntax.Variant(variant)).Parse(bytes.NewReader(src), path)
	if err != nil {
		return nil, fmt.Errorf("shscript: parse %s: %w", path, err)
	}

	x := &extractor{}
	for _, stmt := range f.Stmts {
		x.walk(stmt, "", symbol.RootKind)
	}
	log.Debug().Str("file", path).Stringer("variant", variant).Int("count", len(x.syms)).Msg("shscript: parsed")
	return x.syms, nil
}

type extractor struct {
	syms []symbol.Symbol
}

func (x *extractor) add(name string, kind symbol.Kind, container string, parent symbol.Kind, node syntax.Node) {
	x.syms = append(x.syms, symbol.Symbol{
		Name:          name,
		Kind:          kind,
		ContainerName: container,
		ContainerKind: parent,
		Range:         symbol.Range{Start: int(node.Pos().Offset()), End: int(node.End().Offset())},
		Icon:          kind.Icon(),
	})
}

func (x *extractor) walk(node syntax.Node, container string, parent symbol.Kind) {
	syntax.Walk(node, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.FuncDecl:
			if n.Name == nil || n.Body == nil {
				return true
			}
			x.add(n.Name.Value, symbol.KindFunction, container, parent, n)
			own := n.Name.Value
			if container != "" {
				own = container + "." + own
			}
			x.walk(n.Body, own, symbol.KindFunction)
			return false
		case *syntax.CallExpr:
			// Only bare assignments declare variables; "A=1 cmd" scopes A to cmd.
			if parent == symbol.RootKind && len(n.Args) == 0 {
				x.assigns(n.Assigns, symbol.KindVariable, container, parent)
			}
		case *syntax.DeclClause:
			if parent != symbol.RootKind || n.Variant == nil {
				return true
			}
			switch n.Variant.Value {
			case "readonly":
				x.assigns(n.Args, symbol.KindConstant, container, parent)
			case "export", "declare", "typeset":
				x.assigns(n.Args, symbol.KindVariable, container, parent)
			}
		}
		return true
	})
}

func (x *extractor) assigns(as []*syntax.Assign, kind symbol.Kind, container string, parent symbol.Kind) {
	for _, a := range as {
		if a.Name == nil {
			continue
		}
		x.add(a.Name.Value, kind, container, parent, a)
	}
}
