package treesitter

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xonecas/outline/internal/symbol"
)

// ErrUnsupported is returned for files without a grammar.
var ErrUnsupported = errors.New("treesitter: unsupported language")

// maxFileSize skips files that are too large to be worth outlining.
const maxFileSize = 4 << 20

// Provider is a symbol.Provider backed by tree-sitter.
type Provider struct{}

// NewProvider returns a tree-sitter provider.
func NewProvider() *Provider { return &Provider{} }

// FetchSymbols reads and parses path.
func (p *Provider) FetchSymbols(ctx context.Context, path string) ([]symbol.Symbol, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("treesitter: %s is too large (%d bytes)", path, info.Size())
	}
	src, err := os.ReadFile(path) //nolint:gosec // path comes from the caller
	if err != nil {
		return nil, err
	}
	return ParseSource(ctx, path, src)
}

// ParseSource parses src with the grammar chosen by path's extension and
// returns the flattened declarations in source order.
func ParseSource(ctx context.Context, path string, src []byte) ([]symbol.Symbol, error) {
	lang := langForPath(path)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.lang())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("treesitter: parse %s: %w", path, err)
	}
	defer tree.Close()

	x := &extractor{lang: lang, src: src}
	x.walk(tree.RootNode(), "", symbol.RootKind)

	log.Debug().Str("file", path).Str("lang", lang.name).Int("count", len(x.syms)).Msg("treesitter: parsed")
	return x.syms, nil
}

type extractor struct {
	lang *language
	src  []byte
	syms []symbol.Symbol
}

func (x *extractor) walk(n *sitter.Node, container string, parent symbol.Kind) {
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		x.visit(n.NamedChild(i), container, parent)
	}
}

func (x *extractor) visit(n *sitter.Node, container string, parent symbol.Kind) {
	r, ok := x.lang.rules[n.Type()]
	if !ok || !r.allowed(parent) {
		if !ok || !r.leaf {
			x.walk(n, container, parent)
		}
		return
	}

	var names []string
	for _, nn := range r.nameNodes(n) {
		if name := nn.Content(x.src); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		x.walk(n, container, parent)
		return
	}

	own, ownKind := container, parent
	if r.scope != nil {
		own, ownKind = r.scope(n, x.src, container, parent)
	}
	kind := r.kind
	if r.kindOf != nil {
		kind = r.kindOf(n, ownKind)
	}

	for _, name := range names {
		x.syms = append(x.syms, symbol.Symbol{
			Name:          name,
			Kind:          kind,
			ContainerName: own,
			ContainerKind: ownKind,
			Range:         symbol.Range{Start: int(n.StartByte()), End: int(n.EndByte())},
			Icon:          kind.Icon(),
		})
	}

	name := names[0]
	switch {
	case r.leaf:
	case r.nests:
		x.walk(n, qualify(own, name), kind)
	default:
		x.walk(n, container, parent)
	}
}

func qualify(container, name string) string {
	if container == "" {
		return name
	}
	return container + "." + name
}
