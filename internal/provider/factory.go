package provider

import (
	"github.com/xonecas/outline/internal/lsp"
	"github.com/xonecas/outline/internal/shscript"
	"github.com/xonecas/outline/internal/store"
	"github.com/xonecas/outline/internal/symbol"
	"github.com/xonecas/outline/internal/symbolfile"
	"github.com/xonecas/outline/internal/treesitter"
)

// Builtin provider names.
const (
	File       = "file"
	TreeSitter = "treesitter"
	Shell      = "shell"
	LSP        = "lsp"
	Snapshot   = "snapshot"
)

type source struct {
	symbol.Provider
	name    string
	handles func(path string) bool
}

// New wraps p as a Source named name. A nil handles never auto-selects.
func New(name string, handles func(path string) bool, p symbol.Provider) Source {
	return &source{Provider: p, name: name, handles: handles}
}

func (s *source) Name() string { return s.name }

func (s *source) Handles(path string) bool {
	return s.handles != nil && s.handles(path)
}

// Options selects the optional builtin providers.
type Options struct {
	// LSP enables the language server provider.
	LSP *lsp.Manager
	// Store enables the snapshot provider. It is never auto-selected.
	Store *store.Store
}

// Default registers the builtin providers. Auto selection prefers a catalog
// file next to the source, then tree-sitter, the shell parser and finally a
// language server.
func Default(opts Options) *Registry {
	r := NewRegistry()
	r.Register(New(File, symbolfile.Exists, symbolfile.NewProvider()))
	r.Register(New(TreeSitter, treesitter.Supported, treesitter.NewProvider()))
	r.Register(New(Shell, shscript.Supported, shscript.NewProvider()))
	if opts.LSP != nil {
		r.Register(New(LSP, opts.LSP.Handles, opts.LSP))
	}
	if opts.Store != nil {
		r.Register(New(Snapshot, nil, store.NewProvider(opts.Store)))
	}
	return r
}
