// Package symbolfile reads and writes symbol catalogs as YAML, so outlines can
// come from tools that dump symbols rather than from a parser.
//
// A catalog for src/app.ts lives next to it as src/app.ts.outline.yaml:
//
//	file: app.ts
//	symbols:
//	  - name: Greeter
//	    kind: class
//	    container_name: ""
//	    container_kind: script
//	    range: {start: 0, end: 120}
package symbolfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/xonecas/outline/internal/symbol"
)

// Suffix is appended to a source path to find its catalog file.
const Suffix = ".outline.yaml"

// File is the on-disk document.
type File struct {
	Path    string          `yaml:"file,omitempty"`
	Symbols []symbol.Symbol `yaml:"symbols"`
}

// SidecarPath returns the catalog file for a source path. Paths that already
// name a catalog file are returned as is.
func SidecarPath(path string) string {
	if strings.HasSuffix(path, Suffix) {
		return path
	}
	return path + Suffix
}

// Exists reports whether path has a catalog file.
func Exists(path string) bool {
	_, err := os.Stat(SidecarPath(path))
	return err == nil
}

// Decode reads a catalog document. Unknown keys and invalid symbols are
// errors. Top-level symbols that omit container_kind get the root marker, and
// a missing icon is derived from the kind.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("symbolfile: decode: %w", err)
	}

	var errs []error
	for i := range f.Symbols {
		s := &f.Symbols[i]
		if s.ContainerName == "" && s.ContainerKind == "" {
			s.ContainerKind = symbol.RootKind
		}
		if s.Icon == "" && s.Kind != "" {
			s.Icon = s.Kind.Icon()
		}
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("symbols[%d]: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("symbolfile: %w", errors.Join(errs...))
	}
	return &f, nil
}

// Encode writes cat as a catalog document.
func Encode(w io.Writer, cat *symbol.Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	f := File{Path: cat.Path(), Symbols: cat.All()}
	if f.Symbols == nil {
		f.Symbols = []symbol.Symbol{}
	}
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("symbolfile: encode: %w", err)
	}
	return enc.Close()
}

// Load reads the catalog file for path.
func Load(path string) (*File, error) {
	fp, err := os.Open(SidecarPath(path)) //nolint:gosec // path comes from the caller
	if err != nil {
		return nil, err
	}
	defer fp.Close() //nolint:errcheck
	return Decode(fp)
}

// Provider is a symbol.Provider over catalog files.
type Provider struct{}

// NewProvider returns a catalog file provider.
func NewProvider() *Provider { return &Provider{} }

// FetchSymbols loads the catalog file for path.
func (p *Provider) FetchSymbols(ctx context.Context, path string) ([]symbol.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("file", SidecarPath(path)).Int("count", len(f.Symbols)).Msg("symbolfile: loaded")
	return f.Symbols, nil
}
