package symbol

import (
	"context"
	"errors"
	"fmt"
)

// Provider produces the flat symbol list for a file.
type Provider interface {
	FetchSymbols(ctx context.Context, path string) ([]Symbol, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, path string) ([]Symbol, error)

// FetchSymbols calls f(ctx, path).
func (f ProviderFunc) FetchSymbols(ctx context.Context, path string) ([]Symbol, error) {
	return f(ctx, path)
}

// ErrFetch matches any *FetchError via errors.Is.
var ErrFetch = errors.New("symbol fetch failed")

// FetchError is returned when a Provider cannot produce a catalog.
type FetchError struct {
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch symbols for %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Catalog is an immutable snapshot of the symbols of one file.
type Catalog struct {
	path    string
	symbols []Symbol
}

// NewCatalog wraps syms for path. The slice is copied; later changes to syms
// do not affect the catalog.
func NewCatalog(path string, syms []Symbol) *Catalog {
	cp := make([]Symbol, len(syms))
	copy(cp, syms)
	return &Catalog{path: path, symbols: cp}
}

// Fetch asks p for the symbols of path and wraps them in a Catalog. There is
// no retry; every failure comes back as a *FetchError.
func Fetch(ctx context.Context, p Provider, path string) (*Catalog, error) {
	syms, err := p.FetchSymbols(ctx, path)
	if err != nil {
		return nil, &FetchError{Path: path, Err: err}
	}
	return NewCatalog(path, syms), nil
}

// Path returns the file the catalog was fetched for.
func (c *Catalog) Path() string { return c.path }

// Len returns the number of symbols.
func (c *Catalog) Len() int { return len(c.symbols) }

// At returns the i-th symbol in catalog order.
func (c *Catalog) At(i int) Symbol { return c.symbols[i] }

// All returns a copy of every symbol in catalog order.
func (c *Catalog) All() []Symbol {
	out := make([]Symbol, len(c.symbols))
	copy(out, c.symbols)
	return out
}

// Filter returns the symbols for which keep returns true, in catalog order.
func (c *Catalog) Filter(keep func(Symbol) bool) []Symbol {
	var out []Symbol
	for _, s := range c.symbols {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
