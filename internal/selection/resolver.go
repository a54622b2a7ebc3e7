// Package selection maps a picked symbol onto the text range of its bare name
// and moves the document selection there.
package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xonecas/outline/internal/symbol"
)

// Document is the text the catalog was computed from.
type Document interface {
	// ReadText returns length bytes starting at start. It fails when the
	// range is not valid for the current document state.
	ReadText(start, length int) (string, error)
	// SelectAndReveal selects [start, start+length) and scrolls it into view.
	SelectAndReveal(start, length int) error
}

var (
	// ErrNameNotFound matches any *NameNotFoundError.
	ErrNameNotFound = errors.New("name not found in range")
	// ErrStaleRange matches any *StaleRangeError.
	ErrStaleRange = errors.New("stale symbol range")
)

// NameNotFoundError reports a symbol whose name does not occur in its own
// range. It points at inconsistent provider data.
type NameNotFoundError struct {
	Name  string
	Range symbol.Range
}

func (e *NameNotFoundError) Error() string {
	return fmt.Sprintf("selection: %q not found in range %s", e.Name, e.Range)
}

// Is reports whether target is ErrNameNotFound.
func (e *NameNotFoundError) Is(target error) bool { return target == ErrNameNotFound }

// StaleRangeError reports offsets the document no longer accepts, usually
// because it was edited after the catalog was fetched. Refresh the catalog to
// recover.
type StaleRangeError struct {
	Start  int
	Length int
	Err    error
}

func (e *StaleRangeError) Error() string {
	return fmt.Sprintf("selection: range [%d,%d) is stale: %v", e.Start, e.Start+e.Length, e.Err)
}

func (e *StaleRangeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStaleRange.
func (e *StaleRangeError) Is(target error) bool { return target == ErrStaleRange }

// Selection is an absolute byte range in the document.
type Selection struct {
	Start  int
	Length int
}

// End returns the exclusive end offset.
func (s Selection) End() int { return s.Start + s.Length }

// Resolver turns symbols into selections on one document.
type Resolver struct {
	doc Document
}

// New returns a resolver bound to doc.
func New(doc Document) *Resolver {
	return &Resolver{doc: doc}
}

// Locate finds the first occurrence of the symbol's name inside its range.
// The document is only read, never modified.
func (r *Resolver) Locate(s symbol.Symbol) (Selection, error) {
	text, err := r.doc.ReadText(s.Range.Start, s.Range.Len())
	if err != nil {
		return Selection{}, &StaleRangeError{Start: s.Range.Start, Length: s.Range.Len(), Err: err}
	}
	// An empty name would match at offset zero.
	i := strings.Index(text, s.Name)
	if s.Name == "" || i < 0 {
		return Selection{}, &NameNotFoundError{Name: s.Name, Range: s.Range}
	}
	return Selection{Start: s.Range.Start + i, Length: len(s.Name)}, nil
}

// Select locates the symbol's name and asks the document to select and
// reveal it. Nothing is selected when Locate fails.
func (r *Resolver) Select(s symbol.Symbol) (Selection, error) {
	sel, err := r.Locate(s)
	if err != nil {
		return Selection{}, err
	}
	if err := r.doc.SelectAndReveal(sel.Start, sel.Length); err != nil {
		return Selection{}, &StaleRangeError{Start: sel.Start, Length: sel.Length, Err: err}
	}
	return sel, nil
}
