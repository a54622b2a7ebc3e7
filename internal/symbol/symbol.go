// Package symbol defines the flat symbol catalog that outlines are built from.
//
// A Catalog is a point-in-time snapshot of the symbols a Provider reported for
// one file. It is never transformed or re-indexed: order, duplicates and every
// field are kept exactly as received.
package symbol

import (
	"errors"
	"fmt"
)

// Kind is an opaque discriminator such as "class" or "function".
type Kind string

// RootKind is the container kind of symbols that sit directly under the file.
const RootKind Kind = "script"

// Common kinds emitted by the bundled providers.
const (
	KindModule    Kind = "module"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindEnum      Kind = "enum"
	KindStruct    Kind = "struct"
	KindType      Kind = "type"
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindField     Kind = "field"
	KindProperty  Kind = "property"
	KindVariable  Kind = "variable"
	KindConstant  Kind = "constant"
	KindPackage   Kind = "package"
	KindImport    Kind = "import"
)

// Icon returns the presentation handle for symbols of kind k.
func (k Kind) Icon() string { return "symbol-" + string(k) }

// Range is a half-open [Start, End) byte range into the document text.
type Range struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int { return r.End - r.Start }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// Symbol is one named code element.
type Symbol struct {
	Name          string `json:"name" yaml:"name"`
	Kind          Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	ContainerName string `json:"container_name" yaml:"container_name"` // dot-joined path, "" = top level
	ContainerKind Kind   `json:"container_kind" yaml:"container_kind"`
	Range         Range  `json:"range" yaml:"range"`
	Icon          string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Validate reports malformed symbols. Providers use it to reject bad input
// before a Catalog is built.
func (s Symbol) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is empty"))
	}
	if s.Range.Start < 0 {
		errs = append(errs, fmt.Errorf("range start %d is negative", s.Range.Start))
	}
	if s.Range.Start > s.Range.End {
		errs = append(errs, fmt.Errorf("range %s ends before it starts", s.Range))
	}
	if len(errs) > 0 {
		return fmt.Errorf("symbol %q: %w", s.Name, errors.Join(errs...))
	}
	return nil
}
