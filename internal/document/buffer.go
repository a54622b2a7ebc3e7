// Package document provides an in-memory text buffer with a selection and a
// scroll position. It is the Document Accessor the selection resolver drives
// when no editor is attached: the CLI, the watcher and the tests all use it.
package document

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrOutOfBounds is returned for offsets outside the current text.
var ErrOutOfBounds = errors.New("document: offset out of bounds")

// RevealFunc is called after a selection has been moved and scrolled into
// view. top is the first visible line (0-indexed).
type RevealFunc func(v View)

// View describes the buffer right after a select-and-reveal.
type View struct {
	Text    string
	Version int
	Start   int // selection start offset
	Length  int // selection length in bytes
	Line    int // selection line, 0-indexed
	Col     int // selection byte column, 0-indexed
	Top     int // first visible line
	Height  int // viewport height in lines, 0 = unbounded
}

// Buffer is a mutable document. The zero value is an empty document.
type Buffer struct {
	mu      sync.Mutex
	path    string
	text    string
	lines   []int // byte offset of each line start
	version int

	selStart int
	selLen   int
	top      int
	height   int

	onReveal RevealFunc
}

// New creates a buffer holding text.
func New(text string) *Buffer {
	b := &Buffer{}
	b.setText(text)
	return b
}

// Open reads path into a new buffer.
func Open(path string) (*Buffer, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("document: read %s: %w", path, err)
	}
	b := New(string(data))
	b.path = path
	return b, nil
}

// Path returns the file the buffer was opened from, if any.
func (b *Buffer) Path() string { return b.path }

// SetRevealFunc registers the function called after each SelectAndReveal.
func (b *Buffer) SetRevealFunc(fn RevealFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReveal = fn
}

// SetHeight sets the viewport height used for scrolling. 0 disables scrolling.
func (b *Buffer) SetHeight(h int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.height = h
	b.clampScroll(b.lineOf(b.selStart))
}

// Text returns the whole document.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Version is incremented by every edit.
func (b *Buffer) Version() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// ReadText returns length bytes starting at start.
func (b *Buffer) ReadText(start, length int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(start, length); err != nil {
		return "", err
	}
	return b.text[start : start+length], nil
}

// SelectAndReveal moves the selection to [start, start+length) and scrolls
// the viewport so the selection's line is visible.
func (b *Buffer) SelectAndReveal(start, length int) error {
	b.mu.Lock()
	if err := b.check(start, length); err != nil {
		b.mu.Unlock()
		return err
	}
	b.selStart, b.selLen = start, length
	line := b.lineOf(start)
	b.clampScroll(line)
	v := View{
		Text:    b.text,
		Version: b.version,
		Start:   start,
		Length:  length,
		Line:    line,
		Col:     start - b.lines[line],
		Top:     b.top,
		Height:  b.height,
	}
	fn := b.onReveal
	b.mu.Unlock()

	if fn != nil {
		fn(v)
	}
	return nil
}

// Selection returns the current selection.
func (b *Buffer) Selection() (start, length int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selStart, b.selLen
}

// Top returns the first visible line.
func (b *Buffer) Top() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.top
}

// SetText replaces the whole document.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setText(text)
	b.version++
}

// Replace substitutes [start, start+length) with text. The selection is
// reset to an empty caret at the end of the inserted text.
func (b *Buffer) Replace(start, length int, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(start, length); err != nil {
		return err
	}
	b.setText(b.text[:start] + text + b.text[start+length:])
	b.version++
	b.selStart, b.selLen = start+len(text), 0
	b.clampScroll(b.lineOf(b.selStart))
	return nil
}

// LineCol converts an offset to a 0-indexed line and byte column.
func (b *Buffer) LineCol(offset int) (line, col int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(offset, 0); err != nil {
		return 0, 0, err
	}
	line = b.lineOf(offset)
	return line, offset - b.lines[line], nil
}

// Line returns the text of a 0-indexed line without its newline.
func (b *Buffer) Line(n int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lineText(n)
}

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// ---------------------------------------------------------------------------
// Internal helpers, called with b.mu held
// ---------------------------------------------------------------------------

func (b *Buffer) setText(text string) {
	b.text = text
	b.lines = b.lines[:0]
	b.lines = append(b.lines, 0)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			b.lines = append(b.lines, i+1)
		}
	}
	if b.selStart+b.selLen > len(text) {
		b.selStart, b.selLen = 0, 0
	}
}

func (b *Buffer) check(start, length int) error {
	if b.lines == nil {
		b.setText(b.text)
	}
	if start < 0 || length < 0 || start+length > len(b.text) {
		return fmt.Errorf("%w: [%d,%d) in %d bytes", ErrOutOfBounds, start, start+length, len(b.text))
	}
	return nil
}

// lineOf returns the 0-indexed line containing offset.
func (b *Buffer) lineOf(offset int) int {
	lo, hi := 0, len(b.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.lines[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

func (b *Buffer) lineText(n int) (string, error) {
	if b.lines == nil {
		b.setText(b.text)
	}
	if n < 0 || n >= len(b.lines) {
		return "", fmt.Errorf("%w: line %d of %d", ErrOutOfBounds, n, len(b.lines))
	}
	end := len(b.text)
	if n+1 < len(b.lines) {
		end = b.lines[n+1] - 1
	}
	return strings.TrimSuffix(b.text[b.lines[n]:end], "\r"), nil
}

func (b *Buffer) clampScroll(line int) {
	if b.height <= 0 {
		b.top = 0
		return
	}
	if line < b.top {
		b.top = line
	}
	if line >= b.top+b.height {
		b.top = line - b.height + 1
	}
	maxTop := len(b.lines) - b.height
	if maxTop < 0 {
		maxTop = 0
	}
	if b.top > maxTop {
		b.top = maxTop
	}
	if b.top < 0 {
		b.top = 0
	}
}
