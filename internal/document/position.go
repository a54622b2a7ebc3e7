package document

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// OffsetUTF16 converts a 0-indexed line and UTF-16 code unit column, the
// position encoding language servers use by default, into a byte offset.
// A column past the end of the line clamps to the line end.
func (b *Buffer) OffsetUTF16(line, char int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	text, err := b.lineText(line)
	if err != nil {
		return 0, err
	}
	if char < 0 {
		return 0, fmt.Errorf("%w: column %d", ErrOutOfBounds, char)
	}
	start := b.lines[line]
	units := 0
	for i, r := range text {
		if units >= char {
			return start + i, nil
		}
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1 // invalid UTF-8 decodes to RuneError, one unit
		}
		units += n
	}
	return start + len(text), nil
}

// ColumnUTF16 is the inverse of OffsetUTF16 for the column part.
func (b *Buffer) ColumnUTF16(offset int) (line, char int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(offset, 0); err != nil {
		return 0, 0, err
	}
	line = b.lineOf(offset)
	seg := b.text[b.lines[line]:offset]
	for len(seg) > 0 {
		r, size := utf8.DecodeRuneInString(seg)
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		char += n
		seg = seg[size:]
	}
	return line, char, nil
}
