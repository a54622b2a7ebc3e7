package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReadText(t *testing.T) {
	b := New("package main\n\nfunc main() {}\n")

	got, err := b.ReadText(14, 4)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if got != "func" {
		t.Errorf("got %q, want %q", got, "func")
	}

	for _, tc := range []struct{ start, length int }{
		{-1, 2},
		{0, -1},
		{20, 100},
		{30, 0},
	} {
		if _, err := b.ReadText(tc.start, tc.length); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("ReadText(%d, %d) err = %v, want ErrOutOfBounds", tc.start, tc.length, err)
		}
	}

	// Reading the empty range at the very end is valid.
	if _, err := b.ReadText(29, 0); err != nil {
		t.Errorf("ReadText at end: %v", err)
	}
}

func TestSelectAndRevealScrolls(t *testing.T) {
	var text string
	for i := 0; i < 50; i++ {
		text += "line\n"
	}
	b := New(text)
	b.SetHeight(10)

	var views []View
	b.SetRevealFunc(func(v View) { views = append(views, v) })

	// Line 30 starts at offset 150.
	if err := b.SelectAndReveal(151, 2); err != nil {
		t.Fatalf("SelectAndReveal: %v", err)
	}
	start, length := b.Selection()
	if start != 151 || length != 2 {
		t.Errorf("selection = (%d,%d), want (151,2)", start, length)
	}
	if top := b.Top(); top != 21 {
		t.Errorf("top = %d, want 21", top)
	}

	// Moving back up scrolls so the line is the first visible one.
	if err := b.SelectAndReveal(5, 1); err != nil {
		t.Fatal(err)
	}
	if top := b.Top(); top != 1 {
		t.Errorf("top = %d, want 1", top)
	}

	if len(views) != 2 {
		t.Fatalf("got %d reveal callbacks, want 2", len(views))
	}
	if views[0].Line != 30 || views[0].Col != 1 {
		t.Errorf("first reveal at %d:%d, want 30:1", views[0].Line, views[0].Col)
	}
}

func TestSelectAndRevealRejectsBadRange(t *testing.T) {
	b := New("abc")
	called := false
	b.SetRevealFunc(func(View) { called = true })

	if err := b.SelectAndReveal(2, 5); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
	if called {
		t.Error("reveal callback fired for rejected selection")
	}
}

func TestReplaceBumpsVersion(t *testing.T) {
	b := New("const a = 1\nconst b = 2\n")
	if b.Version() != 0 {
		t.Fatalf("initial version = %d", b.Version())
	}
	if err := b.Replace(0, 11, ""); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if b.Version() != 1 {
		t.Errorf("version = %d, want 1", b.Version())
	}
	if got := b.Text(); got != "\nconst b = 2\n" {
		t.Errorf("text = %q", got)
	}
	// An offset that was valid before the edit is now out of range.
	if _, err := b.ReadText(20, 4); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("stale read err = %v, want ErrOutOfBounds", err)
	}
}

func TestLineCol(t *testing.T) {
	b := New("ab\ncd\n\nef")
	tests := []struct {
		offset, line, col int
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 1, 0},
		{4, 1, 1},
		{6, 2, 0},
		{7, 3, 0},
		{9, 3, 2},
	}
	for _, tt := range tests {
		line, col, err := b.LineCol(tt.offset)
		if err != nil {
			t.Fatalf("LineCol(%d): %v", tt.offset, err)
		}
		if line != tt.line || col != tt.col {
			t.Errorf("LineCol(%d) = %d:%d, want %d:%d", tt.offset, line, col, tt.line, tt.col)
		}
	}
	if n := b.LineCount(); n != 4 {
		t.Errorf("LineCount = %d, want 4", n)
	}
	if l, _ := b.Line(1); l != "cd" {
		t.Errorf("Line(1) = %q", l)
	}
}

func TestOffsetUTF16(t *testing.T) {
	// "é" is 2 bytes / 1 unit, "𝄞" is 4 bytes / 2 units.
	b := New("x\né𝄞foo\n")
	tests := []struct {
		line, char, want int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{1, 0, 2},
		{1, 1, 4},
		{1, 3, 8},
		{1, 4, 9},
		{1, 99, 11}, // clamps to end of line
	}
	for _, tt := range tests {
		got, err := b.OffsetUTF16(tt.line, tt.char)
		if err != nil {
			t.Fatalf("OffsetUTF16(%d,%d): %v", tt.line, tt.char, err)
		}
		if got != tt.want {
			t.Errorf("OffsetUTF16(%d,%d) = %d, want %d", tt.line, tt.char, got, tt.want)
		}
		if tt.char <= 6 {
			line, char, err := b.ColumnUTF16(got)
			if err != nil {
				t.Fatal(err)
			}
			if line != tt.line || char != tt.char {
				t.Errorf("ColumnUTF16(%d) = %d:%d, want %d:%d", got, line, char, tt.line, tt.char)
			}
		}
	}
	if _, err := b.OffsetUTF16(5, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("line past end err = %v", err)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.ts")
	if err := os.WriteFile(path, []byte("class A {}"), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b.Path() != path || b.Text() != "class A {}" {
		t.Errorf("unexpected buffer %q %q", b.Path(), b.Text())
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
