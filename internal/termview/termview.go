// Package termview prints outlines and revealed selections to a terminal.
package termview

import (
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/outline/internal/document"
	"github.com/xonecas/outline/internal/highlight"
	"github.com/xonecas/outline/internal/outline"
	"github.com/xonecas/outline/internal/symbol"
)

const (
	glyphOpen = "▾"
	glyphLeaf = "•"
	tabWidth  = 4
)

// Options controls rendering.
type Options struct {
	Color   bool
	Theme   string // chroma style name
	Context int    // lines shown above and below a revealed selection
}

// Printer writes outline views to w.
type Printer struct {
	w    io.Writer
	opts Options
	st   styles
}

type styles struct {
	container lipgloss.Style
	leaf      lipgloss.Style
	kind      lipgloss.Style
	rng       lipgloss.Style
	gutter    lipgloss.Style
	caret     lipgloss.Style
}

// New returns a printer. Colors come from the chroma theme.
func New(w io.Writer, opts Options) *Printer {
	if opts.Theme == "" {
		opts.Theme = highlight.DefaultTheme
	}
	if opts.Context < 0 {
		opts.Context = 0
	}
	pal := highlight.ThemePalette(opts.Theme)
	return &Printer{
		w:    w,
		opts: opts,
		st: styles{
			container: lipgloss.NewStyle().Foreground(lipgloss.Color(pal.Accent)).Bold(true),
			leaf:      lipgloss.NewStyle().Foreground(lipgloss.Color(pal.Fg)),
			kind:      lipgloss.NewStyle().Foreground(lipgloss.Color(pal.Muted)).Italic(true),
			rng:       lipgloss.NewStyle().Foreground(lipgloss.Color(pal.Dim)),
			gutter:    lipgloss.NewStyle().Foreground(lipgloss.Color(pal.Dim)),
			caret:     lipgloss.NewStyle().Foreground(lipgloss.Color(pal.Accent)).Bold(true),
		},
	}
}

// SetContext changes how many lines Reveal shows around a selection.
func (p *Printer) SetContext(n int) { p.opts.Context = max(0, n) }

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.opts.Color {
		return text
	}
	return s.Render(text)
}

// entry formats one node: glyph, name, kind and range.
func (p *Printer) entry(t *outline.Tree, s symbol.Symbol, name string) string {
	glyph, nameStyle := glyphLeaf, p.st.leaf
	if t.HasChildren(s) {
		glyph, nameStyle = glyphOpen, p.st.container
	}
	parts := []string{glyph, p.style(nameStyle, name)}
	if s.Kind != "" {
		parts = append(parts, p.style(p.st.kind, string(s.Kind)))
	}
	parts = append(parts, p.style(p.st.rng, s.Range.String()))
	return strings.Join(parts, " ")
}

// Tree writes the fully expanded outline, two spaces of indent per level.
func (p *Printer) Tree(t *outline.Tree) error {
	return t.Walk(func(depth int, s symbol.Symbol) error {
		_, err := fmt.Fprintln(p.w, strings.Repeat("  ", depth)+p.entry(t, s, s.Name))
		return err
	})
}

// Symbols writes one line per symbol using qualified names, as returned by
// Roots or Children.
func (p *Printer) Symbols(t *outline.Tree, syms []symbol.Symbol) error {
	for _, s := range syms {
		if _, err := fmt.Fprintln(p.w, p.entry(t, s, outline.QualifiedName(s))); err != nil {
			return err
		}
	}
	return nil
}

// Reveal writes the lines around a selection with a caret row under the
// selected text. With color on, the window is syntax highlighted and the
// selection is drawn in reverse video.
func (p *Printer) Reveal(v document.View, path string) error {
	lines := strings.Split(strings.TrimSuffix(v.Text, "\n"), "\n")
	line := min(v.Line, len(lines)-1)
	first := max(0, line-p.opts.Context)
	last := min(len(lines)-1, line+p.opts.Context)

	window := lines[first : last+1]
	if p.opts.Color {
		// Offset of the window's first byte in the document.
		base := 0
		for _, l := range lines[:first] {
			base += len(l) + 1
		}
		mark := highlight.Span{Start: v.Start - base, End: v.Start + v.Length - base}
		window = highlight.Lines(strings.Join(window, "\n"), highlight.DetectLanguage(path), p.opts.Theme, mark)
	}
	rendered := make([]string, 0, len(window))
	for _, l := range window {
		rendered = append(rendered, expandTabs(l))
	}

	width := len(fmt.Sprint(last + 1))
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d\n", path, v.Line+1, v.Col+1)
	for i, text := range rendered {
		n := first + i
		b.WriteString(p.style(p.st.gutter, fmt.Sprintf("%*d │", width, n+1)))
		if ansi.Strip(text) != "" {
			b.WriteString(" " + text)
		}
		b.WriteString("\n")
		if n == line {
			b.WriteString(p.caretRow(width, lines[line], v.Col, v.Length))
		}
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

// caretRow underlines the part of the selection that sits on its first line.
func (p *Printer) caretRow(width int, line string, col, length int) string {
	col = min(col, len(line))
	end := min(col+length, len(line))
	pad := ansi.StringWidth(expandTabs(line[:col]))
	n := max(1, ansi.StringWidth(expandTabs(line[col:end])))
	gutter := p.style(p.st.gutter, strings.Repeat(" ", width)+" │")
	return gutter + " " + strings.Repeat(" ", pad) + p.style(p.st.caret, strings.Repeat("^", n)) + "\n"
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

// RevealFunc returns a document.RevealFunc that prints every reveal.
func (p *Printer) RevealFunc(path string) document.RevealFunc {
	return func(v document.View) {
		if err := p.Reveal(v, path); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("termview: reveal")
		}
	}
}
