// Package highlight colors source windows with Chroma for terminal output.
package highlight

import (
	"slices"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultTheme is used when no theme is configured.
const DefaultTheme = "monokai"

// Span is a half-open byte range of the highlighted text.
type Span struct {
	Start, End int
}

// Lines highlights text with the given Chroma language and theme and returns
// one rendered string per line of text. Bytes inside mark are drawn in
// reverse video. Unknown languages are tokenised as plain text.
func Lines(text, language, theme string, mark Span) []string {
	want := strings.Count(text, "\n") + 1
	lex := lexers.Get(language)
	if lex == nil {
		lex = lexers.Fallback
	}
	it, err := chroma.Coalesce(lex).Tokenise(nil, text)
	if err != nil {
		return strings.Split(text, "\n")
	}

	r := renderer{style: styles.Get(theme), mark: mark, cache: make(map[chroma.TokenType]lipgloss.Style)}
	for tok := it(); tok != chroma.EOF; tok = it() {
		st := r.tokenStyle(tok.Type)
		for _, piece := range strings.SplitAfter(tok.Value, "\n") {
			body := strings.TrimSuffix(piece, "\n")
			r.paint(body, st)
			if len(body) < len(piece) {
				r.newline()
			}
		}
	}
	r.newline()

	// Lexers may append a trailing newline of their own.
	if len(r.lines) > want {
		r.lines = r.lines[:want]
	}
	if len(r.lines) != want {
		return strings.Split(text, "\n")
	}
	return r.lines
}

type renderer struct {
	style *chroma.Style
	mark  Span
	cache map[chroma.TokenType]lipgloss.Style

	off   int // byte offset of the next painted byte
	cur   strings.Builder
	lines []string
}

func (r *renderer) tokenStyle(tt chroma.TokenType) lipgloss.Style {
	if st, ok := r.cache[tt]; ok {
		return st
	}
	e := r.style.Get(tt)
	st := lipgloss.NewStyle().TabWidth(lipgloss.NoTabConversion)
	if e.Colour.IsSet() {
		st = st.Foreground(lipgloss.Color(e.Colour.String()))
	}
	if e.Bold == chroma.Yes {
		st = st.Bold(true)
	}
	if e.Italic == chroma.Yes {
		st = st.Italic(true)
	}
	if e.Underline == chroma.Yes {
		st = st.Underline(true)
	}
	r.cache[tt] = st
	return st
}

// paint writes s, splitting it where it crosses the mark.
func (r *renderer) paint(s string, st lipgloss.Style) {
	lo := min(max(r.mark.Start-r.off, 0), len(s))
	hi := min(max(r.mark.End-r.off, lo), len(s))
	r.write(s[:lo], st)
	r.write(s[lo:hi], st.Reverse(true))
	r.write(s[hi:], st)
	r.off += len(s)
}

func (r *renderer) write(s string, st lipgloss.Style) {
	if s != "" {
		r.cur.WriteString(st.Render(s))
	}
}

func (r *renderer) newline() {
	r.lines = append(r.lines, r.cur.String())
	r.cur.Reset()
	r.off++
}

// Palette holds the outline colors derived from a Chroma theme.
type Palette struct {
	Fg     string // primary text
	Dim    string // gutters and ranges
	Muted  string // kinds
	Accent string // containers and the selection caret
}

// ThemePalette derives a palette from a Chroma theme name. Unknown themes
// get a neutral gray ramp.
func ThemePalette(theme string) Palette {
	sty := styles.Get(theme)
	if sty == nil {
		return Palette{Fg: "#c8c8c8", Dim: "#323232", Muted: "#5a5a5a", Accent: "#00dfff"}
	}
	bg := chroma.NewColour(0, 0, 0)
	fg := chroma.NewColour(0xc8, 0xc8, 0xc8)
	e := sty.Get(chroma.Background)
	if e.Background.IsSet() {
		bg = e.Background
	}
	if e.Colour.IsSet() {
		fg = e.Colour
	}
	return Palette{
		Fg:     fg.String(),
		Dim:    mix(bg, fg, 0.25).String(),
		Muted:  mix(bg, fg, 0.45).String(),
		Accent: accent(sty, fg).String(),
	}
}

// accent returns the most saturated token color in the theme. Ties go to
// the lowest token type.
func accent(sty *chroma.Style, fallback chroma.Colour) chroma.Colour {
	types := sty.Types()
	slices.Sort(types)
	best, bestSat := fallback, 0.0
	for _, tt := range types {
		c := sty.Get(tt).Colour
		if !c.IsSet() {
			continue
		}
		hi := max(c.Red(), c.Green(), c.Blue())
		lo := min(c.Red(), c.Green(), c.Blue())
		if hi == 0 {
			continue
		}
		if sat := float64(hi-lo) / float64(hi); sat > bestSat {
			best, bestSat = c, sat
		}
	}
	return best
}

// mix moves from a toward b by t.
func mix(a, b chroma.Colour, t float64) chroma.Colour {
	ch := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return chroma.NewColour(ch(a.Red(), b.Red()), ch(a.Green(), b.Green()), ch(a.Blue(), b.Blue()))
}
