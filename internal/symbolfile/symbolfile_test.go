package symbolfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xonecas/outline/internal/symbol"
)

const doc = `file: app.ts
symbols:
  - name: Greeter
    kind: class
    range: {start: 0, end: 60}
  - name: greet
    kind: method
    container_name: Greeter
    container_kind: class
    range: {start: 20, end: 58}
    icon: custom-icon
`

func TestDecode(t *testing.T) {
	f, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, f.Symbols, 2)

	assert.Equal(t, "app.ts", f.Path)
	assert.Equal(t, symbol.Symbol{
		Name:          "Greeter",
		Kind:          symbol.KindClass,
		ContainerKind: symbol.RootKind,
		Range:         symbol.Range{Start: 0, End: 60},
		Icon:          "symbol-class",
	}, f.Symbols[0])
	assert.Equal(t, "Greeter", f.Symbols[1].ContainerName)
	assert.Equal(t, "custom-icon", f.Symbols[1].Icon)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"unknown key":   "symbols:\n  - name: a\n    colour: red\n",
		"empty name":    "symbols:\n  - kind: class\n",
		"reverse range": "symbols:\n  - name: a\n    range: {start: 9, end: 1}\n",
		"not yaml":      "symbols: [",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	f, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Symbols)
}

func TestEncodeRoundTrip(t *testing.T) {
	in, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, symbol.NewCatalog("app.ts", in.Symbols)))

	out, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestProvider(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.ts")
	require.False(t, Exists(src))
	require.NoError(t, os.WriteFile(SidecarPath(src), []byte(doc), 0o600))
	require.True(t, Exists(src))

	cat, err := symbol.Fetch(context.Background(), NewProvider(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	// The catalog file itself is accepted too.
	cat, err = symbol.Fetch(context.Background(), NewProvider(), SidecarPath(src))
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	_, err = symbol.Fetch(context.Background(), NewProvider(), filepath.Join(dir, "other.ts"))
	assert.ErrorIs(t, err, symbol.ErrFetch)
}
