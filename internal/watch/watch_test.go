package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xonecas/outline/internal/document"
	"github.com/xonecas/outline/internal/provider"
	"github.com/xonecas/outline/internal/symbol"
)

func waitForUpdate(t *testing.T, ch <-chan Update, timeout time.Duration) Update {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(timeout):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func expectQuiet(t *testing.T, ch <-chan Update, d time.Duration) {
	t.Helper()
	select {
	case u := <-ch:
		t.Fatalf("unexpected update: %+v", u)
	case <-time.After(d):
	}
}

// start runs w in the background and returns the update channel. Run's
// return value is checked when the test ends.
func start(t *testing.T, w *Watcher) <-chan Update {
	t.Helper()
	updates := make(chan Update, 16)
	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background(), func(u Update) { updates <- u }) }()
	t.Cleanup(func() {
		require.NoError(t, w.Stop())
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after Stop")
		}
	})
	return updates
}

func sym(name string) symbol.Symbol {
	return symbol.Symbol{Name: name, Kind: symbol.KindFunction, ContainerKind: symbol.RootKind, Range: symbol.Range{Start: 0, End: 1}}
}

func TestWatcher_RebuildsOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(file, []byte("package a\n"), 0o644))

	mock := provider.NewMock("mock", []symbol.Symbol{sym("one")})
	w, err := New(file, mock, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	updates := start(t, w)

	first := waitForUpdate(t, updates, 2*time.Second)
	require.NoError(t, first.Err)
	assert.Equal(t, 1, first.Catalog.Len())
	assert.Equal(t, "one", first.Catalog.At(0).Name)

	mock.SetSymbols([]symbol.Symbol{sym("one"), sym("two")})
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte("package a\n\nfunc two() {}\n"), 0o644))

	next := waitForUpdate(t, updates, 2*time.Second)
	require.NoError(t, next.Err)
	assert.Equal(t, 2, next.Catalog.Len())
	assert.Equal(t, w.Path(), next.Catalog.Path())
}

func TestWatcher_CollapsesBursts(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.sh")
	require.NoError(t, os.WriteFile(file, []byte("x=1\n"), 0o644))

	mock := provider.NewMock("mock", nil)
	w, err := New(file, mock, WithDebounce(150*time.Millisecond))
	require.NoError(t, err)
	updates := start(t, w)
	waitForUpdate(t, updates, 2*time.Second)
	time.Sleep(50 * time.Millisecond)

	for i := range 5 {
		require.NoError(t, os.WriteFile(file, []byte{byte('a' + i), '\n'}, 0o644))
	}
	waitForUpdate(t, updates, 2*time.Second)
	expectQuiet(t, updates, 300*time.Millisecond)
	assert.Len(t, mock.Calls(), 2)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 1\n"), 0o644))

	w, err := New(file, provider.NewMock("mock", nil), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	updates := start(t, w)
	waitForUpdate(t, updates, 2*time.Second)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.py"), []byte("y = 2\n"), 0o644))
	expectQuiet(t, updates, 200*time.Millisecond)
}

func TestWatcher_SyncsDocument(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(file, []byte("let a = 1;\n"), 0o644))

	doc := document.New("")
	w, err := New(file, provider.NewMock("mock", nil), WithDebounce(20*time.Millisecond), WithDocument(doc))
	require.NoError(t, err)
	updates := start(t, w)

	first := waitForUpdate(t, updates, 2*time.Second)
	require.NoError(t, first.Err)
	assert.Equal(t, "let a = 1;\n", doc.Text())
	assert.Equal(t, doc.Version(), first.Version)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte("let b = 2;\n"), 0o644))
	next := waitForUpdate(t, updates, 2*time.Second)
	require.NoError(t, next.Err)
	assert.Equal(t, "let b = 2;\n", doc.Text())
	assert.Greater(t, next.Version, first.Version)
}

func TestWatcher_ReportsProviderErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(file, []byte("package a\n"), 0o644))

	boom := errors.New("boom")
	w, err := New(file, provider.NewMock("mock", nil).WithError(boom))
	require.NoError(t, err)
	updates := start(t, w)

	u := waitForUpdate(t, updates, 2*time.Second)
	assert.Nil(t, u.Catalog)
	assert.ErrorIs(t, u.Err, symbol.ErrFetch)
	assert.ErrorIs(t, u.Err, boom)
}

func TestWatcher_ContextCancel(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(file, []byte("package a\n"), 0o644))

	w, err := New(file, provider.NewMock("mock", nil))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.Run(ctx, func(Update) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing.go"), provider.NewMock("mock", nil))
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope", "a.go"), provider.NewMock("mock", nil))
	assert.Error(t, err)
}
