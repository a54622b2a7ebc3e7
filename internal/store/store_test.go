package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xonecas/outline/internal/symbol"
)

func openTestStore(t *testing.T, retention time.Duration) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, retention)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testSymbols = []symbol.Symbol{
	{Name: "M", Kind: symbol.KindModule, ContainerKind: symbol.RootKind, Range: symbol.Range{Start: 0, End: 90}, Icon: "symbol-module"},
	{Name: "Foo", Kind: symbol.KindClass, ContainerName: "M", ContainerKind: symbol.KindModule, Range: symbol.Range{Start: 10, End: 80}},
	{Name: "bar", Kind: symbol.KindMethod, ContainerName: "M.Foo", ContainerKind: symbol.KindClass, Range: symbol.Range{Start: 20, End: 30}},
	{Name: "bar", Kind: symbol.KindMethod, ContainerName: "M.Foo", ContainerKind: symbol.KindClass, Range: symbol.Range{Start: 40, End: 50}},
}

func TestSaveLoad(t *testing.T) {
	s := openTestStore(t, 0)

	id, err := s.Save("h1", "treesitter", symbol.NewCatalog("/src/a.ts", testSymbols))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	cat, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Path() != "/src/a.ts" {
		t.Errorf("path = %q", cat.Path())
	}
	if cat.Len() != len(testSymbols) {
		t.Fatalf("got %d symbols, want %d", cat.Len(), len(testSymbols))
	}
	// Order and duplicates survive the round trip.
	for i, want := range testSymbols {
		if got := cat.At(i); got != want {
			t.Errorf("symbol %d = %+v, want %+v", i, got, want)
		}
	}

	if _, err := s.Load(id + 100); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) err = %v, want ErrNotFound", err)
	}
}

func TestLatestAndList(t *testing.T) {
	s := openTestStore(t, 0)

	first, _ := s.Save("h1", "treesitter", symbol.NewCatalog("/src/a.ts", testSymbols[:1]))
	second, _ := s.Save("h1", "lsp", symbol.NewCatalog("/src/a.ts", testSymbols[:2]))
	if _, err := s.Save("h2", "treesitter", symbol.NewCatalog("/src/b.ts", nil)); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Latest("/src/a.ts", "h1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if snap.ID != second || snap.Provider != "lsp" || snap.Count != 2 {
		t.Errorf("Latest = %+v, want id %d from lsp", snap, second)
	}

	if _, err := s.Latest("/src/a.ts", "changed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest(changed hash) err = %v, want ErrNotFound", err)
	}

	all, err := s.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("List(all) = %d snapshots", len(all))
	}
	onlyA, err := s.List("/src/a.ts")
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyA) != 2 || onlyA[0].ID != second || onlyA[1].ID != first {
		t.Errorf("List(a) = %+v", onlyA)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t, 0)
	id, _ := s.Save("h", "treesitter", symbol.NewCatalog("/a", testSymbols))

	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshot_symbols").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d symbol rows left after delete", n)
	}
	if err := s.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
}

func TestRetentionPurge(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := s.Save("h", "treesitter", symbol.NewCatalog("/a", testSymbols))

	// Backdate the entry.
	s.db.Exec("UPDATE snapshots SET created = ? WHERE id = ?", //nolint:errcheck
		time.Now().Add(-2*time.Hour).UnixNano(), id)
	s.Close()

	s, err = Open(dbPath, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if got, _ := s.List(""); len(got) != 0 {
		t.Errorf("stale snapshot survived reopen: %+v", got)
	}
}

func TestNilStore(t *testing.T) {
	var s *Store
	if _, err := s.Save("h", "x", symbol.NewCatalog("/a", nil)); err != nil {
		t.Errorf("nil Save: %v", err)
	}
	if got, err := s.List(""); got != nil || err != nil {
		t.Errorf("nil List = %v, %v", got, err)
	}
	if _, err := s.Latest("/a", "h"); !errors.Is(err, ErrNotFound) {
		t.Errorf("nil Latest err = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestProvider(t *testing.T) {
	s := openTestStore(t, 0)
	path := filepath.Join(t.TempDir(), "a.ts")
	content := []byte("module M { class Foo { bar() {} } }")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	p := NewProvider(s)
	if _, err := symbol.Fetch(context.Background(), p, path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("fetch before save err = %v, want ErrNotFound", err)
	}

	if _, err := s.Save(HashContent(content), "treesitter", symbol.NewCatalog(path, testSymbols)); err != nil {
		t.Fatal(err)
	}
	cat, err := symbol.Fetch(context.Background(), p, path)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if cat.Len() != len(testSymbols) {
		t.Errorf("got %d symbols", cat.Len())
	}

	// Editing the file invalidates the snapshot.
	if err := os.WriteFile(path, append(content, '\n'), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := symbol.Fetch(context.Background(), p, path); !errors.Is(err, ErrNotFound) {
		t.Errorf("fetch after edit err = %v, want ErrNotFound", err)
	}
}
