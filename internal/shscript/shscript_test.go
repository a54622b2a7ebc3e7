package shscript

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mvdan.cc/sh/v3/syntax"

	"github.com/xonecas/outline/internal/outline"
	"github.com/xonecas/outline/internal/symbol"
)

const script = `#!/usr/bin/env bash
VERSION=1.2
readonly PREFIX=/usr
export PATH_EXTRA="$HOME/bin"
CC=gcc make

build() {
  local out=dist
  helper() { echo hi; }
  helper
}

function deploy {
  build
}
`

func TestParseSource(t *testing.T) {
	syms, err := ParseSource(context.Background(), "deploy.sh", []byte(script))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}

	want := []struct {
		qualified     string
		kind          symbol.Kind
		containerKind symbol.Kind
	}{
		{"VERSION", symbol.KindVariable, symbol.RootKind},
		{"PREFIX", symbol.KindConstant, symbol.RootKind},
		{"PATH_EXTRA", symbol.KindVariable, symbol.RootKind},
		{"build", symbol.KindFunction, symbol.RootKind},
		{"build.helper", symbol.KindFunction, symbol.KindFunction},
		{"deploy", symbol.KindFunction, symbol.RootKind},
	}
	if len(syms) != len(want) {
		for _, s := range syms {
			t.Logf("got %q in %q", s.Name, s.ContainerName)
		}
		t.Fatalf("got %d symbols, want %d", len(syms), len(want))
	}
	for i, w := range want {
		s := syms[i]
		if outline.QualifiedName(s) != w.qualified || s.Kind != w.kind || s.ContainerKind != w.containerKind {
			t.Errorf("symbol %d = %q %s in %s, want %q %s in %s",
				i, outline.QualifiedName(s), s.Kind, s.ContainerKind, w.qualified, w.kind, w.containerKind)
		}
		if s.Icon != w.kind.Icon() {
			t.Errorf("symbol %d icon = %q", i, s.Icon)
		}
	}

	build := syms[3]
	if got := script[build.Range.Start:build.Range.End]; got[:7] != "build()" || got[len(got)-1] != '}' {
		t.Errorf("build range covers %q", got)
	}
}

func TestParseSourceSyntaxError(t *testing.T) {
	if _, err := ParseSource(context.Background(), "bad.sh", []byte("foo() {\n")); err == nil {
		t.Error("expected parse error")
	}
}

func TestSupported(t *testing.T) {
	dir := t.TempDir()
	noExt := filepath.Join(dir, "run")
	if err := os.WriteFile(noExt, []byte("#!/bin/sh\necho hi\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "notes")
	if err := os.WriteFile(plain, []byte("hello\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"x.sh", true},
		{"x.BASH", true},
		{"x.bats", true},
		{noExt, true},
		{plain, false},
		{filepath.Join(dir, "missing"), false},
	}
	for _, tt := range tests {
		if got := Supported(tt.path); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestShebang(t *testing.T) {
	tests := []struct {
		line string
		want syntax.LangVariant
		ok   bool
	}{
		{"#!/bin/bash\n", syntax.LangBash, true},
		{"#!/usr/bin/env sh", syntax.LangPOSIX, true},
		{"#!/bin/mksh -e\n", syntax.LangMirBSDKorn, true},
		{"#!/usr/bin/python3\n", 0, false},
		{"echo", 0, false},
	}
	for _, tt := range tests {
		got, ok := shebang([]byte(tt.line))
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("shebang(%q) = %v, %v", tt.line, got, ok)
		}
	}
}

func TestProviderFetchSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.sh")
	if err := os.WriteFile(path, []byte("greet() { echo hi; }\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cat, err := symbol.Fetch(context.Background(), NewProvider(), path)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if cat.Len() != 1 || cat.At(0).Name != "greet" {
		t.Errorf("catalog = %+v", cat.All())
	}
}
