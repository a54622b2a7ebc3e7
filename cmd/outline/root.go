package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xonecas/outline/internal/config"
	"github.com/xonecas/outline/internal/lsp"
	"github.com/xonecas/outline/internal/outline"
	"github.com/xonecas/outline/internal/provider"
	"github.com/xonecas/outline/internal/store"
	"github.com/xonecas/outline/internal/symbol"
	"github.com/xonecas/outline/internal/termview"
)

type globalFlags struct {
	config   string
	provider string
	logLevel string
	noColor  bool
}

// app holds what every command needs once config is loaded.
type app struct {
	out     io.Writer
	flags   globalFlags
	cfg     *config.Config
	lsp     *lsp.Manager
	store   *store.Store
	printer *termview.Printer
}

func newRootCmd(out io.Writer) (*cobra.Command, *app) {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "outline",
		Short:         "outline: lexical structure of a source file",
		Long:          "Builds a symbol outline for a file, lists containers and children, and selects a symbol's name in its declaration.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.config, "config", "", "config file (default ~/.config/outline/outline.toml)")
	pf.StringVarP(&a.flags.provider, "provider", "p", "", "symbol provider: auto, file, treesitter, shell, lsp, snapshot")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable ANSI styling")

	root.AddCommand(
		newTreeCmd(a),
		newRootsCmd(a),
		newChildrenCmd(a),
		newSelectCmd(a),
		newDumpCmd(a),
		newSnapshotCmd(a),
		newWatchCmd(a),
		newProvidersCmd(a),
	)
	return root, a
}

// execute runs the command tree and always releases servers and the store,
// including when a command fails.
func execute(root *cobra.Command, a *app) error {
	defer a.teardown(context.Background())
	return root.Execute()
}

func (a *app) setup() error {
	cfg, err := config.Load(a.flags.config)
	if err != nil {
		return err
	}
	if a.flags.provider != "" {
		cfg.Provider = a.flags.provider
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	setupLogging(cfg.Log.LevelOrDefault())

	a.lsp = lsp.NewManager(cfg.LSP.ManagerOptions())
	a.printer = termview.New(a.out, termview.Options{
		Color: cfg.UI.ColorEnabled() && !a.flags.noColor,
		Theme: cfg.UI.SyntaxThemeOrDefault(),
	})
	if cfg.Provider == provider.Snapshot {
		return a.openStore()
	}
	return nil
}

func setupLogging(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

func (a *app) teardown(ctx context.Context) {
	if a.lsp != nil {
		a.lsp.StopAll(ctx)
		a.lsp = nil
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("store: close")
	}
	a.store = nil
}

// openStore opens the snapshot database once.
func (a *app) openStore() error {
	if a.store != nil {
		return nil
	}
	path, err := a.cfg.Store.PathOrDefault()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	s, err := store.Open(path, a.cfg.Store.Retention())
	if err != nil {
		return fmt.Errorf("store: open %s: %w", path, err)
	}
	a.store = s
	return nil
}

func (a *app) registry() *provider.Registry {
	return provider.Default(provider.Options{LSP: a.lsp, Store: a.store})
}

// fetch builds the catalog for path with the configured provider and
// returns it with the name of the provider that produced it.
func (a *app) fetch(ctx context.Context, path string) (*symbol.Catalog, string, error) {
	src, err := a.registry().Resolve(a.cfg.Provider, path)
	if err != nil {
		return nil, "", err
	}
	cat, err := symbol.Fetch(ctx, src, path)
	if err != nil {
		return nil, src.Name(), err
	}
	log.Debug().Str("file", path).Str("provider", src.Name()).Int("count", cat.Len()).Msg("outline: catalog")
	return cat, src.Name(), nil
}

func (a *app) tree(ctx context.Context, path string) (*outline.Tree, error) {
	cat, _, err := a.fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	return outline.New(cat), nil
}

// pick returns the nth symbol named qualified.
func pick(t *outline.Tree, qualified string, nth int) (symbol.Symbol, error) {
	matches := t.Find(qualified)
	if len(matches) == 0 {
		return symbol.Symbol{}, fmt.Errorf("no symbol named %q", qualified)
	}
	if nth < 0 || nth >= len(matches) {
		return symbol.Symbol{}, fmt.Errorf("%q has %d matches, --nth %d is out of range", qualified, len(matches), nth)
	}
	if len(matches) > 1 {
		log.Debug().Str("symbol", qualified).Int("matches", len(matches)).Int("nth", nth).Msg("outline: duplicate name")
	}
	return matches[nth], nil
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", errors.New(path + " is a directory")
	}
	return abs, nil
}
