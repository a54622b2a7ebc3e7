package lsp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	powernapconfig "github.com/charmbracelet/x/powernap/pkg/config"
	powernap "github.com/charmbracelet/x/powernap/pkg/lsp"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/outline/internal/symbol"
)

// ErrNoServer is returned when no language server can handle a file.
var ErrNoServer = errors.New("lsp: no language server available")

// skipAutoStart lists generic commands that should not be auto-started.
// These interpreters/runners may trigger package downloads or run wrong binaries.
var skipAutoStart = map[string]bool{
	"npx":     true,
	"node":    true,
	"python":  true,
	"python3": true,
	"java":    true,
	"ruby":    true,
	"perl":    true,
	"dotnet":  true,
	"bun":     true,
}

// ServerConfig describes how to launch one language server.
type ServerConfig struct {
	Command     string
	Args        []string
	FileTypes   []string
	RootMarkers []string
	Env         map[string]string
	InitOptions any
}

// Options configures a Manager.
type Options struct {
	// Servers are merged over powernap's built-in defaults by name.
	Servers        map[string]ServerConfig
	InitTimeout    time.Duration
	RequestTimeout time.Duration
}

// Manager manages LSP server lifecycles keyed by server name and serves
// document symbols from whichever server handles a file.
type Manager struct {
	servers        map[string]ServerConfig
	detect         func(path string) string
	initTimeout    time.Duration
	requestTimeout time.Duration

	mu      sync.Mutex
	clients map[string]*Client // serverName -> client
	broken  map[string]bool    // servers that failed to start
}

// NewManager creates a manager with powernap's built-in server defaults plus
// any configured overrides.
func NewManager(opts Options) *Manager {
	// Silence powernap's slog output; stderr belongs to the CLI.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cm := powernapconfig.NewManager()
	if err := cm.LoadDefaults(); err != nil {
		log.Warn().Err(err).Msg("lsp: loading server defaults")
	}
	servers := make(map[string]ServerConfig)
	for name, cfg := range cm.GetServers() {
		servers[name] = ServerConfig{
			Command:     cfg.Command,
			Args:        cfg.Args,
			FileTypes:   cfg.FileTypes,
			RootMarkers: cfg.RootMarkers,
			InitOptions: cfg.InitOptions,
		}
	}
	for name, cfg := range opts.Servers {
		servers[name] = cfg
	}
	return newManager(servers, detectLanguage, opts)
}

func newManager(servers map[string]ServerConfig, detect func(string) string, opts Options) *Manager {
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = 15 * time.Second
	}
	return &Manager{
		servers:        servers,
		detect:         detect,
		initTimeout:    opts.InitTimeout,
		requestTimeout: opts.RequestTimeout,
		clients:        make(map[string]*Client),
		broken:         make(map[string]bool),
	}
}

func detectLanguage(path string) string {
	return string(powernap.DetectLanguage(path))
}

// Handles reports whether some configured server claims path's language.
func (m *Manager) Handles(path string) bool {
	lang := m.detect(path)
	if lang == "" {
		return false
	}
	for _, cfg := range m.servers {
		if matchesFileType(cfg, lang) {
			return true
		}
	}
	return false
}

// FetchSymbols asks the servers that claim path's language, in name order,
// for its document symbols. The first server that answers wins; servers
// after it are neither started nor queried.
func (m *Manager) FetchSymbols(ctx context.Context, path string) ([]symbol.Symbol, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(absPath) //nolint:gosec // path comes from the caller
	if err != nil {
		return nil, err
	}
	text := string(data)

	if m.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.requestTimeout)
		defer cancel()
	}

	lang := m.detect(absPath)
	if lang == "" {
		log.Debug().Str("file", absPath).Msg("lsp: unknown language, skipping")
		return nil, fmt.Errorf("%w for %s", ErrNoServer, absPath)
	}

	var errs []error
	tried := 0
	for _, name := range m.candidates(lang) {
		c, err := m.client(ctx, name, absPath)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if c == nil {
			continue
		}
		tried++
		syms, err := m.query(ctx, c, absPath, lang, text)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return syms, nil
	}
	if tried == 0 {
		return nil, errors.Join(append([]error{fmt.Errorf("%w for %s", ErrNoServer, absPath)}, errs...)...)
	}
	return nil, errors.Join(errs...)
}

// query syncs the file to c and converts its documentSymbol answer.
func (m *Manager) query(ctx context.Context, c *Client, absPath, lang, text string) ([]symbol.Symbol, error) {
	if err := c.syncFile(ctx, absPath, lang, text); err != nil {
		return nil, err
	}
	raw, err := c.documentSymbols(ctx, absPath)
	if err != nil {
		log.Error().Err(err).Str("server", c.serverID).Msg("lsp: documentSymbol")
		return nil, err
	}
	syms, err := Convert(raw, text)
	if err != nil {
		return nil, fmt.Errorf("lsp: %s: %w", c.serverID, err)
	}
	log.Debug().Str("server", c.serverID).Str("file", absPath).Int("count", len(syms)).Msg("lsp: symbols received")
	return syms, nil
}

// StopAll gracefully shuts down all running LSP servers.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for name, c := range m.clients {
		clients = append(clients, c)
		delete(m.clients, name)
	}
	m.mu.Unlock()

	for _, c := range clients {
		if err := c.close(ctx); err != nil {
			log.Error().Err(err).Str("server", c.serverID).Msg("lsp: stopAll")
		}
	}
}

// candidates returns the names of servers handling lang, sorted so the same
// config always picks the same server.
func (m *Manager) candidates(lang string) []string {
	var names []string
	for name, cfg := range m.servers {
		if matchesFileType(cfg, lang) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// client returns the running client for name, starting it if needed. A nil
// client with a nil error means the server is unusable and was skipped.
func (m *Manager) client(ctx context.Context, name, absPath string) (*Client, error) {
	// Phase 1: under lock, reuse a running client or decide how to start one.
	m.mu.Lock()
	if c, ok := m.clients[name]; ok {
		m.mu.Unlock()
		return c, nil
	}
	if m.broken[name] {
		m.mu.Unlock()
		return nil, nil
	}
	cfg := m.servers[name]
	if skipAutoStart[cfg.Command] {
		m.broken[name] = true
		m.mu.Unlock()
		return nil, nil
	}
	cmdPath := lookPath(cfg.Command)
	if cmdPath == "" {
		m.broken[name] = true
		m.mu.Unlock()
		return nil, nil
	}
	m.mu.Unlock()

	root := findRoot(absPath, cfg.RootMarkers)
	if root == "" {
		root = filepath.Dir(absPath)
	}

	// Phase 2: start the server without holding the lock (blocking I/O).
	c, err := m.startClient(ctx, serverToStart{name: name, cfg: cfg, root: root, cmdPath: cmdPath})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("server", name).Msg("lsp: start failed")
		m.broken[name] = true
		return nil, fmt.Errorf("lsp: start %s: %w", name, err)
	}
	if existing, ok := m.clients[name]; ok {
		// Lost a start race; keep the first client.
		go func() { _ = c.close(context.Background()) }()
		return existing, nil
	}
	m.clients[name] = c
	return c, nil
}

// serverToStart holds info needed to start an LSP server outside the lock.
type serverToStart struct {
	name    string
	cfg     ServerConfig
	root    string
	cmdPath string
}

// startClient spawns and initializes a single LSP server.
func (m *Manager) startClient(ctx context.Context, s serverToStart) (*Client, error) {
	cfg := s.cfg
	cfg.Command = s.cmdPath
	c, err := newClient(s.name, cfg, s.root)
	if err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, m.initTimeout)
	defer cancel()

	if err := c.initialize(initCtx, s.root, cfg.InitOptions); err != nil {
		_ = c.close(ctx)
		return nil, fmt.Errorf("initialize: %w", err)
	}

	log.Info().Str("server", s.name).Str("root", s.root).Str("cmd", s.cmdPath).Msg("lsp: server started")
	return c, nil
}

// matchesFileType checks if a server config handles the given language ID.
func matchesFileType(cfg ServerConfig, lang string) bool {
	for _, ft := range cfg.FileTypes {
		if ft == lang {
			return true
		}
	}
	return false
}

// findRoot walks up from the file looking for any of the root markers.
func findRoot(absPath string, markers []string) string {
	dir := filepath.Dir(absPath)
	for {
		for _, marker := range markers {
			matches, _ := filepath.Glob(filepath.Join(dir, marker))
			if len(matches) > 0 {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// lookPath finds a command binary, checking PATH first, then common
// language-specific bin directories that may not be in PATH.
func lookPath(command string) string {
	if p, err := exec.LookPath(command); err == nil {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	var extras []string
	if gobin := os.Getenv("GOBIN"); gobin != "" {
		extras = append(extras, gobin)
	}
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		extras = append(extras, filepath.Join(gopath, "bin"))
	}
	extras = append(extras,
		filepath.Join(home, "go", "bin"),
		filepath.Join(home, ".cargo", "bin"),
		filepath.Join(home, ".local", "bin"),
	)

	for _, dir := range extras {
		p := filepath.Join(dir, command)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}
