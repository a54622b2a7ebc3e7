// Package watch rebuilds a file's symbol catalog whenever the file changes on
// disk.
//
// The parent directory is watched rather than the file itself: most editors
// save by writing a temp file and renaming it over the original, which drops
// a watch on the old inode. Bursts of events are collapsed into one rebuild.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/outline/internal/document"
	"github.com/xonecas/outline/internal/symbol"
)

// DefaultDebounce is the quiet period after the last event before a rebuild.
const DefaultDebounce = 100 * time.Millisecond

// Update is delivered after every rebuild.
type Update struct {
	Catalog *symbol.Catalog // nil when Err is set
	Version int             // document version the catalog was built against, 0 without a document
	Err     error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Values <= 0 keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithDocument keeps doc's text in sync with the file before each rebuild,
// so selections made against the new catalog see the new text.
func WithDocument(doc *document.Buffer) Option {
	return func(w *Watcher) { w.doc = doc }
}

// Watcher watches one file.
type Watcher struct {
	path     string
	provider symbol.Provider
	doc      *document.Buffer
	debounce time.Duration

	fw      *fsnotify.Watcher
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// New starts watching path's directory. Events are not consumed until Run.
func New(path string, p symbol.Provider, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		path:     abs,
		provider: p,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch: add %s: %w", filepath.Dir(abs), err)
	}
	w.fw = fw
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Run builds the catalog once, then again after every settled change, and
// hands each result to onUpdate. onUpdate runs on Run's goroutine. Run
// returns nil after Stop and ctx.Err() when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onUpdate func(Update)) error {
	onUpdate(w.rebuild(ctx))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			log.Debug().Str("file", w.path).Str("op", event.Op.String()).Msg("watch: change")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("file", w.path).Msg("watch: fsnotify error")

		case <-fire:
			fire = nil
			onUpdate(w.rebuild(ctx))

		case <-w.done:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop ends Run and releases the underlying watcher. Safe to call more than
// once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *Watcher) rebuild(ctx context.Context) Update {
	var version int
	if w.doc != nil {
		data, err := os.ReadFile(w.path)
		if err != nil {
			return Update{Err: fmt.Errorf("watch: read %s: %w", w.path, err)}
		}
		w.doc.SetText(string(data))
		version = w.doc.Version()
	}

	cat, err := symbol.Fetch(ctx, w.provider, w.path)
	if err != nil {
		log.Warn().Err(err).Str("file", w.path).Msg("watch: rebuild failed")
		return Update{Version: version, Err: err}
	}
	log.Debug().Str("file", w.path).Int("count", cat.Len()).Int("version", version).Msg("watch: rebuilt")
	return Update{Catalog: cat, Version: version}
}
