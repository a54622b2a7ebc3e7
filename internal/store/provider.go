package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/outline/internal/symbol"
)

// Provider serves catalogs from recorded snapshots. A snapshot is only used
// while the file still has the content it was recorded against; otherwise
// its offsets would point into different text.
type Provider struct {
	store *Store
}

// NewProvider returns a provider over s.
func NewProvider(s *Store) *Provider { return &Provider{store: s} }

// FetchSymbols returns the newest snapshot matching path's current content.
func (p *Provider) FetchSymbols(ctx context.Context, path string) ([]symbol.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs) //nolint:gosec // path comes from the caller
	if err != nil {
		return nil, err
	}
	snap, err := p.store.Latest(abs, HashContent(data))
	if err != nil {
		return nil, err
	}
	cat, err := p.store.Load(snap.ID)
	if err != nil {
		return nil, err
	}
	log.Debug().Int64("id", snap.ID).Str("file", abs).Int("count", cat.Len()).Msg("store: snapshot replayed")
	return cat.All(), nil
}
