package provider

import (
	"context"
	"sync"
	"time"

	"github.com/xonecas/outline/internal/symbol"
)

// MockProvider is a test provider that returns predefined symbols.
type MockProvider struct {
	mu sync.RWMutex

	name    string
	symbols []symbol.Symbol
	handles func(string) bool
	err     error
	delay   time.Duration
	calls   []string
}

// NewMock creates a new mock provider that handles every path.
func NewMock(name string, syms []symbol.Symbol) *MockProvider {
	return &MockProvider{
		name:    name,
		symbols: syms,
		handles: func(string) bool { return true },
	}
}

// WithError sets an error to return from FetchSymbols.
func (p *MockProvider) WithError(err error) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	return p
}

// WithHandles restricts which paths the mock claims.
func (p *MockProvider) WithHandles(fn func(string) bool) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles = fn
	return p
}

// WithDelay makes FetchSymbols wait before answering.
func (p *MockProvider) WithDelay(d time.Duration) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
	return p
}

// SetSymbols replaces the symbols returned by later calls.
func (p *MockProvider) SetSymbols(syms []symbol.Symbol) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbols = syms
}

// Calls returns the paths FetchSymbols was called with.
func (p *MockProvider) Calls() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.calls...)
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) Handles(path string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handles != nil && p.handles(path)
}

func (p *MockProvider) FetchSymbols(ctx context.Context, path string) ([]symbol.Symbol, error) {
	p.mu.Lock()
	p.calls = append(p.calls, path)
	delay, err := p.delay, p.err
	syms := append([]symbol.Symbol(nil), p.symbols...)
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return syms, nil
}
