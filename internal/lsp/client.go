// Package lsp fetches outline symbols from language servers via
// textDocument/documentSymbol.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Client is a connection to one running language server.
type Client struct {
	serverID string
	conn     *jsonrpc2.Conn
	cmd      *exec.Cmd
	cancel   context.CancelFunc

	mu       sync.Mutex
	versions map[protocol.DocumentURI]int32 // uri -> document version
}

// newClient spawns the server process and connects to its stdio.
func newClient(serverID string, cfg ServerConfig, root string) (*Client, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...) //nolint:gosec // command comes from config
	cmd.Dir = root
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("lsp: start %s: %w", serverID, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("lsp: start %s: %w", serverID, err)
	}
	// Servers log to stderr; keep it out of the terminal.
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("lsp: start %s: %w", serverID, err)
	}

	c := newConnClient(ctx, serverID, &stdioReadWriteCloser{reader: stdout, writer: stdin})
	c.cmd = cmd
	c.cancel = cancel
	return c, nil
}

// newConnClient wraps an already connected stream.
func newConnClient(ctx context.Context, serverID string, rwc io.ReadWriteCloser) *Client {
	c := &Client{
		serverID: serverID,
		versions: make(map[protocol.DocumentURI]int32),
	}
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	c.conn = jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(c.handle))
	return c
}

// handle answers server-to-client traffic. Requests we do not implement get
// a null result so the server doesn't stall waiting on us.
func (c *Client) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "window/logMessage", "$/progress", "textDocument/publishDiagnostics":
		return nil, nil
	case "window/workDoneProgress/create", "client/registerCapability", "workspace/configuration":
		return nil, nil
	default:
		log.Debug().Str("server", c.serverID).Str("method", req.Method).Msg("lsp: unhandled server message")
		return nil, nil
	}
}

// initialize sends initialize+initialized to the server.
func (c *Client) initialize(ctx context.Context, root string, initOptions any) error {
	rootURI := protocol.DocumentURI(pathToURI(root))
	params := &protocol.InitializeParams{
		ProcessID: int32(os.Getpid()), //nolint:gosec // pid fits
		RootURI:   rootURI,
		ClientInfo: &protocol.ClientInfo{
			Name:    "outline",
			Version: "0.1",
		},
		InitializationOptions: initOptions,
		Capabilities: protocol.ClientCapabilities{
			TextDocument: &protocol.TextDocumentClientCapabilities{
				DocumentSymbol: &protocol.DocumentSymbolClientCapabilities{
					HierarchicalDocumentSymbolSupport: true,
				},
			},
		},
		WorkspaceFolders: []protocol.WorkspaceFolder{
			{URI: string(rootURI), Name: filepath.Base(root)},
		},
	}
	// Capabilities are not inspected; decoding them strictly breaks on
	// servers that use newer union shapes.
	var result json.RawMessage
	if err := c.conn.Call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("lsp: initialize %s: %w", c.serverID, err)
	}
	return c.conn.Notify(ctx, "initialized", &protocol.InitializedParams{})
}

// syncFile sends didOpen the first time a file is seen and didChange with the
// full text afterwards, so the server sees exactly the text we convert
// offsets against.
func (c *Client) syncFile(ctx context.Context, absPath, languageID, text string) error {
	uri := protocol.DocumentURI(pathToURI(absPath))

	c.mu.Lock()
	v, open := c.versions[uri]
	c.mu.Unlock()
	v++

	var err error
	if !open {
		err = c.conn.Notify(ctx, "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{
				URI:        uri,
				LanguageID: protocol.LanguageIdentifier(languageID),
				Version:    v,
				Text:       text,
			},
		})
	} else {
		err = c.conn.Notify(ctx, "textDocument/didChange", &fullChangeParams{
			TextDocument: protocol.VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
				Version:                v,
			},
			ContentChanges: []fullChange{{Text: text}},
		})
	}
	if err != nil {
		return fmt.Errorf("lsp: sync %s: %w", c.serverID, err)
	}

	// Only a delivered notification opens the document or bumps its version.
	c.mu.Lock()
	c.versions[uri] = v
	c.mu.Unlock()
	return nil
}

// fullChangeParams is didChange with whole-document content changes, which
// must not carry a range.
type fullChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []fullChange                             `json:"contentChanges"`
}

type fullChange struct {
	Text string `json:"text"`
}

// documentSymbols returns the raw textDocument/documentSymbol result.
func (c *Client) documentSymbols(ctx context.Context, absPath string) (json.RawMessage, error) {
	params := &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(pathToURI(absPath))},
	}
	var raw json.RawMessage
	if err := c.conn.Call(ctx, "textDocument/documentSymbol", params, &raw); err != nil {
		return nil, fmt.Errorf("lsp: documentSymbol %s: %w", c.serverID, err)
	}
	return raw, nil
}

// close gracefully shuts down the server, killing it if that fails.
func (c *Client) close(ctx context.Context) error {
	var errs []error
	if err := c.conn.Call(ctx, "shutdown", nil, nil); err != nil {
		errs = append(errs, fmt.Errorf("lsp: shutdown %s: %w", c.serverID, err))
	} else if err := c.conn.Notify(ctx, "exit", nil); err != nil {
		errs = append(errs, fmt.Errorf("lsp: exit %s: %w", c.serverID, err))
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
		errs = append(errs, err)
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_, _ = c.cmd.Process.Wait()
	}
	return errors.Join(errs...)
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdioReadWriteCloser) Close() error {
	_ = s.reader.Close()
	return s.writer.Close()
}

func pathToURI(path string) string {
	path = filepath.Clean(path)
	if runtime.GOOS == "windows" {
		path = strings.ReplaceAll(path, "\\", "/")
		return "file:///" + strings.ReplaceAll(path, ":", "%3A")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "file://" + path
}
