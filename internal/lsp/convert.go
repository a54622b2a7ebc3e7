package lsp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.lsp.dev/protocol"

	"github.com/xonecas/outline/internal/document"
	"github.com/xonecas/outline/internal/symbol"
)

// containerKind is used for SymbolInformation containers that name nothing
// else in the response.
const containerKind symbol.Kind = "container"

// Convert turns a textDocument/documentSymbol result into catalog symbols.
// Servers answer with either a DocumentSymbol tree or flat
// SymbolInformation; both are accepted. Positions are UTF-16 based and are
// converted to byte offsets into text.
func Convert(raw json.RawMessage, text string) ([]symbol.Symbol, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	// Both shapes share name and kind, so probe for "location".
	var probe []struct {
		Location *json.RawMessage `json:"location"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode documentSymbol result: %w", err)
	}
	flat := len(probe) > 0 && probe[0].Location != nil

	buf := document.New(text)
	if flat {
		var infos []protocol.SymbolInformation
		if err := json.Unmarshal(raw, &infos); err != nil {
			return nil, fmt.Errorf("decode SymbolInformation: %w", err)
		}
		return fromInformation(infos, buf), nil
	}

	var tree []protocol.DocumentSymbol
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode DocumentSymbol: %w", err)
	}
	var out []symbol.Symbol
	flatten(tree, "", symbol.RootKind, buf, &out)
	return out, nil
}

// flatten walks a DocumentSymbol tree in pre-order, recording each node's
// dotted ancestor path as its container name.
func flatten(nodes []protocol.DocumentSymbol, container string, parent symbol.Kind, buf *document.Buffer, out *[]symbol.Symbol) {
	for _, n := range nodes {
		kind := KindOf(n.Kind)
		r, err := byteRange(buf, n.Range)
		if err != nil {
			log.Warn().Err(err).Str("symbol", n.Name).Msg("lsp: dropping symbol with bad range")
			continue
		}
		*out = append(*out, symbol.Symbol{
			Name:          n.Name,
			Kind:          kind,
			ContainerName: container,
			ContainerKind: parent,
			Range:         r,
			Icon:          kind.Icon(),
		})
		if len(n.Children) > 0 {
			own := n.Name
			if container != "" {
				own = container + "." + n.Name
			}
			flatten(n.Children, own, kind, buf, out)
		}
	}
}

// fromInformation keeps the server's container names as they are.
func fromInformation(infos []protocol.SymbolInformation, buf *document.Buffer) []symbol.Symbol {
	kinds := make(map[string]symbol.Kind, len(infos))
	for _, in := range infos {
		q := in.Name
		if in.ContainerName != "" {
			q = in.ContainerName + "." + in.Name
		}
		if _, ok := kinds[q]; !ok {
			kinds[q] = KindOf(in.Kind)
		}
		if _, ok := kinds[in.Name]; !ok {
			kinds[in.Name] = KindOf(in.Kind)
		}
	}

	out := make([]symbol.Symbol, 0, len(infos))
	for _, in := range infos {
		r, err := byteRange(buf, in.Location.Range)
		if err != nil {
			log.Warn().Err(err).Str("symbol", in.Name).Msg("lsp: dropping symbol with bad range")
			continue
		}
		ck := symbol.RootKind
		if in.ContainerName != "" {
			ck = containerKind
			if k, ok := kinds[in.ContainerName]; ok {
				ck = k
			}
		}
		kind := KindOf(in.Kind)
		out = append(out, symbol.Symbol{
			Name:          in.Name,
			Kind:          kind,
			ContainerName: in.ContainerName,
			ContainerKind: ck,
			Range:         r,
			Icon:          kind.Icon(),
		})
	}
	return out
}

func byteRange(buf *document.Buffer, r protocol.Range) (symbol.Range, error) {
	start, err := buf.OffsetUTF16(int(r.Start.Line), int(r.Start.Character))
	if err != nil {
		return symbol.Range{}, err
	}
	end, err := buf.OffsetUTF16(int(r.End.Line), int(r.End.Character))
	if err != nil {
		return symbol.Range{}, err
	}
	if end < start {
		return symbol.Range{}, fmt.Errorf("range end %d before start %d", end, start)
	}
	return symbol.Range{Start: start, End: end}, nil
}

// KindOf maps an LSP symbol kind onto the catalog's kinds.
func KindOf(k protocol.SymbolKind) symbol.Kind {
	switch k {
	case protocol.SymbolKindFile, protocol.SymbolKindModule, protocol.SymbolKindNamespace:
		return symbol.KindModule
	case protocol.SymbolKindPackage:
		return symbol.KindPackage
	case protocol.SymbolKindClass:
		return symbol.KindClass
	case protocol.SymbolKindMethod, protocol.SymbolKindConstructor:
		return symbol.KindMethod
	case protocol.SymbolKindProperty:
		return symbol.KindProperty
	case protocol.SymbolKindField:
		return symbol.KindField
	case protocol.SymbolKindEnum:
		return symbol.KindEnum
	case protocol.SymbolKindInterface:
		return symbol.KindInterface
	case protocol.SymbolKindFunction:
		return symbol.KindFunction
	case protocol.SymbolKindVariable:
		return symbol.KindVariable
	case protocol.SymbolKindConstant, protocol.SymbolKindEnumMember:
		return symbol.KindConstant
	case protocol.SymbolKindStruct:
		return symbol.KindStruct
	case protocol.SymbolKindTypeParameter:
		return symbol.KindType
	default:
		return symbol.Kind(strings.ToLower(k.String()))
	}
}
