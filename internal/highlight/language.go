package highlight

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// overrides covers extensions chroma's filename globs miss or get wrong for
// outline's providers.
var overrides = map[string]string{
	".mts":  "typescript",
	".cts":  "typescript",
	".bats": "bash",
	".mksh": "bash",
}

// DetectLanguage returns the Chroma language name for path, or "text".
func DetectLanguage(path string) string {
	if lang, ok := overrides[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	if lex := lexers.Match(filepath.Base(path)); lex != nil {
		return strings.ToLower(lex.Config().Name)
	}
	return "text"
}
