// Package index maintains the on-disk retrieval index the evidence
// providers query: a sqlite chunk store, a bleve keyword index, and a
// filesystem watcher that tracks the working set.
package index

import (
	"path/filepath"
	"strings"
)

// Language tags a source file's language for chunking.
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "ts"
	LangJavaScript Language = "js"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangMarkdown   Language = "markdown"
	LangOther      Language = "other"
)

// DetectLanguage maps a file extension to a Language.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return LangGo
	case ".ts", ".tsx":
		return LangTypeScript
	case ".js", ".jsx", ".mjs":
		return LangJavaScript
	case ".py":
		return LangPython
	case ".rs":
		return LangRust
	case ".md":
		return LangMarkdown
	default:
		return LangOther
	}
}

// indexable reports whether a file is worth chunking at all.
func indexable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".py", ".rs",
		".java", ".c", ".h", ".cpp", ".hpp", ".rb", ".md", ".json",
		".yaml", ".yml", ".toml", ".sh", ".sql":
		return true
	default:
		return false
	}
}

// Chunk is one indexed span of a file.
type Chunk struct {
	ChunkID   string
	Path      string
	Lang      Language
	StartLine int
	EndLine   int
	Content   string
	Symbol    string // owning symbol name, if the chunk is one declaration
}

// Symbol is one extracted declaration.
type Symbol struct {
	SymbolID  string
	Name      string
	Kind      string // function, method, type, const, var
	Path      string
	StartLine int
	EndLine   int
}

// FileInfo describes one discovered file.
type FileInfo struct {
	Path      string // relative to the repo root
	Lang      Language
	SizeBytes int64
}
