package index

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Index ties the walker, chunker, store, and text index together behind
// the query surface the evidence providers use.
type Index struct {
	root  string
	store *Store
	text  *TextIndex
}

// Open creates or opens the index for a repo. Index data lives under
// dataDir (store.db and store.db.bleve).
func Open(ctx context.Context, root, dataDir string) (*Index, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "store.db")

	store, err := NewStore(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	text, err := NewTextIndex(dbPath)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Index{root: root, store: store, text: text}, nil
}

// Build walks the repo and (re)indexes every discovered file.
func (ix *Index) Build(ctx context.Context) error {
	files, err := Walk(ix.root)
	if err != nil {
		return fmt.Errorf("walk failed: %w", err)
	}
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := ix.IndexFile(ctx, f.Path); err != nil {
			log.Printf("WARNING: failed to index %s: %v", f.Path, err)
		}
	}
	return nil
}

// IndexFile chunks and indexes one file by repo-relative path.
func (ix *Index) IndexFile(ctx context.Context, rel string) error {
	content, err := os.ReadFile(filepath.Join(ix.root, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return ix.RemoveFile(ctx, rel)
		}
		return err
	}

	file := FileInfo{Path: rel, Lang: DetectLanguage(rel), SizeBytes: int64(len(content))}
	chunks, symbols := ChunkFile(file, content)

	// Remove prior chunk ids from the text index before replacing.
	if old, err := ix.store.ChunksByPath(ctx, rel); err == nil && len(old) > 0 {
		ids := make([]string, len(old))
		for i, c := range old {
			ids[i] = c.ChunkID
		}
		_ = ix.text.DeleteChunks(ids)
	}

	if err := ix.store.ReplaceFile(ctx, rel, chunks, symbols); err != nil {
		return err
	}
	return ix.text.IndexChunks(chunks)
}

// RemoveFile drops a deleted file from both stores.
func (ix *Index) RemoveFile(ctx context.Context, rel string) error {
	if old, err := ix.store.ChunksByPath(ctx, rel); err == nil && len(old) > 0 {
		ids := make([]string, len(old))
		for i, c := range old {
			ids[i] = c.ChunkID
		}
		_ = ix.text.DeleteChunks(ids)
	}
	return ix.store.DeleteFile(ctx, rel)
}

// SearchResult joins a text hit with its stored chunk.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Search runs a keyword query and resolves hits to chunks.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	hits, err := ix.text.Search(query, k)
	if err != nil {
		return nil, err
	}
	var out []SearchResult
	for _, h := range hits {
		chunk, err := ix.store.GetChunk(ctx, h.ChunkID)
		if err != nil {
			continue // stale hit; the stores converge on next reindex
		}
		out = append(out, SearchResult{Chunk: chunk, Score: h.Score})
	}
	return out, nil
}

// SymbolsByName returns exact symbol matches.
func (ix *Index) SymbolsByName(ctx context.Context, name string) ([]Symbol, error) {
	return ix.store.SymbolsByName(ctx, name)
}

// ChunkAt returns the chunk covering a file line.
func (ix *Index) ChunkAt(ctx context.Context, path string, line int) (Chunk, bool, error) {
	return ix.store.ChunkAt(ctx, path, line)
}

// Close releases both stores.
func (ix *Index) Close() error {
	terr := ix.text.Close()
	serr := ix.store.Close()
	if terr != nil {
		return terr
	}
	return serr
}
