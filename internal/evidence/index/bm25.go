package index

import (
	"fmt"
	"log"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// chunkDoc is what gets indexed per chunk.
type chunkDoc struct {
	Content string `json:"content"`
	Path    string `json:"path"`
	Symbol  string `json:"symbol"`
	Lang    string `json:"lang"`
}

// Hit is one keyword-search result.
type Hit struct {
	ChunkID string
	Score   float64
}

// TextIndex is the BM25 keyword index over chunk content.
type TextIndex struct {
	index bleve.Index
	path  string
}

// NewTextIndex creates or opens the index at dbPath + ".bleve". A
// corrupted index is deleted and recreated rather than failing the whole
// retrieval pipeline.
func NewTextIndex(dbPath string) (*TextIndex, error) {
	indexPath := dbPath + ".bleve"

	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create text index: %w", err)
		}
	} else if err != nil {
		log.Printf("WARNING: text index at %s unreadable (%v), recreating", indexPath, err)
		if index != nil {
			index.Close()
		}
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("failed to remove corrupted text index: %w", err)
		}
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to recreate text index: %w", err)
		}
	}

	return &TextIndex{index: index, path: indexPath}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name

	symbolField := bleve.NewTextFieldMapping()
	symbolField.Analyzer = standard.Name

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name

	langField := bleve.NewTextFieldMapping()
	langField.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", contentField)
	doc.AddFieldMappingsAt("symbol", symbolField)
	doc.AddFieldMappingsAt("path", pathField)
	doc.AddFieldMappingsAt("lang", langField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// IndexChunks adds or replaces chunks in one batch.
func (t *TextIndex) IndexChunks(chunks []Chunk) error {
	batch := t.index.NewBatch()
	for _, c := range chunks {
		doc := chunkDoc{Content: c.Content, Path: c.Path, Symbol: c.Symbol, Lang: string(c.Lang)}
		if err := batch.Index(c.ChunkID, doc); err != nil {
			return err
		}
	}
	return t.index.Batch(batch)
}

// DeleteChunks removes chunk ids from the index.
func (t *TextIndex) DeleteChunks(chunkIDs []string) error {
	batch := t.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	return t.index.Batch(batch)
}

// Search runs a BM25 match query and returns the top k chunk ids.
func (t *TextIndex) Search(query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	q := bleve.NewMatchQuery(query)
	q.SetField("content")

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	res, err := t.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ChunkID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Close releases the index.
func (t *TextIndex) Close() error { return t.index.Close() }
