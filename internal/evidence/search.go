package evidence

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/MLGBJDLW/vellum-sub012/internal/evidence/index"
	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// searchResultCap bounds how many keyword hits one turn considers.
const searchResultCap = 20

// SearchProvider retrieves chunks by keyword relevance from the text
// index. It is the broadest provider and usually gets the smallest
// budget share.
type SearchProvider struct {
	index *index.Index
}

// NewSearchProvider creates a provider over an index.
func NewSearchProvider(ix *index.Index) *SearchProvider {
	return &SearchProvider{index: ix}
}

func (p *SearchProvider) Name() ProviderName { return ProviderSearch }

// Retrieve builds one query from the signal values and returns matching
// chunks until the provider budget runs out.
func (p *SearchProvider) Retrieve(ctx context.Context, signals []Signal, tokenBudget int) ([]Evidence, error) {
	if p.index == nil {
		return nil, nil
	}

	query := buildQuery(signals)
	if query == "" {
		return nil, nil
	}

	results, err := p.index.Search(ctx, query, searchResultCap)
	if err != nil {
		return nil, err
	}

	var items []Evidence
	used := 0
	for _, r := range results {
		tokens := llm.EstimateTokens(r.Chunk.Content)
		if tokens <= 0 {
			continue
		}
		if used+tokens > tokenBudget {
			break
		}
		used += tokens
		items = append(items, Evidence{
			ID:             uuid.NewString(),
			Provider:       ProviderSearch,
			Path:           r.Chunk.Path,
			Range:          Range{Start: r.Chunk.StartLine, End: r.Chunk.EndLine},
			Content:        r.Chunk.Content,
			Tokens:         tokens,
			BaseScore:      r.Score,
			MatchedSignals: matchSignals(signals, r.Chunk.Path, r.Chunk.Content),
		})
	}
	return items, nil
}

// buildQuery joins signal values: symbols and error tokens as they are,
// paths reduced to their basename. Each value appears once; other signal
// types contribute nothing.
func buildQuery(signals []Signal) string {
	var parts []string
	for _, s := range signals {
		switch s.Type {
		case SignalSymbol, SignalErrorToken:
			parts = append(parts, s.Value)
		case SignalPath:
			// The basename fragment is the searchable part of a path.
			v := normalizePath(s.Value)
			if idx := strings.LastIndex(v, "/"); idx >= 0 {
				v = v[idx+1:]
			}
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
