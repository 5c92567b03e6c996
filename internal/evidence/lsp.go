package evidence

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/MLGBJDLW/vellum-sub012/internal/evidence/index"
	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// LSPProvider resolves symbol signals to definitions and stack-trace
// signals to the frames' enclosing declarations, using the symbol table
// the index extracts.
type LSPProvider struct {
	index  *index.Index
	frames []StackFrame
}

// NewLSPProvider creates a provider over an index.
func NewLSPProvider(ix *index.Index) *LSPProvider {
	return &LSPProvider{index: ix}
}

func (p *LSPProvider) Name() ProviderName { return ProviderLSP }

// SetContext hands the provider the turn's stack frames before dispatch.
func (p *LSPProvider) SetContext(tctx TurnContext) {
	p.frames = tctx.StackFrames
}

// Retrieve looks up symbol definitions and stack-frame spans.
func (p *LSPProvider) Retrieve(ctx context.Context, signals []Signal, tokenBudget int) ([]Evidence, error) {
	if p.index == nil {
		return nil, nil
	}

	var items []Evidence
	used := 0
	seen := map[string]bool{}

	take := func(e Evidence) bool {
		if seen[e.Path+":"+strconv.Itoa(e.Range.Start)] {
			return true
		}
		if used+e.Tokens > tokenBudget {
			return false
		}
		seen[e.Path+":"+strconv.Itoa(e.Range.Start)] = true
		used += e.Tokens
		items = append(items, e)
		return true
	}

	// Stack frames first: the innermost frames carry the most signal,
	// decaying with depth in the reranker.
	for _, frame := range p.frames {
		chunk, ok, err := p.index.ChunkAt(ctx, frame.Path, frame.Line)
		if err != nil || !ok {
			continue
		}
		depth := frame.Depth
		tokens := llm.EstimateTokens(chunk.Content)
		if tokens <= 0 {
			continue
		}
		e := Evidence{
			ID:             uuid.NewString(),
			Provider:       ProviderLSP,
			Path:           chunk.Path,
			Range:          Range{Start: chunk.StartLine, End: chunk.EndLine},
			Content:        chunk.Content,
			Tokens:         tokens,
			BaseScore:      1,
			Metadata:       Metadata{StackDepth: &depth},
			MatchedSignals: matchSignals(signals, chunk.Path, chunk.Content),
		}
		if chunk.Symbol != "" {
			e.Metadata.SymbolKind = symbolKindFor(ctx, p.index, chunk.Symbol)
		}
		if !take(e) {
			return items, nil
		}
	}

	for _, s := range signals {
		if s.Type != SignalSymbol {
			continue
		}
		symbols, err := p.index.SymbolsByName(ctx, s.Value)
		if err != nil {
			continue
		}
		for _, sym := range symbols {
			chunk, ok, err := p.index.ChunkAt(ctx, sym.Path, sym.StartLine)
			if err != nil || !ok {
				continue
			}
			tokens := llm.EstimateTokens(chunk.Content)
			if tokens <= 0 {
				continue
			}
			e := Evidence{
				ID:             uuid.NewString(),
				Provider:       ProviderLSP,
				Path:           chunk.Path,
				Range:          Range{Start: chunk.StartLine, End: chunk.EndLine},
				Content:        chunk.Content,
				Tokens:         tokens,
				BaseScore:      1,
				Metadata:       Metadata{SymbolKind: sym.Kind},
				MatchedSignals: withSignal(matchSignals(signals, chunk.Path, chunk.Content), s),
			}
			if !take(e) {
				return items, nil
			}
		}
	}

	return items, nil
}

// withSignal appends s unless an equivalent signal already matched.
func withSignal(matched []Signal, s Signal) []Signal {
	for _, m := range matched {
		if m.Type == s.Type && m.Value == s.Value {
			return matched
		}
	}
	return append(matched, s)
}

func symbolKindFor(ctx context.Context, ix *index.Index, name string) string {
	symbols, err := ix.SymbolsByName(ctx, name)
	if err != nil || len(symbols) == 0 {
		return ""
	}
	return symbols[0].Kind
}
