// Package evidence discovers code context for a user turn: it extracts
// signals, classifies intent, fans out to retrieval providers, reranks
// under feature weights, and enforces a token budget.
package evidence

import "context"

// SignalType classifies an extracted retrieval signal.
type SignalType string

const (
	SignalSymbol     SignalType = "symbol"
	SignalPath       SignalType = "path"
	SignalErrorToken SignalType = "error_token"
)

// SignalSource records where a signal came from.
type SignalSource string

const (
	SourceUserMessage SignalSource = "user_message"
	SourceWorkingSet  SignalSource = "working_set"
	SourceErrorOutput SignalSource = "error_output"
	SourceStackTrace  SignalSource = "stack_trace"
)

// Signal is one token or identifier used to target retrieval.
type Signal struct {
	Type       SignalType   `json:"type"`
	Value      string       `json:"value"`
	Source     SignalSource `json:"source"`
	Confidence float64      `json:"confidence"` // [0, 1]
}

// ProviderName identifies a retrieval provider.
type ProviderName string

const (
	ProviderDiff   ProviderName = "diff"
	ProviderLSP    ProviderName = "lsp"
	ProviderSearch ProviderName = "search"
)

// Range is a line range within a file.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Metadata carries provider-specific scoring hints.
type Metadata struct {
	StackDepth *int   `json:"stack_depth,omitempty"`
	SymbolKind string `json:"symbol_kind,omitempty"`
}

// Evidence is one retrieved snippet with provenance and score. Tokens is
// always positive; FinalScore is set by the reranker.
type Evidence struct {
	ID             string       `json:"id"`
	Provider       ProviderName `json:"provider"`
	Path           string       `json:"path"`
	Range          Range        `json:"range"`
	Content        string       `json:"content"`
	Tokens         int          `json:"tokens"`
	BaseScore      float64      `json:"base_score"`
	MatchedSignals []Signal     `json:"matched_signals,omitempty"`
	Metadata       Metadata     `json:"metadata,omitempty"`
	FinalScore     float64      `json:"final_score,omitempty"`
}

// Provider retrieves evidence for a signal set within a token budget.
// Providers must be non-fatal: errors are recovered by the engine and
// converted into an empty result set.
type Provider interface {
	Name() ProviderName
	Retrieve(ctx context.Context, signals []Signal, tokenBudget int) ([]Evidence, error)
}
