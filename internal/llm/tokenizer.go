// Token counting interfaces and the estimation fallback.

package llm

import "strings"

// Tokenizer provides token counting for text. Different models use
// different tokenization schemes, so the model name is required.
type Tokenizer interface {
	CountTokens(text string, model string) (int, error)
}

// EstimateTokens provides a rough token count estimation.
// Uses ~4 characters per token for English/code, with a whitespace
// adjustment. Approximate, but good enough for budgeting and telemetry.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}

	charCount := len([]rune(text))
	whitespaceCount := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")

	estimated := (charCount / 4) + (whitespaceCount / 6)
	if estimated < 1 {
		return 1
	}
	return estimated
}

// EstimatingTokenizer counts tokens by estimation regardless of model.
// Used when no model-specific tokenizer is wired.
type EstimatingTokenizer struct{}

func (EstimatingTokenizer) CountTokens(text string, _ string) (int, error) {
	return EstimateTokens(text), nil
}

// CountMessageTokens estimates the token weight of a canonical message:
// text parts through the tokenizer heuristic, image parts through the
// per-provider image formulas.
func CountMessageTokens(m Message, provider ImageProvider) int {
	total := 0
	for _, p := range m.Parts {
		switch p.Type {
		case PartText:
			total += EstimateTokens(p.Text)
		case PartImage:
			w, h := p.Image.Dimensions()
			total += ImageTokens(provider, w, h, ImageDetailAuto)
		case PartToolUse:
			total += EstimateTokens(string(p.ToolInput)) + EstimateTokens(p.ToolName)
		case PartToolResult:
			total += EstimateTokens(p.ResultContent)
		}
	}
	return total
}
