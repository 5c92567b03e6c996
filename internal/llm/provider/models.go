package provider

// PricingTier describes a long-context surcharge threshold.
type PricingTier struct {
	ThresholdTokens int     `json:"threshold_tokens"` // applies above this prompt size
	InputPerMTok    float64 `json:"input_per_mtok"`
	OutputPerMTok   float64 `json:"output_per_mtok"`
}

// ModelInfo describes one model the facade can drive.
type ModelInfo struct {
	ID              string  `json:"id"`
	Provider        string  `json:"provider"`
	ContextWindow   int     `json:"context_window"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	InputPerMTok    float64 `json:"input_per_mtok"`
	OutputPerMTok   float64 `json:"output_per_mtok"`

	SupportsTools       bool `json:"supports_tools"`
	SupportsVision      bool `json:"supports_vision"`
	SupportsReasoning   bool `json:"supports_reasoning"`
	SupportsStreaming   bool `json:"supports_streaming"`
	SupportsPromptCache bool `json:"supports_prompt_cache"`

	PricingTiers []PricingTier `json:"pricing_tiers,omitempty"`
}

// Locally-hosted vendors report models dynamically; everything else comes
// from this catalog.
var modelCatalog = map[string][]ModelInfo{
	"anthropic": {
		{
			ID: "claude-sonnet-4-20250514", Provider: "anthropic",
			ContextWindow: 200000, MaxOutputTokens: 64000,
			InputPerMTok: 3, OutputPerMTok: 15,
			SupportsTools: true, SupportsVision: true, SupportsReasoning: true,
			SupportsStreaming: true, SupportsPromptCache: true,
			PricingTiers: []PricingTier{{ThresholdTokens: 200000, InputPerMTok: 6, OutputPerMTok: 22.5}},
		},
		{
			ID: "claude-haiku-3-5-20241022", Provider: "anthropic",
			ContextWindow: 200000, MaxOutputTokens: 8192,
			InputPerMTok: 0.8, OutputPerMTok: 4,
			SupportsTools: true, SupportsVision: true,
			SupportsStreaming: true, SupportsPromptCache: true,
		},
	},
	"openai": {
		{
			ID: "gpt-4o", Provider: "openai",
			ContextWindow: 128000, MaxOutputTokens: 16384,
			InputPerMTok: 2.5, OutputPerMTok: 10,
			SupportsTools: true, SupportsVision: true, SupportsStreaming: true,
		},
		{
			ID: "gpt-4o-mini", Provider: "openai",
			ContextWindow: 128000, MaxOutputTokens: 16384,
			InputPerMTok: 0.15, OutputPerMTok: 0.6,
			SupportsTools: true, SupportsVision: true, SupportsStreaming: true,
		},
	},
	"gemini": {
		{
			ID: "gemini-2.5-flash", Provider: "gemini",
			ContextWindow: 1048576, MaxOutputTokens: 65536,
			InputPerMTok: 0.3, OutputPerMTok: 2.5,
			SupportsTools: true, SupportsVision: true, SupportsReasoning: true,
			SupportsStreaming: true, SupportsPromptCache: true,
			PricingTiers: []PricingTier{{ThresholdTokens: 200000, InputPerMTok: 0.6, OutputPerMTok: 5}},
		},
		{
			ID: "gemini-2.5-pro", Provider: "gemini",
			ContextWindow: 1048576, MaxOutputTokens: 65536,
			InputPerMTok: 1.25, OutputPerMTok: 10,
			SupportsTools: true, SupportsVision: true, SupportsReasoning: true,
			SupportsStreaming: true, SupportsPromptCache: true,
			PricingTiers: []PricingTier{{ThresholdTokens: 200000, InputPerMTok: 2.5, OutputPerMTok: 15}},
		},
	},
	"deepseek": {
		{
			ID: "deepseek-chat", Provider: "deepseek",
			ContextWindow: 65536, MaxOutputTokens: 8192,
			InputPerMTok: 0.27, OutputPerMTok: 1.1,
			SupportsTools: true, SupportsStreaming: true, SupportsPromptCache: true,
		},
		{
			ID: "deepseek-reasoner", Provider: "deepseek",
			ContextWindow: 65536, MaxOutputTokens: 65536,
			InputPerMTok: 0.55, OutputPerMTok: 2.19,
			SupportsReasoning: true, SupportsStreaming: true,
		},
	},
}

// ollamaFallbackContextWindow is used when /api/show is unreachable.
const ollamaFallbackContextWindow = 4096
