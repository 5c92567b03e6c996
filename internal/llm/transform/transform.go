// Package transform maps the canonical message model to and from vendor
// wire formats. Each vendor gets one Transform; OpenAI-compatible vendors
// share the OpenAI transform with a vendor-specific base URL.
package transform

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// Warning records a lossy or degraded translation. Warnings are non-fatal;
// the turn driver logs them and continues.
type Warning struct {
	Code             string `json:"code"`
	Severity         string `json:"severity"` // info | warning | error
	Message          string `json:"message"`
	Field            string `json:"field,omitempty"`
	OriginalValue    string `json:"original_value,omitempty"`
	TransformedValue string `json:"transformed_value,omitempty"`
}

// Warning codes shared across transforms.
const (
	WarnMissingToolName          = "MISSING_TOOL_NAME"
	WarnUnsupportedContentType   = "UNSUPPORTED_CONTENT_TYPE"
	WarnThoughtSignatureFallback = "THOUGHT_SIGNATURE_FALLBACK"
	WarnSchemaFieldStripped      = "SCHEMA_FIELD_STRIPPED"
	WarnCacheBreakpointsCapped   = "CACHE_BREAKPOINTS_CAPPED"
)

// Config carries per-request knobs the transforms need.
type Config struct {
	ModelID       string
	EnableCaching bool
	MaxTokens     int
	Temperature   float32
}

// MessagesPayload is the vendor message sequence plus any top-level fields
// extracted from the canonical history (e.g. Gemini's system instruction).
// Data holds a vendor-specific type owned by the transform that built it.
type MessagesPayload struct {
	Data   any
	System any // vendor top-level system field; nil when inlined
}

// ToolsPayload holds the vendor-specific tool array.
type ToolsPayload struct {
	Data any
}

// ToolDef is the provider-agnostic tool definition handed to transforms.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Transform is the per-vendor mapping. ParseResponse accepts the vendor
// response type the same transform's facade transport produces.
type Transform interface {
	Name() string
	TransformMessages(messages []llm.Message, cfg Config) (MessagesPayload, []Warning, error)
	TransformTools(tools []ToolDef, cfg Config) (ToolsPayload, []Warning, error)
	ParseResponse(response any, cfg Config) (llm.ParsedResponse, []Warning, error)
}

// Cacher is implemented by transforms whose vendor supports prompt caching.
type Cacher interface {
	ApplyCaching(payload *MessagesPayload, tools *ToolsPayload, cfg Config) []Warning
}

// Registry holds transforms by provider name. Read-mostly after startup;
// re-registration during configuration changes is safe for concurrent
// readers.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]Transform
}

// NewRegistry creates a registry pre-populated with the built-in vendors.
func NewRegistry() *Registry {
	r := &Registry{transforms: make(map[string]Transform)}
	r.Register(NewAnthropicTransform())
	r.Register(NewGeminiTransform())
	r.Register(NewOpenAITransform("openai"))
	for _, vendor := range OpenAICompatibleVendors() {
		r.Register(NewOpenAITransform(vendor))
	}
	return r
}

// Register adds or replaces a transform under its lowercased name.
func (r *Registry) Register(t Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[strings.ToLower(t.Name())] = t
}

// Get looks up a transform case-insensitively.
func (r *Registry) Get(provider string) (Transform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transforms[strings.ToLower(provider)]
	if !ok {
		return nil, llm.NewError(llm.ErrResourceNotFound, fmt.Errorf("no transform registered for provider %q", provider))
	}
	return t, nil
}

// Providers returns the registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAICompatibleVendors lists vendors that reuse the OpenAI transform
// with a vendor-specific base URL.
func OpenAICompatibleVendors() []string {
	return []string{
		"ollama", "lmstudio", "groq", "mistral", "moonshot", "deepseek",
		"xai", "openrouter", "qwen", "zhipu", "yi", "baichuan", "doubao",
		"minimax",
	}
}

// sanitizeToolID degrades a tool_use id into a displayable name when the
// forward pass could not recover the real tool name.
func sanitizeToolID(id string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	if cleaned == "" {
		cleaned = "unknown_tool"
	}
	return cleaned
}

func missingToolNameWarning(id string) Warning {
	return Warning{
		Code:             WarnMissingToolName,
		Severity:         "warning",
		Message:          "tool result has no matching tool_use; falling back to sanitized id",
		Field:            "tool_use_id",
		OriginalValue:    id,
		TransformedValue: sanitizeToolID(id),
	}
}

func unsupportedPartWarning(pt llm.PartType) Warning {
	return Warning{
		Code:     WarnUnsupportedContentType,
		Severity: "warning",
		Message:  fmt.Sprintf("content part type %q is not supported by this provider", pt),
		Field:    "parts",
	}
}
