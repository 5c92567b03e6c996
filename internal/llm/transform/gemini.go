package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// Gemini Generate Content wire types. No Go SDK is used here; the shapes
// follow the documented REST API and are marshaled directly.

// GeminiBlob is inline base64 image data.
type GeminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GeminiFileData references an image by URI.
type GeminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

// GeminiFunctionCall is the model's tool invocation.
type GeminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// GeminiFunctionResponse answers a prior function call, keyed by name.
type GeminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// GeminiPart is one element of a content turn.
type GeminiPart struct {
	Text             string                  `json:"text,omitempty"`
	InlineData       *GeminiBlob             `json:"inlineData,omitempty"`
	FileData         *GeminiFileData         `json:"fileData,omitempty"`
	FunctionCall     *GeminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *GeminiFunctionResponse `json:"functionResponse,omitempty"`
	Thought          bool                    `json:"thought,omitempty"`
	ThoughtSignature string                  `json:"thoughtSignature,omitempty"`
}

// GeminiContent is one turn; roles are user|model.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiTool wraps function declarations.
type GeminiTool struct {
	FunctionDeclarations []GeminiFunctionDeclaration `json:"functionDeclarations"`
}

// GeminiFunctionDeclaration is one callable tool.
type GeminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// GeminiCandidate is one response candidate.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

// GeminiUsageMetadata is the response token accounting.
type GeminiUsageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount,omitempty"`
}

// GeminiResponse is the Generate Content response (also the shape of each
// streamed chunk).
type GeminiResponse struct {
	Candidates    []GeminiCandidate    `json:"candidates"`
	UsageMetadata *GeminiUsageMetadata `json:"usageMetadata,omitempty"`
}

// skipThoughtSignature is the sentinel Gemini accepts when the signature
// collected from the reasoning segment is unavailable.
const skipThoughtSignature = "skip_thought_signature_validator"

// thinkingModelPattern matches model families that validate thought
// signatures on tool calls.
var thinkingModelPattern = regexp.MustCompile(`(?i)gemini-2\.[5-9]|gemini-[3-9]|-thinking`)

// IsThinkingModel reports whether the model requires thought signatures
// alongside tool calls.
func IsThinkingModel(modelID string) bool {
	return thinkingModelPattern.MatchString(modelID)
}

// GeminiTransform maps the canonical model to the Generate Content wire
// format: roles become user|model, system messages are extracted to the
// top-level system instruction, and tool results are keyed by name.
type GeminiTransform struct{}

// NewGeminiTransform creates the Gemini transform.
func NewGeminiTransform() *GeminiTransform {
	return &GeminiTransform{}
}

func (t *GeminiTransform) Name() string { return "gemini" }

// TransformMessages converts canonical messages into Gemini contents plus
// an extracted system instruction.
func (t *GeminiTransform) TransformMessages(messages []llm.Message, cfg Config) (MessagesPayload, []Warning, error) {
	var warnings []Warning
	var contents []GeminiContent
	var systemParts []GeminiPart

	names := llm.BuildToolNameIndex(messages)
	thinking := IsThinkingModel(cfg.ModelID)

	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			if text := m.Text(); text != "" {
				systemParts = append(systemParts, GeminiPart{Text: text})
			}
			continue
		}

		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}

		var parts []GeminiPart
		for _, p := range m.Parts {
			switch p.Type {
			case llm.PartText:
				if p.Text != "" {
					parts = append(parts, GeminiPart{Text: p.Text})
				}
			case llm.PartImage:
				parts = append(parts, geminiImagePart(*p.Image))
			case llm.PartToolUse:
				var args map[string]any
				if len(p.ToolInput) > 0 {
					if err := json.Unmarshal(p.ToolInput, &args); err != nil {
						warnings = append(warnings, Warning{
							Code:          "MALFORMED_TOOL_ARGUMENTS",
							Severity:      "warning",
							Message:       fmt.Sprintf("tool use %s carried invalid JSON input", p.ToolUseID),
							OriginalValue: string(p.ToolInput),
						})
						args = map[string]any{}
					}
				}
				part := GeminiPart{FunctionCall: &GeminiFunctionCall{Name: p.ToolName, Args: args}}
				if thinking {
					// Thinking models reject tool calls without a
					// signature from the preceding reasoning segment.
					sig := collectThoughtSignature(parts)
					if sig == "" {
						sig = skipThoughtSignature
						warnings = append(warnings, Warning{
							Code:     WarnThoughtSignatureFallback,
							Severity: "warning",
							Message:  fmt.Sprintf("no thought signature collected for tool call %s; using validator skip sentinel", p.ToolUseID),
							Field:    "thoughtSignature",
						})
					}
					part.ThoughtSignature = sig
				}
				parts = append(parts, part)
			case llm.PartToolResult:
				name, ok := names[p.ResultFor]
				if !ok {
					warnings = append(warnings, missingToolNameWarning(p.ResultFor))
					name = sanitizeToolID(p.ResultFor)
				}
				parts = append(parts, GeminiPart{FunctionResponse: &GeminiFunctionResponse{
					Name:     name,
					Response: geminiResultBody(p),
				}})
			default:
				warnings = append(warnings, unsupportedPartWarning(p.Type))
			}
		}
		if len(parts) > 0 {
			contents = append(contents, GeminiContent{Role: role, Parts: parts})
		}
	}

	var system *GeminiContent
	if len(systemParts) > 0 {
		system = &GeminiContent{Parts: systemParts}
	}
	return MessagesPayload{Data: contents, System: system}, warnings, nil
}

// collectThoughtSignature returns the signature of the trailing reasoning
// part, if the message carried one.
func collectThoughtSignature(parts []GeminiPart) string {
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i].Thought && parts[i].ThoughtSignature != "" {
			return parts[i].ThoughtSignature
		}
	}
	return ""
}

func geminiImagePart(src llm.ImageSource) GeminiPart {
	switch src.Kind {
	case llm.ImageSourceURL:
		return GeminiPart{FileData: &GeminiFileData{MimeType: src.MediaType, FileURI: src.Data}}
	case llm.ImageSourceDataURL:
		if payload, mediaType, ok := splitDataURL(src.Data); ok {
			if mediaType == "" {
				mediaType = src.MediaType
			}
			return GeminiPart{InlineData: &GeminiBlob{MimeType: mediaType, Data: payload}}
		}
		return GeminiPart{InlineData: &GeminiBlob{MimeType: src.MediaType, Data: src.Data}}
	default:
		return GeminiPart{InlineData: &GeminiBlob{MimeType: src.MediaType, Data: src.Data}}
	}
}

// geminiResultBody wraps a tool result for the functionResponse field,
// which requires a JSON object.
func geminiResultBody(p llm.ContentPart) map[string]any {
	var asObject map[string]any
	if json.Unmarshal([]byte(p.ResultContent), &asObject) == nil && asObject != nil {
		if p.IsError {
			asObject["error"] = true
		}
		return asObject
	}
	body := map[string]any{"output": p.ResultContent}
	if p.IsError {
		body = map[string]any{"error": p.ResultContent}
	}
	return body
}

// TransformTools converts tool definitions into function declarations with
// Gemini-sanitized parameter schemas.
func (t *GeminiTransform) TransformTools(tools []ToolDef, cfg Config) (ToolsPayload, []Warning, error) {
	var warnings []Warning
	decls := make([]GeminiFunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		params, stripped := SanitizeSchemaForGemini(tool.InputSchema)
		if stripped {
			warnings = append(warnings, Warning{
				Code:     WarnSchemaFieldStripped,
				Severity: "info",
				Message:  fmt.Sprintf("schema for tool %s rewritten for Gemini", tool.Name),
				Field:    "parameters",
			})
		}
		decls = append(decls, GeminiFunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
		})
	}
	return ToolsPayload{Data: []GeminiTool{{FunctionDeclarations: decls}}}, warnings, nil
}

// ParseResponse normalizes a GeminiResponse.
func (t *GeminiTransform) ParseResponse(response any, cfg Config) (llm.ParsedResponse, []Warning, error) {
	resp, ok := response.(*GeminiResponse)
	if !ok {
		return llm.ParsedResponse{}, nil, llm.NewError(llm.ErrInternal,
			fmt.Errorf("gemini transform got %T, want *GeminiResponse", response))
	}
	if len(resp.Candidates) == 0 {
		return llm.ParsedResponse{}, nil, llm.ProviderError(
			fmt.Errorf("gemini returned no candidates"), "empty_response", false)
	}

	cand := resp.Candidates[0]
	var parsed llm.ParsedResponse
	callSeq := 0

	for _, part := range cand.Content.Parts {
		switch {
		case part.Thought:
			parsed.Thinking += part.Text
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil || string(args) == "null" {
				args = []byte("{}")
			}
			callSeq++
			parsed.ToolCalls = append(parsed.ToolCalls, llm.ToolCall{
				// Gemini correlates by name; synthesize a stable id.
				ID:               fmt.Sprintf("%s-%d", part.FunctionCall.Name, callSeq),
				Name:             part.FunctionCall.Name,
				Input:            args,
				ThoughtSignature: part.ThoughtSignature,
			})
		case part.Text != "":
			parsed.Content += part.Text
		}
	}

	parsed.StopReason = geminiStopReason(cand.FinishReason, len(parsed.ToolCalls) > 0)
	if resp.UsageMetadata != nil {
		parsed.Usage = llm.Usage{
			InputTokens:     resp.UsageMetadata.PromptTokenCount,
			OutputTokens:    resp.UsageMetadata.CandidatesTokenCount,
			CacheReadTokens: resp.UsageMetadata.CachedContentTokenCount,
		}
	}
	return parsed, nil, nil
}

func geminiStopReason(reason string, hasToolCalls bool) llm.StopReason {
	switch strings.ToUpper(reason) {
	case "STOP":
		if hasToolCalls {
			return llm.StopToolUse
		}
		return llm.StopEndTurn
	case "MAX_TOKENS":
		return llm.StopMaxTokens
	case "SAFETY", "RECITATION":
		return llm.StopContentFilter
	case "TOOL_CODE":
		return llm.StopToolUse
	case "MALFORMED_FUNCTION_CALL":
		return llm.StopError
	default:
		if hasToolCalls {
			return llm.StopToolUse
		}
		return llm.StopEndTurn
	}
}

// ParseStreamChunk folds one streamed GeminiResponse chunk into canonical
// events. Terminal usage and stop reason are held in acc for Finish().
func (t *GeminiTransform) ParseStreamChunk(chunk *GeminiResponse, acc *ToolInputAccumulators) []llm.StreamEvent {
	var events []llm.StreamEvent

	if chunk.UsageMetadata != nil {
		acc.SetUsage(llm.Usage{
			InputTokens:     chunk.UsageMetadata.PromptTokenCount,
			OutputTokens:    chunk.UsageMetadata.CandidatesTokenCount,
			CacheReadTokens: chunk.UsageMetadata.CachedContentTokenCount,
		})
	}
	if len(chunk.Candidates) == 0 {
		return events
	}

	cand := chunk.Candidates[0]
	for _, part := range cand.Content.Parts {
		switch {
		case part.Thought:
			if part.Text != "" {
				events = append(events, llm.StreamEvent{Type: llm.EventReasoning, Text: part.Text})
			}
		case part.FunctionCall != nil:
			// Gemini streams whole function calls, not fragments.
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil || string(args) == "null" {
				args = []byte("{}")
			}
			id := fmt.Sprintf("%s-%d", part.FunctionCall.Name, len(events)+1)
			events = append(events, acc.Push(id, part.FunctionCall.Name, string(args)))
			events = append(events, acc.FlushAll()...)
		case part.Text != "":
			events = append(events, llm.StreamEvent{Type: llm.EventText, Text: part.Text})
		}
	}
	if cand.FinishReason != "" {
		acc.SetStopReason(geminiStopReason(cand.FinishReason, acc.SawToolCalls()))
	}
	return events
}
