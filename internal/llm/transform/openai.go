package transform

import (
	"encoding/json"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// OpenAITransform maps the canonical model to the Chat Completions wire
// format. The same transform serves every OpenAI-compatible vendor; only
// the provider name (and the facade's base URL) differs.
type OpenAITransform struct {
	vendor string
}

// NewOpenAITransform creates a transform for the given vendor name.
func NewOpenAITransform(vendor string) *OpenAITransform {
	return &OpenAITransform{vendor: vendor}
}

func (t *OpenAITransform) Name() string { return t.vendor }

// VendorBaseURL returns the default base URL for an OpenAI-compatible
// vendor, or empty for openai itself (the SDK default).
func VendorBaseURL(vendor string) string {
	switch vendor {
	case "ollama":
		return "http://localhost:11434/v1"
	case "lmstudio":
		return "http://localhost:1234/v1"
	case "groq":
		return "https://api.groq.com/openai/v1"
	case "mistral":
		return "https://api.mistral.ai/v1"
	case "moonshot":
		return "https://api.moonshot.cn/v1"
	case "deepseek":
		return "https://api.deepseek.com/v1"
	case "xai":
		return "https://api.x.ai/v1"
	case "openrouter":
		return "https://openrouter.ai/api/v1"
	case "qwen":
		return "https://dashscope.aliyuncs.com/compatible-mode/v1"
	case "zhipu":
		return "https://open.bigmodel.cn/api/paas/v4"
	case "yi":
		return "https://api.lingyiwanwu.com/v1"
	case "baichuan":
		return "https://api.baichuan-ai.com/v1"
	case "doubao":
		return "https://ark.cn-beijing.volces.com/api/v3"
	case "minimax":
		return "https://api.minimax.chat/v1"
	default:
		return ""
	}
}

// TransformMessages converts canonical messages to Chat Completions
// messages. Tool results become role=tool messages correlated by id.
func (t *OpenAITransform) TransformMessages(messages []llm.Message, cfg Config) (MessagesPayload, []Warning, error) {
	var warnings []Warning
	out := make([]openai.ChatCompletionMessage, 0, len(messages))

	names := llm.BuildToolNameIndex(messages)

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: m.Text(),
			})

		case llm.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			for _, p := range m.Parts {
				switch p.Type {
				case llm.PartText:
					msg.Content += p.Text
				case llm.PartToolUse:
					args := string(p.ToolInput)
					if args == "" {
						args = "{}"
					}
					msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
						ID:   p.ToolUseID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      p.ToolName,
							Arguments: args,
						},
					})
				default:
					warnings = append(warnings, unsupportedPartWarning(p.Type))
				}
			}
			// The SDK serializes empty content as null, which some
			// vendors reject on tool-call messages.
			if msg.Content == "" && len(msg.ToolCalls) > 0 {
				msg.Content = " "
			}
			out = append(out, msg)

		case llm.RoleUser:
			var parts []openai.ChatMessagePart
			var plain string
			hasImage := false
			for _, p := range m.Parts {
				switch p.Type {
				case llm.PartText:
					plain += p.Text
					parts = append(parts, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeText,
						Text: p.Text,
					})
				case llm.PartImage:
					hasImage = true
					parts = append(parts, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    openaiImageURL(*p.Image),
							Detail: openai.ImageURLDetailAuto,
						},
					})
				case llm.PartToolResult:
					name, ok := names[p.ResultFor]
					if !ok {
						warnings = append(warnings, missingToolNameWarning(p.ResultFor))
						name = sanitizeToolID(p.ResultFor)
					}
					content := p.ResultContent
					if p.IsError && content == "" {
						content = "error"
					}
					out = append(out, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						Content:    content,
						Name:       name,
						ToolCallID: p.ResultFor,
					})
				default:
					warnings = append(warnings, unsupportedPartWarning(p.Type))
				}
			}
			if hasImage {
				out = append(out, openai.ChatCompletionMessage{
					Role:         openai.ChatMessageRoleUser,
					MultiContent: parts,
				})
			} else if plain != "" {
				out = append(out, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: plain,
				})
			}
		}
	}

	return MessagesPayload{Data: out}, warnings, nil
}

// openaiImageURL renders an image source in the vendor's URL form: URLs
// and data URLs pass through, raw base64 is wrapped into a data URL.
func openaiImageURL(src llm.ImageSource) string {
	switch src.Kind {
	case llm.ImageSourceURL, llm.ImageSourceDataURL:
		return src.Data
	default:
		return fmt.Sprintf("data:%s;base64,%s", src.MediaType, src.Data)
	}
}

// TransformTools converts tool definitions to Chat Completions tools.
func (t *OpenAITransform) TransformTools(tools []ToolDef, cfg Config) (ToolsPayload, []Warning, error) {
	defs := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  CleanSchema(tool.InputSchema),
			},
		})
	}
	return ToolsPayload{Data: defs}, nil, nil
}

// ParseResponse normalizes an openai.ChatCompletionResponse.
func (t *OpenAITransform) ParseResponse(response any, cfg Config) (llm.ParsedResponse, []Warning, error) {
	resp, ok := response.(*openai.ChatCompletionResponse)
	if !ok {
		return llm.ParsedResponse{}, nil, llm.NewError(llm.ErrInternal,
			fmt.Errorf("%s transform got %T, want *openai.ChatCompletionResponse", t.vendor, response))
	}
	if len(resp.Choices) == 0 {
		return llm.ParsedResponse{}, nil, llm.ProviderError(
			fmt.Errorf("%s returned no choices", t.vendor), "empty_response", false)
	}

	choice := resp.Choices[0]
	parsed := llm.ParsedResponse{
		Content: choice.Message.Content,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	var warnings []Warning
	for _, tc := range choice.Message.ToolCalls {
		input := json.RawMessage(tc.Function.Arguments)
		if len(input) == 0 {
			input = json.RawMessage("{}")
		} else if !json.Valid(input) {
			warnings = append(warnings, Warning{
				Code:          "MALFORMED_TOOL_ARGUMENTS",
				Severity:      "warning",
				Message:       fmt.Sprintf("tool call %s carried invalid JSON arguments", tc.ID),
				Field:         "arguments",
				OriginalValue: tc.Function.Arguments,
			})
			input = json.RawMessage("{}")
		}
		parsed.ToolCalls = append(parsed.ToolCalls, llm.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	parsed.StopReason = openaiStopReason(string(choice.FinishReason), len(parsed.ToolCalls) > 0)
	return parsed, warnings, nil
}

func openaiStopReason(reason string, hasToolCalls bool) llm.StopReason {
	switch reason {
	case "stop":
		if hasToolCalls {
			return llm.StopToolUse
		}
		return llm.StopEndTurn
	case "length":
		return llm.StopMaxTokens
	case "tool_calls", "function_call":
		return llm.StopToolUse
	case "content_filter":
		return llm.StopContentFilter
	default:
		if hasToolCalls {
			return llm.StopToolUse
		}
		return llm.StopEndTurn
	}
}

// ParseStreamChunk folds one stream response into canonical events using
// acc to assemble tool-call input fragments. Usage and the finish reason
// are held in acc — the final chunk may carry usage after the finish
// reason, and Usage must precede Done — so the caller emits acc.Finish()
// once the vendor stream ends.
func (t *OpenAITransform) ParseStreamChunk(chunk openai.ChatCompletionStreamResponse, acc *ToolInputAccumulators) []llm.StreamEvent {
	var events []llm.StreamEvent

	if chunk.Usage != nil && chunk.Usage.TotalTokens > 0 {
		acc.SetUsage(llm.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
		})
	}
	if len(chunk.Choices) == 0 {
		return events
	}

	choice := chunk.Choices[0]
	if choice.Delta.Content != "" {
		events = append(events, llm.StreamEvent{Type: llm.EventText, Text: choice.Delta.Content})
	}

	for _, tc := range choice.Delta.ToolCalls {
		id := tc.ID
		if id == "" && tc.Index != nil {
			id = acc.IDForIndex(*tc.Index)
		}
		if id == "" {
			continue
		}
		if tc.Index != nil {
			acc.BindIndex(*tc.Index, id)
		}
		ev := acc.Push(id, tc.Function.Name, tc.Function.Arguments)
		events = append(events, ev)
	}

	if choice.FinishReason != "" {
		events = append(events, acc.FlushAll()...)
		acc.SetStopReason(openaiStopReason(string(choice.FinishReason), acc.SawToolCalls()))
	}
	return events
}
