package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// AnthropicMessages is the vendor payload the Anthropic transform builds.
// The facade copies these fields into an anthropic.MessagesRequest.
type AnthropicMessages struct {
	Messages []anthropic.Message
	System   []anthropic.MessageSystemPart
}

// AnthropicTransform maps the canonical model to the Anthropic Messages
// wire format using the SDK's request/response types.
type AnthropicTransform struct{}

// NewAnthropicTransform creates the Anthropic transform.
func NewAnthropicTransform() *AnthropicTransform {
	return &AnthropicTransform{}
}

func (t *AnthropicTransform) Name() string { return "anthropic" }

// TransformMessages converts canonical messages into Anthropic messages.
// System messages go to the top-level system field; tool results become
// user-role tool_result blocks.
func (t *AnthropicTransform) TransformMessages(messages []llm.Message, cfg Config) (MessagesPayload, []Warning, error) {
	var warnings []Warning
	var system []anthropic.MessageSystemPart
	var out []anthropic.Message

	// Forward pass so tool results can be validated against their uses.
	names := llm.BuildToolNameIndex(messages)

	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			system = append(system, anthropic.MessageSystemPart{
				Type: "text",
				Text: m.Text(),
			})
			continue
		}

		var content []anthropic.MessageContent
		var results []anthropic.MessageContent

		for _, p := range m.Parts {
			switch p.Type {
			case llm.PartText:
				if p.Text != "" {
					content = append(content, anthropic.NewTextMessageContent(p.Text))
				}
			case llm.PartImage:
				block, w := anthropicImageContent(*p.Image)
				if w != nil {
					warnings = append(warnings, *w)
				}
				content = append(content, block)
			case llm.PartToolUse:
				input := p.ToolInput
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				content = append(content, anthropic.NewToolUseMessageContent(p.ToolUseID, p.ToolName, input))
			case llm.PartToolResult:
				if _, ok := names[p.ResultFor]; !ok {
					warnings = append(warnings, missingToolNameWarning(p.ResultFor))
				}
				body := p.ResultContent
				if body == "" {
					body = "{}" // the API rejects empty content
				}
				results = append(results, anthropic.NewToolResultMessageContent(p.ResultFor, body, p.IsError))
			default:
				warnings = append(warnings, unsupportedPartWarning(p.Type))
			}
		}

		role := anthropic.RoleUser
		if m.Role == llm.RoleAssistant {
			role = anthropic.RoleAssistant
		}
		if len(content) > 0 {
			out = append(out, anthropic.Message{Role: role, Content: content})
		}
		// Tool results always ride in user-role messages.
		if len(results) > 0 {
			out = append(out, anthropic.Message{Role: anthropic.RoleUser, Content: results})
		}
	}

	return MessagesPayload{Data: &AnthropicMessages{Messages: out, System: system}, System: system}, warnings, nil
}

func anthropicImageContent(src llm.ImageSource) (anthropic.MessageContent, *Warning) {
	switch src.Kind {
	case llm.ImageSourceURL:
		return anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(anthropic.MessagesContentSourceType("url"), src.MediaType, src.Data),
		), nil
	case llm.ImageSourceDataURL:
		payload, mediaType, ok := splitDataURL(src.Data)
		if !ok {
			w := Warning{
				Code:     WarnUnsupportedContentType,
				Severity: "warning",
				Message:  "malformed data URL; sending raw payload as base64",
				Field:    "image",
			}
			return anthropic.NewImageMessageContent(
				anthropic.NewMessageContentSource(anthropic.MessagesContentSourceTypeBase64, src.MediaType, src.Data),
			), &w
		}
		if mediaType == "" {
			mediaType = src.MediaType
		}
		return anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(anthropic.MessagesContentSourceTypeBase64, mediaType, payload),
		), nil
	default:
		return anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(anthropic.MessagesContentSourceTypeBase64, src.MediaType, src.Data),
		), nil
	}
}

// splitDataURL extracts the base64 payload and media type from a
// data:<media>;base64,<payload> URL.
func splitDataURL(raw string) (payload, mediaType string, ok bool) {
	if !strings.HasPrefix(raw, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(raw, "data:")
	idx := strings.Index(rest, ",")
	if idx < 0 {
		return "", "", false
	}
	meta, payload := rest[:idx], rest[idx+1:]
	mediaType = strings.TrimSuffix(meta, ";base64")
	if mediaType == meta {
		// Not base64-encoded; caller treats it as unsupported.
		return "", "", false
	}
	return payload, mediaType, true
}

// TransformTools converts tool definitions to Anthropic tool definitions.
func (t *AnthropicTransform) TransformTools(tools []ToolDef, cfg Config) (ToolsPayload, []Warning, error) {
	defs := make([]anthropic.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, anthropic.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: CleanSchema(tool.InputSchema),
		})
	}
	return ToolsPayload{Data: defs}, nil, nil
}

// ParseResponse normalizes an anthropic.MessagesResponse.
func (t *AnthropicTransform) ParseResponse(response any, cfg Config) (llm.ParsedResponse, []Warning, error) {
	resp, ok := response.(*anthropic.MessagesResponse)
	if !ok {
		return llm.ParsedResponse{}, nil, llm.NewError(llm.ErrInternal,
			fmt.Errorf("anthropic transform got %T, want *anthropic.MessagesResponse", response))
	}

	var warnings []Warning
	var parsed llm.ParsedResponse

	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				parsed.Content += *block.Text
			}
		case anthropic.MessagesContentTypeToolUse:
			if block.MessageContentToolUse == nil {
				continue
			}
			tu := block.MessageContentToolUse
			input := json.RawMessage(tu.Input)
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			parsed.ToolCalls = append(parsed.ToolCalls, llm.ToolCall{
				ID:    tu.ID,
				Name:  tu.Name,
				Input: input,
			})
		default:
			warnings = append(warnings, Warning{
				Code:     WarnUnsupportedContentType,
				Severity: "info",
				Message:  fmt.Sprintf("ignoring response block type %q", block.Type),
			})
		}
	}

	parsed.StopReason = anthropicStopReason(string(resp.StopReason), len(parsed.ToolCalls) > 0)
	parsed.Usage = llm.Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	return parsed, warnings, nil
}

func anthropicStopReason(reason string, hasToolCalls bool) llm.StopReason {
	switch reason {
	case "end_turn":
		if hasToolCalls {
			return llm.StopToolUse
		}
		return llm.StopEndTurn
	case "max_tokens":
		return llm.StopMaxTokens
	case "stop_sequence":
		return llm.StopSequence
	case "tool_use":
		return llm.StopToolUse
	default:
		if hasToolCalls {
			return llm.StopToolUse
		}
		return llm.StopEndTurn
	}
}

// ApplyCaching annotates the payload with ephemeral cache markers: the
// last system block, the last two user/assistant messages with non-trivial
// content, and the tool definitions, capped at 4 breakpoints total.
func (t *AnthropicTransform) ApplyCaching(payload *MessagesPayload, tools *ToolsPayload, cfg Config) []Warning {
	if !cfg.EnableCaching {
		return nil
	}
	data, ok := payload.Data.(*AnthropicMessages)
	if !ok {
		return nil
	}

	const maxBreakpoints = 4
	placed := 0
	wanted := 0
	ephemeral := &anthropic.MessageCacheControl{Type: anthropic.CacheControlTypeEphemeral}

	// Last system block first.
	if n := len(data.System); n > 0 {
		wanted++
		data.System[n-1].CacheControl = ephemeral
		placed++
	}

	// Last two messages whose content is non-trivial.
	marked := 0
	for i := len(data.Messages) - 1; i >= 0 && marked < 2; i-- {
		msg := &data.Messages[i]
		if len(msg.Content) == 0 || !anthropicHasContent(msg.Content) {
			continue
		}
		wanted++
		if placed < maxBreakpoints {
			msg.Content[len(msg.Content)-1].CacheControl = ephemeral
			placed++
		}
		marked++
	}

	// Tool definitions: marking the last definition caches the whole
	// tool block prefix.
	if tools != nil {
		if defs, ok := tools.Data.([]anthropic.ToolDefinition); ok && len(defs) > 0 {
			wanted++
			if placed < maxBreakpoints {
				defs[len(defs)-1].CacheControl = ephemeral
				tools.Data = defs
				placed++
			}
		}
	}

	if wanted > maxBreakpoints {
		return []Warning{{
			Code:     WarnCacheBreakpointsCapped,
			Severity: "info",
			Message:  fmt.Sprintf("wanted %d cache breakpoints, capped at %d", wanted, maxBreakpoints),
		}}
	}
	return nil
}

func anthropicHasContent(content []anthropic.MessageContent) bool {
	for _, c := range content {
		if c.Type == anthropic.MessagesContentTypeText && c.Text != nil && strings.TrimSpace(*c.Text) != "" {
			return true
		}
		if c.Type != anthropic.MessagesContentTypeText {
			return true
		}
	}
	return false
}
