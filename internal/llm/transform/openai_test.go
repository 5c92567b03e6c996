package transform

import (
	"encoding/json"
	"testing"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

func TestOpenAITransformMessages(t *testing.T) {
	tf := NewOpenAITransform("openai")
	messages := []llm.Message{
		llm.NewTextMessage(llm.RoleSystem, "be terse"),
		llm.NewTextMessage(llm.RoleUser, "list files"),
		{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
			llm.ToolUsePart("call_1", "list_files", json.RawMessage(`{"path":"."}`)),
		}},
		{Role: llm.RoleUser, Parts: []llm.ContentPart{
			llm.ToolResultPart("call_1", `["a.go"]`, false),
		}},
	}

	payload, warnings, err := tf.TransformMessages(messages, Config{ModelID: "gpt-4o"})
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", warnings)
	}

	msgs := payload.Data.([]openai.ChatCompletionMessage)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	// System role is native to this wire protocol, so it stays inline.
	if msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first role = %s, want system", msgs[0].Role)
	}
	assistant := msgs[2]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "call_1" {
		t.Errorf("assistant tool calls = %+v", assistant.ToolCalls)
	}
	if assistant.Content == "" {
		t.Error("assistant content must not serialize as null alongside tool calls")
	}
	toolMsg := msgs[3]
	if toolMsg.Role != openai.ChatMessageRoleTool || toolMsg.ToolCallID != "call_1" || toolMsg.Name != "list_files" {
		t.Errorf("tool message = %+v", toolMsg)
	}
}

func TestOpenAIImageForms(t *testing.T) {
	tf := NewOpenAITransform("openai")
	messages := []llm.Message{
		{Role: llm.RoleUser, Parts: []llm.ContentPart{
			llm.TextPart("what is this"),
			llm.ImagePart(llm.ImageSource{Kind: llm.ImageSourceURL, Data: "https://example.com/x.png", MediaType: "image/png"}),
			llm.ImagePart(llm.ImageSource{Kind: llm.ImageSourceBase64, Data: "AAAA", MediaType: "image/png"}),
		}},
	}
	payload, _, err := tf.TransformMessages(messages, Config{})
	if err != nil {
		t.Fatal(err)
	}
	msgs := payload.Data.([]openai.ChatCompletionMessage)
	parts := msgs[0].MultiContent
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	if parts[1].ImageURL.URL != "https://example.com/x.png" {
		t.Errorf("url form = %q", parts[1].ImageURL.URL)
	}
	if parts[2].ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Errorf("base64 form = %q", parts[2].ImageURL.URL)
	}
}

func TestOpenAIParseResponse(t *testing.T) {
	tf := NewOpenAITransform("openai")
	resp := &openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: "",
				ToolCalls: []openai.ToolCall{{
					ID:   "call_9",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      "read_file",
						Arguments: `{"path":"foo.txt"}`,
					},
				}},
			},
			FinishReason: "tool_calls",
		}},
		Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 5},
	}

	parsed, warnings, err := tf.ParseResponse(resp, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", warnings)
	}
	if parsed.StopReason != llm.StopToolUse {
		t.Errorf("stop reason = %s, want tool_use", parsed.StopReason)
	}
	if parsed.Usage.InputTokens != 12 || parsed.Usage.OutputTokens != 5 {
		t.Errorf("usage = %+v", parsed.Usage)
	}
	if len(parsed.ToolCalls) != 1 || parsed.ToolCalls[0].Name != "read_file" {
		t.Errorf("tool calls = %+v", parsed.ToolCalls)
	}
}

func TestOpenAIMalformedArguments(t *testing.T) {
	tf := NewOpenAITransform("groq")
	resp := &openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{{
					ID:       "call_x",
					Function: openai.FunctionCall{Name: "grep", Arguments: `{"pattern": unterminated`},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}
	parsed, warnings, err := tf.ParseResponse(resp, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !hasWarning(warnings, "MALFORMED_TOOL_ARGUMENTS") {
		t.Error("expected MALFORMED_TOOL_ARGUMENTS warning")
	}
	if string(parsed.ToolCalls[0].Input) != "{}" {
		t.Errorf("input degraded to %s, want {}", parsed.ToolCalls[0].Input)
	}
}

func TestOpenAIStreamChunks(t *testing.T) {
	tf := NewOpenAITransform("openai")
	acc := NewToolInputAccumulators()
	idx := 0

	var events []llm.StreamEvent
	push := func(chunk openai.ChatCompletionStreamResponse) {
		events = append(events, tf.ParseStreamChunk(chunk, acc)...)
	}

	push(openai.ChatCompletionStreamResponse{Choices: []openai.ChatCompletionStreamChoice{{
		Delta: openai.ChatCompletionStreamChoiceDelta{Content: "Let me "},
	}}})
	push(openai.ChatCompletionStreamResponse{Choices: []openai.ChatCompletionStreamChoice{{
		Delta: openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{{
			Index: &idx, ID: "call_1",
			Function: openai.FunctionCall{Name: "read_file", Arguments: `{"pa`},
		}}},
	}}})
	push(openai.ChatCompletionStreamResponse{Choices: []openai.ChatCompletionStreamChoice{{
		Delta: openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{{
			Index:    &idx,
			Function: openai.FunctionCall{Arguments: `th":"foo.txt"}`},
		}}},
	}}})
	push(openai.ChatCompletionStreamResponse{Choices: []openai.ChatCompletionStreamChoice{{
		FinishReason: "tool_calls",
	}}})
	// Usage arrives after the finish chunk with stream_options.
	push(openai.ChatCompletionStreamResponse{Usage: &openai.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}})
	events = append(events, acc.Finish()...)

	assertCanonicalOrdering(t, events)

	var toolCall *llm.ToolCall
	for _, ev := range events {
		if ev.Type == llm.EventToolCall {
			toolCall = ev.ToolCall
		}
	}
	if toolCall == nil {
		t.Fatal("no completed tool call emitted")
	}
	if toolCall.Name != "read_file" || string(toolCall.Input) != `{"path":"foo.txt"}` {
		t.Errorf("tool call = %+v", toolCall)
	}
}

// assertCanonicalOrdering checks the stream guarantees: deltas for an id
// form a contiguous prefix of its ToolCall, Usage appears at most once,
// and Usage precedes Done.
func assertCanonicalOrdering(t *testing.T, events []llm.StreamEvent) {
	t.Helper()
	usageSeen := 0
	doneSeen := false
	completed := map[string]bool{}
	for _, ev := range events {
		switch ev.Type {
		case llm.EventUsage:
			usageSeen++
			if doneSeen {
				t.Error("Usage after Done")
			}
		case llm.EventDone:
			doneSeen = true
		case llm.EventToolCallDelta:
			if completed[ev.ToolCallID] {
				t.Errorf("delta for %s after its ToolCall", ev.ToolCallID)
			}
		case llm.EventToolCall:
			completed[ev.ToolCall.ID] = true
		}
	}
	if usageSeen > 1 {
		t.Errorf("Usage emitted %d times, want at most 1", usageSeen)
	}
	if !doneSeen {
		t.Error("stream did not end with Done")
	}
}
