package llm

import "encoding/json"

// StopReason is the canonical set every vendor finish reason maps into.
type StopReason string

const (
	StopEndTurn       StopReason = "end_turn"
	StopMaxTokens     StopReason = "max_tokens"
	StopSequence      StopReason = "stop_sequence"
	StopToolUse       StopReason = "tool_use"
	StopContentFilter StopReason = "content_filter"
	StopError         StopReason = "error"
)

// Usage holds token accounting returned by providers.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	CacheReadTokens int `json:"cache_read_tokens,omitempty"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// ToolCall is a completed tool invocation request parsed from a response.
type ToolCall struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Input            json.RawMessage `json:"input"`
	ThoughtSignature string          `json:"thought_signature,omitempty"`
}

// ParsedResponse is the canonical result of one completion call after the
// transform layer has normalized the vendor response.
type ParsedResponse struct {
	Content    string     `json:"content"`
	Thinking   string     `json:"thinking,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason StopReason `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}

// StreamEventType tags a StreamEvent variant.
type StreamEventType string

const (
	EventText          StreamEventType = "text"
	EventReasoning     StreamEventType = "reasoning"
	EventToolCallDelta StreamEventType = "tool_call_delta"
	EventToolCall      StreamEventType = "tool_call"
	EventUsage         StreamEventType = "usage"
	EventError         StreamEventType = "error"
	EventDone          StreamEventType = "done"
)

// StreamEvent is the normalized streaming event. Ordering guarantees:
// Usage arrives at most once and precedes Done; ToolCallDelta events for a
// given id form a contiguous prefix of the eventual ToolCall; Text and
// Reasoning are emitted on UTF-8 boundaries.
type StreamEvent struct {
	Type StreamEventType `json:"type"`

	// EventText / EventReasoning
	Text string `json:"text,omitempty"`

	// EventToolCallDelta
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	InputDelta string `json:"input_delta,omitempty"`

	// EventToolCall
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// EventUsage
	Usage *Usage `json:"usage,omitempty"`

	// EventError
	ErrCode   string `json:"err_code,omitempty"`
	ErrText   string `json:"err_text,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`

	// EventDone
	StopReason StopReason `json:"stop_reason,omitempty"`
}
