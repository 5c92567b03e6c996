// Package llm defines the canonical message model shared by every provider
// transform. Transforms translate between these types and vendor wire
// formats; the rest of the system never sees a vendor shape.
package llm

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a canonical message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType tags a ContentPart variant.
type PartType string

const (
	PartText       PartType = "text"
	PartImage      PartType = "image"
	PartToolUse    PartType = "tool_use"
	PartToolResult PartType = "tool_result"
)

// ImageSourceKind describes how image bytes are referenced.
type ImageSourceKind string

const (
	ImageSourceBase64  ImageSourceKind = "base64"
	ImageSourceURL     ImageSourceKind = "url"
	ImageSourceDataURL ImageSourceKind = "data_url"
)

const (
	minImageDim     = 1
	maxImageDim     = 16384
	defaultImageDim = 1024
)

// ImageSource carries image payload plus optional dimensions used for
// token budgeting.
type ImageSource struct {
	Kind      ImageSourceKind `json:"kind"`
	Data      string          `json:"data"`       // base64 payload, URL, or data-URL
	MediaType string          `json:"media_type"` // image/png, image/jpeg, image/gif, image/webp
	Width     int             `json:"width,omitempty"`
	Height    int             `json:"height,omitempty"`
}

// Dimensions returns width and height clamped into [1, 16384].
// Missing or non-positive values default to 1024x1024.
func (s ImageSource) Dimensions() (int, int) {
	return clampDim(s.Width), clampDim(s.Height)
}

func clampDim(d int) int {
	if d <= 0 {
		return defaultImageDim
	}
	if d < minImageDim {
		return minImageDim
	}
	if d > maxImageDim {
		return maxImageDim
	}
	return d
}

// ContentPart is the tagged variant a message body is built from. Exactly
// one of the payload fields is set, selected by Type.
type ContentPart struct {
	Type PartType `json:"type"`

	// PartText
	Text string `json:"text,omitempty"`

	// PartImage
	Image *ImageSource `json:"image,omitempty"`

	// PartToolUse
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// PartToolResult. ResultFor references the ToolUseID being answered.
	ResultFor     string `json:"result_for,omitempty"`
	ResultContent string `json:"result_content,omitempty"`
	IsError       bool   `json:"is_error,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart builds an image content part.
func ImagePart(src ImageSource) ContentPart {
	return ContentPart{Type: PartImage, Image: &src}
}

// ToolUsePart builds a tool-use request part.
func ToolUsePart(id, name string, input json.RawMessage) ContentPart {
	return ContentPart{Type: PartToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResultPart builds the result part paired with a prior tool use.
func ToolResultPart(toolUseID, content string, isError bool) ContentPart {
	return ContentPart{Type: PartToolResult, ResultFor: toolUseID, ResultContent: content, IsError: isError}
}

// Message is one entry in the canonical conversation. Content is an ordered
// list of parts; a plain string message is a single text part.
type Message struct {
	ID    string        `json:"id,omitempty"`
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`

	// Compaction bookkeeping. A summary message replaces a contiguous
	// range of prior messages; ReplacedIDs drives cascade detection.
	IsSummary   bool     `json:"is_summary,omitempty"`
	CondenseID  string   `json:"condense_id,omitempty"`
	ReplacedIDs []string `json:"replaced_ids,omitempty"`
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []ContentPart{TextPart(text)}}
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolUses returns the tool-use parts of the message.
func (m Message) ToolUses() []ContentPart {
	var uses []ContentPart
	for _, p := range m.Parts {
		if p.Type == PartToolUse {
			uses = append(uses, p)
		}
	}
	return uses
}

// Validate checks role and per-part structural requirements.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	for i, p := range m.Parts {
		switch p.Type {
		case PartText:
		case PartImage:
			if p.Image == nil {
				return fmt.Errorf("part %d: image part without image source", i)
			}
		case PartToolUse:
			if p.ToolUseID == "" || p.ToolName == "" {
				return fmt.Errorf("part %d: tool_use requires id and name", i)
			}
		case PartToolResult:
			if p.ResultFor == "" {
				return fmt.Errorf("part %d: tool_result requires tool_use_id", i)
			}
		default:
			return fmt.Errorf("part %d: unknown content part type %q", i, p.Type)
		}
	}
	return nil
}

// CheckBalance verifies that every ToolUse emitted by an assistant message
// is answered by a ToolResult before any later assistant message, and that
// no ToolResult refers to an unknown ToolUse. Absence is a protocol error.
func CheckBalance(messages []Message) error {
	pending := map[string]bool{} // tool_use ids awaiting a result
	seen := map[string]bool{}    // every tool_use id in the conversation

	for _, m := range messages {
		// A new assistant turn may not start while results are owed.
		if m.Role == RoleAssistant && len(pending) > 0 {
			return fmt.Errorf("%d tool_use id(s) unanswered before assistant turn", len(pending))
		}
		for _, p := range m.Parts {
			switch p.Type {
			case PartToolUse:
				pending[p.ToolUseID] = true
				seen[p.ToolUseID] = true
			case PartToolResult:
				if !seen[p.ResultFor] {
					return fmt.Errorf("tool_result %q has no matching tool_use", p.ResultFor)
				}
				delete(pending, p.ResultFor)
			}
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d tool_use id(s) never answered", len(pending))
	}
	return nil
}

// BuildToolNameIndex makes one forward pass over the conversation and maps
// tool_use id to tool name. Transforms that encode tool results by name
// (Gemini) depend on this; others use it to validate pairing.
func BuildToolNameIndex(messages []Message) map[string]string {
	idx := make(map[string]string)
	for _, m := range messages {
		for _, p := range m.Parts {
			if p.Type == PartToolUse {
				idx[p.ToolUseID] = p.ToolName
			}
		}
	}
	return idx
}
