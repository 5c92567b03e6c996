package llm

import (
	"encoding/json"
	"testing"
)

func TestCheckBalance(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		wantErr  bool
	}{
		{
			name: "balanced pair",
			messages: []Message{
				{Role: RoleAssistant, Parts: []ContentPart{ToolUsePart("t1", "read_file", json.RawMessage(`{}`))}},
				{Role: RoleUser, Parts: []ContentPart{ToolResultPart("t1", "ok", false)}},
			},
			wantErr: false,
		},
		{
			name: "unanswered tool use",
			messages: []Message{
				{Role: RoleAssistant, Parts: []ContentPart{ToolUsePart("t1", "read_file", nil)}},
			},
			wantErr: true,
		},
		{
			name: "orphan tool result",
			messages: []Message{
				{Role: RoleUser, Parts: []ContentPart{ToolResultPart("ghost", "ok", false)}},
			},
			wantErr: true,
		},
		{
			name: "assistant turn before result",
			messages: []Message{
				{Role: RoleAssistant, Parts: []ContentPart{ToolUsePart("t1", "read_file", nil)}},
				NewTextMessage(RoleAssistant, "moving on"),
				{Role: RoleUser, Parts: []ContentPart{ToolResultPart("t1", "late", false)}},
			},
			wantErr: true,
		},
		{
			name: "multiple interleaved",
			messages: []Message{
				{Role: RoleAssistant, Parts: []ContentPart{
					ToolUsePart("a", "read_file", nil),
					ToolUsePart("b", "list_files", nil),
				}},
				{Role: RoleUser, Parts: []ContentPart{
					ToolResultPart("b", "ok", false),
					ToolResultPart("a", "ok", false),
				}},
				NewTextMessage(RoleAssistant, "done"),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBalance(tt.messages)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckBalance() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidate(t *testing.T) {
	valid := Message{Role: RoleUser, Parts: []ContentPart{TextPart("hi")}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}

	badRole := Message{Role: "tool"}
	if err := badRole.Validate(); err == nil {
		t.Error("expected error for unknown role")
	}

	noID := Message{Role: RoleAssistant, Parts: []ContentPart{{Type: PartToolUse, ToolName: "x"}}}
	if err := noID.Validate(); err == nil {
		t.Error("expected error for tool_use without id")
	}

	unknownPart := Message{Role: RoleUser, Parts: []ContentPart{{Type: "video"}}}
	if err := unknownPart.Validate(); err == nil {
		t.Error("expected error for unknown part type")
	}
}

func TestBuildToolNameIndex(t *testing.T) {
	messages := []Message{
		{Role: RoleAssistant, Parts: []ContentPart{
			ToolUsePart("t1", "read_file", nil),
			ToolUsePart("t2", "grep", nil),
		}},
	}
	idx := BuildToolNameIndex(messages)
	if idx["t1"] != "read_file" || idx["t2"] != "grep" {
		t.Errorf("unexpected index: %v", idx)
	}
}

func TestImageDimensions(t *testing.T) {
	tests := []struct {
		name       string
		src        ImageSource
		wantW      int
		wantH      int
	}{
		{"defaults", ImageSource{}, 1024, 1024},
		{"negative defaults", ImageSource{Width: -5, Height: 0}, 1024, 1024},
		{"clamped high", ImageSource{Width: 99999, Height: 500}, 16384, 500},
		{"passthrough", ImageSource{Width: 800, Height: 600}, 800, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := tt.src.Dimensions()
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Dimensions() = (%d, %d), want (%d, %d)", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
