package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// scriptedGate returns a fixed decision and records calls.
type scriptedGate struct {
	decision Decision
	calls    int
}

func (g *scriptedGate) Decide(ctx context.Context, tool Tool, args map[string]any) Decision {
	g.calls++
	return g.decision
}

func echoTool(kind Kind) Tool {
	return Tool{
		Name:        "echo",
		Description: "echoes input",
		Kind:        kind,
		Category:    "test",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []any{"text"},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool(KindRead))
	d := NewDispatcher(r, nil)

	part := d.Dispatch(context.Background(), llm.ToolCall{
		ID: "t1", Name: "echo", Input: json.RawMessage(`{"text":"hello"}`),
	})
	if part.Type != llm.PartToolResult || part.ResultFor != "t1" {
		t.Fatalf("part = %+v", part)
	}
	if part.IsError || part.ResultContent != "hello" {
		t.Errorf("result = %+v", part)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil)
	part := d.Dispatch(context.Background(), llm.ToolCall{ID: "t1", Name: "ghost"})
	if !part.IsError || part.ResultFor != "t1" {
		t.Errorf("part = %+v", part)
	}
}

func TestDispatchSchemaValidation(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool(KindRead))
	d := NewDispatcher(r, nil)

	// Missing required field.
	part := d.Dispatch(context.Background(), llm.ToolCall{
		ID: "t1", Name: "echo", Input: json.RawMessage(`{}`),
	})
	if !part.IsError {
		t.Error("schema violation should produce an error result")
	}

	// Wrong type.
	part = d.Dispatch(context.Background(), llm.ToolCall{
		ID: "t2", Name: "echo", Input: json.RawMessage(`{"text": 7}`),
	})
	if !part.IsError {
		t.Error("type mismatch should produce an error result")
	}
}

func TestDispatchPermissionGate(t *testing.T) {
	t.Run("reject", func(t *testing.T) {
		r := NewRegistry()
		r.Register(echoTool(KindShell))
		gate := &scriptedGate{decision: DecisionReject}
		d := NewDispatcher(r, gate)

		part := d.Dispatch(context.Background(), llm.ToolCall{
			ID: "t1", Name: "echo", Input: json.RawMessage(`{"text":"x"}`),
		})
		if !part.IsError || part.ResultContent != "permission denied" {
			t.Errorf("part = %+v", part)
		}
	})

	t.Run("always caches approval", func(t *testing.T) {
		r := NewRegistry()
		r.Register(echoTool(KindWrite))
		gate := &scriptedGate{decision: DecisionAlways}
		d := NewDispatcher(r, gate)

		call := llm.ToolCall{ID: "t1", Name: "echo", Input: json.RawMessage(`{"text":"x"}`)}
		d.Dispatch(context.Background(), call)
		d.Dispatch(context.Background(), call)
		if gate.calls != 1 {
			t.Errorf("gate consulted %d times, want 1 after always", gate.calls)
		}
	})

	t.Run("once asks every time", func(t *testing.T) {
		r := NewRegistry()
		r.Register(echoTool(KindShell))
		gate := &scriptedGate{decision: DecisionOnce}
		d := NewDispatcher(r, gate)

		call := llm.ToolCall{ID: "t1", Name: "echo", Input: json.RawMessage(`{"text":"x"}`)}
		d.Dispatch(context.Background(), call)
		d.Dispatch(context.Background(), call)
		if gate.calls != 2 {
			t.Errorf("gate consulted %d times, want 2 for once", gate.calls)
		}
	})

	t.Run("read tools bypass the gate", func(t *testing.T) {
		r := NewRegistry()
		r.Register(echoTool(KindRead))
		gate := &scriptedGate{decision: DecisionReject}
		d := NewDispatcher(r, gate)

		part := d.Dispatch(context.Background(), llm.ToolCall{
			ID: "t1", Name: "echo", Input: json.RawMessage(`{"text":"x"}`),
		})
		if part.IsError || gate.calls != 0 {
			t.Errorf("read tool gated: part=%+v calls=%d", part, gate.calls)
		}
	})
}

func TestDispatchCancelled(t *testing.T) {
	r := NewRegistry()
	cancelled := Tool{
		Name:        "slow",
		Description: "never finishes",
		Kind:        KindRead,
		InputSchema: map[string]any{"type": "object"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "", context.Canceled
		},
	}
	r.Register(cancelled)
	d := NewDispatcher(r, nil)

	part := d.Dispatch(context.Background(), llm.ToolCall{ID: "t1", Name: "slow"})
	// History stays balanced: a synthetic error result, not a dropped call.
	if !part.IsError || part.ResultContent != "cancelled" || part.ResultFor != "t1" {
		t.Errorf("part = %+v", part)
	}
}

func TestDispatchDisabledTool(t *testing.T) {
	r := NewRegistry()
	tool := echoTool(KindRead)
	tool.Disabled = true
	r.Register(tool)
	d := NewDispatcher(r, nil)

	part := d.Dispatch(context.Background(), llm.ToolCall{ID: "t1", Name: "echo", Input: json.RawMessage(`{"text":"x"}`)})
	if !part.IsError {
		t.Error("disabled tool should error")
	}
}

func TestDispatchExecutionError(t *testing.T) {
	r := NewRegistry()
	failing := echoTool(KindRead)
	failing.Execute = func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("disk on fire")
	}
	r.Register(failing)
	d := NewDispatcher(r, nil)

	part := d.Dispatch(context.Background(), llm.ToolCall{ID: "t1", Name: "echo", Input: json.RawMessage(`{"text":"x"}`)})
	if !part.IsError || part.ResultContent != "disk on fire" {
		t.Errorf("part = %+v", part)
	}
}
