package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// Decision is the permission gate's answer for one tool call.
type Decision string

const (
	DecisionOnce   Decision = "once"
	DecisionAlways Decision = "always"
	DecisionReject Decision = "reject"
)

// PermissionGate decides whether a write/shell tool may run. The gate
// itself (UI prompt, allowlist, policy file) lives outside the core.
type PermissionGate interface {
	Decide(ctx context.Context, tool Tool, args map[string]any) Decision
}

// AllowAllGate approves everything; used for trusted sessions and tests.
type AllowAllGate struct{}

func (AllowAllGate) Decide(context.Context, Tool, map[string]any) Decision { return DecisionAlways }

// Dispatcher resolves, validates, gates, and executes tool calls.
type Dispatcher struct {
	registry *Registry
	gate     PermissionGate
	approved map[string]bool // tools granted "always"
}

// NewDispatcher creates a dispatcher over the registry. A nil gate
// approves everything.
func NewDispatcher(registry *Registry, gate PermissionGate) *Dispatcher {
	if gate == nil {
		gate = AllowAllGate{}
	}
	return &Dispatcher{
		registry: registry,
		gate:     gate,
		approved: make(map[string]bool),
	}
}

// Dispatch runs one tool call and always returns the paired ToolResult
// part, so the canonical history stays balanced even on rejection,
// validation failure, or cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) llm.ContentPart {
	tool, ok := d.registry.Get(call.Name)
	if !ok {
		return llm.ToolResultPart(call.ID, fmt.Sprintf("unknown tool: %s", call.Name), true)
	}
	if tool.Disabled {
		return llm.ToolResultPart(call.ID, fmt.Sprintf("tool %s is disabled", tool.Name), true)
	}

	args, err := decodeArgs(call.Input)
	if err != nil {
		return llm.ToolResultPart(call.ID, fmt.Sprintf("invalid arguments: %v", err), true)
	}
	if err := validateArgs(tool, args); err != nil {
		return llm.ToolResultPart(call.ID, fmt.Sprintf("invalid arguments: %v", err), true)
	}

	if tool.Kind == KindShell || tool.Kind == KindWrite {
		key := strings.ToLower(tool.Name)
		if !d.approved[key] {
			switch d.gate.Decide(ctx, tool, args) {
			case DecisionReject:
				return llm.ToolResultPart(call.ID, "permission denied", true)
			case DecisionAlways:
				d.approved[key] = true
			}
		}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || llm.KindOf(err) == llm.ErrCancelled {
			return llm.ToolResultPart(call.ID, "cancelled", true)
		}
		return llm.ToolResultPart(call.ID, err.Error(), true)
	}
	return llm.ToolResultPart(call.ID, result, false)
}

func decodeArgs(input json.RawMessage) (map[string]any, error) {
	if len(input) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// validateArgs checks tool input against the tool's JSON schema.
func validateArgs(tool Tool, args map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(tool.InputSchema)
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return llm.NewError(llm.ErrInvalidArgument, fmt.Errorf("schema validation failed: %w", err))
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return llm.NewError(llm.ErrInvalidArgument,
			fmt.Errorf("%s: %s", tool.Name, strings.Join(msgs, "; ")))
	}
	return nil
}
