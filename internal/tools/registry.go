// Package tools holds the schema-validated tool registry and the dispatch
// path that turns model tool calls into tool results.
package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm/transform"
)

// Kind classifies what a tool touches; the dispatch permission gate keys
// off it.
type Kind string

const (
	KindRead  Kind = "read"
	KindWrite Kind = "write"
	KindShell Kind = "shell"
	KindMeta  Kind = "meta"
)

// ExecFunc runs the tool. The returned string is wrapped into a
// ToolResult content block.
type ExecFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is one registered capability exposed to the model.
type Tool struct {
	Name        string // unique, case-insensitive; original casing kept for display
	Description string
	InputSchema map[string]any
	Kind        Kind
	Category    string
	Disabled    bool
	Execute     ExecFunc
}

var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Validate checks the structural requirements for registration.
func (t Tool) Validate() error {
	if !toolNamePattern.MatchString(t.Name) {
		return fmt.Errorf("tool name %q must be alphanumeric/underscore", t.Name)
	}
	switch t.Kind {
	case KindRead, KindWrite, KindShell, KindMeta:
	default:
		return fmt.Errorf("tool %s has unknown kind %q", t.Name, t.Kind)
	}
	if t.InputSchema == nil {
		return fmt.Errorf("tool %s has no input schema", t.Name)
	}
	return nil
}

// Registry stores tools under case-insensitive names. Read-mostly after
// startup; re-registration of dynamic tools is safe for concurrent
// readers.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool // keyed by lowercased name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, silently overwriting any prior registration of
// the same name. Dynamic tools re-register on configuration changes.
func (r *Registry) Register(t Tool) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[strings.ToLower(t.Name)] = t
	return nil
}

// Get looks a tool up case-insensitively.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[strings.ToLower(name)]
	return t, ok
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListByKind returns tools of one kind, sorted by name.
func (r *Registry) ListByKind(kind Kind) []Tool {
	var out []Tool
	for _, t := range r.List() {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// SchemaTarget selects the provider-family schema dialect for export.
type SchemaTarget string

const (
	TargetDefault SchemaTarget = "default"
	TargetGemini  SchemaTarget = "gemini"
)

// DefinitionFilter narrows Definitions output.
type DefinitionFilter struct {
	Kinds           []Kind
	IncludeDisabled bool
	Target          SchemaTarget
}

// Definition is the JSON-Schema export handed to the LLM.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Kind        Kind           `json:"kind"`
}

// Definitions exports tool definitions for LLM grounding. Unsupported
// schema fields are stripped; exclusiveMinimum/Maximum are folded into
// minimum/maximum for Gemini-family consumers.
func (r *Registry) Definitions(filter DefinitionFilter) []Definition {
	var defs []Definition
	for _, t := range r.List() {
		if t.Disabled && !filter.IncludeDisabled {
			continue
		}
		if len(filter.Kinds) > 0 && !containsKind(filter.Kinds, t.Kind) {
			continue
		}
		params := transform.CleanSchema(t.InputSchema)
		if filter.Target == TargetGemini {
			params, _ = transform.SanitizeSchemaForGemini(t.InputSchema)
		}
		defs = append(defs, Definition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
			Kind:        t.Kind,
		})
	}
	return defs
}

// TransformDefs converts exported definitions into the transform layer's
// tool shape.
func (r *Registry) TransformDefs(filter DefinitionFilter) []transform.ToolDef {
	defs := r.Definitions(filter)
	out := make([]transform.ToolDef, 0, len(defs))
	for _, d := range defs {
		out = append(out, transform.ToolDef{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Parameters,
		})
	}
	return out
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
