package tools

import (
	"context"
	"testing"
)

func sampleTool(name string, kind Kind) Tool {
	return Tool{
		Name:        name,
		Description: "sample",
		Kind:        kind,
		Category:    "test",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "exclusiveMinimum": float64(0)},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) { return "ok", nil },
	}
}

func TestRegistryCaseInsensitiveLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(sampleTool("Read_File", KindRead)); err != nil {
		t.Fatal(err)
	}

	tool, ok := r.Get("read_file")
	if !ok {
		t.Fatal("case-insensitive lookup failed")
	}
	// Original casing is preserved for display.
	if tool.Name != "Read_File" {
		t.Errorf("name = %q, want Read_File", tool.Name)
	}
	if !r.Has("READ_FILE") {
		t.Error("Has should be case-insensitive")
	}
}

func TestRegistryLastWriterWins(t *testing.T) {
	r := NewRegistry()
	first := sampleTool("grep", KindRead)
	first.Description = "first"
	second := sampleTool("GREP", KindRead)
	second.Description = "second"

	if err := r.Register(first); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(second); err != nil {
		t.Fatal(err)
	}

	tool, _ := r.Get("grep")
	if tool.Description != "second" {
		t.Errorf("description = %q, want second (last writer wins)", tool.Description)
	}
	if len(r.List()) != 1 {
		t.Errorf("registry holds %d tools, want 1", len(r.List()))
	}
}

func TestRegistryRejectsBadNames(t *testing.T) {
	r := NewRegistry()
	bad := sampleTool("has spaces", KindRead)
	if err := r.Register(bad); err == nil {
		t.Error("expected error for invalid name")
	}
	noKind := sampleTool("ok_name", "weird")
	if err := r.Register(noKind); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestListByKind(t *testing.T) {
	r := NewRegistry()
	r.Register(sampleTool("read_file", KindRead))
	r.Register(sampleTool("write_file", KindWrite))
	r.Register(sampleTool("run_cmd", KindShell))

	reads := r.ListByKind(KindRead)
	if len(reads) != 1 || reads[0].Name != "read_file" {
		t.Errorf("reads = %+v", reads)
	}
}

func TestDefinitionsFilter(t *testing.T) {
	r := NewRegistry()
	r.Register(sampleTool("read_file", KindRead))
	r.Register(sampleTool("run_cmd", KindShell))
	disabled := sampleTool("hidden", KindRead)
	disabled.Disabled = true
	r.Register(disabled)

	defs := r.Definitions(DefinitionFilter{})
	if len(defs) != 2 {
		t.Errorf("got %d definitions, want 2 (disabled excluded)", len(defs))
	}

	shellOnly := r.Definitions(DefinitionFilter{Kinds: []Kind{KindShell}})
	if len(shellOnly) != 1 || shellOnly[0].Name != "run_cmd" {
		t.Errorf("shell defs = %+v", shellOnly)
	}

	withDisabled := r.Definitions(DefinitionFilter{IncludeDisabled: true})
	if len(withDisabled) != 3 {
		t.Errorf("got %d definitions with disabled, want 3", len(withDisabled))
	}
}

func TestDefinitionsSchemaDialect(t *testing.T) {
	r := NewRegistry()
	r.Register(sampleTool("read_file", KindRead))

	standard := r.Definitions(DefinitionFilter{})
	path := standard[0].Parameters["properties"].(map[string]any)["path"].(map[string]any)
	if _, ok := path["exclusiveMinimum"]; !ok {
		t.Error("default export should keep exclusiveMinimum")
	}

	gemini := r.Definitions(DefinitionFilter{Target: TargetGemini})
	if gemini[0].Parameters["type"] != "OBJECT" {
		t.Errorf("gemini root type = %v", gemini[0].Parameters["type"])
	}
	gpath := gemini[0].Parameters["properties"].(map[string]any)["path"].(map[string]any)
	if _, ok := gpath["exclusiveMinimum"]; ok {
		t.Error("gemini export should fold exclusiveMinimum")
	}
	if gpath["minimum"] != float64(0) {
		t.Errorf("gemini minimum = %v", gpath["minimum"])
	}
}
