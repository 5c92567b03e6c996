package evidence

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeProvider returns canned evidence, optionally erroring or stalling.
type fakeProvider struct {
	name  ProviderName
	items []Evidence
	err   error
	delay time.Duration
	tctx  *TurnContext
}

func (f *fakeProvider) Name() ProviderName { return f.name }

func (f *fakeProvider) SetContext(tctx TurnContext) { f.tctx = &tctx }

func (f *fakeProvider) Retrieve(ctx context.Context, signals []Signal, budget int) ([]Evidence, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.items, f.err
}

func TestEngineBuild(t *testing.T) {
	diff := &fakeProvider{name: ProviderDiff, items: []Evidence{
		{ID: "d1", Provider: ProviderDiff, Path: "x.go", Tokens: 10, BaseScore: 1},
	}}
	search := &fakeProvider{name: ProviderSearch, items: []Evidence{
		{ID: "s1", Provider: ProviderSearch, Path: "y.go", Tokens: 10, BaseScore: 1},
	}}

	engine := NewEngine([]Provider{diff, search}, NewTelemetry(10), 1000)
	result := engine.Build(context.Background(), "fix the bug in x.go", TurnContext{ErrorPresent: true})

	if len(result.Evidence) != 2 {
		t.Fatalf("got %d evidence items, want 2", len(result.Evidence))
	}
	// The diff bonus puts d1 first.
	if result.Evidence[0].ID != "d1" {
		t.Errorf("first item = %s, want d1", result.Evidence[0].ID)
	}
	if result.Intent.Intent != IntentDebug {
		t.Errorf("intent = %s, want debug", result.Intent.Intent)
	}
	if result.Report.CountAfter != 2 {
		t.Errorf("budget report = %+v", result.Report)
	}

	// Telemetry captured the turn.
	stats := engine.Telemetry().Stats()
	if stats.Turns != 1 {
		t.Errorf("telemetry turns = %d", stats.Turns)
	}
}

func TestEngineRecoversProviderErrors(t *testing.T) {
	ok := &fakeProvider{name: ProviderDiff, items: []Evidence{
		{ID: "d1", Provider: ProviderDiff, Path: "x.go", Tokens: 5, BaseScore: 1},
	}}
	broken := &fakeProvider{name: ProviderSearch, err: errors.New("index corrupted")}

	engine := NewEngine([]Provider{ok, broken}, nil, 1000)
	result := engine.Build(context.Background(), "explore the code", TurnContext{})

	// The broken provider degrades to an empty set, never fails the turn.
	if len(result.Evidence) != 1 || result.Evidence[0].ID != "d1" {
		t.Errorf("evidence = %+v", result.Evidence)
	}
}

func TestEngineDeadline(t *testing.T) {
	fast := &fakeProvider{name: ProviderDiff, items: []Evidence{
		{ID: "d1", Provider: ProviderDiff, Path: "x.go", Tokens: 5, BaseScore: 1},
	}}
	slow := &fakeProvider{name: ProviderSearch, delay: 2 * time.Second, items: []Evidence{
		{ID: "s1", Provider: ProviderSearch, Path: "y.go", Tokens: 5, BaseScore: 1},
	}}

	engine := NewEngine([]Provider{fast, slow}, nil, 1000)
	engine.BuildTimeout = 50 * time.Millisecond

	start := time.Now()
	result := engine.Build(context.Background(), "explore", TurnContext{})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("build took %v, deadline not enforced", elapsed)
	}
	// The fast provider's partial output is kept.
	if len(result.Evidence) != 1 || result.Evidence[0].ID != "d1" {
		t.Errorf("evidence = %+v", result.Evidence)
	}
}

func TestEngineDropsInvalidEvidence(t *testing.T) {
	bad := &fakeProvider{name: ProviderDiff, items: []Evidence{
		{ID: "zero", Provider: ProviderDiff, Tokens: 0, BaseScore: 1},
		{ID: "neg", Provider: ProviderDiff, Tokens: 5, BaseScore: -3},
		{ID: "good", Provider: ProviderDiff, Tokens: 5, BaseScore: 1},
	}}
	engine := NewEngine([]Provider{bad}, nil, 1000)
	result := engine.Build(context.Background(), "explore", TurnContext{})
	if len(result.Evidence) != 1 || result.Evidence[0].ID != "good" {
		t.Errorf("evidence = %+v", result.Evidence)
	}
}

func TestEnginePassesContext(t *testing.T) {
	p := &fakeProvider{name: ProviderLSP}
	engine := NewEngine([]Provider{p}, nil, 100)
	engine.Build(context.Background(), "hello", TurnContext{CurrentFile: "a.go"})
	if p.tctx == nil || p.tctx.CurrentFile != "a.go" {
		t.Errorf("provider context = %+v", p.tctx)
	}
}

func TestEngineBudgetEnforced(t *testing.T) {
	big := &fakeProvider{name: ProviderDiff, items: []Evidence{
		{ID: "a", Provider: ProviderDiff, Tokens: 60, BaseScore: 3},
		{ID: "b", Provider: ProviderDiff, Tokens: 60, BaseScore: 2},
	}}
	engine := NewEngine([]Provider{big}, nil, 100)
	result := engine.Build(context.Background(), "explore", TurnContext{})

	total := 0
	for _, e := range result.Evidence {
		total += e.Tokens
	}
	if total > 100 {
		t.Errorf("kept %d tokens over global budget", total)
	}
	if result.Report.TokensSaved == 0 {
		t.Error("expected savings recorded")
	}
}
