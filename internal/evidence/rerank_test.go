package evidence

import "testing"

func TestRerankDiffVsDefinition(t *testing.T) {
	a := Evidence{
		ID: "a", Provider: ProviderDiff, Path: "x.go",
		Range: Range{Start: 1, End: 10}, Tokens: 10, BaseScore: 10,
	}
	b := Evidence{
		ID: "b", Provider: ProviderLSP, Path: "y.go",
		Range: Range{Start: 1, End: 10}, Tokens: 10, BaseScore: 10,
		MatchedSignals: []Signal{{Type: SignalSymbol, Source: SourceWorkingSet}},
		Metadata:       Metadata{SymbolKind: "function"},
	}

	ranked := Rerank([]Evidence{a, b}, DefaultWeights(), nil)

	// a: 10 + 100 diff = 110; b: 10 + 60 def + 50 working set + 30 ref = 150.
	if ranked[0].ID != "b" || ranked[1].ID != "a" {
		t.Fatalf("order = [%s, %s], want [b, a]", ranked[0].ID, ranked[1].ID)
	}
	if ranked[0].FinalScore != 150 {
		t.Errorf("b final = %v, want 150", ranked[0].FinalScore)
	}
	if ranked[1].FinalScore != 110 {
		t.Errorf("a final = %v, want 110", ranked[1].FinalScore)
	}
}

func TestStackDepthDecay(t *testing.T) {
	w := DefaultWeights()
	depth := func(d int) Evidence {
		return Evidence{Provider: ProviderLSP, Tokens: 5, Metadata: Metadata{StackDepth: &d}}
	}

	if got := w.Score(depth(0)); got != 80 {
		t.Errorf("depth 0 = %v, want 80 (full stack weight)", got)
	}
	if got := w.Score(depth(5)); got != 40 {
		t.Errorf("depth 5 = %v, want 40", got)
	}
	// Depth 10 and beyond yield exactly zero bonus.
	if got := w.Score(depth(10)); got != 0 {
		t.Errorf("depth 10 = %v, want 0", got)
	}
	if got := w.Score(depth(15)); got != 0 {
		t.Errorf("depth 15 = %v, want 0", got)
	}
}

func TestFinalScoreNeverBelowBase(t *testing.T) {
	items := []Evidence{
		{Provider: ProviderSearch, Tokens: 3, BaseScore: 7.5},
		{Provider: ProviderDiff, Tokens: 3, BaseScore: 0},
		{Provider: ProviderLSP, Tokens: 3, BaseScore: 2, MatchedSignals: []Signal{{Type: SignalErrorToken}}},
		{Provider: ProviderDiff, Tokens: 3, BaseScore: 80},
	}
	for _, maxScore := range []float64{0, 50} {
		w := DefaultWeights()
		w.MaxScore = maxScore
		for i, e := range items {
			if got := w.Score(e); got < e.BaseScore {
				t.Errorf("maxScore %v item %d: final %v < base %v", maxScore, i, got, e.BaseScore)
			}
		}
	}
}

func TestRerankStableTieBreak(t *testing.T) {
	items := []Evidence{
		{ID: "c", Provider: ProviderSearch, Path: "b.go", Range: Range{Start: 5}, Tokens: 1},
		{ID: "a", Provider: ProviderSearch, Path: "a.go", Range: Range{Start: 9}, Tokens: 1},
		{ID: "b", Provider: ProviderSearch, Path: "b.go", Range: Range{Start: 1}, Tokens: 1},
	}
	// All scores are zero; order falls back to (path, range.start).
	ranked := Rerank(items, DefaultWeights(), []ProviderName{ProviderSearch})
	got := []string{ranked[0].ID, ranked[1].ID, ranked[2].ID}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRerankProviderPriorityTieBreak(t *testing.T) {
	items := []Evidence{
		{ID: "search", Provider: ProviderSearch, Path: "same.go", Range: Range{Start: 1}, Tokens: 1, BaseScore: 300},
		{ID: "diff", Provider: ProviderDiff, Path: "same.go", Range: Range{Start: 1}, Tokens: 1, BaseScore: 200},
	}
	// diff gets +100 bonus: both land on 300; priority breaks the tie.
	ranked := Rerank(items, DefaultWeights(), []ProviderName{ProviderSearch, ProviderDiff})
	if ranked[0].ID != "search" {
		t.Errorf("priority tie-break failed, first = %s", ranked[0].ID)
	}
}

func TestMaxScoreClamp(t *testing.T) {
	w := DefaultWeights()
	w.MaxScore = 50

	// The cap trims the bonus: base 10 + 100 diff bonus lands on 50.
	e := Evidence{Provider: ProviderDiff, Tokens: 1, BaseScore: 10}
	if got := w.Score(e); got != 50 {
		t.Errorf("clamped score = %v, want 50", got)
	}

	// A base score already above the cap is never pulled down.
	high := Evidence{Provider: ProviderDiff, Tokens: 1, BaseScore: 100}
	if got := w.Score(high); got != 100 {
		t.Errorf("score = %v, want base 100 preserved over the cap", got)
	}
}

func TestWeightModifiers(t *testing.T) {
	v := 150.0
	limit := 500.0
	w := DefaultWeights().Apply(WeightModifiers{Diff: &v, MaxScore: &limit})
	if w.Diff != 150 {
		t.Errorf("diff weight = %v, want 150", w.Diff)
	}
	if w.MaxScore != 500 {
		t.Errorf("max score = %v, want 500", w.MaxScore)
	}
	if w.StackFrame != 80 {
		t.Errorf("unmodified weight changed: %v", w.StackFrame)
	}
}
