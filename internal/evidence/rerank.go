package evidence

import "sort"

// RerankerWeights drive the feature-bonus score on top of each evidence
// item's base score.
type RerankerWeights struct {
	Diff            float64
	StackFrame      float64
	Definition      float64
	Reference       float64
	Keyword         float64
	WorkingSet      float64
	StackDepthDecay float64
	// MaxScore caps the bonus so final never exceeds it, but an item
	// whose base score is already above the cap keeps its base score.
	// 0 = unbounded.
	MaxScore float64
}

// DefaultWeights returns the baseline weights before per-intent
// modifiers.
func DefaultWeights() RerankerWeights {
	return RerankerWeights{
		Diff:            100,
		StackFrame:      80,
		Definition:      60,
		Reference:       30,
		Keyword:         10,
		WorkingSet:      50,
		StackDepthDecay: 0.1,
	}
}

// Apply overlays non-nil modifiers onto the weights.
func (w RerankerWeights) Apply(m WeightModifiers) RerankerWeights {
	out := w
	if m.Diff != nil {
		out.Diff = *m.Diff
	}
	if m.StackFrame != nil {
		out.StackFrame = *m.StackFrame
	}
	if m.Definition != nil {
		out.Definition = *m.Definition
	}
	if m.Reference != nil {
		out.Reference = *m.Reference
	}
	if m.Keyword != nil {
		out.Keyword = *m.Keyword
	}
	if m.WorkingSet != nil {
		out.WorkingSet = *m.WorkingSet
	}
	if m.StackDepthDecay != nil {
		out.StackDepthDecay = *m.StackDepthDecay
	}
	if m.MaxScore != nil {
		out.MaxScore = *m.MaxScore
	}
	return out
}

// Score computes the final score for one evidence item. All bonuses are
// non-negative, so final >= base always holds; MaxScore caps the bonus
// portion only and never pulls the total below the base.
func (w RerankerWeights) Score(e Evidence) float64 {
	bonus := 0.0

	// Diff evidence carries its bonus unconditionally.
	if e.Provider == ProviderDiff {
		bonus += w.Diff
	}

	if e.Metadata.StackDepth != nil {
		decay := 1 - float64(*e.Metadata.StackDepth)*w.StackDepthDecay
		if decay > 0 {
			bonus += w.StackFrame * decay
		}
	}

	if e.Provider == ProviderLSP && e.Metadata.SymbolKind != "" {
		bonus += w.Definition
	}

	symbolHits := 0
	keywordHits := 0
	hasWorkingSet := false
	for _, s := range e.MatchedSignals {
		if s.Type == SignalSymbol {
			symbolHits++
		}
		if s.Type == SignalSymbol || s.Type == SignalErrorToken {
			keywordHits++
		}
		if s.Source == SourceWorkingSet {
			hasWorkingSet = true
		}
	}
	if symbolHits > 0 {
		// The first symbol hit is consumed by the reference bonus and
		// does not double-count as a keyword hit.
		bonus += w.Reference
		keywordHits--
	}
	bonus += w.Keyword * float64(keywordHits)
	if hasWorkingSet {
		bonus += w.WorkingSet
	}

	if w.MaxScore > 0 {
		headroom := w.MaxScore - e.BaseScore
		if headroom < 0 {
			headroom = 0
		}
		if bonus > headroom {
			bonus = headroom
		}
	}
	return e.BaseScore + bonus
}

// Rerank scores every item and sorts descending by final score with a
// stable tie-break on (provider priority, path, range start).
func Rerank(items []Evidence, weights RerankerWeights, priority []ProviderName) []Evidence {
	prio := make(map[ProviderName]int, len(priority))
	for i, p := range priority {
		prio[p] = i
	}
	rank := func(p ProviderName) int {
		if r, ok := prio[p]; ok {
			return r
		}
		return len(priority)
	}

	out := make([]Evidence, len(items))
	copy(out, items)
	for i := range out {
		out[i].FinalScore = weights.Score(out[i])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		if ri, rj := rank(out[i].Provider), rank(out[j].Provider); ri != rj {
			return ri < rj
		}
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Range.Start < out[j].Range.Start
	})
	return out
}
