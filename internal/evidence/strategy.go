package evidence

// BudgetRatios splits the global token budget across providers. The
// ratios sum to 1.
type BudgetRatios struct {
	Diff   float64 `json:"diff"`
	LSP    float64 `json:"lsp"`
	Search float64 `json:"search"`
}

// Strategy is the per-intent retrieval plan.
type Strategy struct {
	BudgetRatios     BudgetRatios
	WeightModifiers  WeightModifiers
	ProviderPriority []ProviderName
}

// WeightModifiers overrides individual reranker weights; nil fields keep
// the defaults.
type WeightModifiers struct {
	Diff            *float64
	StackFrame      *float64
	Definition      *float64
	Reference       *float64
	Keyword         *float64
	WorkingSet      *float64
	StackDepthDecay *float64
	MaxScore        *float64
}

// StrategyRegistry maps intents to strategies.
type StrategyRegistry struct {
	strategies map[Intent]Strategy
}

// NewStrategyRegistry returns the default per-intent allocations.
func NewStrategyRegistry() *StrategyRegistry {
	f := func(v float64) *float64 { return &v }
	return &StrategyRegistry{strategies: map[Intent]Strategy{
		IntentDebug: {
			BudgetRatios:     BudgetRatios{Diff: 0.5, LSP: 0.3, Search: 0.2},
			WeightModifiers:  WeightModifiers{StackFrame: f(100)},
			ProviderPriority: []ProviderName{ProviderDiff, ProviderLSP, ProviderSearch},
		},
		IntentImplement: {
			BudgetRatios:     BudgetRatios{Diff: 0.3, LSP: 0.4, Search: 0.3},
			ProviderPriority: []ProviderName{ProviderLSP, ProviderSearch, ProviderDiff},
		},
		IntentRefactor: {
			BudgetRatios:     BudgetRatios{Diff: 0.3, LSP: 0.5, Search: 0.2},
			WeightModifiers:  WeightModifiers{Reference: f(60)},
			ProviderPriority: []ProviderName{ProviderLSP, ProviderDiff, ProviderSearch},
		},
		IntentExplore: {
			BudgetRatios:     BudgetRatios{Diff: 0.2, LSP: 0.4, Search: 0.4},
			ProviderPriority: []ProviderName{ProviderSearch, ProviderLSP, ProviderDiff},
		},
		IntentDocument: {
			BudgetRatios:     BudgetRatios{Diff: 0.2, LSP: 0.3, Search: 0.5},
			ProviderPriority: []ProviderName{ProviderSearch, ProviderLSP, ProviderDiff},
		},
		IntentTest: {
			BudgetRatios:     BudgetRatios{Diff: 0.4, LSP: 0.4, Search: 0.2},
			ProviderPriority: []ProviderName{ProviderDiff, ProviderLSP, ProviderSearch},
		},
		IntentReview: {
			BudgetRatios:     BudgetRatios{Diff: 0.6, LSP: 0.3, Search: 0.1},
			WeightModifiers:  WeightModifiers{Diff: f(150)},
			ProviderPriority: []ProviderName{ProviderDiff, ProviderLSP, ProviderSearch},
		},
		IntentUnknown: {
			BudgetRatios:     BudgetRatios{Diff: 0.4, LSP: 0.35, Search: 0.25},
			ProviderPriority: []ProviderName{ProviderDiff, ProviderLSP, ProviderSearch},
		},
	}}
}

// Register adds or replaces the strategy for an intent.
func (r *StrategyRegistry) Register(intent Intent, s Strategy) {
	r.strategies[intent] = s
}

// Get returns the strategy for intent, falling back to unknown.
func (r *StrategyRegistry) Get(intent Intent) Strategy {
	if s, ok := r.strategies[intent]; ok {
		return s
	}
	return r.strategies[IntentUnknown]
}
