package evidence

import (
	"context"
	"log"
	"sync"
	"time"
)

// defaultBuildTimeout bounds one turn's evidence build.
const defaultBuildTimeout = 10 * time.Second

// Engine runs the per-turn retrieval pipeline.
type Engine struct {
	providers  map[ProviderName]Provider
	strategies *StrategyRegistry
	telemetry  *Telemetry
	weights    RerankerWeights

	// GlobalBudget is the token budget the strategy ratios split.
	GlobalBudget int
	// BuildTimeout cancels slow providers; partial results are kept.
	BuildTimeout time.Duration
	SessionID    string
}

// NewEngine creates an engine over the given providers.
func NewEngine(providers []Provider, telemetry *Telemetry, globalBudget int) *Engine {
	m := make(map[ProviderName]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	if telemetry == nil {
		telemetry = NewTelemetry(0)
	}
	return &Engine{
		providers:    m,
		strategies:   NewStrategyRegistry(),
		telemetry:    telemetry,
		weights:      DefaultWeights(),
		GlobalBudget: globalBudget,
		BuildTimeout: defaultBuildTimeout,
	}
}

// Strategies exposes the registry for per-intent tuning.
func (e *Engine) Strategies() *StrategyRegistry { return e.strategies }

// Result is one turn's evidence build.
type Result struct {
	Evidence []Evidence
	Signals  []Signal
	Intent   IntentResult
	Report   BudgetReport
	RecordID uint64
}

type providerOutput struct {
	name    ProviderName
	items   []Evidence
	elapsed time.Duration
	err     error
}

// Build runs signal extraction, intent classification, provider fan-out,
// reranking, and budget enforcement for one user turn. Provider errors
// are never fatal; they degrade to empty result sets.
func (e *Engine) Build(ctx context.Context, message string, tctx TurnContext) Result {
	start := time.Now()

	sigStart := time.Now()
	signals := ExtractSignals(message, tctx)
	sigElapsed := time.Since(sigStart)

	intent := ClassifyIntent(message, tctx)
	strategy := e.strategies.Get(intent.Intent)
	weights := e.weights.Apply(strategy.WeightModifiers)

	budgets := map[ProviderName]int{
		ProviderDiff:   int(float64(e.GlobalBudget) * strategy.BudgetRatios.Diff),
		ProviderLSP:    int(float64(e.GlobalBudget) * strategy.BudgetRatios.LSP),
		ProviderSearch: int(float64(e.GlobalBudget) * strategy.BudgetRatios.Search),
	}

	// Providers that want the ambient turn state (stack frames, working
	// set) receive it before dispatch.
	for _, p := range e.providers {
		if aware, ok := p.(interface{ SetContext(TurnContext) }); ok {
			aware.SetContext(tctx)
		}
	}

	timeout := e.BuildTimeout
	if timeout <= 0 {
		timeout = defaultBuildTimeout
	}
	dispatchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// All providers start concurrently; the join holds until everyone
	// finishes or the per-turn deadline fires.
	outputs := make(chan providerOutput, len(e.providers))
	var wg sync.WaitGroup
	for name, p := range e.providers {
		wg.Add(1)
		go func(name ProviderName, p Provider) {
			defer wg.Done()
			pStart := time.Now()
			items, err := p.Retrieve(dispatchCtx, signals, budgets[name])
			outputs <- providerOutput{name: name, items: items, elapsed: time.Since(pStart), err: err}
		}(name, p)
	}
	go func() {
		wg.Wait()
		close(outputs)
	}()

	var collected []Evidence
	timings := map[ProviderName]int64{}
	counts := map[ProviderName]int{}
	for out := range outputs {
		timings[out.name] = out.elapsed.Milliseconds()
		if out.err != nil {
			log.Printf("WARNING: evidence provider %s failed: %v", out.name, out.err)
			continue
		}
		counts[out.name] = len(out.items)
		collected = append(collected, sanitize(out.items)...)
	}

	rerankStart := time.Now()
	ranked := Rerank(collected, weights, strategy.ProviderPriority)
	rerankElapsed := time.Since(rerankStart)

	kept, report := EnforceBudget(ranked, e.GlobalBudget)

	recordID := e.telemetry.Record(TurnRecord{
		SessionID:          e.SessionID,
		Timestamp:          start,
		Intent:             intent.Intent,
		SignalCount:        len(signals),
		SignalExtractionMs: sigElapsed.Milliseconds(),
		RerankMs:           rerankElapsed.Milliseconds(),
		TotalMs:            time.Since(start).Milliseconds(),
		ProviderTimings:    timings,
		ProviderCounts:     counts,
		Budget:             report,
	})

	return Result{
		Evidence: kept,
		Signals:  signals,
		Intent:   intent,
		Report:   report,
		RecordID: recordID,
	}
}

// MarkOutcome records how the turn's evidence fared.
func (e *Engine) MarkOutcome(recordID uint64, outcome Outcome) {
	e.telemetry.MarkOutcome(recordID, outcome)
}

// Telemetry exposes the underlying buffer.
func (e *Engine) Telemetry() *Telemetry { return e.telemetry }

// sanitize drops structurally invalid evidence (non-positive token
// counts, negative base scores) instead of letting it skew ranking.
func sanitize(items []Evidence) []Evidence {
	out := items[:0]
	for _, item := range items {
		if item.Tokens <= 0 || item.BaseScore < 0 {
			continue
		}
		out = append(out, item)
	}
	return out
}
