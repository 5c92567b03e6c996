// Command vellum is a stdio driver for the assistant core: it wires the
// config, provider facade, tool registry, sandbox, evidence engine, and
// session store into a plain read-eval loop. Terminal rendering lives
// elsewhere; this binary speaks lines on stdin/stdout.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MLGBJDLW/vellum-sub012/internal/compaction"
	"github.com/MLGBJDLW/vellum-sub012/internal/config"
	"github.com/MLGBJDLW/vellum-sub012/internal/evidence"
	"github.com/MLGBJDLW/vellum-sub012/internal/evidence/index"
	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
	"github.com/MLGBJDLW/vellum-sub012/internal/llm/provider"
	"github.com/MLGBJDLW/vellum-sub012/internal/llm/transform"
	"github.com/MLGBJDLW/vellum-sub012/internal/sandbox"
	"github.com/MLGBJDLW/vellum-sub012/internal/session"
	"github.com/MLGBJDLW/vellum-sub012/internal/skills"
	"github.com/MLGBJDLW/vellum-sub012/internal/tools"
	"github.com/MLGBJDLW/vellum-sub012/internal/tools/execution"
	"github.com/MLGBJDLW/vellum-sub012/internal/tools/filesystem"
)

const defaultEvidenceBudget = 8000

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.Fatalf("vellum: %v", err)
	}
}

func run() error {
	fs := flag.NewFlagSet("vellum", flag.ExitOnError)
	repoFlag := fs.String("repo", "", "repository root (default: current directory)")
	providerFlag := fs.String("provider", "", "LLM provider (anthropic, openai, gemini, ollama, ...)")
	modelFlag := fs.String("model", "", "model id")
	presetFlag := fs.String("preset", "", "trust preset (paranoid, cautious, default, relaxed, yolo)")
	streamFlag := fs.Bool("stream", false, "stream assistant output")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	manager, err := config.NewManager()
	if err != nil {
		return err
	}
	cfg, err := manager.Load()
	if err != nil {
		return err
	}
	applyEnvOverrides(cfg)
	if *providerFlag != "" {
		cfg.LLMProvider = *providerFlag
	}
	if *modelFlag != "" {
		cfg.Model = *modelFlag
	}
	if *presetFlag != "" {
		cfg.TrustPreset = *presetFlag
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.EvidenceBudget <= 0 {
		cfg.EvidenceBudget = defaultEvidenceBudget
	}

	repoRoot := *repoFlag
	if repoRoot == "" {
		repoRoot, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Provider facade.
	transforms := transform.NewRegistry()
	client := provider.New(cfg.LLMProvider, transforms)
	if err := client.Initialize(provider.Options{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}); err != nil {
		return err
	}

	// Sandbox from the trust preset.
	presetName := cfg.TrustPreset
	if presetName == "" {
		presetName = string(sandbox.PresetDefault)
	}
	preset, err := sandbox.ParsePreset(presetName)
	if err != nil {
		return err
	}
	sandboxCfg := sandbox.FromPreset(preset, repoRoot)
	detector := sandbox.NewDetector(nil)
	policy := sandbox.NewEngine(nil, sandbox.DecisionAllow)

	// Tool registry.
	registry := tools.NewRegistry()
	for _, t := range []tools.Tool{
		filesystem.NewReadFileTool(repoRoot),
		filesystem.NewWriteFileTool(repoRoot),
		filesystem.NewListFilesTool(repoRoot),
		execution.NewRunCmdTool(sandboxCfg, policy, detector),
	} {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	dispatcher := tools.NewDispatcher(registry, nil)

	// Session, compaction, evidence.
	store := session.NewStore(manager.Dir())
	sess := session.New(repoRoot)
	tracker := compaction.NewTracker(manager.StatsPath(), 0)
	tracker.ResetSession()

	engine, watcher := buildEvidence(ctx, manager, store, repoRoot, cfg, sess.ID)
	if watcher != nil {
		defer watcher.Close()
	}

	// Project instructions become the system prompt preamble.
	systemPrompt := buildSystemPrompt(repoRoot)
	sess.Append(llm.NewTextMessage(llm.RoleSystem, systemPrompt))

	fmt.Printf("vellum ready (provider=%s model=%s preset=%s)\n", cfg.LLMProvider, cfg.Model, preset)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		if err := runTurn(ctx, client, registry, dispatcher, engine, watcher, sess, cfg, *streamFlag, line); err != nil {
			if llm.KindOf(err) == llm.ErrCancelled {
				break
			}
			log.Printf("WARNING: turn failed: %v", err)
		}
		if err := store.Save(sess); err != nil {
			log.Printf("WARNING: failed to save session: %v", err)
		}
	}
	return scanner.Err()
}

// buildEvidence opens the retrieval index and assembles the evidence
// engine. Failures degrade to a diff-only engine rather than aborting.
func buildEvidence(ctx context.Context, manager *config.Manager, store *session.Store, repoRoot string, cfg *config.Config, sessionID string) (*evidence.Engine, *index.Watcher) {
	providers := []evidence.Provider{evidence.NewDiffProvider(repoRoot)}

	var watcher *index.Watcher
	ix, err := index.Open(ctx, repoRoot, manager.IndexDir(store.RepoHash(repoRoot)))
	if err != nil {
		log.Printf("WARNING: retrieval index unavailable: %v", err)
	} else {
		if cfg.AutoIndex {
			if err := ix.Build(ctx); err != nil {
				log.Printf("WARNING: index build incomplete: %v", err)
			}
		}
		providers = append(providers, evidence.NewLSPProvider(ix), evidence.NewSearchProvider(ix))

		watcher, err = index.NewWatcher(repoRoot)
		if err != nil {
			log.Printf("WARNING: file watcher unavailable: %v", err)
		} else {
			watcher.OnChange(func(path string) {
				if err := ix.IndexFile(context.Background(), path); err != nil {
					log.Printf("WARNING: reindex of %s failed: %v", path, err)
				}
			})
			if err := watcher.Start(); err != nil {
				log.Printf("WARNING: file watcher failed to start: %v", err)
				watcher = nil
			}
		}
	}

	engine := evidence.NewEngine(providers, nil, cfg.EvidenceBudget)
	engine.SessionID = sessionID
	return engine, watcher
}

func buildSystemPrompt(repoRoot string) string {
	prompt := "You are vellum, a coding assistant operating on the user's repository. Use the provided tools to read, search, and modify code. Prefer small, verifiable steps."

	instructions, err := skills.DiscoverInstructions(repoRoot)
	if err != nil {
		return prompt
	}
	for _, inst := range instructions {
		data, err := os.ReadFile(inst.Path)
		if err != nil {
			continue
		}
		prompt += "\n\n# Project instructions (" + inst.Name + ")\n" + string(data)
	}
	return prompt
}

// runTurn executes one user turn: evidence, completion, and the tool loop
// until the model stops asking for tools.
func runTurn(ctx context.Context, client *provider.Client, registry *tools.Registry, dispatcher *tools.Dispatcher, engine *evidence.Engine, watcher *index.Watcher, sess *session.Session, cfg *config.Config, stream bool, line string) error {
	tctx := evidence.TurnContext{}
	if watcher != nil {
		tctx.OpenFiles = watcher.WorkingSet()
	}
	built := engine.Build(ctx, line, tctx)

	userText := line
	if len(built.Evidence) > 0 {
		var sb strings.Builder
		sb.WriteString(line)
		sb.WriteString("\n\n<context>\n")
		for _, e := range built.Evidence {
			fmt.Fprintf(&sb, "--- %s:%d-%d (%s)\n%s\n", e.Path, e.Range.Start, e.Range.End, e.Provider, e.Content)
		}
		sb.WriteString("</context>")
		userText = sb.String()
	}
	sess.Append(llm.NewTextMessage(llm.RoleUser, userText))

	target := tools.TargetDefault
	if client.Provider() == "gemini" {
		target = tools.TargetGemini
	}
	toolDefs := registry.TransformDefs(tools.DefinitionFilter{Target: target})

	for {
		params := provider.CompletionParams{
			Model:         cfg.Model,
			Messages:      sess.History,
			Tools:         toolDefs,
			EnableCaching: cfg.EnableCaching,
		}

		var parsed llm.ParsedResponse
		var err error
		if stream {
			parsed, err = streamTurn(ctx, client, params)
		} else {
			var warnings []transform.Warning
			parsed, warnings, err = client.Complete(ctx, params)
			for _, w := range warnings {
				log.Printf("WARNING: transform %s: %s", w.Code, w.Message)
			}
			if err == nil && parsed.Content != "" {
				fmt.Println(parsed.Content)
			}
		}
		if err != nil {
			return err
		}

		assistant := llm.Message{Role: llm.RoleAssistant}
		if parsed.Content != "" {
			assistant.Parts = append(assistant.Parts, llm.TextPart(parsed.Content))
		}
		for _, tc := range parsed.ToolCalls {
			assistant.Parts = append(assistant.Parts, llm.ToolUsePart(tc.ID, tc.Name, tc.Input))
		}
		if len(assistant.Parts) > 0 {
			sess.Append(assistant)
		}

		if len(parsed.ToolCalls) == 0 {
			return nil
		}

		var results llm.Message
		results.Role = llm.RoleUser
		for _, tc := range parsed.ToolCalls {
			results.Parts = append(results.Parts, dispatcher.Dispatch(ctx, tc))
		}
		sess.Append(results)
	}
}

// streamTurn consumes the normalized event stream, echoing text as it
// arrives, and reassembles a ParsedResponse for the tool loop.
func streamTurn(ctx context.Context, client *provider.Client, params provider.CompletionParams) (llm.ParsedResponse, error) {
	events, err := client.Stream(ctx, params)
	if err != nil {
		return llm.ParsedResponse{}, err
	}

	var parsed llm.ParsedResponse
	for ev := range events {
		switch ev.Type {
		case llm.EventText:
			parsed.Content += ev.Text
			fmt.Print(ev.Text)
		case llm.EventReasoning:
			parsed.Thinking += ev.Text
		case llm.EventToolCall:
			if ev.ToolCall != nil {
				parsed.ToolCalls = append(parsed.ToolCalls, *ev.ToolCall)
			}
		case llm.EventUsage:
			if ev.Usage != nil {
				parsed.Usage = *ev.Usage
			}
		case llm.EventError:
			fmt.Println()
			return parsed, llm.ProviderError(fmt.Errorf("%s", ev.ErrText), ev.ErrCode, ev.Retryable)
		case llm.EventDone:
			parsed.StopReason = ev.StopReason
		}
	}
	fmt.Println()
	return parsed, nil
}
