package evidence

import "testing"

func findSignal(signals []Signal, typ SignalType, value string) *Signal {
	for i, s := range signals {
		if s.Type == typ && s.Value == value {
			return &signals[i]
		}
	}
	return nil
}

func TestExtractSignalsFromMessage(t *testing.T) {
	signals := ExtractSignals("the parseConfig function in internal/config/manager.go throws a TypeError", TurnContext{})

	if s := findSignal(signals, SignalSymbol, "parseConfig"); s == nil {
		t.Error("missing symbol signal for parseConfig")
	} else if s.Source != SourceUserMessage {
		t.Errorf("symbol source = %s", s.Source)
	}
	if findSignal(signals, SignalPath, "internal/config/manager.go") == nil {
		t.Error("missing path signal")
	}
	if s := findSignal(signals, SignalErrorToken, "TypeError"); s == nil {
		t.Error("missing error token signal")
	} else if s.Source != SourceErrorOutput {
		t.Errorf("error token source = %s", s.Source)
	}
}

func TestExtractSignalsSnakeCase(t *testing.T) {
	signals := ExtractSignals("look at run_cmd behavior", TurnContext{})
	if findSignal(signals, SignalSymbol, "run_cmd") == nil {
		t.Errorf("missing snake_case symbol, got %+v", signals)
	}
}

func TestExtractSignalsWorkingSet(t *testing.T) {
	signals := ExtractSignals("continue", TurnContext{
		OpenFiles: []string{"internal/llm/message.go"},
	})
	s := findSignal(signals, SignalPath, "internal/llm/message.go")
	if s == nil {
		t.Fatal("missing working-set path signal")
	}
	if s.Source != SourceWorkingSet {
		t.Errorf("source = %s, want working_set", s.Source)
	}
}

func TestExtractSignalsStackTrace(t *testing.T) {
	signals := ExtractSignals("why did this crash", TurnContext{
		StackFrames: []StackFrame{
			{Path: "internal/evidence/engine.go", Line: 42, Function: "Build", Depth: 0},
		},
	})
	if s := findSignal(signals, SignalPath, "internal/evidence/engine.go"); s == nil || s.Source != SourceStackTrace {
		t.Errorf("stack path signal = %+v", s)
	}
	if findSignal(signals, SignalSymbol, "Build") == nil {
		t.Error("missing stack function symbol")
	}
}

func TestExtractSignalsRecentErrors(t *testing.T) {
	signals := ExtractSignals("help", TurnContext{
		RecentErrors: []string{"NullPointerException at service/auth.go line 10"},
	})
	if findSignal(signals, SignalErrorToken, "NullPointerException") == nil {
		t.Error("missing error token from recent errors")
	}
}

func TestExtractSignalsDeduplicates(t *testing.T) {
	signals := ExtractSignals("parseConfig parseConfig parseConfig", TurnContext{})
	count := 0
	for _, s := range signals {
		if s.Type == SignalSymbol && s.Value == "parseConfig" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate symbol recorded %d times", count)
	}
}

func TestLooksLikePath(t *testing.T) {
	tests := []struct {
		tok  string
		want bool
	}{
		{"internal/llm/message.go", true},
		{"main.go", true},
		{"auth.ts", true},
		{`src\win\path.c`, true},
		{"works.", false},
		{"v1.2.3", false},
		{"hello", false},
	}
	for _, tt := range tests {
		if got := looksLikePath(tt.tok); got != tt.want {
			t.Errorf("looksLikePath(%q) = %v, want %v", tt.tok, got, tt.want)
		}
	}
}
