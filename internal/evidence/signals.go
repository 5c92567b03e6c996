package evidence

import (
	"regexp"
	"strings"
)

// TurnContext is the optional ambient state accompanying a user message.
type TurnContext struct {
	OpenFiles    []string // working set, most recent first
	CurrentFile  string
	RecentFiles  []string
	RecentErrors []string
	StackFrames  []StackFrame
	ErrorPresent bool
}

// StackFrame is one frame of a recent failure.
type StackFrame struct {
	Path     string
	Line     int
	Function string
	Depth    int // 0 = innermost
}

var (
	pathTokenPattern  = regexp.MustCompile(`[\w./\\-]+\.[A-Za-z]{1,10}\b|[\w.-]*[/\\][\w./\\-]+`)
	camelCasePattern  = regexp.MustCompile(`\b[a-z]+[A-Z]\w*\b|\b[A-Z][a-z]+[A-Z]\w*\b`)
	snakeCasePattern  = regexp.MustCompile(`\b[a-z0-9]+_[a-z0-9_]+\b`)
	errorTokenPattern = regexp.MustCompile(`\b\w*(?:Error|Exception)\b|\bTypeError\b|\bundefined\b|\bpanic\b`)
	wordPattern       = regexp.MustCompile(`[A-Za-z0-9_./\\-]+`)
)

// ExtractSignals derives retrieval signals from the user message and the
// ambient context. Path-like tokens become path signals, identifier-like
// tokens become symbol signals, and error-class names become error
// tokens.
func ExtractSignals(message string, tctx TurnContext) []Signal {
	seen := make(map[string]bool)
	var signals []Signal

	add := func(s Signal) {
		key := string(s.Type) + "\x00" + strings.ToLower(s.Value)
		if s.Value == "" || seen[key] {
			return
		}
		seen[key] = true
		signals = append(signals, s)
	}

	for _, tok := range wordPattern.FindAllString(message, -1) {
		switch {
		case looksLikePath(tok):
			add(Signal{Type: SignalPath, Value: tok, Source: SourceUserMessage, Confidence: 0.9})
		case errorTokenPattern.MatchString(tok):
			add(Signal{Type: SignalErrorToken, Value: tok, Source: SourceErrorOutput, Confidence: 0.8})
		case camelCasePattern.MatchString(tok) || snakeCasePattern.MatchString(tok):
			add(Signal{Type: SignalSymbol, Value: tok, Source: SourceUserMessage, Confidence: 0.7})
		}
	}

	// Working set files are strong locality signals.
	for _, f := range tctx.OpenFiles {
		add(Signal{Type: SignalPath, Value: f, Source: SourceWorkingSet, Confidence: 0.8})
	}

	for _, errText := range tctx.RecentErrors {
		for _, tok := range errorTokenPattern.FindAllString(errText, -1) {
			add(Signal{Type: SignalErrorToken, Value: tok, Source: SourceErrorOutput, Confidence: 0.9})
		}
		for _, tok := range pathTokenPattern.FindAllString(errText, -1) {
			if looksLikePath(tok) {
				add(Signal{Type: SignalPath, Value: tok, Source: SourceErrorOutput, Confidence: 0.7})
			}
		}
	}

	for _, frame := range tctx.StackFrames {
		if frame.Path != "" {
			add(Signal{Type: SignalPath, Value: frame.Path, Source: SourceStackTrace, Confidence: 0.9})
		}
		if frame.Function != "" {
			add(Signal{Type: SignalSymbol, Value: frame.Function, Source: SourceStackTrace, Confidence: 0.8})
		}
	}

	return signals
}

// looksLikePath reports whether a token is path-like: contains a
// separator or ends in a dotted file extension.
func looksLikePath(tok string) bool {
	if strings.ContainsAny(tok, `/\`) {
		return true
	}
	dot := strings.LastIndex(tok, ".")
	if dot <= 0 || dot == len(tok)-1 {
		return false
	}
	ext := tok[dot+1:]
	if len(ext) > 10 {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	// Avoid treating trailing sentence punctuation like "works." as a path.
	return knownExtensions[strings.ToLower(ext)]
}

var knownExtensions = map[string]bool{
	"go": true, "ts": true, "tsx": true, "js": true, "jsx": true,
	"py": true, "rs": true, "java": true, "c": true, "h": true,
	"cpp": true, "hpp": true, "rb": true, "php": true, "cs": true,
	"md": true, "json": true, "yaml": true, "yml": true, "toml": true,
	"sh": true, "sql": true, "html": true, "css": true, "txt": true,
}
