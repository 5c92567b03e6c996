package evidence

import (
	"regexp"
	"strings"
)

// Intent is the classified purpose of a user turn.
type Intent string

const (
	IntentDebug     Intent = "debug"
	IntentImplement Intent = "implement"
	IntentRefactor  Intent = "refactor"
	IntentExplore   Intent = "explore"
	IntentDocument  Intent = "document"
	IntentTest      Intent = "test"
	IntentReview    Intent = "review"
	IntentUnknown   Intent = "unknown"
)

// unknownThreshold is the confidence floor below which classification
// falls back to unknown.
const unknownThreshold = 0.3

// IntentResult is the classifier output. MatchedKeywords records which
// keywords and context boosts contributed, for telemetry and tests.
type IntentResult struct {
	Intent          Intent   `json:"intent"`
	Confidence      float64  `json:"confidence"`
	Secondary       Intent   `json:"secondary,omitempty"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

var intentKeywords = map[Intent][]string{
	IntentDebug:     {"fix", "bug", "debug", "error", "crash", "broken", "fails", "failing", "exception", "traceback", "panic", "stacktrace"},
	IntentImplement: {"add", "implement", "create", "build", "new", "feature", "support", "write"},
	IntentRefactor:  {"refactor", "rename", "extract", "cleanup", "simplify", "restructure", "move", "split"},
	IntentExplore:   {"how", "what", "where", "why", "explain", "understand", "find", "show", "look"},
	IntentDocument:  {"document", "docs", "readme", "comment", "docstring", "documentation", "changelog"},
	IntentTest:      {"test", "tests", "coverage", "assert", "mock", "spec", "unit", "integration"},
	IntentReview:    {"review", "check", "verify", "audit", "inspect", "diff", "lgtm", "approve"},
}

var errorishToken = regexp.MustCompile(`(?i)error|exception`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true, "of": true,
	"to": true, "for": true, "and": true, "or": true, "is": true, "it": true,
	"this": true, "that": true, "my": true, "me": true, "please": true,
	"can": true, "you": true, "i": true, "with": true, "at": true,
}

// ClassifyIntent scores each intent by keyword hits over the tokenized
// message, applies context boosts, and picks the argmax. Confidence below
// the threshold degrades to unknown; a close runner-up is surfaced as the
// secondary intent.
func ClassifyIntent(message string, tctx TurnContext) IntentResult {
	tokens := tokenizeForIntent(message)

	scores := make(map[Intent]float64, len(intentKeywords))
	matched := make(map[Intent][]string, len(intentKeywords))

	for intent, keywords := range intentKeywords {
		for _, tok := range tokens {
			best := 0.0
			label := ""
			for _, kw := range keywords {
				switch {
				case tok == kw:
					best, label = 1.0, tok
				case best < 0.5 && (strings.Contains(tok, kw) || strings.Contains(kw, tok)) && len(tok) > 2 && len(kw) > 2:
					best, label = 0.5, tok
				}
				if best == 1.0 {
					break
				}
			}
			// Error-class tokens like TypeError count fully toward debug.
			if intent == IntentDebug && best < 1.0 && errorishToken.MatchString(tok) {
				best, label = 1.0, tok
			}
			if best > 0 {
				scores[intent] += best
				matched[intent] = append(matched[intent], label)
			}
		}
	}

	if tctx.ErrorPresent {
		scores[IntentDebug] += 0.3
		matched[IntentDebug] = append(matched[IntentDebug], "context:errorPresent")
	}
	if isTestFile(tctx.CurrentFile) {
		scores[IntentTest] += 0.3
		matched[IntentTest] = append(matched[IntentTest], "context:currentTestFile")
	}
	for _, f := range tctx.RecentFiles {
		if strings.Contains(f, ".test.") {
			scores[IntentTest] += 0.2
			matched[IntentTest] = append(matched[IntentTest], "context:recentTests")
			break
		}
	}

	var top, second Intent
	var topScore, secondScore float64
	for _, intent := range []Intent{IntentDebug, IntentImplement, IntentRefactor, IntentExplore, IntentDocument, IntentTest, IntentReview} {
		s := scores[intent]
		if s > topScore {
			second, secondScore = top, topScore
			top, topScore = intent, s
		} else if s > secondScore {
			second, secondScore = intent, s
		}
	}

	denominator := float64(len(tokens))
	if denominator < 1 {
		denominator = 1
	}
	confidence := topScore / denominator
	if confidence > 1 {
		confidence = 1
	}

	result := IntentResult{
		Intent:          top,
		Confidence:      confidence,
		MatchedKeywords: matched[top],
	}
	if topScore == 0 || confidence < unknownThreshold {
		result.Intent = IntentUnknown
		return result
	}
	if topScore > 0 && secondScore/topScore > 0.5 {
		result.Secondary = second
	}
	return result
}

// tokenizeForIntent lowercases, strips punctuation, and drops stopwords
// so short connective words do not dilute confidence.
func tokenizeForIntent(message string) []string {
	var tokens []string
	for _, raw := range strings.Fields(strings.ToLower(message)) {
		tok := strings.Trim(raw, ".,;:!?\"'()[]{}")
		if tok == "" || stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func isTestFile(path string) bool {
	if path == "" {
		return false
	}
	base := strings.ToLower(path)
	return strings.Contains(base, "_test.") || strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") || strings.HasPrefix(base, "test_")
}
