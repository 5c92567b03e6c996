package sandbox

import (
	"fmt"
	"regexp"
)

// Severity ranks a dangerous-pattern hit.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Pattern is one labeled dangerous-command detector entry.
type Pattern struct {
	Name     string
	Regex    *regexp.Regexp
	Severity Severity
	Reason   string
}

// Match is one detector hit with its byte offsets in the command.
type Match struct {
	Pattern Pattern
	Start   int
	End     int
}

// Detector scans commands against a pattern set. Matching is
// case-insensitive (patterns compile with (?i)).
type Detector struct {
	patterns []Pattern
}

// DefaultPatterns covers root deletion, forced recursive deletion,
// privilege escalation, fetch-and-execute pipelines, and netcat reverse
// shells.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:     "rm-root",
			Regex:    regexp.MustCompile(`(?i)\brm\b(\s+-[^\s]+)*\s+/+(\s|$)`),
			Severity: SeverityCritical,
			Reason:   "deletion rooted at /",
		},
		{
			Name:     "rm-recursive",
			Regex:    regexp.MustCompile(`(?i)\brm\b.*\s-(?:[a-z]*r[a-z]*f|[a-z]*f[a-z]*r)[a-z]*\b`),
			Severity: SeverityHigh,
			Reason:   "recursive deletion with force flags",
		},
		{
			Name:     "sudo",
			Regex:    regexp.MustCompile(`(?i)\bsudo\b`),
			Severity: SeverityHigh,
			Reason:   "privilege escalation",
		},
		{
			Name:     "fetch-exec",
			Regex:    regexp.MustCompile(`(?i)\b(curl|wget)\b[^|]*\|\s*(sh|bash|zsh)\b`),
			Severity: SeverityCritical,
			Reason:   "fetch-and-execute pipeline",
		},
		{
			Name:     "nc-reverse-shell",
			Regex:    regexp.MustCompile(`(?i)\bnc(at)?\b.*\s-e\s`),
			Severity: SeverityCritical,
			Reason:   "reverse shell via netcat",
		},
	}
}

// NewDetector creates a detector; nil patterns selects the default set.
func NewDetector(patterns []Pattern) *Detector {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return &Detector{patterns: patterns}
}

// Detect returns every pattern hit in the command, in pattern order.
func (d *Detector) Detect(command string) []Match {
	var matches []Match
	for _, p := range d.patterns {
		if loc := p.Regex.FindStringIndex(command); loc != nil {
			matches = append(matches, Match{Pattern: p, Start: loc[0], End: loc[1]})
		}
	}
	return matches
}

// MaxSeverity returns the highest severity among matches.
func MaxSeverity(matches []Match) Severity {
	rank := map[Severity]int{SeverityInfo: 0, SeverityWarning: 1, SeverityHigh: 2, SeverityCritical: 3}
	max := Severity("")
	best := -1
	for _, m := range matches {
		if r := rank[m.Pattern.Severity]; r > best {
			best = r
			max = m.Pattern.Severity
		}
	}
	return max
}

// Decision is a policy verdict for one command.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	DecisionAsk   Decision = "ask"
)

// Rule is one ordered policy entry.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Decision Decision
	Reason   string
}

// Engine evaluates commands against an ordered rule list.
type Engine struct {
	rules           []Rule
	defaultDecision Decision
}

// NewEngine creates a policy engine. An empty defaultDecision means ask.
func NewEngine(rules []Rule, defaultDecision Decision) *Engine {
	if defaultDecision == "" {
		defaultDecision = DecisionAsk
	}
	return &Engine{rules: rules, defaultDecision: defaultDecision}
}

// Verdict carries a decision plus the reason behind it.
type Verdict struct {
	Decision Decision
	Rule     string
	Reason   string
	Matches  []Match
}

// Evaluate returns the first matching rule's decision, or the default.
func (e *Engine) Evaluate(command string) Verdict {
	for _, r := range e.rules {
		if r.Pattern.MatchString(command) {
			return Verdict{Decision: r.Decision, Rule: r.Name, Reason: r.Reason}
		}
	}
	return Verdict{Decision: e.defaultDecision, Reason: "no rule matched"}
}

// SecurityCheck composes the detector with the policy engine. A critical
// detector hit forces deny regardless of the engine's answer; a high hit
// escalates allow to ask.
func SecurityCheck(command string, engine *Engine, detector *Detector) Verdict {
	matches := detector.Detect(command)
	verdict := engine.Evaluate(command)
	verdict.Matches = matches

	switch MaxSeverity(matches) {
	case SeverityCritical:
		worst := criticalMatch(matches)
		verdict.Decision = DecisionDeny
		verdict.Rule = worst.Pattern.Name
		verdict.Reason = fmt.Sprintf("blocked by detector: %s (%s)", worst.Pattern.Name, worst.Pattern.Reason)
	case SeverityHigh:
		if verdict.Decision == DecisionAllow {
			verdict.Decision = DecisionAsk
			verdict.Reason = fmt.Sprintf("escalated by detector: %s", matches[0].Pattern.Name)
		}
	}
	return verdict
}

func criticalMatch(matches []Match) Match {
	for _, m := range matches {
		if m.Pattern.Severity == SeverityCritical {
			return m
		}
	}
	return matches[0]
}
