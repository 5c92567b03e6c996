package evidence

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// DiffProvider surfaces the working tree's uncommitted changes as
// evidence. Changed code is almost always relevant to the current turn,
// which is why diff evidence carries an unconditional rerank bonus.
type DiffProvider struct {
	repoRoot string
}

// NewDiffProvider creates a provider over the repo root.
func NewDiffProvider(repoRoot string) *DiffProvider {
	return &DiffProvider{repoRoot: repoRoot}
}

func (p *DiffProvider) Name() ProviderName { return ProviderDiff }

var hunkHeaderPattern = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// Retrieve runs git diff and converts each hunk into one evidence item.
func (p *DiffProvider) Retrieve(ctx context.Context, signals []Signal, tokenBudget int) ([]Evidence, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--unified=3", "HEAD")
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		// Not a git repo, or no HEAD yet: no diff evidence, not an error
		// worth failing the turn over.
		return nil, nil
	}

	hunks := parseDiffHunks(string(output))
	var items []Evidence
	used := 0
	for _, h := range hunks {
		tokens := llm.EstimateTokens(h.content)
		if tokens <= 0 {
			continue
		}
		if used+tokens > tokenBudget {
			break
		}
		used += tokens
		items = append(items, Evidence{
			ID:             uuid.NewString(),
			Provider:       ProviderDiff,
			Path:           h.path,
			Range:          Range{Start: h.start, End: h.end},
			Content:        h.content,
			Tokens:         tokens,
			BaseScore:      1,
			MatchedSignals: matchSignals(signals, h.path, h.content),
		})
	}
	return items, nil
}

type diffHunk struct {
	path    string
	start   int
	end     int
	content string
}

func parseDiffHunks(diff string) []diffHunk {
	var hunks []diffHunk
	var path string
	var current *diffHunk

	flush := func() {
		if current != nil && strings.TrimSpace(current.content) != "" {
			hunks = append(hunks, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			path = ""
		case strings.HasPrefix(line, "+++ b/"):
			path = strings.TrimPrefix(line, "+++ b/")
		case strings.HasPrefix(line, "@@"):
			flush()
			m := hunkHeaderPattern.FindStringSubmatch(line)
			if m == nil || path == "" {
				continue
			}
			start, _ := strconv.Atoi(m[1])
			count := 1
			if m[2] != "" {
				count, _ = strconv.Atoi(m[2])
			}
			end := start + count - 1
			if end < start {
				end = start
			}
			current = &diffHunk{path: path, start: start, end: end}
		default:
			if current != nil {
				current.content += line + "\n"
			}
		}
	}
	flush()
	return hunks
}

// matchSignals returns the subset of signals that appear in the given
// path or content.
func matchSignals(signals []Signal, path, content string) []Signal {
	var matched []Signal
	lowerPath := strings.ToLower(path)
	lowerContent := strings.ToLower(content)
	for _, s := range signals {
		v := strings.ToLower(s.Value)
		switch s.Type {
		case SignalPath:
			if strings.Contains(lowerPath, strings.ToLower(normalizePath(s.Value))) {
				matched = append(matched, s)
			}
		default:
			if strings.Contains(lowerContent, v) {
				matched = append(matched, s)
			}
		}
	}
	return matched
}

func normalizePath(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(p, `\`, "/"), "./")
}

// String implements fmt.Stringer for logging.
func (p *DiffProvider) String() string {
	return fmt.Sprintf("diff(%s)", p.repoRoot)
}
