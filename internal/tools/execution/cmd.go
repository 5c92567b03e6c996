// Package execution provides the builtin shell tool. Commands pass the
// sandbox security check, then run under the session's sandbox config.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MLGBJDLW/vellum-sub012/internal/sandbox"
	"github.com/MLGBJDLW/vellum-sub012/internal/tools"
)

const (
	defaultMaxLines = 40
	minMaxLines     = 5
	maxMaxLines     = 200
	maxOutputChars  = 4000
)

// cmdResult is the JSON contract the tool returns to the model.
type cmdResult struct {
	Cmd             string `json:"cmd"`
	ExitCode        int    `json:"exit_code"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	WallMs          int64  `json:"wall_ms"`
	TimedOut        bool   `json:"timed_out,omitempty"`
	Denied          bool   `json:"denied,omitempty"`
	Reason          string `json:"reason,omitempty"`
	StdoutTruncated bool   `json:"stdout_truncated,omitempty"`
	StderrTruncated bool   `json:"stderr_truncated,omitempty"`
}

// NewRunCmdTool creates the shell tool over one sandbox config. The
// engine and detector gate every invocation; a deny verdict is reported
// to the model rather than failing the turn.
func NewRunCmdTool(cfg sandbox.Config, engine *sandbox.Engine, detector *sandbox.Detector) tools.Tool {
	return tools.Tool{
		Name:        "run_cmd",
		Description: "Runs a command inside the session sandbox. The command is screened by the security policy; dangerous commands are denied.",
		Kind:        tools.KindShell,
		Category:    "execution",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"cmd":  map[string]any{"type": "string", "description": "Executable name"},
				"args": map[string]any{"type": "string", "description": "Space-separated arguments"},
				"max_output_lines": map[string]any{
					"type": "integer", "minimum": 5, "maximum": 200,
					"description": "Maximum stdout/stderr lines to return (default: 40)",
				},
			},
			"required": []any{"cmd"},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			cmd, _ := args["cmd"].(string)
			argsStr, _ := args["args"].(string)
			maxLines := parseMaxLines(args["max_output_lines"])

			commandLine := strings.TrimSpace(cmd + " " + argsStr)
			verdict := sandbox.SecurityCheck(commandLine, engine, detector)
			if verdict.Decision == sandbox.DecisionDeny {
				return marshalResult(cmdResult{
					Cmd:      commandLine,
					ExitCode: 1,
					Denied:   true,
					Reason:   verdict.Reason,
				})
			}

			executor, err := sandbox.NewExecutor(cfg)
			if err != nil {
				return "", fmt.Errorf("sandbox unavailable: %w", err)
			}

			argv := append([]string{cmd}, parseArgs(argsStr)...)
			res, err := executor.Run(ctx, argv, "", cfg)
			if err != nil && res.ExitCode == 0 && !res.TimedOut {
				return "", err
			}

			stdout, outTrunc := truncateOutput(res.Stdout, maxLines)
			stderr, errTrunc := truncateOutput(res.Stderr, maxLines)
			return marshalResult(cmdResult{
				Cmd:             commandLine,
				ExitCode:        res.ExitCode,
				Stdout:          stdout,
				Stderr:          stderr,
				WallMs:          res.WallMs,
				TimedOut:        res.TimedOut,
				StdoutTruncated: outTrunc || res.Truncated.Stdout,
				StderrTruncated: errTrunc || res.Truncated.Stderr,
			})
		},
	}
}

func marshalResult(r cmdResult) (string, error) {
	out, err := json.Marshal(r)
	return string(out), err
}

func parseMaxLines(value any) int {
	lines := defaultMaxLines
	switch v := value.(type) {
	case float64:
		lines = int(v)
	case int:
		lines = v
	}
	if lines < minMaxLines {
		lines = minMaxLines
	}
	if lines > maxMaxLines {
		lines = maxMaxLines
	}
	return lines
}

// parseArgs splits a space-separated argument string, honoring single
// and double quotes.
func parseArgs(argsStr string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	quoteChar := byte(0)

	for i := 0; i < len(argsStr); i++ {
		char := argsStr[i]
		switch {
		case char == '"' || char == '\'':
			if !inQuotes {
				inQuotes = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else {
				current.WriteByte(char)
			}
		case char == ' ' && !inQuotes:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(char)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}

func truncateOutput(output string, maxLines int) (string, bool) {
	if output == "" {
		return "", false
	}
	truncated := false
	lines := strings.Split(output, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		truncated = true
	}
	joined := strings.Join(lines, "\n")
	if len(joined) > maxOutputChars {
		joined = joined[:maxOutputChars]
		truncated = true
	}
	return joined, truncated
}
