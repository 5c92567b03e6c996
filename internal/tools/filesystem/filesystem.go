// Package filesystem provides the builtin read/write/list tools, rooted
// at the repository and fenced against path escape.
package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MLGBJDLW/vellum-sub012/internal/tools"
)

// resolve joins a tool-supplied relative path under repoRoot and rejects
// traversal outside it.
func resolve(repoRoot, path string) (string, error) {
	full := filepath.Clean(filepath.Join(repoRoot, path))
	root := filepath.Clean(repoRoot)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside repository root", path)
	}
	return full, nil
}

// NewReadFileTool reads a file relative to the repo root.
func NewReadFileTool(repoRoot string) tools.Tool {
	return tools.Tool{
		Name:        "read_file",
		Description: "Reads a file relative to the repository root and returns its content with a line count.",
		Kind:        tools.KindRead,
		Category:    "filesystem",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Relative path of the file to read"},
			},
			"required": []any{"path"},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			full, err := resolve(repoRoot, path)
			if err != nil {
				return "", err
			}
			content, err := os.ReadFile(full)
			if err != nil {
				return "", err
			}
			result := map[string]any{
				"path":       path,
				"content":    string(content),
				"line_count": strings.Count(string(content), "\n") + 1,
			}
			out, err := json.Marshal(result)
			return string(out), err
		},
	}
}

// NewWriteFileTool writes a file relative to the repo root, creating
// parent directories as needed.
func NewWriteFileTool(repoRoot string) tools.Tool {
	return tools.Tool{
		Name:        "write_file",
		Description: "Writes content to a file relative to the repository root, creating parent directories as needed.",
		Kind:        tools.KindWrite,
		Category:    "filesystem",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "Relative path of the file to write"},
				"content": map[string]any{"type": "string", "description": "Full file content"},
			},
			"required": []any{"path", "content"},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			full, err := resolve(repoRoot, path)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return "", err
			}
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return "", err
			}
			out, err := json.Marshal(map[string]any{"path": path, "bytes_written": len(content)})
			return string(out), err
		},
	}
}

// NewListFilesTool lists a directory relative to the repo root.
func NewListFilesTool(repoRoot string) tools.Tool {
	return tools.Tool{
		Name:        "list_files",
		Description: "Lists files and directories under a path relative to the repository root.",
		Kind:        tools.KindRead,
		Category:    "filesystem",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Relative directory path (default: repository root)"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				path = "."
			}
			full, err := resolve(repoRoot, path)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(full)
			if err != nil {
				return "", err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			out, err := json.Marshal(map[string]any{"path": path, "entries": names})
			return string(out), err
		},
	}
}
