package skills

import (
	"os"
	"path/filepath"
	"sort"
)

// Instruction-file priorities; the higher-priority file wins within one
// directory.
var instructionPriorities = map[string]int{
	"AGENTS.md":                        100,
	"agents.md":                        99,
	".agents.md":                       98,
	"CLAUDE.md":                        90,
	"GEMINI.md":                        90,
	".cursorrules":                     80,
	".clinerules":                      75,
	".roorules":                        70,
	".windsurfrules":                   65,
	".github/copilot-instructions.md": 60,
}

// stopBoundaries mark a project root; the upward walk stops after the
// directory containing one.
var stopBoundaries = []string{
	".git", "package.json", "Cargo.toml", "go.mod", "pyproject.toml",
	"pnpm-workspace.yaml",
}

// InstructionFile is one discovered instruction document.
type InstructionFile struct {
	Path     string
	Name     string
	Priority int
	Depth    int // 0 = starting directory, increasing upward
}

// DiscoverInstructions walks upward from startDir collecting the winning
// instruction file per directory, stopping at the first project boundary
// (which is still searched). Results come back lowest-priority-first in
// walk terms: root before leaf, so later files override earlier ones when
// concatenated.
func DiscoverInstructions(startDir string) ([]InstructionFile, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	var found []InstructionFile
	depth := 0
	for {
		if f, ok := bestInstructionIn(dir); ok {
			f.Depth = depth
			found = append(found, f)
		}
		if hasStopBoundary(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
		depth++
	}

	// Deepest ancestors first: inheritance applies root before leaf.
	sort.SliceStable(found, func(i, j int) bool { return found[i].Depth > found[j].Depth })
	return found, nil
}

// bestInstructionIn picks the highest-priority instruction file present
// in one directory.
func bestInstructionIn(dir string) (InstructionFile, bool) {
	best := InstructionFile{Priority: -1}
	for name, prio := range instructionPriorities {
		path := filepath.Join(dir, filepath.FromSlash(name))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if prio > best.Priority {
			best = InstructionFile{Path: path, Name: name, Priority: prio}
		}
	}
	return best, best.Priority >= 0
}

func hasStopBoundary(dir string) bool {
	for _, marker := range stopBoundaries {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// DiscoverSkills loads SKILL.md files under a skills directory (one
// subdirectory per skill). Unparseable skills are skipped.
func DiscoverSkills(skillsDir string) ([]Skill, error) {
	entries, err := os.ReadDir(skillsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(skillsDir, entry.Name(), "SKILL.md")
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		skill, err := ParseSkill(string(data))
		if err != nil {
			continue
		}
		out = append(out, skill)
	}

	// Highest priority first; stable by name for equal priorities.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
