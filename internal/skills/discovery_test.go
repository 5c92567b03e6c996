package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverInstructions(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "go.mod"), "module example.com/x")
	write(t, filepath.Join(root, "AGENTS.md"), "root rules")
	write(t, filepath.Join(root, "CLAUDE.md"), "ignored, lower priority")
	sub := filepath.Join(root, "internal", "pkg")
	write(t, filepath.Join(sub, ".cursorrules"), "leaf rules")

	found, err := DiscoverInstructions(sub)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("found %d files, want 2: %+v", len(found), found)
	}
	// Inheritance is root before leaf.
	if found[0].Name != "AGENTS.md" {
		t.Errorf("first = %s, want AGENTS.md (root before leaf)", found[0].Name)
	}
	if found[1].Name != ".cursorrules" {
		t.Errorf("second = %s, want .cursorrules", found[1].Name)
	}
}

func TestDiscoverInstructionsPriority(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "go.mod"), "module example.com/x")
	write(t, filepath.Join(root, "CLAUDE.md"), "claude")
	write(t, filepath.Join(root, ".cursorrules"), "cursor")

	found, err := DiscoverInstructions(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Name != "CLAUDE.md" {
		t.Errorf("found = %+v, want only CLAUDE.md (priority 90 > 80)", found)
	}
}

func TestDiscoverInstructionsStopsAtBoundary(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "AGENTS.md"), "outside the project")
	project := filepath.Join(root, "project")
	write(t, filepath.Join(project, ".git", "HEAD"), "ref: refs/heads/main")
	write(t, filepath.Join(project, "agents.md"), "project rules")

	found, err := DiscoverInstructions(project)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Name != "agents.md" {
		t.Errorf("found = %+v, walk should stop at the .git boundary", found)
	}
}

func TestDiscoverSkills(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "low", "SKILL.md"),
		"---\nname: low-skill\ndescription: low\npriority: 10\n---\nbody")
	write(t, filepath.Join(dir, "high", "SKILL.md"),
		"---\nname: high-skill\ndescription: high\npriority: 90\n---\nbody")
	write(t, filepath.Join(dir, "broken", "SKILL.md"), "no frontmatter at all")

	skills, err := DiscoverSkills(dir)
	if err != nil {
		t.Fatal(err)
	}
	// The broken skill is skipped; the rest sort by priority.
	if len(skills) != 2 {
		t.Fatalf("found %d skills, want 2", len(skills))
	}
	if skills[0].Name != "high-skill" || skills[1].Name != "low-skill" {
		t.Errorf("order = %s, %s", skills[0].Name, skills[1].Name)
	}
}

func TestDiscoverSkillsMissingDir(t *testing.T) {
	skills, err := DiscoverSkills(filepath.Join(t.TempDir(), "nope"))
	if err != nil || skills != nil {
		t.Errorf("missing dir = (%v, %v), want (nil, nil)", skills, err)
	}
}
