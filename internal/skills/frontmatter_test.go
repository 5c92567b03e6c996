package skills

import "testing"

const validSkill = `---
name: review-helper
description: Helps review diffs
version: "1.2.0"
priority: 70
triggers:
  - type: keyword
    pattern: review
  - type: always
tags: [review, diffs]
---
# Review helper

Body text here.
`

func TestParseSkill(t *testing.T) {
	skill, err := ParseSkill(validSkill)
	if err != nil {
		t.Fatal(err)
	}
	if skill.Name != "review-helper" || skill.Description != "Helps review diffs" {
		t.Errorf("skill = %+v", skill)
	}
	if skill.Priority != 70 {
		t.Errorf("priority = %d", skill.Priority)
	}
	if len(skill.Triggers) != 2 || skill.Triggers[0].Pattern != "review" {
		t.Errorf("triggers = %+v", skill.Triggers)
	}
	if skill.Body == "" || skill.Body[0] != '#' {
		t.Errorf("body = %q", skill.Body)
	}
}

func TestParseSkillAliases(t *testing.T) {
	doc := `---
name: alias-user
desc: Uses aliases
when:
  - type: command
    pattern: "/alias"
requires: [review-helper]
---
body
`
	skill, err := ParseSkill(doc)
	if err != nil {
		t.Fatal(err)
	}
	if skill.Description != "Uses aliases" {
		t.Errorf("desc alias not applied: %q", skill.Description)
	}
	if len(skill.Triggers) != 1 || skill.Triggers[0].Type != TriggerCommand {
		t.Errorf("when alias not applied: %+v", skill.Triggers)
	}
	if len(skill.Dependencies) != 1 || skill.Dependencies[0] != "review-helper" {
		t.Errorf("requires alias not applied: %+v", skill.Dependencies)
	}
	// Unset priority defaults to 50.
	if skill.Priority != 50 {
		t.Errorf("priority = %d, want 50", skill.Priority)
	}
}

func TestParseSkillValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", "---\ndescription: x\n---\nbody"},
		{"not kebab case", "---\nname: BadName\ndescription: x\n---\nbody"},
		{"missing description", "---\nname: ok-name\n---\nbody"},
		{"priority out of range", "---\nname: ok-name\ndescription: x\npriority: 200\n---\nbody"},
		{"trigger without pattern", "---\nname: ok-name\ndescription: x\ntriggers:\n  - type: keyword\n---\nbody"},
		{"unknown trigger type", "---\nname: ok-name\ndescription: x\ntriggers:\n  - type: cron\n    pattern: x\n---\nbody"},
		{"no frontmatter", "# just markdown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSkill(tt.doc); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParseSkillAlwaysTriggerNeedsNoPattern(t *testing.T) {
	doc := "---\nname: ok-name\ndescription: x\ntriggers:\n  - type: always\n---\nbody"
	if _, err := ParseSkill(doc); err != nil {
		t.Errorf("always trigger should not require a pattern: %v", err)
	}
}
