// Package skills parses SKILL.md frontmatter and discovers instruction
// files (AGENTS.md, CLAUDE.md, .cursorrules, ...) by walking upward from
// the working directory.
package skills

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// TriggerType says when a skill activates.
type TriggerType string

const (
	TriggerKeyword     TriggerType = "keyword"
	TriggerFilePattern TriggerType = "file_pattern"
	TriggerCommand     TriggerType = "command"
	TriggerContext     TriggerType = "context"
	TriggerAlways      TriggerType = "always"
)

// Trigger is one activation condition. Pattern is required unless the
// type is always.
type Trigger struct {
	Type    TriggerType `yaml:"type" json:"type"`
	Pattern string      `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// Compatibility scopes a skill to hosts and tools.
type Compatibility struct {
	Vellum    string   `yaml:"vellum,omitempty" json:"vellum,omitempty"`
	Tools     []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	DenyTools []string `yaml:"denyTools,omitempty" json:"denyTools,omitempty"`
}

// Skill is the parsed SKILL.md frontmatter.
type Skill struct {
	Name          string         `yaml:"name" json:"name"`
	Description   string         `yaml:"description" json:"description"`
	Version       string         `yaml:"version,omitempty" json:"version,omitempty"`
	Author        string         `yaml:"author,omitempty" json:"author,omitempty"`
	Priority      int            `yaml:"priority,omitempty" json:"priority,omitempty"`
	Triggers      []Trigger      `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	Dependencies  []string       `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Compatibility *Compatibility `yaml:"compatibility,omitempty" json:"compatibility,omitempty"`
	Tags          []string       `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Body is the markdown below the frontmatter.
	Body string `yaml:"-" json:"-"`
}

// skillAliases maps accepted alias keys to their canonical names.
var skillAliases = map[string]string{
	"desc":     "description",
	"when":     "triggers",
	"requires": "dependencies",
}

var kebabCasePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

const (
	defaultPriority = 50
	minPriority     = 1
	maxPriority     = 100
)

// ParseSkill parses a SKILL.md document: YAML frontmatter between ---
// fences, then the markdown body.
func ParseSkill(content string) (Skill, error) {
	front, body, err := splitFrontmatter(content)
	if err != nil {
		return Skill{}, err
	}

	// Apply aliases on the raw document before decoding.
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(front), &raw); err != nil {
		return Skill{}, fmt.Errorf("invalid frontmatter YAML: %w", err)
	}
	for alias, canonical := range skillAliases {
		if v, ok := raw[alias]; ok {
			if _, exists := raw[canonical]; !exists {
				raw[canonical] = v
			}
			delete(raw, alias)
		}
	}
	normalized, err := yaml.Marshal(raw)
	if err != nil {
		return Skill{}, fmt.Errorf("normalizing frontmatter: %w", err)
	}

	var skill Skill
	if err := yaml.Unmarshal(normalized, &skill); err != nil {
		return Skill{}, fmt.Errorf("decoding frontmatter: %w", err)
	}
	skill.Body = body

	if err := skill.validate(); err != nil {
		return Skill{}, err
	}
	return skill, nil
}

func (s *Skill) validate() error {
	if s.Name == "" {
		return fmt.Errorf("skill frontmatter requires a name")
	}
	if !kebabCasePattern.MatchString(s.Name) {
		return fmt.Errorf("skill name %q must be kebab-case", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("skill %s requires a description", s.Name)
	}
	if s.Priority == 0 {
		s.Priority = defaultPriority
	}
	if s.Priority < minPriority || s.Priority > maxPriority {
		return fmt.Errorf("skill %s priority %d outside [%d, %d]", s.Name, s.Priority, minPriority, maxPriority)
	}
	for i, tr := range s.Triggers {
		switch tr.Type {
		case TriggerKeyword, TriggerFilePattern, TriggerCommand, TriggerContext:
			if tr.Pattern == "" {
				return fmt.Errorf("skill %s trigger %d (%s) requires a pattern", s.Name, i, tr.Type)
			}
		case TriggerAlways:
		default:
			return fmt.Errorf("skill %s trigger %d has unknown type %q", s.Name, i, tr.Type)
		}
	}
	return nil
}

// splitFrontmatter separates the --- fenced YAML header from the body.
func splitFrontmatter(content string) (front, body string, err error) {
	trimmed := strings.TrimLeft(content, "\uFEFF\n\r ")
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", fmt.Errorf("missing frontmatter fence")
	}
	rest := strings.TrimPrefix(trimmed, "---")
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", "", fmt.Errorf("unterminated frontmatter fence")
	}
	front = rest[:end]
	body = strings.TrimPrefix(rest[end+len("\n---"):], "\n")
	return front, body, nil
}
