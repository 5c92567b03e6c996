// Package session persists conversations and their compaction bookkeeping
// as JSON files scoped by repository.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// Session is one persistent conversation.
type Session struct {
	ID        string        `json:"id"`
	RepoPath  string        `json:"repo_path"`
	RepoHash  string        `json:"repo_hash"` // directory scoping
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	History   []llm.Message `json:"history"`
	Summary   string        `json:"summary,omitempty"` // context injection for the next session
}

// New creates an empty session for a repository.
func New(repoPath string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		RepoPath:  repoPath,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds messages to the history, stamping ids on any that lack one,
// and touches UpdatedAt.
func (s *Session) Append(messages ...llm.Message) {
	for _, m := range messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		s.History = append(s.History, m)
	}
	s.UpdatedAt = time.Now().UTC()
}

// Compact replaces History[start:end] with a summary message marked with
// the replaced ids, and returns it. The range is half-open and must be
// within the history.
func (s *Session) Compact(start, end int, summaryText string) (llm.Message, bool) {
	if start < 0 || end > len(s.History) || start >= end {
		return llm.Message{}, false
	}

	replaced := make([]string, 0, end-start)
	for _, m := range s.History[start:end] {
		if m.ID != "" {
			replaced = append(replaced, m.ID)
		}
	}

	summary := llm.NewTextMessage(llm.RoleUser, summaryText)
	summary.ID = uuid.NewString()
	summary.IsSummary = true
	summary.CondenseID = uuid.NewString()
	summary.ReplacedIDs = replaced

	rest := make([]llm.Message, 0, len(s.History)-(end-start)+1)
	rest = append(rest, s.History[:start]...)
	rest = append(rest, summary)
	rest = append(rest, s.History[end:]...)
	s.History = rest
	s.UpdatedAt = time.Now().UTC()
	return summary, true
}

// Meta is the lightweight listing representation.
type Meta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Summary   string    `json:"summary,omitempty"`
}
