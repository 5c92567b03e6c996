// Package compaction tracks context-compaction events, detects cascades
// (compactions over already-compacted material), and persists aggregate
// stats as JSON.
package compaction

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// statsVersion is the persistence format version.
const statsVersion = 1

// defaultMaxHistoryEntries bounds the persisted record history.
const defaultMaxHistoryEntries = 100

// QualityReport captures how well one compaction preserved context.
// Passed means the summary is non-empty and the compression ratio stayed
// at or under 0.5.
type QualityReport struct {
	CompressionRatio float64 `json:"compressionRatio"`
	SummaryLength    int     `json:"summaryLength"`
	Passed           bool    `json:"passed"`
}

// Record is one compaction event.
type Record struct {
	CompactionID     string         `json:"compactionId"`
	Timestamp        time.Time      `json:"timestamp"`
	OriginalTokens   int            `json:"originalTokens"`
	CompressedTokens int            `json:"compressedTokens"`
	MessageCount     int            `json:"messageCount"`
	IsCascade        bool           `json:"isCascade"`
	Quality          *QualityReport `json:"qualityReport,omitempty"`
}

// persistedStats is the on-disk shape (see the stats file contract).
type persistedStats struct {
	Version               int      `json:"version"`
	TotalCompactions      int      `json:"totalCompactions"`
	CascadeCompactions    int      `json:"cascadeCompactions"`
	TotalOriginalTokens   int      `json:"totalOriginalTokens"`
	TotalCompressedTokens int      `json:"totalCompressedTokens"`
	History               []Record `json:"history"`
}

// Tracker records compactions for one process. Single writer per
// session; the mutex covers cross-session sharing.
type Tracker struct {
	mu sync.Mutex

	statsPath         string
	maxHistoryEntries int

	totalCompactions      int
	cascadeCompactions    int
	totalOriginalTokens   int
	totalCompressedTokens int
	sessionCompactions    int
	history               []Record

	// ids of messages consumed by a prior compaction, and the summary
	// ids that replaced them; either appearing again marks a cascade.
	compactedIDs map[string]bool
	summaryIDs   map[string]bool
}

// NewTracker creates a tracker persisting to statsPath. Loading is
// best-effort: a missing file means empty state, a corrupt file is
// logged and replaced.
func NewTracker(statsPath string, maxHistoryEntries int) *Tracker {
	if maxHistoryEntries <= 0 {
		maxHistoryEntries = defaultMaxHistoryEntries
	}
	t := &Tracker{
		statsPath:         statsPath,
		maxHistoryEntries: maxHistoryEntries,
		compactedIDs:      make(map[string]bool),
		summaryIDs:        make(map[string]bool),
	}
	t.load()
	return t
}

func (t *Tracker) load() {
	if t.statsPath == "" {
		return
	}
	data, err := os.ReadFile(t.statsPath)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		log.Printf("WARNING: could not read compaction stats at %s: %v", t.statsPath, err)
		return
	}
	var stats persistedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		log.Printf("WARNING: compaction stats at %s are malformed (%v); starting fresh", t.statsPath, err)
		return
	}
	t.totalCompactions = stats.TotalCompactions
	t.cascadeCompactions = stats.CascadeCompactions
	t.totalOriginalTokens = stats.TotalOriginalTokens
	t.totalCompressedTokens = stats.TotalCompressedTokens
	t.history = stats.History
}

// persist writes the stats file; failures are logged, never fatal.
func (t *Tracker) persist() {
	if t.statsPath == "" {
		return
	}
	stats := persistedStats{
		Version:               statsVersion,
		TotalCompactions:      t.totalCompactions,
		CascadeCompactions:    t.cascadeCompactions,
		TotalOriginalTokens:   t.totalOriginalTokens,
		TotalCompressedTokens: t.totalCompressedTokens,
		History:               t.history,
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Printf("WARNING: could not marshal compaction stats: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(t.statsPath), 0o755); err != nil {
		log.Printf("WARNING: could not create stats dir: %v", err)
		return
	}
	if err := os.WriteFile(t.statsPath, data, 0o644); err != nil {
		log.Printf("WARNING: could not write compaction stats: %v", err)
	}
}

// TrackCompactedMessages records which original message ids a summary
// replaced, so later compactions touching them are flagged as cascades.
func (t *Tracker) TrackCompactedMessages(originalIDs []string, summaryID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range originalIDs {
		if id != "" {
			t.compactedIDs[id] = true
		}
	}
	if summaryID != "" {
		t.summaryIDs[summaryID] = true
	}
}

// IsCascade reports whether compacting these messages would operate over
// already-compacted material: a summary message, a non-empty condense
// id, or an id previously recorded as compacted or produced.
func (t *Tracker) IsCascade(messages []llm.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range messages {
		if m.IsSummary || m.CondenseID != "" {
			return true
		}
		if m.ID != "" && (t.compactedIDs[m.ID] || t.summaryIDs[m.ID]) {
			return true
		}
	}
	return false
}

// RecordCompaction appends one compaction event and persists the stats.
func (t *Tracker) RecordCompaction(originalTokens, compressedTokens, messageCount int, isCascade bool, quality *QualityReport) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := Record{
		CompactionID:     uuid.NewString(),
		Timestamp:        time.Now().UTC(),
		OriginalTokens:   originalTokens,
		CompressedTokens: compressedTokens,
		MessageCount:     messageCount,
		IsCascade:        isCascade,
		Quality:          quality,
	}

	t.totalCompactions++
	t.sessionCompactions++
	if isCascade {
		t.cascadeCompactions++
	}
	t.totalOriginalTokens += originalTokens
	t.totalCompressedTokens += compressedTokens

	t.history = append(t.history, rec)
	if len(t.history) > t.maxHistoryEntries {
		t.history = t.history[len(t.history)-t.maxHistoryEntries:]
	}

	t.persist()
	return rec
}

// EvaluateQuality builds a quality report for one compaction.
func EvaluateQuality(originalTokens, compressedTokens int, summary string) *QualityReport {
	ratio := 1.0
	if originalTokens > 0 {
		ratio = float64(compressedTokens) / float64(originalTokens)
	}
	return &QualityReport{
		CompressionRatio: ratio,
		SummaryLength:    len(summary),
		Passed:           summary != "" && ratio <= 0.5,
	}
}

// ResetSession clears the per-session counter; totals persist across
// sessions.
func (t *Tracker) ResetSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionCompactions = 0
}

// Stats is the tracker's aggregate view.
type Stats struct {
	TotalCompactions      int     `json:"totalCompactions"`
	CascadeCompactions    int     `json:"cascadeCompactions"`
	SessionCompactions    int     `json:"sessionCompactions"`
	TotalOriginalTokens   int     `json:"totalOriginalTokens"`
	TotalCompressedTokens int     `json:"totalCompressedTokens"`
	AvgCompressionRatio   float64 `json:"avgCompressionRatio"`
	HistorySize           int     `json:"historySize"`
}

// Stats returns the aggregate counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Stats{
		TotalCompactions:      t.totalCompactions,
		CascadeCompactions:    t.cascadeCompactions,
		SessionCompactions:    t.sessionCompactions,
		TotalOriginalTokens:   t.totalOriginalTokens,
		TotalCompressedTokens: t.totalCompressedTokens,
		HistorySize:           len(t.history),
	}
	if t.totalOriginalTokens > 0 {
		s.AvgCompressionRatio = float64(t.totalCompressedTokens) / float64(t.totalOriginalTokens)
	}
	return s
}

// History returns a copy of the bounded record history, oldest first.
func (t *Tracker) History() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.history))
	copy(out, t.history)
	return out
}

// String implements fmt.Stringer for debug logging.
func (t *Tracker) String() string {
	s := t.Stats()
	return fmt.Sprintf("compactions=%d cascades=%d session=%d", s.TotalCompactions, s.CascadeCompactions, s.SessionCompactions)
}
