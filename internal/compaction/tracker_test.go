package compaction

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

func TestIsCascade(t *testing.T) {
	tracker := NewTracker("", 0)
	tracker.TrackCompactedMessages([]string{"m1", "m2"}, "s1")

	tests := []struct {
		name     string
		messages []llm.Message
		want     bool
	}{
		{"previously compacted id", []llm.Message{{ID: "m1"}}, true},
		{"summary id", []llm.Message{{ID: "s1"}}, true},
		{"fresh id", []llm.Message{{ID: "m3"}}, false},
		{"summary flag", []llm.Message{{ID: "m9", IsSummary: true}}, true},
		{"condense id", []llm.Message{{ID: "m9", CondenseID: "c1"}}, true},
		{"empty input", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tracker.IsCascade(tt.messages); got != tt.want {
				t.Errorf("IsCascade() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHistoryBound(t *testing.T) {
	tracker := NewTracker("", 3)
	for i := 0; i < 5; i++ {
		tracker.RecordCompaction(1000+i, 100, 10, false, nil)
	}

	history := tracker.History()
	if len(history) != 3 {
		t.Fatalf("history size = %d, want 3", len(history))
	}
	// The last three survive.
	if history[0].OriginalTokens != 1002 || history[2].OriginalTokens != 1004 {
		t.Errorf("history = %v..%v, want 1002..1004", history[0].OriginalTokens, history[2].OriginalTokens)
	}

	stats := tracker.Stats()
	if stats.TotalCompactions != 5 {
		t.Errorf("total = %d, want 5 (totals outlive history)", stats.TotalCompactions)
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")

	first := NewTracker(path, 10)
	first.RecordCompaction(2000, 500, 12, false, nil)
	first.RecordCompaction(3000, 900, 8, true, nil)
	first.ResetSession()

	// Reload in a fresh tracker: totals persist, session counter resets.
	second := NewTracker(path, 10)
	stats := second.Stats()
	if stats.TotalCompactions != 2 || stats.CascadeCompactions != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalOriginalTokens != 5000 || stats.TotalCompressedTokens != 1400 {
		t.Errorf("token totals = %d/%d", stats.TotalOriginalTokens, stats.TotalCompressedTokens)
	}
	if stats.SessionCompactions != 0 {
		t.Errorf("session counter = %d, want 0 after reload", stats.SessionCompactions)
	}
	if len(second.History()) != 2 {
		t.Errorf("history = %d, want 2", len(second.History()))
	}

	// The file matches the documented shape.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk["version"] != float64(1) {
		t.Errorf("version = %v", onDisk["version"])
	}
	if onDisk["totalCompactions"] != float64(2) {
		t.Errorf("totalCompactions = %v", onDisk["totalCompactions"])
	}
}

func TestCorruptStatsFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	tracker := NewTracker(path, 10)
	if tracker.Stats().TotalCompactions != 0 {
		t.Error("corrupt file should yield empty state")
	}
	// Recording replaces the corrupt file.
	tracker.RecordCompaction(100, 10, 2, false, nil)
	if NewTracker(path, 10).Stats().TotalCompactions != 1 {
		t.Error("stats file not replaced after corruption")
	}
}

func TestEvaluateQuality(t *testing.T) {
	good := EvaluateQuality(1000, 400, "a useful summary")
	if !good.Passed || good.CompressionRatio != 0.4 {
		t.Errorf("good report = %+v", good)
	}
	weak := EvaluateQuality(1000, 800, "summary")
	if weak.Passed {
		t.Error("ratio 0.8 should not pass")
	}
	empty := EvaluateQuality(1000, 100, "")
	if empty.Passed {
		t.Error("empty summary should not pass")
	}
}
