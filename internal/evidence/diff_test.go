package evidence

import "testing"

const sampleDiff = `diff --git a/internal/llm/message.go b/internal/llm/message.go
index 111..222 100644
--- a/internal/llm/message.go
+++ b/internal/llm/message.go
@@ -10,4 +10,5 @@ func Text() {
 context line
-removed line
+added line
+another added line
 trailing context
@@ -40,2 +41,2 @@
-old
+new
diff --git a/README.md b/README.md
--- a/README.md
+++ b/README.md
@@ -1,2 +1,3 @@
 # title
+new docs line
`

func TestParseDiffHunks(t *testing.T) {
	hunks := parseDiffHunks(sampleDiff)
	if len(hunks) != 3 {
		t.Fatalf("got %d hunks, want 3", len(hunks))
	}

	first := hunks[0]
	if first.path != "internal/llm/message.go" {
		t.Errorf("path = %q", first.path)
	}
	if first.start != 10 || first.end != 14 {
		t.Errorf("range = %d-%d, want 10-14", first.start, first.end)
	}

	second := hunks[1]
	if second.start != 41 || second.end != 42 {
		t.Errorf("second range = %d-%d, want 41-42", second.start, second.end)
	}

	third := hunks[2]
	if third.path != "README.md" || third.start != 1 || third.end != 3 {
		t.Errorf("third hunk = %+v", third)
	}
}

func TestMatchSignals(t *testing.T) {
	signals := []Signal{
		{Type: SignalPath, Value: "internal/llm/message.go"},
		{Type: SignalSymbol, Value: "CheckBalance"},
		{Type: SignalErrorToken, Value: "TypeError"},
	}
	matched := matchSignals(signals, "internal/llm/message.go", "func CheckBalance() {}")
	if len(matched) != 2 {
		t.Fatalf("matched %d signals, want 2 (path + symbol)", len(matched))
	}
}
