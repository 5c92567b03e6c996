package evidence

import "testing"

func TestClassifyIntentDebug(t *testing.T) {
	result := ClassifyIntent("fix the TypeError in auth.ts", TurnContext{ErrorPresent: true})

	if result.Intent != IntentDebug {
		t.Fatalf("intent = %s, want debug", result.Intent)
	}
	if result.Confidence < 0.5 {
		t.Errorf("confidence = %v, want >= 0.5", result.Confidence)
	}
	for _, want := range []string{"fix", "typeerror", "context:errorPresent"} {
		found := false
		for _, kw := range result.MatchedKeywords {
			if kw == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("matched keywords %v missing %q", result.MatchedKeywords, want)
		}
	}
}

func TestClassifyIntentTable(t *testing.T) {
	tests := []struct {
		message string
		tctx    TurnContext
		want    Intent
	}{
		{"implement a new feature for parsing", TurnContext{}, IntentImplement},
		{"refactor the parser and extract helpers", TurnContext{}, IntentRefactor},
		{"how does the scheduler work, explain", TurnContext{}, IntentExplore},
		{"write docs and update the readme documentation", TurnContext{}, IntentDocument},
		{"add unit tests and improve coverage", TurnContext{}, IntentTest},
		{"review the diff and verify the change", TurnContext{}, IntentReview},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			result := ClassifyIntent(tt.message, tt.tctx)
			if result.Intent != tt.want {
				t.Errorf("intent = %s (conf %v), want %s", result.Intent, result.Confidence, tt.want)
			}
		})
	}
}

func TestClassifyIntentUnknown(t *testing.T) {
	result := ClassifyIntent("banana umbrella tuesday afternoon weather", TurnContext{})
	if result.Intent != IntentUnknown {
		t.Errorf("intent = %s, want unknown", result.Intent)
	}
}

func TestClassifyIntentContextBoosts(t *testing.T) {
	// The test-file boost alone pushes an ambiguous message toward test.
	result := ClassifyIntent("update assertions", TurnContext{CurrentFile: "auth_test.go"})
	if result.Intent != IntentTest {
		t.Errorf("intent = %s, want test", result.Intent)
	}

	recents := ClassifyIntent("mock the client", TurnContext{RecentFiles: []string{"api.test.ts"}})
	if recents.Intent != IntentTest {
		t.Errorf("intent = %s, want test", recents.Intent)
	}
}

func TestClassifyIntentSecondary(t *testing.T) {
	result := ClassifyIntent("fix the bug and write tests to cover it", TurnContext{})
	if result.Intent != IntentDebug {
		t.Fatalf("intent = %s, want debug", result.Intent)
	}
	if result.Secondary != IntentTest {
		t.Errorf("secondary = %s, want test", result.Secondary)
	}
}

func TestClassifyIntentConfidenceCap(t *testing.T) {
	result := ClassifyIntent("fix bug error crash", TurnContext{ErrorPresent: true})
	if result.Confidence > 1 {
		t.Errorf("confidence = %v, want <= 1", result.Confidence)
	}
}
