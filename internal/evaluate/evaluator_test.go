package evaluate

import (
	"strings"
	"testing"
)

const validPayload = `{
	"minimalFix": "A woman **is walking** in the park.",
	"microReason": "You need the -ing form. 需要进行时。",
	"bestDescription": "A young woman strolls through a sunny park.",
	"encouragement": "Great word choice with 'park'!"
}`

func TestParseResult(t *testing.T) {
	r, err := ParseResult(validPayload)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if !strings.Contains(r.MinimalFix, "is walking") {
		t.Errorf("minimalFix = %q", r.MinimalFix)
	}
	if r.Encouragement == "" {
		t.Error("encouragement empty")
	}
}

func TestParseResultToleratesCodeFences(t *testing.T) {
	fenced := "```json\n" + validPayload + "\n```"
	if _, err := ParseResult(fenced); err != nil {
		t.Fatalf("ParseResult with fences: %v", err)
	}
}

func TestParseResultRejectsMissingFields(t *testing.T) {
	partial := `{"minimalFix": "x", "microReason": "y"}`
	if _, err := ParseResult(partial); err == nil {
		t.Error("ParseResult accepted payload with missing fields")
	}
}

func TestParseResultRejectsGarbage(t *testing.T) {
	if _, err := ParseResult("Sorry, I cannot help with that."); err == nil {
		t.Error("ParseResult accepted non-JSON content")
	}
}

func TestNewOpenAIEvaluatorValidation(t *testing.T) {
	if _, err := NewOpenAIEvaluator("", "gpt-4", ""); err == nil {
		t.Error("empty API key accepted")
	}
	if _, err := NewOpenAIEvaluator("sk-test", "", ""); err == nil {
		t.Error("empty model accepted")
	}
}
