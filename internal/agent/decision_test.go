package agent

import "testing"

func TestParseDecisionAction(t *testing.T) {
	d, err := parseDecision(`{"thought": "need data", "action": "web_search", "action_input": "ai market"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != "web_search" || d.ActionInput != "ai market" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecisionFinalAnswer(t *testing.T) {
	d, err := parseDecision(`{"thought": "done", "final_answer": "the report"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.FinalAnswer != "the report" || d.Action != "" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecisionCodeFence(t *testing.T) {
	content := "```json\n{\"thought\": \"t\", \"final_answer\": \"fenced\"}\n```"
	d, err := parseDecision(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.FinalAnswer != "fenced" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecisionSurroundingProse(t *testing.T) {
	content := `Sure, here is my decision: {"thought": "t", "action": "scrape_website", "action_input": "https://example.com"} hope that helps`
	d, err := parseDecision(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != "scrape_website" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecisionBracesInsideStrings(t *testing.T) {
	d, err := parseDecision(`{"thought": "object {a: 1} in text", "final_answer": "closing } inside"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.FinalAnswer != "closing } inside" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecisionRejectsEmptyDecision(t *testing.T) {
	if _, err := parseDecision(`{"thought": "just thinking"}`); err == nil {
		t.Fatalf("expected error when neither action nor final_answer present")
	}
	if _, err := parseDecision("no json here"); err == nil {
		t.Fatalf("expected error for plain prose")
	}
}

func TestIsDelegation(t *testing.T) {
	for _, action := range []string{"delegate", "Delegate_Work", " ask_coworker "} {
		if !isDelegation(action) {
			t.Fatalf("expected %q to be treated as delegation", action)
		}
	}
	if isDelegation("web_search") {
		t.Fatalf("regular tool must not be treated as delegation")
	}
}
