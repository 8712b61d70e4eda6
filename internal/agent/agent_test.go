package agent

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	xerrors "MarketCrew/internal/errors"
	"MarketCrew/internal/llm"
)

// scriptedLLM 依次返回预置的回复，并记录收到的每一条提示词。
type scriptedLLM struct {
	replies []string
	calls   atomic.Int32
	prompts []llm.Request
	err     error
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	idx := int(s.calls.Add(1)) - 1
	s.prompts = append(s.prompts, req)
	if s.err != nil {
		return nil, s.err
	}
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return &llm.Response{Content: s.replies[idx]}, nil
}

// stubTool 返回固定输出或固定错误，并统计调用次数。
type stubTool struct {
	name   string
	output string
	err    error
	calls  atomic.Int32
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub tool" }
func (s *stubTool) Invoke(ctx context.Context, input string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.output + ":" + input, nil
}

func TestExecuteDirectFinalAnswer(t *testing.T) {
	client := &scriptedLLM{replies: []string{
		`{"thought": "straightforward", "final_answer": "the report"}`,
	}}
	ag := New(Definition{Role: "Writer", Goal: "write", Backstory: "veteran"}, client)

	result, err := ag.Execute(context.Background(), "write the report", "a report", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "the report" {
		t.Fatalf("unexpected result: %q", result)
	}
	if client.calls.Load() != 1 {
		t.Fatalf("expected a single reasoning call, got %d", client.calls.Load())
	}
}

func TestExecuteToolThenFinalAnswer(t *testing.T) {
	search := &stubTool{name: "web_search", output: "results"}
	client := &scriptedLLM{replies: []string{
		`{"thought": "need data", "action": "web_search", "action_input": "ai market"}`,
		`{"thought": "enough data", "final_answer": "done"}`,
	}}
	ag := New(Definition{Role: "Analyst"}, client, WithTools(search))

	result, err := ag.Execute(context.Background(), "research", "findings", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "done" {
		t.Fatalf("unexpected result: %q", result)
	}
	if search.calls.Load() != 1 {
		t.Fatalf("expected one tool call, got %d", search.calls.Load())
	}
	// 第二步的提示词必须携带第一步的观察结果。
	second := client.prompts[1].User
	if !strings.Contains(second, "results:ai market") {
		t.Fatalf("observation missing from follow-up prompt:\n%s", second)
	}
}

func TestExecuteToolFailureVisibleToNextStep(t *testing.T) {
	flaky := &stubTool{name: "web_search", err: xerrors.New(xerrors.CodeToolFailure, "搜索服务不可用")}
	client := &scriptedLLM{replies: []string{
		`{"thought": "try the tool", "action": "web_search", "action_input": "ai"}`,
		`{"thought": "tool is down, answer from knowledge", "final_answer": "fallback answer"}`,
	}}
	ag := New(Definition{Role: "Analyst"}, client, WithTools(flaky))

	result, err := ag.Execute(context.Background(), "research", "", nil)
	if err != nil {
		t.Fatalf("tool failure must not abort the loop: %v", err)
	}
	if result != "fallback answer" {
		t.Fatalf("unexpected result: %q", result)
	}
	second := client.prompts[1].User
	if !strings.Contains(second, "web_search failed") {
		t.Fatalf("tool failure not surfaced in prompt:\n%s", second)
	}
}

func TestExecuteUnknownToolObserved(t *testing.T) {
	search := &stubTool{name: "web_search", output: "x"}
	client := &scriptedLLM{replies: []string{
		`{"thought": "guess", "action": "crystal_ball", "action_input": "future"}`,
		`{"thought": "ok", "final_answer": "answer"}`,
	}}
	ag := New(Definition{Role: "Analyst"}, client, WithTools(search))

	if _, err := ag.Execute(context.Background(), "research", "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := client.prompts[1].User
	if !strings.Contains(second, `Unknown tool "crystal_ball"`) {
		t.Fatalf("unknown-tool observation missing:\n%s", second)
	}
	if !strings.Contains(second, "Available tools: web_search") {
		t.Fatalf("available tool list missing from observation:\n%s", second)
	}
	if search.calls.Load() != 0 {
		t.Fatalf("no real tool should have been invoked")
	}
}

func TestExecuteReasoningExhausted(t *testing.T) {
	tool := &stubTool{name: "web_search", output: "more"}
	client := &scriptedLLM{replies: []string{
		`{"thought": "keep digging", "action": "web_search", "action_input": "again"}`,
	}}
	maxSteps := 4
	ag := New(Definition{Role: "Analyst"}, client, WithTools(tool), WithMaxSteps(maxSteps))

	_, err := ag.Execute(context.Background(), "research", "", nil)
	if xerrors.CodeOf(err) != xerrors.CodeReasoningExhausted {
		t.Fatalf("expected REASONING_EXHAUSTED, got %v", err)
	}
	if int(client.calls.Load()) != maxSteps {
		t.Fatalf("expected exactly %d reasoning calls, got %d", maxSteps, client.calls.Load())
	}
}

func TestExecuteRejectsDelegation(t *testing.T) {
	client := &scriptedLLM{replies: []string{
		`{"thought": "too hard", "action": "delegate", "action_input": "ask the writer"}`,
	}}
	ag := New(Definition{Role: "Analyst"}, client)

	_, err := ag.Execute(context.Background(), "research", "", nil)
	if xerrors.CodeOf(err) != xerrors.CodeDelegationDisabled {
		t.Fatalf("expected DELEGATION_DISABLED, got %v", err)
	}
}

func TestExecuteMalformedReplyConsumesStep(t *testing.T) {
	client := &scriptedLLM{replies: []string{
		"I think I should search the web first.",
		`{"thought": "fine", "final_answer": "parsed"}`,
	}}
	ag := New(Definition{Role: "Analyst"}, client, WithMaxSteps(3))

	result, err := ag.Execute(context.Background(), "research", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "parsed" {
		t.Fatalf("unexpected result: %q", result)
	}
	second := client.prompts[1].User
	if !strings.Contains(second, "could not be parsed") {
		t.Fatalf("parse feedback missing from prompt:\n%s", second)
	}
}

func TestExecutePropagatesLLMFailure(t *testing.T) {
	client := &scriptedLLM{err: xerrors.New(xerrors.CodeRetriesExhausted, "模型不可用")}
	ag := New(Definition{Role: "Analyst"}, client)

	_, err := ag.Execute(context.Background(), "research", "", nil)
	if xerrors.CodeOf(err) != xerrors.CodeRetriesExhausted {
		t.Fatalf("expected RETRIES_EXHAUSTED to propagate, got %v", err)
	}
	if !strings.Contains(err.Error(), "模型不可用") {
		t.Fatalf("root cause missing: %v", err)
	}
}

func TestExecuteContextOrderInPrompt(t *testing.T) {
	client := &scriptedLLM{replies: []string{
		`{"thought": "ok", "final_answer": "summary"}`,
	}}
	ag := New(Definition{Role: "Writer"}, client)

	contexts := []ContextEntry{
		{Role: "Analyst A", Output: "first output"},
		{Role: "Analyst B", Output: "second output"},
	}
	if _, err := ag.Execute(context.Background(), "summarise", "", contexts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := client.prompts[0].User
	first := strings.Index(prompt, "first output")
	second := strings.Index(prompt, "second output")
	if first < 0 || second < 0 {
		t.Fatalf("context entries missing from prompt:\n%s", prompt)
	}
	if first > second {
		t.Fatalf("context entries rendered out of order")
	}
	for i, entry := range contexts {
		if !strings.Contains(prompt, fmt.Sprintf("[%d] Output of %s", i+1, entry.Role)) {
			t.Fatalf("context label missing for %s", entry.Role)
		}
	}
}
