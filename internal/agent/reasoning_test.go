package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/coreflow/agentruntime/pkg/models"
)

type fakeTool struct {
	name string
	desc string
}

func (t *fakeTool) Name() string           { return t.name }
func (t *fakeTool) Description() string    { return t.desc }
func (t *fakeTool) Schema() json.RawMessage { return json.RawMessage(`{}`) }
func (t *fakeTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: "ok"}, nil
}

func TestReasoning_PlanParsesJSONFromProse(t *testing.T) {
	provider := &loopTestProvider{responses: [][]CompletionChunk{
		{{Text: `Here's the plan:` + "\n"}, {Text: `{"goal": "ship it", "actions": [], "confidence": 0.8}`}, {Text: "\nThat's my plan.", Done: true}},
	}}
	r := NewReasoning(provider, "")

	plan, err := r.Plan(context.Background(), ReasoningContext{JobDescription: "ship the feature"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Goal != "ship it" || plan.Confidence != 0.8 {
		t.Errorf("Plan() = %+v, want goal %q confidence 0.8", plan, "ship it")
	}
}

func TestReasoning_PlanInvalidJSONErrors(t *testing.T) {
	provider := &loopTestProvider{responses: [][]CompletionChunk{
		{{Text: "not json at all", Done: true}},
	}}
	r := NewReasoning(provider, "")

	if _, err := r.Plan(context.Background(), ReasoningContext{}); err == nil {
		t.Error("Plan() with invalid JSON should error")
	}
}

func TestReasoning_SelectToolsEmptyWithNoTools(t *testing.T) {
	provider := &loopTestProvider{}
	r := NewReasoning(provider, "")

	selections, err := r.SelectTools(context.Background(), ReasoningContext{})
	if err != nil {
		t.Fatalf("SelectTools() error = %v", err)
	}
	if len(selections) != 0 {
		t.Errorf("SelectTools() with no tools = %+v, want empty", selections)
	}
}

func TestReasoning_SelectToolsReturnsToolCalls(t *testing.T) {
	toolCall := &models.ToolCall{ID: "call-1", Name: "search", Input: json.RawMessage(`{"query":"go modules"}`)}
	provider := &loopTestProvider{responses: [][]CompletionChunk{
		{{Text: "I'll look that up"}, {ToolCall: toolCall, Done: true}},
	}}
	r := NewReasoning(provider, "")

	selections, err := r.SelectTools(context.Background(), ReasoningContext{
		AvailableTools: []Tool{&fakeTool{name: "search", desc: "search the web"}},
	})
	if err != nil {
		t.Fatalf("SelectTools() error = %v", err)
	}
	if len(selections) != 1 || selections[0].ToolName != "search" {
		t.Errorf("SelectTools() = %+v, want one selection for 'search'", selections)
	}
	if selections[0].Reasoning != "I'll look that up" {
		t.Errorf("SelectTools()[0].Reasoning = %q", selections[0].Reasoning)
	}
}

func TestReasoning_EvaluateSuccessParsesJSON(t *testing.T) {
	provider := &loopTestProvider{responses: [][]CompletionChunk{
		{{Text: `{"success": true, "confidence": 0.9, "reasoning": "looks good"}`, Done: true}},
	}}
	r := NewReasoning(provider, "")

	eval, err := r.EvaluateSuccess(context.Background(), ReasoningContext{JobDescription: "write a test"}, "wrote a test")
	if err != nil {
		t.Fatalf("EvaluateSuccess() error = %v", err)
	}
	if !eval.Success || eval.Confidence != 0.9 {
		t.Errorf("EvaluateSuccess() = %+v", eval)
	}
}

func TestReasoning_RespondReturnsPlainText(t *testing.T) {
	provider := &loopTestProvider{responses: [][]CompletionChunk{
		{{Text: "Hello "}, {Text: "there.", Done: true}},
	}}
	r := NewReasoning(provider, "")

	reply, err := r.Respond(context.Background(), ReasoningContext{
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != "Hello there." {
		t.Errorf("Respond() = %q, want %q", reply, "Hello there.")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"pure json", `{"a": 1}`, `{"a": 1}`},
		{"prose wrapped", "here you go: {\"a\": 1} thanks", `{"a": 1}`},
		{"no braces", "no json here", "no json here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.input); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
