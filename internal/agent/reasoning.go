package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ReasoningContext carries everything a Reasoning operation needs: the
// conversation so far, the tools available to select from, and optional
// job/state framing for planning and evaluation.
type ReasoningContext struct {
	Messages       []CompletionMessage
	AvailableTools []Tool
	JobDescription string
	CurrentState   string
}

// WithMessage appends a message and returns the context for chaining.
func (c ReasoningContext) WithMessage(msg CompletionMessage) ReasoningContext {
	c.Messages = append(c.Messages, msg)
	return c
}

// WithTools sets the available tools and returns the context for chaining.
func (c ReasoningContext) WithTools(tools []Tool) ReasoningContext {
	c.AvailableTools = tools
	return c
}

// WithJob sets the job description and returns the context for chaining.
func (c ReasoningContext) WithJob(description string) ReasoningContext {
	c.JobDescription = description
	return c
}

// PlannedAction is one step of an ActionPlan.
type PlannedAction struct {
	ToolName        string          `json:"tool_name"`
	Parameters      json.RawMessage `json:"parameters"`
	Reasoning       string          `json:"reasoning"`
	ExpectedOutcome string          `json:"expected_outcome"`
}

// ActionPlan is the structured output of Reasoning.Plan.
type ActionPlan struct {
	Goal              string          `json:"goal"`
	Actions           []PlannedAction `json:"actions"`
	EstimatedCost     *float64        `json:"estimated_cost,omitempty"`
	EstimatedTimeSecs *int64          `json:"estimated_time_secs,omitempty"`
	Confidence        float64         `json:"confidence"`
}

// ToolSelection is one tool call chosen by Reasoning.SelectTools.
type ToolSelection struct {
	ToolName     string
	Parameters   json.RawMessage
	Reasoning    string
	Alternatives []string
}

// SuccessEvaluation is the structured output of Reasoning.EvaluateSuccess.
type SuccessEvaluation struct {
	Success     bool     `json:"success"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Reasoning composes conversation state and available tools into LLM
// requests for planning, tool selection, success evaluation, and plain
// conversational response. It is the layer between the turn loop and the
// raw LLMProvider: the loop decides when to call each operation, Reasoning
// decides how to phrase the request and parse the result.
type Reasoning struct {
	llm   LLMProvider
	model string
}

// NewReasoning creates a reasoning engine over the given provider. model
// selects which model every request targets; an empty value uses the
// provider's own default.
func NewReasoning(llm LLMProvider, model string) *Reasoning {
	return &Reasoning{llm: llm, model: model}
}

func (r *Reasoning) complete(ctx context.Context, system string, messages []CompletionMessage, maxTokens int) (string, error) {
	stream, err := r.llm.Complete(ctx, &CompletionRequest{
		Model:     r.model,
		System:    system,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for chunk := range stream {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		content.WriteString(chunk.Text)
	}
	return content.String(), nil
}

// Plan generates an ActionPlan for the context's job description.
func (r *Reasoning) Plan(ctx context.Context, rc ReasoningContext) (*ActionPlan, error) {
	messages := rc.Messages
	if rc.JobDescription != "" {
		messages = append(messages, CompletionMessage{
			Role:    "user",
			Content: "Please create a plan to complete this job:\n\n" + rc.JobDescription,
		})
	}

	content, err := r.complete(ctx, buildPlanningPrompt(rc.AvailableTools), messages, 2048)
	if err != nil {
		return nil, err
	}

	var plan ActionPlan
	if err := json.Unmarshal([]byte(extractJSON(content)), &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &plan, nil
}

// SelectTools asks the provider which tool(s) to call next. Returns an
// empty slice (not an error) when no tools are available or the model
// chooses to call none.
func (r *Reasoning) SelectTools(ctx context.Context, rc ReasoningContext) ([]ToolSelection, error) {
	if len(rc.AvailableTools) == 0 {
		return nil, nil
	}

	stream, err := r.llm.Complete(ctx, &CompletionRequest{
		Model:     r.model,
		Messages:  rc.Messages,
		Tools:     rc.AvailableTools,
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, err
	}

	var reasoning strings.Builder
	var selections []ToolSelection
	for chunk := range stream {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		reasoning.WriteString(chunk.Text)
		if chunk.ToolCall != nil {
			selections = append(selections, ToolSelection{
				ToolName:   chunk.ToolCall.Name,
				Parameters: chunk.ToolCall.Input,
			})
		}
	}
	for i := range selections {
		selections[i].Reasoning = reasoning.String()
	}
	return selections, nil
}

// SelectTool is SelectTools narrowed to the first selection, for callers
// that only ever want one tool call at a time.
func (r *Reasoning) SelectTool(ctx context.Context, rc ReasoningContext) (*ToolSelection, error) {
	selections, err := r.SelectTools(ctx, rc)
	if err != nil || len(selections) == 0 {
		return nil, err
	}
	return &selections[0], nil
}

const evaluationSystemPrompt = `You are an evaluation assistant. Your job is to determine if a task was completed successfully.

Analyze the task description and the result, then provide:
1. Whether the task was successful (true/false)
2. A confidence score (0-1)
3. Detailed reasoning
4. Any issues found
5. Suggestions for improvement

Respond in JSON format:
{
    "success": true/false,
    "confidence": 0.0-1.0,
    "reasoning": "...",
    "issues": ["..."],
    "suggestions": ["..."]
}`

// EvaluateSuccess asks the provider to judge whether result satisfies the
// context's job description (or, absent one, just judges the result text
// on its own terms).
func (r *Reasoning) EvaluateSuccess(ctx context.Context, rc ReasoningContext, result string) (*SuccessEvaluation, error) {
	var prompt string
	if rc.JobDescription != "" {
		prompt = fmt.Sprintf("Task description:\n%s\n\nResult:\n%s", rc.JobDescription, result)
	} else {
		prompt = "Result to evaluate:\n" + result
	}

	content, err := r.complete(ctx, evaluationSystemPrompt, []CompletionMessage{{Role: "user", Content: prompt}}, 1024)
	if err != nil {
		return nil, err
	}

	var eval SuccessEvaluation
	if err := json.Unmarshal([]byte(extractJSON(content)), &eval); err != nil {
		return nil, fmt.Errorf("parse evaluation: %w", err)
	}
	return &eval, nil
}

const conversationSystemPrompt = `You are a helpful AI agent assistant. You help users with tasks by:
1. Understanding their requests clearly
2. Asking clarifying questions when needed
3. Providing accurate, helpful responses
4. Being honest about limitations

Be concise but thorough. If you're unsure, say so.`

// Respond generates a plain conversational reply to the context's messages,
// with no tool selection or structured output involved.
func (r *Reasoning) Respond(ctx context.Context, rc ReasoningContext) (string, error) {
	return r.complete(ctx, conversationSystemPrompt, rc.Messages, 2048)
}

func buildPlanningPrompt(tools []Tool) string {
	toolsDesc := "No tools available."
	if len(tools) > 0 {
		lines := make([]string, 0, len(tools))
		for _, t := range tools {
			lines = append(lines, fmt.Sprintf("- %s: %s", t.Name(), t.Description()))
		}
		toolsDesc = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`You are a planning assistant for an autonomous agent. Your job is to create detailed, actionable plans.

Available tools:
%s

When creating a plan:
1. Break down the goal into specific, achievable steps
2. Select the most appropriate tool for each step
3. Consider dependencies between steps
4. Estimate costs and time realistically
5. Identify potential failure points

Respond with a JSON plan in this format:
{
    "goal": "Clear statement of the goal",
    "actions": [
        {
            "tool_name": "tool_to_use",
            "parameters": {},
            "reasoning": "Why this action",
            "expected_outcome": "What should happen"
        }
    ],
    "estimated_cost": 0.0,
    "estimated_time_secs": 0,
    "confidence": 0.0-1.0
}`, toolsDesc)
}

// extractJSON finds the first top-level {...} object in text, tolerating
// surrounding prose. Returns text unchanged if no braces are found.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || start >= end {
		return text
	}
	return text[start : end+1]
}
