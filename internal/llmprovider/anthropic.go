// Package llmprovider adapts external LLM APIs to the agent.LLMProvider
// interface. Only the Anthropic adapter is wired into the core runtime;
// other backends live behind the same interface and are a config choice,
// not a compile-time dependency (see agent.LLMProvider).
package llmprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/coreflow/agentruntime/internal/agent"
	"github.com/coreflow/agentruntime/internal/llmprovider/toolconv"
	"github.com/coreflow/agentruntime/pkg/models"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-20250514"
	defaultAnthropicMaxTokens = 4096
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// AnthropicProvider implements agent.LLMProvider against the Anthropic
// Messages API. It streams text and tool-call deltas as they arrive and
// does not retry failed requests; retry policy belongs to the caller.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicProvider builds an AnthropicProvider from the given config.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmprovider: anthropic api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: model,
	}, nil
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// SupportsTools reports that Anthropic's Messages API supports tool use.
func (p *AnthropicProvider) SupportsTools() bool { return true }

// Models returns the Claude models this adapter has been exercised against.
func (p *AnthropicProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextSize: 200000, SupportsVision: true},
	}
}

// Complete sends req to Anthropic and streams the response back as
// CompletionChunks. The returned channel is closed once the stream ends,
// whether it ends in a final chunk or an error chunk.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, &agent.LLMError{Kind: agent.LLMErrorInvalidResponse, Provider: p.Name(), Model: model, Cause: err}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := toolconv.ToAnthropicTools(req.Tools)
		if err != nil {
			return nil, &agent.LLMError{Kind: agent.LLMErrorInvalidResponse, Provider: p.Name(), Model: model, Cause: err}
		}
		params.Tools = tools
	}
	if req.EnableThinking {
		budget := int64(req.ThinkingBudgetTokens)
		if budget <= 0 {
			budget = 4096
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	out := make(chan *agent.CompletionChunk, 16)
	go p.pump(stream, model, out)
	return out, nil
}

// maxEmptyStreamEvents bounds how many consecutive no-op events are
// tolerated before a stream is treated as malformed.
const maxEmptyStreamEvents = 50

// pump drains the Anthropic event stream into out, translating each
// server-sent event into a CompletionChunk. It owns closing out.
func (p *AnthropicProvider) pump(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], model string, out chan<- *agent.CompletionChunk) {
	defer close(out)

	var currentTool *models.ToolCall
	var toolInput []byte
	var inputTokens, outputTokens int
	inThinking := false
	emptyEvents := 0

	for stream.Next() {
		event := stream.Current()
		processed := true

		switch event.Type {
		case "message_start":
			if start := event.AsMessageStart(); start.Message.Usage.InputTokens > 0 {
				inputTokens = int(start.Message.Usage.InputTokens)
			}

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			switch block.Type {
			case "thinking":
				inThinking = true
				out <- &agent.CompletionChunk{ThinkingStart: true}
			case "tool_use":
				toolUse := block.AsToolUse()
				currentTool = &models.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				toolInput = toolInput[:0]
			default:
				processed = false
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- &agent.CompletionChunk{Text: delta.Text}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					out <- &agent.CompletionChunk{Thinking: delta.Thinking}
				}
			case "input_json_delta":
				toolInput = append(toolInput, delta.PartialJSON...)
			default:
				processed = false
			}

		case "content_block_stop":
			switch {
			case inThinking:
				out <- &agent.CompletionChunk{ThinkingEnd: true}
				inThinking = false
			case currentTool != nil:
				if len(toolInput) == 0 {
					toolInput = []byte("{}")
				}
				currentTool.Input = json.RawMessage(toolInput)
				out <- &agent.CompletionChunk{ToolCall: currentTool}
				currentTool = nil
			default:
				processed = false
			}

		case "message_delta":
			if delta := event.AsMessageDelta(); delta.Usage.OutputTokens > 0 {
				outputTokens = int(delta.Usage.OutputTokens)
			}

		case "message_stop":
			out <- &agent.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
			return

		case "error":
			out <- &agent.CompletionChunk{Error: &agent.LLMError{
				Kind: agent.LLMErrorInvalidResponse, Provider: p.Name(), Model: model,
				Cause: errors.New("anthropic stream error event"),
			}}
			return

		default:
			processed = false
		}

		if processed {
			emptyEvents = 0
			continue
		}
		emptyEvents++
		if emptyEvents >= maxEmptyStreamEvents {
			out <- &agent.CompletionChunk{Error: &agent.LLMError{
				Kind: agent.LLMErrorInvalidResponse, Provider: p.Name(), Model: model,
				Cause: fmt.Errorf("stream appears malformed: %d consecutive empty events", emptyEvents),
			}}
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- &agent.CompletionChunk{Error: classifyStreamError(p.Name(), model, err)}
	}
}

// classifyStreamError maps a transport/SDK error to the LLMError taxonomy
// the turn loop understands. It does not decide whether to retry.
func classifyStreamError(provider, model string, err error) *agent.LLMError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return &agent.LLMError{Kind: agent.LLMErrorRateLimited, Provider: provider, Model: model, Cause: err}
		case 408:
			return &agent.LLMError{Kind: agent.LLMErrorTimeout, Provider: provider, Model: model, Cause: err}
		default:
			return &agent.LLMError{Kind: agent.LLMErrorProvider, Provider: provider, Model: model, Cause: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &agent.LLMError{Kind: agent.LLMErrorTimeout, Provider: provider, Model: model, Cause: err}
	}
	return &agent.LLMError{Kind: agent.LLMErrorProvider, Provider: provider, Model: model, Cause: err}
}

// convertMessages translates the runtime's provider-agnostic message shape
// into Anthropic's MessageParam wire format, including tool calls/results.
func convertMessages(in []agent.CompletionMessage) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case "user", "tool":
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tr := range m.ToolResults {
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case "assistant":
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if len(tc.Input) > 0 {
					if err := json.Unmarshal(tc.Input, &input); err != nil {
						return nil, fmt.Errorf("tool call %s: invalid input json: %w", tc.ID, err)
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

var _ agent.LLMProvider = (*AnthropicProvider)(nil)
