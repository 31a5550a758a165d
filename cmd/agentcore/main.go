// Command agentcore runs the agent runtime against the local terminal.
//
// Usage:
//
//	agentcore -model claude-sonnet-4-20250514 -workspace .
//
// ANTHROPIC_API_KEY must be set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coreflow/agentruntime/internal/agent"
	"github.com/coreflow/agentruntime/internal/channels"
	"github.com/coreflow/agentruntime/internal/channels/cli"
	"github.com/coreflow/agentruntime/internal/llmprovider"
	"github.com/coreflow/agentruntime/internal/workspace"
	"github.com/coreflow/agentruntime/pkg/models"
	"github.com/google/uuid"
)

func main() {
	var (
		model        = flag.String("model", "", "model override (defaults to the provider's own default)")
		workspaceDir = flag.String("workspace", ".", "workspace directory containing AGENTS.md/SOUL.md/etc.")
		maxTokens    = flag.Int("max-tokens", 4096, "maximum tokens per completion")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	provider, err := buildProvider(*model)
	if err != nil {
		logger.Error("provider setup failed", "error", err)
		os.Exit(1)
	}

	ws, err := workspace.LoadWorkspace(workspace.DefaultLoaderConfig(*workspaceDir))
	if err != nil {
		logger.Error("workspace load failed", "error", err)
		os.Exit(1)
	}

	config := agent.DefaultLoopConfig()
	config.MaxTokens = *maxTokens

	threads := newMemoryThreadStore()
	runtime := agent.NewAgenticRuntime(provider, threads, config)
	if *model != "" {
		runtime.SetDefaultModel(*model)
	}
	runtime.SetSystemPrompt(ws.SystemPromptContext())

	approval := agent.NewApprovalChecker(agent.DefaultApprovalPolicy())
	approval.SetStore(agent.NewMemoryApprovalStore())

	controller := agent.NewSubmissionController(runtime.Loop(), threads, approval, provider, *model)
	if trace, err := agent.NewTracePluginFile("agentcore-trace.jsonl", uuid.NewString()); err == nil {
		controller.Use(trace)
	} else {
		logger.Warn("trace plugin disabled", "error", err)
	}

	adapter := cli.New(cli.Config{In: os.Stdin, Out: os.Stdout}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := adapter.Start(ctx); err != nil {
		logger.Error("cli adapter start failed", "error", err)
		os.Exit(1)
	}

	runConversation(ctx, controller, adapter)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	_ = adapter.Stop(stopCtx)
}

// submissionForLine maps a leading slash-command to a control Submission;
// anything else is ordinary user input that starts a turn.
func submissionForLine(content string) *agent.Submission {
	switch strings.TrimSpace(content) {
	case "/undo":
		return agent.Undo()
	case "/redo":
		return agent.Redo()
	case "/compact":
		return agent.Compact()
	case "/clear":
		return agent.Clear()
	default:
		return agent.UserInput(content)
	}
}

// runConversation reads inbound messages from the adapter, drives them
// through the submission controller, and forwards responses back to the
// adapter until the input stream closes or the context is canceled.
func runConversation(ctx context.Context, controller *agent.SubmissionController, adapter *cli.Adapter) {
	session := &models.Session{
		ID:        uuid.NewString(),
		Channel:   models.ChannelCLI,
		Key:       "cli-local",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-adapter.Messages():
			if !ok {
				return
			}
			msg.SessionID = session.ID

			result, err := controller.Process(ctx, session, submissionForLine(msg.Content))
			if err != nil {
				fmt.Fprintf(os.Stderr, "agent error: %v\n", err)
				continue
			}

			content := result.Content
			if content == "" {
				content = result.Message
			}
			if content == "" {
				continue
			}

			_ = adapter.Send(ctx, &models.Message{
				SessionID: session.ID,
				Channel:   models.ChannelCLI,
				Direction: models.DirectionOutbound,
				Role:      models.RoleAssistant,
				Content:   content,
			})
		}
	}
}

func buildProvider(model string) (agent.LLMProvider, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	return llmprovider.NewAnthropicProvider(llmprovider.AnthropicConfig{APIKey: apiKey, DefaultModel: model})
}

// memoryThreadStore is an in-process ThreadStore for single-run CLI sessions;
// history does not outlive the process.
type memoryThreadStore struct {
	mu       sync.Mutex
	messages map[string][]*models.Message
}

func newMemoryThreadStore() *memoryThreadStore {
	return &memoryThreadStore{messages: make(map[string][]*models.Message)}
}

func (s *memoryThreadStore) GetHistory(ctx context.Context, threadID string, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.messages[threadID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]*models.Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *memoryThreadStore) AppendMessage(ctx context.Context, threadID string, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[threadID] = append(s.messages[threadID], msg)
	return nil
}

var _ channels.Adapter = (*cli.Adapter)(nil)
