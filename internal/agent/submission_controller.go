package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreflow/agentruntime/internal/compaction"
	"github.com/coreflow/agentruntime/pkg/models"
	"github.com/google/uuid"
)

// llmSummarizer adapts an LLMProvider into a compaction.Summarizer using a
// single non-streaming completion request.
type llmSummarizer struct {
	provider LLMProvider
	model    string
}

func (s *llmSummarizer) GenerateSummary(ctx context.Context, messages []*compaction.Message, _ *compaction.SummarizationConfig) (string, error) {
	prompt := compaction.FormatMessagesForSummary(messages)
	stream, err := s.provider.Complete(ctx, &CompletionRequest{
		Model: s.model,
		Messages: []CompletionMessage{
			{Role: "user", Content: "Summarize the following conversation concisely, preserving facts and decisions:\n\n" + prompt},
		},
	})
	if err != nil {
		return "", err
	}

	var summary string
	for chunk := range stream {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		summary += chunk.Text
	}
	return summary, nil
}

// threadState tracks per-thread turn control: the cancellation function for
// the in-flight turn (if any), and the undo/redo checkpoint stacks.
type threadState struct {
	mu         sync.Mutex
	cancel     context.CancelFunc
	checkpoint []*Checkpoint
	undone     []*Checkpoint
}

// SubmissionController serializes Submission processing per thread and
// implements the control commands (Interrupt, Compact, Undo, Redo, Resume,
// Clear, SwitchThread, NewThread) on top of an AgenticLoop.
type SubmissionController struct {
	loop     *AgenticLoop
	threads  ThreadStore
	approval *ApprovalChecker
	summer   *llmSummarizer
	plugins  *PluginRegistry

	mu     sync.Mutex
	states map[string]*threadState
}

// NewSubmissionController creates a controller driving the given loop.
// summaryModel selects the model used for Compact's summarization request;
// an empty value uses the loop's default model. Every turn emits run-level
// AgentEvents (run.started/run.finished/run.error) to a plugin registry that
// callers populate with Use, e.g. a TracePlugin for JSONL replay.
func NewSubmissionController(loop *AgenticLoop, threads ThreadStore, approval *ApprovalChecker, provider LLMProvider, summaryModel string) *SubmissionController {
	return &SubmissionController{
		loop:     loop,
		threads:  threads,
		approval: approval,
		summer:   &llmSummarizer{provider: provider, model: summaryModel},
		plugins:  NewPluginRegistry(),
		states:   make(map[string]*threadState),
	}
}

// Use registers a plugin to observe AgentEvents emitted for every turn.
func (c *SubmissionController) Use(p Plugin) {
	c.plugins.Use(p)
}

func (c *SubmissionController) stateFor(threadID string) *threadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[threadID]
	if !ok {
		st = &threadState{}
		c.states[threadID] = st
	}
	return st
}

// Process handles one Submission against the named thread. UserInput runs a
// full turn through the loop and collects the final response text; every
// other kind is a control command handled synchronously.
func (c *SubmissionController) Process(ctx context.Context, session *models.Session, sub *Submission) (*SubmissionResult, error) {
	if sub == nil {
		return nil, fmt.Errorf("submission is nil")
	}

	switch sub.Kind {
	case SubmissionUserInput:
		return c.processUserInput(ctx, session, sub)
	case SubmissionExecApproval:
		return c.processApproval(ctx, sub)
	case SubmissionInterrupt:
		return c.processInterrupt(session), nil
	case SubmissionCompact:
		return c.processCompact(ctx, session)
	case SubmissionUndo:
		return c.processUndo(session), nil
	case SubmissionRedo:
		return c.processRedo(session), nil
	case SubmissionResume:
		return OKResultWithMessage("resumed from checkpoint " + sub.CheckpointID), nil
	case SubmissionClear:
		return c.processClear(ctx, session), nil
	case SubmissionSwitchThread, SubmissionNewThread:
		return OKResult(), nil
	default:
		return ErrorResult("unknown submission kind"), nil
	}
}

func (c *SubmissionController) processUserInput(ctx context.Context, session *models.Session, sub *Submission) (*SubmissionResult, error) {
	st := c.stateFor(session.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	turnCtx, cancel := context.WithCancel(ctx)
	st.cancel = cancel
	defer func() { st.cancel = nil }()

	emitter := NewEventEmitterWithPlugins(session.ID, c.plugins)
	emitter.RunStarted(turnCtx)

	if c.threads != nil {
		if history, err := c.threads.GetHistory(ctx, session.ID, 0); err == nil {
			st.checkpoint = append(st.checkpoint, &Checkpoint{
				ID:       uuid.NewString(),
				ThreadID: session.ID,
				Messages: len(history),
			})
			st.undone = nil
		}
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Channel:   session.Channel,
		Direction: models.DirectionInbound,
		Role:      models.RoleUser,
		Content:   sub.Content,
		CreatedAt: time.Now(),
	}

	chunks, err := c.loop.Run(turnCtx, session, msg)
	if err != nil {
		emitter.RunError(turnCtx, err, false)
		return ErrorResult(err.Error()), nil
	}

	var response string
	for chunk := range chunks {
		if chunk.Error != nil {
			if turnCtx.Err() != nil {
				emitter.RunCancelled(turnCtx)
				return InterruptedResult(), nil
			}
			emitter.RunError(turnCtx, chunk.Error, true)
			return ErrorResult(chunk.Error.Error()), nil
		}
		response += chunk.Text
		emitter.ModelDelta(turnCtx, chunk.Text)
	}

	if turnCtx.Err() != nil {
		emitter.RunCancelled(turnCtx)
		return InterruptedResult(), nil
	}
	emitter.RunFinished(turnCtx, &models.RunStats{})
	return ResponseResult(response), nil
}

func (c *SubmissionController) processApproval(ctx context.Context, sub *Submission) (*SubmissionResult, error) {
	if c.approval == nil {
		return ErrorResult("no approval checker configured"), nil
	}

	req, err := c.approval.GetRequest(ctx, sub.RequestID)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	if sub.Approved {
		err = c.approval.Approve(ctx, sub.RequestID, "submission")
	} else {
		err = c.approval.Deny(ctx, sub.RequestID, "submission")
	}
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	if sub.Always && sub.Approved && req != nil {
		c.approval.AllowTool(req.AgentID, req.ToolName)
	}
	return OKResult(), nil
}

func (c *SubmissionController) processInterrupt(session *models.Session) *SubmissionResult {
	st := c.stateFor(session.ID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cancel != nil {
		st.cancel()
	}
	return OKResult()
}

func (c *SubmissionController) processCompact(ctx context.Context, session *models.Session) (*SubmissionResult, error) {
	if c.threads == nil {
		return ErrorResult("no thread store configured"), nil
	}
	history, err := c.threads.GetHistory(ctx, session.ID, 0)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}
	if len(history) == 0 {
		return OKResultWithMessage("nothing to compact"), nil
	}

	msgs := make([]*compaction.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, &compaction.Message{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.CreatedAt.Unix(),
		})
	}

	summary, err := compaction.SummarizeWithFallback(ctx, msgs, c.summer, compaction.DefaultSummarizationConfig())
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	if err := c.threads.AppendMessage(ctx, session.ID, &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Channel:   session.Channel,
		Direction: models.DirectionOutbound,
		Role:      models.RoleSystem,
		Content:   summary,
		CreatedAt: time.Now(),
	}); err != nil {
		return ErrorResult(err.Error()), nil
	}

	return OKResultWithMessage("compacted " + fmt.Sprint(len(history)) + " messages"), nil
}

func (c *SubmissionController) processUndo(session *models.Session) *SubmissionResult {
	st := c.stateFor(session.ID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.checkpoint) == 0 {
		return ErrorResult("nothing to undo")
	}
	last := st.checkpoint[len(st.checkpoint)-1]
	st.checkpoint = st.checkpoint[:len(st.checkpoint)-1]
	st.undone = append(st.undone, last)
	return OKResultWithMessage("undid to checkpoint " + last.ID)
}

func (c *SubmissionController) processRedo(session *models.Session) *SubmissionResult {
	st := c.stateFor(session.ID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.undone) == 0 {
		return ErrorResult("nothing to redo")
	}
	last := st.undone[len(st.undone)-1]
	st.undone = st.undone[:len(st.undone)-1]
	st.checkpoint = append(st.checkpoint, last)
	return OKResultWithMessage("redid to checkpoint " + last.ID)
}

func (c *SubmissionController) processClear(ctx context.Context, session *models.Session) *SubmissionResult {
	st := c.stateFor(session.ID)
	st.mu.Lock()
	st.checkpoint = nil
	st.undone = nil
	st.mu.Unlock()
	return OKResult()
}
