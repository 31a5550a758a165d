package agent

import (
	"context"
	"testing"

	"github.com/coreflow/agentruntime/pkg/models"
)

func newTestController(t *testing.T, responses [][]CompletionChunk) (*SubmissionController, *loopMemoryStore) {
	t.Helper()
	provider := &loopTestProvider{responses: responses}
	store := newLoopMemoryStore()
	registry := NewToolRegistry()
	loop := NewAgenticLoop(provider, registry, store, DefaultLoopConfig())

	approval := NewApprovalChecker(DefaultApprovalPolicy())
	approval.SetStore(NewMemoryApprovalStore())

	return NewSubmissionController(loop, store, approval, provider, ""), store
}

func TestSubmissionController_UserInputReturnsResponse(t *testing.T) {
	ctrl, _ := newTestController(t, [][]CompletionChunk{
		{{Text: "hello there", Done: true}},
	})
	session := &models.Session{ID: "thread-1", Channel: models.ChannelCLI}

	result, err := ctrl.Process(context.Background(), session, UserInput("hi"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Kind != SubmissionResultResponse || result.Content != "hello there" {
		t.Errorf("Process() = %+v, want response %q", result, "hello there")
	}
}

func TestSubmissionController_InterruptWithoutRunningTurnIsOK(t *testing.T) {
	ctrl, _ := newTestController(t, nil)
	session := &models.Session{ID: "thread-2", Channel: models.ChannelCLI}

	result, err := ctrl.Process(context.Background(), session, Interrupt())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Kind != SubmissionResultOK {
		t.Errorf("Process(Interrupt) = %+v, want ok", result)
	}
}

func TestSubmissionController_UndoWithNoCheckpointsErrors(t *testing.T) {
	ctrl, _ := newTestController(t, nil)
	session := &models.Session{ID: "thread-3", Channel: models.ChannelCLI}

	result, err := ctrl.Process(context.Background(), session, Undo())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Kind != SubmissionResultError {
		t.Errorf("Process(Undo) = %+v, want error", result)
	}
}

func TestSubmissionController_UndoThenRedo(t *testing.T) {
	ctrl, _ := newTestController(t, [][]CompletionChunk{
		{{Text: "first turn", Done: true}},
	})
	session := &models.Session{ID: "thread-4", Channel: models.ChannelCLI}

	if _, err := ctrl.Process(context.Background(), session, UserInput("go")); err != nil {
		t.Fatalf("Process(UserInput) error = %v", err)
	}

	undo, err := ctrl.Process(context.Background(), session, Undo())
	if err != nil || undo.Kind != SubmissionResultOK {
		t.Fatalf("Process(Undo) = %+v, err=%v", undo, err)
	}

	redo, err := ctrl.Process(context.Background(), session, Redo())
	if err != nil || redo.Kind != SubmissionResultOK {
		t.Fatalf("Process(Redo) = %+v, err=%v", redo, err)
	}
}

func TestSubmissionController_ClearResetsCheckpoints(t *testing.T) {
	ctrl, _ := newTestController(t, [][]CompletionChunk{
		{{Text: "turn", Done: true}},
	})
	session := &models.Session{ID: "thread-5", Channel: models.ChannelCLI}

	if _, err := ctrl.Process(context.Background(), session, UserInput("go")); err != nil {
		t.Fatalf("Process(UserInput) error = %v", err)
	}
	if _, err := ctrl.Process(context.Background(), session, Clear()); err != nil {
		t.Fatalf("Process(Clear) error = %v", err)
	}

	result, err := ctrl.Process(context.Background(), session, Undo())
	if err != nil {
		t.Fatalf("Process(Undo) error = %v", err)
	}
	if result.Kind != SubmissionResultError {
		t.Errorf("Process(Undo) after Clear = %+v, want error", result)
	}
}

func TestSubmissionController_CompactWithEmptyHistoryIsNoop(t *testing.T) {
	ctrl, _ := newTestController(t, nil)
	session := &models.Session{ID: "thread-6", Channel: models.ChannelCLI}

	result, err := ctrl.Process(context.Background(), session, Compact())
	if err != nil {
		t.Fatalf("Process(Compact) error = %v", err)
	}
	if result.Kind != SubmissionResultOK {
		t.Errorf("Process(Compact) = %+v, want ok", result)
	}
}

func TestSubmissionController_UnknownKindReturnsError(t *testing.T) {
	ctrl, _ := newTestController(t, nil)
	session := &models.Session{ID: "thread-7", Channel: models.ChannelCLI}

	result, err := ctrl.Process(context.Background(), session, &Submission{Kind: "bogus"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Kind != SubmissionResultError {
		t.Errorf("Process(bogus) = %+v, want error", result)
	}
}
