package agent

// SubmissionKind identifies the variant of a Submission.
type SubmissionKind string

const (
	// SubmissionUserInput starts a new turn with user text.
	SubmissionUserInput SubmissionKind = "user_input"

	// SubmissionExecApproval responds to a pending ApprovalRequest.
	SubmissionExecApproval SubmissionKind = "exec_approval"

	// SubmissionInterrupt cancels the in-flight turn and returns to Idle.
	SubmissionInterrupt SubmissionKind = "interrupt"

	// SubmissionCompact requests context compaction up to the current checkpoint.
	SubmissionCompact SubmissionKind = "compact"

	// SubmissionUndo rewinds the thread to its previous checkpoint.
	SubmissionUndo SubmissionKind = "undo"

	// SubmissionRedo reapplies a previously undone turn, if available.
	SubmissionRedo SubmissionKind = "redo"

	// SubmissionResume resumes a thread from a specific checkpoint.
	SubmissionResume SubmissionKind = "resume"

	// SubmissionClear discards the thread's history and starts fresh.
	SubmissionClear SubmissionKind = "clear"

	// SubmissionSwitchThread moves the loop to a different thread.
	SubmissionSwitchThread SubmissionKind = "switch_thread"

	// SubmissionNewThread creates and switches to a new thread.
	SubmissionNewThread SubmissionKind = "new_thread"
)

// Submission is the input event the loop consumes. UserInput starts a new
// turn; every other kind is a control command accepted in any loop state
// and processed synchronously relative to the turn.
type Submission struct {
	Kind SubmissionKind `json:"kind"`

	// Content is the user message text, set for SubmissionUserInput.
	Content string `json:"content,omitempty"`

	// RequestID identifies the ApprovalRequest, set for SubmissionExecApproval
	// and SubmissionResume (as the checkpoint ID).
	RequestID string `json:"request_id,omitempty"`

	// Approved is the operator's decision, set for SubmissionExecApproval.
	Approved bool `json:"approved,omitempty"`

	// Always auto-approves the tool for the rest of the session, set for
	// SubmissionExecApproval.
	Always bool `json:"always,omitempty"`

	// CheckpointID identifies the checkpoint to resume from, set for
	// SubmissionResume.
	CheckpointID string `json:"checkpoint_id,omitempty"`

	// ThreadID identifies the target thread, set for SubmissionSwitchThread.
	ThreadID string `json:"thread_id,omitempty"`
}

// UserInput creates a submission that starts a new turn.
func UserInput(content string) *Submission {
	return &Submission{Kind: SubmissionUserInput, Content: content}
}

// Approval creates an ExecApproval submission.
func Approval(requestID string, approved bool) *Submission {
	return &Submission{Kind: SubmissionExecApproval, RequestID: requestID, Approved: approved}
}

// AlwaysApprove creates an ExecApproval submission that also whitelists the
// tool for the remainder of the session.
func AlwaysApprove(requestID string) *Submission {
	return &Submission{Kind: SubmissionExecApproval, RequestID: requestID, Approved: true, Always: true}
}

// Interrupt creates an Interrupt submission.
func Interrupt() *Submission { return &Submission{Kind: SubmissionInterrupt} }

// Compact creates a Compact submission.
func Compact() *Submission { return &Submission{Kind: SubmissionCompact} }

// Undo creates an Undo submission.
func Undo() *Submission { return &Submission{Kind: SubmissionUndo} }

// Redo creates a Redo submission.
func Redo() *Submission { return &Submission{Kind: SubmissionRedo} }

// Resume creates a Resume submission targeting the given checkpoint.
func Resume(checkpointID string) *Submission {
	return &Submission{Kind: SubmissionResume, CheckpointID: checkpointID}
}

// Clear creates a Clear submission.
func Clear() *Submission { return &Submission{Kind: SubmissionClear} }

// SwitchThread creates a SwitchThread submission.
func SwitchThread(threadID string) *Submission {
	return &Submission{Kind: SubmissionSwitchThread, ThreadID: threadID}
}

// NewThreadSubmission creates a NewThread submission.
func NewThreadSubmission() *Submission { return &Submission{Kind: SubmissionNewThread} }

// StartsTurn reports whether this submission begins a new turn. Only
// UserInput does; everything else is a control command.
func (s *Submission) StartsTurn() bool { return s.Kind == SubmissionUserInput }

// IsControl reports whether this submission is a control command, accepted
// in any loop state rather than being queued behind an in-flight turn.
func (s *Submission) IsControl() bool {
	switch s.Kind {
	case SubmissionInterrupt, SubmissionCompact, SubmissionUndo, SubmissionRedo,
		SubmissionClear, SubmissionNewThread:
		return true
	default:
		return false
	}
}

// SubmissionResultKind identifies the variant of a SubmissionResult.
type SubmissionResultKind string

const (
	// SubmissionResultResponse carries the turn's completed response text.
	SubmissionResultResponse SubmissionResultKind = "response"

	// SubmissionResultNeedApproval reports a pending ApprovalRequest.
	SubmissionResultNeedApproval SubmissionResultKind = "need_approval"

	// SubmissionResultOK reports a control command completed successfully.
	SubmissionResultOK SubmissionResultKind = "ok"

	// SubmissionResultError reports a failure processing the submission.
	SubmissionResultError SubmissionResultKind = "error"

	// SubmissionResultInterrupted reports the turn was cancelled mid-flight.
	SubmissionResultInterrupted SubmissionResultKind = "interrupted"
)

// SubmissionResult is returned after a Submission is processed.
type SubmissionResult struct {
	Kind SubmissionResultKind `json:"kind"`

	Content string `json:"content,omitempty"`

	RequestID   string `json:"request_id,omitempty"`
	ToolName    string `json:"tool_name,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`

	Message string `json:"message,omitempty"`
}

// ResponseResult creates a completed-turn result.
func ResponseResult(content string) *SubmissionResult {
	return &SubmissionResult{Kind: SubmissionResultResponse, Content: content}
}

// NeedApprovalResult creates a result reporting a pending approval request.
func NeedApprovalResult(requestID, toolName, description string, parameters any) *SubmissionResult {
	return &SubmissionResult{
		Kind:        SubmissionResultNeedApproval,
		RequestID:   requestID,
		ToolName:    toolName,
		Description: description,
		Parameters:  parameters,
	}
}

// OKResult creates a successful control-command result with no message.
func OKResult() *SubmissionResult { return &SubmissionResult{Kind: SubmissionResultOK} }

// OKResultWithMessage creates a successful control-command result carrying a message.
func OKResultWithMessage(message string) *SubmissionResult {
	return &SubmissionResult{Kind: SubmissionResultOK, Message: message}
}

// ErrorResult creates a failed-submission result.
func ErrorResult(message string) *SubmissionResult {
	return &SubmissionResult{Kind: SubmissionResultError, Message: message}
}

// InterruptedResult creates a result reporting the turn was interrupted.
func InterruptedResult() *SubmissionResult {
	return &SubmissionResult{Kind: SubmissionResultInterrupted}
}

// Checkpoint captures a thread's state at a point a turn can be undone or
// resumed to.
type Checkpoint struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	TurnID    string    `json:"turn_id"`
	Messages  int       `json:"messages"`
	ParentID  string    `json:"parent_id,omitempty"`
}
