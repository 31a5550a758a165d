package agent

import (
	"encoding/json"
	"time"
)

// ToolSource identifies where a Tool implementation came from. The
// dispatcher uses it for logging and for default duration estimates.
type ToolSource string

const (
	ToolSourceBuiltin ToolSource = "builtin"
	ToolSourceMCP      ToolSource = "mcp"
	ToolSourceWASM     ToolSource = "wasm"
)

const (
	// MaxToolNameLength bounds tool names accepted by the dispatcher.
	MaxToolNameLength = 256

	// MaxToolParamsSize bounds the serialized size of tool call
	// parameters accepted by the dispatcher, in bytes.
	MaxToolParamsSize = 10 * 1024 * 1024

	// DefaultEstimatedDuration is used for tools that don't advertise
	// their own estimate.
	DefaultEstimatedDuration = 5 * time.Second

	// MinDispatchDeadline is the floor for a tool call's dispatch
	// deadline regardless of its estimated duration.
	MinDispatchDeadline = 30 * time.Second
)

// ApprovalAware is implemented by tools that need to declare whether
// they require human approval before execution. Tools that don't
// implement it are treated as never requiring approval.
type ApprovalAware interface {
	RequiresApproval() bool
}

// SanitizationAware is implemented by tools whose results should
// always be run through the output sanitizer regardless of the
// session's default policy.
type SanitizationAware interface {
	RequiresSanitization() bool
}

// DurationEstimator is implemented by tools that can estimate how
// long a call will take given its parameters, used to size the
// dispatch deadline.
type DurationEstimator interface {
	EstimatedDuration(params json.RawMessage) time.Duration
}

// SourceTagged is implemented by tools that know which registry
// category they came from.
type SourceTagged interface {
	Source() ToolSource
}

// ToolDefinition is a resolved, read-only descriptor of a registered
// tool, combining its static contract with the optional capability
// interfaces above. Dispatchers build one of these per call instead
// of repeatedly type-asserting the underlying Tool.
type ToolDefinition struct {
	Tool              Tool
	Source            ToolSource
	RequiresApproval  bool
	RequiresSanitize  bool
	EstimateDuration  func(params json.RawMessage) time.Duration
}

// DescribeTool resolves a ToolDefinition from a Tool, consulting the
// optional capability interfaces it may implement.
func DescribeTool(t Tool) ToolDefinition {
	def := ToolDefinition{
		Tool:   t,
		Source: ToolSourceBuiltin,
	}

	if aware, ok := t.(ApprovalAware); ok {
		def.RequiresApproval = aware.RequiresApproval()
	}
	if aware, ok := t.(SanitizationAware); ok {
		def.RequiresSanitize = aware.RequiresSanitization()
	}
	if est, ok := t.(DurationEstimator); ok {
		def.EstimateDuration = est.EstimatedDuration
	}
	if src, ok := t.(SourceTagged); ok {
		def.Source = src.Source()
	}

	return def
}

// DispatchDeadline computes the timeout budget for a single tool call:
// three times its estimated duration, floored at MinDispatchDeadline.
func (d ToolDefinition) DispatchDeadline(params json.RawMessage) time.Duration {
	estimate := DefaultEstimatedDuration
	if d.EstimateDuration != nil {
		estimate = d.EstimateDuration(params)
	}
	deadline := estimate * 3
	if deadline < MinDispatchDeadline {
		deadline = MinDispatchDeadline
	}
	return deadline
}
