// Package wasmtool adapts WASM-hosted tools to the agent.Tool contract.
//
// No WASM runtime (wazero, wasmtime-go, wasmer-go) is linked here: none
// appears anywhere in the dependency surface this module draws on, and the
// host ABI's wire-level details (module instantiation, memory layout,
// function imports) are out of scope for this package. What belongs here
// is the host side of the capability contract: a module exports
// execute/schema/description, the host exposes http_request/log/
// secret_exists, and secrets never reach the module's memory directly.
// Wiring an actual engine means implementing Module against its call
// convention and registering the result with a ToolRegistry.
package wasmtool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coreflow/agentruntime/internal/agent"
)

// Module is the contract a WASM-hosted tool must satisfy, mirroring the
// host ABI: execute(request) -> response, schema() -> string,
// description() -> string. An engine-backed implementation marshals
// Execute's params into the module's linear memory and unmarshals its
// return value back out; this package never sees that detail.
type Module interface {
	Describe() string
	SchemaJSON() string
	Invoke(ctx context.Context, request json.RawMessage) (json.RawMessage, error)
}

// Host is the capability surface the runtime exposes to a Module during
// Invoke. A real engine binds these as WASM host imports; secrets are
// injected by the host as already-resolved values (e.g. bearer tokens)
// and are never materialized inside the module's own memory.
type Host interface {
	HTTPRequest(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, int, error)
	Log(level, msg string)
	SecretExists(name string) bool
}

// Capabilities is the set of host resources a module declares at
// registration time: which outbound hosts it may reach and which secret
// names it may ask the host to resolve. The registry checks these before
// every call; the module itself never sees secret values.
type Capabilities struct {
	AllowedHosts      []string
	AllowedSecrets    []string
	RequiresApproval  bool
	RequiresSanitize  bool
	EstimatedDuration time.Duration
}

// Tool wraps a Module with a name and its declared Capabilities, exposing
// it to a ToolRegistry as an ordinary agent.Tool.
type Tool struct {
	name string
	mod  Module
	caps Capabilities
}

// New wraps mod as a named agent.Tool using the given capability
// declaration. name must be unique within whatever registry it is
// registered with.
func New(name string, mod Module, caps Capabilities) *Tool {
	return &Tool{name: name, mod: mod, caps: caps}
}

func (t *Tool) Name() string { return t.name }

func (t *Tool) Description() string { return t.mod.Describe() }

func (t *Tool) Schema() json.RawMessage {
	schema := t.mod.SchemaJSON()
	if schema == "" {
		return json.RawMessage(`{"type":"object"}`)
	}
	return json.RawMessage(schema)
}

// Execute invokes the module. The host-capability values (HTTP, logging,
// secret lookup) are supplied to modules through a Host bound at engine
// construction time, not through this call; Tool only carries the
// declared Capabilities used to gate what the host will permit.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	out, err := t.mod.Invoke(ctx, params)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("wasm tool %q failed: %v", t.name, err), IsError: true}, nil
	}
	return &agent.ToolResult{Content: string(out)}, nil
}

// RequiresApproval satisfies agent.ApprovalAware.
func (t *Tool) RequiresApproval() bool { return t.caps.RequiresApproval }

// RequiresSanitization satisfies agent.SanitizationAware: WASM output is
// always treated as untrusted, same as MCP-sourced results.
func (t *Tool) RequiresSanitization() bool { return true }

// EstimatedDuration satisfies agent.DurationEstimator.
func (t *Tool) EstimatedDuration(params json.RawMessage) time.Duration {
	if t.caps.EstimatedDuration > 0 {
		return t.caps.EstimatedDuration
	}
	return agent.DefaultEstimatedDuration
}

// Source satisfies agent.SourceTagged.
func (t *Tool) Source() agent.ToolSource { return agent.ToolSourceWASM }

// AllowsHost reports whether the module's declared capabilities permit
// reaching the given host. Engines should consult this before honoring
// an http_request host call.
func (c Capabilities) AllowsHost(host string) bool {
	for _, h := range c.AllowedHosts {
		if h == host {
			return true
		}
	}
	return false
}

// AllowsSecret reports whether the module's declared capabilities permit
// resolving the given secret name. Engines should consult this before
// honoring a secret_exists or secret-backed host call.
func (c Capabilities) AllowsSecret(name string) bool {
	for _, s := range c.AllowedSecrets {
		if s == name {
			return true
		}
	}
	return false
}

var (
	_ agent.Tool              = (*Tool)(nil)
	_ agent.ApprovalAware     = (*Tool)(nil)
	_ agent.SanitizationAware = (*Tool)(nil)
	_ agent.DurationEstimator = (*Tool)(nil)
	_ agent.SourceTagged      = (*Tool)(nil)
)
