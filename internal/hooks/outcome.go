package hooks

import (
	"context"
	"fmt"
	"time"
)

// HookOutcome is the result of a gated hook call: a hook can let a
// submission through unchanged, let it through with a modification
// applied, or reject it outright.
type HookOutcome struct {
	// Modified holds the replacement event payload when the hook
	// changed something (e.g. rewrote a message body). Nil means
	// "continue with event unchanged".
	Modified *Event

	// Rejected, if true, means the hook refused the event. Reason
	// explains why, and should be surfaced back to the submitter.
	Rejected bool
	Reason   string
}

// ContinueOutcome lets the event pass through unchanged.
func ContinueOutcome() HookOutcome { return HookOutcome{} }

// ModifiedOutcome lets the event pass through with a modified payload.
func ModifiedOutcome(event *Event) HookOutcome { return HookOutcome{Modified: event} }

// RejectOutcome refuses the event with a reason.
func RejectOutcome(reason string) HookOutcome { return HookOutcome{Rejected: true, Reason: reason} }

// GatedHandler is a handler that can modify or reject an event rather
// than merely observe it. BeforeInbound, BeforeToolCall and
// BeforeOutbound hook points use gated handlers; lifecycle and audit
// hook points use the fire-and-forget Handler instead.
type GatedHandler func(ctx context.Context, event *Event) (HookOutcome, error)

// GatedRegistration pairs a GatedHandler with its priority, timeout
// and fail-open behavior.
type GatedRegistration struct {
	ID       string
	Name     string
	Priority Priority
	Handler  GatedHandler

	// Timeout bounds how long the hook may run. Zero means no bound.
	Timeout time.Duration

	// FailOpen controls what happens when the hook times out or
	// panics: true continues the chain as if the hook had not fired,
	// false rejects the event.
	FailOpen bool
}

// GatedChain runs an ordered list of gated hooks against an event,
// short-circuiting on the first rejection and threading modifications
// through to subsequent hooks.
type GatedChain struct {
	registrations []*GatedRegistration
}

// NewGatedChain builds a chain from registrations, sorting by priority.
func NewGatedChain(regs ...*GatedRegistration) *GatedChain {
	c := &GatedChain{registrations: append([]*GatedRegistration(nil), regs...)}
	sortGatedByPriority(c.registrations)
	return c
}

func sortGatedByPriority(regs []*GatedRegistration) {
	for i := 1; i < len(regs); i++ {
		for j := i; j > 0 && regs[j].Priority < regs[j-1].Priority; j-- {
			regs[j], regs[j-1] = regs[j-1], regs[j]
		}
	}
}

// Run executes the chain in priority order. It returns the final
// (possibly modified) event, or an error if a hook rejected it.
func (c *GatedChain) Run(ctx context.Context, event *Event) (*Event, error) {
	current := event
	for _, reg := range c.registrations {
		outcome, err := c.runOne(ctx, reg, current)
		if err != nil {
			if reg.FailOpen {
				continue
			}
			return nil, fmt.Errorf("hook %q: %w", reg.Name, err)
		}
		if outcome.Rejected {
			return nil, fmt.Errorf("rejected by hook %q: %s", reg.Name, outcome.Reason)
		}
		if outcome.Modified != nil {
			current = outcome.Modified
		}
	}
	return current, nil
}

func (c *GatedChain) runOne(ctx context.Context, reg *GatedRegistration, event *Event) (outcome HookOutcome, err error) {
	runCtx := ctx
	cancel := func() {}
	if reg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, reg.Timeout)
	}
	defer cancel()

	type result struct {
		outcome HookOutcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("hook panic: %v", p)}
			}
		}()
		o, e := reg.Handler(runCtx, event)
		done <- result{outcome: o, err: e}
	}()

	select {
	case r := <-done:
		return r.outcome, r.err
	case <-runCtx.Done():
		return HookOutcome{}, fmt.Errorf("timed out after %s", reg.Timeout)
	}
}
