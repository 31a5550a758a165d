// Package bundled provides declarative hook bundles: rule hooks and
// outbound webhook hooks loaded from JSON, plus the built-in audit
// log hook registered at startup.
package bundled

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/coreflow/agentruntime/internal/hooks"
)

const (
	DefaultRulePriority      = hooks.Priority(100)
	DefaultWebhookPriority   = hooks.Priority(300)
	DefaultWebhookTimeoutMS  = 2000
	MaxHookTimeoutMS         = 30_000
	AuditLogHookName         = "builtin.audit_log"
	AuditLogHookPriority     = hooks.PriorityHigh // 25
)

// Config is a declarative hook bundle: a set of content/tool/session
// rules plus fire-and-forget webhook notifications.
type Config struct {
	Rules             []RuleConfig            `json:"rules,omitempty"`
	OutboundWebhooks  []OutboundWebhookConfig `json:"outbound_webhooks,omitempty"`
}

// ParseConfig parses a bundle from JSON. It accepts either the object
// form ({"rules": [...], "outbound_webhooks": [...]}) or a bare array,
// which is shorthand for rules only.
func ParseConfig(data []byte) (Config, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rules []RuleConfig
		if err := json.Unmarshal(trimmed, &rules); err != nil {
			return Config{}, fmt.Errorf("invalid hook bundle array: %w", err)
		}
		return Config{Rules: rules}, nil
	}

	var cfg Config
	if err := json.Unmarshal(trimmed, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid hook bundle: %w", err)
	}
	return cfg, nil
}

// RuleConfig describes one regex/string rule hook.
type RuleConfig struct {
	Name         string                    `json:"name"`
	Points       []string                  `json:"points"`
	Priority     *int                      `json:"priority,omitempty"`
	FailOpen     *bool                     `json:"fail_open,omitempty"`
	TimeoutMS    *int                      `json:"timeout_ms,omitempty"`
	WhenRegex    string                    `json:"when_regex,omitempty"`
	RejectReason string                    `json:"reject_reason,omitempty"`
	Replacements []RegexReplacementConfig  `json:"replacements,omitempty"`
	Prepend      string                    `json:"prepend,omitempty"`
	Append       string                    `json:"append,omitempty"`
}

// RegexReplacementConfig is a single regex replacement step.
type RegexReplacementConfig struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
}

// OutboundWebhookConfig describes a fire-and-forget webhook hook.
type OutboundWebhookConfig struct {
	Name      string            `json:"name"`
	Points    []string          `json:"points"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	TimeoutMS *int              `json:"timeout_ms,omitempty"`
	Priority  *int              `json:"priority,omitempty"`
}

// RegistrationSummary reports the outcome of registering a bundle.
type RegistrationSummary struct {
	Hooks            int
	OutboundWebhooks int
	Errors           int
}

func (s RegistrationSummary) TotalRegistered() int { return s.Hooks + s.OutboundWebhooks }

func (s *RegistrationSummary) merge(other RegistrationSummary) {
	s.Hooks += other.Hooks
	s.OutboundWebhooks += other.OutboundWebhooks
	s.Errors += other.Errors
}

// compiledRule is a RuleConfig with its regexes compiled.
type compiledRule struct {
	name         string
	points       []string
	failOpen     bool
	timeout      time.Duration
	whenRegex    *regexp.Regexp
	rejectReason string
	replacements []compiledReplacement
	prepend      string
	append       string
}

type compiledReplacement struct {
	regex       *regexp.Regexp
	replacement string
}

func compileRule(source string, cfg RuleConfig) (compiledRule, hooks.Priority, error) {
	scoped := fmt.Sprintf("%s::%s", source, cfg.Name)
	if len(cfg.Points) == 0 {
		return compiledRule{}, 0, fmt.Errorf("hook %q must declare at least one hook point", scoped)
	}

	timeoutMS := DefaultWebhookTimeoutMS
	if cfg.TimeoutMS != nil {
		timeoutMS = *cfg.TimeoutMS
	}
	if timeoutMS <= 0 || timeoutMS > MaxHookTimeoutMS {
		return compiledRule{}, 0, fmt.Errorf("hook %q timeout must be between 1 and %dms", scoped, MaxHookTimeoutMS)
	}

	var whenRe *regexp.Regexp
	if cfg.WhenRegex != "" {
		re, err := regexp.Compile(cfg.WhenRegex)
		if err != nil {
			return compiledRule{}, 0, fmt.Errorf("hook %q has invalid when_regex %q: %w", scoped, cfg.WhenRegex, err)
		}
		whenRe = re
	}

	replacements := make([]compiledReplacement, 0, len(cfg.Replacements))
	for _, r := range cfg.Replacements {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return compiledRule{}, 0, fmt.Errorf("hook %q has invalid replacement pattern %q: %w", scoped, r.Pattern, err)
		}
		replacements = append(replacements, compiledReplacement{regex: re, replacement: r.Replacement})
	}

	failOpen := true
	if cfg.FailOpen != nil {
		failOpen = *cfg.FailOpen
	}

	priority := DefaultRulePriority
	if cfg.Priority != nil {
		priority = hooks.Priority(*cfg.Priority)
	}

	return compiledRule{
		name:         scoped,
		points:       cfg.Points,
		failOpen:     failOpen,
		timeout:      time.Duration(timeoutMS) * time.Millisecond,
		whenRegex:    whenRe,
		rejectReason: cfg.RejectReason,
		replacements: replacements,
		prepend:      cfg.Prepend,
		append:       cfg.Append,
	}, priority, nil
}

// eventContent extracts the event's primary text content for regex
// guards, replacements and prepend/append. Falls back to the single
// message body when present.
func eventContent(event *hooks.Event) string {
	if event.Message != nil {
		return event.Message.Content
	}
	return ""
}

func withContent(event *hooks.Event, content string) *hooks.Event {
	clone := *event
	if clone.Message != nil {
		msgCopy := *clone.Message
		msgCopy.Content = content
		clone.Message = &msgCopy
	}
	return &clone
}

// toGatedHandler turns a compiled rule into a GatedHandler.
func (r compiledRule) toGatedHandler() hooks.GatedHandler {
	return func(ctx context.Context, event *hooks.Event) (hooks.HookOutcome, error) {
		content := eventContent(event)

		if r.whenRegex != nil && !r.whenRegex.MatchString(content) {
			return hooks.ContinueOutcome(), nil
		}

		if r.rejectReason != "" {
			return hooks.RejectOutcome(r.rejectReason), nil
		}

		modified := content
		for _, rep := range r.replacements {
			modified = rep.regex.ReplaceAllString(modified, rep.replacement)
		}
		if r.prepend != "" {
			modified = r.prepend + modified
		}
		if r.append != "" {
			modified = modified + r.append
		}

		if modified == content {
			return hooks.ContinueOutcome(), nil
		}
		return hooks.ModifiedOutcome(withContent(event, modified)), nil
	}
}

func compileWebhook(source string, cfg OutboundWebhookConfig) (*hooks.GatedRegistration, error) {
	scoped := fmt.Sprintf("%s::%s", source, cfg.Name)
	if cfg.URL == "" {
		return nil, fmt.Errorf("outbound webhook hook %q has empty url", scoped)
	}

	timeoutMS := DefaultWebhookTimeoutMS
	if cfg.TimeoutMS != nil {
		timeoutMS = *cfg.TimeoutMS
	}
	if timeoutMS <= 0 || timeoutMS > MaxHookTimeoutMS {
		return nil, fmt.Errorf("outbound webhook hook %q timeout must be between 1 and %dms", scoped, MaxHookTimeoutMS)
	}

	priority := DefaultWebhookPriority
	if cfg.Priority != nil {
		priority = hooks.Priority(*cfg.Priority)
	}

	handler := func(ctx context.Context, event *hooks.Event) (hooks.HookOutcome, error) {
		body, err := json.Marshal(event)
		if err != nil {
			return hooks.ContinueOutcome(), err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return hooks.ContinueOutcome(), err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}

		// Fire-and-forget: don't block the caller on the webhook's
		// own latency, but still respect ctx cancellation.
		go func() {
			resp, err := http.DefaultClient.Do(req)
			if err == nil {
				resp.Body.Close()
			}
		}()

		return hooks.ContinueOutcome(), nil
	}

	return &hooks.GatedRegistration{
		ID:       scoped,
		Name:     scoped,
		Priority: priority,
		Handler:  handler,
		Timeout:  time.Duration(timeoutMS) * time.Millisecond,
		FailOpen: true,
	}, nil
}

// Register compiles a bundle's rules and webhooks into gated
// registrations, grouped by hook point, and returns a summary of what
// was registered. Invalid entries are skipped and counted as errors
// rather than aborting the whole bundle.
func Register(logger *slog.Logger, source string, cfg Config) (map[string][]*hooks.GatedRegistration, RegistrationSummary) {
	if logger == nil {
		logger = slog.Default()
	}
	byPoint := make(map[string][]*hooks.GatedRegistration)
	var summary RegistrationSummary

	for _, ruleCfg := range cfg.Rules {
		rule, priority, err := compileRule(source, ruleCfg)
		if err != nil {
			summary.Errors++
			logger.Warn("skipping invalid declarative hook rule", "source", source, "error", err)
			continue
		}
		reg := &hooks.GatedRegistration{
			ID:       rule.name,
			Name:     rule.name,
			Priority: priority,
			Handler:  rule.toGatedHandler(),
			Timeout:  rule.timeout,
			FailOpen: rule.failOpen,
		}
		for _, point := range rule.points {
			byPoint[point] = append(byPoint[point], reg)
		}
		summary.Hooks++
	}

	for _, whCfg := range cfg.OutboundWebhooks {
		reg, err := compileWebhook(source, whCfg)
		if err != nil {
			summary.Errors++
			logger.Warn("skipping invalid outbound webhook hook", "source", source, "error", err)
			continue
		}
		for _, point := range whCfg.Points {
			byPoint[point] = append(byPoint[point], reg)
		}
		summary.OutboundWebhooks++
	}

	return byPoint, summary
}

// AuditLog is the built-in lifecycle audit hook, registered at
// priority 25 on every hook point.
func AuditLog(logger *slog.Logger) *hooks.Registration {
	if logger == nil {
		logger = slog.Default()
	}
	return &hooks.Registration{
		Name:     AuditLogHookName,
		Priority: AuditLogHookPriority,
		Handler: func(ctx context.Context, event *hooks.Event) error {
			logger.Debug("lifecycle hook event",
				"hook", AuditLogHookName,
				"event_type", event.Type,
				"session_key", event.SessionKey)
			return nil
		},
	}
}
