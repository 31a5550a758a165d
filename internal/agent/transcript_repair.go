package agent

import "github.com/coreflow/agentruntime/pkg/models"

// repairTranscript drops tool calls and tool results that lost their
// counterpart, which can happen when history is truncated or compacted
// mid-turn. A provider rejects a turn whose assistant message requests a
// tool call with no matching result, or whose tool result has no matching
// call, so this runs once before the history is replayed to the provider.
func repairTranscript(history []*models.Message) []*models.Message {
	pending := make(map[string]bool)
	for _, m := range history {
		for _, tc := range m.ToolCalls {
			pending[tc.ID] = true
		}
	}
	for _, m := range history {
		for _, tr := range m.ToolResults {
			delete(pending, tr.ToolCallID)
		}
	}
	if len(pending) == 0 {
		return history
	}

	repaired := make([]*models.Message, 0, len(history))
	for _, m := range history {
		msg := m
		if len(m.ToolCalls) > 0 {
			kept := removeID(m.ToolCalls, pending)
			if len(kept) != len(m.ToolCalls) {
				clone := *m
				clone.ToolCalls = kept
				msg = &clone
			}
		}
		if len(msg.ToolCalls) == 0 && len(msg.ToolResults) == 0 && msg.Content == "" {
			continue
		}
		repaired = append(repaired, msg)
	}
	return repaired
}

// removeID filters out tool calls whose ID is still pending (unanswered).
func removeID(calls []models.ToolCall, pending map[string]bool) []models.ToolCall {
	kept := make([]models.ToolCall, 0, len(calls))
	for _, tc := range calls {
		if !pending[tc.ID] {
			kept = append(kept, tc)
		}
	}
	return kept
}
