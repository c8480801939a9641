package decider

import (
	"context"
	"strings"

	"deskagent/internal/domain"
	"deskagent/internal/tools"
)

// clarifyReply is the fixed fallthrough answer when no rule matches.
const clarifyReply = "Sure, could you provide your order ID?"

// Rules is the deterministic decision source. It inspects only the
// most recent context entry, so identical input text always produces
// an identical decision.
type Rules struct{}

// NewRules creates the rule-based decision source.
func NewRules() *Rules {
	return &Rules{}
}

// Decide applies fixed keyword rules to the latest context entry.
func (r *Rules) Decide(_ context.Context, msgs []domain.Message, _ []tools.Descriptor) (domain.Decision, error) {
	if len(msgs) == 0 {
		return domain.ReplyDecision(clarifyReply), nil
	}
	last := strings.ToLower(msgs[len(msgs)-1].Text)

	// Order with a status, lateness or reference cue.
	if strings.Contains(last, "order") &&
		(strings.Contains(last, "status") || strings.Contains(last, "late") || strings.Contains(last, "#")) {
		return domain.ToolCallDecision(tools.ToolGetOrder, map[string]any{"order_id": "A123"}), nil
	}

	// Refunds and complaints go straight to a ticket.
	if strings.Contains(last, "refund") || strings.Contains(last, "complain") {
		return domain.ToolCallDecision(tools.ToolCreateTicket, map[string]any{"summary": last}), nil
	}

	return domain.ReplyDecision(clarifyReply), nil
}
