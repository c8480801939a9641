package decider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskagent/internal/domain"
)

func TestParseDecisionToolRequest(t *testing.T) {
	t.Parallel()

	d := ParseDecision(`{"tool": "get_order", "args": {"order_id": "A123"}}`)
	require.Equal(t, domain.DecisionToolCall, d.Kind)
	assert.Equal(t, "get_order", d.Tool)
	assert.Equal(t, "A123", d.Args["order_id"])
}

func TestParseDecisionToolWithoutArgs(t *testing.T) {
	t.Parallel()

	d := ParseDecision(`{"tool": "get_order"}`)
	require.Equal(t, domain.DecisionToolCall, d.Kind)
	assert.NotNil(t, d.Args)
	assert.Empty(t, d.Args)
}

func TestParseDecisionToleratesSurroundingWhitespace(t *testing.T) {
	t.Parallel()

	d := ParseDecision("\n  {\"tool\": \"create_ticket\", \"args\": {\"summary\": \"x\"}}  \n")
	require.Equal(t, domain.DecisionToolCall, d.Kind)
	assert.Equal(t, "create_ticket", d.Tool)
}

func TestParseDecisionPlainTextIsReply(t *testing.T) {
	t.Parallel()

	raw := "Your order is on its way."
	d := ParseDecision(raw)
	require.Equal(t, domain.DecisionReply, d.Kind)
	assert.Equal(t, raw, d.Text)
}

func TestParseDecisionMalformedIsVerbatimReply(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		`{"tool": }`,            // broken JSON
		`{"tool": 42}`,          // wrong type
		`{"tool": ""}`,          // empty name
		`{"args": {"x": 1}}`,    // no tool key
		`["tool", "get_order"]`, // not an object
		`{"tool": null}`,        // null name
	} {
		d := ParseDecision(raw)
		assert.Equal(t, domain.DecisionReply, d.Kind, "input: %s", raw)
		assert.Equal(t, raw, d.Text, "input: %s", raw)
	}
}
