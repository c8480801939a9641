package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskagent/internal/domain"
	"deskagent/internal/tools"
)

// scriptedJudge replies with a fixed text, or fails.
type scriptedJudge struct {
	reply string
	err   error
}

func (s scriptedJudge) Decide(context.Context, []domain.Message, []tools.Descriptor) (domain.Decision, error) {
	if s.err != nil {
		return domain.Decision{}, s.err
	}
	return domain.ReplyDecision(s.reply), nil
}

func TestHeuristicScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		userMsg string
		reply   string
		want    float64
	}{
		{"no alignment", "hello", "hi there", 0},
		{"order cue answered", "Where is my order A123?", "Your order is out for delivery", 0.5},
		{"order cue via tracking", "my order is late", "here is the tracking link", 0.5},
		{"order cue unanswered", "Where is my order?", "please hold", 0},
		{"refund answered with ticket", "I want a refund", "I created a ticket for the refund", 0.9},
		{"ticket mention alone", "package never arrived", "I have created a ticket. Ticket ID: T-1", 0.4},
		{"order plus ticket", "where is my order? status", "I have created a ticket", 0.4},
		{"everything clamps to one", "order status refund", "order refund ticket", 1.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, HeuristicScore(tc.userMsg, tc.reply), 1e-9)
		})
	}
}

func TestScoreCombinesWeights(t *testing.T) {
	t.Parallel()

	e := New(scriptedJudge{reply: `{"resolution": 1.0, "helpfulness": 0.5}`})
	got := e.Score(context.Background(), "Where is my order A123?", "Your order is out for delivery")

	require.InDelta(t, 0.5, got.Heuristic, 1e-9)
	require.InDelta(t, 1.0, got.Resolution, 1e-9)
	require.InDelta(t, 0.5, got.Helpfulness, 1e-9)
	// 0.3*0.5 + 0.7*(0.7*1.0 + 0.3*0.5) = 0.745
	assert.InDelta(t, 0.745, got.Final, 1e-9)
}

func TestScoreNeutralDefaultsOnJudgeFailure(t *testing.T) {
	t.Parallel()

	for name, judge := range map[string]scriptedJudge{
		"transport error":  {err: errors.New("unreachable")},
		"malformed output": {reply: "I would rate this interaction highly."},
		"non-object json":  {reply: `[0.5, 0.5]`},
	} {
		t.Run(name, func(t *testing.T) {
			got := New(judge).Score(context.Background(), "hello", "hi")
			assert.InDelta(t, 0.5, got.Resolution, 1e-9)
			assert.InDelta(t, 0.5, got.Helpfulness, 1e-9)
			// 0.3*0 + 0.7*(0.7*0.5 + 0.3*0.5) = 0.35
			assert.InDelta(t, 0.35, got.Final, 1e-9)
		})
	}
}

func TestScoreClampsOutOfRangeJudgments(t *testing.T) {
	t.Parallel()

	e := New(scriptedJudge{reply: `{"resolution": 3.5, "helpfulness": -1}`})
	got := e.Score(context.Background(), "hello", "hi")

	assert.InDelta(t, 1.0, got.Resolution, 1e-9)
	assert.InDelta(t, 0.0, got.Helpfulness, 1e-9)
}

func TestScoreMissingFieldsAreZero(t *testing.T) {
	t.Parallel()

	e := New(scriptedJudge{reply: `{"resolution": 0.5}`})
	got := e.Score(context.Background(), "hello", "hi")

	assert.InDelta(t, 0.5, got.Resolution, 1e-9)
	assert.InDelta(t, 0.0, got.Helpfulness, 1e-9)
}

func TestScoreIsAlwaysInRange(t *testing.T) {
	t.Parallel()

	e := New(scriptedJudge{reply: `{"resolution": 1, "helpfulness": 1}`})
	got := e.Score(context.Background(), "order status refund", "order refund ticket")

	assert.LessOrEqual(t, got.Final, 1.0)
	assert.GreaterOrEqual(t, got.Final, 0.0)
}
