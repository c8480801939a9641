// Package eval scores finished support interactions.
//
// Two judging layers are combined: a fast keyword heuristic and a
// model judge, weighted into a single final score per interaction.
package eval

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"deskagent/internal/decider"
	"deskagent/internal/domain"
)

const judgeInstruction = "You are an evaluation model."

const judgePromptTemplate = `You are a strict evaluator AI.

User message:
%q

Agent reply:
%q

Evaluate the agent on two metrics:

1. RESOLUTION SCORE (0 to 1):
- 1.0 if the agent fully resolves or meaningfully progresses the issue
- 0.5 if partially correct or incomplete
- 0.0 if irrelevant, hallucinated, or incorrect

2. HELPFULNESS SCORE (0 to 1):
- 1.0 if the tone is polite, clear, and informative
- 0.5 if average
- 0.0 if unhelpful

Respond ONLY in JSON:
{"resolution": 0.0, "helpfulness": 0.0}`

// Score is the full evaluation result for one interaction.
type Score struct {
	Heuristic   float64 `json:"heuristic"`
	Resolution  float64 `json:"llm_resolution"`
	Helpfulness float64 `json:"llm_helpfulness"`
	Final       float64 `json:"final_score"`
}

// HeuristicScore is the offline judge: keyword alignment between the
// user's issue and the agent's reply, clamped to [0, 1].
func HeuristicScore(userMsg, reply string) float64 {
	userLow := strings.ToLower(userMsg)
	replyLow := strings.ToLower(reply)

	score := 0.0

	// Order and delivery issues.
	if strings.Contains(userLow, "order") {
		if strings.Contains(replyLow, "order") ||
			strings.Contains(replyLow, "delivery") ||
			strings.Contains(replyLow, "tracking") {
			score += 0.5
		}
	}

	// Refund requests.
	if strings.Contains(userLow, "refund") {
		if strings.Contains(replyLow, "refund") || strings.Contains(replyLow, "ticket") {
			score += 0.5
		}
	}

	// Any ticket mention counts: escalation is a valid outcome.
	if strings.Contains(replyLow, "ticket") {
		score += 0.4
	}

	return min(score, 1.0)
}

// Evaluator combines the heuristic judge with a model judge backed by a
// decision source.
type Evaluator struct {
	judge decider.Decider
}

// New creates an evaluator. The judge decider supplies the model
// scores; the rule-based decider works here too, in which case every
// judgment lands on the neutral defaults.
func New(judge decider.Decider) *Evaluator {
	return &Evaluator{judge: judge}
}

// Score evaluates one interaction. Final weighs the heuristic at 0.3
// and the model judgment at 0.7, with resolution counting 0.7 and
// helpfulness 0.3 inside the model share.
func (e *Evaluator) Score(ctx context.Context, userMsg, reply string) Score {
	h := HeuristicScore(userMsg, reply)
	resolution, helpfulness := e.modelJudge(ctx, userMsg, reply)

	return Score{
		Heuristic:   h,
		Resolution:  resolution,
		Helpfulness: helpfulness,
		Final:       0.3*h + 0.7*(0.7*resolution+0.3*helpfulness),
	}
}

// modelJudge asks the judge decider for resolution and helpfulness
// scores. Anything short of a well-formed JSON reply collapses to the
// neutral 0.5/0.5 defaults: evaluation must never fail an entire batch
// over one unparseable judgment.
func (e *Evaluator) modelJudge(ctx context.Context, userMsg, reply string) (resolution, helpfulness float64) {
	msgs := []domain.Message{
		{Role: domain.RoleSystem, Text: judgeInstruction},
		{Role: domain.RoleUser, Text: fmt.Sprintf(judgePromptTemplate, userMsg, reply)},
	}

	decision, err := e.judge.Decide(ctx, msgs, nil)
	if err != nil || decision.Kind != domain.DecisionReply {
		return 0.5, 0.5
	}

	raw := strings.TrimSpace(decision.Text)
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return 0.5, 0.5
	}

	resolution = clamp01(gjson.Get(raw, "resolution").Float())
	helpfulness = clamp01(gjson.Get(raw, "helpfulness").Float())
	return resolution, helpfulness
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
