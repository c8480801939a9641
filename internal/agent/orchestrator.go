// Package agent implements the bounded decision loop at the heart of
// the support desk: decide, dispatch, repeat, escalate.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"deskagent/internal/config"
	"deskagent/internal/decider"
	"deskagent/internal/domain"
	"deskagent/internal/store"
	"deskagent/internal/tools"
	"deskagent/internal/trace"
)

// systemPrompt frames every conversation handed to the decision source.
const systemPrompt = "You are SupportGPT. You solve customer issues using tools when needed. " +
	`If tool needed, respond ONLY with JSON: {"tool": "tool_name", "args": {...}}`

// fallbackApology is the fixed degraded-success reply. The ticket ID is
// appended when escalation fires.
const fallbackApology = "I couldn't resolve this automatically. I have created a ticket."

// Result is the terminal outcome of one incoming message.
type Result struct {
	TraceID string `json:"trace_id"`
	Reply   string `json:"reply"`
}

// Orchestrator runs the per-message state machine: recall memory, ask
// the decision source for a next step, dispatch tools, and guarantee a
// terminal outcome within the step budget.
type Orchestrator struct {
	repo     store.Repository
	registry *tools.Registry
	decider  decider.Decider
	trace    trace.Sink
	logger   *slog.Logger

	maxSteps    int
	recallLimit int
}

// New creates an orchestrator. All collaborators are required; the
// trace sink may be trace.Nop when tracing is disabled.
func New(repo store.Repository, registry *tools.Registry, d decider.Decider, sink trace.Sink, cfg config.AgentConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 5
	}
	recallLimit := cfg.MemoryRecallLimit
	if recallLimit <= 0 {
		recallLimit = 5
	}
	return &Orchestrator{
		repo:        repo,
		registry:    registry,
		decider:     d,
		trace:       sink,
		logger:      logger,
		maxSteps:    maxSteps,
		recallLimit: recallLimit,
	}
}

// HandleMessage processes one incoming support message to a terminal
// state: a direct reply, an unknown-tool error reply, or the fallback
// escalation ticket. It always terminates within maxSteps iterations
// plus the fallback step.
//
// The returned error covers only the initial persistence of the user
// message; once the loop is running, failures degrade (structured tool
// error results, fallback escalation) instead of aborting.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, userID, text string) (Result, error) {
	traceID := uuid.NewString()

	o.trace.Log(trace.Event{TraceID: traceID, Kind: "user_message", Fields: map[string]any{
		"session_id": sessionID,
		"user_id":    userID,
		"text":       text,
	}})

	if err := o.repo.AppendSessionEvent(ctx, sessionID, userID, domain.Event{Role: domain.RoleUser, Text: text}); err != nil {
		return Result{}, fmt.Errorf("record user message: %w", err)
	}

	msgs := []domain.Message{
		{Role: domain.RoleSystem, Text: systemPrompt},
		{Role: domain.RoleSystem, Text: "User memory:\n" + o.recallMemories(ctx, userID)},
		{Role: domain.RoleUser, Text: text},
	}
	descriptors := o.registry.Descriptors()

	for step := 0; step < o.maxSteps; step++ {
		decision, err := o.decider.Decide(ctx, msgs, descriptors)
		if err != nil {
			// Transport failure. The loop never aborts on it: the
			// iteration is consumed and, if the failure persists, the
			// fallback path guarantees an outcome.
			o.logger.Warn("decision source unavailable", "trace_id", traceID, "step", step, "error", err)
			o.trace.Log(trace.Event{TraceID: traceID, Kind: "decider_error", Fields: map[string]any{
				"step":  step,
				"error": err.Error(),
			}})
			continue
		}

		o.trace.Log(trace.Event{TraceID: traceID, Kind: "llm_decision", Fields: map[string]any{
			"step":     step,
			"decision": decision,
		}})

		if decision.Kind == domain.DecisionReply {
			o.appendEvent(ctx, sessionID, userID, traceID, domain.Event{Role: domain.RoleAssistant, Text: decision.Text})
			o.trace.Log(trace.Event{TraceID: traceID, Kind: "assistant_reply", Fields: map[string]any{
				"reply": decision.Text,
			}})
			return Result{TraceID: traceID, Reply: decision.Text}, nil
		}

		tool, ok := o.registry.Get(decision.Tool)
		if !ok {
			// Terminal error state: reported verbatim, no retry consumed.
			errMsg := "Unknown tool: " + decision.Tool
			o.appendEvent(ctx, sessionID, userID, traceID, domain.Event{Role: domain.RoleAssistant, Text: errMsg})
			return Result{TraceID: traceID, Reply: errMsg}, nil
		}

		// Ticket creation always acts on behalf of the current user;
		// inject the identifier when the decision omitted it.
		if decision.Tool == tools.ToolCreateTicket {
			if _, present := decision.Args["user_id"]; !present {
				decision.Args["user_id"] = userID
			}
		}

		result := tools.SafeExecute(ctx, tool, decision.Args)

		o.appendEvent(ctx, sessionID, userID, traceID, domain.Event{
			Role:   domain.RoleTool,
			Tool:   decision.Tool,
			Args:   decision.Args,
			Result: result,
		})
		o.trace.Log(trace.Event{TraceID: traceID, Kind: "tool_result", Fields: map[string]any{
			"tool":   decision.Tool,
			"result": result,
		}})

		msgs = append(msgs, domain.Message{Role: domain.RoleTool, Text: renderToolResult(decision.Tool, result)})
	}

	return o.escalate(ctx, sessionID, userID, traceID, text), nil
}

// escalate is the guaranteed degraded-success path: synthesize a ticket,
// remember it, apologize.
func (o *Orchestrator) escalate(ctx context.Context, sessionID, userID, traceID, text string) Result {
	tool, ok := o.registry.Get(tools.ToolCreateTicket)
	if !ok {
		// The registry is validated at startup; this is unreachable in
		// a correctly wired process.
		o.logger.Error("create_ticket missing from registry", "trace_id", traceID)
		return Result{TraceID: traceID, Reply: fallbackApology}
	}

	result := tools.SafeExecute(ctx, tool, map[string]any{
		"user_id": userID,
		"summary": text,
	})

	if content, err := json.Marshal(result); err == nil {
		if err := o.repo.AddMemory(ctx, userID, "ticket", string(content)); err != nil {
			o.logger.Warn("failed to memorize fallback ticket", "trace_id", traceID, "error", err)
		}
	}

	o.trace.Log(trace.Event{TraceID: traceID, Kind: "fallback_ticket", Fields: map[string]any{
		"session_id": sessionID,
		"ticket":     result,
	}})

	ticketID, _ := result["ticket_id"].(string)
	o.logger.Info("escalated to fallback ticket", "trace_id", traceID, "user_id", userID, "ticket_id", ticketID)

	return Result{TraceID: traceID, Reply: fmt.Sprintf("%s Ticket ID: %s", fallbackApology, ticketID)}
}

// recallMemories renders the user's recent memories into one context
// block. Recall failure degrades to an empty block: a support answer
// without memory beats no answer.
func (o *Orchestrator) recallMemories(ctx context.Context, userID string) string {
	memories, err := o.repo.RetrieveMemories(ctx, userID, "", o.recallLimit)
	if err != nil {
		o.logger.Warn("memory recall failed", "user_id", userID, "error", err)
		return ""
	}

	contents := make([]string, 0, len(memories))
	for _, m := range memories {
		contents = append(contents, m.Content)
	}
	return strings.Join(contents, "\n")
}

// appendEvent records a session event, degrading to a warning when the
// store is unavailable mid-loop.
func (o *Orchestrator) appendEvent(ctx context.Context, sessionID, userID, traceID string, ev domain.Event) {
	if err := o.repo.AppendSessionEvent(ctx, sessionID, userID, ev); err != nil {
		o.logger.Warn("failed to append session event",
			"trace_id", traceID,
			"session_id", sessionID,
			"role", ev.Role,
			"error", err)
	}
}

// renderToolResult builds the synthetic context entry the next decide
// step sees after a tool ran.
func renderToolResult(name string, result map[string]any) string {
	payload, err := json.Marshal(map[string]any{"tool": name, "result": result})
	if err != nil {
		return fmt.Sprintf(`{"tool":%q}`, name)
	}
	return string(payload)
}
