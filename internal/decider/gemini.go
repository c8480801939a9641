package decider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"deskagent/internal/domain"
	"deskagent/internal/tools"
)

// geminiInstruction tells the model how to request a tool. The shape
// it promises is exactly what ParseDecision accepts.
const geminiInstruction = "You are a customer support agent. " +
	`If you need a tool, respond ONLY with JSON like {"tool": "get_order", "args": {"order_id": "A123"}}. ` +
	"Otherwise, reply normally."

// Gemini is the model-backed decision source.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed decision source.
func NewGemini(apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// Decide serializes the context into a prompt, calls the model and
// interprets the raw output with ParseDecision. A transport failure is
// returned as an error; anything the model says comes back as a
// decision, however malformed.
func (g *Gemini) Decide(ctx context.Context, msgs []domain.Message, descriptors []tools.Descriptor) (domain.Decision, error) {
	prompt := renderPrompt(msgs, descriptors)

	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(geminiInstruction, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.2),
		},
	)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("gemini generate: %w", err)
	}

	return ParseDecision(resp.Text()), nil
}

// renderPrompt flattens the conversation and the advertised tool list
// into a single prompt.
func renderPrompt(msgs []domain.Message, descriptors []tools.Descriptor) string {
	var b strings.Builder

	if len(descriptors) > 0 {
		b.WriteString("Available tools:\n")
		for _, d := range descriptors {
			fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("Conversation:\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}

	return b.String()
}
