// evalbatch runs a fixed batch of simulated support messages through
// the agent, scores each interaction with the hybrid evaluator and
// writes a metrics report.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"deskagent/internal/agent"
	"deskagent/internal/config"
	"deskagent/internal/decider"
	"deskagent/internal/domain"
	"deskagent/internal/eval"
	"deskagent/internal/store"
	"deskagent/internal/tools"
	"deskagent/internal/trace"
)

const reportPath = "evaluation_report.json"

type batchCase struct {
	UserID  string
	Message string
}

var cases = []batchCase{
	{UserID: "u010", Message: "Where is my order A123?"},
	{UserID: "u020", Message: "I want a refund for my damaged item"},
	{UserID: "u030", Message: "Package never arrived"},
	{UserID: "u040", Message: "Wrong item delivered"},
	{UserID: "u050", Message: "Help me track my shipment"},
}

type caseResult struct {
	Case   string     `json:"case"`
	Reply  string     `json:"reply"`
	Scores eval.Score `json:"scores"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, logger); err != nil {
		slog.Error("Batch evaluation failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("Evaluation complete -> " + reportPath)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()

	tracer, err := trace.NewLogger(trace.Config{
		Path:      cfg.Trace.Path,
		QueueSize: cfg.Trace.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("open trace logger: %w", err)
	}
	defer tracer.Close()

	source, err := decider.New(cfg.Decider)
	if err != nil {
		return fmt.Errorf("build decision source: %w", err)
	}

	registry := tools.NewBuiltinRegistry()
	orchestrator := agent.New(repo, registry, source, tracer, cfg.Agent, logger)
	evaluator := eval.New(source)

	// Interactions run sequentially: each case is an independent session
	// but shares the store and trace stream.
	results := make([]caseResult, len(cases))
	for i, c := range cases {
		user := &domain.User{
			ID:      c.UserID,
			Name:    "TestUser",
			Email:   "test@example.com",
			Profile: map[string]string{"notes": "auto-created"},
		}
		if err := repo.UpsertUser(ctx, user); err != nil {
			return fmt.Errorf("upsert user %s: %w", c.UserID, err)
		}

		sessionID := fmt.Sprintf("batch%d", i)
		res, err := orchestrator.HandleMessage(ctx, sessionID, c.UserID, c.Message)
		if err != nil {
			return fmt.Errorf("case %q: %w", c.Message, err)
		}

		results[i] = caseResult{Case: c.Message, Reply: res.Reply}
	}

	// Scoring is independent per case, so judge calls run concurrently.
	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		g.Go(func() error {
			results[i].Scores = evaluator.Score(gctx, results[i].Case, results[i].Reply)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	report, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(reportPath, append(report, '\n'), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
