package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devagent/agentcore/pkg/agentcore/builtins"
	"github.com/devagent/agentcore/pkg/agentcore/checkpoint"
	"github.com/devagent/agentcore/pkg/agentcore/config"
	"github.com/devagent/agentcore/pkg/agentcore/graph"
	"github.com/devagent/agentcore/pkg/agentcore/llm"
	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// errCancelled signals a user-initiated cancellation (§6 exit code 2).
var errCancelled = errors.New("cancelled")

// wiring bundles everything run/resume need: the driver plus the store so
// the caller can Close it on the way out.
type wiring struct {
	driver   *graph.Driver
	store    checkpoint.Store
	registry *tools.Registry
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func openStore(cfg config.Config, logger *slog.Logger) (checkpoint.Store, error) {
	switch cfg.CheckpointKind {
	case "", "sqlite":
		return checkpoint.OpenSQLite(checkpoint.SQLiteConfig{Path: cfg.SQLitePath}, logger)
	case "postgres":
		return checkpoint.OpenPostgreSQL(checkpoint.PostgreSQLConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown checkpoint_kind %q", cfg.CheckpointKind)
	}
}

func wire(cmd *cobra.Command, cfg config.Config) (*wiring, error) {
	logger := slog.Default()

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	pm := builtins.NewProcessManager()
	registry, err := tools.NewRegistry(builtins.All(pm))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	registry.OverrideSensitivity(cfg.ToolGuard.AlwaysApprove, cfg.ToolGuard.RequireApproval)

	client := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, logger)

	driver := &graph.Driver{
		Store:            store,
		Registry:         registry,
		Initializer:      &graph.Initializer{Logger: logger},
		IntentClassifier: &graph.IntentClassifier{Client: client, Logger: logger},
		ChatResponder:    &graph.ChatResponder{Client: client, Logger: logger},
		Planner:          &graph.Planner{Client: client, Logger: logger},
		Executor: &graph.Executor{
			Client:                     client,
			Registry:                   registry,
			Logger:                     logger,
			SoftStuckThreshold:         cfg.Agent.SoftStuckThreshold,
			SummaryTrigger:             cfg.Agent.SummaryTrigger,
			DestructiveStreakThreshold: cfg.ToolLoop.DestructiveStreakThreshold,
		},
		Logger:             logger,
		RecursionLimitBase: cfg.RecursionLimit,
		SoftStuckThreshold: cfg.Agent.SoftStuckThreshold,
		SummaryTrigger:     cfg.Agent.SummaryTrigger,
	}

	return &wiring{driver: driver, store: store, registry: registry}, nil
}

func (w *wiring) Close() {
	_ = w.store.Close()
}
