package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	c := Default()
	if c.CheckpointKind != "sqlite" {
		t.Errorf("expected sqlite as the default checkpoint kind, got %q", c.CheckpointKind)
	}
	if c.MaxIterations != 50 {
		t.Errorf("expected default MaxIterations 50, got %d", c.MaxIterations)
	}
	if c.LLM.Model == "" {
		t.Error("expected a default LLM model")
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.SQLitePath != Default().SQLitePath {
		t.Errorf("expected default sqlite path, got %q", c.SQLitePath)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "checkpoint_kind: postgres\nmax_iterations: 10\npostgres:\n  host: db.internal\n  port: 5432\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.CheckpointKind != "postgres" {
		t.Errorf("expected checkpoint_kind postgres, got %q", c.CheckpointKind)
	}
	if c.MaxIterations != 10 {
		t.Errorf("expected max_iterations 10, got %d", c.MaxIterations)
	}
	if c.Postgres.Host != "db.internal" {
		t.Errorf("expected postgres host db.internal, got %q", c.Postgres.Host)
	}
}

func TestLoad_APIKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.LLM.APIKey != "sk-test-key" {
		t.Errorf("expected API key sourced from OPENAI_API_KEY, got %q", c.LLM.APIKey)
	}
}

func TestLoad_AgentAndToolLoopThresholds(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "agent:\n  soft_stuck_threshold: 8\n  summary_trigger: 60\ntool_loop:\n  destructive_streak_threshold: 3\ntool_guard:\n  always_approve:\n    - list_files\n  require_approval:\n    - custom_deploy\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Agent.SoftStuckThreshold != 8 {
		t.Errorf("expected agent.soft_stuck_threshold 8, got %d", c.Agent.SoftStuckThreshold)
	}
	if c.Agent.SummaryTrigger != 60 {
		t.Errorf("expected agent.summary_trigger 60, got %d", c.Agent.SummaryTrigger)
	}
	if c.ToolLoop.DestructiveStreakThreshold != 3 {
		t.Errorf("expected tool_loop.destructive_streak_threshold 3, got %d", c.ToolLoop.DestructiveStreakThreshold)
	}
	if len(c.ToolGuard.AlwaysApprove) != 1 || c.ToolGuard.AlwaysApprove[0] != "list_files" {
		t.Errorf("expected tool_guard.always_approve [list_files], got %v", c.ToolGuard.AlwaysApprove)
	}
	if len(c.ToolGuard.RequireApproval) != 1 || c.ToolGuard.RequireApproval[0] != "custom_deploy" {
		t.Errorf("expected tool_guard.require_approval [custom_deploy], got %v", c.ToolGuard.RequireApproval)
	}
}

func TestDefault_LeavesAgentThresholdsZeroForPackageDefaults(t *testing.T) {
	t.Parallel()
	c := Default()
	if c.Agent.SoftStuckThreshold != 0 || c.Agent.SummaryTrigger != 0 {
		t.Error("expected Default() to leave Agent thresholds at zero so graph falls back to its own defaults")
	}
}
