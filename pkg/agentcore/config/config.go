// Package config loads the CLI's YAML configuration, with .env-sourced
// secrets layered on top (§1 ambient config, grounded on the teacher's
// loader.go: godotenv for secrets, yaml.v3 for structured settings).
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of agentcore's config file.
type Config struct {
	ProjectRoot    string `yaml:"project_root"`
	CheckpointKind string `yaml:"checkpoint_kind"` // "sqlite" or "postgres"
	SQLitePath     string `yaml:"sqlite_path"`

	Postgres struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Database string `yaml:"database"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"ssl_mode"`
	} `yaml:"postgres"`

	LLM struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
		APIKey  string `yaml:"api_key"` // usually left blank and sourced from env
	} `yaml:"llm"`

	MaxIterations  int `yaml:"max_iterations"`
	RecursionLimit int `yaml:"recursion_limit"`

	Agent     AgentConfig     `yaml:"agent"`
	ToolLoop  ToolLoopConfig  `yaml:"tool_loop"`
	ToolGuard ToolGuardConfig `yaml:"tool_guard"`
}

// AgentConfig holds the §4.2/§4.3 tuning knobs the router and executor
// otherwise fall back to package defaults for (graph.DefaultSoftStuckThreshold,
// graph.DefaultSummaryTrigger). Zero values leave the package default in
// effect — see graph.Route and graph.Executor's accessor methods.
type AgentConfig struct {
	SoftStuckThreshold int `yaml:"soft_stuck_threshold"`
	SummaryTrigger     int `yaml:"summary_trigger"`
}

// ToolLoopConfig holds the §4.3 step 4 loop-detection tuning. Zero leaves
// loop.defaultDestructiveStreakThreshold in effect.
type ToolLoopConfig struct {
	DestructiveStreakThreshold int `yaml:"destructive_streak_threshold"`
}

// ToolGuardConfig controls which tool calls the review interrupt treats
// as sensitive enough to require human approval (§4.4), beyond whatever a
// tool itself declares via tools.Tool.Sensitive.
type ToolGuardConfig struct {
	// AlwaysApprove lists tool names that skip the review interrupt even
	// when the tool registers itself as sensitive — e.g. a read-only
	// "list_files" a deployment has reclassified as safe.
	AlwaysApprove []string `yaml:"always_approve"`
	// RequireApproval lists additional tool names to route through the
	// review interrupt even though the tool itself isn't marked sensitive.
	RequireApproval []string `yaml:"require_approval"`
}

// Default returns a Config with the engine's built-in defaults.
func Default() Config {
	c := Config{
		ProjectRoot:    ".",
		CheckpointKind: "sqlite",
		SQLitePath:     "agentcore.db",
		MaxIterations:  50,
	}
	c.LLM.BaseURL = "https://api.openai.com/v1"
	c.LLM.Model = "gpt-4o-mini"
	return c
}

// Load reads path (if it exists) over Default(), loads .env/.env.local
// (without overriding already-set process env vars), and resolves the
// LLM API key from OPENAI_API_KEY when the config file left it blank.
func Load(path string) (Config, error) {
	loadEnvFiles()
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, nil
}

func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f) // godotenv.Load never overwrites already-set vars
	}
}
