package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/devagent/agentcore/pkg/agentcore/checkpoint"
	"github.com/devagent/agentcore/pkg/agentcore/config"
	"github.com/devagent/agentcore/pkg/agentcore/graph"
	"github.com/devagent/agentcore/pkg/agentcore/state"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Send a message to a thread, creating it if --thread-id is new",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	w, err := wire(cmd, cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	threadID, _ := cmd.Flags().GetString("thread-id")
	if threadID == "" {
		threadID = uuid.New().String()
	}
	demo, _ := cmd.Flags().GetBool("demo")
	recursionBase, _ := cmd.Flags().GetInt("recursion-limit-base")

	s, err := loadOrCreateState(ctx, w.store, threadID, cfg)
	if err != nil {
		return fmt.Errorf("load thread state: %w", err)
	}
	s.DemoMode = demo
	s.Messages = append(s.Messages, state.NewHumanMessage(args[0]))

	if recursionBase > 0 {
		w.driver.RecursionLimitBase = recursionBase
	}

	out, err := w.driver.Start(ctx, threadID, s)
	return reportOutcome(cmd, threadID, out, err)
}

// loadOrCreateState resumes the thread's latest checkpoint if one exists,
// otherwise creates a fresh AgentState rooted at cfg.ProjectRoot.
func loadOrCreateState(ctx context.Context, store checkpoint.Store, threadID string, cfg config.Config) (state.AgentState, error) {
	tuple, found, err := store.GetTuple(ctx, checkpoint.Config{ThreadID: threadID})
	if err != nil {
		return state.AgentState{}, err
	}
	if found {
		return tuple.Checkpoint.State, nil
	}
	return state.CreateState(&state.AgentState{
		ProjectRoot:   cfg.ProjectRoot,
		MaxIterations: cfg.MaxIterations,
	}), nil
}

// reportOutcome prints the final state or maps the driver's error to the
// exit-code contract (§6).
func reportOutcome(cmd *cobra.Command, threadID string, out state.AgentState, err error) error {
	if err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "thread %s: %s\n", threadID, lastAssistantText(out))
		return nil
	}
	if errors.Is(err, graph.ErrSuspended) {
		fmt.Fprintf(cmd.OutOrStdout(), "thread %s: suspended, awaiting approval (run `agentcore resume --thread-id %s`)\n", threadID, threadID)
		return nil
	}
	if errors.Is(err, graph.ErrRecursionLimit) {
		return fmt.Errorf("thread %s: recursion limit exceeded: %w", threadID, err)
	}
	var coreErr *graph.CoreError
	if errors.As(err, &coreErr) && coreErr.Kind == graph.KindInvariantBreach {
		return fmt.Errorf("thread %s: internal invariant breach, state not persisted: %w", threadID, err)
	}
	return err
}

func lastAssistantText(s state.AgentState) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == state.RoleAssistant || m.Role == state.RoleSystem {
			if m.Content != "" {
				return m.Content
			}
		}
	}
	return "(no response)"
}
