package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devagent/agentcore/pkg/agentcore/graph"
)

func newResumeCmd() *cobra.Command {
	var reject bool
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a thread suspended at the approval interrupt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd, reject)
		},
	}
	cmd.Flags().BoolVar(&reject, "reject", false, "reject the pending sensitive tool calls instead of approving them")
	return cmd
}

func runResume(cmd *cobra.Command, reject bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	threadID, _ := cmd.Flags().GetString("thread-id")
	if threadID == "" {
		return fmt.Errorf("--thread-id is required")
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

	if recursionBase, _ := cmd.Flags().GetInt("recursion-limit-base"); recursionBase > 0 {
		w.driver.RecursionLimitBase = recursionBase
	}

	decision := graph.ApprovalProceed
	if reject {
		decision = graph.ApprovalReject
	}

	out, err := w.driver.Resume(ctx, threadID, decision)
	return reportOutcome(cmd, threadID, out, err)
}
