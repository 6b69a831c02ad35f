package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newThreadsCmd() *cobra.Command {
	threads := &cobra.Command{
		Use:   "threads",
		Short: "Inspect persisted threads",
	}
	threads.AddCommand(newThreadsListCmd())
	return threads
}

func newThreadsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List threads, most recently updated first",
		RunE:  runThreadsList,
	}
}

func runThreadsList(cmd *cobra.Command, args []string) error {
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

	records, err := w.store.Threads(ctx)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "THREAD ID\tSTATUS\tMESSAGES\tUPDATED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ThreadID, r.Status, r.MessageCount, r.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
