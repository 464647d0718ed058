package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/planwise/planwise-api/internal/queue"
)

// DlqCmd builds the dead-letter queue command group.
func DlqCmd(q *queue.Queue) *cobra.Command {
	dlqCmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered jobs",
	}

	var limit, offset int

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := q.ListDeadLetters(cmd.Context(), limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list dead letters: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("Dead-letter queue is empty.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB ID\tPLAN ID\tATTEMPTS\tDEAD-LETTERED AT\tREPLAYED\tREASON")
			for _, entry := range entries {
				replayed := "no"
				if entry.ReplayedAt != nil {
					replayed = entry.ReplayedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					entry.JobID,
					entry.Payload.PlanID,
					entry.AttemptsMade,
					entry.DeadLetteredAt.Format("2006-01-02 15:04:05"),
					replayed,
					entry.FailureReason)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries to list")
	listCmd.Flags().IntVar(&offset, "offset", 0, "number of entries to skip")

	showCmd := &cobra.Command{
		Use:   "show [job-id]",
		Short: "Show a dead-lettered job including its full payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := q.GetDeadLetter(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load dead letter: %w", err)
			}

			out, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render dead letter: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	replayCmd := &cobra.Command{
		Use:   "replay [job-id]",
		Short: "Re-enqueue a dead-lettered payload as a fresh job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newJobID, err := q.ReplayDeadLetter(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to replay dead letter: %w", err)
			}

			fmt.Printf("Replayed %s as job %s\n", args[0], newJobID)
			return nil
		},
	}

	dlqCmd.AddCommand(listCmd)
	dlqCmd.AddCommand(showCmd)
	dlqCmd.AddCommand(replayCmd)
	return dlqCmd
}
