package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fieldsync/internal/ipc"
)

func newDeadLetterCommand(ctx *commandContext) *cobra.Command {
	deadCmd := &cobra.Command{
		Use:     "dead",
		Aliases: []string{"dead-letters"},
		Short:   "Inspect mutations dropped after exhausting retries",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List dead letters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DeadLetterList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Items)
				}
				out := cmd.OutOrStdout()
				if len(resp.Items) == 0 {
					fmt.Fprintln(out, "No dead letters")
					return nil
				}
				rows := make([][]string, 0, len(resp.Items))
				for _, letter := range resp.Items {
					rows = append(rows, []string{
						letter.ID,
						letter.Type,
						strconv.Itoa(letter.Retries),
						letter.FailedAt,
						letter.Reason,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Type", "Retries", "Failed At", "Reason"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	requeueCmd := &cobra.Command{
		Use:   "requeue <id>...",
		Short: "Move dead letters back into the queue with a fresh retry budget",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					resp, err := client.DeadLetterRequeue(id)
					if err != nil {
						return fmt.Errorf("requeue %s: %w", id, err)
					}
					fmt.Fprintf(out, "Requeued %s as %s\n", id, resp.ID)
				}
				return nil
			})
		},
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every dead letter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DeadLetterPurge()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d dead letters\n", resp.Removed)
				return nil
			})
		},
	}

	deadCmd.AddCommand(listCmd, requeueCmd, purgeCmd)
	return deadCmd
}
