package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fieldsync/internal/api"
	"fieldsync/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage queued mutations",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List queued mutations in delivery order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Items)
				}
				out := cmd.OutOrStdout()
				if len(resp.Items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderQueueTable(resp.Items))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderQueueTable(items []api.QueueItem) string {
	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			item.ID,
			item.Type,
			strconv.Itoa(item.Retries),
			item.ScheduledAt,
			item.LastError,
		})
	}
	return renderTable(
		[]string{"#", "ID", "Type", "Retries", "Next Attempt", "Last Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var payloadFile string
	cmd := &cobra.Command{
		Use:   "add <type> [payload-json]",
		Short: "Queue a mutation for delivery",
		Long: "Queue a mutation for delivery. The payload is read from the second argument,\n" +
			"from --file, or from stdin when neither is given.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args, payloadFile)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(strings.TrimSpace(args[0]), payload)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", resp.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&payloadFile, "file", "f", "", "Read the payload from a JSON file")
	return cmd
}

func readPayload(stdin io.Reader, args []string, file string) (json.RawMessage, error) {
	var data []byte
	switch {
	case len(args) > 1 && file != "":
		return nil, errors.New("pass the payload as an argument or with --file, not both")
	case len(args) > 1:
		data = []byte(args[1])
	case file != "":
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		data = content
	default:
		content, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		data = content
	}
	data = []byte(strings.TrimSpace(string(data)))
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every queued mutation without delivering it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d queued mutations\n", resp.Removed)
				return nil
			})
		},
	}
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var noWait bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sync(!noWait)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				switch {
				case noWait && resp.Skipped == "requested":
					fmt.Fprintln(out, "Sync requested")
				case resp.Skipped != "":
					fmt.Fprintf(out, "Sync skipped: %s\n", resp.Skipped)
				case resp.Result != nil:
					r := resp.Result
					fmt.Fprintf(out, "Pass %s: %d attempted, %d delivered, %d failed, %d dropped\n",
						shortID(r.PassID), r.Attempted, r.Succeeded, r.Failed, r.Dropped)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Request a pass and return immediately")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
