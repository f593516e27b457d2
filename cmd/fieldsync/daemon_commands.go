package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fieldsync/internal/api"
	"fieldsync/internal/daemonrun"
	"fieldsync/internal/ipc"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if socket := ctx.socketPath(); socket != "" {
				cfg.Paths.SocketPath = socket
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Resume syncing in a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start()
				if err != nil {
					return err
				}
				if !resp.Started {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Sync started")
				return nil
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Pause syncing; the daemon keeps serving queue commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Sync stopped")
				return nil
			})
		},
	}

	var asJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, sync status, and queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				renderStatus(newStatusReport(out), status)
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatus(report *statusReport, status *api.DaemonStatus) {
	report.section("Daemon")
	running := statusOK
	if !status.Running {
		running = statusWarn
	}
	report.line("Sync running", running, yesNo(status.Running))
	report.line("PID", statusInfo, strconv.Itoa(status.PID))
	report.line("Remote", statusInfo, status.RemoteURL)

	report.section("Sync")
	snap := status.Snapshot
	connectivity := statusOK
	detail := "online via " + status.ProbeAddress
	if !snap.IsOnline {
		connectivity = statusWarn
		detail = "offline"
		if status.ConnectivityReason != "" {
			detail = fmt.Sprintf("offline (%s)", status.ConnectivityReason)
		}
	}
	report.line("Connectivity", connectivity, detail)
	report.line("Status", syncStatusKind(snap.SyncStatus), displayStatus(snap.SyncStatus))
	report.line("Queued", statusInfo, strconv.Itoa(len(snap.QueueItems)))
	deadKind := statusOK
	if status.DeadLetters > 0 {
		deadKind = statusWarn
	}
	report.line("Dead letters", deadKind, strconv.Itoa(status.DeadLetters))
	if last := status.LastPass; last != nil {
		kind := statusOK
		if last.Failed > 0 || last.Dropped > 0 {
			kind = statusWarn
		}
		report.line("Last pass", kind, fmt.Sprintf("%d attempted, %d delivered, %d failed, %d dropped (%dms)",
			last.Attempted, last.Succeeded, last.Failed, last.Dropped, last.DurationMS))
	}
	if status.LastError != "" {
		report.line("Last error", statusError, status.LastError)
	}

	report.section("Queue Database")
	report.line("Path", statusInfo, status.QueueDBPath)
	if db := status.Database; db != nil {
		kind := statusOK
		detail := db.IntegrityCheck
		if db.Error != "" || len(db.MissingTables) > 0 {
			kind = statusError
			detail = db.Error
			if len(db.MissingTables) > 0 {
				detail = fmt.Sprintf("missing tables %v", db.MissingTables)
			}
		}
		report.line("Integrity", kind, detail)
	}
}
