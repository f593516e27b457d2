package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"fieldsync/internal/config"
	"fieldsync/internal/daemon"
	"fieldsync/internal/ipc"
	"fieldsync/internal/logging"
	"fieldsync/internal/preflight"
	"fieldsync/internal/queue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel    string
	Development bool
}

// Run starts the fieldsync daemon and blocks until SIGINT, SIGTERM, ctx
// cancellation, or a supervised component failure.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogPath()},
		Development: opts.Development,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("run_id", uuid.NewString()))
	logConfigSnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "fieldsyncd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open queue store", "queue_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on "+cfg.QueueDBPath()),
		)
		return err
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	failed := make(chan error, 1)
	go func() {
		failed <- d.Wait()
	}()

	// A nil Wait means sync was stopped over IPC; keep serving until signalled.
	select {
	case <-signalCtx.Done():
	case err := <-failed:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(logger, "daemon component failed", "daemon_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check api_bind for port conflicts"),
			)
			return err
		}
		<-signalCtx.Done()
	}
	logger.Info("fieldsync daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("remote_url", cfg.Remote.BaseURL),
		logging.Bool("remote_token_present", cfg.Remote.Token != ""),
		logging.String("probe_address", cfg.Connectivity.ProbeAddress),
		logging.Bool("watch_netlink", cfg.Connectivity.WatchNetlink),
		logging.Duration("sync_interval", cfg.SyncInterval()),
		logging.Int("max_retries", cfg.Sync.MaxRetries),
		logging.Bool("dead_letter", cfg.Sync.DeadLetter),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", cfg.Paths.APIToken != ""),
		logging.String("socket", cfg.Paths.SocketPath),
	)
}

// logPreflight warns about failed checks. They never block startup.
func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run fieldsync config validate --checks"),
			logging.String(logging.FieldImpact, "mutations stay queued until the check passes"),
		)
	}
}
