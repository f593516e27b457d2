package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"fieldsync/internal/api"
	"fieldsync/internal/config"
	"fieldsync/internal/connectivity"
	"fieldsync/internal/logging"
	"fieldsync/internal/mutation"
	"fieldsync/internal/notifications"
	"fieldsync/internal/queue"
	"fieldsync/internal/remote"
	"fieldsync/internal/syncer"
)

// Daemon wires the queue, connectivity monitor, and sync orchestrator into a
// single lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	queue   *queue.Manager
	monitor *connectivity.Monitor
	status  *syncer.StatusMachine
	syncer  *syncer.Orchestrator
	service *api.SyncService
	api     *apiServer
	notify  notifications.Service

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// Option customizes daemon construction.
type Option func(*options)

type options struct {
	submitter remote.Submitter
	monitor   *connectivity.Monitor
	registry  *mutation.Registry
	notifier  notifications.Service
}

// WithSubmitter replaces the HTTP client used to replay mutations.
func WithSubmitter(s remote.Submitter) Option {
	return func(o *options) { o.submitter = s }
}

// WithMonitor replaces the configured connectivity monitor.
func WithMonitor(m *connectivity.Monitor) Option {
	return func(o *options) { o.monitor = m }
}

// WithRegistry replaces the built-in mutation registry.
func WithRegistry(r *mutation.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithNotifier replaces the ntfy service built from config.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = mutation.DefaultRegistry()
	}
	if o.submitter == nil {
		o.submitter = remote.NewConfiguredClient(cfg, o.registry)
	}
	if o.monitor == nil {
		o.monitor = connectivity.NewConfigured(cfg, logger)
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg)
	}

	mgr := queue.NewManager(store,
		queue.WithRegistry(o.registry),
		queue.WithLogger(logger),
	)
	status := syncer.NewStatusMachine(o.monitor.Online(), cfg.SyncedDisplay(), cfg.FailedDisplay(), o.monitor.Online)
	syncOpts := syncer.OptionsFromConfig(cfg, logger)
	syncOpts.Notifier = o.notifier
	orch := syncer.New(mgr, o.submitter, o.monitor, status, syncOpts)
	// Sync stays paused until Start.
	orch.Pause()

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		queue:    mgr,
		monitor:  o.monitor,
		status:   status,
		syncer:   orch,
		service:  api.NewSyncService(mgr, orch, status, o.monitor),
		notify:   o.notifier,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d.service, d.Status, logger)
	return d, nil
}

// Start acquires the daemon lock, seeds connectivity, and launches the
// orchestrator and HTTP API under one supervision group.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fieldsync daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.monitor.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start connectivity monitor: %w", err)
	}
	if err := d.api.listen(); err != nil {
		cancel()
		d.monitor.Stop()
		_ = d.lock.Unlock()
		return err
	}

	// Resume before Run is scheduled so a manual sync right after Start is
	// not refused.
	d.syncer.Resume()
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return d.syncer.Run(groupCtx)
	})
	group.Go(func() error {
		return d.api.serve(groupCtx)
	})

	d.cancel = cancel
	d.group = group
	d.running.Store(true)
	d.logger.Info("fieldsync daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("queue_db", d.store.Path()),
		logging.String("api", d.api.address()),
		logging.Bool("online", d.monitor.Online()),
	)
	return nil
}

// Stop pauses sync, cancels background work, waits for admitted passes to
// finish, and releases the daemon lock. The queue stays usable.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.group != nil {
		if err := d.group.Wait(); err != nil {
			logging.WarnWithContext(d.logger, "daemon component exited with error", "daemon_component_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect earlier log lines for the failing component"),
				logging.String(logging.FieldImpact, "sync stopped before shutdown was requested"),
			)
		}
		d.group = nil
	}
	// Manual syncs and enqueue nudges may still hold passes.
	d.syncer.Pause()
	d.monitor.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
			logging.String(logging.FieldImpact, "next daemon start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("fieldsync daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Wait blocks until a supervised component fails or the daemon stops.
func (d *Daemon) Wait() error {
	d.mu.Lock()
	group := d.group
	d.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.status.Close()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Service exposes the observer contract used by the IPC and HTTP surfaces.
func (d *Daemon) Service() *api.SyncService {
	return d.service
}

// Monitor exposes the connectivity monitor.
func (d *Daemon) Monitor() *connectivity.Monitor {
	return d.monitor
}

// APIAddress returns the bound HTTP address, or "" when the API is disabled
// or not listening.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification publishes a test event and reports whether it was sent.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if !notifications.Enabled(d.notify) {
		return false, "Notifications disabled: set notifications.ntfy_topic", nil
	}
	if err := d.notify.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "", fmt.Errorf("send test notification: %w", err)
	}
	return true, "", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:            d.running.Load(),
		PID:                os.Getpid(),
		QueueDBPath:        d.store.Path(),
		LockFilePath:       d.lockPath,
		RemoteURL:          d.cfg.Remote.BaseURL,
		ProbeAddress:       d.cfg.Connectivity.ProbeAddress,
		ConnectivityReason: d.monitor.LastReason(),
		PassInProgress:     d.service.PassInProgress(),
	}
	status.LastPass, status.LastError = d.service.LastPass()

	snapshot, err := d.service.Snapshot(ctx)
	if err != nil {
		status.LastError = err.Error()
	}
	status.Snapshot = snapshot

	health, err := d.store.CheckHealth(ctx)
	if err != nil && health.Error == "" {
		health.Error = err.Error()
	}
	status.DeadLetters = health.DeadLetters
	status.Database = api.FromDatabaseHealth(health)
	return status
}
