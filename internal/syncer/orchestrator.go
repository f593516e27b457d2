package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"fieldsync/internal/clock"
	"fieldsync/internal/config"
	"fieldsync/internal/connectivity"
	"fieldsync/internal/logging"
	"fieldsync/internal/notifications"
	"fieldsync/internal/queue"
	"fieldsync/internal/remote"
)

var (
	// ErrOffline is returned by RunPass when the remote is unreachable.
	ErrOffline = errors.New("remote unreachable")
	// ErrPassInProgress is returned by RunPass when another pass holds the guard.
	ErrPassInProgress = errors.New("sync pass already in progress")
	// ErrPaused is returned by RunPass while the orchestrator is paused.
	ErrPaused = errors.New("sync paused")
)

const dropReason = "retry budget exhausted"

// Queue is the slice of queue.Manager the orchestrator drives.
type Queue interface {
	ListDue(ctx context.Context, now time.Time) ([]*queue.Item, error)
	Remove(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, retries int, scheduledAt time.Time, lastErr string) error
	DeadLetter(ctx context.Context, item *queue.Item, reason string) error
}

// Connectivity reports reachability and its transitions.
type Connectivity interface {
	Online() bool
	Subscribe() (<-chan connectivity.Event, func())
}

// Options tunes the retry schedule and pass triggers.
type Options struct {
	MaxRetries    int
	BackoffBase   int
	BackoffUnit   time.Duration
	SubmitTimeout time.Duration
	Interval      time.Duration
	DeadLetter    bool
	Clock         clock.Clock
	Logger        *slog.Logger
	// Notifier is told about dropped items and aborted passes.
	Notifier notifications.Service
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:    5,
		BackoffBase:   2,
		BackoffUnit:   time.Second,
		SubmitTimeout: 30 * time.Second,
		Interval:      30 * time.Second,
		DeadLetter:    true,
	}
}

// OptionsFromConfig builds Options from the sync section.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		MaxRetries:    cfg.Sync.MaxRetries,
		BackoffBase:   cfg.Sync.BackoffBase,
		BackoffUnit:   cfg.BackoffUnit(),
		SubmitTimeout: cfg.SubmitTimeout(),
		Interval:      cfg.SyncInterval(),
		DeadLetter:    cfg.Sync.DeadLetter,
		Logger:        logger,
		Notifier:      notifications.NewService(cfg),
	}
}

// PassResult summarizes one completed pass.
type PassResult struct {
	PassID    string        `json:"passId"`
	StartedAt time.Time     `json:"startedAt"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Dropped   int           `json:"dropped"`
	Duration  time.Duration `json:"duration"`
}

// Clean reports whether every attempted item was delivered.
func (r PassResult) Clean() bool {
	return r.Failed == 0
}

// Orchestrator delivers due queue items with bounded exponential backoff.
type Orchestrator struct {
	queue     Queue
	submitter remote.Submitter
	conn      Connectivity
	status    *StatusMachine
	opts      Options
	clock     clock.Clock
	logger    *slog.Logger

	inProgress atomic.Bool
	running    atomic.Bool

	// gate orders admissions against Pause so passes is never added to
	// while Pause waits on it.
	gate   sync.Mutex
	paused bool
	passes sync.WaitGroup

	mu         sync.RWMutex
	lastResult *PassResult
	lastErr    error
}

// New wires an orchestrator. Zero-valued options fall back to defaults.
func New(q Queue, submitter remote.Submitter, conn Connectivity, status *StatusMachine, opts Options) *Orchestrator {
	defaults := DefaultOptions()
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaults.MaxRetries
	}
	if opts.BackoffBase < 1 {
		opts.BackoffBase = defaults.BackoffBase
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = defaults.BackoffUnit
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaults.SubmitTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.Noop()
	}
	return &Orchestrator{
		queue:     q,
		submitter: submitter,
		conn:      conn,
		status:    status,
		opts:      opts,
		clock:     clk,
		logger:    logging.NewComponentLogger(opts.Logger, "syncer"),
	}
}

// Status exposes the status machine driven by this orchestrator.
func (o *Orchestrator) Status() *StatusMachine {
	return o.status
}

// InProgress reports whether a pass currently holds the guard.
func (o *Orchestrator) InProgress() bool {
	return o.inProgress.Load()
}

// Running reports whether Run is watching connectivity and the interval timer.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Pause stops admitting passes and waits for admitted ones to finish.
func (o *Orchestrator) Pause() {
	o.gate.Lock()
	o.paused = true
	o.gate.Unlock()
	o.passes.Wait()
}

// Resume admits passes again.
func (o *Orchestrator) Resume() {
	o.gate.Lock()
	defer o.gate.Unlock()
	o.paused = false
}

// Paused reports whether passes are refused.
func (o *Orchestrator) Paused() bool {
	o.gate.Lock()
	defer o.gate.Unlock()
	return o.paused
}

func (o *Orchestrator) admit() error {
	o.gate.Lock()
	defer o.gate.Unlock()
	if o.paused {
		return ErrPaused
	}
	o.passes.Add(1)
	return nil
}

// LastResult returns the most recent completed pass and its error.
func (o *Orchestrator) LastResult() (*PassResult, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastResult == nil {
		return nil, o.lastErr
	}
	res := *o.lastResult
	return &res, o.lastErr
}

// Backoff returns the delay before the attempt following a failure that
// brought an item to retries.
func (o *Orchestrator) Backoff(retries int) time.Duration {
	delay := o.opts.BackoffUnit
	for i := 0; i < retries; i++ {
		delay *= time.Duration(o.opts.BackoffBase)
	}
	return delay
}

// RunPass performs one pass synchronously. Offline hosts get ErrOffline
// without any network call. ErrPaused and ErrPassInProgress mean another
// owner holds sync.
func (o *Orchestrator) RunPass(ctx context.Context) (PassResult, error) {
	if err := o.admit(); err != nil {
		return PassResult{}, err
	}
	defer o.passes.Done()
	return o.runPass(ctx)
}

func (o *Orchestrator) runPass(ctx context.Context) (PassResult, error) {
	if !o.conn.Online() {
		o.status.GoOffline()
		return PassResult{}, ErrOffline
	}
	if !o.inProgress.CompareAndSwap(false, true) {
		return PassResult{}, ErrPassInProgress
	}
	defer o.inProgress.Store(false)

	result := PassResult{PassID: uuid.NewString(), StartedAt: o.clock.Now()}
	ctx = logging.WithPassID(ctx, result.PassID)
	logger := logging.WithContext(ctx, o.logger)

	o.status.BeginPass()
	started := time.Now()

	swept, err := o.sweep(ctx, logger, &result)
	result.Duration = time.Since(started)

	ok := err == nil && result.Clean()
	if err == nil && ok {
		remaining, listErr := o.remainingDue(ctx, swept)
		if listErr != nil {
			err = listErr
			ok = false
		} else if remaining > 0 {
			ok = false
		}
	}
	o.status.FinishPass(ok)
	o.record(result, err)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "sync_pass_completed"),
		logging.Int("attempted", result.Attempted),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Int("dropped", result.Dropped),
		logging.Duration("duration", result.Duration),
	}
	switch {
	case err != nil:
		logging.ErrorWithContext(logger, "sync pass aborted", "sync_pass_aborted",
			append(attrs[1:], logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database health with fieldsync status"))...)
		if ctx.Err() == nil {
			o.notify(ctx, logger, notifications.EventPassAborted, notifications.Payload{"error": err.Error()})
		}
	case result.Attempted > 0:
		logger.Info("sync pass completed", logging.Args(attrs...)...)
	default:
		logger.Debug("sync pass found no due items", logging.Args(attrs...)...)
	}
	return result, err
}

// sweep submits every due item in order and returns the items it saw.
func (o *Orchestrator) sweep(ctx context.Context, logger *slog.Logger, result *PassResult) ([]*queue.Item, error) {
	due, err := o.queue.ListDue(ctx, o.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("list due items: %w", err)
	}

	for _, item := range due {
		if err := ctx.Err(); err != nil {
			return due, err
		}
		result.Attempted++
		submitErr := o.submit(ctx, item)
		if submitErr == nil {
			if err := o.queue.Remove(ctx, item.ID); err != nil {
				return due, fmt.Errorf("remove delivered item %s: %w", item.ID, err)
			}
			result.Succeeded++
			logger.Debug("item delivered",
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldMutationType, item.Type),
			)
			continue
		}
		if ctx.Err() != nil {
			// shutdown, not a delivery failure
			return due, ctx.Err()
		}

		result.Failed++
		dropped, err := o.recordFailure(ctx, logger, item, submitErr)
		if err != nil {
			return due, err
		}
		if dropped {
			result.Dropped++
		}
	}
	return due, nil
}

func (o *Orchestrator) submit(ctx context.Context, item *queue.Item) error {
	submitCtx, cancel := context.WithTimeout(ctx, o.opts.SubmitTimeout)
	defer cancel()
	submitCtx = remote.WithIdempotencyKey(logging.WithItemID(submitCtx, item.ID), item.ID)
	return o.submitter.Submit(submitCtx, item.Type, item.Payload)
}

// recordFailure bumps retries and either reschedules or drops the item. The
// read of item.Retries and the write happen with no other submission in
// between.
func (o *Orchestrator) recordFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, submitErr error) (bool, error) {
	retries := item.Retries + 1
	attrs := []logging.Attr{
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldMutationType, item.Type),
		logging.Int("retries", retries),
		logging.String("error_kind", remote.Kind(submitErr)),
		logging.Error(submitErr),
	}

	if retries >= o.opts.MaxRetries {
		item.Retries = retries
		item.LastError = submitErr.Error()
		var err error
		if o.opts.DeadLetter {
			err = o.queue.DeadLetter(ctx, item, fmt.Sprintf("%s: %v", dropReason, submitErr))
		} else {
			err = o.queue.Remove(ctx, item.ID)
		}
		if err != nil {
			return false, fmt.Errorf("drop item %s: %w", item.ID, err)
		}
		logging.WarnWithContext(logger, "mutation dropped after exhausting retries", "sync_item_dropped",
			append(attrs,
				logging.Bool("dead_lettered", o.opts.DeadLetter),
				logging.String(logging.FieldErrorHint, "inspect with fieldsync dead list and requeue once the cause is fixed"),
				logging.String(logging.FieldImpact, "mutation will not be retried automatically"),
			)...)
		o.notify(ctx, logger, notifications.EventItemDropped, notifications.Payload{
			"id":           item.ID,
			"type":         item.Type,
			"retries":      strconv.Itoa(retries),
			"error":        item.LastError,
			"deadLettered": strconv.FormatBool(o.opts.DeadLetter),
		})
		return true, nil
	}

	next := o.clock.Now().Add(o.Backoff(retries))
	if err := o.queue.Reschedule(ctx, item.ID, retries, next, submitErr.Error()); err != nil {
		return false, fmt.Errorf("reschedule item %s: %w", item.ID, err)
	}
	logging.WarnWithContext(logger, "mutation delivery failed; rescheduled", "sync_item_failed",
		append(attrs,
			logging.Time("scheduled_at", next),
			logging.String(logging.FieldErrorHint, "retries continue automatically with backoff"),
			logging.String(logging.FieldImpact, "mutation delayed"),
		)...)
	return false, nil
}

// notify publishes best effort; a failed alert never fails the pass.
func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := o.opts.Notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "operator was not alerted"),
		)
	}
}

// remainingDue counts swept items that are still due. Items enqueued while
// the pass ran belong to the next pass.
func (o *Orchestrator) remainingDue(ctx context.Context, swept []*queue.Item) (int, error) {
	due, err := o.queue.ListDue(ctx, o.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("list remaining due items: %w", err)
	}
	seen := make(map[string]struct{}, len(swept))
	for _, item := range swept {
		seen[item.ID] = struct{}{}
	}
	count := 0
	for _, item := range due {
		if _, ok := seen[item.ID]; ok {
			count++
		}
	}
	return count, nil
}

func (o *Orchestrator) record(result PassResult, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastResult = &result
	o.lastErr = err
}

// RequestPass starts a pass in the background and returns ErrPaused when
// passes are refused. Requests made while offline or during a pass are
// coalesced.
func (o *Orchestrator) RequestPass(ctx context.Context) error {
	if err := o.admit(); err != nil {
		return err
	}
	go func() {
		defer o.passes.Done()
		if _, err := o.runPass(ctx); err != nil && !errors.Is(err, ErrPassInProgress) && !errors.Is(err, ErrOffline) {
			o.logger.Debug("requested pass ended with error", logging.Error(err))
		}
	}()
	return nil
}

// Run resumes the orchestrator, then reacts to connectivity transitions and
// fires the interval timer until ctx is done. On return it pauses and waits
// for admitted passes.
func (o *Orchestrator) Run(ctx context.Context) error {
	events, unsubscribe := o.conn.Subscribe()
	defer unsubscribe()

	scheduler := cron.New(
		cron.WithLogger(cronLogger{logger: o.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: o.logger})),
	)
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", o.opts.Interval), func() {
		if !o.conn.Online() {
			return
		}
		_, _ = o.RunPass(ctx)
	}); err != nil {
		return fmt.Errorf("schedule interval pass: %w", err)
	}
	scheduler.Start()
	o.Resume()
	o.running.Store(true)
	defer func() {
		<-scheduler.Stop().Done()
		o.running.Store(false)
		o.Pause()
	}()

	if o.conn.Online() {
		o.status.GoOnline()
		_ = o.RequestPass(ctx)
	} else {
		o.status.GoOffline()
	}

	o.logger.Info("sync orchestrator started",
		logging.String(logging.FieldEventType, "syncer_started"),
		logging.Duration("interval", o.opts.Interval),
		logging.Int("max_retries", o.opts.MaxRetries),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Online {
				o.status.GoOnline()
				_ = o.RequestPass(ctx)
			} else {
				o.status.GoOffline()
			}
		}
	}
}

// cronLogger routes scheduler diagnostics through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("scheduler: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("scheduler: "+msg, append(keysAndValues, logging.Error(err))...)
}
