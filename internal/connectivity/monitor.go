package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
)

const subscriberBuffer = 16

// Event is one online/offline transition.
type Event struct {
	Online bool
	At     time.Time
	Source string
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithInterval sets the polling interval. Zero disables polling.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithProbeTimeout bounds each probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithNetlink enables re-probing on kernel network interface events.
func WithNetlink(enabled bool) Option {
	return func(m *Monitor) { m.watchNetlink = enabled }
}

// Monitor tracks reachability of the remote service.
type Monitor struct {
	prober       Prober
	interval     time.Duration
	timeout      time.Duration
	watchNetlink bool
	logger       *slog.Logger

	mu          sync.Mutex
	online      bool
	lastReason  string
	subscribers map[int]chan Event
	nextSubID   int
	callbacks   []func(Event)

	kick    chan struct{}
	netlink *netlinkWatcher

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New returns a Monitor that is offline until Start or Report says otherwise.
func New(prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober:      prober,
		interval:    5 * time.Second,
		timeout:     3 * time.Second,
		logger:      logging.NewNop(),
		subscribers: make(map[int]chan Event),
		kick:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "connectivity")
	if m.watchNetlink {
		m.netlink = newNetlinkWatcher(m.logger, func(string) { m.Recheck() })
	}
	return m
}

// NewConfigured builds a Monitor dialling the configured probe address.
func NewConfigured(cfg *config.Config, logger *slog.Logger) *Monitor {
	prober := DialProber{Address: cfg.Connectivity.ProbeAddress, Timeout: cfg.ProbeTimeout()}
	return New(prober,
		WithInterval(cfg.ProbeInterval()),
		WithProbeTimeout(cfg.ProbeTimeout()),
		WithNetlink(cfg.Connectivity.WatchNetlink),
		WithLogger(logger),
	)
}

// Online reports the last known state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// LastReason returns the classification of the most recent probe result.
func (m *Monitor) LastReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReason
}

// Subscribe returns a channel receiving every subsequent transition and a
// function that unsubscribes and closes it. Slow subscribers miss events
// rather than block the monitor.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// OnChange registers fn to run synchronously on every transition.
func (m *Monitor) OnChange(fn func(Event)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// Report sets the state directly. It emits an event only on change.
func (m *Monitor) Report(online bool) {
	m.set(online, "report", "")
}

// Recheck asks the polling loop to probe now. It never blocks.
func (m *Monitor) Recheck() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Start seeds the state with one synchronous probe, then polls in the
// background until Stop or ctx is done.
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return nil
	}

	m.probeOnce(ctx, "seed")

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	if err := m.netlink.Start(loopCtx); err != nil {
		cancel()
		m.running = false
		return err
	}

	go m.loop(loopCtx, m.done)
	return nil
}

// Stop halts polling and the netlink watcher.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return
	}
	m.netlink.Stop()
	m.cancel()
	<-m.done
	m.running = false
}

// Running reports whether the polling loop is active.
func (m *Monitor) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			m.probeOnce(ctx, "interval")
		case <-m.kick:
			m.probeOnce(ctx, "recheck")
		}
	}
}

func (m *Monitor) probeOnce(ctx context.Context, source string) {
	if m.prober == nil {
		return
	}
	probeCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	err := m.prober.Probe(probeCtx)
	if ctx.Err() != nil {
		return
	}
	m.set(err == nil, source, Classify(err))
}

func (m *Monitor) set(online bool, source, reason string) {
	m.mu.Lock()
	if m.online == online {
		m.lastReason = reason
		m.mu.Unlock()
		return
	}
	m.online = online
	m.lastReason = reason
	event := Event{Online: online, At: time.Now().UTC(), Source: source}
	callbacks := append([]func(Event){}, m.callbacks...)
	for _, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			m.logger.Debug("dropping connectivity event for slow subscriber")
		}
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("remote reachable",
			logging.String(logging.FieldEventType, "connectivity_online"),
			logging.String("source", source),
		)
	} else {
		logging.WarnWithContext(m.logger, "remote unreachable", "connectivity_offline",
			logging.String("source", source),
			logging.String("reason", reason),
			logging.String(logging.FieldErrorHint, "queued mutations will sync once the maintenance API is reachable"),
			logging.String(logging.FieldImpact, "submissions deferred"),
		)
	}

	for _, fn := range callbacks {
		fn(event)
	}
}
