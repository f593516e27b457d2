package connectivity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"fieldsync/internal/logging"
)

// netlinkWatcher listens for kernel uevents on the net subsystem and calls
// onChange for every interface add, remove, or state change.
type netlinkWatcher struct {
	logger   *slog.Logger
	onChange func(iface string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newNetlinkWatcher(logger *slog.Logger, onChange func(iface string)) *netlinkWatcher {
	return &netlinkWatcher{
		logger:   logging.NewComponentLogger(logger, "netlink-watcher"),
		onChange: onChange,
	}
}

// Start connects to the kernel uevent socket. Failure is logged and leaves
// the monitor on interval polling alone.
func (w *netlinkWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.KernelEvent); err != nil {
		logging.WarnWithContext(w.logger, "failed to connect to netlink socket; relying on interval probes",
			"netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open NETLINK_KOBJECT_UEVENT sockets"),
			logging.String(logging.FieldImpact, "network changes detected only on the next probe interval"),
		)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.watchLoop(ctx, conn, quit)

	w.logger.Info("netlink watcher started",
		logging.String(logging.FieldEventType, "netlink_watcher_started"),
	)
	return nil
}

// Stop closes the uevent socket.
func (w *netlinkWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.quit)
	w.quit = nil
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false

	w.logger.Info("netlink watcher stopped",
		logging.String(logging.FieldEventType, "netlink_watcher_stopped"),
	)
}

// Running reports whether the watcher holds an open socket.
func (w *netlinkWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *netlinkWatcher) watchLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(events, errs, buildNetMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			w.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(w.logger, "netlink watcher error",
				"netlink_watcher_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "network changes may be detected late"),
			)
		}
	}
}

// buildNetMatcher matches SUBSYSTEM=net with ACTION add|remove|change|move|online|offline.
func buildNetMatcher() netlink.Matcher {
	action := "add|remove|change|move|online|offline"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func (w *netlinkWatcher) handleEvent(uevent netlink.UEvent) {
	iface := uevent.Env["INTERFACE"]
	if iface == "lo" {
		return
	}
	w.logger.Debug("network interface event",
		logging.String("interface", iface),
		logging.String("action", string(uevent.Action)),
	)
	if w.onChange != nil {
		w.onChange(iface)
	}
}
