package syncer

import (
	"sync"
	"time"
)

// Status is the aggregate sync state shown to users.
type Status string

const (
	StatusOffline Status = "offline"
	StatusOnline  Status = "online"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// Transition records one status change.
type Transition struct {
	From Status    `json:"from"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
}

// StatusMachine serializes status changes and owns the revert timers for the
// transient Synced and Failed states.
type StatusMachine struct {
	syncedDelay time.Duration
	failedDelay time.Duration
	isOnline    func() bool

	mu          sync.Mutex
	status      Status
	generation  uint64
	timer       *time.Timer
	subscribers map[int]chan Transition
	nextSubID   int
}

// NewStatusMachine seeds the state from the current connectivity. isOnline is
// consulted when a revert timer fires.
func NewStatusMachine(online bool, syncedDelay, failedDelay time.Duration, isOnline func() bool) *StatusMachine {
	initial := StatusOffline
	if online {
		initial = StatusOnline
	}
	if isOnline == nil {
		isOnline = func() bool { return true }
	}
	return &StatusMachine{
		syncedDelay: syncedDelay,
		failedDelay: failedDelay,
		isOnline:    isOnline,
		status:      initial,
		subscribers: make(map[int]chan Transition),
	}
}

// Current returns the present status.
func (s *StatusMachine) Current() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Subscribe returns a channel of subsequent transitions and a cancel func.
// Transitions are dropped for subscribers that fall behind.
func (s *StatusMachine) Subscribe() (<-chan Transition, func()) {
	ch := make(chan Transition, 32)
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// GoOnline moves Offline to Online. Other states are left alone.
func (s *StatusMachine) GoOnline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusOffline {
		s.setLocked(StatusOnline)
	}
}

// GoOffline moves any state to Offline and cancels a pending revert.
func (s *StatusMachine) GoOffline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked()
	s.setLocked(StatusOffline)
}

// BeginPass moves to Syncing unless offline. It reports whether the change
// was applied.
func (s *StatusMachine) BeginPass() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusOffline {
		return false
	}
	s.cancelTimerLocked()
	s.setLocked(StatusSyncing)
	return true
}

// FinishPass moves Syncing to Synced or Failed and arms the revert timer. A
// pass that finishes after connectivity dropped leaves the status Offline.
func (s *StatusMachine) FinishPass(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusOffline {
		return
	}
	next, delay := StatusSynced, s.syncedDelay
	if !ok {
		next, delay = StatusFailed, s.failedDelay
	}
	s.cancelTimerLocked()
	s.setLocked(next)

	gen := s.generation
	s.timer = time.AfterFunc(delay, func() { s.revert(gen) })
}

// revert returns a transient state to Online if nothing superseded it.
func (s *StatusMachine) revert(gen uint64) {
	online := s.isOnline()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.timer = nil
	if !online {
		return
	}
	if s.status == StatusSynced || s.status == StatusFailed {
		s.setLocked(StatusOnline)
	}
}

// Close stops any pending revert timer.
func (s *StatusMachine) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked()
}

func (s *StatusMachine) cancelTimerLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *StatusMachine) setLocked(next Status) {
	if s.status == next {
		return
	}
	tr := Transition{From: s.status, To: next, At: time.Now().UTC()}
	s.status = next
	for _, ch := range s.subscribers {
		select {
		case ch <- tr:
		default:
		}
	}
}
