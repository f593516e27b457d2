package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"fieldsync/internal/clock"
)

// FakeClock is a manually advanced clock.
type FakeClock = clock.Fake

// NewFakeClock returns a FakeClock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return clock.NewFake(start)
}

// Submission records one call to FakeSubmitter.
type Submission struct {
	Type    string
	Payload json.RawMessage
	At      time.Time
}

// FakeSubmitter records submissions and returns scripted results.
type FakeSubmitter struct {
	mu      sync.Mutex
	calls   []Submission
	results []error
	fail    error
	gate    chan struct{}
	started chan struct{}
}

// NewFakeSubmitter returns a submitter that succeeds until told otherwise.
func NewFakeSubmitter() *FakeSubmitter {
	return &FakeSubmitter{started: make(chan struct{}, 64)}
}

// FailWith makes every later call return err. Nil restores success.
func (f *FakeSubmitter) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

// Script queues per-call results consumed before the FailWith default.
func (f *FakeSubmitter) Script(results ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, results...)
}

// Block makes calls wait until Release is called or their context ends.
func (f *FakeSubmitter) Block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

// Release unblocks waiting calls.
func (f *FakeSubmitter) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Started receives one value each time a call begins.
func (f *FakeSubmitter) Started() <-chan struct{} {
	return f.started
}

// Submit records the call and returns the scripted result.
func (f *FakeSubmitter) Submit(ctx context.Context, mutationType string, payload json.RawMessage) error {
	f.mu.Lock()
	f.calls = append(f.calls, Submission{
		Type:    mutationType,
		Payload: append(json.RawMessage(nil), payload...),
		At:      time.Now(),
	})
	gate := f.gate
	var result error
	if len(f.results) > 0 {
		result = f.results[0]
		f.results = f.results[1:]
	} else {
		result = f.fail
	}
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return result
}

// Calls returns a copy of the recorded submissions.
func (f *FakeSubmitter) Calls() []Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Submission(nil), f.calls...)
}

// CallCount returns the number of recorded submissions.
func (f *FakeSubmitter) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// ErrUnreachable is the default error StaticProber returns when offline.
var ErrUnreachable = errors.New("remote unreachable")

// StaticProber reports a fixed reachability that tests can flip.
type StaticProber struct {
	mu     sync.Mutex
	online bool
}

// NewStaticProber returns a prober reporting online.
func NewStaticProber(online bool) *StaticProber {
	return &StaticProber{online: online}
}

// Set changes the reported reachability.
func (p *StaticProber) Set(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

// Probe returns nil when online.
func (p *StaticProber) Probe(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online {
		return nil
	}
	return ErrUnreachable
}
