package syncer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fieldsync/internal/syncer"
)

func collect(t *testing.T, ch <-chan syncer.Transition, n int, timeout time.Duration) []syncer.Status {
	t.Helper()
	var got []syncer.Status
	deadline := time.After(timeout)
	for len(got) < n {
		select {
		case tr := <-ch:
			got = append(got, tr.To)
		case <-deadline:
			t.Fatalf("timed out after %v waiting for %d transitions, got %v", timeout, n, got)
		}
	}
	return got
}

func TestInitialStatusFollowsConnectivity(t *testing.T) {
	require.Equal(t, syncer.StatusOnline, syncer.NewStatusMachine(true, time.Second, time.Second, nil).Current())
	require.Equal(t, syncer.StatusOffline, syncer.NewStatusMachine(false, time.Second, time.Second, nil).Current())
}

func TestSyncedRevertsToOnline(t *testing.T) {
	sm := syncer.NewStatusMachine(true, 20*time.Millisecond, time.Hour, nil)
	defer sm.Close()
	ch, cancel := sm.Subscribe()
	defer cancel()

	require.True(t, sm.BeginPass())
	sm.FinishPass(true)

	got := collect(t, ch, 3, 2*time.Second)
	require.Equal(t, []syncer.Status{syncer.StatusSyncing, syncer.StatusSynced, syncer.StatusOnline}, got)
}

func TestFailedRevertsAfterFailedDelay(t *testing.T) {
	sm := syncer.NewStatusMachine(true, time.Hour, 20*time.Millisecond, nil)
	defer sm.Close()

	sm.BeginPass()
	sm.FinishPass(false)
	require.Equal(t, syncer.StatusFailed, sm.Current())
	require.Eventually(t, func() bool { return sm.Current() == syncer.StatusOnline }, 2*time.Second, 5*time.Millisecond)
}

func TestRevertSkippedWhenNoLongerOnline(t *testing.T) {
	var online atomic.Bool
	sm := syncer.NewStatusMachine(true, 10*time.Millisecond, 10*time.Millisecond, online.Load)
	defer sm.Close()

	sm.BeginPass()
	sm.FinishPass(true)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, syncer.StatusSynced, sm.Current())
}

func TestGoOfflinePreemptsPendingRevert(t *testing.T) {
	sm := syncer.NewStatusMachine(true, 30*time.Millisecond, 30*time.Millisecond, nil)
	defer sm.Close()

	sm.BeginPass()
	sm.FinishPass(true)
	sm.GoOffline()
	time.Sleep(80 * time.Millisecond)
	require.Equal(t, syncer.StatusOffline, sm.Current())
}

func TestFinishPassWhileOfflineStaysOffline(t *testing.T) {
	sm := syncer.NewStatusMachine(true, time.Millisecond, time.Millisecond, nil)
	defer sm.Close()

	sm.BeginPass()
	sm.GoOffline()
	sm.FinishPass(true)
	require.Equal(t, syncer.StatusOffline, sm.Current())
	require.False(t, sm.BeginPass())
}

func TestGoOnlineOnlyLeavesOffline(t *testing.T) {
	sm := syncer.NewStatusMachine(false, time.Hour, time.Hour, nil)
	defer sm.Close()

	sm.GoOnline()
	require.Equal(t, syncer.StatusOnline, sm.Current())
	sm.BeginPass()
	sm.GoOnline()
	require.Equal(t, syncer.StatusSyncing, sm.Current())
}
