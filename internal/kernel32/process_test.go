package kernel32

import (
	"testing"
	"time"

	"github.com/citcrun/citc/internal/winerr"
)

func TestSpawnThreadJoinAndExitCode(t *testing.T) {
	k := newTestSubsystem()

	h := k.SpawnThread(func(arg uintptr) uint32 {
		return uint32(arg) * 2
	}, 21, false)

	if code, err := k.JoinThread(h, 2*time.Second); err != nil || code != 0 {
		t.Fatalf("JoinThread = (%v, %v), want (OK, nil)", code, err)
	}

	exitCode, exited := k.GetExitCodeThread(h)
	if !exited {
		t.Fatalf("GetExitCodeThread reports not exited after Join returned")
	}
	if exitCode != 42 {
		t.Fatalf("exitCode = %d, want 42", exitCode)
	}
}

func TestSpawnThreadSuspendedNeverRuns(t *testing.T) {
	k := newTestSubsystem()
	ran := false

	h := k.SpawnThread(func(arg uintptr) uint32 {
		ran = true
		return 0
	}, 0, true)

	if code, err := k.JoinThread(h, 50*time.Millisecond); err != nil || code != winerr.TimedOut {
		t.Fatalf("JoinThread on a suspended thread = (%v, %v), want (TimedOut, nil)", code, err)
	}
	if ran {
		t.Fatalf("suspended thread's entry ran")
	}
}

func TestJoinThreadUnknownHandle(t *testing.T) {
	k := newTestSubsystem()
	if _, err := k.JoinThread(999, time.Second); err == nil {
		t.Fatalf("JoinThread succeeded against an unknown handle")
	}
}
