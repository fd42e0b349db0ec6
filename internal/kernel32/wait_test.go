package kernel32

import (
	"testing"
	"time"

	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winerr"
)

func TestWaitForSingleObjectAutoResetEvent(t *testing.T) {
	k := newTestSubsystem()
	h := k.CreateEvent(false, false)

	if err := k.SetEvent(h); err != nil {
		t.Fatalf("SetEvent failed: %v", err)
	}

	if code, err := k.WaitForSingleObject(h, time.Second); err != nil || code != winerr.OK {
		t.Fatalf("WaitForSingleObject = (%v, %v), want OK", code, err)
	}

	if _, err := k.WaitForSingleObject(h, 50*time.Millisecond); err != nil {
		t.Fatalf("unexpected error on second wait: %v", err)
	}
}

func TestWaitForSingleObjectManualResetStaysSignaled(t *testing.T) {
	k := newTestSubsystem()
	h := k.CreateEvent(true, false)

	k.SetEvent(h)

	for i := 0; i < 3; i++ {
		if code, err := k.WaitForSingleObject(h, time.Second); err != nil || code != winerr.OK {
			t.Fatalf("wait #%d = (%v, %v), want OK", i, code, err)
		}
	}
}

func TestWaitForSingleObjectTimesOut(t *testing.T) {
	k := newTestSubsystem()
	h := k.CreateEvent(true, false)

	code, err := k.WaitForSingleObject(h, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForSingleObject returned an error: %v", err)
	}
	if code != winerr.TimedOut {
		t.Fatalf("code = %v, want TimedOut", code)
	}
}

func TestMutexRecursiveOwnership(t *testing.T) {
	k := newTestSubsystem()
	h := k.CreateMutex(false)

	if _, err := k.WaitForSingleObject(h, time.Second); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if _, err := k.WaitForSingleObject(h, time.Second); err != nil {
		t.Fatalf("recursive acquire by owner failed: %v", err)
	}

	if err := k.ReleaseMutex(h); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	if err := k.ReleaseMutex(h); err != nil {
		t.Fatalf("second release failed: %v", err)
	}
	if err := k.ReleaseMutex(h); err == nil {
		t.Fatalf("release succeeded with no outstanding ownership")
	}
}

func TestSemaphoreReleaseBeyondMaxFails(t *testing.T) {
	k := newTestSubsystem()
	h := k.CreateSemaphore(1, 2)

	if _, err := k.WaitForSingleObject(h, time.Second); err != nil {
		t.Fatalf("wait failed: %v", err)
	}

	if _, err := k.ReleaseSemaphore(h, 3); err == nil {
		t.Fatalf("ReleaseSemaphore succeeded beyond max")
	}
	if _, err := k.ReleaseSemaphore(h, 1); err != nil {
		t.Fatalf("ReleaseSemaphore within max failed: %v", err)
	}
}

func TestWaitForMultipleObjectsWaitAll(t *testing.T) {
	k := newTestSubsystem()
	h1 := k.CreateEvent(true, true)
	h2 := k.CreateEvent(true, false)

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		k.SetEvent(h2)
		close(done)
	}()

	_, code, err := k.WaitForMultipleObjects([]handle.H{h1, h2}, true, time.Second)
	if err != nil {
		t.Fatalf("WaitForMultipleObjects failed: %v", err)
	}
	if code != winerr.OK {
		t.Fatalf("code = %v, want OK", code)
	}
	<-done
}
