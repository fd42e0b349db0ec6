package kernel32

import (
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winerr"
)

// currentThreadID returns the host kernel thread id for the calling
// goroutine. Guest threads are pinned to their OS thread with
// runtime.LockOSThread (see SpawnThread), so this stays stable for a
// guest thread's whole lifetime, matching GetCurrentThreadId's contract.
func currentThreadID() uint32 {
	return uint32(unix.Gettid())
}

// ThreadObject is the kernel object backing a thread handle.
type ThreadObject struct {
	mu        sync.Mutex
	hostTID   uint32
	startAddr uintptr
	arg       uintptr
	done      chan struct{}
	exitCode  uint32
	exited    bool

	waiters int
}

func (t *ThreadObject) Kind() string { return "thread" }
func (t *ThreadObject) Destroy()     {}

func (t *ThreadObject) Mutex() *sync.Mutex { return &t.mu }

// Signaled for a thread object means "has exited", per Windows semantics
// (thread handles become signaled on exit, and remain so -- they behave
// like a manual-reset event, never consumed).
func (t *ThreadObject) Signaled() bool          { return t.exited }
func (t *ThreadObject) Consume(_ uint32)        {}
func (t *ThreadObject) AddWaiter(_ uint64)      { t.waiters++ }
func (t *ThreadObject) RemoveWaiter(_ uint64)   { t.waiters-- }
func (t *ThreadObject) WaiterCount() int        { return t.waiters }

// ThreadStart is the function a spawned thread runs: the guest's start
// address, invoked through internal/abi with the Microsoft x64
// convention and a single argument.
type ThreadStart func(arg uintptr) uint32

// SpawnThread creates a new host thread running entry(arg), optionally
// starting suspended (left parked until ResumeThread, not yet
// implemented beyond the create-suspended flag itself: a suspended
// thread simply never runs its entry; this is a recorded limitation,
// not a silent one).
func (k *Subsystem) SpawnThread(entry ThreadStart, arg uintptr, suspended bool) handle.H {
	obj := &ThreadObject{
		startAddr: 0,
		arg:       arg,
		done:      make(chan struct{}),
	}
	h := k.handles.Open(obj)

	if suspended {
		return h
	}

	go func() {
		runtime.LockOSThread()
		obj.mu.Lock()
		obj.hostTID = currentThreadID()
		obj.mu.Unlock()

		k.tlsCur.attachThread()
		defer k.tlsCur.detachThread()

		if k.threadLifecycle != nil {
			k.threadLifecycle(ThreadAttach)
			defer k.threadLifecycle(ThreadDetach)
		}

		code := entry(arg)

		obj.mu.Lock()
		obj.exitCode = code
		obj.exited = true
		obj.mu.Unlock()
		close(obj.done)
	}()

	return h
}

// JoinThread blocks until the thread behind h exits or timeout elapses.
func (k *Subsystem) JoinThread(h handle.H, timeout time.Duration) (winerr.Code, error) {
	obj, ok := k.lookupThread(h)
	if !ok {
		return winerr.Unreachable, winerr.New("JoinThread", winerr.NotFound, nil)
	}

	if timeout < 0 {
		<-obj.done
		return winerr.OK, nil
	}

	select {
	case <-obj.done:
		return winerr.OK, nil
	case <-time.After(timeout):
		return winerr.TimedOut, nil
	}
}

// GetExitCodeThread returns the thread's exit code, valid only after it
// has exited.
func (k *Subsystem) GetExitCodeThread(h handle.H) (uint32, bool) {
	obj, ok := k.lookupThread(h)
	if !ok {
		return 0, false
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.exitCode, obj.exited
}

func (k *Subsystem) lookupThread(h handle.H) (*ThreadObject, bool) {
	obj, ok := k.handles.Lookup(h)
	if !ok {
		return nil, false
	}
	th, ok := obj.(*ThreadObject)
	return th, ok
}
