package kernel32

import (
	"sort"
	"sync"
	"time"

	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winerr"
)

// Infinite is the wait-forever timeout sentinel passed to
// WaitForSingleObject/WaitForMultipleObjects, mirroring Win32's
// INFINITE (0xFFFFFFFF milliseconds) without overflowing a
// time.Duration conversion.
const Infinite time.Duration = -1

// EventObject is a manual- or auto-reset event. An auto-reset event
// clears itself the instant a single waiter consumes it; a
// manual-reset event stays signaled until ResetEvent.
type EventObject struct {
	mu        sync.Mutex
	cond      *sync.Cond
	manual    bool
	signaled  bool
	waiters   int
	waitOrder []uint64
}

func NewEventObject(manual, initial bool) *EventObject {
	e := &EventObject{manual: manual, signaled: initial}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *EventObject) Kind() string      { return "event" }
func (e *EventObject) Destroy()          {}
func (e *EventObject) Mutex() *sync.Mutex { return &e.mu }
func (e *EventObject) Signaled() bool    { return e.signaled }

func (e *EventObject) Consume(_ uint32) {
	if !e.manual {
		e.signaled = false
	}
}

func (e *EventObject) AddWaiter(token uint64) {
	e.waiters++
	e.waitOrder = append(e.waitOrder, token)
}

func (e *EventObject) RemoveWaiter(token uint64) {
	e.waiters--
	for i, t := range e.waitOrder {
		if t == token {
			e.waitOrder = append(e.waitOrder[:i], e.waitOrder[i+1:]...)
			break
		}
	}
}

func (e *EventObject) WaiterCount() int { return e.waiters }

// SetEvent signals the event and wakes its waiters.
func (e *EventObject) SetEvent() {
	e.mu.Lock()
	e.signaled = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

// ResetEvent clears the signal.
func (e *EventObject) ResetEvent() {
	e.mu.Lock()
	e.signaled = false
	e.mu.Unlock()
}

// MutexObject is a recursive, owning-thread mutex reachable through the
// handle table -- distinct from CriticalSection (critsec.go), which
// never enters it.
type MutexObject struct {
	mu          sync.Mutex
	cond        *sync.Cond
	owner       uint32
	hasOwner    bool
	recurseCnt  uint32
	waiters     int
}

func NewMutexObject(ownedByCaller bool, ownerTID uint32) *MutexObject {
	m := &MutexObject{}
	m.cond = sync.NewCond(&m.mu)
	if ownedByCaller {
		m.hasOwner = true
		m.owner = ownerTID
		m.recurseCnt = 1
	}
	return m
}

func (m *MutexObject) Kind() string       { return "mutex" }
func (m *MutexObject) Destroy()           {}
func (m *MutexObject) Mutex() *sync.Mutex { return &m.mu }

// Signaled for a mutex means "unowned". Re-acquisition by the thread
// that already owns it is handled separately, through ownedByCaller.
func (m *MutexObject) Signaled() bool {
	return !m.hasOwner
}

func (m *MutexObject) Consume(waiterThread uint32) {
	m.hasOwner = true
	m.owner = waiterThread
	m.recurseCnt = 1
}

func (m *MutexObject) AddWaiter(_ uint64)    { m.waiters++ }
func (m *MutexObject) RemoveWaiter(_ uint64) { m.waiters-- }
func (m *MutexObject) WaiterCount() int      { return m.waiters }

// ownedByCaller reports whether tid already owns the mutex, the case
// Signaled cannot express on its own since the Waitable interface
// carries no thread identity; WaitForSingleObject/WaitForMultipleObjects
// consult this directly to let an owning thread recurse without
// deadlocking against its own acquisition.
func (m *MutexObject) ownedByCaller(tid uint32) bool {
	return m.hasOwner && m.owner == tid
}

// recurse bumps the recursion depth for an already-owning thread.
func (m *MutexObject) recurse() {
	m.recurseCnt++
}

// ReleaseMutex drops one level of recursive ownership, returning
// StateInvalid if the calling thread does not own it.
func (m *MutexObject) ReleaseMutex(callerTID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasOwner || m.owner != callerTID {
		return winerr.New("ReleaseMutex", winerr.StateInvalid, nil)
	}
	m.recurseCnt--
	if m.recurseCnt == 0 {
		m.hasOwner = false
		m.cond.Broadcast()
	}
	return nil
}

// SemaphoreObject has a current count bounded by max; Release adds n
// (failing if that would exceed max), Wait decrements by one.
type SemaphoreObject struct {
	mu      sync.Mutex
	cond    *sync.Cond
	count   int64
	max     int64
	waiters int
}

func NewSemaphoreObject(initial, max int64) *SemaphoreObject {
	s := &SemaphoreObject{count: initial, max: max}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *SemaphoreObject) Kind() string       { return "semaphore" }
func (s *SemaphoreObject) Destroy()           {}
func (s *SemaphoreObject) Mutex() *sync.Mutex { return &s.mu }
func (s *SemaphoreObject) Signaled() bool     { return s.count > 0 }
func (s *SemaphoreObject) Consume(_ uint32)   { s.count-- }
func (s *SemaphoreObject) AddWaiter(_ uint64)    { s.waiters++ }
func (s *SemaphoreObject) RemoveWaiter(_ uint64) { s.waiters-- }
func (s *SemaphoreObject) WaiterCount() int      { return s.waiters }

// ReleaseSemaphore adds n to the count, returning the count as it stood
// before release. If the result would exceed max it fails with
// MalformedInput and leaves the count unchanged.
func (s *SemaphoreObject) ReleaseSemaphore(n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.count
	if s.count+n > s.max {
		return 0, winerr.New("ReleaseSemaphore", winerr.MalformedInput, nil)
	}
	s.count += n
	s.cond.Broadcast()
	return prev, nil
}

// CreateEvent opens a handle to a fresh EventObject.
func (k *Subsystem) CreateEvent(manual, initial bool) handle.H {
	return k.handles.Open(NewEventObject(manual, initial))
}

// CreateMutex opens a handle to a fresh MutexObject, optionally owned
// by the calling thread from the start.
func (k *Subsystem) CreateMutex(ownedByCaller bool) handle.H {
	return k.handles.Open(NewMutexObject(ownedByCaller, currentThreadID()))
}

// CreateSemaphore opens a handle to a fresh SemaphoreObject.
func (k *Subsystem) CreateSemaphore(initial, max int64) handle.H {
	return k.handles.Open(NewSemaphoreObject(initial, max))
}

// SetEvent/ResetEvent/ReleaseMutex/ReleaseSemaphore resolve a handle to
// its object and apply the corresponding signal-state transition.
func (k *Subsystem) SetEvent(h handle.H) error {
	obj, ok := k.handles.Lookup(h)
	if !ok {
		return winerr.New("SetEvent", winerr.NotFound, nil)
	}
	e, ok := obj.(*EventObject)
	if !ok {
		return winerr.New("SetEvent", winerr.MalformedInput, nil)
	}
	e.SetEvent()
	return nil
}

func (k *Subsystem) ResetEvent(h handle.H) error {
	obj, ok := k.handles.Lookup(h)
	if !ok {
		return winerr.New("ResetEvent", winerr.NotFound, nil)
	}
	e, ok := obj.(*EventObject)
	if !ok {
		return winerr.New("ResetEvent", winerr.MalformedInput, nil)
	}
	e.ResetEvent()
	return nil
}

func (k *Subsystem) ReleaseMutex(h handle.H) error {
	obj, ok := k.handles.Lookup(h)
	if !ok {
		return winerr.New("ReleaseMutex", winerr.NotFound, nil)
	}
	m, ok := obj.(*MutexObject)
	if !ok {
		return winerr.New("ReleaseMutex", winerr.MalformedInput, nil)
	}
	return m.ReleaseMutex(currentThreadID())
}

func (k *Subsystem) ReleaseSemaphore(h handle.H, n int64) (int64, error) {
	obj, ok := k.handles.Lookup(h)
	if !ok {
		return 0, winerr.New("ReleaseSemaphore", winerr.NotFound, nil)
	}
	s, ok := obj.(*SemaphoreObject)
	if !ok {
		return 0, winerr.New("ReleaseSemaphore", winerr.MalformedInput, nil)
	}
	return s.ReleaseSemaphore(n)
}

var waitTokenMu sync.Mutex
var waitTokenNext uint64

func nextWaitToken() uint64 {
	waitTokenMu.Lock()
	defer waitTokenMu.Unlock()
	waitTokenNext++
	return waitTokenNext
}

// WaitForSingleObject blocks the calling thread until h becomes
// signaled, or timeout elapses (Infinite to block forever).
func (k *Subsystem) WaitForSingleObject(h handle.H, timeout time.Duration) (winerr.Code, error) {
	obj, ok := k.handles.Lookup(h)
	if !ok {
		return winerr.NotFound, winerr.New("WaitForSingleObject", winerr.NotFound, nil)
	}
	w, ok := obj.(handle.Waitable)
	if !ok {
		return winerr.MalformedInput, winerr.New("WaitForSingleObject", winerr.MalformedInput, nil)
	}

	k.handles.EnterWait(h)
	defer k.handles.LeaveWait(h)

	deadline := time.Now().Add(timeout)
	token := nextWaitToken()
	tid := currentThreadID()

	w.Mutex().Lock()
	defer w.Mutex().Unlock()

	if m, ok := w.(*MutexObject); ok && m.ownedByCaller(tid) {
		m.recurse()
		return winerr.OK, nil
	}

	w.AddWaiter(token)
	defer w.RemoveWaiter(token)

	for !w.Signaled() {
		if timeout != Infinite && time.Now().After(deadline) {
			return winerr.TimedOut, nil
		}
		waitOnCond(w, timeout)
	}
	w.Consume(tid)
	return winerr.OK, nil
}

// waitOnCond releases the object's mutex, sleeps for one millisecond and
// re-locks it, so a timed wait can recheck its deadline; it polls
// because the Waitable interface does not expose the object's
// *sync.Cond.
func waitOnCond(w handle.Waitable, timeout time.Duration) {
	w.Mutex().Unlock()
	time.Sleep(time.Millisecond)
	w.Mutex().Lock()
}

// WaitForMultipleObjects waits on a set of handles, either for all of
// them (waitAll) or for the first one (returning its index). Locks are
// acquired in ascending handle-value order across the whole set to
// avoid lock-order inversion against a concurrent wait on an
// overlapping set.
func (k *Subsystem) WaitForMultipleObjects(handles []handle.H, waitAll bool, timeout time.Duration) (int, winerr.Code, error) {
	type member struct {
		idx int
		h   handle.H
		w   handle.Waitable
	}
	members := make([]member, 0, len(handles))
	for i, h := range handles {
		obj, ok := k.handles.Lookup(h)
		if !ok {
			return -1, winerr.NotFound, winerr.New("WaitForMultipleObjects", winerr.NotFound, nil)
		}
		w, ok := obj.(handle.Waitable)
		if !ok {
			return -1, winerr.MalformedInput, winerr.New("WaitForMultipleObjects", winerr.MalformedInput, nil)
		}
		members = append(members, member{i, h, w})
		k.handles.EnterWait(h)
	}
	defer func() {
		for _, m := range members {
			k.handles.LeaveWait(m.h)
		}
	}()

	sort.Slice(members, func(a, b int) bool { return members[a].h < members[b].h })
	for _, m := range members {
		m.w.Mutex().Lock()
	}
	defer func() {
		for i := len(members) - 1; i >= 0; i-- {
			members[i].w.Mutex().Unlock()
		}
	}()

	tid := currentThreadID()
	deadline := time.Now().Add(timeout)

	readyLocked := func(w handle.Waitable) bool {
		if m, ok := w.(*MutexObject); ok && m.ownedByCaller(tid) {
			return true
		}
		return w.Signaled()
	}
	consumeLocked := func(w handle.Waitable) {
		if m, ok := w.(*MutexObject); ok && m.ownedByCaller(tid) {
			m.recurse()
			return
		}
		w.Consume(tid)
	}

	for {
		if waitAll {
			allSignaled := true
			for _, m := range members {
				if !readyLocked(m.w) {
					allSignaled = false
					break
				}
			}
			if allSignaled {
				for _, m := range members {
					consumeLocked(m.w)
				}
				return -1, winerr.OK, nil
			}
		} else {
			for _, m := range members {
				if readyLocked(m.w) {
					consumeLocked(m.w)
					return m.idx, winerr.OK, nil
				}
			}
		}

		if timeout != Infinite && time.Now().After(deadline) {
			return -1, winerr.TimedOut, nil
		}
		for _, m := range members {
			m.w.Mutex().Unlock()
		}
		time.Sleep(time.Millisecond)
		for _, m := range members {
			m.w.Mutex().Lock()
		}
	}
}
