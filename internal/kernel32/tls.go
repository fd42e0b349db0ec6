package kernel32

import (
	"sync"

	"github.com/citcrun/citc/internal/winerr"
)

// tlsSlots bounds the Win32 TLS index pool, matching the real Windows
// limit of TLS_MINIMUM_AVAILABLE.
const tlsSlots = 64

// threadLocal implements the Win32 Tls* API: a bounded pool of indices,
// and a per-host-thread vector of pointer-sized cells. An index is
// allocated from the pool, read and written per-thread, and returned
// to the pool on free.
//
// This is distinct from the PE image's own TLS template (handled in
// internal/loader) -- Windows overloads the term "TLS" for both the
// linker-driven per-image template and this dynamic API.
type threadLocal struct {
	mu       sync.Mutex
	freeMask uint64 // bit i set => index i is free
	byThread map[uint32][tlsSlots]uintptr
}

func newThreadLocal() *threadLocal {
	return &threadLocal{
		freeMask: (uint64(1) << tlsSlots) - 1,
		byThread: make(map[uint32][tlsSlots]uintptr),
	}
}

func (t *threadLocal) attachThread() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byThread[currentThreadID()] = [tlsSlots]uintptr{}
}

func (t *threadLocal) detachThread() {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byThread, currentThreadID())
}

// TlsAlloc reserves the lowest free index.
func (k *Subsystem) TlsAlloc() (uint32, error) {
	t := k.tlsCur
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.freeMask == 0 {
		k.setLastError(winerr.ResourceExhausted)
		return 0, winerr.New("TlsAlloc", winerr.ResourceExhausted, nil)
	}
	for i := 0; i < tlsSlots; i++ {
		if t.freeMask&(1<<uint(i)) != 0 {
			t.freeMask &^= 1 << uint(i)
			k.setLastError(winerr.OK)
			return uint32(i), nil
		}
	}
	panic("unreachable: freeMask nonzero but no bit found")
}

// TlsFree returns index to the pool.
func (k *Subsystem) TlsFree(index uint32) error {
	t := k.tlsCur
	t.mu.Lock()
	defer t.mu.Unlock()

	if index >= tlsSlots {
		k.setLastError(winerr.MalformedInput)
		return winerr.New("TlsFree", winerr.MalformedInput, nil)
	}
	t.freeMask |= 1 << index
	k.setLastError(winerr.OK)
	return nil
}

// TlsGetValue/TlsSetValue operate on the calling host thread's own cell
// at index.
func (k *Subsystem) TlsGetValue(index uint32) uintptr {
	t := k.tlsCur
	t.mu.Lock()
	defer t.mu.Unlock()

	slots, ok := t.byThread[currentThreadID()]
	if !ok || index >= tlsSlots {
		k.setLastError(winerr.StateInvalid)
		return 0
	}
	k.setLastError(winerr.OK)
	return slots[index]
}

func (k *Subsystem) TlsSetValue(index uint32, value uintptr) error {
	t := k.tlsCur
	t.mu.Lock()
	defer t.mu.Unlock()

	if index >= tlsSlots {
		k.setLastError(winerr.MalformedInput)
		return winerr.New("TlsSetValue", winerr.MalformedInput, nil)
	}
	slots := t.byThread[currentThreadID()]
	slots[index] = value
	t.byThread[currentThreadID()] = slots
	k.setLastError(winerr.OK)
	return nil
}
