package kernel32

import "sync"

// CriticalSection is a recursive, in-process lock that never touches
// the handle table: InitializeCriticalSection/DeleteCriticalSection
// manage its lifetime directly in guest memory, unlike a MutexObject
// which is always reached through a handle.
type CriticalSection struct {
	mu    sync.Mutex
	owner uint32
	has   bool
	depth uint32
	cond  *sync.Cond
}

// NewCriticalSection backs one InitializeCriticalSection call.
func NewCriticalSection() *CriticalSection {
	cs := &CriticalSection{}
	cs.cond = sync.NewCond(&cs.mu)
	return cs
}

// Enter acquires the section, blocking if another thread holds it and
// recursing if the calling thread already does.
func (cs *CriticalSection) Enter() {
	tid := currentThreadID()
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for cs.has && cs.owner != tid {
		cs.cond.Wait()
	}
	cs.owner = tid
	cs.has = true
	cs.depth++
}

// TryEnter attempts Enter without blocking, reporting whether it
// succeeded.
func (cs *CriticalSection) TryEnter() bool {
	tid := currentThreadID()
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.has && cs.owner != tid {
		return false
	}
	cs.owner = tid
	cs.has = true
	cs.depth++
	return true
}

// Leave drops one level of recursion, releasing the section entirely
// once depth reaches zero.
func (cs *CriticalSection) Leave() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.depth--
	if cs.depth == 0 {
		cs.has = false
		cs.cond.Signal()
	}
}

// InitializeCriticalSection registers a fresh CriticalSection for the
// guest CRITICAL_SECTION structure living at addr. The guest never sees
// the real contents; citc only needs addr as a stable lookup key.
func (k *Subsystem) InitializeCriticalSection(addr uintptr) {
	k.csMu.Lock()
	defer k.csMu.Unlock()
	k.cs[addr] = NewCriticalSection()
}

// DeleteCriticalSection forgets the section at addr.
func (k *Subsystem) DeleteCriticalSection(addr uintptr) {
	k.csMu.Lock()
	defer k.csMu.Unlock()
	delete(k.cs, addr)
}

func (k *Subsystem) lookupCriticalSection(addr uintptr) *CriticalSection {
	k.csMu.Lock()
	defer k.csMu.Unlock()
	return k.cs[addr]
}

// EnterCriticalSection/LeaveCriticalSection/TryEnterCriticalSection
// resolve addr to its registered section. A guest that enters a
// section it never initialized gets a fresh section allocated lazily,
// matching the forgiving behavior real processes rely on when a
// section is initialized by a DLL the loader doesn't model.
func (k *Subsystem) EnterCriticalSection(addr uintptr) {
	k.ensureCriticalSection(addr).Enter()
}

func (k *Subsystem) LeaveCriticalSection(addr uintptr) {
	k.ensureCriticalSection(addr).Leave()
}

func (k *Subsystem) TryEnterCriticalSection(addr uintptr) bool {
	return k.ensureCriticalSection(addr).TryEnter()
}

func (k *Subsystem) ensureCriticalSection(addr uintptr) *CriticalSection {
	k.csMu.Lock()
	defer k.csMu.Unlock()
	cs, ok := k.cs[addr]
	if !ok {
		cs = NewCriticalSection()
		k.cs[addr] = cs
	}
	return cs
}
