// Package handle implements citc's process-wide object & handle table:
// an opaque-integer registry of kernel-like
// objects behind a readers-writer discipline, with smallest-free-handle
// reuse and reference-counted close semantics.
package handle

import (
	"container/heap"
	"sync"

	"github.com/citcrun/citc/internal/winerr"
)

// H is an opaque handle value. Zero is never issued; Invalid is the
// sentinel for "no handle".
type H uint32

// Invalid is the reserved sentinel handle value.
const Invalid H = ^H(0)

// Object is satisfied by every kernel-like object kept behind a handle:
// files, events, mutexes, semaphores, threads, sockets, registry keys,
// mappings. Each carries its own strong reference count.
type Object interface {
	// Kind returns a short tag used for diagnostics and type assertions
	// at the ABI boundary (e.g. "file", "event", "mutex").
	Kind() string

	// Destroy releases the object's host-side resources. Called exactly
	// once, when the last strong reference is dropped and no thread is
	// waiting on it.
	Destroy()
}

// Waitable is implemented by objects that participate in
// WaitForSingleObject/WaitForMultipleObjects. It is satisfied by
// events, mutexes, semaphores and threads.
type Waitable interface {
	Object

	// Mutex returns the object's internal state mutex. Wait-all
	// acquires these in handle-value order across every object in the
	// set, to avoid lock-order inversion.
	Mutex() *sync.Mutex

	// Signaled reports whether the object is currently signaled. Must
	// be called with Mutex() held.
	Signaled() bool

	// Consume performs the "acquire" side effect for auto-reset events
	// and mutexes (clearing the signal / taking ownership). Manual-reset
	// events and threads implement this as a no-op. Must be called with
	// Mutex() held, and only when Signaled() was true.
	Consume(waiterThread uint32)

	// AddWaiter/RemoveWaiter record the waiters currently blocked on the
	// object. The wait loops in internal/kernel32 poll the object's state
	// and do not consult this record, so wake order among waiters is not
	// FIFO and is not otherwise defined.
	AddWaiter(token uint64)
	RemoveWaiter(token uint64)
	WaiterCount() int
}

type entry struct {
	obj      Object
	refs     int
	waiting  int // number of threads currently blocked on this object
	released bool
}

// freeHeap is a min-heap of reclaimed handle values, so allocation picks
// the smallest free positive integer in O(log n).
type freeHeap []H

func (f freeHeap) Len() int            { return len(f) }
func (f freeHeap) Less(i, j int) bool  { return f[i] < f[j] }
func (f freeHeap) Swap(i, j int)       { f[i], f[j] = f[j], f[i] }
func (f *freeHeap) Push(x interface{}) { *f = append(*f, x.(H)) }
func (f *freeHeap) Pop() interface{} {
	old := *f
	n := len(old)
	v := old[n-1]
	*f = old[:n-1]
	return v
}

// Table is the process-wide handle table. Lookup is lock-shared;
// allocation and closure are lock-exclusive.
type Table struct {
	mu      sync.RWMutex
	entries map[H]*entry
	next    H
	free    freeHeap
}

// NewTable builds an empty handle table. Handle values start at 1 (0 is
// never issued).
func NewTable() *Table {
	return &Table{
		entries: make(map[H]*entry),
		next:    1,
	}
}

// Open installs obj in the table with a single strong reference and
// returns its handle.
func (t *Table) Open(obj Object) H {
	t.mu.Lock()
	defer t.mu.Unlock()

	var h H
	if len(t.free) > 0 {
		h = heap.Pop(&t.free).(H)
	} else {
		h = t.next
		t.next++
	}
	t.entries[h] = &entry{obj: obj, refs: 1}
	return h
}

// Lookup returns the object behind h, or ok=false if h is unknown.
func (t *Table) Lookup(h H) (Object, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[h]
	if !ok || e.released {
		return nil, false
	}
	return e.obj, true
}

// Duplicate adds one strong reference to the object behind h.
func (t *Table) Duplicate(h H) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[h]
	if !ok || e.released {
		return winerr.New("Duplicate", winerr.NotFound, nil)
	}
	e.refs++
	return nil
}

// Close drops one strong reference from the object behind h. If that was
// the last reference and no thread is currently waiting on it, the
// object is destroyed immediately and the handle value is returned to
// the free list; otherwise destruction is deferred until the last
// waiter resolves (see ResolveWaiter).
func (t *Table) Close(h H) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[h]
	if !ok || e.released {
		return winerr.New("Close", winerr.NotFound, nil)
	}

	e.refs--
	if e.refs > 0 {
		return nil
	}

	if e.waiting > 0 {
		e.released = true
		return nil
	}

	e.obj.Destroy()
	delete(t.entries, h)
	heap.Push(&t.free, h)
	return nil
}

// EnterWait marks one more thread as blocked on h's object. Must be
// paired with LeaveWait.
func (t *Table) EnterWait(h H) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[h]; ok {
		e.waiting++
	}
}

// LeaveWait unmarks a blocked thread. If the object's last strong
// reference was already dropped while this was its final waiter, it is
// destroyed now.
func (t *Table) LeaveWait(h H) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[h]
	if !ok {
		return
	}
	e.waiting--
	if e.waiting == 0 && e.released {
		e.obj.Destroy()
		delete(t.entries, h)
		heap.Push(&t.free, h)
	}
}

// Count returns the number of live handles, for diagnostics/tests.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
