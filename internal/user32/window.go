// Package user32 implements window classes, per-thread message queues,
// dispatch, timers, painting and focus tracking.
package user32

import (
	"sync"

	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winerr"
)

// Rect is a GDI-style rectangle: left/top inclusive, right/bottom
// exclusive.
type Rect struct {
	Left, Top, Right, Bottom int32
}

// Union grows r to also cover o.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		Left:   min32(r.Left, o.Left),
		Top:    min32(r.Top, o.Top),
		Right:  max32(r.Right, o.Right),
		Bottom: max32(r.Bottom, o.Bottom),
	}
}

func (r Rect) Empty() bool { return r.Left >= r.Right || r.Top >= r.Bottom }

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// WindowProc is the Go representation of a guest window procedure: the
// ABI shim wraps a guest function pointer with one that marshals
// message arguments and invokes this.
type WindowProc func(w *Window, msg uint32, wparam, lparam uintptr) uintptr

// WindowClass is a named (window-procedure, class-extra-bytes,
// default-cursor, default-brush) tuple. Registration is write-once:
// duplicate names are rejected.
type WindowClass struct {
	Name       string
	Proc       WindowProc
	ExtraBytes int
	Cursor     uintptr
	Brush      uintptr
}

// Window is a created window instance.
type Window struct {
	mu        sync.Mutex
	Class     *WindowClass
	Title     string
	Rect      Rect
	ownerTID  uint32
	invalid   Rect
	inPaint   bool
	destroyed bool

	// HWND is the handle the ABI shim opened for this window in the
	// shared handle table, set once right after creation so message
	// marshaling can translate both directions without a second lookup
	// table.
	HWND handle.H
}

func (w *Window) Kind() string { return "window" }
func (w *Window) Destroy()     {}

// InvalidateRect grows the window's invalid region to cover r (or the
// whole window if r is nil), matching InvalidateRect(NULL) semantics.
func (w *Window) InvalidateRect(r *Rect) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r == nil {
		w.invalid = w.Rect
		return
	}
	w.invalid = w.invalid.Union(*r)
}

// BeginPaint atomically returns the current invalid region and clears
// it, entering the paint state. Calling BeginPaint again before EndPaint
// is a caller error.
func (w *Window) BeginPaint() (Rect, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inPaint {
		return Rect{}, winerr.New("BeginPaint", winerr.StateInvalid, nil)
	}
	w.inPaint = true
	r := w.invalid
	w.invalid = Rect{}
	return r, nil
}

// EndPaint leaves the paint state.
func (w *Window) EndPaint() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.inPaint {
		return winerr.New("EndPaint", winerr.StateInvalid, nil)
	}
	w.inPaint = false
	return nil
}

// Registry is the process-wide window-class table: write-once,
// read-many after startup, matching the COM class registry's discipline.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*WindowClass
}

// NewRegistry returns an empty window-class registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*WindowClass)}
}

// RegisterClass installs cls, failing if the name is already taken.
func (r *Registry) RegisterClass(cls *WindowClass) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classes[cls.Name]; exists {
		return winerr.New("RegisterClass", winerr.AlreadyExists, nil)
	}
	r.classes[cls.Name] = cls
	return nil
}

func (r *Registry) lookup(name string) (*WindowClass, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// CreateWindow allocates a window of className, running its
// window-procedure synchronously with WM_CREATE before returning; the
// procedure may reject creation by returning a nonzero (failure) value.
const (
	WMCreate      = 0x0001
	WMDestroy     = 0x0002
	WMPaint       = 0x000F
	WMTimer       = 0x0113
	WMSetFocus    = 0x0007
	WMKillFocus   = 0x0008
	WMQuit        = 0x0012
)

func (r *Registry) CreateWindow(ownerTID uint32, className, title string, rect Rect) (*Window, error) {
	cls, ok := r.lookup(className)
	if !ok {
		return nil, winerr.New("CreateWindow", winerr.NotFound, nil)
	}
	w := &Window{Class: cls, Title: title, Rect: rect, ownerTID: ownerTID}
	if cls.Proc != nil {
		if ret := cls.Proc(w, WMCreate, 0, 0); ret != 0 {
			return nil, winerr.New("CreateWindow", winerr.StateInvalid, nil)
		}
	}
	w.InvalidateRect(nil)
	return w, nil
}

// DestroyWindow runs WM_DESTROY and marks the window torn down.
func (w *Window) DestroyWindow() {
	w.mu.Lock()
	already := w.destroyed
	w.destroyed = true
	w.mu.Unlock()
	if already {
		return
	}
	if w.Class.Proc != nil {
		w.Class.Proc(w, WMDestroy, 0, 0)
	}
}
