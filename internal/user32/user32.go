package user32

import "sync"

// WndProcInvoker calls a guest window procedure at addr with the
// message arguments user32 already marshaled (hwnd is the window
// itself, not its raw handle value, so a host WindowProc closure can
// read w.HWND). internal/host wires this to internal/abi.CallWithArgs4
// once at construction, so user32 never imports internal/abi directly.
type WndProcInvoker func(addr uintptr, w *Window, msg uint32, wparam, lparam uintptr) uintptr

// Subsystem owns the process-wide window-class registry and hands out
// one Queue per owning thread, lazily on first use.
type Subsystem struct {
	Classes *Registry

	mu     sync.Mutex
	queues map[uint32]*Queue

	invokeWndProc WndProcInvoker
}

// New builds an empty Subsystem.
func New() *Subsystem {
	return &Subsystem{
		Classes: NewRegistry(),
		queues:  make(map[uint32]*Queue),
	}
}

// SetWndProcInvoker installs the function RegisterClassExW uses to call a
// guest window procedure.
func (s *Subsystem) SetWndProcInvoker(invoke WndProcInvoker) {
	s.invokeWndProc = invoke
}

// QueueFor returns the message queue owned by tid, creating it on first
// use.
func (s *Subsystem) QueueFor(tid uint32) *Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[tid]
	if !ok {
		q = NewQueue()
		s.queues[tid] = q
	}
	return q
}

// CreateWindow creates a window owned by tid, using tid's message queue
// for any show/paint it queues.
func (s *Subsystem) CreateWindow(tid uint32, className, title string, rect Rect) (*Window, error) {
	w, err := s.Classes.CreateWindow(tid, className, title, rect)
	if err != nil {
		return nil, err
	}
	q := s.QueueFor(tid)
	_ = q.PostMessage(Message{Window: w, Code: WMPaint})
	return w, nil
}
