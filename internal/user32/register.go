package user32

import (
	"unsafe"

	"github.com/citcrun/citc/internal/export"
	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winerr"
	"github.com/citcrun/citc/internal/winstring"
)

// HostAdapter mirrors internal/abi.HostFunc's shape without importing
// that package.
type HostAdapter func(args [4]uintptr, stackArgs []uintptr) uintptr

func errCode(err error) uintptr {
	if err == nil {
		return 0
	}
	return uintptr(winerr.CodeOf(err))
}

type windowHandleObject struct{ *Window }

func (windowHandleObject) Kind() string { return "window" }
func (windowHandleObject) Destroy()     {}

func windowFromHandle(handles *handle.Table, h handle.H) *Window {
	obj, ok := handles.Lookup(h)
	if !ok {
		return nil
	}
	wobj, ok := obj.(windowHandleObject)
	if !ok {
		return nil
	}
	return wobj.Window
}

// guestWNDCLASSEXW mirrors WNDCLASSEXW's field order and width.
type guestWNDCLASSEXW struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cbClsExtra    int32
	cbWndExtra    int32
	hInstance     uintptr
	hIcon         uintptr
	hCursor       uintptr
	hbrBackground uintptr
	lpszMenuName  uintptr
	lpszClassName uintptr
	hIconSm       uintptr
}

// Register installs every user32.dll export this subsystem implements
// into r.
func (s *Subsystem) Register(r *export.Resolver, handles *handle.Table, trampoline func(HostAdapter) (uintptr, error)) error {
	entries := []struct {
		name string
		sig  string
		fn   HostAdapter
	}{
		{"RegisterClassExW", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			wc := (*guestWNDCLASSEXW)(unsafe.Pointer(args[0]))
			name, _ := winstring.ReadWide(wc.lpszClassName)
			cls := &WindowClass{
				Name:   name,
				Cursor: wc.hCursor,
				Brush:  wc.hbrBackground,
			}
			if procAddr := wc.lpfnWndProc; procAddr != 0 && s.invokeWndProc != nil {
				cls.Proc = func(w *Window, msg uint32, wparam, lparam uintptr) uintptr {
					return s.invokeWndProc(procAddr, w, msg, wparam, lparam)
				}
			}
			if err := s.Classes.RegisterClass(cls); err != nil {
				return 0
			}
			return 1 // nonzero ATOM
		}},
		{"CreateWindowExW", "(a0,a1,a2,a3)", func(args [4]uintptr, stack []uintptr) uintptr {
			className, _ := winstring.ReadWide(args[0])
			title, _ := winstring.ReadWide(args[1])
			rect := Rect{Left: int32(args[2]), Top: int32(args[3])}
			if len(stack) >= 2 {
				rect.Right = rect.Left + int32(stack[0])
				rect.Bottom = rect.Top + int32(stack[1])
			}
			w, err := s.CreateWindow(currentThreadID(), className, title, rect)
			if err != nil {
				return 0
			}
			h := handles.Open(windowHandleObject{w})
			w.HWND = h
			return uintptr(h)
		}},
		{"DestroyWindow", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			w := windowFromHandle(handles, handle.H(args[0]))
			if w == nil {
				return 0
			}
			w.DestroyWindow()
			handles.Close(handle.H(args[0]))
			return 1
		}},
		{"GetMessageW", "(a0,a1,a2,a3)", func(args [4]uintptr, _ []uintptr) uintptr {
			q := s.QueueFor(currentThreadID())
			m, ok := q.GetMessage()
			if !ok {
				return 0
			}
			writeMSG(args[0], m)
			return 1
		}},
		{"PeekMessageW", "(a0,a1,a2,a3)", func(args [4]uintptr, stack []uintptr) uintptr {
			remove := len(stack) > 0 && stack[0] != 0
			q := s.QueueFor(currentThreadID())
			m, ok := q.PeekMessage(remove)
			if !ok {
				return 0
			}
			writeMSG(args[0], m)
			return 1
		}},
		{"TranslateMessage", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			return 1
		}},
		{"DispatchMessageW", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			p := (*guestMSG)(unsafe.Pointer(args[0]))
			w := windowFromHandle(handles, handle.H(p.hwnd))
			if w == nil || w.Class.Proc == nil {
				return 0
			}
			return w.Class.Proc(w, p.message, p.wParam, p.lParam)
		}},
		{"PostQuitMessage", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			s.QueueFor(currentThreadID()).PostQuitMessage(int32(args[0]))
			return 0
		}},
		{"BeginPaint", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			w := windowFromHandle(handles, handle.H(args[0]))
			if w == nil {
				return 0
			}
			r, err := w.BeginPaint()
			if err != nil {
				return 0
			}
			writeRectInto(args[1], r)
			return 1
		}},
		{"EndPaint", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			w := windowFromHandle(handles, handle.H(args[0]))
			if w == nil {
				return 0
			}
			return errCode(w.EndPaint())
		}},
		{"InvalidateRect", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			w := windowFromHandle(handles, handle.H(args[0]))
			if w == nil {
				return 0
			}
			if args[1] == 0 {
				w.InvalidateRect(nil)
			} else {
				r := readRectFrom(args[1])
				w.InvalidateRect(&r)
			}
			return 1
		}},
		{"SetTimer", "(a0,a1,a2,a3)", func(args [4]uintptr, _ []uintptr) uintptr {
			q := s.QueueFor(currentThreadID())
			w := windowFromHandle(handles, handle.H(args[0]))
			q.SetTimer(w, args[1], periodFromMillis(args[2]), nil)
			return args[1]
		}},
		{"KillTimer", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			q := s.QueueFor(currentThreadID())
			w := windowFromHandle(handles, handle.H(args[0]))
			q.KillTimer(w, args[1])
			return 1
		}},
		{"SetFocus", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			q := s.QueueFor(currentThreadID())
			w := windowFromHandle(handles, handle.H(args[0]))
			prev := q.SetFocus(w)
			if prev == nil {
				return 0
			}
			return uintptr(prev.HWND)
		}},
	}

	for _, e := range entries {
		addr, err := trampoline(e.fn)
		if err != nil {
			return err
		}
		r.Register("user32.dll", export.Entry{Name: e.name, Addr: addr, Signature: e.sig})
	}
	return nil
}
