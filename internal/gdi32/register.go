package gdi32

import (
	"sync"
	"unsafe"

	"github.com/citcrun/citc/internal/export"
	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winstring"
)

// HostAdapter mirrors internal/abi.HostFunc's shape without importing
// that package.
type HostAdapter func(args [4]uintptr, stackArgs []uintptr) uintptr

type dcHandleObject struct{ *DC }

func (dcHandleObject) Kind() string { return "dc" }
func (dcHandleObject) Destroy()     {}

// Subsystem tracks device contexts behind the shared handle table; GDI
// itself has no process-wide state beyond the stock-object tables
// already declared as package-level constants.
type Subsystem struct {
	mu      sync.Mutex
	handles *handle.Table
	// surfaceFor resolves the render surface a window's device context
	// should draw into; internal/host wires this to surfaceForWindow,
	// which returns nil for every window.
	surfaceFor func(hwnd handle.H) *Surface
}

// New builds a Subsystem. surfaceFor resolves an HWND to its backing
// Surface for GetDC-style calls.
func New(handles *handle.Table, surfaceFor func(hwnd handle.H) *Surface) *Subsystem {
	return &Subsystem{handles: handles, surfaceFor: surfaceFor}
}

func rectFromAddr(addr uintptr) Rect {
	return *(*Rect)(unsafe.Pointer(addr))
}

// Register installs every gdi32.dll export this subsystem implements
// into r.
func (s *Subsystem) Register(r *export.Resolver, trampoline func(HostAdapter) (uintptr, error)) error {
	entries := []struct {
		name string
		sig  string
		fn   HostAdapter
	}{
		{"GetDC", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			surface := s.surfaceFor(handle.H(args[0]))
			if surface == nil {
				return 0
			}
			dc := NewDC(surface)
			return uintptr(s.handles.Open(dcHandleObject{dc}))
		}},
		{"ReleaseDC", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			s.handles.Close(handle.H(args[1]))
			return 1
		}},
		{"SelectObject", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			dc := s.dcFor(handle.H(args[0]))
			if dc == nil {
				return 0
			}
			id := int(args[1])
			switch {
			case id == WhitePen || id == BlackPen:
				dc.SelectStockPen(id)
			default:
				dc.SelectStockBrush(id)
			}
			return 1
		}},
		{"SetTextColor", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			dc := s.dcFor(handle.H(args[0]))
			if dc == nil {
				return 0
			}
			return uintptr(dc.SetTextColor(Color(args[1])))
		}},
		{"SetBkMode", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			dc := s.dcFor(handle.H(args[0]))
			if dc == nil {
				return 0
			}
			return uintptr(dc.SetBkMode(int(args[1])))
		}},
		{"MoveToEx", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			dc := s.dcFor(handle.H(args[0]))
			if dc == nil {
				return 0
			}
			dc.MoveToEx(int32(args[1]), int32(args[2]))
			return 1
		}},
		{"LineTo", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			dc := s.dcFor(handle.H(args[0]))
			if dc == nil {
				return 0
			}
			dc.LineTo(int32(args[1]), int32(args[2]))
			return 1
		}},
		{"Rectangle", "(a0,a1,a2,a3)", func(args [4]uintptr, stack []uintptr) uintptr {
			dc := s.dcFor(handle.H(args[0]))
			if dc == nil {
				return 0
			}
			right, bottom := int32(args[2]), int32(args[3])
			if len(stack) >= 2 {
				right, bottom = int32(stack[0]), int32(stack[1])
			}
			dc.Rectangle(int32(args[1]), int32(args[2]), right, bottom)
			return 1
		}},
		{"TextOutW", "(a0,a1,a2,a3)", func(args [4]uintptr, stack []uintptr) uintptr {
			dc := s.dcFor(handle.H(args[0]))
			if dc == nil {
				return 0
			}
			text, _ := winstring.ReadWide(args[3])
			dc.TextOut(int32(args[1]), int32(args[2]), text)
			return 1
		}},
		{"DrawTextW", "(a0,a1,a2,a3)", func(args [4]uintptr, stack []uintptr) uintptr {
			dc := s.dcFor(handle.H(args[0]))
			if dc == nil || len(stack) < 1 {
				return 0
			}
			text, _ := winstring.ReadWide(args[1])
			rect := rectFromAddr(stack[0])
			dc.DrawText(rect, text)
			return 1
		}},
	}

	for _, e := range entries {
		addr, err := trampoline(e.fn)
		if err != nil {
			return err
		}
		r.Register("gdi32.dll", export.Entry{Name: e.name, Addr: addr, Signature: e.sig})
	}
	return nil
}

func (s *Subsystem) dcFor(h handle.H) *DC {
	obj, ok := s.handles.Lookup(h)
	if !ok {
		return nil
	}
	dc, ok := obj.(dcHandleObject)
	if !ok {
		return nil
	}
	return dc.DC
}
