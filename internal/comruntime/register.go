package comruntime

import (
	"sync"
	"unsafe"

	"github.com/citcrun/citc/internal/export"
	"github.com/citcrun/citc/internal/winerr"
	"golang.org/x/sys/unix"
)

func readGUID(addr uintptr) GUID {
	return *(*GUID)(unsafe.Pointer(addr))
}

// currentThreadID returns the host kernel thread id for the calling
// goroutine, matching kernel32.currentThreadID's contract so apartments
// stay keyed the same way across subsystems.
func currentThreadID() uint32 {
	return uint32(unix.Gettid())
}

// errCode renders err as an HRESULT: every function registered here is
// COM-surfaced, so unlike the raw winerr.Code other subsystems return,
// callers expect SUCCEEDED()/FAILED() to apply.
func errCode(err error) uintptr {
	return uintptr(winerr.CodeOf(err).ToHRESULT())
}

// exportTable remembers every GuestObject citc has handed to the guest,
// keyed by its interface-pointer address, so IUnknown's three methods
// (themselves guest-callable through the vtable) can find their way
// back to the Go-side Object they wrap when the guest calls through
// `this`.
type exportTable struct {
	mu      sync.Mutex
	objects map[uintptr]*GuestObject
}

func newExportTable() *exportTable { return &exportTable{objects: make(map[uintptr]*GuestObject)} }

func (t *exportTable) put(g *GuestObject) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.objects[g.Addr()] = g
}

func (t *exportTable) get(addr uintptr) *GuestObject {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.objects[addr]
}

// Exporter wraps Runtime with the guest-facing vtable machinery:
// CoCreateInstance returns a real guest-callable interface pointer
// instead of a Go Object, and the IUnknown slots every such pointer
// shares dispatch back into the wrapped Object.
type Exporter struct {
	rt      *Runtime
	exports *exportTable
	vtable  *GuestVTable
}

// NewExporter builds the three shared IUnknown vtable slots once (every
// citc COM object reuses the same physical vtable, since QueryInterface
// dispatches by the object identity already carried in exports) and
// wires them to trampoline.
func NewExporter(rt *Runtime, trampoline func(HostAdapter) (uintptr, error)) (*Exporter, error) {
	e := &Exporter{rt: rt, exports: newExportTable()}

	queryInterface := func(args [4]uintptr, _ []uintptr) uintptr {
		g := e.exports.get(args[0])
		if g == nil {
			return uintptr(winerr.NotFound.ToHRESULT())
		}
		iid := readGUID(args[1])
		iface, err := g.Impl.QueryInterface(iid)
		if err != nil {
			return errCode(err)
		}
		out := e.wrap(iface)
		if len(args) > 2 && args[2] != 0 {
			*(*uintptr)(unsafe.Pointer(args[2])) = out.Addr()
		}
		return 0
	}
	addRef := func(args [4]uintptr, _ []uintptr) uintptr {
		g := e.exports.get(args[0])
		if g == nil {
			return 0
		}
		return uintptr(g.Impl.AddRef())
	}
	release := func(args [4]uintptr, _ []uintptr) uintptr {
		g := e.exports.get(args[0])
		if g == nil {
			return 0
		}
		return uintptr(g.Impl.Release())
	}

	vt, err := NewGuestVTable(trampoline, queryInterface, addRef, release)
	if err != nil {
		return nil, err
	}
	e.vtable = vt
	return e, nil
}

// wrap produces a new GuestObject for obj and records it in
// the export table so the shared vtable slots can find it again.
func (e *Exporter) wrap(obj Object) *GuestObject {
	g := NewGuestObject(obj, e.vtable)
	e.exports.put(g)
	return g
}

// Register installs ole32.dll's exports (citc's COM runtime is
// conventionally hosted out of ole32 on real Windows) into r.
func (e *Exporter) Register(r *export.Resolver, trampoline func(HostAdapter) (uintptr, error)) error {
	entries := []struct {
		name string
		sig  string
		fn   HostAdapter
	}{
		{"CoInitializeEx", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			model := ApartmentSingleThreaded
			if args[1] != 0 {
				model = ApartmentMultiThreaded
			}
			return errCode(e.rt.CoInitializeEx(currentThreadID(), model))
		}},
		{"CoUninitialize", "()", func(args [4]uintptr, _ []uintptr) uintptr {
			e.rt.CoUninitialize(currentThreadID())
			return 0
		}},
		{"CoCreateInstance", "(a0,a1,a2,a3,a4)", func(args [4]uintptr, stack []uintptr) uintptr {
			// rclsid, pUnkOuter, dwClsContext, riid in registers; ppv on
			// the stack, matching the real five-argument Win32 shape.
			clsid := readGUID(args[0])
			iid := readGUID(args[3])
			var outAddr uintptr
			if len(stack) >= 1 {
				outAddr = stack[0]
			}
			obj, err := e.rt.CoCreateInstance(currentThreadID(), clsid, iid)
			if err != nil {
				return errCode(err)
			}
			g := e.wrap(obj)
			if outAddr != 0 {
				*(*uintptr)(unsafe.Pointer(outAddr)) = g.Addr()
			}
			return 0
		}},
	}

	for _, ent := range entries {
		addr, err := trampoline(ent.fn)
		if err != nil {
			return err
		}
		r.Register("ole32.dll", export.Entry{Name: ent.name, Addr: addr, Signature: ent.sig})
	}
	return nil
}
