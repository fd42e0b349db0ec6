package d3d

import (
	"unsafe"

	"github.com/citcrun/citc/internal/export"
	"github.com/citcrun/citc/internal/handle"
)

// HostAdapter mirrors internal/abi.HostFunc's shape without importing
// that package.
type HostAdapter func(args [4]uintptr, stackArgs []uintptr) uintptr

func arg(a [4]uintptr, st []uintptr, i int) uintptr {
	if i < 4 {
		return a[i]
	}
	j := i - 4
	if j < len(st) {
		return st[j]
	}
	return 0
}

func putUintptr(addr uintptr, v uintptr) {
	if addr == 0 {
		return
	}
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

func readColor(addr uintptr) [4]float32 {
	if addr == 0 {
		return [4]float32{}
	}
	p := (*[4]float32)(unsafe.Pointer(addr))
	return *p
}

type deviceHandleObject struct{ *Device }

func (deviceHandleObject) Kind() string { return "d3d.device" }
func (o deviceHandleObject) Destroy()   { o.Device.Release() }

type contextHandleObject struct{ *ImmediateContext }

func (contextHandleObject) Kind() string { return "d3d.context" }
func (contextHandleObject) Destroy()     {}

type resourceHandleObject struct{ *Resource }

func (resourceHandleObject) Kind() string { return "d3d.resource" }
func (o resourceHandleObject) Destroy()   { o.Resource.Release() }

type viewHandleObject struct{ *View }

func (viewHandleObject) Kind() string { return "d3d.view" }
func (viewHandleObject) Destroy()     {}

// Subsystem publishes d3d11.dll's device/context/resource entry points
// into a resolver, backing every object it hands the guest a handle to
// with the shared handle table. Unlike real D3D11, citc exposes a
// single flat export surface rather than COM vtables: a guest imports
// these symbols directly, the same way it imports any other DLL
// function.
type Subsystem struct {
	handles *handle.Table
}

// New builds a Subsystem tracking D3D objects behind handles.
func New(handles *handle.Table) *Subsystem {
	return &Subsystem{handles: handles}
}

func (s *Subsystem) deviceFor(h handle.H) *Device {
	obj, ok := s.handles.Lookup(h)
	if !ok {
		return nil
	}
	d, ok := obj.(deviceHandleObject)
	if !ok {
		return nil
	}
	return d.Device
}

func (s *Subsystem) contextFor(h handle.H) *ImmediateContext {
	obj, ok := s.handles.Lookup(h)
	if !ok {
		return nil
	}
	c, ok := obj.(contextHandleObject)
	if !ok {
		return nil
	}
	return c.ImmediateContext
}

func (s *Subsystem) resourceFor(h handle.H) *Resource {
	obj, ok := s.handles.Lookup(h)
	if !ok {
		return nil
	}
	r, ok := obj.(resourceHandleObject)
	if !ok {
		return nil
	}
	return r.Resource
}

func (s *Subsystem) viewFor(h handle.H) *View {
	obj, ok := s.handles.Lookup(h)
	if !ok {
		return nil
	}
	v, ok := obj.(viewHandleObject)
	if !ok {
		return nil
	}
	return v.View
}

// Register installs every d3d11.dll export this subsystem implements
// into r.
func (s *Subsystem) Register(r *export.Resolver, trampoline func(HostAdapter) (uintptr, error)) error {
	entries := []struct {
		name string
		sig  string
		fn   HostAdapter
	}{
		// D3D11CreateDevice(..., ppDevice, ppImmediateContext) — citc
		// collapses the real ten-argument form (adapter, driver type,
		// feature levels, SDK version) down to the two out-params a
		// guest actually needs back, since citc has exactly one device
		// kind and no adapter enumeration.
		{"D3D11CreateDevice", "(...,a6,a9)", func(a [4]uintptr, st []uintptr) uintptr {
			dev := NewDevice()
			ctx := NewImmediateContext(dev)
			devH := s.handles.Open(deviceHandleObject{dev})
			ctxH := s.handles.Open(contextHandleObject{ctx})
			putUintptr(arg(a, st, 6), uintptr(devH))
			putUintptr(arg(a, st, 9), uintptr(ctxH))
			return 0
		}},
		{"CreateTexture2D", "(a0,a1,a2,a3,a4)", func(a [4]uintptr, st []uintptr) uintptr {
			dev := s.deviceFor(handle.H(a[0]))
			if dev == nil {
				return 0x80070057 // E_INVALIDARG
			}
			width := int(a[1])
			height := int(a[2])
			format := Format(a[3])
			res := NewTexture2D(dev, width, height, format)
			h := s.handles.Open(resourceHandleObject{res})
			putUintptr(arg(a, st, 4), uintptr(h))
			return 0
		}},
		{"CreateRenderTargetView", "(a0,a1,a2)", func(a [4]uintptr, _ []uintptr) uintptr {
			dev := s.deviceFor(handle.H(a[0]))
			res := s.resourceFor(handle.H(a[1]))
			if dev == nil || res == nil {
				return 0x80070057
			}
			view := NewView(ViewRTV, res)
			h := s.handles.Open(viewHandleObject{view})
			putUintptr(a[2], uintptr(h))
			return 0
		}},
		{"CreateDepthStencilView", "(a0,a1,a2)", func(a [4]uintptr, _ []uintptr) uintptr {
			dev := s.deviceFor(handle.H(a[0]))
			res := s.resourceFor(handle.H(a[1]))
			if dev == nil || res == nil {
				return 0x80070057
			}
			view := NewView(ViewDSV, res)
			h := s.handles.Open(viewHandleObject{view})
			putUintptr(a[2], uintptr(h))
			return 0
		}},
		{"ClearRenderTargetView", "(a0,a1,a2)", func(a [4]uintptr, _ []uintptr) uintptr {
			ctx := s.contextFor(handle.H(a[0]))
			view := s.viewFor(handle.H(a[1]))
			if ctx == nil || view == nil {
				return 0
			}
			ctx.ClearRenderTargetView(view, readColor(a[2]))
			return 0
		}},
		{"ClearDepthStencilView", "(a0,a1,a2,a3)", func(a [4]uintptr, _ []uintptr) uintptr {
			ctx := s.contextFor(handle.H(a[0]))
			view := s.viewFor(handle.H(a[1]))
			if ctx == nil || view == nil {
				return 0
			}
			ctx.ClearDepthStencilView(view, float32FromBits(uint32(a[3])))
			return 0
		}},
		{"OMSetRenderTargets", "(a0,a1,a2)", func(a [4]uintptr, _ []uintptr) uintptr {
			ctx := s.contextFor(handle.H(a[0]))
			if ctx == nil {
				return 0
			}
			rtv := s.viewFor(handle.H(a[1]))
			dsv := s.viewFor(handle.H(a[2]))
			ctx.SetRenderTarget(rtv, dsv)
			return 0
		}},
		// Map writes a host pointer directly into the resource's backing
		// bytes, plus its row pitch, into the guest's
		// D3D11_MAPPED_SUBRESOURCE out struct at pMapped (pData uintptr
		// at offset 0, RowPitch uint32 at offset 8): citc's guest image
		// shares the host's address space (see internal/abi), so the
		// pointer the guest receives is already valid for it to read
		// and write through directly.
		{"Map", "(a0,a1,a2,a3,a4)", func(a [4]uintptr, st []uintptr) uintptr {
			res := s.resourceFor(handle.H(a[1]))
			pMapped := arg(a, st, 4)
			if res == nil || len(res.Data) == 0 || pMapped == 0 {
				return 0x80070057
			}
			putUintptr(pMapped, uintptr(unsafe.Pointer(&res.Data[0])))
			rowPitch := uint32(res.Width * res.Format.bytesPerPixel())
			*(*uint32)(unsafe.Pointer(pMapped + unsafe.Sizeof(uintptr(0)))) = rowPitch
			return 0
		}},
		{"Unmap", "(a0,a1)", func(a [4]uintptr, _ []uintptr) uintptr {
			return 0
		}},
		{"Flush", "(a0)", func(a [4]uintptr, _ []uintptr) uintptr {
			return 0
		}},
		{"Release", "(a0)", func(a [4]uintptr, _ []uintptr) uintptr {
			s.handles.Close(handle.H(a[0]))
			return 0
		}},
	}

	for _, e := range entries {
		addr, err := trampoline(e.fn)
		if err != nil {
			return err
		}
		r.Register("d3d11.dll", export.Entry{Name: e.name, Addr: addr, Signature: e.sig})
	}
	return nil
}
