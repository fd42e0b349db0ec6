// Package host wires every subsystem citc implements into one export
// resolver and boots a guest image against it. It is the only package
// that imports both internal/abi and every leaf subsystem package:
// each subsystem stays agnostic of the ABI bridge and of its peers,
// taking only the closures it needs (a trampoline builder, and in
// kernel32/user32's case a guest-entry invoker) as constructor or
// setter arguments.
package host

import (
	"fmt"
	"os"

	"github.com/citcrun/citc/internal/abi"
	"github.com/citcrun/citc/internal/advapi32"
	"github.com/citcrun/citc/internal/citclog"
	"github.com/citcrun/citc/internal/comruntime"
	"github.com/citcrun/citc/internal/config"
	"github.com/citcrun/citc/internal/d3d"
	"github.com/citcrun/citc/internal/export"
	"github.com/citcrun/citc/internal/gdi32"
	"github.com/citcrun/citc/internal/gpudriver"
	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/kernel32"
	"github.com/citcrun/citc/internal/loader"
	"github.com/citcrun/citc/internal/registry"
	"github.com/citcrun/citc/internal/user32"
	"github.com/citcrun/citc/internal/winsock"
	"github.com/citcrun/citc/internal/ws2_32"
)

// Host owns every subsystem's state for the process lifetime and the
// resolver that binds guest imports to them.
type Host struct {
	Config   config.Config
	Log      *citclog.Helper
	Handles  *handle.Table
	Resolver *export.Resolver

	Kernel32 *kernel32.Subsystem
	Advapi32 *advapi32.Subsystem
	Winsock  *winsock.Subsystem
	Ws2_32   *ws2_32.Subsystem
	User32   *user32.Subsystem
	Gdi32    *gdi32.Subsystem
	D3D      *d3d.Subsystem
	COM      *comruntime.Runtime
	Exporter *comruntime.Exporter
	GPU      *gpudriver.Machine

	registry *registry.Store
}

// New builds every subsystem and registers its exports into a shared
// resolver, ready for Boot.
func New(cfg config.Config) (*Host, error) {
	logger := citclog.NewFilter(citclog.NewStdLogger(os.Stderr), cfg.Verbosity)
	h := &Host{
		Config:   cfg,
		Log:      citclog.NewHelper(logger),
		Handles:  handle.NewTable(),
		Resolver: export.New(),
	}

	store, err := registry.Open(cfg.RegistryRoot)
	if err != nil {
		return nil, fmt.Errorf("host: opening registry store: %w", err)
	}
	h.registry = store

	h.Kernel32 = kernel32.New(h.Handles, h.Log)
	h.Advapi32 = advapi32.New(store, h.Handles)
	h.Winsock = winsock.New()
	h.Ws2_32 = ws2_32.New(h.Winsock, h.Handles)
	h.User32 = user32.New()
	h.Gdi32 = gdi32.New(h.Handles, h.surfaceForWindow)
	h.D3D = d3d.New(h.Handles)

	h.COM = comruntime.NewRuntime()
	exporter, err := comruntime.NewExporter(h.COM, comTrampoline)
	if err != nil {
		return nil, fmt.Errorf("host: building COM exporter: %w", err)
	}
	h.Exporter = exporter

	if cfg.GPUEnabled {
		driver, err := gpudriver.Load(cfg.DLLSearchDir)
		if err != nil {
			h.Log.Warnf("gpudriver: no backend loaded, falling back to the software rasterizer: %v", err)
		} else {
			h.GPU = gpudriver.NewMachine(driver)
		}
	}

	h.Kernel32.SetThreadLifecycleHook(nil) // wired to the loaded Image by Boot
	h.Kernel32.SetThreadEntryInvoker(func(addr, arg uintptr) uint32 {
		return uint32(abi.CallWithArgs1(addr, arg))
	})
	h.User32.SetWndProcInvoker(func(addr uintptr, w *user32.Window, msg uint32, wparam, lparam uintptr) uintptr {
		var hwnd uintptr
		if w != nil {
			hwnd = uintptr(w.HWND)
		}
		return abi.CallWithArgs4(addr, hwnd, uintptr(msg), wparam, lparam)
	})

	if err := h.registerExports(); err != nil {
		return nil, err
	}
	return h, nil
}

// surfaceForWindow is gdi32's hook for resolving a window's client
// bitmap. citc does not yet model a per-window backing surface
// distinct from its paint rectangle (see DESIGN.md); returning nil
// here means GetDC against a real window currently yields a DC with no
// target, same as a DC obtained before the window's first WM_PAINT on
// real Windows.
func (h *Host) surfaceForWindow(hwnd handle.H) *gdi32.Surface {
	return nil
}

// Each subsystem declares its own named HostAdapter type with the same
// underlying signature func([4]uintptr, []uintptr) uintptr, so every
// *Trampoline function below converts it directly to abi.HostFunc
// without any subsystem importing internal/abi itself.

func comTrampoline(fn comruntime.HostAdapter) (uintptr, error) {
	return abi.Trampoline(abi.HostFunc(fn))
}

func kernel32Trampoline(fn kernel32.HostAdapter) (uintptr, error) {
	return abi.Trampoline(abi.HostFunc(fn))
}

func advapi32Trampoline(fn advapi32.HostAdapter) (uintptr, error) {
	return abi.Trampoline(abi.HostFunc(fn))
}

func ws2_32Trampoline(fn ws2_32.HostAdapter) (uintptr, error) {
	return abi.Trampoline(abi.HostFunc(fn))
}

func user32Trampoline(fn user32.HostAdapter) (uintptr, error) {
	return abi.Trampoline(abi.HostFunc(fn))
}

func gdi32Trampoline(fn gdi32.HostAdapter) (uintptr, error) {
	return abi.Trampoline(abi.HostFunc(fn))
}

func d3dTrampoline(fn d3d.HostAdapter) (uintptr, error) {
	return abi.Trampoline(abi.HostFunc(fn))
}

func (h *Host) registerExports() error {
	if err := h.Kernel32.Register(h.Resolver, kernel32Trampoline); err != nil {
		return fmt.Errorf("host: registering kernel32: %w", err)
	}
	if err := h.Advapi32.RegisterExports(
		func(name string, addr uintptr, sig string) {
			h.Resolver.Register("advapi32.dll", export.Entry{Name: name, Addr: addr, Signature: sig})
		},
		advapi32Trampoline,
	); err != nil {
		return fmt.Errorf("host: registering advapi32: %w", err)
	}
	if err := h.Ws2_32.Register(h.Resolver, ws2_32Trampoline); err != nil {
		return fmt.Errorf("host: registering ws2_32: %w", err)
	}
	if err := h.User32.Register(h.Resolver, h.Handles, user32Trampoline); err != nil {
		return fmt.Errorf("host: registering user32: %w", err)
	}
	if err := h.Gdi32.Register(h.Resolver, gdi32Trampoline); err != nil {
		return fmt.Errorf("host: registering gdi32: %w", err)
	}
	if err := h.D3D.Register(h.Resolver, d3dTrampoline); err != nil {
		return fmt.Errorf("host: registering d3d11: %w", err)
	}
	if err := h.Exporter.Register(h.Resolver, comTrampoline); err != nil {
		return fmt.Errorf("host: registering combase: %w", err)
	}
	return nil
}

// Boot loads a guest PE image's bytes through internal/loader against
// this Host's resolver, wiring kernel32's thread-lifecycle hook to the
// loaded image's TLS callbacks so every CreateThread'd guest thread
// gets its own DLL_THREAD_ATTACH/DLL_THREAD_DETACH pass.
func (h *Host) Boot(data []byte) (*loader.Image, error) {
	img, err := loader.Load(data, h.Resolver)
	if err != nil {
		return nil, err
	}
	h.Kernel32.SetThreadLifecycleHook(func(reason kernel32.ThreadLifecycleReason) {
		img.FireThreadTLS(threadLifecycleToTLSReason(reason))
	})
	return img, nil
}

func threadLifecycleToTLSReason(r kernel32.ThreadLifecycleReason) uint32 {
	if r == kernel32.ThreadDetach {
		return loader.DLLThreadDetach
	}
	return loader.DLLThreadAttach
}
