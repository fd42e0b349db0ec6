package advapi32

import (
	"encoding/binary"
	"unsafe"

	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/registry"
	"github.com/citcrun/citc/internal/winerr"
	"github.com/citcrun/citc/internal/winstring"
)

// HostAdapter mirrors kernel32.HostAdapter's shape (and internal/abi's
// HostFunc) without importing either: every subsystem's Register takes
// the trampoline builder as a parameter so it never needs to know how
// the guest/host bridge is implemented.
type HostAdapter func(args [4]uintptr, stackArgs []uintptr) uintptr

func arg(args [4]uintptr, stack []uintptr, i int) uintptr {
	if i < 4 {
		return args[i]
	}
	j := i - 4
	if j < len(stack) {
		return stack[j]
	}
	return 0
}

func putUint32(addr uintptr, v uint32) {
	if addr == 0 {
		return
	}
	p := (*[4]byte)(unsafe.Pointer(addr))
	binary.LittleEndian.PutUint32(p[:], v)
}

func putHandle(addr uintptr, h handle.H) {
	if addr == 0 {
		return
	}
	p := (*uintptr)(unsafe.Pointer(addr))
	*p = uintptr(h)
}

// writeEnumName writes name as a NUL-terminated wide string into the
// guest buffer at nameAddr, using the caller-supplied capacity cell at
// lenAddr (a count of UTF-16 code units, per RegEnumValueW/RegEnumKeyExW's
// in/out lpcch parameter) and updates it with the length actually
// written.
func writeEnumName(nameAddr, lenAddr uintptr, name string) {
	if nameAddr == 0 {
		return
	}
	capUnits := uint32(0)
	if lenAddr != 0 {
		capUnits = *(*uint32)(unsafe.Pointer(lenAddr))
	}
	n := winstring.WriteWide(nameAddr, int(capUnits)*2, name)
	if lenAddr != 0 {
		putUint32(lenAddr, uint32(n))
	}
}

// RegisterExports installs every advapi32.dll export this subsystem
// implements via register, which should close over an *export.Resolver
// and call Resolver.Register("advapi32.dll", export.Entry{...}) for
// each entry. trampoline turns a HostAdapter closure into a callable
// Microsoft x64 machine address (internal/abi.Trampoline).
func (s *Subsystem) RegisterExports(register func(name string, addr uintptr, sig string), trampoline func(HostAdapter) (uintptr, error)) error {
	entries := []struct {
		name string
		sig  string
		fn   HostAdapter
	}{
		{"RegCreateKeyExW", "(a0,a1,...)", func(a [4]uintptr, st []uintptr) uintptr {
			subKey, _ := winstring.ReadWide(arg(a, st, 1))
			h, disp, err := s.RegCreateKeyEx(handle.H(arg(a, st, 0)), subKey)
			if err != nil {
				return uintptr(winerr.CodeOf(err).ToWin32())
			}
			putHandle(arg(a, st, 7), h)
			if disp == registry.CreatedNewKey {
				putUint32(arg(a, st, 8), 1) // REG_CREATED_NEW_KEY
			} else {
				putUint32(arg(a, st, 8), 2) // REG_OPENED_EXISTING_KEY
			}
			return 0
		}},
		{"RegOpenKeyExW", "(a0,a1,a2,a3,a4)", func(a [4]uintptr, st []uintptr) uintptr {
			subKey, _ := winstring.ReadWide(arg(a, st, 1))
			h, err := s.RegOpenKeyEx(handle.H(arg(a, st, 0)), subKey)
			if err != nil {
				return uintptr(winerr.CodeOf(err).ToWin32())
			}
			putHandle(arg(a, st, 4), h)
			return 0
		}},
		{"RegCloseKey", "(a0)", func(a [4]uintptr, st []uintptr) uintptr {
			if err := s.RegCloseKey(handle.H(a[0])); err != nil {
				return uintptr(winerr.CodeOf(err).ToWin32())
			}
			return 0
		}},
		{"RegSetValueExW", "(a0,a1,a2,a3,a4,a5)", func(a [4]uintptr, st []uintptr) uintptr {
			name, _ := winstring.ReadWide(arg(a, st, 1))
			typ := registry.ValueType(arg(a, st, 3))
			dataAddr := arg(a, st, 4)
			size := int(arg(a, st, 5))
			var data []byte
			if dataAddr != 0 && size > 0 {
				p := (*byte)(unsafe.Pointer(dataAddr))
				data = append(data, unsafe.Slice(p, size)...)
			}
			if err := s.RegSetValueEx(handle.H(a[0]), name, typ, data); err != nil {
				return uintptr(winerr.CodeOf(err).ToWin32())
			}
			return 0
		}},
		{"RegQueryValueExW", "(a0,a1,a2,a3,a4,a5)", func(a [4]uintptr, st []uintptr) uintptr {
			name, _ := winstring.ReadWide(arg(a, st, 1))
			dataAddr := arg(a, st, 4)
			sizeAddr := arg(a, st, 5)
			max := -1
			if sizeAddr != 0 {
				max = int(*(*uint32)(unsafe.Pointer(sizeAddr)))
				if dataAddr == 0 {
					max = -1
				}
			}
			typ, data, err := s.RegQueryValueEx(handle.H(a[0]), name, max)
			size := len(data)
			if winerr.CodeOf(err) == winerr.ResourceExhausted {
				// Undersized buffer: report the value's full size.
				if _, full, ferr := s.RegQueryValueEx(handle.H(a[0]), name, -1); ferr == nil {
					size = len(full)
				}
			}
			typAddr := arg(a, st, 3)
			putUint32(typAddr, uint32(typ))
			if sizeAddr != 0 {
				binary.LittleEndian.PutUint32((*[4]byte)(unsafe.Pointer(sizeAddr))[:], uint32(size))
			}
			if err != nil {
				return uintptr(winerr.CodeOf(err).ToWin32())
			}
			if dataAddr != 0 {
				dst := unsafe.Slice((*byte)(unsafe.Pointer(dataAddr)), len(data))
				copy(dst, data)
			}
			return 0
		}},
		{"RegDeleteValueW", "(a0,a1)", func(a [4]uintptr, st []uintptr) uintptr {
			name, _ := winstring.ReadWide(arg(a, st, 1))
			if err := s.RegDeleteValue(handle.H(a[0]), name); err != nil {
				return uintptr(winerr.CodeOf(err).ToWin32())
			}
			return 0
		}},
		{"RegDeleteKeyW", "(a0,a1)", func(a [4]uintptr, st []uintptr) uintptr {
			subKey, _ := winstring.ReadWide(arg(a, st, 1))
			if err := s.RegDeleteKey(handle.H(a[0]), subKey); err != nil {
				return uintptr(winerr.CodeOf(err).ToWin32())
			}
			return 0
		}},
		{"RegEnumValueW", "(a0,a1,a2,a3,a4,a5,a6,a7)", func(a [4]uintptr, st []uintptr) uintptr {
			index := int(arg(a, st, 1))
			name, err := s.RegEnumValue(handle.H(a[0]), index)
			if err != nil {
				return uintptr(winerr.Win32NoMoreItems)
			}
			writeEnumName(arg(a, st, 2), arg(a, st, 3), name)
			return 0
		}},
		{"RegEnumKeyExW", "(a0,a1,a2,a3,a4,a5,a6,a7)", func(a [4]uintptr, st []uintptr) uintptr {
			index := int(arg(a, st, 1))
			name, err := s.RegEnumKeyEx(handle.H(a[0]), index)
			if err != nil {
				return uintptr(winerr.Win32NoMoreItems)
			}
			writeEnumName(arg(a, st, 2), arg(a, st, 3), name)
			return 0
		}},
	}

	for _, e := range entries {
		addr, err := trampoline(e.fn)
		if err != nil {
			return err
		}
		register(e.name, addr, e.sig)
	}
	return nil
}
