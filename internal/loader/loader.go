// Package loader implements the host side of citc's Image Loader: it
// picks up where pkg/pe's pure parsing leaves off, mapping a parsed PE
// image into host memory, applying relocations, binding imports through
// the export resolver, setting up thread-local storage, and transferring
// control to the entry point.
//
// Partial loads are never observable: on any failure after memory has
// been mapped, every allocation from that attempt is released before
// Load returns.
package loader

import (
	"fmt"

	"github.com/citcrun/citc/internal/abi"
	"github.com/citcrun/citc/internal/export"
	"github.com/citcrun/citc/pkg/pe"
)

// Code names one of the Image Loader's five documented failure modes.
type Code int

const (
	Malformed Code = iota
	UnsupportedMachine
	UnsupportedSubsystem
	ImportUnresolved
	AllocationDenied
)

func (c Code) String() string {
	switch c {
	case Malformed:
		return "MALFORMED"
	case UnsupportedMachine:
		return "UNSUPPORTED_MACHINE"
	case UnsupportedSubsystem:
		return "UNSUPPORTED_SUBSYSTEM"
	case ImportUnresolved:
		return "IMPORT_UNRESOLVED"
	case AllocationDenied:
		return "ALLOCATION_DENIED"
	default:
		return "UNKNOWN"
	}
}

// Error wraps a Code with the underlying cause.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("loader: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("loader: %s", e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(code Code, err error) *Error { return &Error{Code: code, Err: err} }

// TLS reason codes, matching DllMain's reason argument -- citc's TLS
// callbacks are invoked with the same four values whether they fire at
// process load or around a guest thread's lifecycle (see tls.go).
const (
	DLLProcessDetach uint32 = 0
	DLLProcessAttach uint32 = 1
	DLLThreadAttach  uint32 = 2
	DLLThreadDetach  uint32 = 3
)

// Image is a loaded, mapped PE executable, ready to run or to receive
// TLS thread-attach/detach notifications for threads spawned after load.
type Image struct {
	mem   []byte
	base  uintptr
	entry uintptr
	size  uint32
	tls   *tlsTemplate
}

// Base returns the image's actual load address.
func (img *Image) Base() uintptr { return img.base }

// Entry returns the image's entry point address.
func (img *Image) Entry() uintptr { return img.entry }

// Load parses data as a PE image, maps it into host memory, applies
// base relocations, binds every import through resolver, and builds the
// main thread's TLS block. The returned Image is ready for Run.
func Load(data []byte, resolver *export.Resolver) (*Image, error) {
	f, err := pe.NewBytes(data, &pe.Options{})
	if err != nil {
		return nil, fail(Malformed, err)
	}
	// f.Close unconditionally calls Unmap on f's backing slice, which is
	// only safe when that slice came from a real mmap; NewBytes hands it
	// a plain Go slice instead, so Close is skipped here and the slice is
	// left for the garbage collector.

	if err := f.Parse(); err != nil {
		return nil, fail(Malformed, err)
	}

	if !f.Is64 {
		return nil, fail(UnsupportedMachine, fmt.Errorf("only PE32+ (64-bit) images are supported"))
	}
	if f.NtHeader.FileHeader.Machine != pe.ImageFileHeaderMachineType(pe.ImageFileMachineAMD64) {
		return nil, fail(UnsupportedMachine,
			fmt.Errorf("unsupported machine type %#x", uint16(f.NtHeader.FileHeader.Machine)))
	}

	oh, ok := f.NtHeader.OptionalHeader.(pe.ImageOptionalHeader64)
	if !ok {
		return nil, fail(Malformed, fmt.Errorf("missing PE32+ optional header"))
	}

	switch oh.Subsystem {
	case pe.ImageSubsystemWindowsGUI, pe.ImageSubsystemWindowsCUI:
	default:
		return nil, fail(UnsupportedSubsystem, fmt.Errorf("unsupported subsystem %d", oh.Subsystem))
	}

	img, err := mapImage(f, oh)
	if err != nil {
		return nil, fail(AllocationDenied, err)
	}

	if err := applyRelocations(f, img, oh); err != nil {
		img.release()
		return nil, fail(Malformed, err)
	}

	if err := bindImports(f, img, resolver); err != nil {
		img.release()
		return nil, fail(ImportUnresolved, err)
	}

	tmpl, err := buildTLSTemplate(f, img, oh)
	if err != nil {
		img.release()
		return nil, fail(Malformed, err)
	}
	img.tls = tmpl

	if err := protectSections(f, img); err != nil {
		img.release()
		return nil, fail(AllocationDenied, err)
	}

	img.entry = img.base + uintptr(oh.AddressOfEntryPoint)
	return img, nil
}

// FireThreadTLS runs every TLS callback with reason, in directory order.
// internal/kernel32's thread spawn/exit path calls this with
// DLLThreadAttach/DLLThreadDetach so every new guest thread gets its own
// independently initialized TLS callback pass, per the loader's
// thread-lifecycle contract.
func (img *Image) FireThreadTLS(reason uint32) {
	if img.tls == nil {
		return
	}
	img.tls.fire(img, reason)
}

// Run fires every TLS callback with DLLProcessAttach, transfers control
// to the entry point, and returns the guest's exit code. TLS callbacks
// fire again with DLLProcessDetach once the entry point returns, mirroring
// a normal process exit.
func (img *Image) Run() int32 {
	img.FireThreadTLS(DLLProcessAttach)
	code := abi.CallEntry(img.entry)
	img.FireThreadTLS(DLLProcessDetach)
	return code
}

// Close releases every host allocation this Image holds.
func (img *Image) Close() error {
	return img.release()
}
