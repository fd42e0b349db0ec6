// Package abi implements the Microsoft x64 calling convention bridge:
// the first four integer/pointer arguments in
// RCX, RDX, R8, R9, a caller-reserved 32-byte shadow space, remaining
// arguments on the stack, and the callee-saved register set Windows x64
// code expects. citc runs on a POSIX amd64 host, so this package
// actually crosses into and out of native machine code: once into the guest's
// entry point (loader.Image.Run), and many times back out of it every
// time guest code calls an imported host function.
//
// Two directions need a bridge:
//
//   - Host -> guest: citc has a real function pointer (the mapped
//     entry point, or a TLS callback) and must invoke it as if it were
//     any other x64 function. callEntry (abi_amd64.s) does this with a
//     handful of assembly instructions -- the same technique the Go
//     runtime itself uses for asmstdcall on windows/amd64.
//
//   - Guest -> host: guest machine code holds a function pointer that
//     was written into its import address table by internal/loader.
//     That pointer must itself be valid x64 machine code, because the
//     guest CALLs it directly; it cannot be a Go func value (Go's
//     internal calling convention does not match the Microsoft x64
//     convention). Trampoline generates, at runtime, a tiny executable
//     stub per registered host function using the same "write machine
//     code into an executable mmap region" approach real FFI bridges
//     (e.g. the callback trampolines in package syscall on windows/amd64)
//     use to hand a foreign caller a real code address.
package abi

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Signature names the shape of a host function's arguments, purely for
// documentation and export-table tagging (internal/export.Entry.Signature).
// Every host export in citc takes zero to four register-class arguments
// plus optional stack args.
type Signature string

const (
	Sig0 Signature = "()"
	Sig1 Signature = "(a0)"
	Sig2 Signature = "(a0,a1)"
	Sig3 Signature = "(a0,a1,a2)"
	Sig4 Signature = "(a0,a1,a2,a3)"
)

// HostFunc is the Go-side implementation of an exported Win32/COM/D3D
// symbol. args holds up to four register arguments (RCX, RDX, R8, R9).
// dispatchAsm does not copy arguments off the guest's stack, so
// stackArgs is always empty when a guest call arrives through a
// trampoline. The return value is placed in RAX by the trampoline on
// the way back to the guest.
type HostFunc func(args [4]uintptr, stackArgs []uintptr) uintptr

// callEntry invokes addr with the Microsoft x64 convention and zero
// arguments, returning whatever the callee left in EAX. The guest
// entry point sees no arguments; its return value is the process exit
// code. Implemented in abi_amd64.s.
func callEntry(addr uintptr) int32

// CallEntry transfers control to the guest's entry point and returns
// its exit code.
func CallEntry(addr uintptr) int32 {
	return callEntry(addr)
}

// callWithArgs1 invokes addr with the Microsoft x64 convention, passing
// one pointer-sized argument in RCX. Implemented in abi_amd64.s.
func callWithArgs1(addr uintptr, a0 uintptr) uintptr

// CallWithArgs1 transfers control to a guest function taking one
// argument -- a guest thread start routine (LPTHREAD_START_ROUTINE,
// shaped as `lpParameter uintptr`) is the main user -- and returns
// whatever it left in RAX.
func CallWithArgs1(addr uintptr, a0 uintptr) uintptr {
	return callWithArgs1(addr, a0)
}

// callWithArgs3 invokes addr with the Microsoft x64 convention, passing
// three pointer-sized arguments in RCX, RDX, R8. Implemented in
// abi_amd64.s.
func callWithArgs3(addr uintptr, a0, a1, a2 uintptr) uintptr

// CallWithArgs3 transfers control to a guest function taking three
// arguments, such as a TLS callback
// (DllMain-shaped: module handle, reason, reserved) -- see
// tlsTemplate.fire in internal/loader/tls.go -- and returns whatever it
// left in RAX.
func CallWithArgs3(addr uintptr, a0, a1, a2 uintptr) uintptr {
	return callWithArgs3(addr, a0, a1, a2)
}

// callWithArgs4 invokes addr passing four pointer-sized arguments in
// RCX, RDX, R8, R9. Implemented in abi_amd64.s.
func callWithArgs4(addr uintptr, a0, a1, a2, a3 uintptr) uintptr

// CallWithArgs4 transfers control to a guest function taking four
// arguments -- a guest window procedure (HWND, msg, wParam, lParam) is
// the main user, see user32's dispatch path -- and returns whatever it
// left in RAX.
func CallWithArgs4(addr uintptr, a0, a1, a2, a3 uintptr) uintptr {
	return callWithArgs4(addr, a0, a1, a2, a3)
}

// dispatchTable holds every Trampoline-generated HostFunc, indexed by
// slot. Guest-code thunks load their slot number into R10 before
// jumping into dispatchAsm, which calls goDispatch below.
var (
	dispatchMu    sync.Mutex
	dispatchTable []HostFunc
)

// goDispatch is called from assembly (abi_amd64.s) once the register
// and stack arguments of a guest->host call have been marshaled. It is
// exported via //go:linkname-free convention: abi_amd64.s calls it as a
// normal Go function, so its signature must match Go's ABI exactly.
//
//go:nosplit
func goDispatch(slot uint32, a0, a1, a2, a3 uintptr, stackArgs *uintptr, stackArgsLen int) uintptr {
	dispatchMu.Lock()
	fn := dispatchTable[slot]
	dispatchMu.Unlock()

	var extra []uintptr
	if stackArgsLen > 0 {
		extra = unsafeSlice(stackArgs, stackArgsLen)
	}
	return fn([4]uintptr{a0, a1, a2, a3}, extra)
}

// Trampoline registers fn and returns a real, callable machine-code
// address implementing the Microsoft x64 convention: guest code may
// CALL this address directly, exactly as it would any Windows DLL
// export. The returned address is stable for the process lifetime.
func Trampoline(fn HostFunc) (uintptr, error) {
	dispatchMu.Lock()
	slot := uint32(len(dispatchTable))
	dispatchTable = append(dispatchTable, fn)
	dispatchMu.Unlock()

	return newThunk(slot)
}

// thunkSize is the fixed size of one thunk. Each mmap'd host page holds
// as many thunks as fit, so the mmap cost is paid once per page of
// trampolines.
const thunkSize = 32

type thunkPage struct {
	mem  []byte
	used int
}

var (
	thunkMu    sync.Mutex
	thunkPages []*thunkPage
)

func newThunk(slot uint32) (uintptr, error) {
	thunkMu.Lock()
	defer thunkMu.Unlock()

	pageSize := unix.Getpagesize()
	var pg *thunkPage
	if len(thunkPages) > 0 {
		last := thunkPages[len(thunkPages)-1]
		if (last.used+1)*thunkSize <= pageSize {
			pg = last
		}
	}
	if pg == nil {
		mem, err := unix.Mmap(-1, 0, pageSize,
			unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
			unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			return 0, fmt.Errorf("abi: mmap thunk page: %w", err)
		}
		pg = &thunkPage{mem: mem}
		thunkPages = append(thunkPages, pg)
	}

	off := pg.used * thunkSize
	pg.used++

	code := pg.mem[off : off+thunkSize]
	encodeThunk(code, slot, dispatchAsmAddr())

	return uintptr(unsafePointer(&code[0])), nil
}

// encodeThunk writes:
//
//	mov r10d, imm32      (41 BA <slot:4>)      -- 6 bytes
//	movabs r11, imm64    (49 BB <addr:8>)      -- 10 bytes
//	jmp r11              (41 FF E3)            -- 3 bytes
//
// into code, which must be at least 19 bytes (thunkSize leaves margin
// for alignment padding, filled with INT3 (0xCC)).
func encodeThunk(code []byte, slot uint32, dispatch uintptr) {
	for i := range code {
		code[i] = 0xCC
	}
	i := 0
	code[i] = 0x41
	code[i+1] = 0xBA
	binary.LittleEndian.PutUint32(code[i+2:], slot)
	i += 6

	code[i] = 0x49
	code[i+1] = 0xBB
	binary.LittleEndian.PutUint64(code[i+2:], uint64(dispatch))
	i += 10

	code[i] = 0x41
	code[i+1] = 0xFF
	code[i+2] = 0xE3
}

// dispatchAsm is the shared assembly entry point every generated thunk
// jumps to with the target slot in R10. It marshals RCX/RDX/R8/R9 (no
// stack arguments: goDispatch always receives a nil stackArgs with
// length 0) and calls goDispatch, then returns to the guest's
// original caller with the result in RAX. Implemented in abi_amd64.s.
func dispatchAsm()

func dispatchAsmAddr() uintptr {
	return funcAddr(dispatchAsm)
}
