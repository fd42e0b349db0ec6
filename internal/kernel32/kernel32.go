package kernel32

import (
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/citcrun/citc/internal/citclog"
	"github.com/citcrun/citc/internal/export"
	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winerr"
	"github.com/citcrun/citc/internal/winstring"
)

// Pseudo-handles for the standard streams, resolved without entering the
// handle table.
const (
	StdInputHandle  handle.H = 0xFFFFFFF6 // (DWORD)-10
	StdOutputHandle handle.H = 0xFFFFFFF5 // (DWORD)-11
	StdErrorHandle  handle.H = 0xFFFFFFF4 // (DWORD)-12
)

// HostAdapter mirrors internal/abi.HostFunc's shape without importing
// that package, so kernel32 stays a leaf: args holds the first four
// register arguments (RCX/RDX/R8/R9), stackArgs anything beyond them.
type HostAdapter func(args [4]uintptr, stackArgs []uintptr) uintptr

// ThreadEntryInvoker calls a guest LPTHREAD_START_ROUTINE-shaped function
// at addr with one argument and returns its result. internal/host wires
// this to internal/abi.CallWithArgs1 once at construction, so kernel32
// never imports internal/abi directly.
type ThreadEntryInvoker func(addr, arg uintptr) uint32

// ThreadLifecycleReason says whether a host thread backing a guest
// thread is starting or about to exit, so internal/host can fire the
// loaded image's TLS callbacks (internal/loader) with the matching
// DLL_THREAD_ATTACH/DLL_THREAD_DETACH reason. Distinct from the Win32
// Tls* index pool (threadLocal, see tls.go), which kernel32 manages
// itself.
type ThreadLifecycleReason int

const (
	ThreadAttach ThreadLifecycleReason = iota
	ThreadDetach
)

// CreateThread's dwCreationFlags bit requesting a thread parked until
// ResumeThread.
const createSuspended = 0x00000004

// Subsystem implements the K component. One instance lives on
// internal/host.Host for the process lifetime.
type Subsystem struct {
	handles *handle.Table
	log     *citclog.Helper

	tlsMu  sync.Mutex
	tlsCur *threadLocal // the pool of Win32 TLS indices, see tls.go

	lastErrMu sync.Mutex
	lastErr   map[uint32]winerr.Code // keyed by host thread id

	envMu sync.Mutex
	env   map[string]string // per-process override, copy-on-read of os.Environ()

	mem *MemoryManager

	csMu sync.Mutex
	cs   map[uintptr]*CriticalSection // keyed by the guest CRITICAL_SECTION's address

	stdout, stderr, stdin *os.File

	threadLifecycle   func(ThreadLifecycleReason)
	invokeThreadEntry ThreadEntryInvoker
}

// SetThreadLifecycleHook installs the callback internal/host fires around
// every guest thread's start and exit, so the loaded image's TLS
// callbacks run with DLL_THREAD_ATTACH/DLL_THREAD_DETACH. Left unset, a
// spawned thread's lifecycle is simply not reported anywhere.
func (k *Subsystem) SetThreadLifecycleHook(hook func(ThreadLifecycleReason)) {
	k.threadLifecycle = hook
}

// SetThreadEntryInvoker installs the function CreateThread uses to call a
// guest start address. Must be set before Register's CreateThread export
// can be invoked; internal/host wires it to internal/abi.CallWithArgs1.
func (k *Subsystem) SetThreadEntryInvoker(invoke ThreadEntryInvoker) {
	k.invokeThreadEntry = invoke
}

// New builds the K subsystem over a shared handle table.
func New(handles *handle.Table, log *citclog.Helper) *Subsystem {
	return &Subsystem{
		handles: handles,
		log:     log,
		tlsCur:  newThreadLocal(),
		lastErr: make(map[uint32]winerr.Code),
		env:     copyEnviron(),
		mem:     newMemoryManager(),
		cs:      make(map[uintptr]*CriticalSection),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		stdin:   os.Stdin,
	}
}

func copyEnviron() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return m
}

// resolveStdHandle maps a standard-stream pseudo-handle to its *os.File.
// It returns nil for every other handle, including handle-table
// handles, which WriteHandle/ReadHandle then pass on to
// WriteFile/ReadFile.
func (k *Subsystem) resolveStdHandle(h handle.H) *os.File {
	switch h {
	case StdInputHandle:
		return k.stdin
	case StdOutputHandle:
		return k.stdout
	case StdErrorHandle:
		return k.stderr
	default:
		return nil
	}
}

// WriteHandle is the common path for WriteFile against either a pseudo
// stream handle or a real FileObject, since S1 ("Hello") writes to the
// standard-output pseudo-handle.
func (k *Subsystem) WriteHandle(h handle.H, buf []byte) (int, error) {
	if f := k.resolveStdHandle(h); f != nil {
		n, err := f.Write(buf)
		if err != nil {
			k.setLastError(winerr.IOFailed)
			return n, winerr.New("WriteFile", winerr.IOFailed, err)
		}
		k.setLastError(winerr.OK)
		return n, nil
	}
	return k.WriteFile(h, buf)
}

// ReadHandle mirrors WriteHandle for the input pseudo-stream.
func (k *Subsystem) ReadHandle(h handle.H, buf []byte) (int, error) {
	if f := k.resolveStdHandle(h); f != nil {
		n, err := f.Read(buf)
		if err != nil {
			k.setLastError(winerr.IOFailed)
			return n, winerr.New("ReadFile", winerr.IOFailed, err)
		}
		k.setLastError(winerr.OK)
		return n, nil
	}
	return k.ReadFile(h, buf)
}

func (k *Subsystem) setLastError(c winerr.Code) {
	k.lastErrMu.Lock()
	defer k.lastErrMu.Unlock()
	k.lastErr[currentThreadID()] = c
}

// GetLastError reads back the calling (host) thread's most recent error
// code, translated to its Win32 numeric form.
func (k *Subsystem) GetLastError() uint32 {
	k.lastErrMu.Lock()
	defer k.lastErrMu.Unlock()
	return k.lastErr[currentThreadID()].ToWin32()
}

// SetLastError lets the guest (or another subsystem acting on its
// behalf) set the last-error cell directly.
func (k *Subsystem) SetLastError(win32 uint32) {
	k.lastErrMu.Lock()
	defer k.lastErrMu.Unlock()
	k.lastErr[currentThreadID()] = fromWin32(win32)
}

func fromWin32(v uint32) winerr.Code {
	switch v {
	case winerr.Win32Success:
		return winerr.OK
	case winerr.Win32FileNotFound:
		return winerr.NotFound
	case winerr.Win32AccessDenied:
		return winerr.PermissionDenied
	case winerr.Win32AlreadyExists:
		return winerr.AlreadyExists
	case winerr.Win32NotEnoughMemory:
		return winerr.ResourceExhausted
	case winerr.Win32Timeout:
		return winerr.TimedOut
	default:
		return winerr.Unreachable
	}
}

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
	*(*uint32)(unsafe.Pointer(addr)) = v
}

func putUint64(addr uintptr, v uint64) {
	if addr == 0 {
		return
	}
	*(*uint64)(unsafe.Pointer(addr)) = v
}

func boolToUintptr(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}

// millisToDuration translates a WaitForSingleObject-style millisecond
// timeout, with INFINITE (0xFFFFFFFF) mapped to Infinite.
func millisToDuration(ms uint32) time.Duration {
	if ms == 0xFFFFFFFF {
		return Infinite
	}
	return time.Duration(ms) * time.Millisecond
}

// waitResultOf translates a wait outcome to its WAIT_OBJECT_0/WAIT_TIMEOUT
// numeric form.
func waitResultOf(code winerr.Code) uintptr {
	if code == winerr.TimedOut {
		return 0x00000102 // WAIT_TIMEOUT
	}
	return 0 // WAIT_OBJECT_0
}

// Register installs every kernel32.dll export this subsystem implements
// into r. trampoline turns a HostAdapter closure into a real, callable
// Microsoft x64 machine address (internal/abi.Trampoline); Register
// takes it as a parameter rather than importing internal/abi's concrete
// type so kernel32 stays agnostic of how the bridge is implemented.
func (k *Subsystem) Register(r *export.Resolver, trampoline func(HostAdapter) (uintptr, error)) error {
	entries := []struct {
		name string
		sig  string
		fn   HostAdapter
	}{
		{"GetLastError", "()", func(args [4]uintptr, _ []uintptr) uintptr {
			return uintptr(k.GetLastError())
		}},
		{"SetLastError", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			k.SetLastError(uint32(args[0]))
			return 0
		}},
		{"ExitProcess", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			os.Exit(int(int32(args[0])))
			return 0
		}},
		{"GetStdHandle", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			switch int32(args[0]) {
			case -10:
				return uintptr(StdInputHandle)
			case -11:
				return uintptr(StdOutputHandle)
			case -12:
				return uintptr(StdErrorHandle)
			default:
				return uintptr(handle.Invalid)
			}
		}},
		{"CloseHandle", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			if err := k.handles.Close(handle.H(args[0])); err != nil {
				k.setLastError(winerr.CodeOf(err))
				return 0
			}
			return 1
		}},
		// CreateThread(lpThreadAttributes, dwStackSize, lpStartAddress,
		// lpParameter, dwCreationFlags, lpThreadId). The first four
		// arguments arrive in registers; dwCreationFlags and lpThreadId
		// are the fifth and sixth, spilled to the stack.
		{"CreateThread", "(a0,a1,a2,a3,s0,s1)", func(args [4]uintptr, stack []uintptr) uintptr {
			if k.invokeThreadEntry == nil {
				k.setLastError(winerr.Unreachable)
				return 0
			}
			startAddr := args[2]
			param := args[3]
			var flags uintptr
			if len(stack) > 0 {
				flags = stack[0]
			}
			suspended := flags&createSuspended != 0

			h := k.SpawnThread(func(arg uintptr) uint32 {
				return k.invokeThreadEntry(startAddr, arg)
			}, param, suspended)

			if len(stack) > 1 && stack[1] != 0 {
				// hostTID is set by the spawned goroutine itself and may
				// not have landed yet; a racing reader sees 0 here, which
				// GetThreadId's caller would see too on real Windows
				// under similar scheduling pressure.
				obj, ok := k.lookupThread(h)
				if ok {
					obj.mu.Lock()
					tid := obj.hostTID
					obj.mu.Unlock()
					*(*uint32)(unsafe.Pointer(stack[1])) = tid
				}
			}
			return uintptr(h)
		}},

		{"VirtualAlloc", "(a0,a1,a2,a3)", func(args [4]uintptr, _ []uintptr) uintptr {
			base, err := k.VirtualAlloc(uint64(args[1]), uint32(args[3]))
			if err != nil {
				return 0
			}
			return base
		}},
		{"VirtualProtect", "(a0,a1,a2,a3)", func(args [4]uintptr, st []uintptr) uintptr {
			old := arg(args, st, 3)
			if err := k.VirtualProtect(args[0], uint64(args[1]), uint32(args[2])); err != nil {
				return 0
			}
			putUint32(old, PageReadWrite)
			return 1
		}},
		{"VirtualFree", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			if err := k.VirtualFree(args[0]); err != nil {
				return 0
			}
			return 1
		}},

		{"GetTickCount", "()", func(args [4]uintptr, _ []uintptr) uintptr {
			return uintptr(k.GetTickCount())
		}},
		{"QueryPerformanceCounter", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			putUint64(args[0], k.QueryPerformanceCounter())
			return 1
		}},
		{"QueryPerformanceFrequency", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			putUint64(args[0], k.QueryPerformanceFrequency())
			return 1
		}},
		{"Sleep", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			k.Sleep(uint32(args[0]))
			return 0
		}},

		{"InitializeCriticalSection", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			k.InitializeCriticalSection(args[0])
			return 0
		}},
		{"DeleteCriticalSection", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			k.DeleteCriticalSection(args[0])
			return 0
		}},
		{"EnterCriticalSection", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			k.EnterCriticalSection(args[0])
			return 0
		}},
		{"LeaveCriticalSection", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			k.LeaveCriticalSection(args[0])
			return 0
		}},
		{"TryEnterCriticalSection", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			return boolToUintptr(k.TryEnterCriticalSection(args[0]))
		}},

		{"GetEnvironmentVariableW", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			name, _ := winstring.ReadWide(args[0])
			v, ok := k.GetEnvironmentVariable(name)
			if !ok {
				k.setLastError(winerr.NotFound)
				return 0
			}
			return uintptr(winstring.WriteWide(args[1], int(args[2])*2, v))
		}},
		{"SetEnvironmentVariableW", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			name, _ := winstring.ReadWide(args[0])
			value, _ := winstring.ReadWide(args[1])
			k.SetEnvironmentVariable(name, value)
			return 1
		}},

		{"TlsAlloc", "()", func(args [4]uintptr, _ []uintptr) uintptr {
			idx, err := k.TlsAlloc()
			if err != nil {
				return 0xFFFFFFFF // TLS_OUT_OF_INDEXES
			}
			return uintptr(idx)
		}},
		{"TlsFree", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			return boolToUintptr(k.TlsFree(uint32(args[0])) == nil)
		}},
		{"TlsGetValue", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			return k.TlsGetValue(uint32(args[0]))
		}},
		{"TlsSetValue", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			return boolToUintptr(k.TlsSetValue(uint32(args[0]), args[1]) == nil)
		}},

		{"CreateFileW", "(a0,a1,a2,a3,...)", func(args [4]uintptr, st []uintptr) uintptr {
			path, _ := winstring.ReadWide(args[0])
			h, err := k.CreateFile(path, uint32(args[1]), uint32(args[2]), uint32(arg(args, st, 4)), uint32(arg(args, st, 5)))
			if err != nil {
				return uintptr(handle.Invalid)
			}
			return uintptr(h)
		}},
		{"ReadFile", "(a0,a1,a2,a3,a4)", func(args [4]uintptr, st []uintptr) uintptr {
			n := uint32(args[2])
			buf := unsafe.Slice((*byte)(unsafe.Pointer(args[1])), n)
			read, err := k.ReadHandle(handle.H(args[0]), buf)
			putUint32(args[3], uint32(read))
			return boolToUintptr(err == nil)
		}},
		{"WriteFile", "(a0,a1,a2,a3,a4)", func(args [4]uintptr, st []uintptr) uintptr {
			n := uint32(args[2])
			buf := unsafe.Slice((*byte)(unsafe.Pointer(args[1])), n)
			written, err := k.WriteHandle(handle.H(args[0]), buf)
			putUint32(args[3], uint32(written))
			return boolToUintptr(err == nil)
		}},
		{"GetFileSize", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			size, err := k.GetFileSize(handle.H(args[0]))
			if err != nil {
				return 0xFFFFFFFF
			}
			putUint32(args[1], uint32(size>>32))
			return uintptr(uint32(size))
		}},
		{"SetFilePointer", "(a0,a1,a2,a3)", func(args [4]uintptr, _ []uintptr) uintptr {
			pos, err := k.SetFilePointer(handle.H(args[0]), int64(int32(args[1])), uint32(args[3]))
			if err != nil {
				return 0xFFFFFFFF
			}
			return uintptr(uint32(pos))
		}},
		{"DeleteFileW", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			path, _ := winstring.ReadWide(args[0])
			return boolToUintptr(k.DeleteFile(path) == nil)
		}},
		{"CreateDirectoryW", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			path, _ := winstring.ReadWide(args[0])
			return boolToUintptr(k.CreateDirectory(path) == nil)
		}},
		{"RemoveDirectoryW", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			path, _ := winstring.ReadWide(args[0])
			return boolToUintptr(k.RemoveDirectory(path) == nil)
		}},

		{"CreateEventW", "(a0,a1,a2,a3)", func(args [4]uintptr, _ []uintptr) uintptr {
			return uintptr(k.CreateEvent(args[1] != 0, args[2] != 0))
		}},
		{"CreateMutexW", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			return uintptr(k.CreateMutex(args[1] != 0))
		}},
		{"CreateSemaphoreW", "(a0,a1,a2,a3)", func(args [4]uintptr, _ []uintptr) uintptr {
			return uintptr(k.CreateSemaphore(int64(args[1]), int64(args[2])))
		}},
		{"SetEvent", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			return boolToUintptr(k.SetEvent(handle.H(args[0])) == nil)
		}},
		{"ResetEvent", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			return boolToUintptr(k.ResetEvent(handle.H(args[0])) == nil)
		}},
		{"ReleaseMutex", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			return boolToUintptr(k.ReleaseMutex(handle.H(args[0])) == nil)
		}},
		{"ReleaseSemaphore", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			prev, err := k.ReleaseSemaphore(handle.H(args[0]), int64(args[1]))
			if err != nil {
				return 0
			}
			putUint32(args[2], uint32(prev))
			return 1
		}},
		{"WaitForSingleObject", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			code, err := k.WaitForSingleObject(handle.H(args[0]), millisToDuration(uint32(args[1])))
			if err != nil {
				return 0xFFFFFFFF // WAIT_FAILED
			}
			return waitResultOf(code)
		}},
	}

	for _, e := range entries {
		addr, err := trampoline(e.fn)
		if err != nil {
			return err
		}
		r.Register("kernel32.dll", export.Entry{Name: e.name, Addr: addr, Signature: e.sig})
	}
	return nil
}
