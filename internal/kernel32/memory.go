package kernel32

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/citcrun/citc/internal/winerr"
)

// Protection flags, matching the subset of Windows PAGE_* constants
// citc needs: the possible combinations of read/write/execute.
const (
	PageNoAccess         = 0x01
	PageReadOnly         = 0x02
	PageReadWrite        = 0x04
	PageExecute          = 0x10
	PageExecuteRead      = 0x20
	PageExecuteReadWrite = 0x40
)

// allocation type flags (MEM_RESERVE / MEM_COMMIT / MEM_RELEASE).
const (
	MemReserve = 0x00002000
	MemCommit  = 0x00001000
	MemRelease = 0x00008000
)

func toHostProt(winProt uint32) int {
	switch winProt {
	case PageNoAccess:
		return unix.PROT_NONE
	case PageReadOnly:
		return unix.PROT_READ
	case PageReadWrite:
		return unix.PROT_READ | unix.PROT_WRITE
	case PageExecute:
		return unix.PROT_EXEC
	case PageExecuteRead:
		return unix.PROT_READ | unix.PROT_EXEC
	case PageExecuteReadWrite:
		return unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
	default:
		return unix.PROT_READ | unix.PROT_WRITE
	}
}

// region tracks one VirtualAlloc reservation so VirtualFree can release
// the entire original reservation as a whole.
type region struct {
	base []byte
}

// MemoryManager tracks every guest VirtualAlloc reservation so the host
// mmap can be torn down on VirtualFree/process exit.
type MemoryManager struct {
	mu      sync.Mutex
	regions map[uintptr]*region
}

func newMemoryManager() *MemoryManager {
	return &MemoryManager{regions: make(map[uintptr]*region)}
}

// VirtualAlloc reserves and commits size bytes in one step, rounded up
// to page granularity, with protect applied as the intersection of
// read/write/execute the host supports. There is no reserve-only mode.
func (k *Subsystem) VirtualAlloc(size uint64, protect uint32) (uintptr, error) {
	pageSize := uint64(unix.Getpagesize())
	aligned := (size + pageSize - 1) / pageSize * pageSize
	if aligned == 0 {
		aligned = pageSize
	}

	mem, err := unix.Mmap(-1, 0, int(aligned), toHostProt(protect),
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		k.setLastError(winerr.ResourceExhausted)
		return 0, winerr.New("VirtualAlloc", winerr.ResourceExhausted, err)
	}

	base := uintptr(unsafePtr(&mem[0]))
	k.mem.mu.Lock()
	k.mem.regions[base] = &region{base: mem}
	k.mem.mu.Unlock()

	k.setLastError(winerr.OK)
	return base, nil
}

// VirtualProtect changes the protection of an existing reservation.
func (k *Subsystem) VirtualProtect(base uintptr, size uint64, protect uint32) error {
	k.mem.mu.Lock()
	r, ok := k.mem.regions[base]
	k.mem.mu.Unlock()
	if !ok {
		k.setLastError(winerr.StateInvalid)
		return winerr.New("VirtualProtect", winerr.StateInvalid, nil)
	}
	if err := unix.Mprotect(r.base, toHostProt(protect)); err != nil {
		k.setLastError(winerr.IOFailed)
		return winerr.New("VirtualProtect", winerr.IOFailed, err)
	}
	k.setLastError(winerr.OK)
	return nil
}

// VirtualFree releases the entire reservation that began at base.
func (k *Subsystem) VirtualFree(base uintptr) error {
	k.mem.mu.Lock()
	r, ok := k.mem.regions[base]
	if ok {
		delete(k.mem.regions, base)
	}
	k.mem.mu.Unlock()

	if !ok {
		k.setLastError(winerr.StateInvalid)
		return winerr.New("VirtualFree", winerr.StateInvalid, nil)
	}
	if err := unix.Munmap(r.base); err != nil {
		k.setLastError(winerr.IOFailed)
		return winerr.New("VirtualFree", winerr.IOFailed, err)
	}
	k.setLastError(winerr.OK)
	return nil
}
