package user32

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// currentThreadID returns the host kernel thread id for the calling
// goroutine, matching kernel32.currentThreadID's contract so a guest
// thread's message queue stays keyed the same way across subsystems.
func currentThreadID() uint32 {
	return uint32(unix.Gettid())
}

func periodFromMillis(ms uintptr) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// guestMSG mirrors the Win32 MSG structure's field order and width for
// the fields user32 actually marshals.
type guestMSG struct {
	hwnd    uintptr
	message uint32
	_       uint32 // padding to keep wParam 8-byte aligned
	wParam  uintptr
	lParam  uintptr
	time    uint32
	_       uint32
}

func writeMSG(addr uintptr, m Message) {
	p := (*guestMSG)(unsafe.Pointer(addr))
	p.message = m.Code
	p.wParam = m.WParam
	p.lParam = m.LParam
	p.time = uint32(m.Timestamp)
	if m.Window != nil {
		p.hwnd = uintptr(m.Window.HWND)
	}
}

func writeRectInto(addr uintptr, r Rect) {
	p := (*Rect)(unsafe.Pointer(addr))
	*p = r
}

func readRectFrom(addr uintptr) Rect {
	p := (*Rect)(unsafe.Pointer(addr))
	return *p
}
