package kernel32

import "unsafe"

func unsafePtr(p *byte) unsafe.Pointer {
	return unsafe.Pointer(p)
}
