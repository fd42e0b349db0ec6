package abi

import (
	"reflect"
	"unsafe"
)

// unsafeSlice reconstructs a []uintptr view over n words starting at p.
// Used to hand goDispatch's stack-argument pointer to HostFunc as a
// normal Go slice.
func unsafeSlice(p *uintptr, n int) []uintptr {
	return unsafe.Slice(p, n)
}

func unsafePointer(p *byte) unsafe.Pointer {
	return unsafe.Pointer(p)
}

// funcAddr returns the entry program-counter of an assembly-implemented
// Go function (one declared with no body and a matching TEXT symbol).
// reflect.Value.Pointer on a func value obtained this way returns the
// real code address, not a closure trampoline, because assembly
// functions are never closures.
func funcAddr(fn interface{}) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
