// Package winstring marshals strings across the guest/host boundary.
// Because citc maps a guest image directly into the host process's own
// address space (see internal/abi), a guest pointer argument is already
// a valid host pointer: these helpers just walk that memory until the
// appropriate terminator.
package winstring

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/text/encoding/unicode"
)

// ReadAnsi reads a NUL-terminated single-byte string starting at addr.
// addr == 0 returns "", false.
func ReadAnsi(addr uintptr) (string, bool) {
	if addr == 0 {
		return "", false
	}
	const maxLen = 1 << 20
	p := (*byte)(unsafe.Pointer(addr))
	buf := unsafe.Slice(p, maxLen)
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), true
		}
	}
	return string(buf[:maxLen]), true
}

// ReadWide reads a NUL-terminated UTF-16LE string starting at addr and
// decodes it to UTF-8.
func ReadWide(addr uintptr) (string, bool) {
	if addr == 0 {
		return "", false
	}
	const maxUnits = 1 << 20
	p := (*uint16)(unsafe.Pointer(addr))
	units := unsafe.Slice(p, maxUnits)

	n := 0
	for n < maxUnits && units[n] != 0 {
		n++
	}

	raw := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(raw[i*2:], units[i])
	}
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := decoder.Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// WriteWide encodes s as UTF-16LE with a terminating NUL and writes it
// into the guest buffer at addr, which holds capacityBytes bytes. When s
// does not fit, it is truncated to capacityBytes/2-1 code units; the NUL
// is always written. It reports the number of UTF-16 code units
// written, not counting the terminator, matching what GetModuleFileNameW
// and friends return.
func WriteWide(addr uintptr, capacityBytes int, s string) int {
	units := EncodeWide(s)
	n := len(units)
	if (n+1)*2 > capacityBytes {
		n = capacityBytes/2 - 1
		if n < 0 {
			n = 0
		}
	}
	p := (*uint16)(unsafe.Pointer(addr))
	dst := unsafe.Slice(p, n+1)
	copy(dst[:n], units[:n])
	dst[n] = 0
	return n
}

// EncodeWide converts s to UTF-16 code units without a terminator.
func EncodeWide(s string) []uint16 {
	var out []uint16
	for _, r := range s {
		if r <= 0xFFFF {
			out = append(out, uint16(r))
			continue
		}
		r -= 0x10000
		out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return out
}
