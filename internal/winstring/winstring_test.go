package winstring

import (
	"testing"
	"unsafe"
)

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func TestReadAnsi(t *testing.T) {
	buf := []byte("hello\x00garbage")
	got, ok := ReadAnsi(addrOf(buf))
	if !ok || got != "hello" {
		t.Fatalf("ReadAnsi = (%q, %v), want (hello, true)", got, ok)
	}
}

func TestReadAnsiNilAddr(t *testing.T) {
	if _, ok := ReadAnsi(0); ok {
		t.Fatalf("ReadAnsi(0) reported ok=true")
	}
}

func TestReadWideRoundTrip(t *testing.T) {
	units := EncodeWide("Hello Registry!")
	buf := make([]byte, (len(units)+1)*2)
	for i, u := range units {
		buf[i*2] = byte(u)
		buf[i*2+1] = byte(u >> 8)
	}

	got, ok := ReadWide(addrOf(buf))
	if !ok || got != "Hello Registry!" {
		t.Fatalf("ReadWide = (%q, %v), want (Hello Registry!, true)", got, ok)
	}
}

func TestWriteWideThenReadWide(t *testing.T) {
	buf := make([]byte, 64)
	n := WriteWide(addrOf(buf), len(buf), "citc")
	if n != 4 {
		t.Fatalf("WriteWide returned %d, want 4", n)
	}
	got, ok := ReadWide(addrOf(buf))
	if !ok || got != "citc" {
		t.Fatalf("ReadWide after WriteWide = (%q, %v), want (citc, true)", got, ok)
	}
}

func TestWriteWideTruncatesToCapacity(t *testing.T) {
	buf := make([]byte, 6) // room for 2 units + NUL
	n := WriteWide(addrOf(buf), len(buf), "abcdef")
	if n != 2 {
		t.Fatalf("WriteWide truncated length = %d, want 2", n)
	}
}
