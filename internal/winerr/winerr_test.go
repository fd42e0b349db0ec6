package winerr

import (
	"errors"
	"testing"
)

func TestCodeOfUnwrapsWrappedError(t *testing.T) {
	inner := New("CreateFile", NotFound, errors.New("no such file"))
	wrapped := errors.New("wrapped: " + inner.Error())

	if got := CodeOf(inner); got != NotFound {
		t.Fatalf("CodeOf(inner) = %v, want NotFound", got)
	}
	if got := CodeOf(wrapped); got != Unreachable {
		t.Fatalf("CodeOf(wrapped-by-string) = %v, want Unreachable", got)
	}
	if got := CodeOf(nil); got != OK {
		t.Fatalf("CodeOf(nil) = %v, want OK", got)
	}
}

func TestHRESULTSucceededFailed(t *testing.T) {
	ok := OK.ToHRESULT()
	if !Succeeded(ok) {
		t.Fatalf("Succeeded(%#x) = false, want true", ok)
	}
	fail := NotFound.ToHRESULT()
	if !Failed(fail) {
		t.Fatalf("Failed(%#x) = false, want true", fail)
	}
	if Succeeded(fail) {
		t.Fatalf("Succeeded(%#x) = true, want false", fail)
	}
}

func TestToWin32RoundTrips(t *testing.T) {
	tests := []struct {
		code Code
		want uint32
	}{
		{OK, Win32Success},
		{NotFound, Win32FileNotFound},
		{PermissionDenied, Win32AccessDenied},
		{AlreadyExists, Win32AlreadyExists},
		{ResourceExhausted, Win32NotEnoughMemory},
		{TimedOut, Win32Timeout},
	}
	for _, tt := range tests {
		if got := tt.code.ToWin32(); got != tt.want {
			t.Errorf("%v.ToWin32() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := New("WriteFile", IOFailed, cause)
	if !errors.Is(e, cause) {
		t.Fatalf("errors.Is(e, cause) = false, want true")
	}
}

func TestCodeStringKnownValues(t *testing.T) {
	if OK.String() != "OK" {
		t.Fatalf("OK.String() = %q, want OK", OK.String())
	}
	if NotFound.String() != "NOT_FOUND" {
		t.Fatalf("NotFound.String() = %q, want NOT_FOUND", NotFound.String())
	}
}
