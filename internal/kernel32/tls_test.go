package kernel32

import "testing"

func TestTlsAllocSetGetFree(t *testing.T) {
	k := newTestSubsystem()
	k.tlsCur.attachThread()
	defer k.tlsCur.detachThread()

	idx, err := k.TlsAlloc()
	if err != nil {
		t.Fatalf("TlsAlloc failed: %v", err)
	}

	if err := k.TlsSetValue(idx, 0xabc); err != nil {
		t.Fatalf("TlsSetValue failed: %v", err)
	}
	if got := k.TlsGetValue(idx); got != 0xabc {
		t.Fatalf("TlsGetValue = %#x, want 0xabc", got)
	}

	if err := k.TlsFree(idx); err != nil {
		t.Fatalf("TlsFree failed: %v", err)
	}
}

func TestTlsAllocExhaustsPool(t *testing.T) {
	k := newTestSubsystem()
	k.tlsCur.attachThread()
	defer k.tlsCur.detachThread()

	for i := 0; i < tlsSlots; i++ {
		if _, err := k.TlsAlloc(); err != nil {
			t.Fatalf("TlsAlloc #%d failed: %v", i, err)
		}
	}
	if _, err := k.TlsAlloc(); err == nil {
		t.Fatalf("TlsAlloc succeeded after the pool was exhausted")
	}
}

func TestTlsGetValueWithoutAttachedThread(t *testing.T) {
	k := newTestSubsystem()
	if got := k.TlsGetValue(0); got != 0 {
		t.Fatalf("TlsGetValue = %#x, want 0 for a detached thread", got)
	}
}

func TestTlsSetValueInvalidIndex(t *testing.T) {
	k := newTestSubsystem()
	if err := k.TlsSetValue(tlsSlots, 1); err == nil {
		t.Fatalf("TlsSetValue succeeded with an out-of-range index")
	}
}
