package kernel32

import "testing"

func TestCriticalSectionRecursiveEnterLeave(t *testing.T) {
	cs := NewCriticalSection()

	cs.Enter()
	cs.Enter()
	if !cs.has {
		t.Fatalf("section not held after two Enter calls")
	}

	cs.Leave()
	if !cs.has {
		t.Fatalf("section released after only one of two Leave calls")
	}

	cs.Leave()
	if cs.has {
		t.Fatalf("section still held after matching Leave calls")
	}
}

func TestTryEnterCriticalSection(t *testing.T) {
	cs := NewCriticalSection()
	if !cs.TryEnter() {
		t.Fatalf("TryEnter failed on an unheld section")
	}
	if !cs.TryEnter() {
		t.Fatalf("TryEnter failed for the owning thread re-entering")
	}
	cs.Leave()
	cs.Leave()
}

func TestSubsystemCriticalSectionByAddress(t *testing.T) {
	k := newTestSubsystem()
	addr := uintptr(0x1000)

	k.InitializeCriticalSection(addr)
	k.EnterCriticalSection(addr)
	k.LeaveCriticalSection(addr)
	k.DeleteCriticalSection(addr)

	if k.lookupCriticalSection(addr) != nil {
		t.Fatalf("section still registered after DeleteCriticalSection")
	}
}

func TestEnterCriticalSectionLazilyAllocates(t *testing.T) {
	k := newTestSubsystem()
	addr := uintptr(0x2000)

	k.EnterCriticalSection(addr)
	k.LeaveCriticalSection(addr)

	if k.lookupCriticalSection(addr) == nil {
		t.Fatalf("no section was lazily allocated for an un-initialized address")
	}
}
