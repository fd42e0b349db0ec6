package kernel32

import "testing"

func TestInterlockedAdd(t *testing.T) {
	var v int32 = 10
	if got := InterlockedAdd32(&v, 5); got != 15 {
		t.Fatalf("InterlockedAdd32 = %d, want 15", got)
	}
	if v != 15 {
		t.Fatalf("v = %d, want 15", v)
	}
}

func TestInterlockedExchange(t *testing.T) {
	var v int64 = 7
	prev := InterlockedExchange64(&v, 99)
	if prev != 7 {
		t.Fatalf("InterlockedExchange64 returned %d, want prior value 7", prev)
	}
	if v != 99 {
		t.Fatalf("v = %d, want 99", v)
	}
}

func TestInterlockedCompareExchangeReturnsPriorValue(t *testing.T) {
	var v int32 = 5

	prev := InterlockedCompareExchange32(&v, 20, 5)
	if prev != 5 {
		t.Fatalf("InterlockedCompareExchange32 returned %d, want prior value 5", prev)
	}
	if v != 20 {
		t.Fatalf("v = %d, want 20 after a matching compare", v)
	}

	prev = InterlockedCompareExchange32(&v, 99, 5)
	if prev != 20 {
		t.Fatalf("InterlockedCompareExchange32 returned %d, want prior value 20", prev)
	}
	if v != 20 {
		t.Fatalf("v = %d, want unchanged 20 after a mismatched compare", v)
	}
}
