package kernel32

import "testing"

func TestVirtualAllocProtectFree(t *testing.T) {
	k := newTestSubsystem()

	base, err := k.VirtualAlloc(4096, PageReadWrite)
	if err != nil {
		t.Fatalf("VirtualAlloc failed: %v", err)
	}
	if base == 0 {
		t.Fatalf("VirtualAlloc returned a nil base")
	}

	if err := k.VirtualProtect(base, 4096, PageReadOnly); err != nil {
		t.Fatalf("VirtualProtect failed: %v", err)
	}

	if err := k.VirtualFree(base); err != nil {
		t.Fatalf("VirtualFree failed: %v", err)
	}

	if err := k.VirtualFree(base); err == nil {
		t.Fatalf("VirtualFree succeeded twice on the same base")
	}
}

func TestVirtualAllocRoundsUpToPageSize(t *testing.T) {
	k := newTestSubsystem()

	base, err := k.VirtualAlloc(1, PageReadWrite)
	if err != nil {
		t.Fatalf("VirtualAlloc failed: %v", err)
	}
	defer k.VirtualFree(base)

	r := k.mem.regions[base]
	if r == nil {
		t.Fatalf("region not tracked for base %#x", base)
	}
	if len(r.base) < 4096 {
		t.Fatalf("region size = %d, want at least one page", len(r.base))
	}
}

func TestVirtualProtectUnknownBase(t *testing.T) {
	k := newTestSubsystem()
	if err := k.VirtualProtect(0xdeadbeef, 4096, PageReadOnly); err == nil {
		t.Fatalf("VirtualProtect succeeded against an unknown base")
	}
}
