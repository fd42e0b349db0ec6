package export

import "testing"

func TestResolveByNameCaseSensitive(t *testing.T) {
	r := New()
	r.Register("kernel32.dll", Entry{Name: "GetLastError", Addr: 0x1000})

	if _, err := r.Resolve("kernel32.dll", "GetLastError"); err != nil {
		t.Fatalf("Resolve exact case failed: %v", err)
	}
	if _, err := r.Resolve("kernel32.dll", "getlasterror"); err == nil {
		t.Fatalf("Resolve succeeded with mismatched symbol case")
	}
}

func TestResolveDLLNameCaseInsensitive(t *testing.T) {
	r := New()
	r.Register("Kernel32.DLL", Entry{Name: "Sleep", Addr: 0x2000})

	entry, err := r.Resolve("KERNEL32.dll", "Sleep")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if entry.Addr != 0x2000 {
		t.Fatalf("Addr = %#x, want 0x2000", entry.Addr)
	}
}

func TestResolveUnknownDLL(t *testing.T) {
	r := New()
	if _, err := r.Resolve("user32.dll", "MessageBoxW"); err == nil {
		t.Fatalf("Resolve succeeded against an unregistered DLL")
	}
}

func TestResolveOrdinal(t *testing.T) {
	r := New()
	r.Register("ws2_32.dll", Entry{Ordinal: 3, Addr: 0x3000})

	entry, err := r.ResolveOrdinal("ws2_32.dll", 3)
	if err != nil {
		t.Fatalf("ResolveOrdinal failed: %v", err)
	}
	if entry.Addr != 0x3000 {
		t.Fatalf("Addr = %#x, want 0x3000", entry.Addr)
	}

	if _, err := r.ResolveOrdinal("ws2_32.dll", 4); err == nil {
		t.Fatalf("ResolveOrdinal succeeded for an unregistered ordinal")
	}
}

func TestKnown(t *testing.T) {
	r := New()
	r.Register("advapi32.dll", Entry{Name: "RegOpenKeyExW", Addr: 0x4000})

	if !r.Known("advapi32.dll") {
		t.Fatalf("Known(advapi32.dll) = false, want true")
	}
	if !r.Known("ADVAPI32.DLL") {
		t.Fatalf("Known is not case-insensitive on the DLL name")
	}
	if r.Known("gdi32.dll") {
		t.Fatalf("Known(gdi32.dll) = true, want false")
	}
}
