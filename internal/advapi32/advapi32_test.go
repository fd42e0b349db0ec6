package advapi32

import (
	"bytes"
	"testing"

	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/registry"
)

func newTestSubsystem(t *testing.T) *Subsystem {
	t.Helper()
	store, err := registry.Open(t.TempDir())
	if err != nil {
		t.Fatalf("registry.Open failed: %v", err)
	}
	return New(store, handle.NewTable())
}

func TestCreateKeyUnderPredefinedHive(t *testing.T) {
	s := newTestSubsystem(t)

	h, disp, err := s.RegCreateKeyEx(HKeyLocalMachine, `SOFTWARE\CitcTest`)
	if err != nil {
		t.Fatalf("RegCreateKeyEx failed: %v", err)
	}
	if disp != registry.CreatedNewKey {
		t.Fatalf("disposition = %v, want CreatedNewKey", disp)
	}
	if err := s.RegCloseKey(h); err != nil {
		t.Fatalf("RegCloseKey failed: %v", err)
	}
}

func TestValueRoundTripViaSubsystem(t *testing.T) {
	s := newTestSubsystem(t)

	h, _, err := s.RegCreateKeyEx(HKeyLocalMachine, `SOFTWARE\CitcTest`)
	if err != nil {
		t.Fatalf("RegCreateKeyEx failed: %v", err)
	}

	payload := []byte{42, 0, 0, 0}
	if err := s.RegSetValueEx(h, "TestDword", registry.TypeDword, payload); err != nil {
		t.Fatalf("RegSetValueEx failed: %v", err)
	}

	typ, data, err := s.RegQueryValueEx(h, "TestDword", -1)
	if err != nil {
		t.Fatalf("RegQueryValueEx failed: %v", err)
	}
	if typ != registry.TypeDword || !bytes.Equal(data, payload) {
		t.Fatalf("got (%v, %x), want (%v, %x)", typ, data, registry.TypeDword, payload)
	}
}

func TestPredefinedHiveNeverEntersHandleTable(t *testing.T) {
	s := newTestSubsystem(t)
	before := s.handles.Count()

	h, _, err := s.RegCreateKeyEx(HKeyCurrentUser, "Software")
	if err != nil {
		t.Fatalf("RegCreateKeyEx failed: %v", err)
	}
	if got := s.handles.Count(); got != before+1 {
		t.Fatalf("handle count = %d, want %d (only the opened key, not the hive)", got, before+1)
	}
	_ = s.RegCloseKey(h)
}

func TestRegOpenKeyExNotFound(t *testing.T) {
	s := newTestSubsystem(t)
	if _, err := s.RegOpenKeyEx(HKeyLocalMachine, `Does\Not\Exist`); err == nil {
		t.Fatalf("RegOpenKeyEx succeeded for a missing key")
	}
}

func TestRegEnumValueIndexOutOfRange(t *testing.T) {
	s := newTestSubsystem(t)
	h, _, _ := s.RegCreateKeyEx(HKeyLocalMachine, "Root")
	if _, err := s.RegEnumValue(h, 0); err == nil {
		t.Fatalf("RegEnumValue succeeded on an empty key")
	}
}
