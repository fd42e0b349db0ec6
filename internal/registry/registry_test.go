package registry

import (
	"bytes"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestCreateKeyReportsDisposition(t *testing.T) {
	s := newTestStore(t)

	_, disp, err := s.CreateKey(HKeyLocalMachine, `SOFTWARE\CitcTest`)
	if err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}
	if disp != CreatedNewKey {
		t.Fatalf("disposition = %v, want CreatedNewKey", disp)
	}

	_, disp, err = s.CreateKey(HKeyLocalMachine, `SOFTWARE\CitcTest`)
	if err != nil {
		t.Fatalf("second CreateKey failed: %v", err)
	}
	if disp != OpenedExistingKey {
		t.Fatalf("disposition = %v, want OpenedExistingKey", disp)
	}
}

func TestValueRoundTripBitExact(t *testing.T) {
	s := newTestStore(t)
	k, _, err := s.CreateKey(HKeyLocalMachine, `SOFTWARE\CitcTest`)
	if err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}

	if err := k.SetString("TestStr", "Hello Registry!"); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if err := k.SetDword("TestDword", 42); err != nil {
		t.Fatalf("SetDword failed: %v", err)
	}

	typ, data, err := k.GetValue("TestStr", -1)
	if err != nil {
		t.Fatalf("GetValue(TestStr) failed: %v", err)
	}
	if typ != TypeString {
		t.Fatalf("type = %v, want REG_SZ", typ)
	}
	want := encodeUTF16NulTerminated("Hello Registry!")
	if !bytes.Equal(data, want) {
		t.Fatalf("payload mismatch: got %x want %x", data, want)
	}

	typ, data, err = k.GetValue("TestDword", -1)
	if err != nil {
		t.Fatalf("GetValue(TestDword) failed: %v", err)
	}
	if typ != TypeDword {
		t.Fatalf("type = %v, want REG_DWORD", typ)
	}
	if !bytes.Equal(data, []byte{42, 0, 0, 0}) {
		t.Fatalf("payload = %x, want 2a000000", data)
	}
}

func TestGetValueUndersizedBufferReportsTypeWithoutData(t *testing.T) {
	s := newTestStore(t)
	k, _, _ := s.CreateKey(HKeyCurrentUser, `Software`)
	k.SetValue("Big", TypeBinary, []byte{1, 2, 3, 4, 5})

	typ, data, err := k.GetValue("Big", 2)
	if err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
	if typ != TypeBinary {
		t.Fatalf("type = %v, want REG_BINARY even on undersized read", typ)
	}
	if data != nil {
		t.Fatalf("data should be nil when the buffer was too small, got %v", data)
	}
}

func TestDeleteKeyFailsWithSubkeys(t *testing.T) {
	s := newTestStore(t)
	s.CreateKey(HKeyLocalMachine, `A`)
	s.CreateKey(HKeyLocalMachine, `A\B`)

	if err := s.DeleteKey(HKeyLocalMachine, "A"); err == nil {
		t.Fatalf("DeleteKey succeeded on a key with a subkey")
	}
	if err := s.DeleteKey(HKeyLocalMachine, `A\B`); err != nil {
		t.Fatalf("DeleteKey on leaf failed: %v", err)
	}
	if err := s.DeleteKey(HKeyLocalMachine, "A"); err != nil {
		t.Fatalf("DeleteKey after removing subkey failed: %v", err)
	}
}

func TestEnumValuesAndSubkeysAreSorted(t *testing.T) {
	s := newTestStore(t)
	k, _, _ := s.CreateKey(HKeyLocalMachine, "Root")
	k.SetValue("Zeta", TypeString, []byte{0, 0})
	k.SetValue("Alpha", TypeString, []byte{0, 0})
	s.CreateKey(HKeyLocalMachine, `Root\Zsub`)
	s.CreateKey(HKeyLocalMachine, `Root\Asub`)

	vals, err := k.EnumValues()
	if err != nil {
		t.Fatalf("EnumValues failed: %v", err)
	}
	if len(vals) != 2 || vals[0] != "Alpha" || vals[1] != "Zeta" {
		t.Fatalf("EnumValues = %v, want [Alpha Zeta]", vals)
	}

	subs, err := k.EnumSubkeys()
	if err != nil {
		t.Fatalf("EnumSubkeys failed: %v", err)
	}
	if len(subs) != 2 || subs[0] != "Asub" || subs[1] != "Zsub" {
		t.Fatalf("EnumSubkeys = %v, want [Asub Zsub]", subs)
	}
}

func TestOpenKeyNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.OpenKey(HKeyLocalMachine, `Does\Not\Exist`); err == nil {
		t.Fatalf("OpenKey succeeded for a missing key")
	}
}
