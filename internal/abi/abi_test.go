package abi

import "testing"

func TestEncodeThunkLayout(t *testing.T) {
	code := make([]byte, thunkSize)
	encodeThunk(code, 0x11223344, 0xdeadbeefcafebabe)

	want := []byte{
		0x41, 0xBA, 0x44, 0x33, 0x22, 0x11, // mov r10d, imm32
		0x49, 0xBB, 0xbe, 0xba, 0xfe, 0xca, 0xef, 0xbe, 0xad, 0xde, // movabs r11, imm64
		0x41, 0xFF, 0xE3, // jmp r11
	}
	for i, b := range want {
		if code[i] != b {
			t.Fatalf("code[%d] = %#x, want %#x", i, code[i], b)
		}
	}
	for i := len(want); i < len(code); i++ {
		if code[i] != 0xCC {
			t.Fatalf("padding byte code[%d] = %#x, want 0xCC", i, code[i])
		}
	}
}

func TestTrampolineRegistersAndInvokes(t *testing.T) {
	var got [4]uintptr
	addr, err := Trampoline(func(args [4]uintptr, stackArgs []uintptr) uintptr {
		got = args
		return 42
	})
	if err != nil {
		t.Fatalf("Trampoline failed: %v", err)
	}
	if addr == 0 {
		t.Fatalf("Trampoline returned a nil address")
	}

	slot := uint32(len(dispatchTable) - 1)
	result := goDispatch(slot, 1, 2, 3, 4, nil, 0)
	if result != 42 {
		t.Fatalf("goDispatch returned %d, want 42", result)
	}
	if got != [4]uintptr{1, 2, 3, 4} {
		t.Fatalf("HostFunc saw args %v, want [1 2 3 4]", got)
	}
}
