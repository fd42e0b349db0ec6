package kernel32

import (
	"path/filepath"
	"testing"
)

func TestCreateWriteReadFile(t *testing.T) {
	k := newTestSubsystem()
	path := filepath.Join(t.TempDir(), "hello.txt")

	h, err := k.CreateFile(path, 0x3, 0, CreateAlways, 0)
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	n, err := k.WriteFile(h, []byte("hello"))
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("WriteFile wrote %d bytes, want 5", n)
	}

	size, err := k.GetFileSize(h)
	if err != nil {
		t.Fatalf("GetFileSize failed: %v", err)
	}
	if size != 5 {
		t.Fatalf("GetFileSize = %d, want 5", size)
	}

	if _, err := k.SetFilePointer(h, 0, FileBegin); err != nil {
		t.Fatalf("SetFilePointer failed: %v", err)
	}

	buf := make([]byte, 5)
	n, err = k.ReadFile(h, buf)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("ReadFile = %q, want %q", buf[:n], "hello")
	}
}

func TestCreateFileNewFailsIfExists(t *testing.T) {
	k := newTestSubsystem()
	path := filepath.Join(t.TempDir(), "exists.txt")

	if _, err := k.CreateFile(path, 0x3, 0, CreateAlways, 0); err != nil {
		t.Fatalf("first CreateFile failed: %v", err)
	}
	if _, err := k.CreateFile(path, 0x3, 0, CreateNew, 0); err == nil {
		t.Fatalf("CreateNew succeeded against an existing file")
	}
}

func TestReadFileUnknownHandle(t *testing.T) {
	k := newTestSubsystem()
	if _, err := k.ReadFile(999, make([]byte, 4)); err == nil {
		t.Fatalf("ReadFile succeeded against an unknown handle")
	}
}

func TestCreateDirectoryRemoveDirectory(t *testing.T) {
	k := newTestSubsystem()
	dir := filepath.Join(t.TempDir(), "sub")

	if err := k.CreateDirectory(dir); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}
	if err := k.CreateDirectory(dir); err == nil {
		t.Fatalf("CreateDirectory succeeded twice for the same path")
	}
	if err := k.RemoveDirectory(dir); err != nil {
		t.Fatalf("RemoveDirectory failed: %v", err)
	}
}

func TestFindFirstNextFile(t *testing.T) {
	k := newTestSubsystem()
	dir := t.TempDir()

	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := k.CreateFile(filepath.Join(dir, name), 0x3, 0, CreateAlways, 0); err != nil {
			t.Fatalf("CreateFile(%s) failed: %v", name, err)
		}
	}

	h, first, err := k.FindFirstFile(dir)
	if err != nil {
		t.Fatalf("FindFirstFile failed: %v", err)
	}
	if first == "" {
		t.Fatalf("FindFirstFile returned an empty first entry")
	}

	seen := map[string]bool{first: true}
	for {
		name, ok := k.FindNextFile(h)
		if !ok {
			break
		}
		seen[name] = true
	}
	if !seen["a.txt"] || !seen["b.txt"] {
		t.Fatalf("directory enumeration missed entries: %v", seen)
	}
}
