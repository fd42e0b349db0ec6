// Package kernel32 implements the kernel32.dll API surface: file I/O,
// memory, process/thread, time, environment, atomics, TLS and waitable
// objects. Subsystem.Register (see kernel32.go) publishes the functions
// that have a kernel32.dll export entry; some exported Go functions here
// (the Interlocked* helpers, FindFirstFile/FindNextFile, JoinThread,
// GetExitCodeThread, WaitForMultipleObjects) have no export entry and
// are reachable from Go only. Each validates its arguments before any
// side effect.
package kernel32

import (
	"io"
	"os"
	"sync"

	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winerr"
)

// Creation disposition values, matching CreateFile's dwCreationDisposition.
const (
	CreateNew        = 1
	CreateAlways      = 2
	OpenExisting      = 3
	OpenAlways        = 4
	TruncateExisting = 5
)

// Seek origins, matching SetFilePointer's dwMoveMethod.
const (
	FileBegin   = 0
	FileCurrent = 1
	FileEnd     = 2
)

// FileObject is the kernel object backing a file handle.
type FileObject struct {
	mu     sync.Mutex
	f      *os.File
	offset int64
	share  uint32
	opts   uint32
}

func (o *FileObject) Kind() string { return "file" }

func (o *FileObject) Destroy() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f != nil {
		_ = o.f.Close()
		o.f = nil
	}
}

// CreateFile opens or creates a host file per the requested disposition
// and installs it behind a new handle.
func (k *Subsystem) CreateFile(path string, desiredAccess, shareMode uint32, disposition, flags uint32) (handle.H, error) {
	if path == "" {
		k.setLastError(winerr.MalformedInput)
		return handle.Invalid, winerr.New("CreateFile", winerr.MalformedInput, nil)
	}

	var flag int
	switch disposition {
	case CreateNew:
		flag = os.O_CREATE | os.O_EXCL
	case CreateAlways:
		flag = os.O_CREATE | os.O_TRUNC
	case OpenExisting:
		flag = 0
	case OpenAlways:
		flag = os.O_CREATE
	case TruncateExisting:
		flag = os.O_TRUNC
	default:
		k.setLastError(winerr.MalformedInput)
		return handle.Invalid, winerr.New("CreateFile", winerr.MalformedInput, nil)
	}

	switch desiredAccess & 0x3 {
	case 1:
		flag |= os.O_RDONLY
	case 2:
		flag |= os.O_WRONLY
	default:
		flag |= os.O_RDWR
	}

	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		code := winerr.IOFailed
		if os.IsNotExist(err) {
			code = winerr.NotFound
		} else if os.IsExist(err) {
			code = winerr.AlreadyExists
		} else if os.IsPermission(err) {
			code = winerr.PermissionDenied
		}
		k.setLastError(code)
		return handle.Invalid, winerr.New("CreateFile", code, err)
	}

	obj := &FileObject{f: f, share: shareMode, opts: flags}
	h := k.handles.Open(obj)
	k.setLastError(winerr.OK)
	return h, nil
}

// ReadFile reads into buf, honouring short transfers.
func (k *Subsystem) ReadFile(h handle.H, buf []byte) (int, error) {
	obj, ok := k.lookupFile(h)
	if !ok {
		k.setLastError(winerr.NotFound)
		return 0, winerr.New("ReadFile", winerr.NotFound, nil)
	}

	obj.mu.Lock()
	defer obj.mu.Unlock()

	n, err := obj.f.ReadAt(buf, obj.offset)
	obj.offset += int64(n)
	if err != nil && err != io.EOF {
		k.setLastError(winerr.IOFailed)
		return n, winerr.New("ReadFile", winerr.IOFailed, err)
	}
	k.setLastError(winerr.OK)
	return n, nil
}

// WriteFile writes buf at the file's current position.
func (k *Subsystem) WriteFile(h handle.H, buf []byte) (int, error) {
	obj, ok := k.lookupFile(h)
	if !ok {
		k.setLastError(winerr.NotFound)
		return 0, winerr.New("WriteFile", winerr.NotFound, nil)
	}

	obj.mu.Lock()
	defer obj.mu.Unlock()

	n, err := obj.f.WriteAt(buf, obj.offset)
	obj.offset += int64(n)
	if err != nil {
		k.setLastError(winerr.IOFailed)
		return n, winerr.New("WriteFile", winerr.IOFailed, err)
	}
	k.setLastError(winerr.OK)
	return n, nil
}

// GetFileSize returns the current size of the file behind h.
func (k *Subsystem) GetFileSize(h handle.H) (int64, error) {
	obj, ok := k.lookupFile(h)
	if !ok {
		k.setLastError(winerr.NotFound)
		return 0, winerr.New("GetFileSize", winerr.NotFound, nil)
	}
	fi, err := obj.f.Stat()
	if err != nil {
		k.setLastError(winerr.IOFailed)
		return 0, winerr.New("GetFileSize", winerr.IOFailed, err)
	}
	k.setLastError(winerr.OK)
	return fi.Size(), nil
}

// SetFilePointer moves the file's cursor by distance relative to origin.
func (k *Subsystem) SetFilePointer(h handle.H, distance int64, origin uint32) (int64, error) {
	obj, ok := k.lookupFile(h)
	if !ok {
		k.setLastError(winerr.NotFound)
		return 0, winerr.New("SetFilePointer", winerr.NotFound, nil)
	}

	obj.mu.Lock()
	defer obj.mu.Unlock()

	switch origin {
	case FileBegin:
		obj.offset = distance
	case FileCurrent:
		obj.offset += distance
	case FileEnd:
		fi, err := obj.f.Stat()
		if err != nil {
			k.setLastError(winerr.IOFailed)
			return 0, winerr.New("SetFilePointer", winerr.IOFailed, err)
		}
		obj.offset = fi.Size() + distance
	default:
		k.setLastError(winerr.MalformedInput)
		return 0, winerr.New("SetFilePointer", winerr.MalformedInput, nil)
	}
	k.setLastError(winerr.OK)
	return obj.offset, nil
}

// DeleteFile removes path from the host filesystem.
func (k *Subsystem) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil {
		code := winerr.IOFailed
		if os.IsNotExist(err) {
			code = winerr.NotFound
		}
		k.setLastError(code)
		return winerr.New("DeleteFile", code, err)
	}
	k.setLastError(winerr.OK)
	return nil
}

// CreateDirectory/RemoveDirectory implement directory create/remove.
func (k *Subsystem) CreateDirectory(path string) error {
	if err := os.Mkdir(path, 0755); err != nil {
		code := winerr.IOFailed
		if os.IsExist(err) {
			code = winerr.AlreadyExists
		}
		k.setLastError(code)
		return winerr.New("CreateDirectory", code, err)
	}
	k.setLastError(winerr.OK)
	return nil
}

func (k *Subsystem) RemoveDirectory(path string) error {
	if err := os.Remove(path); err != nil {
		code := winerr.IOFailed
		if os.IsNotExist(err) {
			code = winerr.NotFound
		}
		k.setLastError(code)
		return winerr.New("RemoveDirectory", code, err)
	}
	k.setLastError(winerr.OK)
	return nil
}

// DirCursor backs directory enumeration with a cursor handle: it is
// itself a kernel object.
type DirCursor struct {
	entries []os.DirEntry
	pos     int
}

func (c *DirCursor) Kind() string { return "find" }
func (c *DirCursor) Destroy()     {}

// FindFirstFile opens path's directory listing and returns a cursor
// handle plus the first entry name, or NotFound if path has no entries.
func (k *Subsystem) FindFirstFile(path string) (handle.H, string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		k.setLastError(winerr.NotFound)
		return handle.Invalid, "", winerr.New("FindFirstFile", winerr.NotFound, err)
	}
	if len(entries) == 0 {
		k.setLastError(winerr.NotFound)
		return handle.Invalid, "", winerr.New("FindFirstFile", winerr.NotFound, nil)
	}
	cur := &DirCursor{entries: entries, pos: 1}
	h := k.handles.Open(cur)
	k.setLastError(winerr.OK)
	return h, entries[0].Name(), nil
}

// FindNextFile advances the cursor behind h.
func (k *Subsystem) FindNextFile(h handle.H) (string, bool) {
	obj, ok := k.handles.Lookup(h)
	if !ok {
		k.setLastError(winerr.NotFound)
		return "", false
	}
	cur, ok := obj.(*DirCursor)
	if !ok || cur.pos >= len(cur.entries) {
		k.setLastError(winerr.NotFound)
		return "", false
	}
	name := cur.entries[cur.pos].Name()
	cur.pos++
	k.setLastError(winerr.OK)
	return name, true
}

func (k *Subsystem) lookupFile(h handle.H) (*FileObject, bool) {
	obj, ok := k.handles.Lookup(h)
	if !ok {
		return nil, false
	}
	f, ok := obj.(*FileObject)
	return f, ok
}
