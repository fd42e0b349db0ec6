// Package registry implements the hierarchical typed key/value store that
// backs the guest registry API: a logical tree rooted at predefined hives,
// persisted as a host directory per key and a host file per value.
package registry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/citcrun/citc/internal/winerr"
)

// ValueType is the one-byte type tag stored at the head of every value file.
type ValueType byte

const (
	TypeNone       ValueType = 0
	TypeString     ValueType = 1 // REG_SZ
	TypeExpandSZ   ValueType = 2 // REG_EXPAND_SZ
	TypeBinary     ValueType = 3 // REG_BINARY
	TypeDword      ValueType = 4 // REG_DWORD
	TypeMultiSZ    ValueType = 7 // REG_MULTI_SZ
	TypeQword      ValueType = 11 // REG_QWORD
)

func (t ValueType) String() string {
	switch t {
	case TypeNone:
		return "REG_NONE"
	case TypeString:
		return "REG_SZ"
	case TypeExpandSZ:
		return "REG_EXPAND_SZ"
	case TypeBinary:
		return "REG_BINARY"
	case TypeDword:
		return "REG_DWORD"
	case TypeMultiSZ:
		return "REG_MULTI_SZ"
	case TypeQword:
		return "REG_QWORD"
	default:
		return fmt.Sprintf("REG_UNKNOWN(%d)", byte(t))
	}
}

// Hive names the predefined registry roots. citc persists each as a
// top-level subdirectory of the configured registry root.
type Hive string

const (
	HKeyClassesRoot   Hive = "classes-root"
	HKeyCurrentUser   Hive = "current-user"
	HKeyLocalMachine  Hive = "local-machine"
	HKeyUsers         Hive = "users"
	HKeyCurrentConfig Hive = "current-config"
)

const valueFileName = ".citc-value"

// Store roots the hive tree at a host directory. A key is a directory
// under that root; a value is a file inside the key's directory whose
// first byte is its ValueType and whose remaining bytes are the raw
// payload, exactly as a guest wrote it.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// Open roots a Store at dir, creating it and the predefined hive
// subdirectories if they do not already exist.
func Open(dir string) (*Store, error) {
	s := &Store{root: dir, locks: make(map[string]*sync.RWMutex)}
	for _, h := range []Hive{HKeyClassesRoot, HKeyCurrentUser, HKeyLocalMachine, HKeyUsers, HKeyCurrentConfig} {
		if err := os.MkdirAll(s.hivePath(h), 0o755); err != nil {
			return nil, winerr.New("registry.Open", winerr.IOFailed, err)
		}
	}
	return s, nil
}

func (s *Store) hivePath(h Hive) string {
	return filepath.Join(s.root, string(h))
}

// keyLock returns the advisory per-key lock for path, creating it on
// first use. Locks are never removed: a registry tree is small and
// long-lived relative to the process.
func (s *Store) keyLock(path string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[path] = l
	}
	return l
}

// resolve splits a Windows-style registry path relative to hive
// ("SOFTWARE\Vendor") into a host filesystem path and the canonical key
// identity used for locking. A leading hive name such as "HKLM" is not
// recognized; it is treated as an ordinary key component.
func (s *Store) resolve(hive Hive, subpath string) (fsPath, keyID string) {
	parts := splitPath(subpath)
	keyID = string(hive) + "\\" + strings.Join(parts, "\\")
	fsPath = s.hivePath(hive)
	for _, p := range parts {
		fsPath = filepath.Join(fsPath, sanitizeComponent(p))
	}
	return fsPath, keyID
}

func splitPath(p string) []string {
	p = strings.Trim(strings.ReplaceAll(p, "/", "\\"), "\\")
	if p == "" {
		return nil
	}
	raw := strings.Split(p, "\\")
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// sanitizeComponent keeps a path component from escaping the hive tree via
// "." or "..", which Windows registry key names cannot contain anyway.
func sanitizeComponent(c string) string {
	if c == "." || c == ".." {
		return "_" + c
	}
	return c
}

// Disposition reports whether CreateKey found an existing key or made a
// new one, mirroring RegCreateKeyEx's REG_CREATED_NEW_KEY /
// REG_OPENED_EXISTING_KEY distinction.
type Disposition int

const (
	CreatedNewKey Disposition = iota
	OpenedExistingKey
)

// CreateKey walks subpath under hive, creating any missing intermediate
// directories, and returns the resulting Key plus whether it already
// existed.
func (s *Store) CreateKey(hive Hive, subpath string) (*Key, Disposition, error) {
	fsPath, keyID := s.resolve(hive, subpath)
	_, err := os.Stat(fsPath)
	disp := OpenedExistingKey
	if os.IsNotExist(err) {
		disp = CreatedNewKey
		if err := os.MkdirAll(fsPath, 0o755); err != nil {
			return nil, 0, winerr.New("registry.CreateKey", winerr.IOFailed, err)
		}
	} else if err != nil {
		return nil, 0, winerr.New("registry.CreateKey", winerr.IOFailed, err)
	}
	return &Key{store: s, fsPath: fsPath, id: keyID, hive: hive, path: strings.Join(splitPath(subpath), `\`)}, disp, nil
}

// OpenKey opens an existing key, failing with NotFound if the directory
// is absent.
func (s *Store) OpenKey(hive Hive, subpath string) (*Key, error) {
	fsPath, keyID := s.resolve(hive, subpath)
	info, err := os.Stat(fsPath)
	if os.IsNotExist(err) || (err == nil && !info.IsDir()) {
		return nil, winerr.New("registry.OpenKey", winerr.NotFound, nil)
	}
	if err != nil {
		return nil, winerr.New("registry.OpenKey", winerr.IOFailed, err)
	}
	return &Key{store: s, fsPath: fsPath, id: keyID, hive: hive, path: strings.Join(splitPath(subpath), `\`)}, nil
}

// DeleteKey removes a single key, failing if it has subkeys, matching
// RegDeleteKey's non-recursive contract.
func (s *Store) DeleteKey(hive Hive, subpath string) error {
	fsPath, keyID := s.resolve(hive, subpath)
	lock := s.keyLock(keyID)
	lock.Lock()
	defer lock.Unlock()

	entries, err := os.ReadDir(fsPath)
	if os.IsNotExist(err) {
		return winerr.New("registry.DeleteKey", winerr.NotFound, nil)
	}
	if err != nil {
		return winerr.New("registry.DeleteKey", winerr.IOFailed, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			return winerr.New("registry.DeleteKey", winerr.StateInvalid, fmt.Errorf("key has subkeys"))
		}
	}
	if err := os.RemoveAll(fsPath); err != nil {
		return winerr.New("registry.DeleteKey", winerr.IOFailed, err)
	}
	return nil
}

// Key is an open handle onto a directory in the hive tree.
type Key struct {
	store  *Store
	fsPath string
	id     string
	hive   Hive
	path   string
}

// Hive returns the predefined root this key was opened under.
func (k *Key) Hive() Hive { return k.hive }

// Path returns the key's path relative to its hive, in backslash form.
func (k *Key) Path() string { return k.path }

func (k *Key) valuePath(name string) string {
	if name == "" {
		name = "@"
	}
	return filepath.Join(k.fsPath, valueFileName+"."+sanitizeComponent(name))
}

// SetValue writes a value file whose first byte is typ and whose
// remainder is data, verbatim. A subsequent GetValue returns (typ, data)
// bit for bit.
func (k *Key) SetValue(name string, typ ValueType, data []byte) error {
	lock := k.store.keyLock(k.id)
	lock.Lock()
	defer lock.Unlock()

	buf := make([]byte, 1+len(data))
	buf[0] = byte(typ)
	copy(buf[1:], data)
	if err := os.WriteFile(k.valuePath(name), buf, 0o644); err != nil {
		return winerr.New("registry.SetValue", winerr.IOFailed, err)
	}
	return nil
}

// SetDword is a convenience wrapper around SetValue for REG_DWORD.
func (k *Key) SetDword(name string, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return k.SetValue(name, TypeDword, b[:])
}

// SetString is a convenience wrapper around SetValue for REG_SZ, storing
// the string as UTF-16LE with a terminating NUL, matching what the ABI
// shim decodes from guest memory.
func (k *Key) SetString(name, v string) error {
	return k.SetValue(name, TypeString, encodeUTF16NulTerminated(v))
}

// GetValue returns the stored type and payload for name. When max is
// non-negative and the payload exceeds it, GetValue returns the true
// type, nil data and a ResourceExhausted error; the payload size appears
// only in that error's message, so a caller that needs the size queries
// again with max < 0.
func (k *Key) GetValue(name string, max int) (ValueType, []byte, error) {
	lock := k.store.keyLock(k.id)
	lock.RLock()
	defer lock.RUnlock()

	raw, err := os.ReadFile(k.valuePath(name))
	if os.IsNotExist(err) {
		return 0, nil, winerr.New("registry.GetValue", winerr.NotFound, nil)
	}
	if err != nil {
		return 0, nil, winerr.New("registry.GetValue", winerr.IOFailed, err)
	}
	if len(raw) == 0 {
		return TypeNone, nil, nil
	}
	typ := ValueType(raw[0])
	data := raw[1:]
	if max >= 0 && len(data) > max {
		return typ, nil, winerr.New("registry.GetValue", winerr.ResourceExhausted, fmt.Errorf("value is %d bytes, buffer holds %d", len(data), max))
	}
	return typ, data, nil
}

// DeleteValue removes a single value from the key.
func (k *Key) DeleteValue(name string) error {
	lock := k.store.keyLock(k.id)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(k.valuePath(name)); err != nil {
		if os.IsNotExist(err) {
			return winerr.New("registry.DeleteValue", winerr.NotFound, nil)
		}
		return winerr.New("registry.DeleteValue", winerr.IOFailed, err)
	}
	return nil
}

// EnumValues lists value names in a stable order, for RegEnumValue's
// index-based iteration.
func (k *Key) EnumValues() ([]string, error) {
	entries, err := os.ReadDir(k.fsPath)
	if err != nil {
		return nil, winerr.New("registry.EnumValues", winerr.IOFailed, err)
	}
	var names []string
	prefix := valueFileName + "."
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := strings.CutPrefix(e.Name(), prefix); ok {
			if n == "@" {
				n = ""
			}
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// EnumSubkeys lists immediate subkey names in a stable order, for
// RegEnumKeyEx's index-based iteration.
func (k *Key) EnumSubkeys() ([]string, error) {
	entries, err := os.ReadDir(k.fsPath)
	if err != nil {
		return nil, winerr.New("registry.EnumSubkeys", winerr.IOFailed, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op: keys hold no host resource beyond a path, matching
// how citc's other pseudo-handles (hives) need no teardown either. It
// exists so callers can treat registry.Key like any other closeable
// handle-table object.
func (k *Key) Close() error { return nil }

func encodeUTF16NulTerminated(s string) []byte {
	var buf bytes.Buffer
	for _, r := range s {
		if r <= 0xFFFF {
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(r))
			buf.Write(b[:])
			continue
		}
		r -= 0x10000
		hi := uint16(0xD800 + (r >> 10))
		lo := uint16(0xDC00 + (r & 0x3FF))
		var b [4]byte
		binary.LittleEndian.PutUint16(b[0:2], hi)
		binary.LittleEndian.PutUint16(b[2:4], lo)
		buf.Write(b[:])
	}
	buf.Write([]byte{0, 0})
	return buf.Bytes()
}
