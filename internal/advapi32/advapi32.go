// Package advapi32 is the Win32 registry ABI shim: it decodes wide-string
// arguments off the guest stack and calls into internal/registry, and
// resolves the predefined HKEY_* pseudo-handles without ever entering
// the handle table (spec: predefined pseudo-handles resolve without
// entering the table, same as standard streams).
package advapi32

import (
	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/registry"
	"github.com/citcrun/citc/internal/winerr"
	"github.com/citcrun/citc/internal/winstring"
)

// Predefined HKEY pseudo-handle values, matching the real Win32 numeric
// constants so guest code that hardcodes them keeps working.
const (
	HKeyClassesRoot  handle.H = 0x80000000
	HKeyCurrentUser  handle.H = 0x80000001
	HKeyLocalMachine handle.H = 0x80000002
	HKeyUsers        handle.H = 0x80000003
	HKeyCurrentConfig handle.H = 0x80000005
)

var predefined = map[handle.H]registry.Hive{
	HKeyClassesRoot:   registry.HKeyClassesRoot,
	HKeyCurrentUser:   registry.HKeyCurrentUser,
	HKeyLocalMachine:  registry.HKeyLocalMachine,
	HKeyUsers:         registry.HKeyUsers,
	HKeyCurrentConfig: registry.HKeyCurrentConfig,
}

// KeyObject is the handle-table object backing an open registry key
// (anything beyond the five predefined hive pseudo-handles).
type KeyObject struct {
	key *registry.Key
}

func (o *KeyObject) Kind() string { return "registry-key" }
func (o *KeyObject) Destroy()     {}

// Subsystem implements the advapi32.dll export surface over a single
// registry store.
type Subsystem struct {
	store   *registry.Store
	handles *handle.Table
}

// New builds a Subsystem rooted at store, resolving handles through
// handles.
func New(store *registry.Store, handles *handle.Table) *Subsystem {
	return &Subsystem{store: store, handles: handles}
}

// resolveHive returns the registry.Hive a predefined pseudo-handle maps
// to, and whether h is one of the predefined pseudo-handles at all.
func resolveHive(h handle.H) (registry.Hive, bool) {
	hv, ok := predefined[h]
	return hv, ok
}

// resolveKeyAndHive resolves h — predefined hive or a previously opened
// KeyObject — to the registry.Hive/path pair needed to address subpath
// relative to it. For a predefined hive, subpath is relative to the
// hive root; for an already-open key, subpath is relative to that key,
// which in citc's flat hive model is expressed by re-walking from the
// hive root using the key's own stored path.
func (s *Subsystem) resolveKeyAndHive(h handle.H) (registry.Hive, string, error) {
	if hv, ok := resolveHive(h); ok {
		return hv, "", nil
	}
	obj, ok := s.handles.Lookup(h)
	if !ok {
		return "", "", winerr.New("advapi32", winerr.NotFound, nil)
	}
	ko, ok := obj.(*KeyObject)
	if !ok {
		return "", "", winerr.New("advapi32", winerr.MalformedInput, nil)
	}
	return ko.key.Hive(), ko.key.Path(), nil
}

func joinSub(base, sub string) string {
	if base == "" {
		return sub
	}
	if sub == "" {
		return base
	}
	return base + `\` + sub
}

// RegCreateKeyEx implements RegCreateKeyExW/A once the wide/ansi subkey
// argument has already been decoded to a Go string.
func (s *Subsystem) RegCreateKeyEx(parent handle.H, subKey string) (handle.H, registry.Disposition, error) {
	hive, base, err := s.resolveKeyAndHive(parent)
	if err != nil {
		return handle.Invalid, 0, err
	}
	key, disp, err := s.store.CreateKey(hive, joinSub(base, subKey))
	if err != nil {
		return handle.Invalid, 0, err
	}
	h := s.handles.Open(&KeyObject{key: key})
	return h, disp, nil
}

// RegOpenKeyEx implements RegOpenKeyExW/A.
func (s *Subsystem) RegOpenKeyEx(parent handle.H, subKey string) (handle.H, error) {
	hive, base, err := s.resolveKeyAndHive(parent)
	if err != nil {
		return handle.Invalid, err
	}
	key, err := s.store.OpenKey(hive, joinSub(base, subKey))
	if err != nil {
		return handle.Invalid, err
	}
	return s.handles.Open(&KeyObject{key: key}), nil
}

// RegCloseKey implements RegCloseKey.
func (s *Subsystem) RegCloseKey(h handle.H) error {
	if _, ok := resolveHive(h); ok {
		return nil // predefined hives never enter the table and never close
	}
	return s.handles.Close(h)
}

// RegSetValueEx implements RegSetValueExW/A with an already-decoded
// name, and the type/payload exactly as the guest supplied them.
func (s *Subsystem) RegSetValueEx(h handle.H, name string, typ registry.ValueType, data []byte) error {
	key, err := s.keyFor(h)
	if err != nil {
		return err
	}
	return key.SetValue(name, typ, data)
}

// RegQueryValueEx implements RegQueryValueExW/A. max < 0 means "report
// size unconditionally", matching a NULL data pointer with a non-NULL
// size pointer.
func (s *Subsystem) RegQueryValueEx(h handle.H, name string, max int) (registry.ValueType, []byte, error) {
	key, err := s.keyFor(h)
	if err != nil {
		return 0, nil, err
	}
	return key.GetValue(name, max)
}

// RegDeleteValue implements RegDeleteValueW/A.
func (s *Subsystem) RegDeleteValue(h handle.H, name string) error {
	key, err := s.keyFor(h)
	if err != nil {
		return err
	}
	return key.DeleteValue(name)
}

// RegDeleteKey implements RegDeleteKeyW/A.
func (s *Subsystem) RegDeleteKey(parent handle.H, subKey string) error {
	hive, base, err := s.resolveKeyAndHive(parent)
	if err != nil {
		return err
	}
	return s.store.DeleteKey(hive, joinSub(base, subKey))
}

// RegEnumValue implements RegEnumValueW/A's index-based iteration.
func (s *Subsystem) RegEnumValue(h handle.H, index int) (string, error) {
	key, err := s.keyFor(h)
	if err != nil {
		return "", err
	}
	names, err := key.EnumValues()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(names) {
		return "", winerr.New("RegEnumValue", winerr.NotFound, nil)
	}
	return names[index], nil
}

// RegEnumKeyEx implements RegEnumKeyExW/A's index-based iteration.
func (s *Subsystem) RegEnumKeyEx(h handle.H, index int) (string, error) {
	key, err := s.keyFor(h)
	if err != nil {
		return "", err
	}
	names, err := key.EnumSubkeys()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(names) {
		return "", winerr.New("RegEnumKeyEx", winerr.NotFound, nil)
	}
	return names[index], nil
}

func (s *Subsystem) keyFor(h handle.H) (*registry.Key, error) {
	if hv, ok := resolveHive(h); ok {
		return s.store.OpenKey(hv, "")
	}
	obj, ok := s.handles.Lookup(h)
	if !ok {
		return nil, winerr.New("advapi32", winerr.NotFound, nil)
	}
	ko, ok := obj.(*KeyObject)
	if !ok {
		return nil, winerr.New("advapi32", winerr.MalformedInput, nil)
	}
	return ko.key, nil
}

// DecodeWideValueName is a thin adapter used by the ABI entry points
// below to turn a guest PCWSTR into a Go string before calling the
// typed methods above.
func DecodeWideValueName(addr uintptr) string {
	s, _ := winstring.ReadWide(addr)
	return s
}
