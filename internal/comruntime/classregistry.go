package comruntime

import (
	"sync"

	"github.com/citcrun/citc/internal/winerr"
)

// Factory builds a fresh instance of the class it is registered under.
type Factory func() (Object, error)

// ClassRegistry maps CLSID to Factory. Write-once-read-many: Register
// takes the write lock, and CreateInstance takes only the read lock,
// matching the window-class registry in internal/user32.
type ClassRegistry struct {
	mu      sync.RWMutex
	classes map[GUID]Factory
}

// NewClassRegistry returns an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{classes: make(map[GUID]Factory)}
}

// Register installs factory under clsid. Re-registering the same CLSID
// replaces the previous factory; callers are expected to do this only
// during startup.
func (r *ClassRegistry) Register(clsid GUID, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[clsid] = factory
}

// CreateInstance implements CoCreateInstance: build an instance of
// clsid via its factory, then QueryInterface it for iid.
func (r *ClassRegistry) CreateInstance(clsid, iid GUID) (Object, error) {
	r.mu.RLock()
	factory, ok := r.classes[clsid]
	r.mu.RUnlock()
	if !ok {
		return nil, winerr.New("CoCreateInstance", winerr.NotFound, nil)
	}
	obj, err := factory()
	if err != nil {
		return nil, winerr.New("CoCreateInstance", winerr.StateInvalid, err)
	}
	iface, err := obj.QueryInterface(iid)
	if err != nil {
		return nil, err
	}
	return iface, nil
}
