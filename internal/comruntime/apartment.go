package comruntime

import (
	"sync"

	"github.com/citcrun/citc/internal/winerr"
)

// ApartmentModel mirrors COINIT's two mutually exclusive models.
type ApartmentModel int

const (
	ApartmentSingleThreaded ApartmentModel = iota // COINIT_APARTMENTTHREADED
	ApartmentMultiThreaded                        // COINIT_MULTITHREADED
)

type apartmentState struct {
	model   ApartmentModel
	refs    int
}

// Runtime tracks per-thread apartment initialization state and hosts
// the process-wide class registry.
type Runtime struct {
	mu         sync.Mutex
	apartments map[uint32]*apartmentState
	Classes    *ClassRegistry
}

// NewRuntime builds an empty Runtime with its own class registry.
func NewRuntime() *Runtime {
	return &Runtime{
		apartments: make(map[uint32]*apartmentState),
		Classes:    NewClassRegistry(),
	}
}

// CoInitializeEx implements the per-thread, reference-counted apartment
// model: the first call on a thread declares the model; a mismatched
// subsequent call fails without changing the refcount.
func (rt *Runtime) CoInitializeEx(threadID uint32, model ApartmentModel) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	st, ok := rt.apartments[threadID]
	if !ok {
		rt.apartments[threadID] = &apartmentState{model: model, refs: 1}
		return nil
	}
	if st.model != model {
		return winerr.New("CoInitializeEx", winerr.StateInvalid, nil)
	}
	st.refs++
	return nil
}

// CoUninitialize drops one apartment reference for threadID, tearing
// down its apartment state once the count reaches zero.
func (rt *Runtime) CoUninitialize(threadID uint32) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	st, ok := rt.apartments[threadID]
	if !ok {
		return winerr.New("CoUninitialize", winerr.StateInvalid, nil)
	}
	st.refs--
	if st.refs <= 0 {
		delete(rt.apartments, threadID)
	}
	return nil
}

// CoCreateInstance builds an instance of clsid implementing iid. The
// calling thread must have an active apartment.
func (rt *Runtime) CoCreateInstance(threadID uint32, clsid, iid GUID) (Object, error) {
	rt.mu.Lock()
	_, ok := rt.apartments[threadID]
	rt.mu.Unlock()
	if !ok {
		return nil, winerr.New("CoCreateInstance", winerr.StateInvalid, nil)
	}
	return rt.Classes.CreateInstance(clsid, iid)
}
