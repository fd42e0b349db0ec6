package comruntime

import "testing"

type stubObject struct {
	*Unknown
	name string
}

func newStub(name string) *stubObject {
	s := &stubObject{name: name}
	s.Unknown = NewUnknown(s, map[GUID]Object{testIID: s})
	return s
}

var testIID = GUID{Data1: 0x11111111, Data2: 1, Data3: 1, Data4: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
var otherIID = GUID{Data1: 0x22222222, Data2: 2, Data3: 2, Data4: [8]byte{8, 7, 6, 5, 4, 3, 2, 1}}

func TestGUIDEqualAndZero(t *testing.T) {
	a := GUID{Data1: 1, Data2: 2, Data3: 3, Data4: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	b := a
	if !a.Equal(b) {
		t.Fatalf("identical GUIDs compared unequal")
	}
	if (GUID{}).IsZero() != true {
		t.Fatalf("zero-value GUID reported non-zero")
	}
	if a.IsZero() {
		t.Fatalf("non-zero GUID reported zero")
	}
}

func TestQueryInterfaceReflexiveAndUnknown(t *testing.T) {
	s := newStub("a")

	iface, err := s.QueryInterface(testIID)
	if err != nil || iface != Object(s) {
		t.Fatalf("QueryInterface(own IID) = (%v, %v), want (self, nil)", iface, err)
	}

	iface, err = s.QueryInterface(IID_IUnknown)
	if err != nil || iface != Object(s) {
		t.Fatalf("QueryInterface(IUnknown) failed: %v", err)
	}

	if _, err := s.QueryInterface(otherIID); err == nil {
		t.Fatalf("QueryInterface succeeded for an unsupported IID")
	}
}

func TestQueryInterfaceAddRefsOnSuccess(t *testing.T) {
	s := newStub("a")
	before := s.RefCount()
	if _, err := s.QueryInterface(testIID); err != nil {
		t.Fatalf("QueryInterface failed: %v", err)
	}
	if after := s.RefCount(); after != before+1 {
		t.Fatalf("refcount = %d, want %d", after, before+1)
	}
}

func TestAddRefReleaseBalance(t *testing.T) {
	s := newStub("a")
	s.AddRef()
	s.AddRef()
	if got := s.Release(); got != 2 {
		t.Fatalf("Release() = %d, want 2", got)
	}
	if got := s.Release(); got != 1 {
		t.Fatalf("Release() = %d, want 1", got)
	}
	if got := s.Release(); got != 0 {
		t.Fatalf("Release() = %d, want 0", got)
	}
}

func TestClassRegistryCreateInstance(t *testing.T) {
	reg := NewClassRegistry()
	clsid := GUID{Data1: 0x99}
	reg.Register(clsid, func() (Object, error) { return newStub("created"), nil })

	obj, err := reg.CreateInstance(clsid, testIID)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	if obj.(*stubObject).name != "created" {
		t.Fatalf("unexpected instance: %+v", obj)
	}
}

func TestClassRegistryUnknownCLSID(t *testing.T) {
	reg := NewClassRegistry()
	if _, err := reg.CreateInstance(GUID{Data1: 0xDEAD}, testIID); err == nil {
		t.Fatalf("CreateInstance succeeded for an unregistered CLSID")
	}
}

func TestApartmentFirstCallSetsModelMismatchFails(t *testing.T) {
	rt := NewRuntime()
	const tid = 42

	if err := rt.CoInitializeEx(tid, ApartmentSingleThreaded); err != nil {
		t.Fatalf("first CoInitializeEx failed: %v", err)
	}
	if err := rt.CoInitializeEx(tid, ApartmentMultiThreaded); err == nil {
		t.Fatalf("mismatched apartment model was accepted")
	}
	if err := rt.CoInitializeEx(tid, ApartmentSingleThreaded); err != nil {
		t.Fatalf("matching reinitialize failed: %v", err)
	}
	if err := rt.CoUninitialize(tid); err != nil {
		t.Fatalf("CoUninitialize failed: %v", err)
	}
	if err := rt.CoUninitialize(tid); err != nil {
		t.Fatalf("second CoUninitialize failed: %v", err)
	}
	if err := rt.CoUninitialize(tid); err == nil {
		t.Fatalf("CoUninitialize succeeded with no outstanding reference")
	}
}

func TestCoCreateInstanceRequiresApartment(t *testing.T) {
	rt := NewRuntime()
	clsid := GUID{Data1: 1}
	rt.Classes.Register(clsid, func() (Object, error) { return newStub("x"), nil })

	if _, err := rt.CoCreateInstance(7, clsid, testIID); err == nil {
		t.Fatalf("CoCreateInstance succeeded without CoInitializeEx")
	}
	rt.CoInitializeEx(7, ApartmentSingleThreaded)
	if _, err := rt.CoCreateInstance(7, clsid, testIID); err != nil {
		t.Fatalf("CoCreateInstance failed after CoInitializeEx: %v", err)
	}
}
