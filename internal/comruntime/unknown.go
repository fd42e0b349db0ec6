// Package comruntime implements citc's in-process COM runtime: GUID
// identity, the IUnknown reference-counting contract, a class factory
// registry keyed by CLSID, and per-thread apartment initialization.
package comruntime

import (
	"sync/atomic"

	"github.com/citcrun/citc/internal/winerr"
)

// Object is satisfied by every COM object citc hosts. QueryInterface
// follows the documented rules: reflexive (querying an interface the
// object already answers as always succeeds), symmetric (if A's
// QueryInterface yields B, B's yields A back), transitive, and
// refcount-consistent (a successful QueryInterface is itself an AddRef).
type Object interface {
	QueryInterface(iid GUID) (Object, error)
	AddRef() uint32
	Release() uint32
}

// Unknown is the embeddable IUnknown base every concrete citc COM type
// composes: it owns the shared refcount and the interface-identity
// table every QueryInterface call consults.
type Unknown struct {
	refs  int32
	table map[GUID]Object
	self  Object
}

// NewUnknown builds an Unknown whose identity set is exactly the GUIDs
// in supports, all resolving to self (the concrete object embedding this
// Unknown). IID_IUnknown is added automatically if not already present.
func NewUnknown(self Object, supports map[GUID]Object) *Unknown {
	table := make(map[GUID]Object, len(supports)+1)
	for k, v := range supports {
		table[k] = v
	}
	if _, ok := table[IID_IUnknown]; !ok {
		table[IID_IUnknown] = self
	}
	return &Unknown{refs: 1, table: table, self: self}
}

// IID_IUnknown is the well-known identifier every COM interface answers.
var IID_IUnknown = GUID{Data1: 0x00000000, Data2: 0x0000, Data3: 0x0000, Data4: [8]byte{0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46}}

// QueryInterface looks iid up in the identity table, AddRef'ing on a hit.
func (u *Unknown) QueryInterface(iid GUID) (Object, error) {
	obj, ok := u.table[iid]
	if !ok {
		return nil, winerr.New("QueryInterface", winerr.NotFound, nil)
	}
	obj.AddRef()
	return obj, nil
}

// AddRef increments the shared refcount and returns the new value.
func (u *Unknown) AddRef() uint32 {
	return uint32(atomic.AddInt32(&u.refs, 1))
}

// Release decrements the shared refcount, returning the new value. Once
// it reaches zero the caller (the embedding concrete type) is expected
// to tear itself down; Unknown itself holds no releasable resource.
func (u *Unknown) Release() uint32 {
	return uint32(atomic.AddInt32(&u.refs, -1))
}

// RefCount reports the current strong reference count, for diagnostics
// and tests.
func (u *Unknown) RefCount() uint32 {
	return uint32(atomic.LoadInt32(&u.refs))
}
